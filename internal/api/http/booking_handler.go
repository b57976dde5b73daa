package http

import (
	"net/http"

	"peer-rental-core/internal/domain"
)

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	dates, err := domain.ParseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.svc.Bookings.CreateBooking(r.Context(), req.ItemID, email, dates)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResponse{Booking: b})
}

func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	var states []domain.BookingState
	for _, st := range q["state"] {
		states = append(states, domain.BookingState(st))
	}
	page := queryInt(r, "page", 1)
	bookings, total, err := h.svc.Bookings.ListBookings(r.Context(), email, domain.ReporterRole(q.Get("role")), states, page, queryInt(r, "page_size", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[domain.Booking]{Items: bookings, Total: total, Page: page})
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Bookings.GetBooking(r.Context(), id, email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: b})
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	var req decisionRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.svc.Bookings.Decide(r.Context(), id, email, *req.Approve, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: b})
}

func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Bookings.ConfirmPayment(r.Context(), id, email)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if b.State != domain.BookingStateActive {
		// Legs are still pending with the provider.
		status = http.StatusAccepted
	}
	writeJSON(w, status, bookingResponse{Booking: b})
}

func (h *Handler) ConfirmPickup(w http.ResponseWriter, r *http.Request) {
	h.fileReport(w, r, false)
}

func (h *Handler) ConfirmReturn(w http.ResponseWriter, r *http.Request) {
	h.fileReport(w, r, true)
}

func (h *Handler) fileReport(w http.ResponseWriter, r *http.Request, isReturn bool) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	var req reportRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	confirm := h.svc.Bookings.ConfirmPickup
	if isReturn {
		confirm = h.svc.Bookings.ConfirmReturn
	}
	b, report, err := confirm(r.Context(), id, email, toReportInput(req.Notes, req.Damages, req.Photos))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResponse{Booking: b, Report: report})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Bookings.Cancel(r.Context(), id, email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: b})
}

func (h *Handler) RaiseDispute(w http.ResponseWriter, r *http.Request) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	var req disputeRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	b, report, err := h.svc.Disputes.RaiseDispute(r.Context(), id, email, toReportInput(req.Notes, req.Damages, req.Photos))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResponse{Booking: b, Report: report})
}

func (h *Handler) HasOpenDispute(w http.ResponseWriter, r *http.Request) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Bookings.GetBooking(r.Context(), id, email); err != nil {
		writeError(w, err)
		return
	}
	open, err := h.svc.Disputes.HasOpenDispute(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"open": open})
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	reports, err := h.svc.Disputes.ListReports(r.Context(), id, email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[domain.ConditionReport]{Items: reports, Total: int32(len(reports)), Page: 1})
}

func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	email, id, ok := h.bookingCall(w, r)
	if !ok {
		return
	}
	ref, err := h.svc.Bookings.ConversationRef(r.Context(), id, email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *Handler) bookingCall(w http.ResponseWriter, r *http.Request) (string, int32, bool) {
	email, ok := h.caller(w, r)
	if !ok {
		return "", 0, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return "", 0, false
	}
	return email, id, true
}
