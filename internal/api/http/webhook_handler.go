package http

import (
	"io"
	"net/http"

	"peer-rental-core/internal/domain"
	"peer-rental-core/internal/logger"
	"peer-rental-core/internal/provider"
)

// signedBody reads the body and checks the provider signature over it.
func (h *Handler) signedBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeStatus(w, http.StatusBadRequest, string(domain.KindValidation), "failed to read body")
		return nil, false
	}
	if err := provider.VerifySignature(h.webhookSecret, r.Header.Get(provider.SignatureHeader), body); err != nil {
		logger.WarnContext(r.Context(), "Rejected unsigned provider callback", "path", r.URL.Path)
		writeError(w, err)
		return nil, false
	}
	return body, true
}

func (h *Handler) ChargeWebhook(w http.ResponseWriter, r *http.Request) {
	body, ok := h.signedBody(w, r)
	if !ok {
		return
	}
	var req chargeWebhook
	if err := decode(body, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	err := h.svc.Bookings.OnChargeResult(r.Context(), domain.ChargeResultEvent{
		Token:       req.Token,
		BookingID:   req.BookingID,
		Leg:         domain.PaymentLegKind(req.Leg),
		Outcome:     domain.LegOutcome(req.Outcome),
		ProviderRef: req.ProviderRef,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) IdentityWebhook(w http.ResponseWriter, r *http.Request) {
	h.verificationWebhook(w, r, domain.VerificationKindIdentity)
}

func (h *Handler) PayoutWebhook(w http.ResponseWriter, r *http.Request) {
	h.verificationWebhook(w, r, domain.VerificationKindPayout)
}

func (h *Handler) verificationWebhook(w http.ResponseWriter, r *http.Request, kind domain.VerificationKind) {
	body, ok := h.signedBody(w, r)
	if !ok {
		return
	}
	var req verificationWebhook
	if err := decode(body, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	ev := domain.VerificationEvent{
		Token:   req.Token,
		Email:   req.Email,
		Kind:    kind,
		Outcome: domain.VerificationOutcome(req.Outcome),
	}
	apply := h.svc.Verification.OnIdentityStatus
	if kind == domain.VerificationKindPayout {
		apply = h.svc.Verification.OnPayoutStatus
	}
	if err := apply(r.Context(), ev); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResolveDispute is called by the arbitration collaborator, which signs its
// requests with the provider secret.
func (h *Handler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	body, ok := h.signedBody(w, r)
	if !ok {
		return
	}
	var req resolutionRequest
	if err := decode(body, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.svc.Disputes.ResolveDispute(r.Context(), id, req.Resolution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResponse{Booking: b})
}
