package http

import (
	"context"
	"net/http"

	"peer-rental-core/internal/domain"
)

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req createItemRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.svc.Items.CreateItem(r.Context(), &domain.Item{
		OwnerEmail:            email,
		Name:                  req.Name,
		Description:           req.Description,
		DailyRateCents:        req.DailyRateCents,
		DepositCents:          req.DepositCents,
		MinRentalDays:         req.MinRentalDays,
		MaxRentalDays:         req.MaxRentalDays,
		InstantBookingEnabled: req.InstantBooking,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) ListMyItems(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	items, err := h.svc.Items.ListMyItems(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[domain.Item]{Items: items, Total: int32(len(items)), Page: 1})
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	item, err := h.svc.Items.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) SetInstantBooking(w http.ResponseWriter, r *http.Request) {
	h.toggleItem(w, r, h.svc.Items.SetInstantBooking)
}

func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	h.toggleItem(w, r, h.svc.Items.SetAvailability)
}

type itemToggle func(ctx context.Context, itemID int32, ownerEmail string, enabled bool) (*domain.Item, error)

func (h *Handler) toggleItem(w http.ResponseWriter, r *http.Request, toggle itemToggle) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req toggleRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	item, err := toggle(r.Context(), id, email, *req.Enabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
