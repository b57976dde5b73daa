package http

import (
	"net/http"

	"peer-rental-core/internal/domain"
)

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	user, access, refresh, err := h.svc.Auth.Signup(r.Context(), req.Email, req.Password, req.Name, domain.UserIntent(req.Intent))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: access, RefreshToken: refresh, User: user})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	access, refresh, err := h.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh})
}

// Refresh expects the refresh token as the bearer credential.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	access, refresh, err := h.svc.Auth.RefreshToken(r.Context(), rawToken(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	user, err := h.svc.Users.GetProfile(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) SetIntent(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req intentRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.svc.Users.SetIntent(r.Context(), email, domain.UserIntent(req.Intent))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.svc.Users.Deactivate(r.Context(), email); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetVerification(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	user, err := h.svc.Verification.GetVerification(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity_verification": user.IdentityVerification,
		"payout_verification":   user.PayoutVerification,
		"has_payment_method":    user.HasPaymentMethod,
	})
}

func (h *Handler) SubmitIdentity(w http.ResponseWriter, r *http.Request) {
	h.submitVerification(w, r, domain.VerificationKindIdentity)
}

func (h *Handler) SubmitPayout(w http.ResponseWriter, r *http.Request) {
	h.submitVerification(w, r, domain.VerificationKindPayout)
}

func (h *Handler) submitVerification(w http.ResponseWriter, r *http.Request, kind domain.VerificationKind) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	submit := h.svc.Verification.SubmitIdentity
	if kind == domain.VerificationKindPayout {
		submit = h.svc.Verification.SubmitPayout
	}
	user, session, err := submit(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"status": user.Verification(kind)}
	if session != nil {
		resp["session"] = session
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) AttachPaymentMethod(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req paymentMethodRequest
	if err := bind(r, &req, h.validate); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.svc.PaymentMethods.AttachPaymentMethod(r.Context(), email, req.ProviderRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) DetachPaymentMethod(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	user, err := h.svc.PaymentMethods.DetachPaymentMethod(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	page := queryInt(r, "page", 1)
	notes, total, err := h.svc.Notifications.GetNotifications(r.Context(), email, page, queryInt(r, "page_size", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse[domain.Notification]{Items: notes, Total: total, Page: page})
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	email, ok := h.caller(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.Notifications.MarkAsRead(r.Context(), email, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
