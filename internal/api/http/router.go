package http

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"peer-rental-core/internal/security"
	"peer-rental-core/internal/service"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	Auth           service.AuthService
	Users          service.UserService
	Verification   service.VerificationService
	PaymentMethods service.PaymentMethodService
	Items          service.ItemService
	Bookings       service.BookingService
	Disputes       service.DisputeService
	Relations      service.RelationService
	Notifications  service.NotificationService
}

type Handler struct {
	svc           Services
	validate      *validator.Validate
	webhookSecret string
}

var varsOf = mux.Vars

// NewRouter registers every route under its security name.
func NewRouter(svc Services, tm security.TokenManager, webhookSecret string) *mux.Router {
	h := &Handler{svc: svc, validate: validator.New(), webhookSecret: webhookSecret}
	auth := NewAuthMiddleware(tm)

	router := mux.NewRouter()
	router.Use(requestLogger, recoverer, auth.Middleware)

	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet).Name("health")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/auth/signup", h.Signup).Methods(http.MethodPost).Name("auth.signup")
	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost).Name("auth.login")
	api.HandleFunc("/auth/refresh", h.Refresh).Methods(http.MethodPost).Name("auth.refresh")

	api.HandleFunc("/me", h.GetMe).Methods(http.MethodGet).Name("me.get")
	api.HandleFunc("/me/intent", h.SetIntent).Methods(http.MethodPut).Name("me.intent")
	api.HandleFunc("/me/deactivate", h.Deactivate).Methods(http.MethodPost).Name("me.deactivate")
	api.HandleFunc("/me/verification", h.GetVerification).Methods(http.MethodGet).Name("me.verification")
	api.HandleFunc("/me/verification/identity", h.SubmitIdentity).Methods(http.MethodPost).Name("me.identity.submit")
	api.HandleFunc("/me/verification/payout", h.SubmitPayout).Methods(http.MethodPost).Name("me.payout.submit")
	api.HandleFunc("/me/payment-method", h.AttachPaymentMethod).Methods(http.MethodPut).Name("me.payment_method.attach")
	api.HandleFunc("/me/payment-method", h.DetachPaymentMethod).Methods(http.MethodDelete).Name("me.payment_method.detach")
	api.HandleFunc("/me/notifications", h.ListNotifications).Methods(http.MethodGet).Name("me.notifications")
	api.HandleFunc("/me/notifications/{id}/read", h.MarkNotificationRead).Methods(http.MethodPost).Name("me.notifications.read")

	api.HandleFunc("/items", h.CreateItem).Methods(http.MethodPost).Name("items.create")
	api.HandleFunc("/items/mine", h.ListMyItems).Methods(http.MethodGet).Name("items.mine")
	api.HandleFunc("/items/{id}", h.GetItem).Methods(http.MethodGet).Name("items.get")
	api.HandleFunc("/items/{id}/instant-booking", h.SetInstantBooking).Methods(http.MethodPut).Name("items.instant")
	api.HandleFunc("/items/{id}/availability", h.SetAvailability).Methods(http.MethodPut).Name("items.availability")

	api.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost).Name("bookings.create")
	api.HandleFunc("/bookings", h.ListBookings).Methods(http.MethodGet).Name("bookings.list")
	api.HandleFunc("/bookings/{id}", h.GetBooking).Methods(http.MethodGet).Name("bookings.get")
	api.HandleFunc("/bookings/{id}/decision", h.Decide).Methods(http.MethodPost).Name("bookings.decision")
	api.HandleFunc("/bookings/{id}/payment", h.ConfirmPayment).Methods(http.MethodPost).Name("bookings.payment")
	api.HandleFunc("/bookings/{id}/pickup", h.ConfirmPickup).Methods(http.MethodPost).Name("bookings.pickup")
	api.HandleFunc("/bookings/{id}/return", h.ConfirmReturn).Methods(http.MethodPost).Name("bookings.return")
	api.HandleFunc("/bookings/{id}/cancel", h.Cancel).Methods(http.MethodPost).Name("bookings.cancel")
	api.HandleFunc("/bookings/{id}/disputes", h.RaiseDispute).Methods(http.MethodPost).Name("bookings.disputes")
	api.HandleFunc("/bookings/{id}/disputes/open", h.HasOpenDispute).Methods(http.MethodGet).Name("bookings.dispute_open")
	api.HandleFunc("/bookings/{id}/reports", h.ListReports).Methods(http.MethodGet).Name("bookings.reports")
	api.HandleFunc("/bookings/{id}/conversation", h.Conversation).Methods(http.MethodGet).Name("bookings.conversation")

	api.HandleFunc("/relations", h.SetRelation).Methods(http.MethodPut).Name("relations.set")
	api.HandleFunc("/relations", h.ListRelations).Methods(http.MethodGet).Name("relations.list")

	router.HandleFunc("/webhooks/provider/charge", h.ChargeWebhook).Methods(http.MethodPost).Name("webhooks.charge")
	router.HandleFunc("/webhooks/provider/identity", h.IdentityWebhook).Methods(http.MethodPost).Name("webhooks.identity")
	router.HandleFunc("/webhooks/provider/payout", h.PayoutWebhook).Methods(http.MethodPost).Name("webhooks.payout")
	router.HandleFunc("/internal/v1/bookings/{id}/dispute/resolution", h.ResolveDispute).Methods(http.MethodPost).Name("arbitration.resolve")

	return router
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// caller returns the authenticated email or writes 401.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	email, ok := CallerEmail(r.Context())
	if !ok {
		writeStatus(w, http.StatusUnauthorized, "UNAUTHENTICATED", "caller is not authenticated")
	}
	return email, ok
}
