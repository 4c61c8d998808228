package payment

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/remixhub/remixhub-api/internal/middleware"
	"github.com/remixhub/remixhub-api/internal/pkg/response"
	"github.com/remixhub/remixhub-api/internal/pkg/upstream"
	"github.com/remixhub/remixhub-api/internal/pkg/validator"
)

// Handler handles payment HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates payment handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// CreatePix handles POST /payments/pix
func (h *Handler) CreatePix(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	email := middleware.GetUserEmail(r.Context())
	name := middleware.GetUserName(r.Context())

	var req CreatePixRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.CreatePixPayment(r.Context(), userID, email, name, req)
	if err != nil {
		var upErr *upstream.Error
		switch {
		case errors.Is(err, ErrInvalidQuantity):
			response.BadRequest(w, "Credit quantity must be at least 1")
		case errors.As(err, &upErr):
			response.BadGateway(w, "Payment provider error: "+upErr.Body)
		default:
			response.InternalError(w)
		}
		return
	}

	response.Created(w, result)
}

// Status handles GET /payments/{id}/status. Polling this endpoint drives the
// client side of reconciliation.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	status, err := h.service.CheckPayment(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			response.NotFound(w, "Payment not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, status)
}

// Cancel handles POST /payments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	err := h.service.Cancel(r.Context(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			response.NotFound(w, "Payment not found")
		case errors.Is(err, ErrConflict):
			response.Conflict(w, "Payment is already approved")
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]string{"status": "cancelled"})
}

// List handles GET /payments
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := 20
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}

	orders, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, orders)
}

// Webhook handles provider notifications. Always answers 200 so the provider
// does not retry forever; failures are logged and the poll path catches up.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	topic := query.Get("type")
	if topic == "" {
		topic = query.Get("topic")
	}

	providerPaymentID := query.Get("data.id")
	if providerPaymentID == "" {
		providerPaymentID = query.Get("id")
	}

	if err := h.service.HandleProviderNotification(r.Context(), topic, providerPaymentID); err != nil {
		log.Error().Err(err).
			Str("topic", topic).
			Str("provider_payment_id", providerPaymentID).
			Msg("webhook processing failed")
	}

	response.OK(w, map[string]string{"status": "received"})
}

// Routes returns the authenticated payment router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/pix", h.CreatePix)
		r.Get("/", h.List)
		r.Get("/{id}/status", h.Status)
		r.Post("/{id}/cancel", h.Cancel)
	})

	return r
}

// WebhookRoutes returns the unauthenticated webhook router. Mercado Pago
// sends both GET and POST notifications depending on the integration.
func (h *Handler) WebhookRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/mercadopago", h.Webhook)
	r.Post("/mercadopago", h.Webhook)

	return r
}
