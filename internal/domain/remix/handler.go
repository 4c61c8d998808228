package remix

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/remixhub/remixhub-api/internal/domain/credit"
	"github.com/remixhub/remixhub-api/internal/middleware"
	"github.com/remixhub/remixhub-api/internal/pkg/response"
	"github.com/remixhub/remixhub-api/internal/pkg/upstream"
	"github.com/remixhub/remixhub-api/internal/pkg/validator"
)

// Handler handles remix HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates remix handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /remixes. Runs the copy synchronously and returns the
// terminal result.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateRemixRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	if errs := validator.Validate(req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.Create(r.Context(), userID, req)
	if err != nil {
		h.writeCreateError(w, err)
		return
	}

	response.Created(w, result)
}

func (h *Handler) writeCreateError(w http.ResponseWriter, err error) {
	var upErr *upstream.Error

	switch {
	case errors.Is(err, ErrInvalidRepoURL):
		response.BadRequest(w, "Invalid GitHub repository URL")
	case errors.Is(err, ErrMissingToken):
		response.BadRequest(w, "A destination token is required for cross-account remixes")
	case errors.Is(err, ErrRateLimited):
		response.TooManyRequests(w)
	case errors.Is(err, credit.ErrInsufficientCredits):
		response.PaymentRequired(w, "Not enough credits, purchase more to remix")
	case errors.Is(err, ErrSourceNotFound):
		response.NotFound(w, "Source repository not found or token lacks access")
	case errors.Is(err, ErrDestinationUnavailable):
		response.BadGateway(w, "Destination repository could not be created")
	case errors.As(err, &upErr):
		response.BadGateway(w, "GitHub API error: "+upErr.Body)
	default:
		response.InternalError(w)
	}
}

// Get handles GET /remixes/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	id := chi.URLParam(r, "id")

	record, err := h.service.GetByID(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(w, "Remix not found")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, record)
}

// List handles GET /remixes
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

	records, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, records)
}

// Routes returns remix router
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
	})

	return r
}
