package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/domains/dealers/be/service"
	platformlogging "github.com/motorline/dealerdesk/platform/go/logging"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/problem"
)

// Handler wires the dealers service to its HTTP routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("dealers service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the router for the dealers domain.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/filters", h.FilterValues)
	r.Get("/{dealerId}", h.Get)
	r.Put("/{dealerId}/owner", h.Assign)
	r.Put("/{dealerId}/location", h.UpdateLocation)
	return r
}

type dealerResponse struct {
	ID        uuid.UUID  `json:"id"`
	OwnerID   *uuid.UUID `json:"ownerId"`
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Region    string     `json:"region"`
	Area      string     `json:"area"`
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Address   string     `json:"address"`
}

type createRequest struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Region  string     `json:"region"`
	Area    string     `json:"area"`
	OwnerID *uuid.UUID `json:"ownerId"`
}

type assignRequest struct {
	OwnerID *uuid.UUID `json:"ownerId"`
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// List handles GET /.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	opts := service.ListOptions{
		Region:     queryParam(r, "region"),
		Area:       queryParam(r, "area"),
		DealerType: queryParam(r, "type"),
	}
	if owner := queryParam(r, "ownerId"); owner != nil {
		id, err := uuid.Parse(*owner)
		if err != nil {
			h.writeProblem(w, r, problem.Details{
				Type:   problem.TypeValidation,
				Title:  "Validation failed",
				Status: http.StatusBadRequest,
				Detail: "ownerId must be a valid uuid",
			})
			return
		}
		opts.OwnerID = &id
	}
	if orphans := queryParam(r, "orphans"); orphans != nil && *orphans == "true" {
		opts.OrphansOnly = true
	}

	dealers, err := h.svc.List(r.Context(), actor, opts)
	if err != nil {
		h.writeError(w, r, err, "dealersList")
		return
	}

	items := make([]dealerResponse, 0, len(dealers))
	for _, dealer := range dealers {
		items = append(items, toDealerResponse(dealer))
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{"items": items})
}

// Create handles POST /.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	var body createRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeInvalidBody(w, r)
		return
	}

	created, err := h.svc.Create(r.Context(), actor, service.CreateInput{
		Name:    body.Name,
		Type:    body.Type,
		Region:  body.Region,
		Area:    body.Area,
		OwnerID: body.OwnerID,
	})
	if err != nil {
		h.writeError(w, r, err, "dealersCreate")
		return
	}

	w.Header().Set("Location", "/api/v1/dealers/"+created.ID.String())
	h.writeJSON(w, r, http.StatusCreated, toDealerResponse(created))
}

// FilterValues handles GET /filters.
func (h *Handler) FilterValues(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	values, err := h.svc.FilterValues(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err, "dealersFilterValues")
		return
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"regions": values.Regions,
		"areas":   values.Areas,
		"types":   values.Types,
	})
}

// Get handles GET /{dealerId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	id, ok := h.dealerID(w, r)
	if !ok {
		return
	}

	dealer, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err, "dealersGet")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toDealerResponse(dealer))
}

// Assign handles PUT /{dealerId}/owner. A null ownerId detaches the dealer.
func (h *Handler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	id, ok := h.dealerID(w, r)
	if !ok {
		return
	}

	var body assignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeInvalidBody(w, r)
		return
	}

	dealer, err := h.svc.Assign(r.Context(), actor, id, body.OwnerID)
	if err != nil {
		h.writeError(w, r, err, "dealersAssign")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toDealerResponse(dealer))
}

// UpdateLocation handles PUT /{dealerId}/location.
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	id, ok := h.dealerID(w, r)
	if !ok {
		return
	}

	var body locationRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeInvalidBody(w, r)
		return
	}

	dealer, err := h.svc.UpdateLocation(r.Context(), actor, id, body.Latitude, body.Longitude)
	if err != nil {
		h.writeError(w, r, err, "dealersUpdateLocation")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toDealerResponse(dealer))
}

func (h *Handler) dealerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "dealerId"))
	if err != nil {
		h.writeProblem(w, r, problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "dealerId must be a valid uuid",
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, r *http.Request) (principal.Principal, bool) {
	actor, ok := principal.FromContext(r.Context())
	if !ok {
		h.writeProblem(w, r, problem.Details{
			Type:   problem.TypeUnauthorized,
			Title:  "Unauthorized",
			Status: http.StatusUnauthorized,
		})
		return principal.Principal{}, false
	}
	return actor, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var validationErr *service.ValidationError

	var details problem.Details
	switch {
	case errors.As(err, &validationErr):
		details = problem.Details{
			Type:       problem.TypeValidation,
			Title:      "Validation failed",
			Status:     http.StatusBadRequest,
			Detail:     "one or more fields are invalid",
			Extensions: map[string]any{"errors": validationErr.Fields},
		}
	case errors.Is(err, service.ErrForbidden):
		details = problem.Details{
			Type:   problem.TypeForbidden,
			Title:  "Forbidden",
			Status: http.StatusForbidden,
			Detail: "role is not allowed to perform this operation",
		}
	case errors.Is(err, service.ErrDealerNotFound):
		details = problem.Details{
			Type:   problem.TypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "dealer not found",
		}
	case errors.Is(err, service.ErrUserNotFound):
		details = problem.Details{
			Type:   problem.TypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "owner not found",
		}
	default:
		details = problem.Details{
			Type:   problem.TypeInternal,
			Title:  "Internal server error",
			Status: http.StatusInternalServerError,
			Detail: "an unexpected error occurred",
		}
	}

	logger := h.loggerFrom(r.Context()).With(
		zap.String("operation", op),
		zap.Int("status", details.Status),
	)
	switch {
	case details.Status >= http.StatusInternalServerError:
		logger.Error("dealers operation failed", zap.Error(err))
	case details.Status == http.StatusNotFound:
		logger.Info("dealers resource not found", zap.Error(err))
	default:
		logger.Warn("dealers request rejected", zap.Error(err))
	}

	h.writeProblem(w, r, details)
}

func (h *Handler) writeInvalidBody(w http.ResponseWriter, r *http.Request) {
	h.writeProblem(w, r, problem.Details{
		Type:   problem.TypeValidation,
		Title:  "Invalid request body",
		Status: http.StatusBadRequest,
		Detail: "request body must be valid JSON",
	})
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, details problem.Details) {
	problem.Write(w, h.loggerFrom(r.Context()), details)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFrom(r.Context()).Error("encode dealers response", zap.Error(err))
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}

func queryParam(r *http.Request, name string) *string {
	if !r.URL.Query().Has(name) {
		return nil
	}
	v := r.URL.Query().Get(name)
	return &v
}

func toDealerResponse(dealer service.Dealer) dealerResponse {
	return dealerResponse{
		ID:        dealer.ID,
		OwnerID:   dealer.OwnerID,
		Name:      dealer.Name,
		Type:      dealer.Type,
		Region:    dealer.Region,
		Area:      dealer.Area,
		Latitude:  dealer.Latitude,
		Longitude: dealer.Longitude,
		Address:   dealer.Address,
	}
}
