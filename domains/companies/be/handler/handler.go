package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/domains/companies/be/service"
	platformlogging "github.com/motorline/dealerdesk/platform/go/logging"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/problem"
)

// Handler wires the companies service to its HTTP routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("companies service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the router for the companies domain.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/profile", h.Profile)
	r.Patch("/profile", h.UpdateProfile)
	return r
}

type companyResponse struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Region string `json:"region"`
	Area   string `json:"area"`
}

type updateRequest struct {
	Name   *string `json:"name"`
	Region *string `json:"region"`
	Area   *string `json:"area"`
}

// Profile handles GET /profile.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	company, err := h.svc.Profile(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err, "companyProfile")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toCompanyResponse(company))
}

// UpdateProfile handles PATCH /profile.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problem.Write(w, h.loggerFrom(r.Context()), problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: "request body must be valid JSON",
		})
		return
	}

	company, err := h.svc.UpdateProfile(r.Context(), actor, service.UpdateInput{
		Name:   body.Name,
		Region: body.Region,
		Area:   body.Area,
	})
	if err != nil {
		h.writeError(w, r, err, "companyProfileUpdate")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toCompanyResponse(company))
}

func (h *Handler) requirePrincipal(w http.ResponseWriter, r *http.Request) (principal.Principal, bool) {
	actor, ok := principal.FromContext(r.Context())
	if !ok {
		problem.Write(w, h.loggerFrom(r.Context()), problem.Details{
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
	case errors.Is(err, service.ErrNotFound):
		details = problem.Details{
			Type:   problem.TypeNotFound,
			Title:  "Resource not found",
			Status: http.StatusNotFound,
			Detail: "company not found",
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
	if details.Status >= http.StatusInternalServerError {
		logger.Error("companies operation failed", zap.Error(err))
	} else {
		logger.Warn("companies request rejected", zap.Error(err))
	}

	problem.Write(w, logger, details)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFrom(r.Context()).Error("encode companies response", zap.Error(err))
	}
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}

func toCompanyResponse(company service.Company) companyResponse {
	return companyResponse{
		ID:     company.ID,
		Name:   company.Name,
		Region: company.Region,
		Area:   company.Area,
	}
}
