package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/domains/hierarchy/be/service"
	platformlogging "github.com/motorline/dealerdesk/platform/go/logging"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/problem"
)

// Handler wires the hierarchy service to its HTTP routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("hierarchy service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the router for the hierarchy domain.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/reassign", h.Reassign)
	r.Get("/{userId}/reports", h.DirectReports)
	return r
}

type reassignRequest struct {
	UserID    uuid.UUID   `json:"userId"`
	ReportsTo *uuid.UUID  `json:"reportsTo"`
	Manages   []uuid.UUID `json:"manages"`
}

type memberResponse struct {
	ID        uuid.UUID  `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Region    string     `json:"region"`
	Area      string     `json:"area"`
	ReportsTo *uuid.UUID `json:"reportsTo"`
}

// Reassign handles POST /reassign.
func (h *Handler) Reassign(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal.FromContext(r.Context())
	if !ok {
		h.writeProblem(w, r, problem.Details{
			Type:   problem.TypeUnauthorized,
			Title:  "Unauthorized",
			Status: http.StatusUnauthorized,
		})
		return
	}

	var body reassignRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeProblem(w, r, problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Invalid request body",
			Status: http.StatusBadRequest,
			Detail: "request body must be valid JSON",
		})
		return
	}

	err := h.svc.Reassign(r.Context(), actor, service.ReassignInput{
		UserID:    body.UserID,
		ReportsTo: body.ReportsTo,
		Manages:   body.Manages,
	})
	if err != nil {
		h.writeError(w, r, err, "hierarchyReassign")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DirectReports handles GET /{userId}/reports.
func (h *Handler) DirectReports(w http.ResponseWriter, r *http.Request) {
	actor, ok := principal.FromContext(r.Context())
	if !ok {
		h.writeProblem(w, r, problem.Details{
			Type:   problem.TypeUnauthorized,
			Title:  "Unauthorized",
			Status: http.StatusUnauthorized,
		})
		return
	}

	managerID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.writeProblem(w, r, problem.Details{
			Type:   problem.TypeValidation,
			Title:  "Validation failed",
			Status: http.StatusBadRequest,
			Detail: "userId must be a valid uuid",
		})
		return
	}

	members, err := h.svc.DirectReports(r.Context(), actor, managerID)
	if err != nil {
		h.writeError(w, r, err, "hierarchyDirectReports")
		return
	}

	items := make([]memberResponse, 0, len(members))
	for _, member := range members {
		items = append(items, memberResponse(member))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"items": items}); err != nil {
		h.loggerFrom(r.Context()).Error("encode direct reports response", zap.Error(err))
	}
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
			Detail: "user not found",
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
		logger.Error("hierarchy operation failed", zap.Error(err))
	case details.Status == http.StatusNotFound:
		logger.Info("hierarchy resource not found", zap.Error(err))
	default:
		logger.Warn("hierarchy request rejected", zap.Error(err))
	}

	h.writeProblem(w, r, details)
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, details problem.Details) {
	problem.Write(w, h.loggerFrom(r.Context()), details)
}

func (h *Handler) loggerFrom(ctx context.Context) *zap.Logger {
	if logger, ok := platformlogging.FromContext(ctx); ok {
		return logger
	}
	return h.logger
}
