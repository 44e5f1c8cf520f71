package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/domains/users/be/service"
	platformlogging "github.com/motorline/dealerdesk/platform/go/logging"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/problem"
)

// Handler wires the users service to its HTTP routes.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("users service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes returns the router for the users domain.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/invite", h.Invite)
	r.Get("/me", h.Me)
	r.Patch("/me", h.UpdateMe)
	r.Get("/{userId}", h.Get)
	r.Patch("/{userId}", h.Update)
	return r
}

type userResponse struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Role      string     `json:"role"`
	ReportsTo *uuid.UUID `json:"reportsTo"`
	Status    string     `json:"status"`
	Region    string     `json:"region"`
	Area      string     `json:"area"`
	CreatedAt string     `json:"createdAt"`
	UpdatedAt string     `json:"updatedAt"`
}

type inviteRequest struct {
	ExternalID string `json:"externalId"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Role       string `json:"role"`
	Region     string `json:"region"`
	Area       string `json:"area"`
}

type updateRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Status    *string `json:"status"`
	Region    *string `json:"region"`
	Area      *string `json:"area"`
}

type updateSelfRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
}

// List handles GET /.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	opts := service.ListOptions{
		Role:   queryParam(r, "role"),
		Status: queryParam(r, "status"),
		Region: queryParam(r, "region"),
		Area:   queryParam(r, "area"),
		Sort:   queryParam(r, "sort"),
	}
	if page := queryParam(r, "page"); page != nil {
		if v, err := strconv.Atoi(*page); err == nil {
			opts.Page = v
		}
	}
	if pageSize := queryParam(r, "pageSize"); pageSize != nil {
		if v, err := strconv.Atoi(*pageSize); err == nil {
			opts.PageSize = v
		}
	}

	result, err := h.svc.List(r.Context(), actor, opts)
	if err != nil {
		h.writeError(w, r, err, "usersList")
		return
	}

	items := make([]userResponse, 0, len(result.Users))
	for _, user := range result.Users {
		items = append(items, toUserResponse(user))
	}

	h.writeJSON(w, r, http.StatusOK, map[string]any{
		"items":      items,
		"page":       result.Page,
		"pageSize":   result.PageSize,
		"totalItems": result.TotalItems,
		"totalPages": result.TotalPages,
	})
}

// Invite handles POST /invite.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	var body inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeInvalidBody(w, r)
		return
	}

	created, err := h.svc.Invite(r.Context(), actor, service.InviteInput{
		ExternalID: body.ExternalID,
		Email:      body.Email,
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		Role:       body.Role,
		Region:     body.Region,
		Area:       body.Area,
	})
	if err != nil {
		h.writeError(w, r, err, "usersInvite")
		return
	}

	w.Header().Set("Location", "/api/v1/users/"+created.ID.String())
	h.writeJSON(w, r, http.StatusCreated, toUserResponse(created))
}

// Get handles GET /{userId}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.writeInvalidID(w, r)
		return
	}

	user, err := h.svc.Get(r.Context(), actor, id)
	if err != nil {
		h.writeError(w, r, err, "usersGet")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toUserResponse(user))
}

// Update handles PATCH /{userId}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.writeInvalidID(w, r)
		return
	}

	var body updateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeInvalidBody(w, r)
		return
	}

	updated, err := h.svc.Update(r.Context(), actor, id, service.UpdateInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
		Status:    body.Status,
		Region:    body.Region,
		Area:      body.Area,
	})
	if err != nil {
		h.writeError(w, r, err, "usersUpdate")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toUserResponse(updated))
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Me(r.Context(), actor)
	if err != nil {
		h.writeError(w, r, err, "usersMe")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toUserResponse(user))
}

// UpdateMe handles PATCH /me.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	var body updateSelfRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeInvalidBody(w, r)
		return
	}

	updated, err := h.svc.UpdateSelf(r.Context(), actor, service.UpdateSelfInput{
		FirstName: body.FirstName,
		LastName:  body.LastName,
	})
	if err != nil {
		h.writeError(w, r, err, "usersUpdateMe")
		return
	}

	h.writeJSON(w, r, http.StatusOK, toUserResponse(updated))
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
			Detail: "user not found",
		}
	case errors.Is(err, service.ErrConflict):
		details = problem.Details{
			Type:   problem.TypeConflict,
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "a user with this email or identity already exists",
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
		logger.Error("users operation failed", zap.Error(err))
	case details.Status == http.StatusNotFound:
		logger.Info("users resource not found", zap.Error(err))
	default:
		logger.Warn("users request rejected", zap.Error(err))
	}

	problem.Write(w, logger, details)
}

func (h *Handler) writeInvalidBody(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, h.loggerFrom(r.Context()), problem.Details{
		Type:   problem.TypeValidation,
		Title:  "Invalid request body",
		Status: http.StatusBadRequest,
		Detail: "request body must be valid JSON",
	})
}

func (h *Handler) writeInvalidID(w http.ResponseWriter, r *http.Request) {
	problem.Write(w, h.loggerFrom(r.Context()), problem.Details{
		Type:   problem.TypeValidation,
		Title:  "Validation failed",
		Status: http.StatusBadRequest,
		Detail: "userId must be a valid uuid",
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.loggerFrom(r.Context()).Error("encode users response", zap.Error(err))
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

func toUserResponse(user service.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		ReportsTo: user.ReportsTo,
		Status:    user.Status,
		Region:    user.Region,
		Area:      user.Area,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: user.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
