package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/domains/users/be/repo"
	"github.com/motorline/dealerdesk/platform/go/cache"
	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

const usersCachePrefix = "users"

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound  = errors.New("user not found")
	ErrConflict  = errors.New("user conflict")
	ErrForbidden = errors.New("operation not allowed for role")
)

// User represents the domain view of a user record.
type User struct {
	ID        uuid.UUID
	Email     string
	FirstName string
	LastName  string
	Role      string
	ReportsTo *uuid.UUID
	Status    string
	Region    string
	Area      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListOptions controls filtering and pagination.
type ListOptions struct {
	Role     *string
	Status   *string
	Region   *string
	Area     *string
	Page     int
	PageSize int
	Sort     *string
}

// ListResult wraps a page of users with pagination metadata.
type ListResult struct {
	Users      []User
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// InviteInput represents the payload required to invite a new user. The
// external id links the invite to the identity-provider account once the
// invitee signs in.
type InviteInput struct {
	ExternalID string
	Email      string
	FirstName  string
	LastName   string
	Role       string
	Region     string
	Area       string
}

// UpdateInput encapsulates fields that administrators can modify.
type UpdateInput struct {
	FirstName *string
	LastName  *string
	Status    *string
	Region    *string
	Area      *string
}

// UpdateSelfInput encapsulates fields that the authenticated user can modify.
type UpdateSelfInput struct {
	FirstName *string
	LastName  *string
}

// Service defines the business operations for the users domain. Every
// operation receives the resolved principal; company scoping and permission
// checks derive from it.
type Service interface {
	List(ctx context.Context, actor principal.Principal, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, actor principal.Principal, id uuid.UUID) (User, error)
	Invite(ctx context.Context, actor principal.Principal, input InviteInput) (User, error)
	Update(ctx context.Context, actor principal.Principal, id uuid.UUID, input UpdateInput) (User, error)
	Me(ctx context.Context, actor principal.Principal) (User, error)
	UpdateSelf(ctx context.Context, actor principal.Principal, input UpdateSelfInput) (User, error)
}

type service struct {
	repo           repo.Repository
	invalidator    cache.Invalidator
	globalPrefixes cache.GlobalPrefixes
	logger         *zap.Logger
}

// New constructs a users Service instance backed by the provided repository.
func New(r repo.Repository, invalidator cache.Invalidator, globalPrefixes cache.GlobalPrefixes, logger *zap.Logger) Service {
	if r == nil {
		panic("users repository is required")
	}
	if invalidator == nil {
		panic("cache invalidator is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &service{repo: r, invalidator: invalidator, globalPrefixes: globalPrefixes, logger: logger}
}

func (s *service) List(ctx context.Context, actor principal.Principal, opts ListOptions) (ListResult, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapUsersList) {
		return ListResult{}, ErrForbidden
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	sortValue, sortErr := sanitizeSort(opts.Sort)
	if sortErr != nil {
		return ListResult{}, sortErr
	}

	repoParams := persistence.ListUsersParams{
		Page:     page,
		PageSize: pageSize,
		Sort:     sortValue,
		Role:     trimmed(opts.Role),
		Status:   trimmed(opts.Status),
		Region:   trimmed(opts.Region),
		Area:     trimmed(opts.Area),
	}

	result, err := s.repo.List(ctx, actor.CompanyID, repoParams)
	if err != nil {
		return ListResult{}, err
	}

	users := make([]User, 0, len(result.Users))
	for _, record := range result.Users {
		users = append(users, mapUser(record))
	}

	totalPages := 0
	if result.TotalItems > 0 {
		totalPages = (result.TotalItems + pageSize - 1) / pageSize
	}

	return ListResult{
		Users:      users,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: totalPages,
	}, nil
}

func (s *service) Get(ctx context.Context, actor principal.Principal, id uuid.UUID) (User, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapUsersList) {
		return User{}, ErrForbidden
	}
	if id == uuid.Nil {
		return User{}, ErrNotFound
	}

	record, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}

	return mapUser(record), nil
}

func (s *service) Invite(ctx context.Context, actor principal.Principal, input InviteInput) (User, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapUsersInvite) {
		return User{}, ErrForbidden
	}

	fieldErrors := FieldErrors{}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		fieldErrors.add("email", "email is required")
	} else if !strings.Contains(email, "@") {
		fieldErrors.add("email", "email must contain '@'")
	}

	externalID := strings.TrimSpace(input.ExternalID)
	if externalID == "" {
		fieldErrors.add("externalId", "externalId is required")
	}

	firstName := strings.TrimSpace(input.FirstName)
	if firstName == "" {
		fieldErrors.add("firstName", "firstName is required")
	}

	role := rbac.ParseRole(strings.TrimSpace(input.Role))
	if !role.Known() {
		fieldErrors.add("role", fmt.Sprintf("unknown role %q", input.Role))
	}

	if len(fieldErrors) > 0 {
		return User{}, &ValidationError{Fields: fieldErrors}
	}

	// Nobody hands out a role above their own.
	if role.Outranks(actor.Role) {
		return User{}, ErrForbidden
	}

	record, err := s.repo.Create(ctx, persistence.CreateUserParams{
		UserID:     uuid.New(),
		ExternalID: externalID,
		CompanyID:  actor.CompanyID,
		Role:       role.String(),
		FirstName:  firstName,
		LastName:   strings.TrimSpace(input.LastName),
		Email:      strings.ToLower(email),
		Status:     "pending",
		Region:     strings.TrimSpace(input.Region),
		Area:       strings.TrimSpace(input.Area),
	})
	if err != nil {
		return User{}, mapPersistenceError(err)
	}

	s.invalidateUsers(ctx, actor.CompanyID)
	return mapUser(record), nil
}

func (s *service) Update(ctx context.Context, actor principal.Principal, id uuid.UUID, input UpdateInput) (User, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapUsersEdit) {
		return User{}, ErrForbidden
	}
	if id == uuid.Nil {
		return User{}, ErrNotFound
	}

	params, err := buildUpdateParams(input)
	if err != nil {
		return User{}, err
	}

	record, repoErr := s.repo.Update(ctx, actor.CompanyID, id, params)
	if repoErr != nil {
		return User{}, mapPersistenceError(repoErr)
	}

	s.invalidateUsers(ctx, actor.CompanyID)
	return mapUser(record), nil
}

func (s *service) Me(ctx context.Context, actor principal.Principal) (User, error) {
	record, err := s.repo.Get(ctx, actor.CompanyID, actor.UserID)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}

	return mapUser(record), nil
}

func (s *service) UpdateSelf(ctx context.Context, actor principal.Principal, input UpdateSelfInput) (User, error) {
	params, err := buildUpdateParams(UpdateInput{
		FirstName: input.FirstName,
		LastName:  input.LastName,
	})
	if err != nil {
		return User{}, err
	}

	record, repoErr := s.repo.Update(ctx, actor.CompanyID, actor.UserID, params)
	if repoErr != nil {
		return User{}, mapPersistenceError(repoErr)
	}

	s.invalidateUsers(ctx, actor.CompanyID)
	return mapUser(record), nil
}

func (s *service) invalidateUsers(ctx context.Context, companyID int64) {
	tag := cache.Tag(usersCachePrefix, companyID, s.globalPrefixes)
	if err := s.invalidator.Invalidate(ctx, tag); err != nil {
		s.logger.Warn("cache invalidation failed",
			zap.String("tag", tag),
			zap.Error(err),
		)
	}
}

func buildUpdateParams(input UpdateInput) (persistence.UpdateUserParams, error) {
	fieldErrors := FieldErrors{}
	params := persistence.UpdateUserParams{}
	fieldsSet := 0

	addField := func(name string, value *string, into **string, allowEmpty bool) {
		if value == nil {
			return
		}
		v := strings.TrimSpace(*value)
		if v == "" && !allowEmpty {
			fieldErrors.add(name, name+" cannot be empty")
			return
		}
		*into = &v
		fieldsSet++
	}

	addField("firstName", input.FirstName, &params.FirstName, false)
	addField("lastName", input.LastName, &params.LastName, true)
	addField("status", input.Status, &params.Status, false)
	addField("region", input.Region, &params.Region, true)
	addField("area", input.Area, &params.Area, true)

	if fieldsSet == 0 && len(fieldErrors) == 0 {
		fieldErrors.add("payload", "at least one field must be provided")
	}

	if len(fieldErrors) > 0 {
		return persistence.UpdateUserParams{}, &ValidationError{Fields: fieldErrors}
	}

	return params, nil
}

func sanitizeSort(sort *string) (*string, error) {
	if sort == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*sort)
	if trimmed == "" {
		return nil, nil
	}

	allowed := map[string]struct{}{
		"firstName": {},
		"lastName":  {},
		"email":     {},
		"role":      {},
		"region":    {},
		"area":      {},
		"createdAt": {},
		"updatedAt": {},
	}

	for _, raw := range strings.Split(trimmed, ",") {
		field := strings.TrimSpace(raw)
		if field == "" {
			continue
		}
		field = strings.TrimPrefix(field, "-")
		if _, ok := allowed[field]; !ok {
			return nil, &ValidationError{Fields: FieldErrors{
				"sort": {fmt.Sprintf("unsupported sort field %q", field)},
			}}
		}
	}

	return &trimmed, nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

func mapUser(record persistence.User) User {
	return User{
		ID:        record.UserID,
		Email:     record.Email,
		FirstName: record.FirstName,
		LastName:  record.LastName,
		Role:      record.Role,
		ReportsTo: record.ReportsTo,
		Status:    record.Status,
		Region:    record.Region,
		Area:      record.Area,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrUserNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrUserConflict):
		return ErrConflict
	default:
		return err
	}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
