package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/domains/hierarchy/be/repo"
	"github.com/motorline/dealerdesk/platform/go/cache"
	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

// usersCachePrefix tags the cached views invalidated by a reporting change.
const usersCachePrefix = "users"

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the reassignment input is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound  = errors.New("user not found")
	ErrForbidden = errors.New("operation not allowed for role")
)

// Member is the hierarchy view of a user record.
type Member struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Role      string
	Region    string
	Area      string
	ReportsTo *uuid.UUID
}

// ReassignInput describes the full desired reporting state around one user:
// who they report to and the exact set of users they manage afterwards.
type ReassignInput struct {
	UserID    uuid.UUID
	ReportsTo *uuid.UUID
	Manages   []uuid.UUID
}

// Service defines the business operations for the hierarchy domain.
type Service interface {
	Reassign(ctx context.Context, actor principal.Principal, input ReassignInput) error
	DirectReports(ctx context.Context, actor principal.Principal, managerID uuid.UUID) ([]Member, error)
}

type service struct {
	repo           repo.Repository
	invalidator    cache.Invalidator
	globalPrefixes cache.GlobalPrefixes
	logger         *zap.Logger
}

// New constructs a hierarchy Service instance. The invalidator drops cached
// tenant views after a successful mutation; pass cache.NopInvalidator{} to
// disable.
func New(r repo.Repository, invalidator cache.Invalidator, globalPrefixes cache.GlobalPrefixes, logger *zap.Logger) Service {
	if r == nil {
		panic("hierarchy repository is required")
	}
	if invalidator == nil {
		panic("cache invalidator is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &service{repo: r, invalidator: invalidator, globalPrefixes: globalPrefixes, logger: logger}
}

// Reassign validates the requested reporting change and applies it in one
// transaction. All checks run before any write: an actor below the permitted
// rank, an invalid shape, or a missing manager leaves the stored hierarchy
// untouched.
func (s *service) Reassign(ctx context.Context, actor principal.Principal, input ReassignInput) error {
	if !rbac.CanReassignReporting(actor.Role) {
		return ErrForbidden
	}

	fieldErrors := FieldErrors{}
	if input.UserID == uuid.Nil {
		fieldErrors.add("userId", "userId is required")
	}
	if input.ReportsTo != nil && *input.ReportsTo == input.UserID {
		fieldErrors.add("reportsTo", "a user cannot report to themselves")
	}

	manages := dedupe(input.Manages)
	for _, id := range manages {
		if id == uuid.Nil {
			fieldErrors.add("manages", "manages must not contain empty ids")
			break
		}
		if id == input.UserID {
			fieldErrors.add("manages", "a user cannot manage themselves")
			break
		}
		if input.ReportsTo != nil && id == *input.ReportsTo {
			fieldErrors.add("reportsTo", "the proposed manager cannot also be a direct report")
			break
		}
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}

	if input.ReportsTo != nil {
		manager, err := s.repo.GetUser(ctx, actor.CompanyID, *input.ReportsTo)
		if err != nil {
			if errors.Is(err, persistence.ErrUserNotFound) {
				return ErrNotFound
			}
			return err
		}
		if !rbac.CanAssignRole(actor.Role, rbac.ParseRole(manager.Role)) {
			return ErrForbidden
		}
	}

	if err := s.repo.ReassignReporting(ctx, actor.CompanyID, input.UserID, input.ReportsTo, manages); err != nil {
		switch {
		case errors.Is(err, persistence.ErrUserNotFound):
			return ErrNotFound
		case errors.Is(err, persistence.ErrReportingCycle):
			return &ValidationError{Fields: FieldErrors{
				"reportsTo": {"assigning this manager would create a reporting cycle"},
			}}
		default:
			return err
		}
	}

	s.invalidateUsers(ctx, actor.CompanyID)
	return nil
}

// DirectReports lists the users reporting to managerID within the actor's company.
func (s *service) DirectReports(ctx context.Context, actor principal.Principal, managerID uuid.UUID) ([]Member, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapHierarchyView) {
		return nil, ErrForbidden
	}
	if managerID == uuid.Nil {
		return nil, ErrNotFound
	}

	if _, err := s.repo.GetUser(ctx, actor.CompanyID, managerID); err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	records, err := s.repo.ListDirectReports(ctx, actor.CompanyID, managerID)
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(records))
	for _, record := range records {
		members = append(members, mapMember(record))
	}
	return members, nil
}

// invalidateUsers drops the tenant's cached user views. The hierarchy change
// already committed, so a cache failure is logged and swallowed; stale
// entries expire on their own TTL.
func (s *service) invalidateUsers(ctx context.Context, companyID int64) {
	tag := cache.Tag(usersCachePrefix, companyID, s.globalPrefixes)
	if err := s.invalidator.Invalidate(ctx, tag); err != nil {
		s.logger.Warn("cache invalidation failed",
			zap.String("tag", tag),
			zap.Error(err),
		)
	}
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func mapMember(record persistence.User) Member {
	return Member{
		ID:        record.UserID,
		FirstName: record.FirstName,
		LastName:  record.LastName,
		Email:     record.Email,
		Role:      record.Role,
		Region:    record.Region,
		Area:      record.Area,
		ReportsTo: record.ReportsTo,
	}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
