package service

import (
	"context"
	"errors"
	"strings"

	"github.com/motorline/dealerdesk/domains/identity/be/repo"
	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/principal"
	principalmw "github.com/motorline/dealerdesk/platform/go/principal/middleware"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

// ErrUnauthorized is returned when the caller presented no usable subject id.
var ErrUnauthorized = errors.New("missing subject id")

// Service resolves identity-provider subjects to tenant principals. It
// satisfies the principal middleware's Resolver interface.
type Service interface {
	ResolvePrincipal(ctx context.Context, subjectID string) (principal.Principal, error)
}

type service struct {
	repo repo.Repository
}

// New constructs an identity Service instance backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("identity repository is required")
	}
	return &service{repo: r}
}

// ResolvePrincipal looks up the local user record for the subject and derives
// the tenant-scoped principal from it. The subject id is the only piece of
// client-supplied identity that is trusted; company and role always come from
// the stored record.
func (s *service) ResolvePrincipal(ctx context.Context, subjectID string) (principal.Principal, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return principal.Principal{}, ErrUnauthorized
	}

	record, err := s.repo.GetByExternalID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, persistence.ErrUserNotFound) {
			return principal.Principal{}, principalmw.ErrNoLocalUser
		}
		return principal.Principal{}, err
	}

	return principal.Principal{
		UserID:    record.UserID,
		CompanyID: record.CompanyID,
		Role:      rbac.ParseRole(record.Role),
		FirstName: record.FirstName,
		LastName:  record.LastName,
		Email:     record.Email,
	}, nil
}
