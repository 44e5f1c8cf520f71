package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/motorline/dealerdesk/platform/go/persistence"
	principalmw "github.com/motorline/dealerdesk/platform/go/principal/middleware"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

type mockRepository struct {
	getByExternalIDFn func(ctx context.Context, externalID string) (persistence.User, error)
}

func (m *mockRepository) GetByExternalID(ctx context.Context, externalID string) (persistence.User, error) {
	if m.getByExternalIDFn == nil {
		panic("getByExternalIDFn not configured")
	}
	return m.getByExternalIDFn(ctx, externalID)
}

func TestResolvePrincipalSuccess(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repository := &mockRepository{
		getByExternalIDFn: func(ctx context.Context, externalID string) (persistence.User, error) {
			require.Equal(t, "firebase-subject-1", externalID)
			return persistence.User{
				UserID:     userID,
				ExternalID: externalID,
				CompanyID:  42,
				Role:       "senior-manager",
				FirstName:  "Asha",
				LastName:   "Patel",
				Email:      "asha@example.com",
			}, nil
		},
	}

	svc := New(repository)

	p, err := svc.ResolvePrincipal(context.Background(), "firebase-subject-1")
	require.NoError(t, err)
	require.Equal(t, userID, p.UserID)
	require.Equal(t, int64(42), p.CompanyID)
	require.Equal(t, rbac.RoleSeniorManager, p.Role)
	require.Equal(t, "asha@example.com", p.Email)
}

func TestResolvePrincipalUnknownRoleStaysUnknown(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		getByExternalIDFn: func(ctx context.Context, externalID string) (persistence.User, error) {
			return persistence.User{
				UserID:    uuid.New(),
				CompanyID: 7,
				Role:      "intergalactic-overlord",
			}, nil
		},
	}

	svc := New(repository)

	p, err := svc.ResolvePrincipal(context.Background(), "subject")
	require.NoError(t, err)
	require.Equal(t, rbac.RoleUnknown, p.Role)
	require.False(t, p.Role.Known())
}

func TestResolvePrincipalNoLocalUser(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		getByExternalIDFn: func(ctx context.Context, externalID string) (persistence.User, error) {
			return persistence.User{}, persistence.ErrUserNotFound
		},
	}

	svc := New(repository)

	_, err := svc.ResolvePrincipal(context.Background(), "ghost")
	require.ErrorIs(t, err, principalmw.ErrNoLocalUser)
}

func TestResolvePrincipalEmptySubject(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	_, err := svc.ResolvePrincipal(context.Background(), "   ")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolvePrincipalInfrastructureErrorPassesThrough(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	repository := &mockRepository{
		getByExternalIDFn: func(ctx context.Context, externalID string) (persistence.User, error) {
			return persistence.User{}, boom
		},
	}

	svc := New(repository)

	_, err := svc.ResolvePrincipal(context.Background(), "subject")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, principalmw.ErrNoLocalUser)
}
