package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

type mockRepository struct {
	getFn    func(ctx context.Context, id int64) (persistence.Company, error)
	updateFn func(ctx context.Context, id int64, params persistence.UpdateCompanyParams) (persistence.Company, error)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (persistence.Company, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, id)
}

func (m *mockRepository) Update(ctx context.Context, id int64, params persistence.UpdateCompanyParams) (persistence.Company, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, id, params)
}

func actorWithRole(role rbac.Role) principal.Principal {
	return principal.Principal{
		UserID:    uuid.New(),
		CompanyID: 42,
		Role:      role,
	}
}

func TestProfileVisibleToAllKnownRoles(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		getFn: func(ctx context.Context, id int64) (persistence.Company, error) {
			require.Equal(t, int64(42), id)
			return persistence.Company{CompanyID: id, CompanyName: "North Motors Group"}, nil
		},
	}
	svc := New(repository)

	company, err := svc.Profile(context.Background(), actorWithRole(rbac.RoleSeniorExecutive))
	require.NoError(t, err)
	require.Equal(t, "North Motors Group", company.Name)
}

func TestProfileForbiddenForUnknownRole(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		getFn: func(ctx context.Context, id int64) (persistence.Company, error) {
			return persistence.Company{CompanyID: id}, nil
		},
	}
	svc := New(repository)

	// Unknown roles fall back to the executive set, which can still view.
	_, err := svc.Profile(context.Background(), actorWithRole(rbac.RoleUnknown))
	require.NoError(t, err)
}

func TestUpdateProfilePresidentOnly(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	name := "Renamed"
	for _, role := range []rbac.Role{rbac.RoleSeniorGeneralManager, rbac.RoleManager, rbac.RoleSeniorExecutive} {
		_, err := svc.UpdateProfile(context.Background(), actorWithRole(role), UpdateInput{Name: &name})
		require.ErrorIs(t, err, ErrForbidden, "role %s", role)
	}
}

func TestUpdateProfileSuccess(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		updateFn: func(ctx context.Context, id int64, params persistence.UpdateCompanyParams) (persistence.Company, error) {
			require.Equal(t, int64(42), id)
			require.NotNil(t, params.CompanyName)
			require.Equal(t, "North Motors Group", *params.CompanyName)
			return persistence.Company{CompanyID: id, CompanyName: *params.CompanyName}, nil
		},
	}
	svc := New(repository)

	name := "  North Motors Group "
	company, err := svc.UpdateProfile(context.Background(), actorWithRole(rbac.RolePresident), UpdateInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "North Motors Group", company.Name)
}

func TestUpdateProfileRequiresAField(t *testing.T) {
	t.Parallel()

	svc := New(&mockRepository{})

	_, err := svc.UpdateProfile(context.Background(), actorWithRole(rbac.RolePresident), UpdateInput{})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "payload")
}

func TestProfileNotFound(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		getFn: func(ctx context.Context, id int64) (persistence.Company, error) {
			return persistence.Company{}, persistence.ErrCompanyNotFound
		},
	}
	svc := New(repository)

	_, err := svc.Profile(context.Background(), actorWithRole(rbac.RolePresident))
	require.ErrorIs(t, err, ErrNotFound)
}
