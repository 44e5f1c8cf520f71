package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/platform/go/cache"
	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

type mockRepository struct {
	getUserFn           func(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error)
	listDirectReportsFn func(ctx context.Context, companyID int64, managerID uuid.UUID) ([]persistence.User, error)
	reassignFn          func(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error
}

func (m *mockRepository) GetUser(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
	if m.getUserFn == nil {
		panic("getUserFn not configured")
	}
	return m.getUserFn(ctx, companyID, id)
}

func (m *mockRepository) ListDirectReports(ctx context.Context, companyID int64, managerID uuid.UUID) ([]persistence.User, error) {
	if m.listDirectReportsFn == nil {
		panic("listDirectReportsFn not configured")
	}
	return m.listDirectReportsFn(ctx, companyID, managerID)
}

func (m *mockRepository) ReassignReporting(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
	if m.reassignFn == nil {
		panic("reassignFn not configured")
	}
	return m.reassignFn(ctx, companyID, userID, reportsTo, manages)
}

type recordingInvalidator struct {
	tags []string
	err  error
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, tag string) error {
	r.tags = append(r.tags, tag)
	return r.err
}

func actorWithRole(role rbac.Role) principal.Principal {
	return principal.Principal{
		UserID:    uuid.New(),
		CompanyID: 42,
		Role:      role,
	}
}

func newTestService(r *mockRepository, inv cache.Invalidator) Service {
	return New(r, inv, cache.NewGlobalPrefixes("technical-sites"), zap.NewNop())
}

func TestReassignForbiddenRoleLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		reassignFn: func(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
			t.Fatal("reassign must not be called for a forbidden role")
			return nil
		},
	}
	invalidator := &recordingInvalidator{}
	svc := newTestService(repository, invalidator)

	for _, role := range []rbac.Role{rbac.RoleAssistantManager, rbac.RoleManager, rbac.RoleSeniorExecutive, rbac.RoleUnknown} {
		err := svc.Reassign(context.Background(), actorWithRole(role), ReassignInput{
			UserID: uuid.New(),
		})
		require.ErrorIs(t, err, ErrForbidden, "role %s", role)
	}
	require.Empty(t, invalidator.tags)
}

func TestReassignValidationSelfReport(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	userID := uuid.New()
	err := svc.Reassign(context.Background(), actorWithRole(rbac.RoleSeniorManager), ReassignInput{
		UserID:    userID,
		ReportsTo: &userID,
	})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "reportsTo")
}

func TestReassignValidationSelfManage(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	userID := uuid.New()
	err := svc.Reassign(context.Background(), actorWithRole(rbac.RolePresident), ReassignInput{
		UserID:  userID,
		Manages: []uuid.UUID{uuid.New(), userID},
	})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "manages")
}

func TestReassignRejectsManagerInsideManages(t *testing.T) {
	t.Parallel()

	// Accepting this shape would commit a two-node loop: the attach step
	// would point the manager at the user and the rebind would point the
	// user back at the manager.
	repository := &mockRepository{
		getUserFn: func(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
			t.Fatal("manager lookup must not run for an invalid shape")
			return persistence.User{}, nil
		},
		reassignFn: func(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
			t.Fatal("reassign must not run for an invalid shape")
			return nil
		},
	}
	svc := newTestService(repository, &recordingInvalidator{})

	managerID := uuid.New()
	err := svc.Reassign(context.Background(), actorWithRole(rbac.RoleSeniorManager), ReassignInput{
		UserID:    uuid.New(),
		ReportsTo: &managerID,
		Manages:   []uuid.UUID{managerID},
	})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "reportsTo")
}

func TestReassignValidationMissingUserID(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	err := svc.Reassign(context.Background(), actorWithRole(rbac.RoleSeniorManager), ReassignInput{})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "userId")
}

func TestReassignManagerRankGate(t *testing.T) {
	t.Parallel()

	managerID := uuid.New()

	makeRepo := func(managerRole string) *mockRepository {
		return &mockRepository{
			getUserFn: func(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
				require.Equal(t, int64(42), companyID)
				require.Equal(t, managerID, id)
				return persistence.User{UserID: id, CompanyID: companyID, Role: managerRole}, nil
			},
			reassignFn: func(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
				return nil
			},
		}
	}

	// A senior manager may install a general manager (higher rank) as a manager.
	svc := newTestService(makeRepo("general-manager"), &recordingInvalidator{})
	err := svc.Reassign(context.Background(), actorWithRole(rbac.RoleSeniorManager), ReassignInput{
		UserID:    uuid.New(),
		ReportsTo: &managerID,
	})
	require.NoError(t, err)

	// But not an assistant manager (lower rank).
	blocked := &mockRepository{
		getUserFn: makeRepo("assistant-manager").getUserFn,
		reassignFn: func(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
			t.Fatal("reassign must not run when the manager rank check fails")
			return nil
		},
	}
	svc = newTestService(blocked, &recordingInvalidator{})
	err = svc.Reassign(context.Background(), actorWithRole(rbac.RoleSeniorManager), ReassignInput{
		UserID:    uuid.New(),
		ReportsTo: &managerID,
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestReassignManagerNotFound(t *testing.T) {
	t.Parallel()

	managerID := uuid.New()
	repository := &mockRepository{
		getUserFn: func(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
			return persistence.User{}, persistence.ErrUserNotFound
		},
	}
	svc := newTestService(repository, &recordingInvalidator{})

	err := svc.Reassign(context.Background(), actorWithRole(rbac.RoleGeneralManager), ReassignInput{
		UserID:    uuid.New(),
		ReportsTo: &managerID,
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReassignDeduplicatesManagesAndInvalidatesCache(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	a, b := uuid.New(), uuid.New()

	repository := &mockRepository{
		reassignFn: func(ctx context.Context, companyID int64, target uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
			require.Equal(t, int64(42), companyID)
			require.Equal(t, userID, target)
			require.Nil(t, reportsTo)
			require.ElementsMatch(t, []uuid.UUID{a, b}, manages)
			return nil
		},
	}
	invalidator := &recordingInvalidator{}
	svc := newTestService(repository, invalidator)

	err := svc.Reassign(context.Background(), actorWithRole(rbac.RolePresident), ReassignInput{
		UserID:  userID,
		Manages: []uuid.UUID{a, b, a, b, a},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"users-42"}, invalidator.tags)
}

func TestReassignCycleMapsToValidationError(t *testing.T) {
	t.Parallel()

	managerID := uuid.New()
	repository := &mockRepository{
		getUserFn: func(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
			return persistence.User{UserID: id, CompanyID: companyID, Role: "president"}, nil
		},
		reassignFn: func(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
			return persistence.ErrReportingCycle
		},
	}
	invalidator := &recordingInvalidator{}
	svc := newTestService(repository, invalidator)

	err := svc.Reassign(context.Background(), actorWithRole(rbac.RoleSeniorManager), ReassignInput{
		UserID:    uuid.New(),
		ReportsTo: &managerID,
	})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "reportsTo")
	require.Empty(t, invalidator.tags)
}

func TestReassignCacheFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		reassignFn: func(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
			return nil
		},
	}
	invalidator := &recordingInvalidator{err: errors.New("redis down")}
	svc := newTestService(repository, invalidator)

	err := svc.Reassign(context.Background(), actorWithRole(rbac.RoleSeniorManager), ReassignInput{
		UserID: uuid.New(),
	})
	require.NoError(t, err)
	require.Len(t, invalidator.tags, 1)
}

func TestDirectReports(t *testing.T) {
	t.Parallel()

	managerID := uuid.New()
	reportID := uuid.New()

	repository := &mockRepository{
		getUserFn: func(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
			return persistence.User{UserID: id, CompanyID: companyID, Role: "senior-manager"}, nil
		},
		listDirectReportsFn: func(ctx context.Context, companyID int64, id uuid.UUID) ([]persistence.User, error) {
			require.Equal(t, managerID, id)
			return []persistence.User{{
				UserID:    reportID,
				CompanyID: companyID,
				Role:      "senior-executive",
				FirstName: "Ravi",
				ReportsTo: &managerID,
			}}, nil
		},
	}
	svc := newTestService(repository, &recordingInvalidator{})

	members, err := svc.DirectReports(context.Background(), actorWithRole(rbac.RoleManager), managerID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, reportID, members[0].ID)
	require.Equal(t, &managerID, members[0].ReportsTo)
}

func TestDirectReportsForbiddenForExecutives(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	_, err := svc.DirectReports(context.Background(), actorWithRole(rbac.RoleSeniorExecutive), uuid.New())
	require.ErrorIs(t, err, ErrForbidden)
}
