package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/platform/go/cache"
	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

type mockRepository struct {
	createFn func(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error)
	listFn   func(ctx context.Context, companyID int64, params persistence.ListUsersParams) (persistence.ListUsersResult, error)
	getFn    func(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error)
	updateFn func(ctx context.Context, companyID int64, id uuid.UUID, params persistence.UpdateUserParams) (persistence.User, error)
}

func (m *mockRepository) Create(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error) {
	if m.createFn == nil {
		panic("createFn not configured")
	}
	return m.createFn(ctx, params)
}

func (m *mockRepository) List(ctx context.Context, companyID int64, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
	if m.listFn == nil {
		panic("listFn not configured")
	}
	return m.listFn(ctx, companyID, params)
}

func (m *mockRepository) Get(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
	if m.getFn == nil {
		panic("getFn not configured")
	}
	return m.getFn(ctx, companyID, id)
}

func (m *mockRepository) Update(ctx context.Context, companyID int64, id uuid.UUID, params persistence.UpdateUserParams) (persistence.User, error) {
	if m.updateFn == nil {
		panic("updateFn not configured")
	}
	return m.updateFn(ctx, companyID, id, params)
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

func TestListForbiddenForExecutives(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	_, err := svc.List(context.Background(), actorWithRole(rbac.RoleSeniorExecutive), ListOptions{})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestListScopesToActorCompany(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	repository := &mockRepository{
		listFn: func(ctx context.Context, companyID int64, params persistence.ListUsersParams) (persistence.ListUsersResult, error) {
			require.Equal(t, int64(42), companyID)
			require.Equal(t, 1, params.Page)
			require.Equal(t, 20, params.PageSize)
			return persistence.ListUsersResult{
				Users: []persistence.User{{
					UserID:    uuid.New(),
					CompanyID: companyID,
					Role:      "manager",
					Email:     "m@example.com",
					CreatedAt: now,
					UpdatedAt: now,
				}},
				TotalItems: 41,
			}, nil
		},
	}
	svc := newTestService(repository, &recordingInvalidator{})

	result, err := svc.List(context.Background(), actorWithRole(rbac.RoleManager), ListOptions{})
	require.NoError(t, err)
	require.Len(t, result.Users, 1)
	require.Equal(t, 41, result.TotalItems)
	require.Equal(t, 3, result.TotalPages)
}

func TestListRejectsUnknownSortField(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	sort := "salary"
	_, err := svc.List(context.Background(), actorWithRole(rbac.RoleManager), ListOptions{Sort: &sort})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "sort")
}

func TestInviteValidation(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	_, err := svc.Invite(context.Background(), actorWithRole(rbac.RoleSeniorManager), InviteInput{Role: "warlock"})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "email")
	require.Contains(t, validationErr.Fields, "externalId")
	require.Contains(t, validationErr.Fields, "firstName")
	require.Contains(t, validationErr.Fields, "role")
}

func TestInviteCannotGrantHigherRole(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	_, err := svc.Invite(context.Background(), actorWithRole(rbac.RoleSeniorManager), InviteInput{
		ExternalID: "firebase-1",
		Email:      "gm@example.com",
		FirstName:  "Grace",
		Role:       "president",
	})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestInviteSuccess(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	repository := &mockRepository{
		createFn: func(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error) {
			require.Equal(t, int64(42), params.CompanyID)
			require.Equal(t, "manager", params.Role)
			require.Equal(t, "grace@example.com", params.Email)
			require.Equal(t, "pending", params.Status)
			return persistence.User{
				UserID:    params.UserID,
				CompanyID: params.CompanyID,
				Role:      params.Role,
				Email:     params.Email,
				FirstName: params.FirstName,
				Status:    params.Status,
				CreatedAt: now,
				UpdatedAt: now,
			}, nil
		},
	}
	invalidator := &recordingInvalidator{}
	svc := newTestService(repository, invalidator)

	user, err := svc.Invite(context.Background(), actorWithRole(rbac.RoleSeniorManager), InviteInput{
		ExternalID: "firebase-1",
		Email:      " Grace@Example.com ",
		FirstName:  "Grace",
		Role:       "manager",
	})
	require.NoError(t, err)
	require.Equal(t, "grace@example.com", user.Email)
	require.Equal(t, []string{"users-42"}, invalidator.tags)
}

func TestInviteDuplicateEmail(t *testing.T) {
	t.Parallel()

	repository := &mockRepository{
		createFn: func(ctx context.Context, params persistence.CreateUserParams) (persistence.User, error) {
			return persistence.User{}, persistence.ErrUserConflict
		},
	}
	svc := newTestService(repository, &recordingInvalidator{})

	_, err := svc.Invite(context.Background(), actorWithRole(rbac.RolePresident), InviteInput{
		ExternalID: "firebase-2",
		Email:      "dup@example.com",
		FirstName:  "Dup",
		Role:       "manager",
	})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdateRequiresAField(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	_, err := svc.Update(context.Background(), actorWithRole(rbac.RoleSeniorManager), uuid.New(), UpdateInput{})

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	require.Contains(t, validationErr.Fields, "payload")
}

func TestUpdateForbiddenForManagers(t *testing.T) {
	t.Parallel()

	svc := newTestService(&mockRepository{}, &recordingInvalidator{})

	first := "New"
	_, err := svc.Update(context.Background(), actorWithRole(rbac.RoleManager), uuid.New(), UpdateInput{FirstName: &first})
	require.ErrorIs(t, err, ErrForbidden)
}

func TestMeReturnsOwnRecord(t *testing.T) {
	t.Parallel()

	actor := actorWithRole(rbac.RoleSeniorExecutive)
	repository := &mockRepository{
		getFn: func(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
			require.Equal(t, actor.CompanyID, companyID)
			require.Equal(t, actor.UserID, id)
			return persistence.User{UserID: id, CompanyID: companyID, Role: "senior-executive"}, nil
		},
	}
	svc := newTestService(repository, &recordingInvalidator{})

	user, err := svc.Me(context.Background(), actor)
	require.NoError(t, err)
	require.Equal(t, actor.UserID, user.ID)
}

func TestUpdateSelfTrimsAndPersists(t *testing.T) {
	t.Parallel()

	actor := actorWithRole(rbac.RoleManager)
	repository := &mockRepository{
		updateFn: func(ctx context.Context, companyID int64, id uuid.UUID, params persistence.UpdateUserParams) (persistence.User, error) {
			require.Equal(t, actor.UserID, id)
			require.NotNil(t, params.FirstName)
			require.Equal(t, "Asha", *params.FirstName)
			return persistence.User{UserID: id, CompanyID: companyID, FirstName: *params.FirstName}, nil
		},
	}
	svc := newTestService(repository, &recordingInvalidator{})

	first := "  Asha "
	user, err := svc.UpdateSelf(context.Background(), actor, UpdateSelfInput{FirstName: &first})
	require.NoError(t, err)
	require.Equal(t, "Asha", user.FirstName)
}
