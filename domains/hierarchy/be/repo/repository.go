package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/motorline/dealerdesk/platform/go/persistence"
)

// Repository defines the persistence operations required by the hierarchy service.
type Repository interface {
	GetUser(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error)
	ListDirectReports(ctx context.Context, companyID int64, managerID uuid.UUID) ([]persistence.User, error)
	ReassignReporting(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error
}

type postgresRepository struct {
	store *persistence.UserStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.UserStore) Repository {
	if store == nil {
		panic("user store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) GetUser(ctx context.Context, companyID int64, id uuid.UUID) (persistence.User, error) {
	return r.store.GetUser(ctx, companyID, id)
}

func (r *postgresRepository) ListDirectReports(ctx context.Context, companyID int64, managerID uuid.UUID) ([]persistence.User, error) {
	return r.store.ListDirectReports(ctx, companyID, managerID)
}

func (r *postgresRepository) ReassignReporting(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
	return r.store.ReassignReporting(ctx, companyID, userID, reportsTo, manages)
}
