package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/motorline/dealerdesk/platform/go/persistence"
)

// Repository defines the persistence operations required by the dealers service.
type Repository interface {
	Create(ctx context.Context, params persistence.CreateDealerParams) (persistence.Dealer, error)
	List(ctx context.Context, companyID int64, params persistence.ListDealersParams) ([]persistence.Dealer, error)
	Get(ctx context.Context, companyID int64, id uuid.UUID) (persistence.Dealer, error)
	DistinctFilterValues(ctx context.Context, companyID int64) (persistence.DealerFilterValues, error)
	Assign(ctx context.Context, companyID int64, dealerID uuid.UUID, userID *uuid.UUID) (persistence.Dealer, error)
	UpdateLocation(ctx context.Context, companyID int64, dealerID uuid.UUID, lat, lng float64, address string) (persistence.Dealer, error)
}

type postgresRepository struct {
	store *persistence.DealerStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.DealerStore) Repository {
	if store == nil {
		panic("dealer store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Create(ctx context.Context, params persistence.CreateDealerParams) (persistence.Dealer, error) {
	return r.store.CreateDealer(ctx, params)
}

func (r *postgresRepository) List(ctx context.Context, companyID int64, params persistence.ListDealersParams) ([]persistence.Dealer, error) {
	return r.store.ListDealers(ctx, companyID, params)
}

func (r *postgresRepository) Get(ctx context.Context, companyID int64, id uuid.UUID) (persistence.Dealer, error) {
	return r.store.GetDealer(ctx, companyID, id)
}

func (r *postgresRepository) DistinctFilterValues(ctx context.Context, companyID int64) (persistence.DealerFilterValues, error) {
	return r.store.DistinctFilterValues(ctx, companyID)
}

func (r *postgresRepository) Assign(ctx context.Context, companyID int64, dealerID uuid.UUID, userID *uuid.UUID) (persistence.Dealer, error) {
	return r.store.AssignDealer(ctx, companyID, dealerID, userID)
}

func (r *postgresRepository) UpdateLocation(ctx context.Context, companyID int64, dealerID uuid.UUID, lat, lng float64, address string) (persistence.Dealer, error) {
	return r.store.UpdateDealerLocation(ctx, companyID, dealerID, lat, lng, address)
}
