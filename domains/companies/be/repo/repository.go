package repo

import (
	"context"

	"github.com/motorline/dealerdesk/platform/go/persistence"
)

// Repository defines the persistence operations required by the companies service.
type Repository interface {
	Get(ctx context.Context, id int64) (persistence.Company, error)
	Update(ctx context.Context, id int64, params persistence.UpdateCompanyParams) (persistence.Company, error)
}

type postgresRepository struct {
	store *persistence.CompanyStore
}

// NewPostgresRepository constructs a repository backed by the shared persistence layer.
func NewPostgresRepository(store *persistence.CompanyStore) Repository {
	if store == nil {
		panic("company store is required")
	}
	return &postgresRepository{store: store}
}

func (r *postgresRepository) Get(ctx context.Context, id int64) (persistence.Company, error) {
	return r.store.GetCompany(ctx, id)
}

func (r *postgresRepository) Update(ctx context.Context, id int64, params persistence.UpdateCompanyParams) (persistence.Company, error) {
	return r.store.UpdateCompany(ctx, id, params)
}
