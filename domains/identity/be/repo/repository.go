package repo

import (
	"context"

	"github.com/motorline/dealerdesk/platform/go/persistence"
)

// Repository defines the persistence operations required by the identity service.
type Repository interface {
	GetByExternalID(ctx context.Context, externalID string) (persistence.User, error)
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

func (r *postgresRepository) GetByExternalID(ctx context.Context, externalID string) (persistence.User, error) {
	return r.store.GetUserByExternalID(ctx, externalID)
}
