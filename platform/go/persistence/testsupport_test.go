package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// mustTestPool boots a transient Postgres container and applies the core
// schema DDL. Integration tests share this helper and skip in short mode.
func mustTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping persistence integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dealerdesk"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() { ClosePool(pool) })

	require.NoError(t, ApplyCoreSchemaDDL(ctx, pool))

	return pool
}

func mustSeedCompany(t *testing.T, ctx context.Context, pool *pgxpool.Pool, name string) Company {
	t.Helper()

	store, err := NewCompanyStore(pool)
	require.NoError(t, err)

	company, err := store.CreateCompany(ctx, name, "north", "delhi")
	require.NoError(t, err)
	return company
}

func mustSeedUser(t *testing.T, ctx context.Context, store *UserStore, companyID int64, role string, reportsTo *uuid.UUID) User {
	t.Helper()

	id := uuid.New()
	user, err := store.CreateUser(ctx, CreateUserParams{
		UserID:     id,
		ExternalID: "ext-" + id.String(),
		CompanyID:  companyID,
		Role:       role,
		FirstName:  "Test",
		LastName:   id.String()[:8],
		Email:      id.String()[:8] + "@example.com",
		Status:     "active",
	})
	require.NoError(t, err)

	if reportsTo != nil {
		require.NoError(t, store.ReassignReporting(ctx, companyID, user.UserID, reportsTo, nil))
		user.ReportsTo = reportsTo
	}

	return user
}
