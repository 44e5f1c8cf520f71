package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/motorline/dealerdesk/database"
)

// ApplyCoreSchemaDDL creates the core tables when they do not exist yet.
// Statements are idempotent; the whole bootstrap runs in one transaction.
func ApplyCoreSchemaDDL(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin bootstrap tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// companies first: users and dealers reference it.
	for _, ddl := range []string{
		sqlassets.CompaniesSQL,
		sqlassets.UsersSQL,
		sqlassets.DealersSQL,
	} {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("apply core schema: %w", err)
		}
	}

	return tx.Commit(ctx)
}
