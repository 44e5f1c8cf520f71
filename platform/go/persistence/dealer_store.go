package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const DealersTable = "dealers"

// Dealer represents a row in the dealers table. UserID is nil for orphan
// dealers that are not assigned to any sales person; orphans stay visible in
// tenant-wide location and type discovery.
type Dealer struct {
	DealerID   uuid.UUID  `db:"dealer_id" json:"dealerId"`
	CompanyID  int64      `db:"company_id" json:"companyId"`
	UserID     *uuid.UUID `db:"user_id" json:"userId"`
	DealerName string     `db:"dealer_name" json:"dealerName"`
	DealerType string     `db:"dealer_type" json:"dealerType"`
	Region     string     `db:"region" json:"region"`
	Area       string     `db:"area" json:"area"`
	Latitude   *float64   `db:"latitude" json:"latitude"`
	Longitude  *float64   `db:"longitude" json:"longitude"`
	Address    string     `db:"address" json:"address"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// ErrDealerNotFound indicates a missing dealer record.
var ErrDealerNotFound = errors.New("dealer not found")

const dealerColumns = `dealer_id, company_id, user_id, dealer_name, dealer_type, region, area, latitude, longitude, address, created_at, updated_at`

// DealerStore exposes persistence helpers for the dealers table.
type DealerStore struct {
	pool *pgxpool.Pool
}

// NewDealerStore returns a store instance bound to the shared pool.
func NewDealerStore(pool *pgxpool.Pool) (*DealerStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}

	return &DealerStore{pool: pool}, nil
}

// CreateDealerParams captures the fields required to insert a dealer.
type CreateDealerParams struct {
	DealerID   uuid.UUID
	CompanyID  int64
	UserID     *uuid.UUID
	DealerName string
	DealerType string
	Region     string
	Area       string
}

// CreateDealer inserts a new dealer and returns the persisted record.
func (s *DealerStore) CreateDealer(ctx context.Context, params CreateDealerParams) (Dealer, error) {
	if params.DealerID == uuid.Nil {
		return Dealer{}, errors.New("dealer id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (dealer_id, company_id, user_id, dealer_name, dealer_type, region, area)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING %s
    `, DealersTable, dealerColumns),
		params.DealerID,
		params.CompanyID,
		params.UserID,
		strings.TrimSpace(params.DealerName),
		strings.TrimSpace(params.DealerType),
		strings.TrimSpace(params.Region),
		strings.TrimSpace(params.Area),
	)

	dealer, err := scanDealer(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Dealer{}, ErrUserNotFound
		}
		return Dealer{}, err
	}

	return dealer, nil
}

// ListDealersParams captures filters for ListDealers. Orphan dealers
// (user_id IS NULL) are always included; OwnerID narrows to one sales person
// plus the orphans when OrphansOnly is false.
type ListDealersParams struct {
	Region      *string
	Area        *string
	DealerType  *string
	OwnerID     *uuid.UUID
	OrphansOnly bool
}

// ListDealers returns the company's dealers matching the filters.
func (s *DealerStore) ListDealers(ctx context.Context, companyID int64, params ListDealersParams) ([]Dealer, error) {
	whereParts := []string{"company_id = $1"}
	args := []any{companyID}

	addFilter := func(column string, value *string) {
		if value == nil || strings.TrimSpace(*value) == "" {
			return
		}
		args = append(args, strings.TrimSpace(*value))
		whereParts = append(whereParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addFilter("region", params.Region)
	addFilter("area", params.Area)
	addFilter("dealer_type", params.DealerType)

	switch {
	case params.OrphansOnly:
		whereParts = append(whereParts, "user_id IS NULL")
	case params.OwnerID != nil:
		args = append(args, *params.OwnerID)
		whereParts = append(whereParts, fmt.Sprintf("(user_id = $%d OR user_id IS NULL)", len(args)))
	}

	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE %s
        ORDER BY dealer_name
    `, dealerColumns, DealersTable, strings.Join(whereParts, " AND "))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dealers: %w", err)
	}
	defer rows.Close()

	dealers := make([]Dealer, 0)
	for rows.Next() {
		dealer, scanErr := scanDealer(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan dealer: %w", scanErr)
		}
		dealers = append(dealers, dealer)
	}

	return dealers, rows.Err()
}

// GetDealer returns a single dealer by identifier within the company.
func (s *DealerStore) GetDealer(ctx context.Context, companyID int64, id uuid.UUID) (Dealer, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE company_id = $1 AND dealer_id = $2
    `, dealerColumns, DealersTable), companyID, id)

	dealer, err := scanDealer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dealer{}, ErrDealerNotFound
		}
		return Dealer{}, err
	}

	return dealer, nil
}

// DealerFilterValues holds the distinct values available for dealer filters,
// computed across the whole tenant regardless of dealer ownership.
type DealerFilterValues struct {
	Regions []string
	Areas   []string
	Types   []string
}

// DistinctFilterValues selects the distinct region, area and type values for
// the company. Orphan dealers count: discovery spans all dealers.
func (s *DealerStore) DistinctFilterValues(ctx context.Context, companyID int64) (DealerFilterValues, error) {
	values := DealerFilterValues{}

	collect := func(column string, into *[]string) error {
		rows, err := s.pool.Query(ctx, fmt.Sprintf(`
            SELECT DISTINCT %[1]s FROM %[2]s
            WHERE company_id = $1 AND %[1]s <> ''
            ORDER BY %[1]s
        `, column, DealersTable), companyID)
		if err != nil {
			return fmt.Errorf("distinct %s: %w", column, err)
		}
		defer rows.Close()

		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				return fmt.Errorf("scan distinct %s: %w", column, err)
			}
			*into = append(*into, v)
		}
		return rows.Err()
	}

	if err := collect("region", &values.Regions); err != nil {
		return DealerFilterValues{}, err
	}
	if err := collect("area", &values.Areas); err != nil {
		return DealerFilterValues{}, err
	}
	if err := collect("dealer_type", &values.Types); err != nil {
		return DealerFilterValues{}, err
	}

	return values, nil
}

// AssignDealer sets or clears the owning sales person.
func (s *DealerStore) AssignDealer(ctx context.Context, companyID int64, dealerID uuid.UUID, userID *uuid.UUID) (Dealer, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET user_id = $1, updated_at = NOW()
        WHERE company_id = $2 AND dealer_id = $3
        RETURNING %s
    `, DealersTable, dealerColumns), userID, companyID, dealerID)

	dealer, err := scanDealer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dealer{}, ErrDealerNotFound
		}
		if isForeignKeyViolation(err) {
			return Dealer{}, ErrUserNotFound
		}
		return Dealer{}, err
	}

	return dealer, nil
}

// UpdateDealerLocation persists the coordinates and the geocoded display
// address in one simple update.
func (s *DealerStore) UpdateDealerLocation(ctx context.Context, companyID int64, dealerID uuid.UUID, lat, lng float64, address string) (Dealer, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s SET latitude = $1, longitude = $2, address = $3, updated_at = NOW()
        WHERE company_id = $4 AND dealer_id = $5
        RETURNING %s
    `, DealersTable, dealerColumns), lat, lng, strings.TrimSpace(address), companyID, dealerID)

	dealer, err := scanDealer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dealer{}, ErrDealerNotFound
		}
		return Dealer{}, err
	}

	return dealer, nil
}

func scanDealer(row pgx.Row) (Dealer, error) {
	var dealer Dealer

	if err := row.Scan(
		&dealer.DealerID,
		&dealer.CompanyID,
		&dealer.UserID,
		&dealer.DealerName,
		&dealer.DealerType,
		&dealer.Region,
		&dealer.Area,
		&dealer.Latitude,
		&dealer.Longitude,
		&dealer.Address,
		&dealer.CreatedAt,
		&dealer.UpdatedAt,
	); err != nil {
		return Dealer{}, err
	}

	return dealer, nil
}
