package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const CompaniesTable = "companies"

// Company represents a tenant row. Read-mostly; users and dealers hang off
// company_id.
type Company struct {
	CompanyID   int64     `db:"company_id" json:"companyId"`
	CompanyName string    `db:"company_name" json:"companyName"`
	Region      string    `db:"region" json:"region"`
	Area        string    `db:"area" json:"area"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// ErrCompanyNotFound indicates a missing company record.
var ErrCompanyNotFound = errors.New("company not found")

const companyColumns = `company_id, company_name, region, area, created_at, updated_at`

// CompanyStore exposes persistence helpers for the companies table.
type CompanyStore struct {
	pool *pgxpool.Pool
}

// NewCompanyStore returns a store instance bound to the shared pool.
func NewCompanyStore(pool *pgxpool.Pool) (*CompanyStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}

	return &CompanyStore{pool: pool}, nil
}

// CreateCompany inserts a new tenant and returns the generated id.
func (s *CompanyStore) CreateCompany(ctx context.Context, name, region, area string) (Company, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (company_name, region, area)
        VALUES ($1, $2, $3)
        RETURNING %s
    `, CompaniesTable, companyColumns),
		strings.TrimSpace(name),
		strings.TrimSpace(region),
		strings.TrimSpace(area),
	)

	return scanCompany(row)
}

// GetCompany returns a single company by identifier.
func (s *CompanyStore) GetCompany(ctx context.Context, id int64) (Company, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE company_id = $1
    `, companyColumns, CompaniesTable), id)

	company, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrCompanyNotFound
		}
		return Company{}, err
	}

	return company, nil
}

// UpdateCompanyParams represents the editable company profile fields.
type UpdateCompanyParams struct {
	CompanyName *string
	Region      *string
	Area        *string
}

// UpdateCompany applies the provided fields and returns the updated record.
func (s *CompanyStore) UpdateCompany(ctx context.Context, id int64, params UpdateCompanyParams) (Company, error) {
	setParts := []string{}
	var args []any

	addSet := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, strings.TrimSpace(*value))
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addSet("company_name", params.CompanyName)
	addSet("region", params.Region)
	addSet("area", params.Area)

	if len(setParts) == 0 {
		return Company{}, errors.New("no fields to update")
	}

	args = append(args, id)

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE company_id = $%d
        RETURNING %s
    `, CompaniesTable, strings.Join(setParts, ", "), len(args), companyColumns), args...)

	company, err := scanCompany(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Company{}, ErrCompanyNotFound
		}
		return Company{}, err
	}

	return company, nil
}

func scanCompany(row pgx.Row) (Company, error) {
	var company Company

	if err := row.Scan(
		&company.CompanyID,
		&company.CompanyName,
		&company.Region,
		&company.Area,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return Company{}, err
	}

	return company, nil
}
