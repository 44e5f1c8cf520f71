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

const UsersTable = "users"

// User represents a row in the users table. ReportsTo references another user
// in the same company, or is nil for the top of a reporting line.
type User struct {
	UserID     uuid.UUID  `db:"user_id" json:"userId"`
	ExternalID string     `db:"external_id" json:"externalId"`
	CompanyID  int64      `db:"company_id" json:"companyId"`
	Role       string     `db:"role" json:"role"`
	ReportsTo  *uuid.UUID `db:"reports_to" json:"reportsToId"`
	FirstName  string     `db:"first_name" json:"firstName"`
	LastName   string     `db:"last_name" json:"lastName"`
	Email      string     `db:"email" json:"email"`
	Status     string     `db:"status" json:"status"`
	Region     string     `db:"region" json:"region"`
	Area       string     `db:"area" json:"area"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

var (
	// ErrUserNotFound indicates a missing user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserConflict indicates a uniqueness violation (duplicated email or external id).
	ErrUserConflict = errors.New("user conflict")
	// ErrReportingCycle indicates a reassignment that would close a reporting loop.
	ErrReportingCycle = errors.New("reporting cycle")
)

const userColumns = `user_id, external_id, company_id, role, reports_to, first_name, last_name, email, status, region, area, created_at, updated_at`

// UserStore exposes persistence helpers for the users table. Every company-
// facing query filters by company_id; only the external-identity lookup spans
// tenants because the subject id is globally unique.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore returns a store instance bound to the shared pool.
func NewUserStore(pool *pgxpool.Pool) (*UserStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}

	return &UserStore{pool: pool}, nil
}

// CreateUserParams captures the fields required to insert a new user record.
type CreateUserParams struct {
	UserID     uuid.UUID
	ExternalID string
	CompanyID  int64
	Role       string
	FirstName  string
	LastName   string
	Email      string
	Status     string
	Region     string
	Area       string
}

// CreateUser inserts a new user and returns the persisted record.
func (s *UserStore) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if params.UserID == uuid.Nil {
		return User{}, errors.New("user id is required")
	}

	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        INSERT INTO %s (user_id, external_id, company_id, role, first_name, last_name, email, status, region, area)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING %s
    `, UsersTable, userColumns),
		params.UserID,
		strings.TrimSpace(params.ExternalID),
		params.CompanyID,
		params.Role,
		strings.TrimSpace(params.FirstName),
		strings.TrimSpace(params.LastName),
		strings.TrimSpace(params.Email),
		params.Status,
		strings.TrimSpace(params.Region),
		strings.TrimSpace(params.Area),
	)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUserConflict
		}
		return User{}, err
	}

	return user, nil
}

// GetUserByExternalID resolves the identity-provider subject to the local
// user record.
func (s *UserStore) GetUserByExternalID(ctx context.Context, externalID string) (User, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE external_id = $1
    `, userColumns, UsersTable), externalID)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}

	return user, nil
}

// GetUser returns a single user by identifier within the company.
func (s *UserStore) GetUser(ctx context.Context, companyID int64, id uuid.UUID) (User, error) {
	row := s.pool.QueryRow(ctx, fmt.Sprintf(`
        SELECT %s FROM %s WHERE company_id = $1 AND user_id = $2
    `, userColumns, UsersTable), companyID, id)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}

	return user, nil
}

// ListUsersParams captures filters and pagination for ListUsers.
type ListUsersParams struct {
	Page     int
	PageSize int
	Sort     *string
	Role     *string
	Status   *string
	Region   *string
	Area     *string
}

// ListUsersResult includes the rows and the total count for pagination metadata.
type ListUsersResult struct {
	Users      []User
	TotalItems int
}

// ListUsers returns the company's users matching the filters with pagination applied.
func (s *UserStore) ListUsers(ctx context.Context, companyID int64, params ListUsersParams) (ListUsersResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = 20
	}
	if params.PageSize > 100 {
		params.PageSize = 100
	}

	whereParts := []string{"company_id = $1"}
	args := []any{companyID}

	addFilter := func(column string, value *string) {
		if value == nil || strings.TrimSpace(*value) == "" {
			return
		}
		args = append(args, strings.TrimSpace(*value))
		whereParts = append(whereParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addFilter("role", params.Role)
	addFilter("status", params.Status)
	addFilter("region", params.Region)
	addFilter("area", params.Area)

	whereSQL := strings.Join(whereParts, " AND ")

	orderSQL, err := buildUserOrderBy(params.Sort)
	if err != nil {
		return ListUsersResult{}, err
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", UsersTable, whereSQL)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return ListUsersResult{}, fmt.Errorf("count users: %w", err)
	}

	result := ListUsersResult{Users: []User{}, TotalItems: total}
	if total == 0 {
		return result, nil
	}

	limit := params.PageSize
	offset := (params.Page - 1) * params.PageSize

	dataArgs := append([]any{}, args...)
	dataArgs = append(dataArgs, limit, offset)

	query := fmt.Sprintf(`
        SELECT %s
        FROM %s
        WHERE %s
        %s
        LIMIT $%d OFFSET $%d
    `, userColumns, UsersTable, whereSQL, orderSQL, len(dataArgs)-1, len(dataArgs))

	rows, err := s.pool.Query(ctx, query, dataArgs...)
	if err != nil {
		return ListUsersResult{}, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, scanErr := scanUser(rows)
		if scanErr != nil {
			return ListUsersResult{}, fmt.Errorf("scan user: %w", scanErr)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return ListUsersResult{}, fmt.Errorf("iterate users: %w", err)
	}

	result.Users = users
	return result, nil
}

func buildUserOrderBy(sort *string) (string, error) {
	const defaultOrder = "ORDER BY created_at DESC"
	if sort == nil || strings.TrimSpace(*sort) == "" {
		return defaultOrder, nil
	}

	fields := strings.Split(strings.TrimSpace(*sort), ",")
	orderClauses := make([]string, 0, len(fields))
	mapping := map[string]string{
		"firstName": "first_name",
		"lastName":  "last_name",
		"email":     "email",
		"role":      "role",
		"region":    "region",
		"area":      "area",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	}

	for _, raw := range fields {
		f := strings.TrimSpace(raw)
		if f == "" {
			continue
		}

		direction := "ASC"
		if strings.HasPrefix(f, "-") {
			direction = "DESC"
			f = strings.TrimPrefix(f, "-")
		}

		column, ok := mapping[f]
		if !ok {
			return "", fmt.Errorf("unsupported sort field %q", f)
		}

		orderClauses = append(orderClauses, fmt.Sprintf("%s %s", column, direction))
	}

	if len(orderClauses) == 0 {
		return defaultOrder, nil
	}

	return "ORDER BY " + strings.Join(orderClauses, ", "), nil
}

// UpdateUserParams represents the editable profile fields.
type UpdateUserParams struct {
	FirstName *string
	LastName  *string
	Status    *string
	Region    *string
	Area      *string
}

// UpdateUser applies the provided fields and returns the updated record.
func (s *UserStore) UpdateUser(ctx context.Context, companyID int64, id uuid.UUID, params UpdateUserParams) (User, error) {
	setParts := []string{}
	var args []any

	addSet := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, strings.TrimSpace(*value))
		setParts = append(setParts, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addSet("first_name", params.FirstName)
	addSet("last_name", params.LastName)
	addSet("status", params.Status)
	addSet("region", params.Region)
	addSet("area", params.Area)

	if len(setParts) == 0 {
		return User{}, errors.New("no fields to update")
	}

	args = append(args, companyID, id)

	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE company_id = $%d AND user_id = $%d
        RETURNING %s
    `, UsersTable, strings.Join(setParts, ", "), len(args)-1, len(args), userColumns)

	row := s.pool.QueryRow(ctx, query, args...)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		if isUniqueViolation(err) {
			return User{}, ErrUserConflict
		}
		return User{}, err
	}

	return user, nil
}

// ListDirectReports returns the users whose reports_to equals managerID.
func (s *UserStore) ListDirectReports(ctx context.Context, companyID int64, managerID uuid.UUID) ([]User, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE company_id = $1 AND reports_to = $2
        ORDER BY last_name, first_name
    `, userColumns, UsersTable), companyID, managerID)
	if err != nil {
		return nil, fmt.Errorf("list direct reports: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		user, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan direct report: %w", scanErr)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// ReassignReporting atomically rewrites the reporting edges around userID:
// every current direct report is detached, the manages set is attached, and
// the user's own manager is rebound. The whole sequence commits or rolls back
// together. manages must be deduplicated by the caller.
func (s *UserStore) ReassignReporting(ctx context.Context, companyID int64, userID uuid.UUID, reportsTo *uuid.UUID, manages []uuid.UUID) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin reassign tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	// Lock the target row; concurrent reassignments of the same user serialize here.
	var locked uuid.UUID
	err = tx.QueryRow(ctx, fmt.Sprintf(`
        SELECT user_id FROM %s WHERE company_id = $1 AND user_id = $2 FOR UPDATE
    `, UsersTable), companyID, userID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}

	// Detach all current direct reports; the next step re-attaches survivors.
	if _, err := tx.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET reports_to = NULL, updated_at = NOW()
        WHERE company_id = $1 AND reports_to = $2
    `, UsersTable), companyID, userID); err != nil {
		return fmt.Errorf("detach direct reports: %w", err)
	}

	if len(manages) > 0 {
		tag, execErr := tx.Exec(ctx, fmt.Sprintf(`
            UPDATE %s SET reports_to = $1, updated_at = NOW()
            WHERE company_id = $2 AND user_id = ANY($3)
        `, UsersTable), userID, companyID, manages)
		if execErr != nil {
			return fmt.Errorf("attach direct reports: %w", execErr)
		}
		if tag.RowsAffected() != int64(len(manages)) {
			return ErrUserNotFound
		}
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`
        UPDATE %s SET reports_to = $1, updated_at = NOW()
        WHERE company_id = $2 AND user_id = $3
    `, UsersTable), reportsTo, companyID, userID); err != nil {
		return fmt.Errorf("rebind manager: %w", err)
	}

	// The cycle check runs against the mutated edges: a pre-mutation walk
	// would both miss loops the attach step introduces (the proposed manager
	// appearing in manages) and reject promotions the detach step makes legal
	// (a current direct report becoming the manager). Any new loop passes
	// through userID, so walking upward from there is sufficient.
	if reportsTo != nil {
		cycle, cycleErr := reportingChainHasCycle(ctx, tx, companyID, userID)
		if cycleErr != nil {
			return cycleErr
		}
		if cycle {
			return ErrReportingCycle
		}
	}

	return tx.Commit(ctx)
}

// reportingChainHasCycle walks the reporting chain upward from userID over the
// uncommitted transaction state. The visited array bounds the walk so a loop
// terminates instead of recursing forever.
func reportingChainHasCycle(ctx context.Context, tx pgx.Tx, companyID int64, userID uuid.UUID) (bool, error) {
	var cycle bool
	err := tx.QueryRow(ctx, fmt.Sprintf(`
        WITH RECURSIVE chain AS (
            SELECT user_id, reports_to, ARRAY[user_id] AS visited, false AS looped
            FROM %[1]s WHERE company_id = $1 AND user_id = $2
            UNION ALL
            SELECT u.user_id, u.reports_to, c.visited || u.user_id, u.user_id = ANY(c.visited)
            FROM %[1]s u
            JOIN chain c ON u.user_id = c.reports_to AND u.company_id = $1
            WHERE NOT c.looped
        )
        SELECT EXISTS (SELECT 1 FROM chain WHERE looped)
    `, UsersTable), companyID, userID).Scan(&cycle)
	if err != nil {
		return false, fmt.Errorf("cycle check: %w", err)
	}
	return cycle, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User

	if err := row.Scan(
		&user.UserID,
		&user.ExternalID,
		&user.CompanyID,
		&user.Role,
		&user.ReportsTo,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Status,
		&user.Region,
		&user.Area,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return User{}, err
	}

	return user, nil
}
