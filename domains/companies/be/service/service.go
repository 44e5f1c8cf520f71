package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/motorline/dealerdesk/domains/companies/be/repo"
	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain sentinel errors.
var (
	ErrNotFound  = errors.New("company not found")
	ErrForbidden = errors.New("operation not allowed for role")
)

// Company represents the domain view of the tenant profile.
type Company struct {
	ID        int64
	Name      string
	Region    string
	Area      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpdateInput encapsulates the editable company profile fields.
type UpdateInput struct {
	Name   *string
	Region *string
	Area   *string
}

// Service defines the business operations for the companies domain. Callers
// always operate on their own company; no cross-tenant access exists.
type Service interface {
	Profile(ctx context.Context, actor principal.Principal) (Company, error)
	UpdateProfile(ctx context.Context, actor principal.Principal, input UpdateInput) (Company, error)
}

type service struct {
	repo repo.Repository
}

// New constructs a companies Service instance backed by the provided repository.
func New(r repo.Repository) Service {
	if r == nil {
		panic("companies repository is required")
	}
	return &service{repo: r}
}

func (s *service) Profile(ctx context.Context, actor principal.Principal) (Company, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapCompanyProfileView) {
		return Company{}, ErrForbidden
	}

	record, err := s.repo.Get(ctx, actor.CompanyID)
	if err != nil {
		return Company{}, mapPersistenceError(err)
	}

	return mapCompany(record), nil
}

func (s *service) UpdateProfile(ctx context.Context, actor principal.Principal, input UpdateInput) (Company, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapCompanyProfileUpdate) {
		return Company{}, ErrForbidden
	}

	fieldErrors := FieldErrors{}
	params := persistence.UpdateCompanyParams{}
	fieldsSet := 0

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			fieldErrors.add("name", "name cannot be empty")
		} else {
			params.CompanyName = &name
			fieldsSet++
		}
	}
	if input.Region != nil {
		region := strings.TrimSpace(*input.Region)
		params.Region = &region
		fieldsSet++
	}
	if input.Area != nil {
		area := strings.TrimSpace(*input.Area)
		params.Area = &area
		fieldsSet++
	}

	if fieldsSet == 0 && len(fieldErrors) == 0 {
		fieldErrors.add("payload", "at least one field must be provided")
	}
	if len(fieldErrors) > 0 {
		return Company{}, &ValidationError{Fields: fieldErrors}
	}

	record, err := s.repo.Update(ctx, actor.CompanyID, params)
	if err != nil {
		return Company{}, mapPersistenceError(err)
	}

	return mapCompany(record), nil
}

func mapCompany(record persistence.Company) Company {
	return Company{
		ID:        record.CompanyID,
		Name:      record.CompanyName,
		Region:    record.Region,
		Area:      record.Area,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	if errors.Is(err, persistence.ErrCompanyNotFound) {
		return ErrNotFound
	}
	return err
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
