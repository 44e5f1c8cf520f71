package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/motorline/dealerdesk/domains/dealers/be/repo"
	"github.com/motorline/dealerdesk/platform/go/cache"
	"github.com/motorline/dealerdesk/platform/go/geo"
	"github.com/motorline/dealerdesk/platform/go/persistence"
	"github.com/motorline/dealerdesk/platform/go/principal"
	"github.com/motorline/dealerdesk/platform/go/rbac"
)

const (
	dealersCachePrefix = "dealers"

	// filterValuesTTL bounds staleness when an invalidation is lost (Redis
	// restart, failed best-effort call).
	filterValuesTTL = 5 * time.Minute
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
	ErrDealerNotFound = errors.New("dealer not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrForbidden      = errors.New("operation not allowed for role")
)

// Dealer represents the domain view of a dealer record. OwnerID is nil for
// orphan dealers.
type Dealer struct {
	ID        uuid.UUID
	OwnerID   *uuid.UUID
	Name      string
	Type      string
	Region    string
	Area      string
	Latitude  *float64
	Longitude *float64
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FilterValues lists the distinct filter options across the tenant's dealers,
// orphans included.
type FilterValues struct {
	Regions []string
	Areas   []string
	Types   []string
}

// ListOptions controls dealer filtering.
type ListOptions struct {
	Region      *string
	Area        *string
	DealerType  *string
	OwnerID     *uuid.UUID
	OrphansOnly bool
}

// CreateInput represents the payload required to register a dealer.
type CreateInput struct {
	Name    string
	Type    string
	Region  string
	Area    string
	OwnerID *uuid.UUID
}

// Service defines the business operations for the dealers domain.
type Service interface {
	List(ctx context.Context, actor principal.Principal, opts ListOptions) ([]Dealer, error)
	Get(ctx context.Context, actor principal.Principal, id uuid.UUID) (Dealer, error)
	Create(ctx context.Context, actor principal.Principal, input CreateInput) (Dealer, error)
	FilterValues(ctx context.Context, actor principal.Principal) (FilterValues, error)
	Assign(ctx context.Context, actor principal.Principal, dealerID uuid.UUID, ownerID *uuid.UUID) (Dealer, error)
	UpdateLocation(ctx context.Context, actor principal.Principal, dealerID uuid.UUID, lat, lng float64) (Dealer, error)
}

type service struct {
	repo           repo.Repository
	geocoder       geo.ReverseGeocoder
	cache          cache.Cache
	globalPrefixes cache.GlobalPrefixes
	logger         *zap.Logger
}

// New constructs a dealers Service instance. The cache serves the filter
// discovery read path and is invalidated on every dealer mutation; pass
// cache.NopInvalidator{} to disable.
func New(r repo.Repository, geocoder geo.ReverseGeocoder, tagCache cache.Cache, globalPrefixes cache.GlobalPrefixes, logger *zap.Logger) Service {
	if r == nil {
		panic("dealers repository is required")
	}
	if geocoder == nil {
		panic("geocoder is required")
	}
	if tagCache == nil {
		panic("cache is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &service{repo: r, geocoder: geocoder, cache: tagCache, globalPrefixes: globalPrefixes, logger: logger}
}

func (s *service) List(ctx context.Context, actor principal.Principal, opts ListOptions) ([]Dealer, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapDealersList) {
		return nil, ErrForbidden
	}

	records, err := s.repo.List(ctx, actor.CompanyID, persistence.ListDealersParams{
		Region:      opts.Region,
		Area:        opts.Area,
		DealerType:  opts.DealerType,
		OwnerID:     opts.OwnerID,
		OrphansOnly: opts.OrphansOnly,
	})
	if err != nil {
		return nil, err
	}

	dealers := make([]Dealer, 0, len(records))
	for _, record := range records {
		dealers = append(dealers, mapDealer(record))
	}
	return dealers, nil
}

func (s *service) Get(ctx context.Context, actor principal.Principal, id uuid.UUID) (Dealer, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapDealersList) {
		return Dealer{}, ErrForbidden
	}
	if id == uuid.Nil {
		return Dealer{}, ErrDealerNotFound
	}

	record, err := s.repo.Get(ctx, actor.CompanyID, id)
	if err != nil {
		return Dealer{}, mapPersistenceError(err)
	}

	return mapDealer(record), nil
}

func (s *service) Create(ctx context.Context, actor principal.Principal, input CreateInput) (Dealer, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapDealersAssign) {
		return Dealer{}, ErrForbidden
	}

	fieldErrors := FieldErrors{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		fieldErrors.add("name", "name is required")
	}
	dealerType := strings.TrimSpace(input.Type)
	if dealerType == "" {
		fieldErrors.add("type", "type is required")
	}
	if len(fieldErrors) > 0 {
		return Dealer{}, &ValidationError{Fields: fieldErrors}
	}

	record, err := s.repo.Create(ctx, persistence.CreateDealerParams{
		DealerID:   uuid.New(),
		CompanyID:  actor.CompanyID,
		UserID:     input.OwnerID,
		DealerName: name,
		DealerType: dealerType,
		Region:     strings.TrimSpace(input.Region),
		Area:       strings.TrimSpace(input.Area),
	})
	if err != nil {
		return Dealer{}, mapPersistenceError(err)
	}

	s.invalidateDealers(ctx, actor.CompanyID)
	return mapDealer(record), nil
}

// FilterValues returns the distinct regions, areas and types across all of
// the tenant's dealers. Ownership does not narrow discovery; a filter option
// backed only by orphan dealers still shows up. The result is cached per
// company under the dealers tag, so any dealer mutation drops it.
func (s *service) FilterValues(ctx context.Context, actor principal.Principal) (FilterValues, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapDealersList) {
		return FilterValues{}, ErrForbidden
	}

	key := filterValuesCacheKey(actor.CompanyID)
	if cached, ok := s.readCachedFilterValues(ctx, key); ok {
		return cached, nil
	}

	values, err := s.repo.DistinctFilterValues(ctx, actor.CompanyID)
	if err != nil {
		return FilterValues{}, err
	}

	result := FilterValues{
		Regions: values.Regions,
		Areas:   values.Areas,
		Types:   values.Types,
	}
	s.writeCachedFilterValues(ctx, actor.CompanyID, key, result)
	return result, nil
}

func filterValuesCacheKey(companyID int64) string {
	return fmt.Sprintf("dealers:%d:filters", companyID)
}

func (s *service) readCachedFilterValues(ctx context.Context, key string) (FilterValues, bool) {
	payload, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return FilterValues{}, false
	}
	if !hit {
		return FilterValues{}, false
	}
	var values FilterValues
	if err := json.Unmarshal(payload, &values); err != nil {
		s.logger.Warn("discarding malformed cache entry", zap.String("key", key), zap.Error(err))
		return FilterValues{}, false
	}
	return values, true
}

// writeCachedFilterValues is best effort; a cache outage degrades filter
// discovery to a per-request query.
func (s *service) writeCachedFilterValues(ctx context.Context, companyID int64, key string, values FilterValues) {
	payload, err := json.Marshal(values)
	if err != nil {
		return
	}
	tag := cache.Tag(dealersCachePrefix, companyID, s.globalPrefixes)
	if err := s.cache.Set(ctx, tag, key, payload, filterValuesTTL); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Assign binds the dealer to a sales person, or detaches it when ownerID is
// nil, turning it into an orphan.
func (s *service) Assign(ctx context.Context, actor principal.Principal, dealerID uuid.UUID, ownerID *uuid.UUID) (Dealer, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapDealersAssign) {
		return Dealer{}, ErrForbidden
	}
	if dealerID == uuid.Nil {
		return Dealer{}, ErrDealerNotFound
	}

	record, err := s.repo.Assign(ctx, actor.CompanyID, dealerID, ownerID)
	if err != nil {
		return Dealer{}, mapPersistenceError(err)
	}

	s.invalidateDealers(ctx, actor.CompanyID)
	return mapDealer(record), nil
}

// UpdateLocation stores the new coordinates together with the reverse-geocoded
// display address. A geocoder outage does not block the update; the address is
// left empty and can be backfilled later.
func (s *service) UpdateLocation(ctx context.Context, actor principal.Principal, dealerID uuid.UUID, lat, lng float64) (Dealer, error) {
	if !rbac.HasPermission(actor.Role, rbac.CapDealersEditLocation) {
		return Dealer{}, ErrForbidden
	}

	fieldErrors := FieldErrors{}
	if lat < -90 || lat > 90 {
		fieldErrors.add("latitude", "latitude must be between -90 and 90")
	}
	if lng < -180 || lng > 180 {
		fieldErrors.add("longitude", "longitude must be between -180 and 180")
	}
	if len(fieldErrors) > 0 {
		return Dealer{}, &ValidationError{Fields: fieldErrors}
	}

	address, err := s.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		s.logger.Warn("reverse geocode failed",
			zap.Float64("lat", lat),
			zap.Float64("lng", lng),
			zap.Error(err),
		)
		address = ""
	}

	record, err := s.repo.UpdateLocation(ctx, actor.CompanyID, dealerID, lat, lng, address)
	if err != nil {
		return Dealer{}, mapPersistenceError(err)
	}

	s.invalidateDealers(ctx, actor.CompanyID)
	return mapDealer(record), nil
}

func (s *service) invalidateDealers(ctx context.Context, companyID int64) {
	tag := cache.Tag(dealersCachePrefix, companyID, s.globalPrefixes)
	if err := s.cache.Invalidate(ctx, tag); err != nil {
		s.logger.Warn("cache invalidation failed",
			zap.String("tag", tag),
			zap.Error(err),
		)
	}
}

func mapDealer(record persistence.Dealer) Dealer {
	return Dealer{
		ID:        record.DealerID,
		OwnerID:   record.UserID,
		Name:      record.DealerName,
		Type:      record.DealerType,
		Region:    record.Region,
		Area:      record.Area,
		Latitude:  record.Latitude,
		Longitude: record.Longitude,
		Address:   record.Address,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func mapPersistenceError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrDealerNotFound):
		return ErrDealerNotFound
	case errors.Is(err, persistence.ErrUserNotFound):
		return ErrUserNotFound
	default:
		return err
	}
}

func (f FieldErrors) add(field, message string) {
	if f == nil {
		return
	}
	f[field] = append(f[field], message)
}
