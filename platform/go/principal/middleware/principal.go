package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	platformauth "github.com/motorline/dealerdesk/platform/go/auth"
	"github.com/motorline/dealerdesk/platform/go/principal"
)

// ErrNoLocalUser is returned by resolvers when the subject is authenticated
// upstream but has no tenant record yet.
var ErrNoLocalUser = errors.New("no local user for subject")

// Resolver maps an identity-provider subject id to the tenant-scoped
// Principal. Implemented by the identity service.
type Resolver interface {
	ResolvePrincipal(ctx context.Context, subjectID string) (principal.Principal, error)
}

// Config controls middleware behavior.
type Config struct {
	// Optional small in-memory TTL cache to avoid a store hit per request;
	// zero disables caching.
	CacheTTL time.Duration
}

// WithPrincipal resolves the caller's tenant record from the verified
// credentials and attaches principal.Principal to the context. Anonymous
// callers are rejected with 401 before any store lookup; subjects that
// authenticate upstream but have no tenant record yet get 404.
func WithPrincipal(resolver Resolver, cfg Config) func(http.Handler) http.Handler {
	if resolver == nil {
		panic("principal middleware: resolver is required")
	}

	var cache *principalCache
	if cfg.CacheTTL > 0 {
		cache = newPrincipalCache(cfg.CacheTTL)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds, ok := platformauth.UserFromContext(r.Context())
			if !ok || creds == nil || creds.SubjectID == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if cached := cache.get(creds.SubjectID); cached != nil {
				ctx := principal.WithPrincipal(r.Context(), *cached)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			p, err := resolver.ResolvePrincipal(r.Context(), creds.SubjectID)
			if err != nil {
				if errors.Is(err, ErrNoLocalUser) {
					http.Error(w, "no tenant record for user", http.StatusNotFound)
					return
				}
				http.Error(w, "identity resolution failed", http.StatusInternalServerError)
				return
			}

			cache.put(creds.SubjectID, p)

			ctx := principal.WithPrincipal(r.Context(), p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type principalCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]cacheItem
}

type cacheItem struct {
	principal principal.Principal
	expiresAt time.Time
}

func newPrincipalCache(ttl time.Duration) *principalCache {
	return &principalCache{ttl: ttl, items: make(map[string]cacheItem)}
}

func (c *principalCache) get(subjectID string) *principal.Principal {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.items[subjectID]
	if !ok || time.Now().After(item.expiresAt) {
		return nil
	}
	return &item.principal
}

func (c *principalCache) put(subjectID string, p principal.Principal) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[subjectID] = cacheItem{principal: p, expiresAt: time.Now().Add(c.ttl)}
}
