package principal

import (
	"context"

	"github.com/google/uuid"

	"github.com/motorline/dealerdesk/platform/go/rbac"
)

// Principal is the tenant-scoped view of the authenticated caller, resolved
// from the identity-provider subject by the identity service. Every
// company-scoped query derives its companyId from here, never from client
// input.
type Principal struct {
	UserID    uuid.UUID
	CompanyID int64
	Role      rbac.Role
	FirstName string
	LastName  string
	Email     string
}

type ctxKey string

const principalKey ctxKey = "DEALERDESK_PRINCIPAL"

// WithPrincipal returns a derived context carrying the resolved Principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext extracts the Principal and a boolean indicating presence.
func FromContext(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalKey)
	if v == nil {
		return Principal{}, false
	}

	p, ok := v.(Principal)
	return p, ok
}
