package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	platformauth "github.com/motorline/dealerdesk/platform/go/auth"
	"github.com/motorline/dealerdesk/platform/go/gcp"
)

// buildAuthMiddleware constructs the JWT verification middleware. Verification
// only establishes the subject; company and role resolution happens later in
// the principal middleware from the stored user record.
func buildAuthMiddleware(ctx context.Context, cfg config, logger *zap.Logger) func(http.Handler) http.Handler {
	var verify platformauth.VerifyFunc
	switch cfg.AuthProvider {
	case "firebase":
		_, fbAuth, err := gcp.InitFirebaseAuth(ctx)
		if err != nil {
			logger.Fatal("init firebase auth", zap.Error(err))
		}
		verify = platformauth.FirebaseTokenVerifier(fbAuth)
	case "dev":
		logger.Warn("using dev auth middleware; do not use in production")
		verify = platformauth.UnsignedTokenVerifier()
	default:
		logger.Fatal("unsupported auth provider", zap.String("provider", cfg.AuthProvider))
	}

	return platformauth.JWT(verify, platformauth.DefaultCredentialExtractor)
}
