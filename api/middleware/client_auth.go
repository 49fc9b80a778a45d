package middleware

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/perkpilot/backend/api/responses"
	"github.com/perkpilot/backend/api/validators"
	"github.com/perkpilot/backend/internal/licensing"
	"github.com/perkpilot/backend/pkg/db/models"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
	"github.com/perkpilot/backend/pkg/logger"
)

const ctxClientLicense contextKey = "client_license"

// APIKeySource resolves licenses from raw API keys.
type APIKeySource interface {
	FindByAPIKey(ctx context.Context, apiKey string) (*models.License, error)
}

// WithClientLicense injects a resolved license into the context.
func WithClientLicense(ctx context.Context, license *models.License) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxClientLicense, license)
}

// ClientLicenseFromContext returns the license resolved by ClientAuth.
func ClientLicenseFromContext(ctx context.Context) *models.License {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxClientLicense).(*models.License); ok {
		return v
	}
	return nil
}

// ClientAuth authenticates extension requests by API key and attaches the
// license to the context. It never binds devices or mutates entitlement
// state; the validate endpoint owns those effects.
func ClientAuth(licenses APIKeySource, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := validators.BearerToken(r)
			if !ok {
				responses.WriteClientError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Missing API key"))
				return
			}
			if len(key) < licensing.MinAPIKeyLength {
				responses.WriteClientError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid API key format"))
				return
			}

			license, err := licenses.FindByAPIKey(r.Context(), key)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					responses.WriteClientError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid API key"))
					return
				}
				responses.WriteClientError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxClientLicense, license)
			if logg != nil {
				ctx = logg.WithLicenseID(ctx, license.ID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
