package controllers

import (
	"net/http"

	"github.com/perkpilot/backend/api/middleware"
	"github.com/perkpilot/backend/api/responses"
	"github.com/perkpilot/backend/internal/licensing"
	"github.com/perkpilot/backend/internal/templates"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
	"github.com/perkpilot/backend/pkg/logger"
)

// ClientListTemplates returns the active program templates visible to the
// authenticated extension. Inactive subscriptions see at most the demo cap.
func ClientListTemplates(svc templates.Service, clock licensing.Clock, logg *logger.Logger) http.HandlerFunc {
	if clock == nil {
		clock = licensing.SystemClock()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteClientError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "template service unavailable"))
			return
		}

		license := middleware.ClientLicenseFromContext(r.Context())
		if license == nil {
			responses.WriteClientError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Missing API key"))
			return
		}

		ent := licensing.Evaluate(license, clock.Now().UTC())
		items, err := svc.ListForClient(r.Context(), ent.ProgramLimit)
		if err != nil {
			responses.WriteClientError(r.Context(), logg, w, err)
			return
		}

		responses.WriteRaw(w, http.StatusOK, map[string]any{
			"templates":    items,
			"programLimit": ent.ProgramLimit,
		})
	}
}
