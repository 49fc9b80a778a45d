package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/perkpilot/backend/api/responses"
	"github.com/perkpilot/backend/api/validators"
	"github.com/perkpilot/backend/internal/licensing"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
	"github.com/perkpilot/backend/pkg/logger"
	"github.com/perkpilot/backend/pkg/metrics"
)

const installationIDHeader = "X-Installation-Id"

// ValidateLicense serves the extension's validation endpoint. Success returns
// the signed entitlement payload bare, without the dashboard envelope; every
// failure uses the flat {"valid":false,...} shape the extension expects.
func ValidateLicense(svc licensing.Service, vm *metrics.ValidationMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteClientError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		start := time.Now()
		apiKey, ok := validators.BearerToken(r)
		if !ok {
			vm.IncOutcome("unauthorized")
			responses.WriteClientError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "Missing API key"))
			return
		}

		installationID, err := resolveInstallationID(r)
		if err != nil {
			vm.IncOutcome(validationOutcome(err))
			responses.WriteClientError(r.Context(), logg, w, err)
			return
		}

		payload, err := svc.Validate(r.Context(), apiKey, installationID)
		vm.ObserveDuration(time.Since(start))
		if err != nil {
			vm.IncOutcome(validationOutcome(err))
			responses.WriteClientError(r.Context(), logg, w, err)
			return
		}

		vm.IncOutcome("valid")
		responses.WriteRaw(w, http.StatusOK, payload)
	}
}

// resolveInstallationID prefers the POST body's installationId over the
// header. An absent body falls back to the header; a body that is present
// but not valid JSON is a validation failure.
func resolveInstallationID(r *http.Request) (string, error) {
	headerID := strings.TrimSpace(r.Header.Get(installationIDHeader))
	if r.Method != http.MethodPost || r.Body == nil {
		return headerID, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "Malformed request body")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return headerID, nil
	}

	var body struct {
		InstallationID string `json:"installationId"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Malformed request body")
	}
	if id := strings.TrimSpace(body.InstallationID); id != "" {
		return id, nil
	}
	return headerID, nil
}

func validationOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeUnauthorized:
		return "unauthorized"
	case pkgerrors.CodeInstallationMismatch:
		return "installation_mismatch"
	case pkgerrors.CodeValidation:
		return "invalid_request"
	default:
		return "error"
	}
}
