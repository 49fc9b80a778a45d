package validators

import (
	"net/http"
	"strings"
)

// BearerToken extracts the credential from an Authorization header. The
// second return is false when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return "", false
	}
	if len(raw) < 7 || !strings.EqualFold(raw[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(raw[7:])
	if token == "" {
		return "", false
	}
	return token, true
}
