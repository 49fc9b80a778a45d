package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/types"
)

type fakeKeySource struct {
	licenses map[string]*models.License
	err      error
}

func (f *fakeKeySource) FindByAPIKey(ctx context.Context, apiKey string) (*models.License, error) {
	if f.err != nil {
		return nil, f.err
	}
	license, ok := f.licenses[apiKey]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return license, nil
}

func ptr[T any](v T) *T { return &v }

func decodeClientError(t *testing.T, resp *httptest.ResponseRecorder) types.ClientError {
	t.Helper()
	var body types.ClientError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestClientAuthErrorContract(t *testing.T) {
	const knownKey = "pp_0123456789abcdef"
	source := &fakeKeySource{licenses: map[string]*models.License{
		knownKey: {ID: uuid.New(), APIKey: ptr(knownKey)},
	}}

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantError  string
	}{
		{name: "missing header", authHeader: "", wantStatus: http.StatusUnauthorized, wantError: "Missing API key"},
		{name: "short key", authHeader: "Bearer short", wantStatus: http.StatusUnauthorized, wantError: "Invalid API key format"},
		{name: "unknown key", authHeader: "Bearer " + strings.Repeat("x", 20), wantStatus: http.StatusUnauthorized, wantError: "Invalid API key"},
	}

	handler := ClientAuth(source, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)

			if resp.Code != tc.wantStatus {
				t.Fatalf("expected %d got %d", tc.wantStatus, resp.Code)
			}
			body := decodeClientError(t, resp)
			if body.Valid {
				t.Fatal("expected valid=false")
			}
			if body.Error != tc.wantError {
				t.Fatalf("expected error %q got %q", tc.wantError, body.Error)
			}
		})
	}
}

func TestClientAuthAttachesLicense(t *testing.T) {
	const key = "pp_0123456789abcdef"
	want := &models.License{ID: uuid.New(), APIKey: ptr(key)}
	source := &fakeKeySource{licenses: map[string]*models.License{key: want}}

	var got *models.License
	handler := ClientAuth(source, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientLicenseFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got == nil || got.ID != want.ID {
		t.Fatal("expected license in context")
	}
}
