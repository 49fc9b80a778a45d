package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/perkpilot/backend/internal/auth"
	pkgauth "github.com/perkpilot/backend/pkg/auth"
	"github.com/perkpilot/backend/pkg/auth/session"
	"github.com/perkpilot/backend/pkg/config"
	"github.com/perkpilot/backend/pkg/enums"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
)

type stubAuthService struct {
	loginResp   *auth.LoginResponse
	refreshResp *auth.RefreshResponse
	err         error
	loggedOut   string
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.loginResp, s.err
}

func (s *stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return s.refreshResp, s.err
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	s.loggedOut = accessID
	return s.err
}

func TestAuthLoginSuccess(t *testing.T) {
	svc := &stubAuthService{loginResp: &auth.LoginResponse{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         auth.UserSummary{ID: uuid.New(), Email: "pilot@example.com", Role: "full"},
	}}
	handler := AuthLogin(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(`{"email":"pilot@example.com","password":"secret"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.AccessToken != "access-token" {
		t.Fatalf("access token = %q", envelope.Data.AccessToken)
	}
}

func TestAuthLoginRejectsMissingFields(t *testing.T) {
	handler := AuthLogin(&stubAuthService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(`{"email":"pilot@example.com"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAuthLoginUnauthorizedMessagePassesThrough(t *testing.T) {
	svc := &stubAuthService{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
	handler := AuthLogin(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader([]byte(`{"email":"pilot@example.com","password":"wrong"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRefreshSuccess(t *testing.T) {
	svc := &stubAuthService{refreshResp: &auth.RefreshResponse{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
	}}
	handler := AuthRefresh(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewReader([]byte(`{"access_token":"old-access","refresh_token":"old-refresh"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data auth.RefreshResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.RefreshToken != "new-refresh" {
		t.Fatalf("refresh token = %q", envelope.Data.RefreshToken)
	}
}

func TestAuthLogoutRevokesPresentedSession(t *testing.T) {
	jwtCfg := config.JWTConfig{Secret: "controller-test-secret", Issuer: "perkpilot-test", ExpirationMinutes: 15}
	accessID := session.NewAccessID()
	token, err := pkgauth.MintAccessToken(jwtCfg, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleFull,
		JTI:    accessID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	svc := &stubAuthService{}
	handler := AuthLogout(svc, jwtCfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.loggedOut != accessID {
		t.Fatalf("revoked session = %q, want %q", svc.loggedOut, accessID)
	}
}

func TestAuthLogoutRejectsMissingToken(t *testing.T) {
	handler := AuthLogout(&stubAuthService{}, config.JWTConfig{Secret: "s", Issuer: "i", ExpirationMinutes: 15}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
