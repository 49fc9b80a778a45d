package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/perkpilot/backend/internal/templates"
	"github.com/perkpilot/backend/pkg/db/models"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
)

type stubTemplateService struct {
	items      []models.ProgramTemplate
	item       *models.ProgramTemplate
	err        error
	clientCap  int
	lastActive *bool
	deleted    uuid.UUID
}

func (s *stubTemplateService) List(ctx context.Context) ([]models.ProgramTemplate, error) {
	return s.items, s.err
}

func (s *stubTemplateService) ListForClient(ctx context.Context, programLimit int) ([]models.ProgramTemplate, error) {
	s.clientCap = programLimit
	return s.items, s.err
}

func (s *stubTemplateService) Get(ctx context.Context, id uuid.UUID) (*models.ProgramTemplate, error) {
	return s.item, s.err
}

func (s *stubTemplateService) Create(ctx context.Context, input templates.TemplateInput) (*models.ProgramTemplate, error) {
	if s.err != nil {
		return nil, s.err
	}
	item := s.item
	item.Name = input.Name
	item.Slug = input.Slug
	return item, nil
}

func (s *stubTemplateService) Update(ctx context.Context, id uuid.UUID, input templates.TemplateInput) (*models.ProgramTemplate, error) {
	return s.item, s.err
}

func (s *stubTemplateService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.ProgramTemplate, error) {
	s.lastActive = &active
	return s.item, s.err
}

func (s *stubTemplateService) Delete(ctx context.Context, id uuid.UUID) error {
	s.deleted = id
	return s.err
}

func TestAdminCreateTemplate(t *testing.T) {
	svc := &stubTemplateService{item: &models.ProgramTemplate{ID: uuid.New(), Version: 1, Active: true}}
	handler := AdminCreateTemplate(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/templates", bytes.NewReader([]byte(`{"name":"Coffee Club","slug":"coffee-club","fields":{"stampTarget":10}}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data models.ProgramTemplate `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Slug != "coffee-club" {
		t.Fatalf("slug = %q", envelope.Data.Slug)
	}
}

func TestAdminCreateTemplateSlugConflict(t *testing.T) {
	svc := &stubTemplateService{err: pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")}
	handler := AdminCreateTemplate(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/templates", bytes.NewReader([]byte(`{"name":"Coffee Club","slug":"coffee-club"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestAdminSetTemplateActive(t *testing.T) {
	templateID := uuid.New()
	svc := &stubTemplateService{item: &models.ProgramTemplate{ID: templateID, Active: false}}
	router := chi.NewRouter()
	router.Patch("/api/admin/v1/templates/{templateID}/active", AdminSetTemplateActive(svc, nil))

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/templates/"+templateID.String()+"/active", bytes.NewReader([]byte(`{"active":false}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastActive == nil || *svc.lastActive {
		t.Fatalf("active = %v, want false", svc.lastActive)
	}
}

func TestAdminSetTemplateActiveRequiresField(t *testing.T) {
	router := chi.NewRouter()
	router.Patch("/api/admin/v1/templates/{templateID}/active", AdminSetTemplateActive(&stubTemplateService{}, nil))

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/v1/templates/"+uuid.NewString()+"/active", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminDeleteTemplate(t *testing.T) {
	templateID := uuid.New()
	svc := &stubTemplateService{}
	router := chi.NewRouter()
	router.Delete("/api/admin/v1/templates/{templateID}", AdminDeleteTemplate(svc, nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/v1/templates/"+templateID.String(), nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.deleted != templateID {
		t.Fatalf("deleted %s, want %s", svc.deleted, templateID)
	}
}
