package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Service exposes program template reads for the client and dashboard plus
// the admin editing lifecycle.
type Service interface {
	List(ctx context.Context) ([]models.ProgramTemplate, error)
	ListForClient(ctx context.Context, programLimit int) ([]models.ProgramTemplate, error)
	Get(ctx context.Context, id uuid.UUID) (*models.ProgramTemplate, error)
	Create(ctx context.Context, input TemplateInput) (*models.ProgramTemplate, error)
	Update(ctx context.Context, id uuid.UUID, input TemplateInput) (*models.ProgramTemplate, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.ProgramTemplate, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// TemplateInput holds the writable fields of a program template.
type TemplateInput struct {
	Name        string
	Slug        string
	Description string
	Fields      json.RawMessage
}

type service struct {
	repo Repository
}

// NewService builds a template service backed by the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("template repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]models.ProgramTemplate, error) {
	tpls, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list templates")
	}
	return tpls, nil
}

// ListForClient returns the active templates the extension may use. A
// non-negative program limit caps the result so restricted licenses only
// receive as many templates as they can run.
func (s *service) ListForClient(ctx context.Context, programLimit int) ([]models.ProgramTemplate, error) {
	tpls, err := s.repo.ListActive(ctx, programLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active templates")
	}
	return tpls, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.ProgramTemplate, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template id is required")
	}
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup template")
	}
	return tpl, nil
}

func (s *service) Create(ctx context.Context, input TemplateInput) (*models.ProgramTemplate, error) {
	normalized, err := normalizeTemplateInput(input)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindBySlug(ctx, normalized.Slug); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
	}

	tpl := &models.ProgramTemplate{
		Name:        normalized.Name,
		Slug:        normalized.Slug,
		Description: normalized.Description,
		Fields:      normalized.Fields,
		Version:     1,
		Active:      true,
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create template")
	}
	return tpl, nil
}

// Update rewrites a template's content. Changing the field mapping bumps the
// version so clients can detect stale cached copies.
func (s *service) Update(ctx context.Context, id uuid.UUID, input TemplateInput) (*models.ProgramTemplate, error) {
	normalized, err := normalizeTemplateInput(input)
	if err != nil {
		return nil, err
	}

	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if normalized.Slug != tpl.Slug {
		if _, err := s.repo.FindBySlug(ctx, normalized.Slug); err == nil {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
		}
	}

	if !bytesEqual(tpl.Fields, normalized.Fields) {
		tpl.Version++
	}
	tpl.Name = normalized.Name
	tpl.Slug = normalized.Slug
	tpl.Description = normalized.Description
	tpl.Fields = normalized.Fields

	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update template")
	}
	return tpl, nil
}

func (s *service) SetActive(ctx context.Context, id uuid.UUID, active bool) (*models.ProgramTemplate, error) {
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tpl.Active == active {
		return tpl, nil
	}
	tpl.Active = active
	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update template")
	}
	return tpl, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete template")
	}
	return nil
}

func normalizeTemplateInput(input TemplateInput) (TemplateInput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return TemplateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(slug) {
		return TemplateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits, and hyphens")
	}

	fields := input.Fields
	if len(fields) == 0 {
		fields = json.RawMessage(`{}`)
	}
	if !json.Valid(fields) {
		return TemplateInput{}, pkgerrors.New(pkgerrors.CodeValidation, "fields must be valid JSON")
	}

	return TemplateInput{
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(input.Description),
		Fields:      fields,
	}, nil
}

func bytesEqual(a, b json.RawMessage) bool {
	return string(a) == string(b)
}
