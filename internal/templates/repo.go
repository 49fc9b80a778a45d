package templates

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
)

// Repository exposes persistence helpers for program templates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, tpl *models.ProgramTemplate) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ProgramTemplate, error)
	FindBySlug(ctx context.Context, slug string) (*models.ProgramTemplate, error)
	List(ctx context.Context) ([]models.ProgramTemplate, error)
	ListActive(ctx context.Context, limit int) ([]models.ProgramTemplate, error)
	Update(ctx context.Context, tpl *models.ProgramTemplate) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a template repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, tpl *models.ProgramTemplate) error {
	return r.db.WithContext(ctx).Create(tpl).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.ProgramTemplate, error) {
	var tpl models.ProgramTemplate
	if err := r.db.WithContext(ctx).First(&tpl, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *repositoryImpl) FindBySlug(ctx context.Context, slug string) (*models.ProgramTemplate, error) {
	var tpl models.ProgramTemplate
	if err := r.db.WithContext(ctx).First(&tpl, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

// List returns every template, active or not, for the dashboard.
func (r *repositoryImpl) List(ctx context.Context) ([]models.ProgramTemplate, error) {
	var tpls []models.ProgramTemplate
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&tpls).Error; err != nil {
		return nil, err
	}
	return tpls, nil
}

// ListActive returns active templates ordered by name. A non-negative limit
// caps the result; a negative limit returns everything.
func (r *repositoryImpl) ListActive(ctx context.Context, limit int) ([]models.ProgramTemplate, error) {
	query := r.db.WithContext(ctx).Where("active = ?", true).Order("name ASC")
	if limit >= 0 {
		query = query.Limit(limit)
	}

	var tpls []models.ProgramTemplate
	if err := query.Find(&tpls).Error; err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *repositoryImpl) Update(ctx context.Context, tpl *models.ProgramTemplate) error {
	return r.db.WithContext(ctx).Save(tpl).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ProgramTemplate{}, "id = ?", id).Error
}
