package news

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/pagination"
)

// Repository exposes persistence helpers for news items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.NewsItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.NewsItem, error)
	ListPublished(ctx context.Context, params listNewsParams) ([]models.NewsItem, *pagination.Cursor, error)
	Update(ctx context.Context, item *models.NewsItem) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a news repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listNewsParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, item *models.NewsItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.NewsItem, error) {
	var item models.NewsItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repositoryImpl) ListPublished(ctx context.Context, params listNewsParams) ([]models.NewsItem, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.NewsItem{}).Where("published_at IS NOT NULL")
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var items []models.NewsItem
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, nil, err
	}

	if len(items) > normalized {
		items = items[:normalized]
		last := items[len(items)-1]
		return items, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return items, nil, nil
}

func (r *repositoryImpl) Update(ctx context.Context, item *models.NewsItem) error {
	return r.db.WithContext(ctx).Save(item).Error
}

func (r *repositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.NewsItem{}, "id = ?", id).Error
}
