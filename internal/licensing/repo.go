package licensing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
	"github.com/perkpilot/backend/pkg/pagination"
)

// Repository exposes persistence helpers for licenses. The conditional updates
// (BindInstallation, ExpireSubscription) are guarded single-statement writes;
// RowsAffected tells the caller whether the guard still held.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, license *models.License) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.License, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.License, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.License, error)
	List(ctx context.Context, params ListQuery) ([]models.License, *pagination.Cursor, error)
	BindInstallation(ctx context.Context, id uuid.UUID, installationID string, now time.Time) (bool, error)
	ClearInstallation(ctx context.Context, id uuid.UUID) error
	ExpireSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	SetAPIKey(ctx context.Context, id uuid.UUID, apiKey string, now time.Time) error
	ClearAPIKey(ctx context.Context, id uuid.UUID) error
	SetRole(ctx context.Context, id uuid.UUID, role enums.Role) error
	ApplySubscription(ctx context.Context, id uuid.UUID, change SubscriptionChange) error
	FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.License, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a licenses repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

// ListQuery holds cursor pagination inputs for the license list.
type ListQuery struct {
	Limit  int
	Cursor *pagination.Cursor
}

type SubscriptionChange struct {
	Status  enums.SubscriptionStatus
	EndDate *time.Time
	Type    *string
	Role    *enums.Role
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, license *models.License) error {
	return r.db.WithContext(ctx).Create(license).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).First(&license, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *repositoryImpl) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).First(&license, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *repositoryImpl) FindByAPIKey(ctx context.Context, apiKey string) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).First(&license, "api_key = ?", apiKey).Error; err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *repositoryImpl) List(ctx context.Context, params ListQuery) ([]models.License, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.License{})
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var licenses []models.License
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&licenses).Error; err != nil {
		return nil, nil, err
	}

	if len(licenses) > normalized {
		licenses = licenses[:normalized]
		last := licenses[len(licenses)-1]
		return licenses, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return licenses, nil, nil
}

// BindInstallation writes the installation id only while installation_id is
// still null. Returns false when the guard failed, meaning another request
// bound first and the caller must re-read.
func (r *repositoryImpl) BindInstallation(ctx context.Context, id uuid.UUID, installationID string, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ? AND installation_id IS NULL", id).
		Updates(map[string]any{
			"installation_id":       installationID,
			"installation_bound_at": now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) ClearInstallation(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"installation_id":       nil,
			"installation_bound_at": nil,
		}).Error
}

// ExpireSubscription transitions a lapsed ACTIVE or CANCELLED license to
// EXPIRED and downgrades the role unless it is admin, in one guarded
// statement. A false return means the license no longer qualifies, either
// because a concurrent request already expired it or the end date moved.
func (r *repositoryImpl) ExpireSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ? AND subscription_status IN ? AND subscription_end_date IS NOT NULL AND subscription_end_date < ?",
			id,
			[]enums.SubscriptionStatus{enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled},
			now,
		).
		Updates(map[string]any{
			"subscription_status": enums.SubscriptionStatusExpired,
			"role":                gorm.Expr("CASE WHEN role = ? THEN role ELSE ? END", enums.RoleAdmin, enums.RoleDemo),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetAPIKey installs a fresh key and wipes any device binding so the next
// validation can bind anew.
func (r *repositoryImpl) SetAPIKey(ctx context.Context, id uuid.UUID, apiKey string, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"api_key":               apiKey,
			"api_key_created_at":    now,
			"installation_id":       nil,
			"installation_bound_at": nil,
		}).Error
}

func (r *repositoryImpl) ClearAPIKey(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"api_key":            nil,
			"api_key_created_at": nil,
		}).Error
}

func (r *repositoryImpl) SetRole(ctx context.Context, id uuid.UUID, role enums.Role) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", id).
		UpdateColumn("role", role).Error
}

func (r *repositoryImpl) ApplySubscription(ctx context.Context, id uuid.UUID, change SubscriptionChange) error {
	updates := map[string]any{
		"subscription_status": change.Status,
	}
	if change.EndDate != nil {
		updates["subscription_end_date"] = *change.EndDate
	}
	if change.Type != nil {
		updates["subscription_type"] = *change.Type
	}
	if change.Role != nil {
		updates["role"] = *change.Role
	}
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repositoryImpl) FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.License, error) {
	var licenses []models.License
	err := r.db.WithContext(ctx).
		Where("subscription_status IN ? AND subscription_end_date IS NOT NULL AND subscription_end_date < ?",
			[]enums.SubscriptionStatus{enums.SubscriptionStatusActive, enums.SubscriptionStatusCancelled},
			now,
		).
		Order("subscription_end_date ASC").
		Limit(limit).
		Find(&licenses).Error
	if err != nil {
		return nil, err
	}
	return licenses, nil
}
