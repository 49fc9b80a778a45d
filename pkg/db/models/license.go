package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/perkpilot/backend/pkg/enums"
)

// License is the persisted authorization record keyed by API key. The API key
// is nullable so revoked licenses keep their history; the partial unique index
// lives in the migration.
type License struct {
	ID                  uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	APIKey              *string                  `gorm:"column:api_key"`
	Role                enums.Role               `gorm:"column:role;type:smallint;not null;default:1"`
	APIKeyCreatedAt     *time.Time               `gorm:"column:api_key_created_at"`
	InstallationID      *string                  `gorm:"column:installation_id"`
	InstallationBoundAt *time.Time               `gorm:"column:installation_bound_at"`
	SubscriptionStatus  enums.SubscriptionStatus `gorm:"column:subscription_status;not null;default:'TRIAL'"`
	SubscriptionEndDate *time.Time               `gorm:"column:subscription_end_date"`
	SubscriptionType    *string                  `gorm:"column:subscription_type"`
	CreatedAt           time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
