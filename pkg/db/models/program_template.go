package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProgramTemplate describes one rewards program the client extension can
// auto-fill. Fields holds the form field mapping the extension consumes.
type ProgramTemplate struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string          `gorm:"column:name;not null"`
	Slug        string          `gorm:"column:slug;not null;uniqueIndex"`
	Description string          `gorm:"column:description;not null;default:''"`
	Fields      json.RawMessage `gorm:"column:fields;type:jsonb;not null;default:'{}'"`
	Version     int             `gorm:"column:version;not null;default:1"`
	Active      bool            `gorm:"column:active;not null;default:true"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
