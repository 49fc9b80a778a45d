package models

import (
	"time"

	"github.com/google/uuid"
)

// NewsItem is an announcement; a null published_at means draft.
type NewsItem struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuthorID    uuid.UUID  `gorm:"column:author_id;type:uuid;not null"`
	Title       string     `gorm:"column:title;not null"`
	Body        string     `gorm:"column:body;not null"`
	PublishedAt *time.Time `gorm:"column:published_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
