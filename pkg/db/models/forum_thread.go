package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/perkpilot/backend/pkg/enums"
)

// ForumThread heads a discussion; reply_count and last_posted_at are
// maintained transactionally alongside post creation.
type ForumThread struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuthorID     uuid.UUID          `gorm:"column:author_id;type:uuid;not null"`
	Title        string             `gorm:"column:title;not null"`
	Status       enums.ThreadStatus `gorm:"column:status;not null;default:'open'"`
	ReplyCount   int                `gorm:"column:reply_count;not null;default:0"`
	LastPostedAt time.Time          `gorm:"column:last_posted_at;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
