package forum

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
	"github.com/perkpilot/backend/pkg/pagination"
)

// Repository exposes persistence helpers for forum threads and posts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateThread(ctx context.Context, thread *models.ForumThread) error
	FindThread(ctx context.Context, id uuid.UUID) (*models.ForumThread, error)
	ListThreads(ctx context.Context, params listThreadsParams) ([]models.ForumThread, *pagination.Cursor, error)
	SetThreadStatus(ctx context.Context, id uuid.UUID, status enums.ThreadStatus) error
	LockIdleThreads(ctx context.Context, idleBefore time.Time) (int64, error)
	CreatePost(ctx context.Context, post *models.ForumPost) error
	FindPost(ctx context.Context, id uuid.UUID) (*models.ForumPost, error)
	ListPosts(ctx context.Context, threadID uuid.UUID) ([]models.ForumPost, error)
	DeletePost(ctx context.Context, id uuid.UUID) error
	RecordReply(ctx context.Context, threadID uuid.UUID, postedAt time.Time) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a forum repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

type listThreadsParams struct {
	Limit  int
	Cursor *pagination.Cursor
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) CreateThread(ctx context.Context, thread *models.ForumThread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

func (r *repositoryImpl) FindThread(ctx context.Context, id uuid.UUID) (*models.ForumThread, error) {
	var thread models.ForumThread
	if err := r.db.WithContext(ctx).First(&thread, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &thread, nil
}

func (r *repositoryImpl) ListThreads(ctx context.Context, params listThreadsParams) ([]models.ForumThread, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.ForumThread{})
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var threads []models.ForumThread
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&threads).Error; err != nil {
		return nil, nil, err
	}

	if len(threads) > normalized {
		threads = threads[:normalized]
		last := threads[len(threads)-1]
		return threads, &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return threads, nil, nil
}

func (r *repositoryImpl) SetThreadStatus(ctx context.Context, id uuid.UUID, status enums.ThreadStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.ForumThread{}).
		Where("id = ?", id).
		UpdateColumn("status", status).Error
}

// LockIdleThreads locks every open thread whose last post predates the cutoff.
func (r *repositoryImpl) LockIdleThreads(ctx context.Context, idleBefore time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ForumThread{}).
		Where("status = ? AND last_posted_at < ?", enums.ThreadStatusOpen, idleBefore).
		UpdateColumn("status", enums.ThreadStatusLocked)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repositoryImpl) CreatePost(ctx context.Context, post *models.ForumPost) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *repositoryImpl) FindPost(ctx context.Context, id uuid.UUID) (*models.ForumPost, error) {
	var post models.ForumPost
	if err := r.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *repositoryImpl) ListPosts(ctx context.Context, threadID uuid.UUID) ([]models.ForumPost, error) {
	var posts []models.ForumPost
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC, id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *repositoryImpl) DeletePost(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.ForumPost{}, "id = ?", id).Error
}

// RecordReply bumps the reply counter and last-posted marker in one statement.
func (r *repositoryImpl) RecordReply(ctx context.Context, threadID uuid.UUID, postedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.ForumThread{}).
		Where("id = ?", threadID).
		Updates(map[string]any{
			"reply_count":    gorm.Expr("reply_count + 1"),
			"last_posted_at": postedAt,
		}).Error
}
