package forum

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
)

// threadTable mirrors the forum_threads schema without the Postgres-only
// column defaults so sqlite can migrate it.
type threadTable struct {
	ID           uuid.UUID `gorm:"column:id;primaryKey"`
	AuthorID     uuid.UUID `gorm:"column:author_id"`
	Title        string    `gorm:"column:title"`
	Status       string    `gorm:"column:status"`
	ReplyCount   int       `gorm:"column:reply_count"`
	LastPostedAt time.Time `gorm:"column:last_posted_at"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (threadTable) TableName() string { return "forum_threads" }

type postTable struct {
	ID        uuid.UUID `gorm:"column:id;primaryKey"`
	ThreadID  uuid.UUID `gorm:"column:thread_id;index"`
	AuthorID  uuid.UUID `gorm:"column:author_id"`
	Body      string    `gorm:"column:body"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (postTable) TableName() string { return "forum_posts" }

func newForumTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:forum_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&threadTable{}, &postTable{}))
	return db
}

func seedThread(t *testing.T, db *gorm.DB, createdAt time.Time, status enums.ThreadStatus) *models.ForumThread {
	t.Helper()
	thread := &models.ForumThread{
		ID:           uuid.New(),
		AuthorID:     uuid.New(),
		Title:        "thread " + createdAt.Format(time.RFC3339),
		Status:       status,
		LastPostedAt: createdAt,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	require.NoError(t, db.Create(thread).Error)
	return thread
}

func TestListThreadsPaginatesNewestFirst(t *testing.T) {
	db := newForumTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var created []*models.ForumThread
	for i := 0; i < 5; i++ {
		created = append(created, seedThread(t, db, base.Add(time.Duration(i)*time.Hour), enums.ThreadStatusOpen))
	}

	page, cursor, err := repo.ListThreads(ctx, listThreadsParams{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page, 3)
	require.NotNil(t, cursor)
	assert.Equal(t, created[4].ID, page[0].ID)
	assert.Equal(t, created[2].ID, page[2].ID)

	rest, next, err := repo.ListThreads(ctx, listThreadsParams{Limit: 3, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Nil(t, next)
	assert.Equal(t, created[1].ID, rest[0].ID)
	assert.Equal(t, created[0].ID, rest[1].ID)
}

func TestLockIdleThreadsOnlyTouchesOpenStaleThreads(t *testing.T) {
	db := newForumTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	stale := seedThread(t, db, cutoff.Add(-48*time.Hour), enums.ThreadStatusOpen)
	fresh := seedThread(t, db, cutoff.Add(time.Hour), enums.ThreadStatusOpen)
	alreadyLocked := seedThread(t, db, cutoff.Add(-72*time.Hour), enums.ThreadStatusLocked)

	locked, err := repo.LockIdleThreads(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), locked)

	got, err := repo.FindThread(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ThreadStatusLocked, got.Status)

	got, err = repo.FindThread(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ThreadStatusOpen, got.Status)

	got, err = repo.FindThread(ctx, alreadyLocked.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.ThreadStatusLocked, got.Status)
}

func TestRecordReplyBumpsCountersAtomically(t *testing.T) {
	db := newForumTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	created := time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)
	thread := seedThread(t, db, created, enums.ThreadStatusOpen)

	postedAt := created.Add(30 * time.Minute)
	post := &models.ForumPost{
		ID:       uuid.New(),
		ThreadID: thread.ID,
		AuthorID: uuid.New(),
		Body:     "first reply",
	}
	require.NoError(t, repo.CreatePost(ctx, post))
	require.NoError(t, repo.RecordReply(ctx, thread.ID, postedAt))

	got, err := repo.FindThread(ctx, thread.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReplyCount)
	assert.WithinDuration(t, postedAt, got.LastPostedAt, time.Second)

	posts, err := repo.ListPosts(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "first reply", posts[0].Body)
}

func TestDeletePostRemovesOnlyTarget(t *testing.T) {
	db := newForumTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	thread := seedThread(t, db, time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC), enums.ThreadStatusOpen)
	keep := &models.ForumPost{ID: uuid.New(), ThreadID: thread.ID, AuthorID: uuid.New(), Body: "keep"}
	drop := &models.ForumPost{ID: uuid.New(), ThreadID: thread.ID, AuthorID: uuid.New(), Body: "drop"}
	require.NoError(t, repo.CreatePost(ctx, keep))
	require.NoError(t, repo.CreatePost(ctx, drop))

	require.NoError(t, repo.DeletePost(ctx, drop.ID))

	posts, err := repo.ListPosts(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, keep.ID, posts[0].ID)

	_, err = repo.FindPost(ctx, drop.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
