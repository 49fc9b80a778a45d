package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
	pkgpagination "github.com/perkpilot/backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the forum operations used by the dashboard.
type Service interface {
	ListThreads(ctx context.Context, params ListParams) (*ThreadList, error)
	CreateThread(ctx context.Context, authorID uuid.UUID, input CreateThreadInput) (*models.ForumThread, error)
	GetThread(ctx context.Context, id uuid.UUID) (*ThreadDetail, error)
	Reply(ctx context.Context, authorID, threadID uuid.UUID, body string) (*models.ForumPost, error)
	LockThread(ctx context.Context, id uuid.UUID) error
	DeletePost(ctx context.Context, actorID uuid.UUID, actorRole enums.Role, postID uuid.UUID) error
}

// ListParams holds cursor pagination inputs.
type ListParams struct {
	Limit  int
	Cursor string
}

// ThreadList is one page of threads plus the next cursor.
type ThreadList struct {
	Items  []models.ForumThread
	Cursor string
}

// ThreadDetail is a thread with its posts in chronological order.
type ThreadDetail struct {
	Thread models.ForumThread
	Posts  []models.ForumPost
}

// CreateThreadInput holds a new thread's title and opening post body.
type CreateThreadInput struct {
	Title string
	Body  string
}

type service struct {
	repo Repository
	db   txRunner
}

// NewService builds a forum service backed by the provided repository.
func NewService(repo Repository, db txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("forum repository required")
	}
	if db == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	return &service{repo: repo, db: db}, nil
}

func (s *service) ListThreads(ctx context.Context, params ListParams) (*ThreadList, error) {
	query := listThreadsParams{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListThreads(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list threads")
	}

	result := &ThreadList{Items: rows}
	if next != nil {
		result.Cursor = pkgpagination.EncodeCursor(*next)
	}
	return result, nil
}

// CreateThread writes the thread and its opening post in one transaction.
func (s *service) CreateThread(ctx context.Context, authorID uuid.UUID, input CreateThreadInput) (*models.ForumThread, error) {
	if authorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author identity missing")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "body is required")
	}

	now := time.Now().UTC()
	thread := &models.ForumThread{
		AuthorID:     authorID,
		Title:        title,
		Status:       enums.ThreadStatusOpen,
		LastPostedAt: now,
	}

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateThread(ctx, thread); err != nil {
			return err
		}
		return repo.CreatePost(ctx, &models.ForumPost{
			ThreadID: thread.ID,
			AuthorID: authorID,
			Body:     body,
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create thread")
	}
	return thread, nil
}

func (s *service) GetThread(ctx context.Context, id uuid.UUID) (*ThreadDetail, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "thread id is required")
	}
	thread, err := s.repo.FindThread(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "thread not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup thread")
	}
	posts, err := s.repo.ListPosts(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list posts")
	}
	return &ThreadDetail{Thread: *thread, Posts: posts}, nil
}

// Reply appends a post and bumps the thread counters transactionally.
func (s *service) Reply(ctx context.Context, authorID, threadID uuid.UUID, body string) (*models.ForumPost, error) {
	if authorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author identity missing")
	}
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "body is required")
	}

	thread, err := s.repo.FindThread(ctx, threadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "thread not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup thread")
	}
	if thread.Status == enums.ThreadStatusLocked {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "thread is locked")
	}

	now := time.Now().UTC()
	post := &models.ForumPost{
		ThreadID: threadID,
		AuthorID: authorID,
		Body:     trimmed,
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreatePost(ctx, post); err != nil {
			return err
		}
		return repo.RecordReply(ctx, threadID, now)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reply")
	}
	return post, nil
}

func (s *service) LockThread(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "thread id is required")
	}
	thread, err := s.repo.FindThread(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "thread not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup thread")
	}
	if thread.Status == enums.ThreadStatusLocked {
		return nil
	}
	if err := s.repo.SetThreadStatus(ctx, id, enums.ThreadStatusLocked); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock thread")
	}
	return nil
}

// DeletePost removes a post; only its author or an admin may do so.
func (s *service) DeletePost(ctx context.Context, actorID uuid.UUID, actorRole enums.Role, postID uuid.UUID) error {
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor identity missing")
	}
	if postID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "post id is required")
	}

	post, err := s.repo.FindPost(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "post not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup post")
	}
	if post.AuthorID != actorID && actorRole != enums.RoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the author or an admin can delete a post")
	}

	if err := s.repo.DeletePost(ctx, postID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete post")
	}
	return nil
}
