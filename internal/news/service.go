package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
	pkgpagination "github.com/perkpilot/backend/pkg/pagination"
)

// Service exposes announcement reads for every signed-in user and the
// draft/publish lifecycle for admins.
type Service interface {
	ListPublished(ctx context.Context, params ListParams) (*ItemList, error)
	Get(ctx context.Context, id uuid.UUID) (*models.NewsItem, error)
	Create(ctx context.Context, authorID uuid.UUID, input ItemInput) (*models.NewsItem, error)
	Update(ctx context.Context, id uuid.UUID, input ItemInput) (*models.NewsItem, error)
	Publish(ctx context.Context, id uuid.UUID) (*models.NewsItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ListParams holds cursor pagination inputs.
type ListParams struct {
	Limit  int
	Cursor string
}

// ItemList is one page of published items plus the next cursor.
type ItemList struct {
	Items  []models.NewsItem
	Cursor string
}

// ItemInput holds the writable fields of a news item.
type ItemInput struct {
	Title string
	Body  string
}

type service struct {
	repo Repository
}

// NewService builds a news service backed by the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("news repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListPublished(ctx context.Context, params ListParams) (*ItemList, error) {
	query := listNewsParams{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.ListPublished(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list news")
	}

	result := &ItemList{Items: rows}
	if next != nil {
		result.Cursor = pkgpagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.NewsItem, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "news id is required")
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "news item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup news item")
	}
	return item, nil
}

// Create writes a new item as a draft. Drafts carry a null published_at and
// stay out of the list surface until Publish is called.
func (s *service) Create(ctx context.Context, authorID uuid.UUID, input ItemInput) (*models.NewsItem, error) {
	if authorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "author identity missing")
	}
	title, body, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	item := &models.NewsItem{
		AuthorID: authorID,
		Title:    title,
		Body:     body,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create news item")
	}
	return item, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input ItemInput) (*models.NewsItem, error) {
	title, body, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Title = title
	item.Body = body
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update news item")
	}
	return item, nil
}

// Publish stamps published_at. Publishing an already published item is a
// no-op so repeated requests do not move it in the feed.
func (s *service) Publish(ctx context.Context, id uuid.UUID) (*models.NewsItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.PublishedAt != nil {
		return item, nil
	}

	now := time.Now().UTC()
	item.PublishedAt = &now
	if err := s.repo.Update(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "publish news item")
	}
	return item, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete news item")
	}
	return nil
}

func normalizeInput(input ItemInput) (string, string, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "body is required")
	}
	return title, body, nil
}
