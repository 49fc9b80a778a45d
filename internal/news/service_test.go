package news

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
	"github.com/perkpilot/backend/pkg/pagination"
)

type fakeNewsRepo struct {
	items   map[uuid.UUID]*models.NewsItem
	deleted []uuid.UUID
}

func newFakeNewsRepo() *fakeNewsRepo {
	return &fakeNewsRepo{items: make(map[uuid.UUID]*models.NewsItem)}
}

func (f *fakeNewsRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeNewsRepo) Create(ctx context.Context, item *models.NewsItem) error {
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	f.items[item.ID] = item
	return nil
}

func (f *fakeNewsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.NewsItem, error) {
	if item, ok := f.items[id]; ok {
		return item, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeNewsRepo) ListPublished(ctx context.Context, params listNewsParams) ([]models.NewsItem, *pagination.Cursor, error) {
	var out []models.NewsItem
	for _, item := range f.items {
		if item.PublishedAt != nil {
			out = append(out, *item)
		}
	}
	return out, nil, nil
}

func (f *fakeNewsRepo) Update(ctx context.Context, item *models.NewsItem) error {
	f.items[item.ID] = item
	return nil
}

func (f *fakeNewsRepo) Delete(ctx context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	delete(f.items, id)
	return nil
}

func newNewsService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func TestCreateStartsAsDraft(t *testing.T) {
	repo := newFakeNewsRepo()
	svc := newNewsService(t, repo)

	item, err := svc.Create(context.Background(), uuid.New(), ItemInput{Title: "  Release notes  ", Body: " body "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.Title != "Release notes" || item.Body != "body" {
		t.Fatalf("input not trimmed: %q %q", item.Title, item.Body)
	}
	if item.PublishedAt != nil {
		t.Fatal("new item should be a draft")
	}

	list, err := svc.ListPublished(context.Background(), ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Items) != 0 {
		t.Fatalf("draft leaked into published list: %d items", len(list.Items))
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newNewsService(t, newFakeNewsRepo())

	_, err := svc.Create(context.Background(), uuid.New(), ItemInput{Title: " ", Body: "b"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	_, err = svc.Create(context.Background(), uuid.Nil, ItemInput{Title: "t", Body: "b"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	repo := newFakeNewsRepo()
	svc := newNewsService(t, repo)

	item, err := svc.Create(context.Background(), uuid.New(), ItemInput{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	published, err := svc.Publish(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.PublishedAt == nil {
		t.Fatal("published_at not set")
	}
	first := *published.PublishedAt

	again, err := svc.Publish(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("second publish: %v", err)
	}
	if !again.PublishedAt.Equal(first) {
		t.Fatal("second publish moved the timestamp")
	}

	list, err := svc.ListPublished(context.Background(), ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected one published item, got %d", len(list.Items))
	}
}

func TestUpdateUnknownItem(t *testing.T) {
	svc := newNewsService(t, newFakeNewsRepo())
	_, err := svc.Update(context.Background(), uuid.New(), ItemInput{Title: "t", Body: "b"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteRemovesItem(t *testing.T) {
	repo := newFakeNewsRepo()
	svc := newNewsService(t, repo)

	item, err := svc.Create(context.Background(), uuid.New(), ItemInput{Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(context.Background(), item.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != item.ID {
		t.Fatalf("delete not recorded: %v", repo.deleted)
	}
	if err := svc.Delete(context.Background(), item.ID); err == nil {
		t.Fatal("expected not found on second delete")
	}
}
