package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
	"github.com/perkpilot/backend/pkg/logger"
)

type fakeSweepRepo struct {
	batches     [][]models.License
	findCalls   int
	expireCalls []uuid.UUID
	expireErr   map[uuid.UUID]error
	applied     map[uuid.UUID]bool
}

func (f *fakeSweepRepo) FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.License, error) {
	if f.findCalls >= len(f.batches) {
		f.findCalls++
		return nil, nil
	}
	batch := f.batches[f.findCalls]
	f.findCalls++
	return batch, nil
}

func (f *fakeSweepRepo) ExpireSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.expireCalls = append(f.expireCalls, id)
	if err, ok := f.expireErr[id]; ok {
		return false, err
	}
	if f.applied != nil {
		return f.applied[id], nil
	}
	return true, nil
}

func newSweepJob(t *testing.T, repo *fakeSweepRepo, batch int) *subscriptionSweepJob {
	t.Helper()
	jobIface, err := NewSubscriptionSweepJob(SubscriptionSweepJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Licenses:  repo,
		BatchSize: batch,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	job, ok := jobIface.(*subscriptionSweepJob)
	if !ok {
		t.Fatalf("unexpected job type %T", jobIface)
	}
	job.now = func() time.Time { return time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC) }
	return job
}

func lapsedLicense() models.License {
	end := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return models.License{
		ID:                  uuid.New(),
		UserID:              uuid.New(),
		SubscriptionStatus:  enums.SubscriptionStatusActive,
		SubscriptionEndDate: &end,
	}
}

func TestSubscriptionSweepExpiresAllDue(t *testing.T) {
	repo := &fakeSweepRepo{
		batches: [][]models.License{{lapsedLicense(), lapsedLicense()}},
	}
	job := newSweepJob(t, repo, 500)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.expireCalls) != 2 {
		t.Fatalf("expected 2 expirations, got %d", len(repo.expireCalls))
	}
}

func TestSubscriptionSweepDrainsFullBatches(t *testing.T) {
	first := []models.License{lapsedLicense(), lapsedLicense()}
	second := []models.License{lapsedLicense()}
	repo := &fakeSweepRepo{batches: [][]models.License{first, second}}
	job := newSweepJob(t, repo, 2)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if repo.findCalls != 2 {
		t.Fatalf("expected 2 fetches, got %d", repo.findCalls)
	}
	if len(repo.expireCalls) != 3 {
		t.Fatalf("expected 3 expirations, got %d", len(repo.expireCalls))
	}
}

func TestSubscriptionSweepContinuesPastRowErrors(t *testing.T) {
	bad := lapsedLicense()
	good := lapsedLicense()
	repo := &fakeSweepRepo{
		batches:   [][]models.License{{bad, good}},
		expireErr: map[uuid.UUID]error{bad.ID: errors.New("deadlock")},
	}
	job := newSweepJob(t, repo, 500)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(repo.expireCalls) != 2 {
		t.Fatalf("row error stopped the batch: %d calls", len(repo.expireCalls))
	}
}

func TestSubscriptionSweepTreatsRacedRowsAsHandled(t *testing.T) {
	raced := lapsedLicense()
	repo := &fakeSweepRepo{
		batches: [][]models.License{{raced}},
		applied: map[uuid.UUID]bool{raced.ID: false},
	}
	job := newSweepJob(t, repo, 500)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("raced expiry should not error: %v", err)
	}
}
