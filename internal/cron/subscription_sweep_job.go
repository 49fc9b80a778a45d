package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/logger"
)

const defaultSweepBatchSize = 500

type sweepLicenseRepository interface {
	FindDueForExpiry(ctx context.Context, now time.Time, limit int) ([]models.License, error)
	ExpireSubscription(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// SubscriptionSweepJobParams configures the nightly subscription sweep.
type SubscriptionSweepJobParams struct {
	Logger    *logger.Logger
	Licenses  sweepLicenseRepository
	BatchSize int
}

// NewSubscriptionSweepJob constructs the job that expires lapsed
// subscriptions ahead of validation traffic. Validation already expires
// lazily; the sweep keeps dashboard reads honest for licenses nobody
// validates anymore.
func NewSubscriptionSweepJob(params SubscriptionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Licenses == nil {
		return nil, fmt.Errorf("license repository required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &subscriptionSweepJob{
		logg:     params.Logger,
		licenses: params.Licenses,
		batch:    batch,
		now:      time.Now,
	}, nil
}

type subscriptionSweepJob struct {
	logg     *logger.Logger
	licenses sweepLicenseRepository
	batch    int
	now      func() time.Time
}

func (j *subscriptionSweepJob) Name() string { return "subscription-sweep" }

func (j *subscriptionSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired := 0
	var errs []error

	for {
		due, err := j.licenses.FindDueForExpiry(ctx, now, j.batch)
		if err != nil {
			errs = append(errs, fmt.Errorf("query lapsed subscriptions: %w", err))
			break
		}
		if len(due) == 0 {
			break
		}

		for _, lic := range due {
			applied, err := j.licenses.ExpireSubscription(ctx, lic.ID, now)
			if err != nil {
				errs = append(errs, fmt.Errorf("expire license %s: %w", lic.ID, err))
				continue
			}
			// A false result means a validation request expired it first.
			if applied {
				expired++
			}
		}
		// Failed rows stay due, so another pass would refetch them.
		if len(errs) > 0 || len(due) < j.batch {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{"count": expired})
	j.logg.Info(logCtx, "subscription sweep complete")
	return multierr.Combine(errs...)
}
