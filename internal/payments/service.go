package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/internal/licensing"
	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service records the modeled effect of payment-processor events on
// licenses. A payment extends and activates the subscription; a cancellation
// marks it CANCELLED while the already paid period keeps running.
type Service interface {
	RecordPayment(ctx context.Context, licenseID uuid.UUID, input PaymentInput) (*models.PaymentRecord, error)
	RecordCancellation(ctx context.Context, licenseID uuid.UUID, input CancellationInput) (*models.PaymentRecord, error)
	ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]models.PaymentRecord, error)
}

// PaymentInput describes a successful charge reported by a processor.
type PaymentInput struct {
	Provider     string
	Amount       decimal.Decimal
	Currency     string
	PeriodMonths int
	ExternalRef  *string
	OccurredAt   time.Time
}

// CancellationInput describes a subscription cancellation event.
type CancellationInput struct {
	Provider    string
	ExternalRef *string
	OccurredAt  time.Time
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	Repo     Repository
	Licenses licensing.Repository
	DB       txRunner
	Clock    licensing.Clock
}

type service struct {
	repo     Repository
	licenses licensing.Repository
	db       txRunner
	clock    licensing.Clock
}

// NewService builds the payment service after validating its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Licenses == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	clock := params.Clock
	if clock == nil {
		clock = licensing.SystemClock()
	}
	return &service{
		repo:     params.Repo,
		licenses: params.Licenses,
		db:       params.DB,
		clock:    clock,
	}, nil
}

// RecordPayment activates the subscription and extends its end date by the
// paid period. The new period is stacked on whatever paid time remains, so
// renewing early never loses days.
func (s *service) RecordPayment(ctx context.Context, licenseID uuid.UUID, input PaymentInput) (*models.PaymentRecord, error) {
	if err := validateEvent(licenseID, input.Provider); err != nil {
		return nil, err
	}
	if input.PeriodMonths <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "period months must be positive")
	}
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount cannot be negative")
	}

	license, err := s.findLicense(ctx, licenseID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	occurred := input.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	base := now
	if license.SubscriptionEndDate != nil && license.SubscriptionEndDate.After(now) {
		base = license.SubscriptionEndDate.UTC()
	}
	end := base.AddDate(0, input.PeriodMonths, 0)

	change := licensing.SubscriptionChange{
		Status:  enums.SubscriptionStatusActive,
		EndDate: &end,
		Type:    ptr(strings.TrimSpace(input.Provider)),
	}
	if license.Role != enums.RoleAdmin {
		change.Role = ptr(enums.RoleFull)
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	record := &models.PaymentRecord{
		LicenseID:    licenseID,
		Provider:     strings.TrimSpace(input.Provider),
		Amount:       input.Amount,
		Currency:     currency,
		PeriodMonths: input.PeriodMonths,
		Kind:         enums.PaymentKindPayment,
		ExternalRef:  input.ExternalRef,
		OccurredAt:   occurred,
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.licenses.WithTx(tx).ApplySubscription(ctx, licenseID, change); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Create(ctx, record)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	return record, nil
}

// RecordCancellation flips the subscription to CANCELLED. The end date is
// left untouched so the license stays usable through the paid period.
func (s *service) RecordCancellation(ctx context.Context, licenseID uuid.UUID, input CancellationInput) (*models.PaymentRecord, error) {
	if err := validateEvent(licenseID, input.Provider); err != nil {
		return nil, err
	}
	if _, err := s.findLicense(ctx, licenseID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	occurred := input.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	record := &models.PaymentRecord{
		LicenseID:   licenseID,
		Provider:    strings.TrimSpace(input.Provider),
		Amount:      decimal.Zero,
		Currency:    "USD",
		Kind:        enums.PaymentKindCancellation,
		ExternalRef: input.ExternalRef,
		OccurredAt:  occurred,
	}

	change := licensing.SubscriptionChange{Status: enums.SubscriptionStatusCancelled}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.licenses.WithTx(tx).ApplySubscription(ctx, licenseID, change); err != nil {
			return err
		}
		return s.repo.WithTx(tx).Create(ctx, record)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record cancellation")
	}
	return record, nil
}

func (s *service) ListByLicense(ctx context.Context, licenseID uuid.UUID) ([]models.PaymentRecord, error) {
	if licenseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}
	records, err := s.repo.ListByLicense(ctx, licenseID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payment records")
	}
	return records, nil
}

func (s *service) findLicense(ctx context.Context, id uuid.UUID) (*models.License, error) {
	license, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	return license, nil
}

func validateEvent(licenseID uuid.UUID, provider string) error {
	if licenseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}
	if strings.TrimSpace(provider) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "provider is required")
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
