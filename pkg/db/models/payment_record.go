package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/perkpilot/backend/pkg/enums"
)

// PaymentRecord is the modeled effect of a payment-processor event on a
// license's subscription. The processor integration itself lives elsewhere;
// only the outcome is persisted here.
type PaymentRecord struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	LicenseID    uuid.UUID         `gorm:"column:license_id;type:uuid;not null;index"`
	Provider     string            `gorm:"column:provider;not null"`
	Amount       decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency     string            `gorm:"column:currency;not null;default:'USD'"`
	PeriodMonths int               `gorm:"column:period_months;not null;default:0"`
	Kind         enums.PaymentKind `gorm:"column:kind;not null"`
	ExternalRef  *string           `gorm:"column:external_ref"`
	OccurredAt   time.Time         `gorm:"column:occurred_at;not null"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
}
