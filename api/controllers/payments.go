package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/perkpilot/backend/api/responses"
	"github.com/perkpilot/backend/api/validators"
	"github.com/perkpilot/backend/internal/payments"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
	"github.com/perkpilot/backend/pkg/logger"
)

type recordPaymentRequest struct {
	Provider     string  `json:"provider" validate:"required,min=2,max=60"`
	Amount       string  `json:"amount" validate:"required"`
	Currency     string  `json:"currency" validate:"omitempty,len=3"`
	PeriodMonths int     `json:"period_months" validate:"required,min=1,max=36"`
	ExternalRef  *string `json:"external_ref,omitempty"`
	OccurredAt   *string `json:"occurred_at,omitempty"`
}

// AdminRecordPayment applies a processor charge to a license: subscription
// goes ACTIVE, the end date extends by the paid period, and a payment record
// is written in the same transaction.
func AdminRecordPayment(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		licenseID, err := pathUUID(r, "licenseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := decimal.NewFromString(body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount"))
			return
		}

		occurredAt, err := parseOccurredAt(body.OccurredAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RecordPayment(r.Context(), licenseID, payments.PaymentInput{
			Provider:     body.Provider,
			Amount:       amount,
			Currency:     body.Currency,
			PeriodMonths: body.PeriodMonths,
			ExternalRef:  body.ExternalRef,
			OccurredAt:   occurredAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

type recordCancellationRequest struct {
	Provider    string  `json:"provider" validate:"required,min=2,max=60"`
	ExternalRef *string `json:"external_ref,omitempty"`
	OccurredAt  *string `json:"occurred_at,omitempty"`
}

// AdminRecordCancellation flips the subscription to CANCELLED while leaving
// the end date alone, so the license keeps working through the paid period.
func AdminRecordCancellation(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		licenseID, err := pathUUID(r, "licenseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body recordCancellationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		occurredAt, err := parseOccurredAt(body.OccurredAt)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.RecordCancellation(r.Context(), licenseID, payments.CancellationInput{
			Provider:    body.Provider,
			ExternalRef: body.ExternalRef,
			OccurredAt:  occurredAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

func AdminListPayments(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment service unavailable"))
			return
		}

		licenseID, err := pathUUID(r, "licenseID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		records, err := svc.ListByLicense(r.Context(), licenseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, records)
	}
}

func parseOccurredAt(raw *string) (time.Time, error) {
	if raw == nil || *raw == "" {
		return time.Time{}, nil
	}
	occurred, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid occurred_at")
	}
	return occurred.UTC(), nil
}
