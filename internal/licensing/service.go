package licensing

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

// MinAPIKeyLength is the shortest key the validation surface will look up.
// Shorter keys are rejected before any store access.
const MinAPIKeyLength = 10

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service exposes license validation for the client surface and key
// administration for the dashboard.
type Service interface {
	Validate(ctx context.Context, apiKey, installationID string) (*SignedPayload, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.License, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	IssueKey(ctx context.Context, userID uuid.UUID) (*models.License, string, error)
	RevokeKey(ctx context.Context, licenseID uuid.UUID) error
	ClearBinding(ctx context.Context, licenseID uuid.UUID) error
	SetRole(ctx context.Context, licenseID uuid.UUID, role enums.Role) error
}

// ListParams holds dashboard list inputs.
type ListParams struct {
	Limit  int
	Cursor string
}

// ListResult is one page of licenses plus the cursor for the next.
type ListResult struct {
	Items  []models.License
	Cursor string
}

type service struct {
	repo   Repository
	users  usersRepository
	binder *Binder
	signer *Signer
	issuer *Issuer
	clock  Clock
}

// NewService builds the licensing service from its collaborators.
func NewService(repo Repository, users usersRepository, signer *Signer, issuer *Issuer, clock Clock) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if signer == nil {
		return nil, fmt.Errorf("signer required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("issuer required")
	}
	if clock == nil {
		clock = SystemClock()
	}
	return &service{
		repo:   repo,
		users:  users,
		binder: NewBinder(repo, clock),
		signer: signer,
		issuer: issuer,
		clock:  clock,
	}, nil
}

// Validate authenticates the API key, applies the installation binding rules,
// reconciles the subscription state, and returns the signed attestation.
func (s *service) Validate(ctx context.Context, apiKey, installationID string) (*SignedPayload, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Missing API key")
	}
	if len(key) < MinAPIKeyLength {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid API key format")
	}

	license, err := s.repo.FindByAPIKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid API key")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license by api key")
	}

	bound, err := s.binder.Ensure(ctx, license, installationID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	ent := Evaluate(license, now)
	if ent.NeedsExpiry {
		if _, err := s.repo.ExpireSubscription(ctx, license.ID, now); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription expiry")
		}
		// A concurrent request may have written the same transition first;
		// either way the evaluated state below is the persisted state.
		license.SubscriptionStatus = ent.Status
		license.Role = ent.Role
	}

	user, err := s.users.FindByID(ctx, license.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "license has no owning user")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license owner")
	}

	payload := Payload{
		Valid:               true,
		UserID:              user.ID.String(),
		Username:            user.Username,
		Role:                int16(ent.Role),
		RoleLabel:           ent.Role.Label(),
		KeyCreatedAt:        formatTimestamp(license.APIKeyCreatedAt),
		BoundToDevice:       bound,
		SubscriptionActive:  ent.Active,
		SubscriptionStatus:  ent.Status.String(),
		SubscriptionEndDate: formatTimestamp(license.SubscriptionEndDate),
		ProgramLimit:        ent.ProgramLimit,
		Timestamp:           now.UnixMilli(),
	}

	signed, err := s.signer.Sign(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sign validation payload")
	}
	return signed, nil
}

func (s *service) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.License, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	license, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	return license, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := ListQuery{Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list licenses")
	}

	result := &ListResult{Items: rows}
	if next != nil {
		result.Cursor = pkgpagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) IssueKey(ctx context.Context, userID uuid.UUID) (*models.License, string, error) {
	return s.issuer.Generate(ctx, userID)
}

func (s *service) RevokeKey(ctx context.Context, licenseID uuid.UUID) error {
	return s.issuer.Revoke(ctx, licenseID)
}

func (s *service) ClearBinding(ctx context.Context, licenseID uuid.UUID) error {
	if licenseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}
	if _, err := s.repo.FindByID(ctx, licenseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	if err := s.repo.ClearInstallation(ctx, licenseID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear installation binding")
	}
	return nil
}

func (s *service) SetRole(ctx context.Context, licenseID uuid.UUID, role enums.Role) error {
	if licenseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid role")
	}
	if _, err := s.repo.FindByID(ctx, licenseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	if err := s.repo.SetRole(ctx, licenseID, role); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update role")
	}
	return nil
}

func formatTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}
