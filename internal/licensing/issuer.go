package licensing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
)

// Issuer generates and revokes API keys. Every generate or rotate also clears
// the device binding so the next validation from the new key binds fresh.
type Issuer struct {
	repo     Repository
	clock    Clock
	keyBytes int
}

// NewIssuer constructs a key issuer. keyBytes controls the entropy of
// generated keys; the hex encoding doubles it in characters.
func NewIssuer(repo Repository, clock Clock, keyBytes int) (*Issuer, error) {
	if repo == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if keyBytes < 10 {
		return nil, fmt.Errorf("key bytes must be at least 10")
	}
	return &Issuer{repo: repo, clock: clock, keyBytes: keyBytes}, nil
}

// Generate issues a fresh API key for the user's license, creating the
// license row on first issuance. Any existing key and installation binding
// are replaced.
func (i *Issuer) Generate(ctx context.Context, userID uuid.UUID) (*models.License, string, error) {
	if userID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	key, err := i.newKey()
	if err != nil {
		return nil, "", err
	}
	now := i.clock.Now().UTC()

	license, err := i.repo.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
		}
		license = &models.License{
			UserID:             userID,
			APIKey:             &key,
			Role:               enums.RoleDemo,
			APIKeyCreatedAt:    &now,
			SubscriptionStatus: enums.SubscriptionStatusTrial,
		}
		if err := i.repo.Create(ctx, license); err != nil {
			return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create license")
		}
		return license, key, nil
	}

	if err := i.repo.SetAPIKey(ctx, license.ID, key, now); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store api key")
	}
	license.APIKey = &key
	license.APIKeyCreatedAt = &now
	license.InstallationID = nil
	license.InstallationBoundAt = nil
	return license, key, nil
}

// Revoke nulls the license's API key. The row and its subscription history
// survive so the key can be reissued later.
func (i *Issuer) Revoke(ctx context.Context, licenseID uuid.UUID) error {
	if licenseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "license id is required")
	}
	if _, err := i.repo.FindByID(ctx, licenseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}
	if err := i.repo.ClearAPIKey(ctx, licenseID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear api key")
	}
	return nil
}

func (i *Issuer) newKey() (string, error) {
	buf := make([]byte, i.keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate api key")
	}
	return hex.EncodeToString(buf), nil
}
