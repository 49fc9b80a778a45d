package licensing

import (
	"context"
	"strings"

	"github.com/perkpilot/backend/pkg/db/models"
	pkgerrors "github.com/perkpilot/backend/pkg/errors"
)

// Binder enforces the one-installation-per-license policy. The first request
// carrying an installation id wins the binding; every later request must
// present the same id or none at all.
type Binder struct {
	repo  Repository
	clock Clock
}

// NewBinder constructs an installation binder.
func NewBinder(repo Repository, clock Clock) *Binder {
	return &Binder{repo: repo, clock: clock}
}

// Ensure applies the binding rules for the supplied installation id and
// reports whether the license is bound afterwards. The license is updated in
// place when a binding is written. A mismatch returns CodeInstallationMismatch
// and leaves the stored binding untouched.
func (b *Binder) Ensure(ctx context.Context, license *models.License, installationID string) (bool, error) {
	supplied := strings.TrimSpace(installationID)
	if supplied == "" {
		return license.InstallationID != nil, nil
	}

	if license.InstallationID != nil {
		return b.checkMatch(license, supplied)
	}

	now := b.clock.Now().UTC()
	won, err := b.repo.BindInstallation(ctx, license.ID, supplied, now)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind installation")
	}
	if won {
		license.InstallationID = &supplied
		license.InstallationBoundAt = &now
		return true, nil
	}

	// Lost the race to a concurrent first-binder; re-read the winning value
	// and apply the match rule against it instead of failing blindly.
	current, err := b.repo.FindByID(ctx, license.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload license after bind race")
	}
	*license = *current
	if license.InstallationID == nil {
		return false, pkgerrors.New(pkgerrors.CodeDependency, "binding state unreadable after conflict")
	}
	return b.checkMatch(license, supplied)
}

func (b *Binder) checkMatch(license *models.License, supplied string) (bool, error) {
	if *license.InstallationID == supplied {
		return true, nil
	}
	return false, pkgerrors.New(pkgerrors.CodeInstallationMismatch, "license is bound to a different installation")
}
