package licensing

import (
	"time"

	"github.com/perkpilot/backend/pkg/db/models"
	"github.com/perkpilot/backend/pkg/enums"
)

// DefaultProgramLimit caps how many reward programs an inactive license can track.
const DefaultProgramLimit = 5

// UnlimitedPrograms marks an entitlement without a program cap.
const UnlimitedPrograms = -1

// Entitlement is the evaluated subscription state for a single request. Status
// and Role reflect the post-transition values; NeedsExpiry signals that the
// caller must persist the EXPIRED transition.
type Entitlement struct {
	Active       bool
	Status       enums.SubscriptionStatus
	Role         enums.Role
	ProgramLimit int
	NeedsExpiry  bool
}

// Evaluate computes the subscription state and program entitlement from the
// persisted license fields and the current time. It never mutates the license.
func Evaluate(license *models.License, now time.Time) Entitlement {
	status := license.SubscriptionStatus
	role := license.Role
	end := license.SubscriptionEndDate

	lapsed := end != nil && end.Before(now)
	expirable := status == enums.SubscriptionStatusActive || status == enums.SubscriptionStatusCancelled

	ent := Entitlement{Status: status, Role: role}
	switch {
	case lapsed && expirable:
		ent.Status = enums.SubscriptionStatusExpired
		if role != enums.RoleAdmin {
			ent.Role = enums.RoleDemo
		}
		ent.NeedsExpiry = true
	case status == enums.SubscriptionStatusActive || status == enums.SubscriptionStatusTrial:
		ent.Active = true
	case status == enums.SubscriptionStatusCancelled && end != nil && end.After(now):
		// Paid through the end date; cancellation only stops renewal.
		ent.Active = true
	}

	if ent.Role == enums.RoleAdmin || ent.Active {
		ent.ProgramLimit = UnlimitedPrograms
	} else {
		ent.ProgramLimit = DefaultProgramLimit
	}
	return ent
}
