package booking

import (
	"fmt"
	"strings"

	"bookingengine/internal/domain/shared/fault"
)

type Role string

const (
	RoleTraveler Role = "traveler"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

var ErrForbidden = fmt.Errorf("%w: actor may not perform this action on the booking", fault.ErrForbidden)

// Actor is the authenticated caller as supplied by the identity collaborator.
type Actor struct {
	ID   string
	Role Role
}

const systemActorID = "system"

func SystemActor() Actor {
	return Actor{ID: systemActorID, Role: RoleSystem}
}

func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RoleTraveler, RoleOwner, RoleAdmin, RoleSystem:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", fault.ErrInvalidInput, raw)
	}
}

func (a Actor) IsZero() bool { return a.ID == "" }

func (a Actor) Elevated() bool { return a.Role == RoleAdmin || a.Role == RoleSystem }

type action string

const (
	actionView     action = "view"
	actionDecide   action = "decide"
	actionCancel   action = "cancel"
	actionComplete action = "complete"
)

func (b *Booking) authorize(act action, actor Actor) error {
	if actor.IsZero() {
		return ErrForbidden
	}
	traveler := actor.ID == b.TravelerID
	owner := actor.ID == b.OwnerID
	var ok bool
	switch act {
	case actionView:
		ok = traveler || owner || actor.Elevated()
	case actionDecide:
		ok = owner || actor.Role == RoleSystem
	case actionCancel:
		ok = traveler || owner || actor.Role == RoleAdmin
	case actionComplete:
		ok = actor.Role == RoleSystem
	}
	if !ok {
		return fmt.Errorf("%w (%s by %s)", ErrForbidden, act, actor.Role)
	}
	return nil
}

// VisibleTo reports whether actor may read the booking.
func (b *Booking) VisibleTo(actor Actor) error {
	return b.authorize(actionView, actor)
}
