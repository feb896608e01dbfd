package policy

import (
	"github.com/example/parkpulse/internal/parking/domain"
)

// Action names a capability a caller may exercise on a resource.
type Action string

const (
	ActionStartBooking    Action = "booking:start"
	ActionCompleteBooking Action = "booking:complete"
	ActionCancelBooking   Action = "booking:cancel"
	ActionViewBooking     Action = "booking:view"
	ActionManageSlots     Action = "slots:manage"
	ActionManageLot       Action = "lot:manage"
	ActionDeleteLot       Action = "lot:delete"
)

// Resource carries the ownership facts a decision needs. Unused fields
// stay nil.
type Resource struct {
	booking *domain.Booking
	lot     *domain.Lot
}

// ForBooking builds the resource view of a booking, with the owning lot
// when known.
func ForBooking(b domain.Booking, lot *domain.Lot) Resource {
	return Resource{booking: &b, lot: lot}
}

// ForLot builds the resource view of a lot.
func ForLot(lot domain.Lot) Resource {
	return Resource{lot: &lot}
}

// Allow is the single policy evaluation point: every lifecycle operation
// asks it the same question instead of inlining role conditionals.
func Allow(caller domain.Caller, action Action, res Resource) bool {
	if caller.Role == domain.RoleAdmin {
		return true
	}
	switch action {
	case ActionStartBooking, ActionCancelBooking:
		return ownsBooking(caller, res)
	case ActionCompleteBooking:
		return ownsBooking(caller, res) || managesLot(caller, res)
	case ActionViewBooking:
		return ownsBooking(caller, res) || caller.Role == domain.RoleManager
	case ActionManageSlots, ActionManageLot:
		return managesLot(caller, res)
	case ActionDeleteLot:
		return false
	default:
		return false
	}
}

func ownsBooking(caller domain.Caller, res Resource) bool {
	return res.booking != nil && res.booking.DriverID == caller.ID
}

func managesLot(caller domain.Caller, res Resource) bool {
	if caller.Role != domain.RoleManager {
		return false
	}
	return res.lot != nil && res.lot.ManagerID == caller.ID
}
