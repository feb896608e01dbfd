package conflict

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/parkpulse/internal/parking/domain"
)

// Detector decides whether a slot can be booked for a requested window.
// The slot status check is a fast pre-check only; the authoritative guard
// against races is the store's conditional slot transition.
type Detector struct {
	store domain.Store
}

// NewDetector constructs a Detector over the entity store.
func NewDetector(store domain.Store) *Detector {
	return &Detector{store: store}
}

// Check returns nil when the slot is bookable for the window, and
// ErrSlotUnavailable or ErrConflict otherwise. Windows are half-open
// [start, end); a window without an end is open-ended and collides with
// any booking not yet finished.
func (d *Detector) Check(ctx context.Context, slotID uuid.UUID, window domain.TimeWindow) error {
	slot, err := d.store.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.Status != domain.SlotAvailable {
		return fmt.Errorf("%w: slot is %s", domain.ErrSlotUnavailable, slot.Status)
	}

	live, err := d.store.ListBookings(ctx, domain.BookingFilter{
		SlotID:      &slotID,
		Statuses:    []domain.BookingStatus{domain.BookingReserved, domain.BookingActive},
		Overlapping: &window,
	})
	if err != nil {
		return err
	}
	if len(live) > 0 {
		return fmt.Errorf("%w: overlaps booking %s", domain.ErrConflict, live[0].ID)
	}
	return nil
}
