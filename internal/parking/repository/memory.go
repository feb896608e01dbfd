package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/parkpulse/internal/parking/domain"
)

// MemoryStore is the in-memory entity store. It is the source of truth for
// lots, slots and bookings; every compound mutation that must be atomic
// (the slot CAS plus the lot counter delta) runs under one lock so two
// racing reservations can never both win a slot.
type MemoryStore struct {
	mu       sync.RWMutex
	lots     map[uuid.UUID]domain.Lot
	slots    map[uuid.UUID]domain.Slot
	bookings map[uuid.UUID]domain.Booking
	events   []domain.Event
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lots:     make(map[uuid.UUID]domain.Lot),
		slots:    make(map[uuid.UUID]domain.Slot),
		bookings: make(map[uuid.UUID]domain.Booking),
	}
}

// CreateLot stores the lot together with its provisioned slots.
func (m *MemoryStore) CreateLot(_ context.Context, lot domain.Lot, slots []domain.Slot) (domain.Lot, error) {
	if lot.TotalSlots < 1 {
		return domain.Lot{}, fmt.Errorf("%w: total slots must be at least 1", domain.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	available := 0
	for _, slot := range slots {
		if slot.LotID != lot.ID {
			return domain.Lot{}, fmt.Errorf("%w: slot %s does not belong to lot", domain.ErrValidation, slot.ID)
		}
		if slot.Status == domain.SlotAvailable {
			available++
		}
	}
	lot.AvailableSlots = available
	m.lots[lot.ID] = lot
	for _, slot := range slots {
		m.slots[slot.ID] = slot
	}
	return lot, nil
}

// GetLot retrieves a lot.
func (m *MemoryStore) GetLot(_ context.Context, id uuid.UUID) (domain.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lot, ok := m.lots[id]
	if !ok {
		return domain.Lot{}, domain.ErrLotNotFound
	}
	return lot, nil
}

// ListLots returns all lots sorted by creation time, newest first.
func (m *MemoryStore) ListLots(_ context.Context) ([]domain.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lots := make([]domain.Lot, 0, len(m.lots))
	for _, lot := range m.lots {
		lots = append(lots, lot)
	}
	sort.Slice(lots, func(i, j int) bool { return lots[i].CreatedAt.After(lots[j].CreatedAt) })
	return lots, nil
}

// UpdateLot replaces the stored lot, preserving the derived counter.
func (m *MemoryStore) UpdateLot(_ context.Context, lot domain.Lot) (domain.Lot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.lots[lot.ID]
	if !ok {
		return domain.Lot{}, domain.ErrLotNotFound
	}
	lot.AvailableSlots = existing.AvailableSlots
	m.lots[lot.ID] = lot
	return lot, nil
}

// DeleteLot removes the lot and every slot in it. Bookings survive as
// audit records.
func (m *MemoryStore) DeleteLot(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lots[id]; !ok {
		return domain.ErrLotNotFound
	}
	delete(m.lots, id)
	for slotID, slot := range m.slots {
		if slot.LotID == id {
			delete(m.slots, slotID)
		}
	}
	return nil
}

// GetSlot retrieves a slot.
func (m *MemoryStore) GetSlot(_ context.Context, id uuid.UUID) (domain.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	slot, ok := m.slots[id]
	if !ok {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	return slot, nil
}

// ListSlots returns slots matching the filter, sorted by slot number.
func (m *MemoryStore) ListSlots(_ context.Context, filter domain.SlotFilter) ([]domain.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var slots []domain.Slot
	for _, slot := range m.slots {
		if filter.LotID != nil && slot.LotID != *filter.LotID {
			continue
		}
		if filter.Status != nil && slot.Status != *filter.Status {
			continue
		}
		if filter.Type != nil && slot.Type != *filter.Type {
			continue
		}
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Number < slots[j].Number })
	return slots, nil
}

// UpdateSlot replaces the stored slot without touching the lot counter.
// Callers changing status through this path are expected to recount.
func (m *MemoryStore) UpdateSlot(_ context.Context, slot domain.Slot) (domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.slots[slot.ID]; !ok {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	m.slots[slot.ID] = slot
	return slot, nil
}

// TransitionSlot performs the compare-and-swap on the slot status and
// applies the matching lot counter delta under the same lock. It fails
// with ErrSlotUnavailable when the slot is no longer in the expected
// prior status, which is how a contested reservation loses.
func (m *MemoryStore) TransitionSlot(_ context.Context, tr domain.SlotTransition) (domain.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.slots[tr.SlotID]
	if !ok {
		return domain.Slot{}, domain.ErrSlotNotFound
	}
	if slot.Status != tr.From {
		return domain.Slot{}, fmt.Errorf("%w: slot is %s", domain.ErrSlotUnavailable, slot.Status)
	}
	slot.Status = tr.To
	slot.CurrentBookingID = tr.Booking
	m.slots[tr.SlotID] = slot

	if lot, ok := m.lots[slot.LotID]; ok {
		lot.AvailableSlots += counterDelta(tr.From, tr.To)
		m.lots[slot.LotID] = lot
	}
	return slot, nil
}

func counterDelta(from, to domain.SlotStatus) int {
	switch {
	case from == domain.SlotAvailable && to != domain.SlotAvailable:
		return -1
	case from != domain.SlotAvailable && to == domain.SlotAvailable:
		return 1
	default:
		return 0
	}
}

// RecountAvailable recomputes the lot counter from slot state and persists
// it. Used for provisioning, bulk updates and repair, not the reservation
// hot path.
func (m *MemoryStore) RecountAvailable(_ context.Context, lotID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lot, ok := m.lots[lotID]
	if !ok {
		return 0, domain.ErrLotNotFound
	}
	count := 0
	for _, slot := range m.slots {
		if slot.LotID == lotID && slot.Status == domain.SlotAvailable {
			count++
		}
	}
	lot.AvailableSlots = count
	m.lots[lotID] = lot
	return count, nil
}

// CreateBooking stores the booking.
func (m *MemoryStore) CreateBooking(_ context.Context, booking domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
	return booking, nil
}

// GetBooking retrieves a booking.
func (m *MemoryStore) GetBooking(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	return booking, nil
}

// ListBookings returns bookings matching the filter, newest first.
func (m *MemoryStore) ListBookings(_ context.Context, filter domain.BookingFilter) ([]domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var bookings []domain.Booking
	for _, booking := range m.bookings {
		if !matchesBooking(booking, filter) {
			continue
		}
		bookings = append(bookings, booking)
	}
	sort.Slice(bookings, func(i, j int) bool { return bookings[i].CreatedAt.After(bookings[j].CreatedAt) })
	return bookings, nil
}

func matchesBooking(b domain.Booking, filter domain.BookingFilter) bool {
	if filter.DriverID != nil && b.DriverID != *filter.DriverID {
		return false
	}
	if filter.SlotID != nil && b.SlotID != *filter.SlotID {
		return false
	}
	if filter.LotID != nil && b.LotID != *filter.LotID {
		return false
	}
	if len(filter.Statuses) > 0 {
		found := false
		for _, status := range filter.Statuses {
			if b.Status == status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Overlapping != nil {
		existing := domain.TimeWindow{Start: b.StartTime, End: b.ExpectedEndTime}
		if b.EndTime != nil {
			existing.End = b.EndTime
		}
		if !filter.Overlapping.Overlaps(existing) {
			return false
		}
	}
	return true
}

// UpdateBooking replaces the stored booking.
func (m *MemoryStore) UpdateBooking(_ context.Context, booking domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[booking.ID]; !ok {
		return domain.Booking{}, domain.ErrBookingNotFound
	}
	m.bookings[booking.ID] = booking
	return booking, nil
}

// AppendEvent records the event in the audit buffer.
func (m *MemoryStore) AppendEvent(_ context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns recorded events (for tests).
func (m *MemoryStore) Events() []domain.Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Event(nil), m.events...)
}
