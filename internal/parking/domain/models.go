package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingReserved  BookingStatus = "reserved"
	BookingActive    BookingStatus = "active"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingReserved: {BookingActive, BookingCompleted, BookingCancelled, BookingExpired},
	BookingActive:   {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the booking lifecycle.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCompleted, BookingCancelled, BookingExpired:
		return true
	default:
		return false
	}
}

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "available"
	SlotOccupied    SlotStatus = "occupied"
	SlotReserved    SlotStatus = "reserved"
	SlotMaintenance SlotStatus = "maintenance"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotAvailable, SlotOccupied, SlotReserved, SlotMaintenance:
		return true
	default:
		return false
	}
}

type SlotType string

const (
	SlotCovered    SlotType = "covered"
	SlotOpenAir    SlotType = "open_air"
	SlotEVCharging SlotType = "ev_charging"
	SlotAccessible SlotType = "accessible"
)

func (t SlotType) Valid() bool {
	switch t {
	case SlotCovered, SlotOpenAir, SlotEVCharging, SlotAccessible:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentRefunded PaymentStatus = "refunded"
)

type Role string

const (
	RoleDriver  Role = "driver"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// Caller is the authenticated identity an operation runs as. It arrives
// from the authorization layer and is treated as an opaque fact.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

// RateCard carries a lot's published prices in cents.
type RateCard struct {
	HourlyCents  int64 `json:"hourly_cents"`
	DailyCents   int64 `json:"daily_cents"`
	MonthlyCents int64 `json:"monthly_cents"`
}

type Lot struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	ManagerID      uuid.UUID `json:"manager_id"`
	TotalSlots     int       `json:"total_slots"`
	AvailableSlots int       `json:"available_slots"`
	Rates          RateCard  `json:"rates"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Slot holds a live booking reference exactly when its status is
// reserved or occupied.
type Slot struct {
	ID               uuid.UUID  `json:"id"`
	LotID            uuid.UUID  `json:"lot_id"`
	Number           string     `json:"number"`
	Type             SlotType   `json:"type"`
	Status           SlotStatus `json:"status"`
	CurrentBookingID *uuid.UUID `json:"current_booking_id,omitempty"`
	LastUpdated      time.Time  `json:"last_updated"`
}

type Booking struct {
	ID              uuid.UUID     `json:"id"`
	DriverID        uuid.UUID     `json:"driver_id"`
	SlotID          uuid.UUID     `json:"slot_id"`
	LotID           uuid.UUID     `json:"lot_id"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	ExpectedEndTime *time.Time    `json:"expected_end_time,omitempty"`
	Status          BookingStatus `json:"status"`
	AmountCents     int64         `json:"amount_cents"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	VehicleNumber   string        `json:"vehicle_number,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Live reports whether the booking currently holds its slot.
func (b Booking) Live() bool {
	return b.Status == BookingReserved || b.Status == BookingActive
}

type EventType string

const (
	EventBookingCreated    EventType = "booking-created"
	EventBookingStarted    EventType = "booking-started"
	EventBookingCompleted  EventType = "booking-completed"
	EventBookingCancelled  EventType = "booking-cancelled"
	EventBookingExpired    EventType = "booking-expired"
	EventSlotStatusUpdated EventType = "slot-status-updated"
	EventSlotsBulkUpdated  EventType = "slots-bulk-updated"
	EventLotCreated        EventType = "parking-lot-created"
	EventLotUpdated        EventType = "parking-lot-updated"
	EventLotDeleted        EventType = "parking-lot-deleted"
)

// Event is a change notification scoped to a lot. Lot lifecycle events
// leave LotID set but are broadcast globally.
type Event struct {
	Type      EventType      `json:"type"`
	LotID     uuid.UUID      `json:"lot_id"`
	Global    bool           `json:"global,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SlotTransition is the atomic conditional status change: it succeeds
// only if the slot is currently in From.
type SlotTransition struct {
	SlotID  uuid.UUID
	From    SlotStatus
	To      SlotStatus
	Booking *uuid.UUID
}

// BookingFilter narrows booking queries. Zero values match everything.
type BookingFilter struct {
	DriverID *uuid.UUID
	SlotID   *uuid.UUID
	LotID    *uuid.UUID
	Statuses []BookingStatus
	// Overlapping restricts results to bookings whose [start, end)
	// interval intersects the given half-open window. An unset window
	// end means an unbounded candidate interval.
	Overlapping *TimeWindow
}

// TimeWindow is a half-open [Start, End) interval. A nil End marks an
// open-ended window.
type TimeWindow struct {
	Start time.Time
	End   *time.Time
}

// Overlaps applies the half-open interval test, treating missing ends as
// unbounded futures.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	startsBeforeOtherEnds := other.End == nil || w.Start.Before(*other.End)
	otherStartsBeforeEnd := w.End == nil || other.Start.Before(*w.End)
	return startsBeforeOtherEnds && otherStartsBeforeEnd
}

type SlotFilter struct {
	LotID  *uuid.UUID
	Status *SlotStatus
	Type   *SlotType
}

// Store is the entity store contract. Single-entity writes are atomic;
// TransitionSlot is the one compound primitive: a compare-and-swap on the
// slot status that also applies the lot counter delta in the same
// critical section.
type Store interface {
	CreateLot(ctx context.Context, lot Lot, slots []Slot) (Lot, error)
	GetLot(ctx context.Context, id uuid.UUID) (Lot, error)
	ListLots(ctx context.Context) ([]Lot, error)
	UpdateLot(ctx context.Context, lot Lot) (Lot, error)
	DeleteLot(ctx context.Context, id uuid.UUID) error

	GetSlot(ctx context.Context, id uuid.UUID) (Slot, error)
	ListSlots(ctx context.Context, filter SlotFilter) ([]Slot, error)
	UpdateSlot(ctx context.Context, slot Slot) (Slot, error)
	TransitionSlot(ctx context.Context, tr SlotTransition) (Slot, error)
	RecountAvailable(ctx context.Context, lotID uuid.UUID) (int, error)

	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBooking(ctx context.Context, id uuid.UUID) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	UpdateBooking(ctx context.Context, booking Booking) (Booking, error)

	AppendEvent(ctx context.Context, event Event) error
}

// EventPublisher delivers change notifications. Best-effort, at-most-once.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
