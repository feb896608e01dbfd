package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/parkpulse/internal/parking/conflict"
	"github.com/example/parkpulse/internal/parking/domain"
	"github.com/example/parkpulse/internal/parking/policy"
	"github.com/example/parkpulse/internal/parking/pricing"
)

// AvailabilityMirror keeps a fast external copy of per-lot availability
// counters. Mirror failures never fail the operation that triggered them.
type AvailabilityMirror interface {
	Apply(ctx context.Context, lotID uuid.UUID, delta int) (int64, error)
	Rebuild(ctx context.Context, lotID uuid.UUID, count int) error
	Drop(ctx context.Context, lotID uuid.UUID) error
}

// Service owns the booking lifecycle and the paired slot and counter
// transitions. The slot compare-and-swap inside the store is the
// serialization point: a booking is created only after its slot CAS
// succeeds, and the CAS is rolled back if a later step fails.
type Service struct {
	store    domain.Store
	detector *conflict.Detector
	events   domain.EventPublisher
	clock    domain.Clock
	mirror   AvailabilityMirror
	logger   *zap.Logger
}

// New constructs a Service with the required collaborators. The mirror is
// optional.
func New(store domain.Store, events domain.EventPublisher, clock domain.Clock, mirror AvailabilityMirror, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		detector: conflict.NewDetector(store),
		events:   events,
		clock:    clock,
		mirror:   mirror,
		logger:   logger,
	}
}

// ReserveRequest contains the payload for creating a reservation.
type ReserveRequest struct {
	Caller        domain.Caller
	SlotID        uuid.UUID
	Start         time.Time
	ExpectedEnd   *time.Time
	VehicleNumber string
	Notes         string
}

// Reserve books a slot for the requested window. The conflict check is a
// fast pre-check; the atomic available→reserved transition decides a
// contested slot.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (domain.Booking, error) {
	if req.SlotID == uuid.Nil {
		return domain.Booking{}, fmt.Errorf("%w: slot is required", domain.ErrValidation)
	}
	if req.Start.IsZero() {
		return domain.Booking{}, fmt.Errorf("%w: start time is required", domain.ErrValidation)
	}
	if req.ExpectedEnd != nil && !req.ExpectedEnd.After(req.Start) {
		return domain.Booking{}, fmt.Errorf("%w: expected end must be after start", domain.ErrValidation)
	}

	window := domain.TimeWindow{Start: req.Start, End: req.ExpectedEnd}
	if err := s.detector.Check(ctx, req.SlotID, window); err != nil {
		reservationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return domain.Booking{}, err
	}

	slot, err := s.store.GetSlot(ctx, req.SlotID)
	if err != nil {
		return domain.Booking{}, err
	}
	lot, err := s.store.GetLot(ctx, slot.LotID)
	if err != nil {
		return domain.Booking{}, err
	}

	estimated := time.Hour
	if req.ExpectedEnd != nil {
		estimated = req.ExpectedEnd.Sub(req.Start)
	}

	bookingID := uuid.New()
	if _, err := s.store.TransitionSlot(ctx, domain.SlotTransition{
		SlotID:  req.SlotID,
		From:    domain.SlotAvailable,
		To:      domain.SlotReserved,
		Booking: &bookingID,
	}); err != nil {
		reservationsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return domain.Booking{}, err
	}

	booking := domain.Booking{
		ID:              bookingID,
		DriverID:        req.Caller.ID,
		SlotID:          req.SlotID,
		LotID:           lot.ID,
		StartTime:       req.Start,
		ExpectedEndTime: req.ExpectedEnd,
		Status:          domain.BookingReserved,
		AmountCents:     pricing.Amount(estimated, lot.Rates.HourlyCents),
		PaymentStatus:   domain.PaymentPending,
		VehicleNumber:   req.VehicleNumber,
		Notes:           req.Notes,
		CreatedAt:       s.clock.Now(),
	}
	created, err := s.store.CreateBooking(ctx, booking)
	if err != nil {
		// Undo the slot hold so a storage failure cannot strand the slot.
		if _, rbErr := s.store.TransitionSlot(ctx, domain.SlotTransition{
			SlotID: req.SlotID,
			From:   domain.SlotReserved,
			To:     domain.SlotAvailable,
		}); rbErr != nil {
			s.logger.Error("slot rollback failed", zap.String("slot_id", req.SlotID.String()), zap.Error(rbErr))
		}
		reservationsTotal.WithLabelValues("error").Inc()
		return domain.Booking{}, fmt.Errorf("create booking: %w", err)
	}

	s.applyMirror(ctx, lot.ID, -1)
	reservationsTotal.WithLabelValues("reserved").Inc()
	s.emit(ctx, domain.Event{
		Type:  domain.EventBookingCreated,
		LotID: lot.ID,
		Payload: map[string]any{
			"booking_id":   created.ID.String(),
			"slot_id":      created.SlotID.String(),
			"driver_id":    created.DriverID.String(),
			"amount_cents": created.AmountCents,
		},
	})
	return created, nil
}

// Start marks a reserved booking active, resetting the start time to the
// actual clock-in instant, and occupies the slot.
func (s *Service) Start(ctx context.Context, bookingID uuid.UUID, caller domain.Caller) (domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !policy.Allow(caller, policy.ActionStartBooking, policy.ForBooking(booking, nil)) {
		return domain.Booking{}, domain.ErrForbidden
	}
	if booking.Status != domain.BookingReserved {
		return domain.Booking{}, fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, booking.Status)
	}

	if _, err := s.store.TransitionSlot(ctx, domain.SlotTransition{
		SlotID:  booking.SlotID,
		From:    domain.SlotReserved,
		To:      domain.SlotOccupied,
		Booking: &booking.ID,
	}); err != nil {
		return domain.Booking{}, err
	}

	booking.Status = domain.BookingActive
	booking.StartTime = s.clock.Now()
	updated, err := s.store.UpdateBooking(ctx, booking)
	if err != nil {
		return domain.Booking{}, err
	}

	transitionsTotal.WithLabelValues(string(domain.BookingActive)).Inc()
	s.emit(ctx, domain.Event{
		Type:    domain.EventBookingStarted,
		LotID:   booking.LotID,
		Payload: bookingPayload(updated),
	})
	return updated, nil
}

// Complete finishes a booking, reprices it from the actual duration and
// releases the slot. Terminal bookings are rejected rather than treated
// as an idempotent no-op: completing twice would double-release the slot.
func (s *Service) Complete(ctx context.Context, bookingID uuid.UUID, caller domain.Caller) (domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	lot, err := s.store.GetLot(ctx, booking.LotID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !policy.Allow(caller, policy.ActionCompleteBooking, policy.ForBooking(booking, &lot)) {
		return domain.Booking{}, domain.ErrForbidden
	}
	if !booking.Status.CanTransitionTo(domain.BookingCompleted) {
		return domain.Booking{}, fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, booking.Status)
	}

	released, err := s.releaseSlot(ctx, booking)
	if err != nil {
		return domain.Booking{}, err
	}

	now := s.clock.Now()
	booking.Status = domain.BookingCompleted
	booking.EndTime = &now
	booking.AmountCents = pricing.Amount(now.Sub(booking.StartTime), lot.Rates.HourlyCents)
	updated, err := s.store.UpdateBooking(ctx, booking)
	if err != nil {
		return domain.Booking{}, err
	}

	if released {
		s.applyMirror(ctx, booking.LotID, 1)
	}
	transitionsTotal.WithLabelValues(string(domain.BookingCompleted)).Inc()
	s.emit(ctx, domain.Event{
		Type:    domain.EventBookingCompleted,
		LotID:   booking.LotID,
		Payload: bookingPayload(updated),
	})
	return updated, nil
}

// Cancel aborts a reserved or active booking and releases the slot.
func (s *Service) Cancel(ctx context.Context, bookingID uuid.UUID, caller domain.Caller) (domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if !policy.Allow(caller, policy.ActionCancelBooking, policy.ForBooking(booking, nil)) {
		return domain.Booking{}, domain.ErrForbidden
	}
	if !booking.Status.CanTransitionTo(domain.BookingCancelled) {
		return domain.Booking{}, fmt.Errorf("%w: booking is %s", domain.ErrInvalidTransition, booking.Status)
	}

	released, err := s.releaseSlot(ctx, booking)
	if err != nil {
		return domain.Booking{}, err
	}

	now := s.clock.Now()
	booking.Status = domain.BookingCancelled
	booking.EndTime = &now
	updated, err := s.store.UpdateBooking(ctx, booking)
	if err != nil {
		return domain.Booking{}, err
	}

	if released {
		s.applyMirror(ctx, booking.LotID, 1)
	}
	transitionsTotal.WithLabelValues(string(domain.BookingCancelled)).Inc()
	s.emit(ctx, domain.Event{
		Type:    domain.EventBookingCancelled,
		LotID:   booking.LotID,
		Payload: bookingPayload(updated),
	})
	return updated, nil
}

// ExpireOverdue transitions reserved bookings whose expected end has
// passed to expired and frees their slots. Active bookings are left
// alone: a car may still be in the slot, and overstays are settled at
// completion.
func (s *Service) ExpireOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	reserved, err := s.store.ListBookings(ctx, domain.BookingFilter{
		Statuses: []domain.BookingStatus{domain.BookingReserved},
	})
	if err != nil {
		return nil, err
	}

	var expired []domain.Booking
	for _, booking := range reserved {
		if booking.ExpectedEndTime == nil || booking.ExpectedEndTime.After(now) {
			continue
		}
		released, err := s.releaseSlot(ctx, booking)
		if err != nil {
			s.logger.Warn("expiry release failed",
				zap.String("booking_id", booking.ID.String()), zap.Error(err))
			continue
		}
		end := now
		booking.Status = domain.BookingExpired
		booking.EndTime = &end
		updated, err := s.store.UpdateBooking(ctx, booking)
		if err != nil {
			s.logger.Error("expiry update failed",
				zap.String("booking_id", booking.ID.String()), zap.Error(err))
			continue
		}
		if released {
			s.applyMirror(ctx, booking.LotID, 1)
		}
		transitionsTotal.WithLabelValues(string(domain.BookingExpired)).Inc()
		s.emit(ctx, domain.Event{
			Type:    domain.EventBookingExpired,
			LotID:   booking.LotID,
			Payload: bookingPayload(updated),
		})
		expired = append(expired, updated)
	}
	return expired, nil
}

// GetBooking retrieves a booking the caller is allowed to see.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID, caller domain.Caller) (domain.Booking, error) {
	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if !policy.Allow(caller, policy.ActionViewBooking, policy.ForBooking(booking, nil)) {
		return domain.Booking{}, domain.ErrForbidden
	}
	return booking, nil
}

// ListBookings returns bookings visible to the caller. Drivers only ever
// see their own.
func (s *Service) ListBookings(ctx context.Context, caller domain.Caller, filter domain.BookingFilter) ([]domain.Booking, error) {
	if caller.Role == domain.RoleDriver {
		filter.DriverID = &caller.ID
	}
	return s.store.ListBookings(ctx, filter)
}

// UpcomingExpiries lists the caller's live bookings whose expected end
// falls inside the window, feeding expiry reminders. Already-overdue
// bookings are the sweeper's problem and are excluded.
func (s *Service) UpcomingExpiries(ctx context.Context, caller domain.Caller, within time.Duration) ([]domain.Booking, error) {
	if within <= 0 {
		return nil, fmt.Errorf("%w: window must be positive", domain.ErrValidation)
	}
	filter := domain.BookingFilter{
		Statuses: []domain.BookingStatus{domain.BookingReserved, domain.BookingActive},
	}
	if caller.Role == domain.RoleDriver {
		filter.DriverID = &caller.ID
	}
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	deadline := now.Add(within)
	var expiring []domain.Booking
	for _, booking := range bookings {
		if booking.ExpectedEndTime == nil {
			continue
		}
		if booking.ExpectedEndTime.Before(now) || booking.ExpectedEndTime.After(deadline) {
			continue
		}
		expiring = append(expiring, booking)
	}
	return expiring, nil
}

// releaseSlot returns a booking's slot to available, clearing the
// back-reference. The usual path is a guarded CAS from the status the
// booking implies. When an operator override has already moved the slot
// elsewhere the release follows the observed state instead: a slot still
// referencing this booking is freed from its actual status, and a
// repurposed or deleted slot is left alone so the booking can still reach
// a terminal state. The bool reports whether the slot actually returned
// to available.
func (s *Service) releaseSlot(ctx context.Context, booking domain.Booking) (bool, error) {
	from := domain.SlotReserved
	if booking.Status == domain.BookingActive {
		from = domain.SlotOccupied
	}
	_, err := s.store.TransitionSlot(ctx, domain.SlotTransition{
		SlotID: booking.SlotID,
		From:   from,
		To:     domain.SlotAvailable,
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrSlotNotFound) {
		// The lot was deleted out from under the booking.
		return false, nil
	}
	if !errors.Is(err, domain.ErrSlotUnavailable) {
		return false, err
	}

	slot, err := s.store.GetSlot(ctx, booking.SlotID)
	if err != nil {
		return false, err
	}
	if slot.CurrentBookingID == nil || *slot.CurrentBookingID != booking.ID {
		// An override repurposed the slot; nothing left to release.
		return false, nil
	}
	if _, err := s.store.TransitionSlot(ctx, domain.SlotTransition{
		SlotID: booking.SlotID,
		From:   slot.Status,
		To:     domain.SlotAvailable,
	}); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) applyMirror(ctx context.Context, lotID uuid.UUID, delta int) {
	availableSlotsGauge.WithLabelValues(lotID.String()).Add(float64(delta))
	if s.mirror == nil {
		return
	}
	if _, err := s.mirror.Apply(ctx, lotID, delta); err != nil {
		s.logger.Warn("availability mirror update failed",
			zap.String("lot_id", lotID.String()), zap.Error(err))
	}
}

// emit records the event in the store's audit log and broadcasts it.
// Broadcast is best-effort: subscribers are a UI concern, not a
// correctness one.
func (s *Service) emit(ctx context.Context, event domain.Event) {
	event.CreatedAt = s.clock.Now()
	if err := s.store.AppendEvent(ctx, event); err != nil {
		s.logger.Warn("event append failed", zap.String("type", string(event.Type)), zap.Error(err))
	}
	if s.events != nil {
		_ = s.events.Publish(ctx, event)
	}
}

func bookingPayload(b domain.Booking) map[string]any {
	payload := map[string]any{
		"booking_id":   b.ID.String(),
		"slot_id":      b.SlotID.String(),
		"driver_id":    b.DriverID.String(),
		"status":       string(b.Status),
		"amount_cents": b.AmountCents,
	}
	if b.EndTime != nil {
		payload["end_time"] = b.EndTime.UTC().Format(time.RFC3339)
	}
	return payload
}
