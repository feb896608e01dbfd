package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/parkpulse/internal/parking/domain"
	"github.com/example/parkpulse/internal/parking/policy"
)

// CreateLotRequest contains the payload for provisioning a lot.
type CreateLotRequest struct {
	Caller     domain.Caller
	Name       string
	ManagerID  *uuid.UUID
	TotalSlots int
	Rates      domain.RateCard
}

// CreateLot provisions a lot together with its numbered slots, all
// starting available and open-air.
func (s *Service) CreateLot(ctx context.Context, req CreateLotRequest) (domain.Lot, error) {
	if req.Caller.Role != domain.RoleManager && req.Caller.Role != domain.RoleAdmin {
		return domain.Lot{}, domain.ErrForbidden
	}
	if req.Name == "" {
		return domain.Lot{}, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if req.TotalSlots < 1 {
		return domain.Lot{}, fmt.Errorf("%w: total slots must be at least 1", domain.ErrValidation)
	}

	managerID := req.Caller.ID
	if req.Caller.Role == domain.RoleAdmin && req.ManagerID != nil {
		managerID = *req.ManagerID
	}

	now := s.clock.Now()
	lot := domain.Lot{
		ID:         uuid.New(),
		Name:       req.Name,
		ManagerID:  managerID,
		TotalSlots: req.TotalSlots,
		Rates:      req.Rates,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	slots := make([]domain.Slot, 0, req.TotalSlots)
	for i := 1; i <= req.TotalSlots; i++ {
		slots = append(slots, domain.Slot{
			ID:          uuid.New(),
			LotID:       lot.ID,
			Number:      fmt.Sprintf("SL-%03d", i),
			Type:        domain.SlotOpenAir,
			Status:      domain.SlotAvailable,
			LastUpdated: now,
		})
	}

	created, err := s.store.CreateLot(ctx, lot, slots)
	if err != nil {
		return domain.Lot{}, err
	}
	s.rebuildMirror(ctx, created.ID, created.AvailableSlots)
	s.emit(ctx, domain.Event{
		Type:   domain.EventLotCreated,
		LotID:  created.ID,
		Global: true,
		Payload: map[string]any{
			"name":        created.Name,
			"total_slots": created.TotalSlots,
		},
	})
	return created, nil
}

// UpdateLotRequest carries partial lot updates; nil fields are unchanged.
type UpdateLotRequest struct {
	Caller domain.Caller
	LotID  uuid.UUID
	Name   *string
	Rates  *domain.RateCard
	Active *bool
}

// UpdateLot applies the changed fields.
func (s *Service) UpdateLot(ctx context.Context, req UpdateLotRequest) (domain.Lot, error) {
	lot, err := s.store.GetLot(ctx, req.LotID)
	if err != nil {
		return domain.Lot{}, err
	}
	if !policy.Allow(req.Caller, policy.ActionManageLot, policy.ForLot(lot)) {
		return domain.Lot{}, domain.ErrForbidden
	}

	if req.Name != nil {
		if *req.Name == "" {
			return domain.Lot{}, fmt.Errorf("%w: name cannot be empty", domain.ErrValidation)
		}
		lot.Name = *req.Name
	}
	if req.Rates != nil {
		lot.Rates = *req.Rates
	}
	if req.Active != nil {
		lot.Active = *req.Active
	}
	lot.UpdatedAt = s.clock.Now()

	updated, err := s.store.UpdateLot(ctx, lot)
	if err != nil {
		return domain.Lot{}, err
	}
	s.emit(ctx, domain.Event{
		Type:    domain.EventLotUpdated,
		LotID:   updated.ID,
		Global:  true,
		Payload: map[string]any{"name": updated.Name, "active": updated.Active},
	})
	return updated, nil
}

// DeleteLot removes a lot and its slots. Admin only; bookings remain as
// audit records.
func (s *Service) DeleteLot(ctx context.Context, lotID uuid.UUID, caller domain.Caller) error {
	lot, err := s.store.GetLot(ctx, lotID)
	if err != nil {
		return err
	}
	if !policy.Allow(caller, policy.ActionDeleteLot, policy.ForLot(lot)) {
		return domain.ErrForbidden
	}
	if err := s.store.DeleteLot(ctx, lotID); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Drop(ctx, lotID); err != nil {
			s.logger.Warn("availability mirror drop failed", zap.String("lot_id", lotID.String()), zap.Error(err))
		}
	}
	availableSlotsGauge.DeleteLabelValues(lotID.String())
	s.emit(ctx, domain.Event{
		Type:    domain.EventLotDeleted,
		LotID:   lotID,
		Global:  true,
		Payload: map[string]any{"lot_id": lotID.String()},
	})
	return nil
}

// LotDetails is a lot with its slot statistics.
type LotDetails struct {
	domain.Lot
	SlotStats map[domain.SlotStatus]int `json:"slot_stats"`
	TypeStats map[domain.SlotType]int   `json:"type_stats"`
}

// GetLot returns the lot with per-status and per-type slot counts.
func (s *Service) GetLot(ctx context.Context, lotID uuid.UUID) (LotDetails, error) {
	lot, err := s.store.GetLot(ctx, lotID)
	if err != nil {
		return LotDetails{}, err
	}
	slots, err := s.store.ListSlots(ctx, domain.SlotFilter{LotID: &lotID})
	if err != nil {
		return LotDetails{}, err
	}
	details := LotDetails{
		Lot:       lot,
		SlotStats: make(map[domain.SlotStatus]int),
		TypeStats: make(map[domain.SlotType]int),
	}
	for _, slot := range slots {
		details.SlotStats[slot.Status]++
		details.TypeStats[slot.Type]++
	}
	return details, nil
}

// ListLots returns all lots.
func (s *Service) ListLots(ctx context.Context) ([]domain.Lot, error) {
	return s.store.ListLots(ctx)
}

// ListSlots returns slots matching the filter.
func (s *Service) ListSlots(ctx context.Context, filter domain.SlotFilter) ([]domain.Slot, error) {
	return s.store.ListSlots(ctx, filter)
}

// SetSlotStatus is the manual operator override, optionally retyping the
// slot in the same call. The transition is still a CAS from the observed
// status, the counter delta rides along inside the store, and moving a
// slot out of reserved/occupied clears its booking back-reference.
func (s *Service) SetSlotStatus(ctx context.Context, slotID uuid.UUID, status domain.SlotStatus, typ *domain.SlotType, caller domain.Caller) (domain.Slot, error) {
	if !status.Valid() {
		return domain.Slot{}, fmt.Errorf("%w: invalid status %q", domain.ErrValidation, status)
	}
	if typ != nil && !typ.Valid() {
		return domain.Slot{}, fmt.Errorf("%w: invalid type %q", domain.ErrValidation, *typ)
	}
	slot, err := s.store.GetSlot(ctx, slotID)
	if err != nil {
		return domain.Slot{}, err
	}
	lot, err := s.store.GetLot(ctx, slot.LotID)
	if err != nil {
		return domain.Slot{}, err
	}
	if !policy.Allow(caller, policy.ActionManageSlots, policy.ForLot(lot)) {
		return domain.Slot{}, domain.ErrForbidden
	}

	oldStatus := slot.Status
	var bookingRef *uuid.UUID
	if status == domain.SlotReserved || status == domain.SlotOccupied {
		bookingRef = slot.CurrentBookingID
	}
	updated, err := s.store.TransitionSlot(ctx, domain.SlotTransition{
		SlotID:  slotID,
		From:    oldStatus,
		To:      status,
		Booking: bookingRef,
	})
	if err != nil {
		return domain.Slot{}, err
	}

	payload := map[string]any{
		"slot_id":    slotID.String(),
		"status":     string(status),
		"old_status": string(oldStatus),
	}
	if typ != nil && *typ != updated.Type {
		updated.Type = *typ
		updated.LastUpdated = s.clock.Now()
		updated, err = s.store.UpdateSlot(ctx, updated)
		if err != nil {
			return domain.Slot{}, err
		}
		payload["type"] = string(*typ)
	}

	s.applyMirror(ctx, slot.LotID, mirrorDelta(oldStatus, status))
	s.emit(ctx, domain.Event{
		Type:    domain.EventSlotStatusUpdated,
		LotID:   slot.LotID,
		Payload: payload,
	})
	return updated, nil
}

func mirrorDelta(from, to domain.SlotStatus) int {
	switch {
	case from == domain.SlotAvailable && to != domain.SlotAvailable:
		return -1
	case from != domain.SlotAvailable && to == domain.SlotAvailable:
		return 1
	default:
		return 0
	}
}

// SlotUpdate is one item of a bulk status change.
type SlotUpdate struct {
	SlotID uuid.UUID         `json:"slot_id"`
	Status domain.SlotStatus `json:"status"`
	Type   *domain.SlotType  `json:"type,omitempty"`
}

// SlotUpdateError reports a single failed item of a bulk update.
type SlotUpdateError struct {
	SlotID uuid.UUID `json:"slot_id"`
	Reason string    `json:"reason"`
}

// BulkResult carries the partial-success outcome of a bulk update.
type BulkResult struct {
	Updated []domain.Slot     `json:"updated"`
	Errors  []SlotUpdateError `json:"errors,omitempty"`
}

// BulkSetSlotStatus applies per-slot status (and optionally type) changes
// within one lot. Item failures accumulate instead of aborting the batch;
// the lot counter is recounted once at the end.
func (s *Service) BulkSetSlotStatus(ctx context.Context, lotID uuid.UUID, updates []SlotUpdate, caller domain.Caller) (BulkResult, error) {
	if len(updates) == 0 {
		return BulkResult{}, fmt.Errorf("%w: updates are required", domain.ErrValidation)
	}
	lot, err := s.store.GetLot(ctx, lotID)
	if err != nil {
		return BulkResult{}, err
	}
	if !policy.Allow(caller, policy.ActionManageSlots, policy.ForLot(lot)) {
		return BulkResult{}, domain.ErrForbidden
	}

	var result BulkResult
	for _, update := range updates {
		if update.SlotID == uuid.Nil {
			result.Errors = append(result.Errors, SlotUpdateError{Reason: "slot id is required"})
			continue
		}
		if !update.Status.Valid() {
			result.Errors = append(result.Errors, SlotUpdateError{SlotID: update.SlotID, Reason: "invalid status"})
			continue
		}
		if update.Type != nil && !update.Type.Valid() {
			result.Errors = append(result.Errors, SlotUpdateError{SlotID: update.SlotID, Reason: "invalid type"})
			continue
		}
		slot, err := s.store.GetSlot(ctx, update.SlotID)
		if err != nil {
			result.Errors = append(result.Errors, SlotUpdateError{SlotID: update.SlotID, Reason: "slot not found"})
			continue
		}
		if slot.LotID != lotID {
			result.Errors = append(result.Errors, SlotUpdateError{SlotID: update.SlotID, Reason: "slot does not belong to this lot"})
			continue
		}

		slot.Status = update.Status
		if update.Type != nil {
			slot.Type = *update.Type
		}
		if update.Status != domain.SlotReserved && update.Status != domain.SlotOccupied {
			slot.CurrentBookingID = nil
		}
		slot.LastUpdated = s.clock.Now()
		updated, err := s.store.UpdateSlot(ctx, slot)
		if err != nil {
			result.Errors = append(result.Errors, SlotUpdateError{SlotID: update.SlotID, Reason: err.Error()})
			continue
		}
		result.Updated = append(result.Updated, updated)
	}

	count, err := s.store.RecountAvailable(ctx, lotID)
	if err != nil {
		return result, err
	}
	s.rebuildMirror(ctx, lotID, count)
	s.emit(ctx, domain.Event{
		Type:  domain.EventSlotsBulkUpdated,
		LotID: lotID,
		Payload: map[string]any{
			"updated": len(result.Updated),
			"errors":  len(result.Errors),
		},
	})
	return result, nil
}

func (s *Service) rebuildMirror(ctx context.Context, lotID uuid.UUID, count int) {
	availableSlotsGauge.WithLabelValues(lotID.String()).Set(float64(count))
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Rebuild(ctx, lotID, count); err != nil {
		s.logger.Warn("availability mirror rebuild failed", zap.String("lot_id", lotID.String()), zap.Error(err))
	}
}
