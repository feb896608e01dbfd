package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/parkpulse/internal/parking/domain"
	"github.com/example/parkpulse/internal/parking/repository"
	"github.com/example/parkpulse/internal/parking/service"
)

func TestCreateLotProvisionsNumberedSlots(t *testing.T) {
	f := newFixture(t, 3, 5000)

	require.Equal(t, 3, f.lot.TotalSlots)
	require.Equal(t, 3, f.lot.AvailableSlots)
	require.Equal(t, f.manager.ID, f.lot.ManagerID)

	numbers := make([]string, 0, len(f.slots))
	for _, slot := range f.slots {
		numbers = append(numbers, slot.Number)
		require.Equal(t, domain.SlotAvailable, slot.Status)
		require.Equal(t, domain.SlotOpenAir, slot.Type)
	}
	require.Equal(t, []string{"SL-001", "SL-002", "SL-003"}, numbers)
}

func TestCreateLotRejectsDrivers(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := service.New(store, &stubPublisher{}, domain.SystemClock{}, nil, nil)

	_, err := svc.CreateLot(context.Background(), service.CreateLotRequest{
		Caller:     driver(),
		Name:       "Rogue Lot",
		TotalSlots: 1,
	})
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateLotPartialFields(t *testing.T) {
	f := newFixture(t, 1, 5000)
	name := "Renamed Garage"
	inactive := false

	updated, err := f.svc.UpdateLot(context.Background(), service.UpdateLotRequest{
		Caller: f.manager,
		LotID:  f.lot.ID,
		Name:   &name,
		Active: &inactive,
	})
	require.NoError(t, err)
	require.Equal(t, "Renamed Garage", updated.Name)
	require.False(t, updated.Active)
	require.Equal(t, f.lot.Rates, updated.Rates, "untouched fields survive")
	require.Equal(t, 1, updated.AvailableSlots, "counter is preserved across updates")

	_, err = f.svc.UpdateLot(context.Background(), service.UpdateLotRequest{
		Caller: manager(), LotID: f.lot.ID, Name: &name,
	})
	require.ErrorIs(t, err, domain.ErrForbidden, "a different manager may not update")
}

func TestDeleteLotIsAdminOnly(t *testing.T) {
	f := newFixture(t, 1, 5000)

	err := f.svc.DeleteLot(context.Background(), f.lot.ID, f.manager)
	require.ErrorIs(t, err, domain.ErrForbidden)

	err = f.svc.DeleteLot(context.Background(), f.lot.ID, admin())
	require.NoError(t, err)

	_, err = f.store.GetLot(context.Background(), f.lot.ID)
	require.ErrorIs(t, err, domain.ErrLotNotFound)
	_, err = f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.ErrorIs(t, err, domain.ErrSlotNotFound)
}

func TestGetLotComputesSlotStats(t *testing.T) {
	f := newFixture(t, 3, 5000)

	_, err := f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotMaintenance, nil, f.manager)
	require.NoError(t, err)

	details, err := f.svc.GetLot(context.Background(), f.lot.ID)
	require.NoError(t, err)
	require.Equal(t, 2, details.SlotStats[domain.SlotAvailable])
	require.Equal(t, 1, details.SlotStats[domain.SlotMaintenance])
	require.Equal(t, 3, details.TypeStats[domain.SlotOpenAir])
}

func TestSetSlotStatusAdjustsCounterAndEmitsOldStatus(t *testing.T) {
	f := newFixture(t, 2, 5000)

	_, err := f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotMaintenance, nil, f.manager)
	require.NoError(t, err)
	require.Equal(t, 1, f.availableSlots(t))

	_, err = f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotAvailable, nil, f.manager)
	require.NoError(t, err)
	require.Equal(t, 2, f.availableSlots(t))

	events := f.store.Events()
	last := events[len(events)-1]
	require.Equal(t, domain.EventSlotStatusUpdated, last.Type)
	require.Equal(t, "available", last.Payload["status"])
	require.Equal(t, "maintenance", last.Payload["old_status"])

	_, err = f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotStatus("parked"), nil, f.manager)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotMaintenance, nil, driver())
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSetSlotStatusRetypesSlot(t *testing.T) {
	f := newFixture(t, 1, 5000)
	ev := domain.SlotEVCharging

	slot, err := f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotMaintenance, &ev, f.manager)
	require.NoError(t, err)
	require.Equal(t, domain.SlotMaintenance, slot.Status)
	require.Equal(t, domain.SlotEVCharging, slot.Type)

	events := f.store.Events()
	last := events[len(events)-1]
	require.Equal(t, domain.EventSlotStatusUpdated, last.Type)
	require.Equal(t, "ev_charging", last.Payload["type"])

	bad := domain.SlotType("rooftop")
	_, err = f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotAvailable, &bad, f.manager)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestBulkSetSlotStatusPartialSuccess(t *testing.T) {
	f := newFixture(t, 3, 5000)
	covered := domain.SlotCovered

	otherLot, err := f.svc.CreateLot(context.Background(), service.CreateLotRequest{
		Caller: manager(), Name: "Annex", TotalSlots: 1,
	})
	require.NoError(t, err)
	otherSlots, err := f.svc.ListSlots(context.Background(), domain.SlotFilter{LotID: &otherLot.ID})
	require.NoError(t, err)

	result, err := f.svc.BulkSetSlotStatus(context.Background(), f.lot.ID, []service.SlotUpdate{
		{SlotID: f.slots[0].ID, Status: domain.SlotMaintenance},
		{SlotID: f.slots[1].ID, Status: domain.SlotAvailable, Type: &covered},
		{SlotID: uuid.New(), Status: domain.SlotAvailable},
		{SlotID: otherSlots[0].ID, Status: domain.SlotMaintenance},
		{SlotID: f.slots[2].ID, Status: domain.SlotStatus("bogus")},
	}, f.manager)
	require.NoError(t, err)
	require.Len(t, result.Updated, 2)
	require.Len(t, result.Errors, 3)
	require.Equal(t, "slot not found", result.Errors[0].Reason)
	require.Equal(t, "slot does not belong to this lot", result.Errors[1].Reason)
	require.Equal(t, "invalid status", result.Errors[2].Reason)

	// One slot moved to maintenance, so the recount lands on 2.
	require.Equal(t, 2, f.availableSlots(t))

	slot, err := f.store.GetSlot(context.Background(), f.slots[1].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotCovered, slot.Type)

	events := f.store.Events()
	last := events[len(events)-1]
	require.Equal(t, domain.EventSlotsBulkUpdated, last.Type)
	require.Equal(t, 2, last.Payload["updated"])
	require.Equal(t, 3, last.Payload["errors"])
}

func TestBulkSetSlotStatusClearsBookingRef(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: f.clock.Now(),
	})
	require.NoError(t, err)

	result, err := f.svc.BulkSetSlotStatus(context.Background(), f.lot.ID, []service.SlotUpdate{
		{SlotID: booking.SlotID, Status: domain.SlotAvailable},
	}, f.manager)
	require.NoError(t, err)
	require.Len(t, result.Updated, 1)
	require.Nil(t, result.Updated[0].CurrentBookingID)
	require.Equal(t, 1, f.availableSlots(t))
}
