package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/parkpulse/internal/parking/domain"
	"github.com/example/parkpulse/internal/parking/repository"
	"github.com/example/parkpulse/internal/parking/service"
)

type stubPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *stubPublisher) Publish(_ context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *stubPublisher) Types() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]domain.EventType, 0, len(s.events))
	for _, event := range s.events {
		types = append(types, event.Type)
	}
	return types
}

type stubClock struct {
	mu sync.Mutex
	t  time.Time
}

func (s *stubClock) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t
}

func (s *stubClock) Advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.t = s.t.Add(d)
}

func driver() domain.Caller  { return domain.Caller{ID: uuid.New(), Role: domain.RoleDriver} }
func manager() domain.Caller { return domain.Caller{ID: uuid.New(), Role: domain.RoleManager} }
func admin() domain.Caller   { return domain.Caller{ID: uuid.New(), Role: domain.RoleAdmin} }

type fixture struct {
	store     *repository.MemoryStore
	publisher *stubPublisher
	clock     *stubClock
	svc       *service.Service
	manager   domain.Caller
	lot       domain.Lot
	slots     []domain.Slot
}

func newFixture(t *testing.T, totalSlots int, hourlyCents int64) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	publisher := &stubPublisher{}
	clock := &stubClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc := service.New(store, publisher, clock, nil, nil)

	mgr := manager()
	lot, err := svc.CreateLot(context.Background(), service.CreateLotRequest{
		Caller:     mgr,
		Name:       "Central Garage",
		TotalSlots: totalSlots,
		Rates:      domain.RateCard{HourlyCents: hourlyCents},
	})
	require.NoError(t, err)

	slots, err := svc.ListSlots(context.Background(), domain.SlotFilter{LotID: &lot.ID})
	require.NoError(t, err)
	require.Len(t, slots, totalSlots)

	return &fixture{store: store, publisher: publisher, clock: clock, svc: svc, manager: mgr, lot: lot, slots: slots}
}

func (f *fixture) availableSlots(t *testing.T) int {
	t.Helper()
	lot, err := f.store.GetLot(context.Background(), f.lot.ID)
	require.NoError(t, err)
	return lot.AvailableSlots
}

func hoursLater(t time.Time, h int) *time.Time {
	end := t.Add(time.Duration(h) * time.Hour)
	return &end
}

func TestReserveBooksSlotAndDecrementsCounter(t *testing.T) {
	f := newFixture(t, 2, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller:      who,
		SlotID:      f.slots[0].ID,
		Start:       start,
		ExpectedEnd: hoursLater(start, 2),
	})
	require.NoError(t, err)
	require.Equal(t, domain.BookingReserved, booking.Status)
	require.Equal(t, int64(10000), booking.AmountCents)
	require.Equal(t, domain.PaymentPending, booking.PaymentStatus)

	slot, err := f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotReserved, slot.Status)
	require.NotNil(t, slot.CurrentBookingID)
	require.Equal(t, booking.ID, *slot.CurrentBookingID)

	require.Equal(t, 1, f.availableSlots(t))
	require.Contains(t, f.publisher.Types(), domain.EventBookingCreated)
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()

	_, err := f.svc.Reserve(context.Background(), service.ReserveRequest{Caller: who, Start: f.clock.Now()})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{Caller: who, SlotID: f.slots[0].ID})
	require.ErrorIs(t, err, domain.ErrValidation)

	badEnd := f.clock.Now().Add(-time.Hour)
	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: f.clock.Now(), ExpectedEnd: &badEnd,
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: uuid.New(), Start: f.clock.Now(),
	})
	require.ErrorIs(t, err, domain.ErrSlotNotFound)
}

func TestReserveUnavailableSlot(t *testing.T) {
	f := newFixture(t, 1, 5000)
	first := driver()
	start := f.clock.Now()

	_, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: first, SlotID: f.slots[0].ID, Start: start, ExpectedEnd: hoursLater(start, 1),
	})
	require.NoError(t, err)

	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: driver(), SlotID: f.slots[0].ID, Start: start.Add(3 * time.Hour),
	})
	require.ErrorIs(t, err, domain.ErrSlotUnavailable)
}

// Overlap detection matters when a slot reads available but still has a
// live booking, which happens after a manual operator release. The
// half-open window rule must reject [11,13) against [10,12) and accept
// [12,14).
func TestReserveWindowOverlap(t *testing.T) {
	f := newFixture(t, 1, 5000)
	day := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	ten := day.Add(10 * time.Hour)
	noon := day.Add(12 * time.Hour)

	existing := domain.Booking{
		ID:              uuid.New(),
		DriverID:        uuid.New(),
		SlotID:          f.slots[0].ID,
		LotID:           f.lot.ID,
		StartTime:       ten,
		ExpectedEndTime: &noon,
		Status:          domain.BookingReserved,
		CreatedAt:       f.clock.Now(),
	}
	_, err := f.store.CreateBooking(context.Background(), existing)
	require.NoError(t, err)

	eleven := day.Add(11 * time.Hour)
	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: driver(), SlotID: f.slots[0].ID, Start: eleven, ExpectedEnd: hoursLater(eleven, 2),
	})
	require.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: driver(), SlotID: f.slots[0].ID, Start: noon, ExpectedEnd: hoursLater(noon, 2),
	})
	require.NoError(t, err)
}

func TestReserveOpenEndedBlocksFutureWindows(t *testing.T) {
	f := newFixture(t, 1, 5000)
	start := f.clock.Now()

	existing := domain.Booking{
		ID:        uuid.New(),
		DriverID:  uuid.New(),
		SlotID:    f.slots[0].ID,
		LotID:     f.lot.ID,
		StartTime: start,
		Status:    domain.BookingActive,
		CreatedAt: start,
	}
	_, err := f.store.CreateBooking(context.Background(), existing)
	require.NoError(t, err)

	future := start.Add(48 * time.Hour)
	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: driver(), SlotID: f.slots[0].ID, Start: future, ExpectedEnd: hoursLater(future, 1),
	})
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestConcurrentReserveSingleWinner(t *testing.T) {
	f := newFixture(t, 1, 5000)
	start := f.clock.Now()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
				Caller:      driver(),
				SlotID:      f.slots[0].ID,
				Start:       start,
				ExpectedEnd: hoursLater(start, 1),
			})
			errs[i] = err
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.True(t,
			errors.Is(err, domain.ErrSlotUnavailable) || errors.Is(err, domain.ErrConflict),
			"unexpected error: %v", err)
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 0, f.availableSlots(t))

	live, err := f.store.ListBookings(context.Background(), domain.BookingFilter{
		SlotID:   &f.slots[0].ID,
		Statuses: []domain.BookingStatus{domain.BookingReserved, domain.BookingActive},
	})
	require.NoError(t, err)
	require.Len(t, live, 1)
}

func TestStartClocksInAndOccupiesSlot(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	requested := f.clock.Now().Add(2 * time.Hour)

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: requested, ExpectedEnd: hoursLater(requested, 2),
	})
	require.NoError(t, err)

	f.clock.Advance(30 * time.Minute)
	started, err := f.svc.Start(context.Background(), booking.ID, who)
	require.NoError(t, err)
	require.Equal(t, domain.BookingActive, started.Status)
	require.Equal(t, f.clock.Now(), started.StartTime, "start time is the clock-in instant, not the requested one")

	slot, err := f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotOccupied, slot.Status)
	require.Contains(t, f.publisher.Types(), domain.EventBookingStarted)
}

func TestStartAuthorization(t *testing.T) {
	f := newFixture(t, 1, 5000)
	owner := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: owner, SlotID: f.slots[0].ID, Start: start,
	})
	require.NoError(t, err)

	_, err = f.svc.Start(context.Background(), booking.ID, driver())
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Start(context.Background(), booking.ID, admin())
	require.NoError(t, err)
}

func TestLifecycleLegality(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start, ExpectedEnd: hoursLater(start, 1),
	})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), booking.ID, who)
	require.NoError(t, err)
	require.Equal(t, domain.BookingCancelled, cancelled.Status)

	_, err = f.svc.Start(context.Background(), booking.ID, who)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Cancel(context.Background(), booking.ID, who)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Complete(context.Background(), booking.ID, who)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCompleteRepricesFromActualDuration(t *testing.T) {
	f := newFixture(t, 1, 50)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start, ExpectedEnd: hoursLater(start, 2),
	})
	require.NoError(t, err)
	require.Equal(t, int64(100), booking.AmountCents)

	_, err = f.svc.Start(context.Background(), booking.ID, who)
	require.NoError(t, err)

	f.clock.Advance(3*time.Hour + 10*time.Minute)
	completed, err := f.svc.Complete(context.Background(), booking.ID, who)
	require.NoError(t, err)
	require.Equal(t, domain.BookingCompleted, completed.Status)
	require.Equal(t, int64(200), completed.AmountCents, "3h10m rounds up to 4 hours at rate 50")
	require.NotNil(t, completed.EndTime)
}

func TestCompleteAllowedForLotManager(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start,
	})
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), booking.ID, manager())
	require.ErrorIs(t, err, domain.ErrForbidden, "a manager of a different lot may not complete")

	_, err = f.svc.Complete(context.Background(), booking.ID, f.manager)
	require.NoError(t, err)
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start,
	})
	require.NoError(t, err)
	require.Equal(t, 0, f.availableSlots(t))

	_, err = f.svc.Cancel(context.Background(), booking.ID, who)
	require.NoError(t, err)

	slot, err := f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotAvailable, slot.Status)
	require.Nil(t, slot.CurrentBookingID)
	require.Equal(t, 1, f.availableSlots(t))
}

// Full lifecycle on a one-slot lot at hourly rate 40: reserve
// [09:00, 10:00), start, complete. The counter dips to zero and recovers
// and the slot back-reference is cleared.
func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t, 1, 40)
	who := driver()
	nine := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: nine, ExpectedEnd: hoursLater(nine, 1),
	})
	require.NoError(t, err)
	require.Equal(t, int64(40), booking.AmountCents)
	require.Equal(t, 0, f.availableSlots(t))

	_, err = f.svc.Start(context.Background(), booking.ID, who)
	require.NoError(t, err)
	require.Equal(t, 0, f.availableSlots(t))

	f.clock.Advance(45 * time.Minute)
	completed, err := f.svc.Complete(context.Background(), booking.ID, who)
	require.NoError(t, err)
	require.Equal(t, int64(40), completed.AmountCents, "sub-hour stay still charges one hour")

	require.Equal(t, 1, f.availableSlots(t))
	slot, err := f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotAvailable, slot.Status)
	require.Nil(t, slot.CurrentBookingID)

	require.Equal(t, []domain.EventType{
		domain.EventLotCreated,
		domain.EventBookingCreated,
		domain.EventBookingStarted,
		domain.EventBookingCompleted,
	}, f.publisher.Types())
}

func TestExpireOverdueReleasesReservedSlots(t *testing.T) {
	f := newFixture(t, 2, 5000)
	who := driver()
	start := f.clock.Now()

	overdue, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start, ExpectedEnd: hoursLater(start, 1),
	})
	require.NoError(t, err)

	active, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[1].ID, Start: start, ExpectedEnd: hoursLater(start, 1),
	})
	require.NoError(t, err)
	_, err = f.svc.Start(context.Background(), active.ID, who)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	expired, err := f.svc.ExpireOverdue(context.Background(), f.clock.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, overdue.ID, expired[0].ID)
	require.Equal(t, domain.BookingExpired, expired[0].Status)

	slot, err := f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotAvailable, slot.Status)

	// Active bookings hold their slot through the sweep.
	still, err := f.store.GetBooking(context.Background(), active.ID)
	require.NoError(t, err)
	require.Equal(t, domain.BookingActive, still.Status)
	require.Equal(t, 1, f.availableSlots(t))
}

// An operator override must never strand a booking outside its terminal
// states: cancel, complete and the sweep finalize the booking and leave
// the repurposed slot alone.
func TestCancelAfterSlotOverride(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start, ExpectedEnd: hoursLater(start, 1),
	})
	require.NoError(t, err)

	_, err = f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotMaintenance, nil, f.manager)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), booking.ID, who)
	require.NoError(t, err)
	require.Equal(t, domain.BookingCancelled, cancelled.Status)

	slot, err := f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotMaintenance, slot.Status, "the override survives the cancel")
	require.Nil(t, slot.CurrentBookingID)
	require.Equal(t, 0, f.availableSlots(t), "no phantom release of a repurposed slot")
}

func TestCompleteAfterSlotOverrideToAvailable(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start,
	})
	require.NoError(t, err)

	// The override already returned the slot to the pool.
	_, err = f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotAvailable, nil, f.manager)
	require.NoError(t, err)
	require.Equal(t, 1, f.availableSlots(t))

	completed, err := f.svc.Complete(context.Background(), booking.ID, who)
	require.NoError(t, err)
	require.Equal(t, domain.BookingCompleted, completed.Status)
	require.Equal(t, 1, f.availableSlots(t), "completing must not count the slot twice")
}

func TestCancelReleasesSlotFromOverriddenStatus(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start,
	})
	require.NoError(t, err)

	// reserved -> occupied keeps the booking reference, so the cancel
	// still owes the pool a slot.
	_, err = f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotOccupied, nil, f.manager)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), booking.ID, who)
	require.NoError(t, err)

	slot, err := f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotAvailable, slot.Status)
	require.Nil(t, slot.CurrentBookingID)
	require.Equal(t, 1, f.availableSlots(t))
}

func TestExpireOverdueSkipsRepurposedSlot(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start, ExpectedEnd: hoursLater(start, 1),
	})
	require.NoError(t, err)

	_, err = f.svc.SetSlotStatus(context.Background(), f.slots[0].ID, domain.SlotMaintenance, nil, f.manager)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	expired, err := f.svc.ExpireOverdue(context.Background(), f.clock.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	require.Equal(t, booking.ID, expired[0].ID)
	require.Equal(t, domain.BookingExpired, expired[0].Status)

	slot, err := f.store.GetSlot(context.Background(), f.slots[0].ID)
	require.NoError(t, err)
	require.Equal(t, domain.SlotMaintenance, slot.Status)
	require.Equal(t, 0, f.availableSlots(t))

	// The booking is terminal now; the next sweep has nothing to do.
	again, err := f.svc.ExpireOverdue(context.Background(), f.clock.Now())
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestCancelAfterLotDeleted(t *testing.T) {
	f := newFixture(t, 1, 5000)
	who := driver()
	start := f.clock.Now()

	booking, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start,
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteLot(context.Background(), f.lot.ID, admin()))

	cancelled, err := f.svc.Cancel(context.Background(), booking.ID, who)
	require.NoError(t, err)
	require.Equal(t, domain.BookingCancelled, cancelled.Status)
}

func TestUpcomingExpiries(t *testing.T) {
	f := newFixture(t, 3, 5000)
	who := driver()
	start := f.clock.Now()

	soon, err := f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[0].ID, Start: start, ExpectedEnd: hoursLater(start, 1),
	})
	require.NoError(t, err)
	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: who, SlotID: f.slots[1].ID, Start: start, ExpectedEnd: hoursLater(start, 6),
	})
	require.NoError(t, err)
	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{
		Caller: driver(), SlotID: f.slots[2].ID, Start: start, ExpectedEnd: hoursLater(start, 1),
	})
	require.NoError(t, err)

	f.clock.Advance(45 * time.Minute)
	expiring, err := f.svc.UpcomingExpiries(context.Background(), who, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, expiring, 1, "only the caller's booking inside the window")
	require.Equal(t, soon.ID, expiring[0].ID)

	all, err := f.svc.UpcomingExpiries(context.Background(), admin(), 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, all, 2, "admins see every driver's upcoming expiry")

	f.clock.Advance(time.Hour)
	none, err := f.svc.UpcomingExpiries(context.Background(), who, 30*time.Minute)
	require.NoError(t, err)
	require.Empty(t, none, "overdue bookings belong to the sweeper, not reminders")

	_, err = f.svc.UpcomingExpiries(context.Background(), who, 0)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestListBookingsScopesDriversToTheirOwn(t *testing.T) {
	f := newFixture(t, 2, 5000)
	alice := driver()
	bob := driver()
	start := f.clock.Now()

	_, err := f.svc.Reserve(context.Background(), service.ReserveRequest{Caller: alice, SlotID: f.slots[0].ID, Start: start})
	require.NoError(t, err)
	_, err = f.svc.Reserve(context.Background(), service.ReserveRequest{Caller: bob, SlotID: f.slots[1].ID, Start: start})
	require.NoError(t, err)

	mine, err := f.svc.ListBookings(context.Background(), alice, domain.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, alice.ID, mine[0].DriverID)

	all, err := f.svc.ListBookings(context.Background(), admin(), domain.BookingFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
