package notifier

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/parkpulse/internal/parking/domain"
)

const subscriberBuffer = 16

// Hub fans events out to in-process subscribers grouped by lot. Delivery
// is best-effort and at-most-once: a full subscriber buffer drops the
// event, and a subscriber joining after an event never sees it.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]map[*Subscription]struct{}
	global  map[*Subscription]struct{}
	logger  *zap.Logger
	dropped atomic.Int64
}

// Dropped reports how many events were lost to full subscriber buffers.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Subscription is one subscriber's event stream.
type Subscription struct {
	lotID  uuid.UUID
	global bool
	ch     chan domain.Event
}

// Events returns the receive channel. Closed on Unsubscribe.
func (s *Subscription) Events() <-chan domain.Event { return s.ch }

// NewHub constructs an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Subscription]struct{}),
		global: make(map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe joins the lot's broadcast group.
func (h *Hub) Subscribe(lotID uuid.UUID) *Subscription {
	sub := &Subscription{lotID: lotID, ch: make(chan domain.Event, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[lotID]
	if !ok {
		room = make(map[*Subscription]struct{})
		h.rooms[lotID] = room
	}
	room[sub] = struct{}{}
	return sub
}

// SubscribeGlobal joins the lot-lifecycle broadcast.
func (h *Hub) SubscribeGlobal() *Subscription {
	sub := &Subscription{global: true, ch: make(chan domain.Event, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.global[sub] = struct{}{}
	return sub
}

// Unsubscribe leaves the broadcast group and closes the stream.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub.global {
		if _, ok := h.global[sub]; !ok {
			return
		}
		delete(h.global, sub)
	} else {
		room, ok := h.rooms[sub.lotID]
		if !ok {
			return
		}
		if _, ok := room[sub]; !ok {
			return
		}
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, sub.lotID)
		}
	}
	close(sub.ch)
}

// Publish satisfies domain.EventPublisher. Global events go to the
// global group; everything else to the event's lot room. Sends never
// block: slow subscribers lose events.
func (h *Hub) Publish(_ context.Context, event domain.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if event.Global {
		for sub := range h.global {
			h.send(sub, event)
		}
		return nil
	}
	for sub := range h.rooms[event.LotID] {
		h.send(sub, event)
	}
	return nil
}

func (h *Hub) send(sub *Subscription, event domain.Event) {
	select {
	case sub.ch <- event:
	default:
		h.dropped.Add(1)
		h.logger.Debug("subscriber buffer full, dropping event",
			zap.String("type", string(event.Type)), zap.String("lot_id", event.LotID.String()))
	}
}
