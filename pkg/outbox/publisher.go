package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/parkpulse/internal/parking/domain"
)

// Publisher writes parking events to NATS. Lot-scoped events go to
// parking.lot.<id>; global lot-lifecycle events go to parking.lots so a
// dashboard can watch the whole fleet on one subject.
type Publisher struct {
	conn          *nats.Conn
	lotPrefix     string
	globalSubject string
}

// NewPublisher builds a Publisher using the provided NATS connection.
func NewPublisher(conn *nats.Conn, lotPrefix, globalSubject string) *Publisher {
	if lotPrefix == "" {
		lotPrefix = "parking.lot."
	}
	if globalSubject == "" {
		globalSubject = "parking.lots"
	}
	return &Publisher{conn: conn, lotPrefix: lotPrefix, globalSubject: globalSubject}
}

// SubjectFor returns the NATS subject an event is published on.
func (p *Publisher) SubjectFor(event domain.Event) string {
	if event.Global {
		return p.globalSubject
	}
	return p.lotPrefix + event.LotID.String()
}

// Publish satisfies domain.EventPublisher.
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	if p == nil || p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return p.conn.PublishMsg(&nats.Msg{Subject: p.SubjectFor(event), Data: payload, Header: map[string][]string{
		"x-trace-id":   {traceIDFromContext(ctx)},
		"x-event-type": {string(event.Type)},
	}})
}

func traceIDFromContext(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	sc := span.SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

// Worker pulls events from a durable outbox and republishes them. Loader
// and Marker abstract the storage so tests can run without a database.
type Worker struct {
	Loader    func(ctx context.Context) ([]domain.Event, error)
	Marker    func(ctx context.Context, events []domain.Event) error
	Publisher domain.EventPublisher
}

// Run executes the worker loop once.
func (w *Worker) Run(ctx context.Context) error {
	events, err := w.Loader(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}
	for _, evt := range events {
		if err := w.Publisher.Publish(ctx, evt); err != nil {
			return err
		}
	}
	if err := w.Marker(ctx, events); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
