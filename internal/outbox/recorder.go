package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/parkpulse/internal/parking/domain"
)

// Subjecter maps an event to the NATS subject it should eventually be
// published on. The pkg/outbox Publisher satisfies it.
type Subjecter interface {
	SubjectFor(event domain.Event) string
}

// Recorder satisfies domain.EventPublisher by appending events to the
// durable outbox table instead of publishing directly. The Worker picks
// them up, giving per-lot delivery that survives a NATS outage.
type Recorder struct {
	db       *sql.DB
	subjects Subjecter
}

// NewRecorder constructs a Recorder.
func NewRecorder(db *sql.DB, subjects Subjecter) *Recorder {
	return &Recorder{db: db, subjects: subjects}
}

// Publish inserts the event into parking_outbox.
func (r *Recorder) Publish(ctx context.Context, event domain.Event) error {
	if r == nil || r.db == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO parking_outbox (subject, payload, created_at, published) VALUES ($1, $2, $3, false)`,
		r.subjects.SubjectFor(event), payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}
