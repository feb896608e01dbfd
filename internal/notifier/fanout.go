package notifier

import (
	"context"

	"github.com/example/parkpulse/internal/parking/domain"
)

// Fanout publishes each event to every configured publisher. Errors do
// not short-circuit the remaining publishers; the last one wins, matching
// the engine's best-effort delivery contract.
type Fanout []domain.EventPublisher

// Publish satisfies domain.EventPublisher.
func (f Fanout) Publish(ctx context.Context, event domain.Event) error {
	var last error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			last = err
		}
	}
	return last
}
