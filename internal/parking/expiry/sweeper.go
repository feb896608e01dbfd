package expiry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/example/parkpulse/internal/parking/domain"
)

// Expirer is the slice of the booking service the sweeper needs.
type Expirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error)
}

// Sweeper drives the expired transition that the data model allows but
// no request path triggers: reserved bookings whose expected end has
// elapsed. Scheduling is external (a cron entry in main).
type Sweeper struct {
	svc    Expirer
	clock  domain.Clock
	logger *zap.Logger
	tracer trace.Tracer
}

// NewSweeper constructs a Sweeper.
func NewSweeper(svc Expirer, clock domain.Clock, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		svc:    svc,
		clock:  clock,
		logger: logger,
		tracer: otel.Tracer("parking.expiry.sweeper"),
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "expiry.sweep")
	defer span.End()

	expired, err := s.svc.ExpireOverdue(ctx, s.clock.Now())
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}
	if len(expired) > 0 {
		s.logger.Info("expired overdue reservations", zap.Int("count", len(expired)))
	}
}
