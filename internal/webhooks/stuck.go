package webhooks

import (
	"context"
	"time"

	"github.com/ariefcatur/go-date-bookings/internal/bookings"
	"github.com/ariefcatur/go-date-bookings/internal/clock"
	"github.com/ariefcatur/go-date-bookings/internal/metrics"
	"go.uber.org/zap"
)

// StuckReporter surfaces ledger entries that never reached PROCESSED:
// captured payments that may still lack a booking.
type StuckReporter struct {
	ledger  bookings.WebhookLedger
	clock   clock.Clock
	after   time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewStuckReporter(ledger bookings.WebhookLedger, clk clock.Clock, after time.Duration, log *zap.Logger, m *metrics.Metrics) *StuckReporter {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &StuckReporter{ledger: ledger, clock: clk, after: after, log: log, metrics: m}
}

// Report counts entries untouched for longer than the threshold and returns
// the counts by status.
func (r *StuckReporter) Report(ctx context.Context) (map[bookings.WebhookStatus]int, error) {
	counts, err := r.ledger.CountPending(ctx, r.clock.Now().Add(-r.after))
	if err != nil {
		return nil, err
	}
	for _, st := range []bookings.WebhookStatus{bookings.WebhookReceived, bookings.WebhookFailed} {
		n := counts[st]
		r.metrics.SetStuckWebhooks(string(st), n)
		if n > 0 {
			r.log.Warn("webhooks awaiting processing", zap.String("status", string(st)), zap.Int("count", n))
		}
	}
	return counts, nil
}

// Run reports every interval until ctx is done.
func (r *StuckReporter) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.Report(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("count pending webhooks", zap.Error(err))
			}
		}
	}
}
