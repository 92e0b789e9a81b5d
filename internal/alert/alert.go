// Package alert delivers motion alerts.
//
// Delivery is best effort: failures are logged and counted, never retried and
// never propagated to the detection loop.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/logger"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

var log = logger.For("Alert")

// waitBudget returns how long a blocking call may wait under ctx. It falls
// back to def when ctx has no deadline and fails once ctx is done.
func waitBudget(ctx context.Context, def time.Duration) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return def, nil
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return 0, context.DeadlineExceeded
	}
	return remaining, nil
}

// Notifier delivers one alert. It must not retain event.Frame after returning.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event types.AlertEvent) error
}

// Sink accepts alerts from the detection loop and takes ownership of the
// event, including closing its frame.
type Sink interface {
	Submit(ctx context.Context, event types.AlertEvent)
}

// Log writes alerts to the log only.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Notify(_ context.Context, event types.AlertEvent) error {
	envelope := "none"
	if event.HasEnvelope {
		envelope = event.Envelope.String()
	}
	log.Info("Motion alert %s at %s (motion pixels=%d, envelope=%s)",
		event.ID, event.Timestamp.Format(time.RFC3339), event.MotionArea, envelope)
	return nil
}

// Multi delivers to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Name() string { return "multi" }

func (m Multi) Notify(ctx context.Context, event types.AlertEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// deliver runs one notification with an optional timeout, records the
// outcome and releases the event.
func deliver(ctx context.Context, n Notifier, m *metrics.Metrics, timeout time.Duration, event types.AlertEvent) {
	defer event.Close()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	if err := n.Notify(ctx, event); err != nil {
		if m != nil {
			m.AlertsFailed.Add(1)
		}
		log.Error("Delivery of alert %s failed after %s: %v", event.ID, time.Since(start).Round(time.Millisecond), err)
		return
	}

	if m != nil {
		m.AlertsDelivered.Add(1)
	}
	log.Debug("Alert %s delivered via %s in %s", event.ID, n.Name(), time.Since(start).Round(time.Millisecond))
}

// Sync delivers alerts inline. A slow notifier blocks the calling tick,
// which throttles the detection rate instead of queueing alerts.
type Sync struct {
	notifier Notifier
	metrics  *metrics.Metrics
	timeout  time.Duration
}

// NewSync returns a synchronous sink.
func NewSync(n Notifier, m *metrics.Metrics, timeout time.Duration) *Sync {
	return &Sync{notifier: n, metrics: m, timeout: timeout}
}

// Submit delivers event before returning.
func (s *Sync) Submit(ctx context.Context, event types.AlertEvent) {
	deliver(ctx, s.notifier, s.metrics, s.timeout, event)
}
