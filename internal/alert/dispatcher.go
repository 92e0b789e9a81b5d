package alert

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/metrics"
	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/pkg/types"
)

// ErrQueueFull is reported when the dispatcher drops an alert.
var ErrQueueFull = errors.New("alert queue full")

// Dispatcher delivers alerts on a single background worker through a bounded
// queue. At most size+1 alerts are in flight; further alerts are dropped.
type Dispatcher struct {
	notifier Notifier
	metrics  *metrics.Metrics
	timeout  time.Duration

	mu     sync.Mutex
	queue  chan types.AlertEvent
	closed bool
	wg     sync.WaitGroup

	// OnDrop is called for every dropped alert (tests, diagnostics).
	OnDrop func(event types.AlertEvent, err error)
}

// NewDispatcher starts a dispatcher with a queue of size entries.
func NewDispatcher(n Notifier, m *metrics.Metrics, size int, timeout time.Duration) *Dispatcher {
	if size < 1 {
		size = 1
	}
	d := &Dispatcher{
		notifier: n,
		metrics:  m,
		timeout:  timeout,
		queue:    make(chan types.AlertEvent, size),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Submit enqueues event without blocking. Dropped events are closed.
func (d *Dispatcher) Submit(_ context.Context, event types.AlertEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.drop(event, errors.New("dispatcher closed"))
		return
	}

	select {
	case d.queue <- event:
	default:
		d.drop(event, ErrQueueFull)
	}
}

func (d *Dispatcher) drop(event types.AlertEvent, err error) {
	if d.metrics != nil {
		d.metrics.AlertsDropped.Add(1)
	}
	log.Warn("Dropping alert %s: %v", event.ID, err)
	if d.OnDrop != nil {
		d.OnDrop(event, err)
	}
	event.Close()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for event := range d.queue {
		deliver(context.Background(), d.notifier, d.metrics, d.timeout, event)
	}
}

// Pending returns the number of queued alerts.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting alerts and waits for queued ones to be delivered.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}
