package webmonitor

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dj-oyu/rdk-x5_smart-pet-camera/motion-sentry/internal/logger"
)

// broadcaster fans values out to subscribed clients. Each client has a small
// buffered channel; a slow client misses values instead of blocking others.
type broadcaster[T any] struct {
	name string

	mu      sync.Mutex
	clients map[int]chan T
	nextID  int
	closed  bool
}

func newBroadcaster[T any](name string) *broadcaster[T] {
	return &broadcaster[T]{
		name:    name,
		clients: make(map[int]chan T),
	}
}

// Subscribe adds a new client and returns its channel. After Close the
// returned channel is already closed.
func (b *broadcaster[T]) Subscribe() (int, <-chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan T, 2) // Buffer 2 values to avoid blocking
	if b.closed {
		close(ch)
		return id, ch
	}
	b.clients[id] = ch

	logger.Debug(b.name, "Client #%d subscribed (total clients: %d)", id, len(b.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (b *broadcaster[T]) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
		logger.Debug(b.name, "Client #%d unsubscribed (remaining clients: %d)", id, len(b.clients))
	}
}

// ClientCount returns the number of subscribed clients.
func (b *broadcaster[T]) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Publish sends v to every client that has room for it.
func (b *broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.clients {
		select {
		case ch <- v:
		default:
			// Client too slow, skip this value for this client
		}
	}
}

// Close disconnects every client.
func (b *broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

// FrameBroadcaster fans JPEG preview frames out to MJPEG clients.
type FrameBroadcaster = broadcaster[[]byte]

// NewFrameBroadcaster creates a frame broadcaster.
func NewFrameBroadcaster() *FrameBroadcaster {
	return newBroadcaster[[]byte]("FrameBroadcaster")
}

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // google.protobuf.Struct, base64 encoded for SSE
}

// EventBroadcaster fans serialized SSE events out to clients.
type EventBroadcaster = broadcaster[*SerializedEvent]

// NewEventBroadcaster creates an SSE event broadcaster.
func NewEventBroadcaster(name string) *EventBroadcaster {
	return newBroadcaster[*SerializedEvent](name)
}

// serializeEvent encodes v as JSON and as a base64 protobuf Struct with the
// same fields.
func serializeEvent(v any) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("json marshal: %w", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(jsonData, &fields); err != nil {
		return nil, fmt.Errorf("event is not a JSON object: %w", err)
	}
	pbStruct, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("protobuf struct: %w", err)
	}
	pbData, err := proto.Marshal(pbStruct)
	if err != nil {
		return nil, fmt.Errorf("protobuf marshal: %w", err)
	}

	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: []byte(base64.StdEncoding.EncodeToString(pbData)),
	}, nil
}

// StatusBroadcaster periodically publishes the monitor status.
type StatusBroadcaster struct {
	*EventBroadcaster
	monitor  *Monitor
	interval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewStatusBroadcaster creates a broadcaster for status events.
func NewStatusBroadcaster(monitor *Monitor, interval time.Duration) *StatusBroadcaster {
	return &StatusBroadcaster{
		EventBroadcaster: NewEventBroadcaster("StatusBroadcaster"),
		monitor:          monitor,
		interval:         interval,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
}

// Start begins the status loop.
func (sb *StatusBroadcaster) Start() {
	go sb.run()
}

// Stop halts the loop and disconnects every client.
func (sb *StatusBroadcaster) Stop() {
	sb.stopOnce.Do(func() {
		close(sb.stop)
		<-sb.done
		sb.Close()
	})
}

func (sb *StatusBroadcaster) run() {
	defer close(sb.done)

	logger.Info("StatusBroadcaster", "Starting status event broadcaster (interval=%v)...", sb.interval)
	ticker := time.NewTicker(sb.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sb.stop:
			return
		case <-ticker.C:
			if sb.ClientCount() == 0 {
				continue
			}
			event, err := serializeEvent(sb.monitor.Snapshot())
			if err != nil {
				logger.Error("StatusBroadcaster", "Serialize status: %v", err)
				continue
			}
			sb.Publish(event)
		}
	}
}
