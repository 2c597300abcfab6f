package middleware

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
)

// EventBuffer sits between the decision pipeline and the event sink. Emit is
// non-blocking: events are stamped with a ULID, queued, and flushed in
// batches by a background worker with backoff, so gate evaluation never
// waits on the broker. A full queue drops the oldest semantics in favor of
// dropping the new event and counting it.
type EventBuffer struct {
	sink    drepo.EventSink
	metrics drepo.Metrics

	batchSize int
	flushTick time.Duration

	ch      chan *models.Event
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex

	entropy *ulidEntropy
}

type EventBufferOption func(*EventBuffer)

// WithEventBufferSize sets the queue capacity.
func WithEventBufferSize(n int) EventBufferOption {
	return func(b *EventBuffer) {
		if n > 0 {
			b.ch = make(chan *models.Event, n)
		}
	}
}

// WithBatchSize sets the max events per sink write.
func WithBatchSize(n int) EventBufferOption {
	return func(b *EventBuffer) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithFlushInterval sets how long a partial batch may wait.
func WithFlushInterval(d time.Duration) EventBufferOption {
	return func(b *EventBuffer) {
		if d > 0 {
			b.flushTick = d
		}
	}
}

func NewEventBuffer(sink drepo.EventSink, metrics drepo.Metrics, opts ...EventBufferOption) *EventBuffer {
	b := &EventBuffer{
		sink:      sink,
		metrics:   metrics,
		batchSize: 64,
		flushTick: 200 * time.Millisecond,
		ch:        make(chan *models.Event, 4096),
		stopCh:    make(chan struct{}),
		entropy:   newULIDEntropy(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Emit stamps and queues one event. Never blocks; a full queue counts a drop.
func (b *EventBuffer) Emit(event *models.Event) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = b.entropy.newID()
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case b.ch <- event:
	default:
		b.metrics.RecordError("event_buffer_full")
	}
}

// Start launches the background flusher.
func (b *EventBuffer) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.run(ctx)
}

// Stop signals the flusher to drain and exit.
func (b *EventBuffer) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	b.started = false
	b.mu.Unlock()
	close(b.stopCh)
}

func (b *EventBuffer) run(ctx context.Context) {
	ticker := time.NewTicker(b.flushTick)
	defer ticker.Stop()

	batch := make([]*models.Event, 0, b.batchSize)
	backoff := 50 * time.Millisecond

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := b.sink.EmitBatch(ctx, batch); err != nil {
			if backoff < 2*time.Second {
				backoff *= 2
			}
			b.metrics.RecordError("event_flush")
			time.Sleep(backoff)
			// Requeue what fits; count the rest as dropped.
			for _, e := range batch {
				select {
				case b.ch <- e:
				default:
					b.metrics.RecordError("event_drop")
				}
			}
		} else {
			backoff = 50 * time.Millisecond
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-b.stopCh:
			flush()
			return
		case <-ctx.Done():
			flush()
			return
		case e := <-b.ch:
			batch = append(batch, e)
			if len(batch) >= b.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// ulidEntropy is a locked monotonic entropy source for event IDs.
type ulidEntropy struct {
	mu  sync.Mutex
	src *ulid.MonotonicEntropy
}

func newULIDEntropy() *ulidEntropy {
	seed := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ulidEntropy{src: ulid.Monotonic(seed, 0)}
}

func (e *ulidEntropy) newID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), e.src).String()
}
