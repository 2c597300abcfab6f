package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
)

type captureSink struct {
	mu       sync.Mutex
	events   []*models.Event
	failures int
}

func (s *captureSink) Emit(ctx context.Context, e *models.Event) error {
	return s.EmitBatch(ctx, []*models.Event{e})
}

func (s *captureSink) EmitBatch(_ context.Context, evs []*models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return context.DeadlineExceeded
	}
	s.events = append(s.events, evs...)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type countMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountMetrics() *countMetrics { return &countMetrics{errors: make(map[string]int)} }

func (m *countMetrics) RecordDecision(string, bool, string)      {}
func (m *countMetrics) RecordGateLatency(string, time.Duration)  {}
func (m *countMetrics) RecordPipelineLatency(time.Duration)      {}
func (m *countMetrics) RecordHealthState(int)                    {}
func (m *countMetrics) RecordRisk(string, float64, float64, int) {}
func (m *countMetrics) RecordIdempotencyHit()                    {}
func (m *countMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func TestEventBufferFlushesBatches(t *testing.T) {
	sink := &captureSink{}
	b := NewEventBuffer(sink, newCountMetrics(),
		WithBatchSize(2),
		WithFlushInterval(10*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	for i := 0; i < 5; i++ {
		b.Emit(&models.Event{Type: models.EventGateResult, Symbol: "BTCUSDT"})
	}

	require.Eventually(t, func() bool { return sink.count() == 5 }, 2*time.Second, 10*time.Millisecond)
}

func TestEventBufferStampsIDAndTime(t *testing.T) {
	sink := &captureSink{}
	b := NewEventBuffer(sink, newCountMetrics(), WithFlushInterval(10*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	e := &models.Event{Type: models.EventPolicyDecision, Symbol: "BTCUSDT"}
	b.Emit(e)

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.At.IsZero())
}

func TestEventBufferDropsWhenFull(t *testing.T) {
	sink := &captureSink{}
	m := newCountMetrics()
	b := NewEventBuffer(sink, m, WithEventBufferSize(1))
	// Not started: the queue fills and stays full.
	b.Emit(&models.Event{Type: models.EventGateResult})
	b.Emit(&models.Event{Type: models.EventGateResult})

	assert.Equal(t, 1, m.errCount("event_buffer_full"))
}

func TestEventBufferRetriesAfterSinkFailure(t *testing.T) {
	sink := &captureSink{failures: 1}
	m := newCountMetrics()
	b := NewEventBuffer(sink, m,
		WithBatchSize(4),
		WithFlushInterval(10*time.Millisecond),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.Start(ctx)
	defer b.Stop()

	b.Emit(&models.Event{Type: models.EventGateResult, Symbol: "BTCUSDT"})

	require.Eventually(t, func() bool { return sink.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, m.errCount("event_flush"), 1)
}
