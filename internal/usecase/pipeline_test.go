package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/pkg/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memJournal struct {
	mu     sync.Mutex
	stored []*models.Decision
}

func (j *memJournal) Store(_ context.Context, d *models.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stored = append(j.stored, d)
	return nil
}

func (j *memJournal) StoreBatch(_ context.Context, ds []*models.Decision) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stored = append(j.stored, ds...)
	return nil
}

func (j *memJournal) Query(context.Context, string, time.Time, time.Time, int) ([]*models.Decision, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stored, nil
}

func (j *memJournal) Health(context.Context) error { return nil }
func (j *memJournal) Close() error                 { return nil }

type fakeMetrics struct {
	mu       sync.Mutex
	hits     int
	errors   []string
	outcomes []string
}

func (m *fakeMetrics) RecordDecision(_ string, _ bool, reason string) {
	m.mu.Lock()
	m.outcomes = append(m.outcomes, reason)
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordGateLatency(string, time.Duration) {}
func (m *fakeMetrics) RecordPipelineLatency(time.Duration)     {}
func (m *fakeMetrics) RecordHealthState(int)                   {}
func (m *fakeMetrics) RecordRisk(string, float64, float64, int) {
}
func (m *fakeMetrics) RecordIdempotencyHit() {
	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors = append(m.errors, kind)
	m.mu.Unlock()
}

type captureEmitter struct {
	mu     sync.Mutex
	events []*models.Event
}

func (e *captureEmitter) Emit(ev *models.Event) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *captureEmitter) byType(typ string) []*models.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*models.Event
	for _, ev := range e.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

// stubGate passes or denies on demand and counts invocations.
type stubGate struct {
	name   string
	calls  int
	result models.GateResult
	onEval func(in *gates.Input)
}

func (g *stubGate) Name() string { return g.name }

func (g *stubGate) Evaluate(_ context.Context, in *gates.Input) models.GateResult {
	g.calls++
	if g.onEval != nil {
		g.onEval(in)
	}
	return g.result
}

type pipelineFixture struct {
	clock    *fakeClock
	journal  *memJournal
	metrics  *fakeMetrics
	emitter  *captureEmitter
	pipeline *Pipeline
}

func newPipelineFixture(t *testing.T, ordered []gates.Gate, govCfg gates.GovernanceConfig) *pipelineFixture {
	t.Helper()

	clock := newFakeClock()
	journal := &memJournal{}
	metrics := &fakeMetrics{}
	emitter := &captureEmitter{}

	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	health := gates.NewHealthGuard(gates.HealthConfig{
		WarnP95Ms:      10_000,
		HaltP95Ms:      60_000,
		WarnPersist:    time.Minute,
		CoolOffDur:     time.Minute,
		RecoveryWindow: time.Minute,
	}, clock)

	p := NewPipeline(
		PipelineConfig{SLAMs: 500},
		ordered,
		gates.NewGovernance(govCfg, clock),
		health,
		NewIdempotencyStore(5*time.Minute, clock),
		clock,
		journal,
		metrics,
		emitter,
		log,
	)
	return &pipelineFixture{clock: clock, journal: journal, metrics: metrics, emitter: emitter, pipeline: p}
}

func testIntent(key string) *models.TradeIntent {
	return &models.TradeIntent{
		ID:             "intent-1",
		IdempotencyKey: key,
		Symbol:         "BTCUSDT",
		Side:           models.SideBuy,
		Qty:            1,
		Price:          50_000,
		Account:        "acct",
		Mode:           models.ModeShadow,
	}
}

func freshSnapshot(clock *fakeClock) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		Symbol:    "BTCUSDT",
		LatencyMs: 50,
		Regime:    "trend",
		Timestamp: clock.Now(),
	}
}

func TestPipelineAllowCarriesQtyAndRoute(t *testing.T) {
	sizing := &stubGate{name: "sizing", result: models.Pass("sizing"), onEval: func(in *gates.Input) {
		in.MaxQty = 0.5
		in.Route = &models.RouteDecision{Route: models.RouteMaker}
	}}
	f := newPipelineFixture(t, []gates.Gate{sizing}, gates.GovernanceConfig{})

	d, replayed := f.pipeline.Decide(context.Background(), testIntent("key-allow"), freshSnapshot(f.clock))
	require.False(t, replayed)
	require.True(t, d.Allow)
	assert.InDelta(t, 0.5, d.MaxQty, 1e-9)
	require.NotNil(t, d.Route)
	assert.Equal(t, models.RouteMaker, d.Route.Route)
	assert.NotEmpty(t, d.ID)

	require.Len(t, f.journal.stored, 1)
	assert.Same(t, d, f.journal.stored[0])

	decisions := f.emitter.byType(models.EventPolicyDecision)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].Allow)
	// The decision event carries the snapshot's regime tag for analytics.
	assert.Equal(t, "trend", decisions[0].Detail)
}

func TestPipelineDenyShortCircuitsLaterGates(t *testing.T) {
	latency := gates.NewLatencyGuard(500)
	downstream := &stubGate{name: "downstream", result: models.Pass("downstream")}
	f := newPipelineFixture(t, []gates.Gate{latency, downstream}, gates.GovernanceConfig{})

	snap := freshSnapshot(f.clock)
	snap.LatencyMs = 600
	d, _ := f.pipeline.Decide(context.Background(), testIntent("key-slow"), snap)

	require.False(t, d.Allow)
	require.NotEmpty(t, d.Reasons)
	assert.Equal(t, models.ReasonLatencyGuard, d.Reasons[0])
	assert.Zero(t, downstream.calls, "gates after a hard deny must not run")
	assert.Zero(t, d.MaxQty)
	assert.Nil(t, d.Route)
}

func TestPipelineWallClockSLAFailsClosed(t *testing.T) {
	slow := &stubGate{name: "slow", result: models.Pass("slow")}
	f := newPipelineFixture(t, []gates.Gate{slow}, gates.GovernanceConfig{})
	slow.onEval = func(*gates.Input) { f.clock.Advance(600 * time.Millisecond) }

	snap := freshSnapshot(f.clock)
	d, _ := f.pipeline.Decide(context.Background(), testIntent("key-sla"), snap)

	require.False(t, d.Allow)
	assert.Contains(t, d.Reasons, models.ReasonLatencyGuard)
	assert.InDelta(t, 600, d.LatencyMs, 1)
}

func TestPipelineGovernanceOverridesAllow(t *testing.T) {
	pass := &stubGate{name: "pass", result: models.Pass("pass")}
	f := newPipelineFixture(t, []gates.Gate{pass}, gates.GovernanceConfig{SpreadBpsLimit: 80})

	snap := freshSnapshot(f.clock)
	snap.SpreadBps = 120
	d, _ := f.pipeline.Decide(context.Background(), testIntent("key-gov"), snap)

	require.False(t, d.Allow)
	require.NotEmpty(t, d.Reasons)
	assert.Equal(t, models.ReasonGovOverride, d.Reasons[len(d.Reasons)-1])
	assert.Equal(t, 1, pass.calls, "governance runs after, not instead of, the chain")
}

func TestPipelineGovernanceNeverResurrectsDeny(t *testing.T) {
	deny := &stubGate{name: "deny", result: models.Deny("deny", models.ReasonTrapBlock, "")}
	// Governance with no limits configured approves everything fresh.
	f := newPipelineFixture(t, []gates.Gate{deny}, gates.GovernanceConfig{})

	d, _ := f.pipeline.Decide(context.Background(), testIntent("key-deny"), freshSnapshot(f.clock))
	require.False(t, d.Allow)
	assert.Equal(t, models.ReasonTrapBlock, d.PrimaryReason())
}

func TestPipelineReplaysIdenticalDecision(t *testing.T) {
	gate := &stubGate{name: "pass", result: models.Pass("pass")}
	f := newPipelineFixture(t, []gates.Gate{gate}, gates.GovernanceConfig{})

	snap := freshSnapshot(f.clock)
	first, replayed := f.pipeline.Decide(context.Background(), testIntent("key-dup"), snap)
	require.False(t, replayed)

	second, replayed := f.pipeline.Decide(context.Background(), testIntent("key-dup"), snap)
	require.True(t, replayed)
	assert.Same(t, first, second)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	assert.Equal(t, 1, gate.calls, "replay must not re-run the gates")
	assert.Equal(t, 1, f.metrics.hits)
	assert.Len(t, f.journal.stored, 1)
}

func TestPipelinePanicFailsClosed(t *testing.T) {
	boom := &stubGate{name: "boom", onEval: func(*gates.Input) { panic("gate exploded") }}
	f := newPipelineFixture(t, []gates.Gate{boom}, gates.GovernanceConfig{})

	d, replayed := f.pipeline.Decide(context.Background(), testIntent("key-panic"), freshSnapshot(f.clock))
	require.NotNil(t, d)
	require.False(t, replayed)
	require.False(t, d.Allow)
	assert.Equal(t, models.ReasonPipelineError, d.PrimaryReason())
	assert.False(t, d.CreatedAt.IsZero())
	assert.Contains(t, f.metrics.errors, "pipeline_panic")
	assert.Len(t, f.journal.stored, 1)
}

func TestPipelineEmitsGateEvents(t *testing.T) {
	deny := &stubGate{name: "trap", result: models.Deny("trap", models.ReasonTrapBlock, "spoof spike")}
	f := newPipelineFixture(t, []gates.Gate{deny}, gates.GovernanceConfig{})

	f.pipeline.Decide(context.Background(), testIntent("key-evt"), freshSnapshot(f.clock))

	traps := f.emitter.byType(models.EventTrapBlock)
	require.Len(t, traps, 1)
	assert.Equal(t, "trap", traps[0].Gate)
	assert.Equal(t, models.ReasonTrapBlock, traps[0].Reason)
}
