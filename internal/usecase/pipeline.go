package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/pkg/logger"
)

// PipelineConfig tunes the orchestrator itself; per-gate thresholds live in
// each gate's own config.
type PipelineConfig struct {
	SLAMs float64
}

// EventEmitter decouples the pipeline from the sink transport; the buffered
// middleware implements it so gate evaluation never blocks on Kafka.
type EventEmitter interface {
	Emit(event *models.Event)
}

// Pipeline runs an intent through the ordered gate chain and produces the
// terminal decision. The first hard deny short-circuits the remaining gates;
// governance always runs last and can override an allow but never resurrect
// a deny. Duplicate submissions within the idempotency TTL replay the cached
// decision byte for byte.
type Pipeline struct {
	cfg PipelineConfig

	gates      []gates.Gate
	governance *gates.Governance
	health     *gates.HealthGuard
	idem       *IdempotencyStore
	clock      drepo.Clock

	journal drepo.Journal
	metrics drepo.Metrics
	emitter EventEmitter
	log     *logger.Logger
}

// NewPipeline wires the ordered gate chain. ordered must not contain the
// governance gate; it is passed separately because it runs unconditionally.
func NewPipeline(
	cfg PipelineConfig,
	ordered []gates.Gate,
	governance *gates.Governance,
	health *gates.HealthGuard,
	idem *IdempotencyStore,
	clock drepo.Clock,
	journal drepo.Journal,
	metrics drepo.Metrics,
	emitter EventEmitter,
	log *logger.Logger,
) *Pipeline {
	if cfg.SLAMs <= 0 {
		cfg.SLAMs = 500
	}
	if clock == nil {
		clock = drepo.SystemClock{}
	}
	return &Pipeline{
		cfg:        cfg,
		gates:      ordered,
		governance: governance,
		health:     health,
		idem:       idem,
		clock:      clock,
		journal:    journal,
		metrics:    metrics,
		emitter:    emitter,
		log:        log,
	}
}

// Decide evaluates one intent. The bool reports whether the decision was
// replayed from the idempotency cache.
func (p *Pipeline) Decide(ctx context.Context, intent *models.TradeIntent, snapshot *models.MarketSnapshot) (d *models.Decision, replayed bool) {
	if cached := p.idem.Get(intent.IdempotencyKey); cached != nil {
		p.metrics.RecordIdempotencyHit()
		return cached, true
	}

	started := p.clock.Now()
	in := &gates.Input{
		Intent:   intent,
		Snapshot: snapshot,
		Started:  started,
		Scale:    1,
	}

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("pipeline panic, failing closed",
				logger.String("intent_id", intent.ID),
				logger.String("symbol", intent.Symbol),
				logger.Any("panic", r))
			p.metrics.RecordError("pipeline_panic")
			d = p.finish(ctx, in, deniedDecision(intent, models.ReasonPipelineError), started)
			replayed = false
		}
	}()

	var results []models.GateResult
	denied := false

	for _, g := range p.gates {
		gateStart := p.clock.Now()
		res := g.Evaluate(ctx, in)
		p.metrics.RecordGateLatency(g.Name(), p.clock.Now().Sub(gateStart))
		p.emitGateResult(intent, res)
		results = append(results, res)
		if !res.Allow {
			denied = true
			break
		}
	}

	// Wall-clock SLA breach before the terminal check fails closed even when
	// every gate individually passed.
	if !denied {
		elapsed := float64(p.clock.Now().Sub(started).Nanoseconds()) / 1e6
		if elapsed > p.cfg.SLAMs {
			denied = true
			results = append(results, models.Deny("latency", models.ReasonLatencyGuard, "decision sla exceeded"))
		}
	}

	// Governance is the terminal authority: it always runs, its deny is
	// appended after upstream reasons, and it never flips a deny to allow.
	govRes := p.governance.Evaluate(ctx, in)
	p.emitGateResult(intent, govRes)
	if !govRes.Allow {
		results = append(results, govRes)
		denied = true
	}

	decision := p.assemble(intent, in, results, denied)
	return p.finish(ctx, in, decision, started), false
}

func (p *Pipeline) assemble(intent *models.TradeIntent, in *gates.Input, results []models.GateResult, denied bool) *models.Decision {
	d := &models.Decision{
		ID:        uuid.NewString(),
		IntentID:  intent.ID,
		Symbol:    intent.Symbol,
		Account:   intent.Account,
		Mode:      intent.Mode,
		Allow:     !denied,
		CreatedAt: p.clock.Now(),
	}
	for _, res := range results {
		if res.Reason != "" && res.Reason != models.ReasonOK {
			d.Reasons = append(d.Reasons, res.Reason)
		}
	}
	if d.Allow {
		d.MaxQty = in.MaxQty
		d.Route = in.Route
	}
	return d
}

func (p *Pipeline) finish(ctx context.Context, in *gates.Input, d *models.Decision, started time.Time) *models.Decision {
	elapsed := p.clock.Now().Sub(started)
	d.LatencyMs = float64(elapsed.Nanoseconds()) / 1e6
	if d.CreatedAt.IsZero() {
		d.CreatedAt = p.clock.Now()
	}

	p.idem.Put(in.Intent.IdempotencyKey, d)
	p.health.Record(elapsed)
	p.metrics.RecordPipelineLatency(elapsed)
	p.metrics.RecordDecision(d.Symbol, d.Allow, d.PrimaryReason())

	p.emitter.Emit(&models.Event{
		Type:     models.EventPolicyDecision,
		Symbol:   d.Symbol,
		IntentID: d.IntentID,
		Allow:    d.Allow,
		Reason:   d.PrimaryReason(),
		Detail:   in.Snapshot.Regime,
		At:       d.CreatedAt,
	})

	if err := p.journal.Store(ctx, d); err != nil {
		p.log.Error("decision journal write failed",
			logger.String("decision_id", d.ID), logger.Error(err))
		p.metrics.RecordError("journal_store")
	}

	p.log.Debug("decision",
		logger.String("decision_id", d.ID),
		logger.String("symbol", d.Symbol),
		logger.Bool("allow", d.Allow),
		logger.String("reason", d.PrimaryReason()),
		logger.Duration("latency", elapsed))
	return d
}

func (p *Pipeline) emitGateResult(intent *models.TradeIntent, res models.GateResult) {
	eventType := models.EventGateResult
	switch {
	case !res.Allow && res.Reason == models.ReasonTrapBlock:
		eventType = models.EventTrapBlock
	case !res.Allow && isRiskReason(res.Reason):
		eventType = models.EventRiskDeny
	}
	p.emitter.Emit(&models.Event{
		Type:     eventType,
		Symbol:   intent.Symbol,
		IntentID: intent.ID,
		Gate:     res.Gate,
		Allow:    res.Allow,
		Reason:   res.Reason,
		Detail:   res.Detail,
		At:       p.clock.Now(),
	})
}

func isRiskReason(reason string) bool {
	switch reason {
	case models.ReasonRiskDrawdown, models.ReasonRiskCVaR,
		models.ReasonRiskConcurrent, models.ReasonRiskLeverage,
		models.ReasonRiskQtyMin:
		return true
	}
	return false
}

func deniedDecision(intent *models.TradeIntent, reason string) *models.Decision {
	return &models.Decision{
		ID:       uuid.NewString(),
		IntentID: intent.ID,
		Symbol:   intent.Symbol,
		Account:  intent.Account,
		Mode:     intent.Mode,
		Allow:    false,
		Reasons:  []string{reason},
	}
}
