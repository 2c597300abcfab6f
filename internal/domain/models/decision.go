package models

import "time"

// Reason codes carried by gate results and decisions. Every deny carries
// exactly one primary reason plus zero or more governance-appended codes.
const (
	ReasonLatencyGuard   = "latency_guard"
	ReasonHealthCoolOff  = "health_cooloff"
	ReasonHealthHalt     = "health_halt"
	ReasonTrapBlock      = "trap_block"
	ReasonTrapWarmingUp  = "trap_warming_up"
	ReasonTrapCoolOff    = "trap_cooloff"
	ReasonExpectedReturn = "expected_return_gate"
	ReasonSlippageGuard  = "slippage_guard"
	ReasonSPRTReject     = "sprt_reject"
	ReasonSPRTContinue   = "sprt_continue"
	ReasonSPRTAccept     = "sprt_accept"
	ReasonRiskDrawdown   = "risk_drawdown"
	ReasonRiskCVaR       = "risk_cvar"
	ReasonRiskConcurrent = "risk_concurrency"
	ReasonRiskLeverage   = "risk_leverage"
	ReasonRiskQtyMin     = "risk_qty_min"
	ReasonRiskScaled     = "risk_scaled"
	ReasonSpreadGuard    = "spread_guard"
	ReasonNoRoute        = "no_attractive_route"
	ReasonGovOverride    = "governance_override"
	ReasonKillSwitch     = "kill_switch"
	ReasonDataQuality    = "data_quality"
	ReasonPositionLimit  = "position_limit"
	ReasonPipelineError  = "pipeline_error"
	ReasonOK             = "ok"
)

// Event type codes emitted to the sink; stable across releases.
const (
	EventPolicyDecision   = "POLICY_DECISION"
	EventGateResult       = "GATE_RESULT"
	EventTrapBlock        = "TRAP_BLOCK"
	EventRiskDeny         = "RISK_DENY"
	EventHealthEscalation = "HEALTH_ESCALATION"
	EventKillSwitchTrip   = "KILL_SWITCH_TRIP"
	EventOpsCommand       = "OPS_COMMAND"
)

// GateResult is the outcome of one gate evaluation. Immutable once created.
type GateResult struct {
	Gate   string  `json:"gate"`
	Allow  bool    `json:"allow"`
	Hard   bool    `json:"hard"`
	Reason string  `json:"reason"`
	Scale  float64 `json:"scale"`
	Detail string  `json:"detail,omitempty"`
}

// Pass returns an allowing result with no quantity adjustment.
func Pass(gate string) GateResult {
	return GateResult{Gate: gate, Allow: true, Reason: ReasonOK, Scale: 1}
}

// PassWith returns an allowing result carrying an advisory reason, e.g. a
// warming-up TRAP window or a non-terminal SPRT verdict.
func PassWith(gate, reason, detail string) GateResult {
	return GateResult{Gate: gate, Allow: true, Reason: reason, Scale: 1, Detail: detail}
}

// Deny returns a hard deny. Later gates are skipped except governance.
func Deny(gate, reason, detail string) GateResult {
	return GateResult{Gate: gate, Allow: false, Hard: true, Reason: reason, Detail: detail}
}

// ScaleDown returns an allowing result that reduces quantity.
func ScaleDown(gate string, scale float64, detail string) GateResult {
	return GateResult{Gate: gate, Allow: true, Reason: ReasonRiskScaled, Scale: scale, Detail: detail}
}

// Execution routes.
const (
	RouteMaker = "maker"
	RouteTaker = "taker"
)

// RouteDecision is the maker/taker choice for an accepted intent.
type RouteDecision struct {
	Route         string  `json:"route"`
	MakerNetBps   float64 `json:"maker_net_bps"`
	TakerNetBps   float64 `json:"taker_net_bps"`
	PFill         float64 `json:"p_fill"`
	Justification string  `json:"justification"`
}

// Decision is the terminal output of the pipeline. Immutable once returned;
// duplicate submissions within the idempotency TTL receive the same value.
type Decision struct {
	ID        string         `json:"id"`
	IntentID  string         `json:"intent_id"`
	Symbol    string         `json:"symbol"`
	Account   string         `json:"account"`
	Mode      Mode           `json:"mode"`
	Allow     bool           `json:"allow"`
	MaxQty    float64        `json:"max_qty"`
	Reasons   []string       `json:"reasons"`
	Route     *RouteDecision `json:"route,omitempty"`
	LatencyMs float64        `json:"latency_ms"`
	CreatedAt time.Time      `json:"created_at"`
}

// PrimaryReason returns the first reason code, or ok for a clean allow.
func (d *Decision) PrimaryReason() string {
	if len(d.Reasons) == 0 {
		return ReasonOK
	}
	return d.Reasons[0]
}

// Event is one structured record handed to the external sink: one per gate
// evaluation and one per final decision.
type Event struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Symbol   string    `json:"symbol"`
	IntentID string    `json:"intent_id,omitempty"`
	Gate     string    `json:"gate,omitempty"`
	Allow    bool      `json:"allow"`
	Reason   string    `json:"reason,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	At       time.Time `json:"at"`
}
