package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
	"github.com/wekabeka1996/aurora/internal/service/riskstore"
	"github.com/wekabeka1996/aurora/internal/services/gates"
	"github.com/wekabeka1996/aurora/internal/usecase"
	xhttp "github.com/wekabeka1996/aurora/pkg/http"
	xlogger "github.com/wekabeka1996/aurora/pkg/logger"
)

// OpsHandler exposes the operator surface: health escalation overrides, the
// kill-switch reset, live risk limit updates, and sequential test resets.
type OpsHandler struct {
	logger     *xlogger.Logger
	health     *gates.HealthGuard
	governance *gates.Governance
	risk       *gates.RiskManager
	sprt       *gates.SPRT
	trap       *gates.TrapDetector
	limits     *riskstore.Store
	journal    drepo.Journal
	emitter    usecase.EventEmitter
}

func NewOpsHandler(
	logger *xlogger.Logger,
	health *gates.HealthGuard,
	governance *gates.Governance,
	risk *gates.RiskManager,
	sprt *gates.SPRT,
	trap *gates.TrapDetector,
	limits *riskstore.Store,
	journal drepo.Journal,
	emitter usecase.EventEmitter,
) *OpsHandler {
	return &OpsHandler{
		logger:     logger,
		health:     health,
		governance: governance,
		risk:       risk,
		sprt:       sprt,
		trap:       trap,
		limits:     limits,
		journal:    journal,
		emitter:    emitter,
	}
}

func (h *OpsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/ops")
	g.GET("/health", h.Health)
	g.POST("/cooloff", h.CoolOff)
	g.POST("/reset", h.Reset)
	g.POST("/arm", h.Arm)
	g.POST("/disarm", h.Disarm)
	g.POST("/killswitch/reset", h.KillSwitchReset)
	g.GET("/limits", h.Limits)
	g.PUT("/limits", h.UpdateLimits)
	g.GET("/risk/:account", h.RiskSnapshot)
	g.POST("/sprt/reset", h.SPRTReset)
	g.GET("/trap/:symbol", h.TrapStatus)
}

func (h *OpsHandler) TrapStatus(c echo.Context) error {
	symbol := c.Param("symbol")
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"symbol":      symbol,
		"cooling_off": h.trap.CoolingOff(symbol),
	})
}

// Health reports the guard state and the journal backend reachability.
func (h *OpsHandler) Health(c echo.Context) error {
	journalOK := true
	if err := h.journal.Health(c.Request().Context()); err != nil {
		journalOK = false
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"health":          h.health.Snapshot(),
		"kill_switch":     h.governance.KillSwitchOpen(),
		"journal_healthy": journalOK,
	})
}

func (h *OpsHandler) CoolOff(c echo.Context) error {
	req := &models.CoolOffRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	d := time.Duration(req.Seconds) * time.Second
	h.health.CoolOff(d)
	h.opsEvent("cooloff", d.String())
	return xhttp.SuccessResponse(c, h.health.Snapshot())
}

func (h *OpsHandler) Reset(c echo.Context) error {
	h.health.Reset()
	h.opsEvent("reset", "")
	return xhttp.SuccessResponse(c, h.health.Snapshot())
}

func (h *OpsHandler) Arm(c echo.Context) error {
	h.health.Arm()
	h.opsEvent("arm", "")
	return xhttp.SuccessResponse(c, h.health.Snapshot())
}

func (h *OpsHandler) Disarm(c echo.Context) error {
	h.health.Disarm()
	h.opsEvent("disarm", "")
	return xhttp.SuccessResponse(c, h.health.Snapshot())
}

func (h *OpsHandler) KillSwitchReset(c echo.Context) error {
	h.governance.ResetKillSwitch()
	h.opsEvent("killswitch_reset", "")
	h.logger.Warn("kill switch reset by operator")
	return xhttp.SuccessResponse(c, map[string]bool{"kill_switch": h.governance.KillSwitchOpen()})
}

func (h *OpsHandler) Limits(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.risk.Limits())
}

func (h *OpsHandler) UpdateLimits(c echo.Context) error {
	req := &models.RiskLimitsUpdate{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	updated := h.risk.UpdateLimits(req)
	if h.limits != nil {
		if err := h.limits.Save(c.Request().Context(), updated); err != nil {
			h.logger.Error("risk limit persistence failed", xlogger.Error(err))
		}
	}
	h.opsEvent("limits_update", "")
	return xhttp.SuccessResponse(c, updated)
}

func (h *OpsHandler) RiskSnapshot(c echo.Context) error {
	account := c.Param("account")
	if account == "" {
		return xhttp.BadRequestResponse(c, map[string]string{"error": "account is required"})
	}
	return xhttp.SuccessResponse(c, h.risk.Snapshot(account))
}

type sprtResetRequest struct {
	Key string `json:"key"`
}

func (h *OpsHandler) SPRTReset(c echo.Context) error {
	req := &sprtResetRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.sprt.Reset(req.Key)
	h.opsEvent("sprt_reset", req.Key)
	return xhttp.NoContentResponse(c)
}

func (h *OpsHandler) opsEvent(command, detail string) {
	if h.emitter == nil {
		return
	}
	h.emitter.Emit(&models.Event{
		Type:   models.EventOpsCommand,
		Reason: command,
		Detail: detail,
	})
}
