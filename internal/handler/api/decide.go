package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wekabeka1996/aurora/internal/domain/models"
	drepo "github.com/wekabeka1996/aurora/internal/domain/repository"
	"github.com/wekabeka1996/aurora/internal/service/ratelimit"
	"github.com/wekabeka1996/aurora/internal/usecase"
	xhttp "github.com/wekabeka1996/aurora/pkg/http"
	xlogger "github.com/wekabeka1996/aurora/pkg/logger"
)

// DecideHandler exposes the admission-control endpoint and the decision
// audit query.
type DecideHandler struct {
	logger   *xlogger.Logger
	pipeline *usecase.Pipeline
	journal  drepo.Journal
	limiter  *ratelimit.Limiter
	clock    drepo.Clock
}

func NewDecideHandler(logger *xlogger.Logger, pipeline *usecase.Pipeline, journal drepo.Journal, limiter *ratelimit.Limiter, clock drepo.Clock) *DecideHandler {
	if clock == nil {
		clock = drepo.SystemClock{}
	}
	return &DecideHandler{logger: logger, pipeline: pipeline, journal: journal, limiter: limiter, clock: clock}
}

func (h *DecideHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.POST("/decide", h.Decide)
	g.GET("/decisions", h.Decisions)
}

func (h *DecideHandler) Decide(c echo.Context) error {
	req := &models.DecideRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.limiter != nil && !h.limiter.Allow(req.Account) {
		return xhttp.ForbiddenResponse(c, map[string]string{"error": "rate limit exceeded"})
	}

	intent := req.Intent(uuid.NewString(), h.clock.Now())
	snapshot := req.Snapshot
	decision, replayed := h.pipeline.Decide(c.Request().Context(), intent, &snapshot)

	return xhttp.SuccessResponse(c, &models.DecideResponse{Decision: decision, Replayed: replayed})
}

type decisionsQuery struct {
	Symbol string `query:"symbol" validate:"required,min=3,max=32"`
	From   string `query:"from"`
	To     string `query:"to"`
	Limit  int    `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

func (h *DecideHandler) Decisions(c echo.Context) error {
	req := &decisionsQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	now := h.clock.Now()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)

	decisions, err := h.journal.Query(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		h.logger.Error("decision query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, decisions, int64(len(decisions)))
}
