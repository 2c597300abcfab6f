package api

import (
	"github.com/labstack/echo/v4"
)

// Router registers all API route groups on one Echo instance.
type Router struct {
	decide *DecideHandler
	ops    *OpsHandler
}

func NewRouter(decide *DecideHandler, ops *OpsHandler) *Router {
	return &Router{decide: decide, ops: ops}
}

func (r *Router) RegisterRoutes(e *echo.Echo) {
	r.decide.RegisterRoutes(e)
	r.ops.RegisterRoutes(e)
}
