package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/audit"
)

type logsApi struct {
	svc audit.Service
}

func registerLogsAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := logsApi{svc: deps.AuditSvc}

	lg := g.Group("/admin/logs", jwt, adminMiddleware())
	lg.GET("", api.query)
}

func (api *logsApi) query(ctx echo.Context) error {
	var params audit.QueryParams
	if err := ctx.Bind(&params); err != nil {
		return errors.Wrap(err, "binding to QueryParams")
	}

	envelope, err := api.svc.Query(ctx.Request().Context(), params)
	if err != nil {
		return err
	}

	// admin log views must always reflect the store
	ctx.Response().Header().Set("Cache-Control", "no-store")
	return ctx.JSON(http.StatusOK, envelope)
}
