package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/schoolyear"
)

type schoolYearApi struct {
	svc      schoolyear.Service
	validate *validator.Validate

	// mockable reference instant for status derivation
	nowFunc func() time.Time
}

func registerSchoolYearAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := schoolYearApi{
		svc:      deps.YearSvc,
		validate: deps.Validate,
		nowFunc:  time.Now,
	}

	yg := g.Group("/admin/school-years", jwt, adminMiddleware(), recorderMiddleware(deps.Recorder, "school-years"))
	yg.GET("", api.list)
	yg.GET("/current", api.current)
	yg.POST("", api.create)

	dg := yg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.POST("/periods", api.addPeriod)
	dg.DELETE("/periods/:periodID", api.removePeriod)
}

func (api *schoolYearApi) list(ctx echo.Context) error {
	years, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing school years")
	}
	if years == nil {
		years = []schoolyear.YearView{}
	}
	return ctx.JSON(http.StatusOK, years)
}

func (api *schoolYearApi) retrieve(ctx echo.Context) error {
	year, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == schoolyear.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding school year by ID")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *schoolYearApi) current(ctx echo.Context) error {
	year, err := api.svc.Current(ctx.Request().Context(), api.nowFunc())
	if err != nil {
		if errors.Cause(err) == schoolyear.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding current school year")
	}
	return ctx.JSON(http.StatusOK, year)
}

func (api *schoolYearApi) create(ctx echo.Context) error {
	var data schoolyear.NewSchoolYear
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchoolYear")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	year, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating school year")
	}

	getRecorder(ctx).Info(ctx.Request().Context(), "school year created",
		map[string]interface{}{"school_year_id": year.ID, "label": year.Label})
	return ctx.JSON(http.StatusCreated, year)
}

func (api *schoolYearApi) addPeriod(ctx echo.Context) error {
	var data schoolyear.NewEvaluationPeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEvaluationPeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	year, err := api.svc.AddPeriod(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == schoolyear.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "adding evaluation period")
	}

	getRecorder(ctx).Info(ctx.Request().Context(), "evaluation period added",
		map[string]interface{}{"school_year_id": year.ID, "label": data.Label})
	return ctx.JSON(http.StatusCreated, year)
}

func (api *schoolYearApi) removePeriod(ctx echo.Context) error {
	year, err := api.svc.RemovePeriod(ctx.Request().Context(), ctx.Param("id"), ctx.Param("periodID"))
	if err != nil {
		switch errors.Cause(err) {
		case schoolyear.ErrNotFound, schoolyear.ErrPeriodNotFound:
			return errHttpNotFound
		}
		return errors.Wrap(err, "removing evaluation period")
	}

	getRecorder(ctx).Warn(ctx.Request().Context(), "evaluation period removed",
		map[string]interface{}{"school_year_id": year.ID, "period_id": ctx.Param("periodID")})
	return ctx.JSON(http.StatusOK, year)
}
