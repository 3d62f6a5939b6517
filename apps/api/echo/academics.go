package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/academics"
)

type configApi struct {
	svc      academics.Service
	validate *validator.Validate
}

func registerConfigAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := configApi{
		svc:      deps.AcademicsSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/admin/config", jwt, adminMiddleware(), recorderMiddleware(deps.Recorder, "config"))
	cg.GET("/state", api.state)

	lg := cg.Group("/levels")
	lg.POST("", api.createLevel)
	lg.PUT("/:id", api.updateLevel)
	lg.DELETE("/:id", api.deleteLevel)

	pg := cg.Group("/course-periods")
	pg.POST("", api.createCoursePeriod)
	pg.PUT("/:id", api.updateCoursePeriod)
	pg.DELETE("/:id", api.deleteCoursePeriod)

	aug := cg.Group("/absence-units")
	aug.POST("", api.createAbsenceUnit)
	aug.PUT("/:id", api.updateAbsenceUnit)
	aug.DELETE("/:id", api.deleteAbsenceUnit)

	scg := cg.Group("/subject-categories")
	scg.POST("", api.createSubjectCategory)
	scg.PUT("/:id", api.updateSubjectCategory)
	scg.DELETE("/:id", api.deleteSubjectCategory)

	sg := cg.Group("/subjects")
	sg.POST("", api.createSubject)
	sg.PUT("/:id", api.updateSubject)
	sg.DELETE("/:id", api.deleteSubject)

	cg.PUT("/settings", api.saveSettings)
}

// notFoundOr passes through the known not-found errors as 404s.
func notFoundOr(err error, msg string) error {
	switch errors.Cause(err) {
	case academics.ErrLevelNotFound,
		academics.ErrCoursePeriodNotFound,
		academics.ErrAbsenceUnitNotFound,
		academics.ErrCategoryNotFound,
		academics.ErrSubjectNotFound:
		return errHttpNotFound
	}
	return errors.Wrap(err, msg)
}

func (api *configApi) state(ctx echo.Context) error {
	state, err := api.svc.State(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "loading academic configuration")
	}
	return ctx.JSON(http.StatusOK, state)
}

// Levels

func (api *configApi) createLevel(ctx echo.Context) error {
	var data academics.NewLevel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLevel")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	level, err := api.svc.CreateLevel(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating level")
	}

	getRecorder(ctx).Info(ctx.Request().Context(), "level created",
		map[string]interface{}{"level_id": level.ID, "label": level.Label})
	return ctx.JSON(http.StatusCreated, level)
}

func (api *configApi) updateLevel(ctx echo.Context) error {
	var data academics.UpdateLevel
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLevel")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	level, err := api.svc.UpdateLevel(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFoundOr(err, "updating level")
	}
	return ctx.JSON(http.StatusOK, level)
}

func (api *configApi) deleteLevel(ctx echo.Context) error {
	if err := api.svc.DeleteLevel(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == academics.ErrLevelInUse {
			return echo.NewHTTPError(http.StatusConflict, academics.ErrLevelInUse.Error())
		}
		return notFoundOr(err, "deleting level")
	}

	getRecorder(ctx).Warn(ctx.Request().Context(), "level deleted",
		map[string]interface{}{"level_id": ctx.Param("id")})
	return ctx.NoContent(http.StatusNoContent)
}

// Course periods

func (api *configApi) createCoursePeriod(ctx echo.Context) error {
	var data academics.NewCoursePeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCoursePeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	period, err := api.svc.CreateCoursePeriod(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course period")
	}
	return ctx.JSON(http.StatusCreated, period)
}

func (api *configApi) updateCoursePeriod(ctx echo.Context) error {
	var data academics.UpdateCoursePeriod
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCoursePeriod")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	period, err := api.svc.UpdateCoursePeriod(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFoundOr(err, "updating course period")
	}
	return ctx.JSON(http.StatusOK, period)
}

func (api *configApi) deleteCoursePeriod(ctx echo.Context) error {
	if err := api.svc.DeleteCoursePeriod(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFoundOr(err, "deleting course period")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Absence units

func (api *configApi) createAbsenceUnit(ctx echo.Context) error {
	var data academics.NewAbsenceUnit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAbsenceUnit")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	unit, err := api.svc.CreateAbsenceUnit(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating absence unit")
	}
	return ctx.JSON(http.StatusCreated, unit)
}

func (api *configApi) updateAbsenceUnit(ctx echo.Context) error {
	var data academics.UpdateAbsenceUnit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAbsenceUnit")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	unit, err := api.svc.UpdateAbsenceUnit(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFoundOr(err, "updating absence unit")
	}
	return ctx.JSON(http.StatusOK, unit)
}

func (api *configApi) deleteAbsenceUnit(ctx echo.Context) error {
	if err := api.svc.DeleteAbsenceUnit(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFoundOr(err, "deleting absence unit")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subject categories

func (api *configApi) createSubjectCategory(ctx echo.Context) error {
	var data academics.NewSubjectCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubjectCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.CreateSubjectCategory(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject category")
	}
	return ctx.JSON(http.StatusCreated, cat)
}

func (api *configApi) updateSubjectCategory(ctx echo.Context) error {
	var data academics.UpdateSubjectCategory
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubjectCategory")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cat, err := api.svc.UpdateSubjectCategory(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFoundOr(err, "updating subject category")
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *configApi) deleteSubjectCategory(ctx echo.Context) error {
	if err := api.svc.DeleteSubjectCategory(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFoundOr(err, "deleting subject category")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Subjects

func (api *configApi) createSubject(ctx echo.Context) error {
	var data academics.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	subject, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}

	getRecorder(ctx).Info(ctx.Request().Context(), "subject created",
		map[string]interface{}{"subject_id": subject.ID, "label": subject.Label})
	return ctx.JSON(http.StatusCreated, subject)
}

func (api *configApi) updateSubject(ctx echo.Context) error {
	var data academics.UpdateSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	subject, err := api.svc.UpdateSubject(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return notFoundOr(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, subject)
}

func (api *configApi) deleteSubject(ctx echo.Context) error {
	if err := api.svc.DeleteSubject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return notFoundOr(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Settings

func (api *configApi) saveSettings(ctx echo.Context) error {
	var data academics.UpsertSchoolSettings
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertSchoolSettings")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	settings, err := api.svc.SaveSettings(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "saving school settings")
	}

	getRecorder(ctx).Info(ctx.Request().Context(), "school settings saved", nil)
	return ctx.JSON(http.StatusOK, settings)
}
