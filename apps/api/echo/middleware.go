package echoapi

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/audit"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsAdmin && contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

var contextRecorderKey = "recorder"

// recorderMiddleware derives a request-scoped audit recorder carrying the
// route scope, a fresh request id and the authenticated user when present.
func recorderMiddleware(rec *audit.Recorder, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			reqRec := rec.WithScope(scope).WithRequestID(uuid.NewString())
			if claims, err := getContextClaims(ctx); err == nil {
				reqRec = reqRec.WithUser(claims.Subject)
			}
			ctx.Set(contextRecorderKey, reqRec)
			return next(ctx)
		}
	}
}

func getRecorder(ctx echo.Context) *audit.Recorder {
	if rec, ok := ctx.Get(contextRecorderKey).(*audit.Recorder); ok {
		return rec
	}
	return nil
}
