package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/darasa-app/darasa/core"
	"github.com/darasa-app/darasa/core/content"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")

	conflictMessage = "this lesson was edited elsewhere; reload and try again"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how
// to handle our errors. signalShutdown is called to gracefully shut the server
// down whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			code, message = contentErrorResponse(err)
			if code == http.StatusInternalServerError {
				var actor core.Actor
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					actor = claims.actor()
				}
				logger.Error(message.(string), errors.Wrap(err, message.(string)), actor)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// contentErrorResponse maps the content engine's error taxonomy to HTTP.
// Every engine failure is terminal for the request; the UI resolves
// conflicts by reloading.
func contentErrorResponse(err error) (int, interface{}) {
	cause := errors.Cause(err)
	switch cause {
	case content.ErrNotFound:
		return http.StatusNotFound, "not found"
	case content.ErrConflict:
		return http.StatusConflict, conflictMessage
	case content.ErrInvalidState:
		return http.StatusConflict, err.Error()
	case content.ErrInvalidSlot, content.ErrInvalidIndex, content.ErrInvalidReorder:
		return http.StatusBadRequest, err.Error()
	}
	// any other error is a server error
	return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
}
