package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// editorMiddleware only lets editors (teacher or admin portal) through.
// Whether the editor may touch this particular lesson is the accounts
// collaborator's call; this layer only checks the portal.
func editorMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.ViewerRole().CanEdit() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
