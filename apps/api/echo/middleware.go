package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

func adminMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if isLegacyAdmin(ctx) {
				return next(ctx)
			}
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

// activeUserMiddleware rejects tokens of users deactivated or not approved since the token was issued.
func activeUserMiddleware(a *auth) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if isLegacyAdmin(ctx) {
				return next(ctx)
			}
			usr, err := a.contextUser(ctx)
			if err != nil {
				return err
			}
			if !usr.Active() {
				return errAccountDeactivated
			}
			if usr.IsPending() {
				return errAccountPending
			}
			return next(ctx)
		}
	}
}
