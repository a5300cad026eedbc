package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// claimsMiddleware lets the request through when allowed accepts the token claims.
func claimsMiddleware(allowed func(Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func adminMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(Claims.IsAdmin)
}

// privilegedMiddleware lets the DJs and the admins through.
func privilegedMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(Claims.IsPrivileged)
}

// scannerMiddleware lets the door staff and the admins through.
func scannerMiddleware() echo.MiddlewareFunc {
	return claimsMiddleware(Claims.CanScan)
}
