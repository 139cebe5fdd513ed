package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Alexyn15/trangsucvn/app/auth"
	"github.com/Alexyn15/trangsucvn/app/types"
	"github.com/Alexyn15/trangsucvn/config"
)

const claimsContextKey = "auth_claims"

// AuthRequired validates the bearer access token and stores its claims on the
// echo context.
func AuthRequired(cfg config.JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization))
			if header == "" {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "missing authorization header"})
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "invalid authorization format"})
			}

			claims, err := auth.ParseAccessToken(cfg, strings.TrimSpace(parts[1]))
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "invalid or expired token"})
			}

			ctx.Set(claimsContextKey, claims)
			return next(ctx)
		}
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(allowed ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims := ClaimsFromContext(ctx)
			if claims == nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: "unauthorized"})
			}
			for _, role := range allowed {
				if strings.EqualFold(claims.Role, role) {
					return next(ctx)
				}
			}
			return ctx.JSON(http.StatusForbidden, &types.ErrorResponse{Error: "forbidden"})
		}
	}
}

func ClaimsFromContext(ctx echo.Context) *auth.Claims {
	claims, _ := ctx.Get(claimsContextKey).(*auth.Claims)
	return claims
}

// SetClaims is used by handlers' tests and by internal routes that resolve
// identity another way.
func SetClaims(ctx echo.Context, claims *auth.Claims) {
	ctx.Set(claimsContextKey, claims)
}
