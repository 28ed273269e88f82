// Package auth verifies operator identities. Identity management itself is
// delegated to an external provider; this package only checks that the
// presented bearer token was signed by it. Any verified operator has full
// issue/revoke rights; there is no finer-grained role model.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ContextKeyOperator is the echo context key carrying the verified operator
// subject.
const ContextKeyOperator = "operator"

// OperatorJWTMiddleware returns echo middleware that rejects requests
// lacking a valid operator bearer token. Tokens are HS256, signed with the
// secret shared with the identity provider.
func OperatorJWTMiddleware(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqLogger, _ := c.Get("logger").(*zap.Logger)
			if reqLogger == nil {
				reqLogger = zap.L()
			}

			if secret == "" {
				reqLogger.Error("Operator JWT secret is not configured; rejecting request")
				return echo.NewHTTPError(http.StatusUnauthorized, "No autorizado")
			}

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || tokenString == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "No autorizado")
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("auth: unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !token.Valid {
				reqLogger.Warn("Rejected invalid operator token", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "No autorizado")
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				reqLogger.Warn("Rejected operator token without subject", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "No autorizado")
			}

			c.Set(ContextKeyOperator, subject)
			return next(c)
		}
	}
}
