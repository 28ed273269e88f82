package server

import (
	"net/http"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/blockadesystems/integricert/internal/auth"
	"github.com/blockadesystems/integricert/internal/cert"
	"github.com/blockadesystems/integricert/internal/config"
	"github.com/blockadesystems/integricert/internal/management"
	"github.com/blockadesystems/integricert/internal/storage"
	"github.com/blockadesystems/integricert/internal/validate"
)

// ApplyCommonMiddleware applies essential middleware to an Echo instance.
// It injects dependencies into the context.
func ApplyCommonMiddleware(e *echo.Echo, store storage.Storage, cfg *config.Config, certService *cert.Service, baseLogger *zap.Logger) {
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))

	// Middleware to set context values
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			reqLogger := baseLogger.With(zap.String("request_id", reqID))

			c.Set("certService", certService)
			c.Set("cfg", cfg)
			c.Set("store", store)
			c.Set("logger", reqLogger)
			return next(c)
		}
	})
}

// SetupRouter defines all HTTP routes for the application.
func SetupRouter(e *echo.Echo, store storage.Storage, cfg *config.Config) {
	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Integricert is running")
	})
	e.GET("/healthz", func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Anonymous public endpoints
	apiGroup := e.Group("/api/v1")
	apiGroup.POST("/validate", validate.HandleValidate)
	apiGroup.GET("/companies/search", validate.HandleSearchCompanies)

	// Operator endpoints; any verified operator has full issue/revoke rights
	operatorOnly := auth.OperatorJWTMiddleware(cfg.OperatorJWTSecret)
	certGroup := apiGroup.Group("/certificates")
	certGroup.Use(operatorOnly)
	certGroup.POST("", management.HandleIssueCertificate)
	certGroup.POST("/revoke", management.HandleRevokeCertificate)
	certGroup.GET("", management.HandleListCertificates)

	logGroup := apiGroup.Group("/validation-logs")
	logGroup.Use(operatorOnly)
	logGroup.GET("", management.HandleListValidationLogs)
}
