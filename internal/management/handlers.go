// Package management holds the operator-facing HTTP handlers. All routes in
// this package sit behind the operator JWT middleware.
package management

import (
	"errors"
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/blockadesystems/integricert/internal/cert"
)

// Package-level logger (request-scoped loggers come from context).
var logger *zap.Logger

func init() {
	logger = zap.L().Named("management")
}

// issueRequest defines the expected JSON body for issuing a certificate.
type issueRequest struct {
	CompanyName string `json:"company_name"`
}

// revokeRequest defines the expected JSON body for revoking a certificate.
type revokeRequest struct {
	PublicCode string `json:"public_code"`
}

// HandleIssueCertificate handles POST requests to issue a new certificate.
func HandleIssueCertificate(c echo.Context) error {
	svc := c.Get("certService").(*cert.Service)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleIssueCertificate"))
	ctx := c.Request().Context()

	var req issueRequest
	if err := c.Bind(&req); err != nil {
		reqLogger.Warn("Failed to bind request body", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	certificate, err := svc.Issue(ctx, cert.IssueRequest{
		CompanyName: req.CompanyName,
		Origin:      c.Request().Header.Get("Origin"),
	})
	if err != nil {
		if errors.Is(err, cert.ErrInvalidInput) {
			return echo.NewHTTPError(http.StatusBadRequest, "Company name is required")
		}
		reqLogger.Error("Failed to issue certificate", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to issue certificate")
	}

	reqLogger.Info("Issued certificate", zap.String("public_code", certificate.PublicCode))
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":          true,
		"certificate": certificate,
	})
}

// HandleRevokeCertificate handles POST requests to revoke a certificate by
// its public code.
func HandleRevokeCertificate(c echo.Context) error {
	svc := c.Get("certService").(*cert.Service)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleRevokeCertificate"))
	ctx := c.Request().Context()

	var req revokeRequest
	if err := c.Bind(&req); err != nil {
		reqLogger.Warn("Failed to bind request body", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	err := svc.Revoke(ctx, req.PublicCode)
	if err != nil {
		switch {
		case errors.Is(err, cert.ErrInvalidInput):
			return echo.NewHTTPError(http.StatusBadRequest, "Public code is required")
		case errors.Is(err, cert.ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "Certificate not found")
		case errors.Is(err, cert.ErrAlreadyRevoked):
			return echo.NewHTTPError(http.StatusBadRequest, "Certificate is already revoked")
		default:
			reqLogger.Error("Failed to revoke certificate", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to revoke certificate")
		}
	}

	reqLogger.Info("Revoked certificate", zap.String("public_code", req.PublicCode))
	return c.JSON(http.StatusOK, map[string]interface{}{"ok": true})
}

// HandleListCertificates handles GET requests for the full certificate
// list, newest first.
func HandleListCertificates(c echo.Context) error {
	svc := c.Get("certService").(*cert.Service)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleListCertificates"))
	ctx := c.Request().Context()

	certs, err := svc.ListCertificates(ctx)
	if err != nil {
		reqLogger.Error("Failed to list certificates", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve certificates")
	}
	return c.JSON(http.StatusOK, certs)
}

// HandleListValidationLogs handles GET requests for recent validation audit
// entries. Supports an optional ?limit= query parameter.
func HandleListValidationLogs(c echo.Context) error {
	svc := c.Get("certService").(*cert.Service)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleListValidationLogs"))
	ctx := c.Request().Context()

	limit := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		parsed, err := strconv.Atoi(limitParam)
		if err != nil || parsed < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit parameter")
		}
		limit = parsed
	}

	entries, err := svc.ListValidationLogs(ctx, limit)
	if err != nil {
		reqLogger.Error("Failed to list validation logs", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve validation logs")
	}
	return c.JSON(http.StatusOK, entries)
}
