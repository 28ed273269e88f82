// Package validate holds the anonymous public HTTP handlers. Failure
// responses here are deliberately terse: anonymous callers get the two
// defined outcomes and a generic internal error, never upstream detail, to
// avoid leaking enumeration signals.
package validate

import (
	"errors"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/blockadesystems/integricert/internal/cert"
)

// validateRequest defines the expected JSON body for a validation attempt.
type validateRequest struct {
	Code string `json:"code"`
}

// HandleValidate handles POST requests validating a public code.
func HandleValidate(c echo.Context) error {
	svc := c.Get("certService").(*cert.Service)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleValidate"))
	ctx := c.Request().Context()

	var req validateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "Código requerido"})
	}

	summary, err := svc.Validate(ctx, req.Code, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, cert.ErrRateLimited):
			return c.JSON(http.StatusTooManyRequests, map[string]interface{}{"ok": false, "error": "Demasiadas solicitudes. Intente en un momento."})
		case errors.Is(err, cert.ErrInvalidInput):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "Código requerido"})
		case errors.Is(err, cert.ErrNotFound):
			return c.JSON(http.StatusNotFound, map[string]interface{}{"ok": false, "error": "Código no válido"})
		default:
			reqLogger.Error("Validation failed", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "Error interno del servidor"})
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":          true,
		"certificate": summary,
	})
}

// HandleSearchCompanies handles GET requests checking whether a company has
// a currently valid certificate. Matches by company-name substring.
func HandleSearchCompanies(c echo.Context) error {
	svc := c.Get("certService").(*cert.Service)
	reqLogger := c.Get("logger").(*zap.Logger).With(zap.String("handler", "HandleSearchCompanies"))
	ctx := c.Request().Context()

	result, err := svc.SearchCompany(ctx, c.QueryParam("q"))
	if err != nil {
		if errors.Is(err, cert.ErrInvalidInput) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{"ok": false, "error": "Término de búsqueda requerido"})
		}
		reqLogger.Error("Company search failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{"ok": false, "error": "Error interno del servidor"})
	}
	return c.JSON(http.StatusOK, result)
}
