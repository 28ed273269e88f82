package validate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockadesystems/integricert/internal/model"
	"github.com/blockadesystems/integricert/internal/storage"
	"github.com/blockadesystems/integricert/internal/testutils"
)

func seedCertificate(t *testing.T, store storage.Storage, publicCode, companyName string, status model.Status, expiresAt time.Time) {
	t.Helper()
	now := time.Now().UTC()
	cert := &model.Certificate{
		ID:           publicCode + "-id",
		PublicCode:   publicCode,
		CompanyName:  companyName,
		IssuedAt:     now.AddDate(-1, 0, 0),
		ExpiresAt:    expiresAt,
		Status:       status,
		DocumentURL:  testutils.TestBaseURL + "/documents/" + publicCode + ".pdf",
		DocumentHash: "feedface",
		CreatedAt:    now,
	}
	if status == model.StatusRevoked {
		revokedAt := now
		cert.RevokedAt = &revokedAt
	}
	require.NoError(t, store.CreateCertificate(context.Background(), cert))
}

func postValidate(e http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/validate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "validate-test")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandleValidate(t *testing.T) {
	e, store, _ := testutils.SetupTestServer(t)
	expiry := time.Now().UTC().AddDate(1, 0, 0)
	seedCertificate(t, store, "PIC-ABCD-2345", "Empresa Activa SA", model.StatusActive, expiry)
	seedCertificate(t, store, "PIC-EFGH-2345", "Empresa Vencida SA", model.StatusActive, time.Now().UTC().Add(-time.Hour))
	seedCertificate(t, store, "PIC-JKLM-2345", "Empresa Revocada SA", model.StatusRevoked, expiry)

	t.Run("active certificate", func(t *testing.T) {
		rec := postValidate(e, `{"code":"PIC-ABCD-2345"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			OK          bool `json:"ok"`
			Certificate struct {
				CompanyName string `json:"company_name"`
				PublicCode  string `json:"public_code"`
				State       string `json:"state"`
				DocumentURL string `json:"document_url"`
			} `json:"certificate"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, "Empresa Activa SA", resp.Certificate.CompanyName)
		assert.Equal(t, "PIC-ABCD-2345", resp.Certificate.PublicCode)
		assert.Equal(t, "active", resp.Certificate.State)
		assert.NotEmpty(t, resp.Certificate.DocumentURL)
	})

	t.Run("code is normalized before lookup", func(t *testing.T) {
		rec := postValidate(e, `{"code":"  pic-abcd-2345 "}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("expired certificate is still returned", func(t *testing.T) {
		rec := postValidate(e, `{"code":"PIC-EFGH-2345"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			OK          bool `json:"ok"`
			Certificate struct {
				State string `json:"state"`
			} `json:"certificate"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, "expired", resp.Certificate.State)
	})

	t.Run("revoked certificate is still returned", func(t *testing.T) {
		rec := postValidate(e, `{"code":"PIC-JKLM-2345"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"state":"revoked"`)
	})

	t.Run("unknown code", func(t *testing.T) {
		rec := postValidate(e, `{"code":"PIC-ZZZZ-9999"}`)
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Código no válido")
	})

	t.Run("empty code", func(t *testing.T) {
		rec := postValidate(e, `{"code":"  "}`)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Código requerido")
	})

	t.Run("lookups are audited", func(t *testing.T) {
		entries, err := store.ListValidationLogs(context.Background(), 100)
		require.NoError(t, err)
		require.NotEmpty(t, entries)

		results := make(map[model.ValidationResult]bool)
		for _, entry := range entries {
			results[entry.Result] = true
			assert.NotEmpty(t, entry.IP)
			assert.Equal(t, "validate-test", entry.UserAgent)
		}
		assert.True(t, results[model.ResultFound])
		assert.True(t, results[model.ResultExpired])
		assert.True(t, results[model.ResultRevoked])
		assert.True(t, results[model.ResultNotFound])
	})
}

func TestHandleValidate_RateLimited(t *testing.T) {
	e, store, _ := testutils.SetupTestServer(t)
	seedCertificate(t, store, "PIC-ABCD-2345", "Empresa Activa SA", model.StatusActive, time.Now().UTC().AddDate(1, 0, 0))

	// Default limit is 10 attempts per window for a single client IP.
	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = postValidate(e, `{"code":"PIC-ABCD-2345"}`)
	}
	require.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Contains(t, last.Body.String(), "Demasiadas solicitudes. Intente en un momento.")
}

func TestHandleSearchCompanies(t *testing.T) {
	e, store, _ := testutils.SetupTestServer(t)
	seedCertificate(t, store, "PIC-ABCD-2345", "Constructora Andina SpA", model.StatusActive, time.Now().UTC().AddDate(1, 0, 0))
	seedCertificate(t, store, "PIC-EFGH-2345", "Minera Caducada SA", model.StatusActive, time.Now().UTC().Add(-time.Hour))

	t.Run("active company is found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/search?q=andina", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Found       bool   `json:"found"`
			CompanyName string `json:"company_name"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Found)
		assert.Equal(t, "Constructora Andina SpA", resp.CompanyName)
	})

	t.Run("expired company is not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/search?q=caducada", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"found":false`)
	})

	t.Run("missing term", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/companies/search", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
