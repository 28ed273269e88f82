// internal/testutils/server_test_helper.go
package testutils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap/zaptest"

	"github.com/blockadesystems/integricert/internal/cert"
	"github.com/blockadesystems/integricert/internal/config"
	"github.com/blockadesystems/integricert/internal/objstore"
	"github.com/blockadesystems/integricert/internal/ratelimit"
	"github.com/blockadesystems/integricert/internal/server"
	"github.com/blockadesystems/integricert/internal/storage"
)

// OperatorSecret is the JWT secret wired into test servers.
const OperatorSecret = "test-operator-secret"

// TestBaseURL is the public base URL wired into test configs.
const TestBaseURL = "http://registry.test"

// SetupTestServer initializes all components needed to run the Echo app for
// testing, backed by in-memory storage and object store. Returns the Echo
// instance plus the stores for direct inspection.
func SetupTestServer(t *testing.T) (*echo.Echo, storage.Storage, *objstore.MemoryStore) {
	t.Helper()

	// zaptest integrates with go test logging
	testLogger := zaptest.NewLogger(t)

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Fatalf("Failed to load base config for test: %v", err)
	}
	cfg.StorageType = "memory"
	cfg.PublicBaseURL = TestBaseURL
	cfg.OperatorJWTSecret = OperatorSecret

	store := storage.NewMemoryStorage()
	objects := objstore.NewMemoryStore(TestBaseURL + "/documents")
	limiter := ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	certService := cert.New(cfg, store, objects, limiter)

	e := echo.New()
	server.ApplyCommonMiddleware(e, store, cfg, certService, testLogger)
	server.SetupRouter(e, store, cfg)

	return e, store, objects
}

// OperatorToken mints a bearer token accepted by test servers.
func OperatorToken(t *testing.T) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub": "operator@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(OperatorSecret))
	if err != nil {
		t.Fatalf("Failed to sign operator token: %v", err)
	}
	return token
}
