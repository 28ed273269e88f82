package main

import (
	"context"
	"os"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blockadesystems/integricert/internal/cert"
	"github.com/blockadesystems/integricert/internal/config"
	"github.com/blockadesystems/integricert/internal/objstore"
	"github.com/blockadesystems/integricert/internal/ratelimit"
	"github.com/blockadesystems/integricert/internal/server"
	"github.com/blockadesystems/integricert/internal/storage"
)

var logger *zap.Logger

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	logger = l.With(zap.String("package", "main"))
	zap.ReplaceGlobals(l)
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Integricert starting...", zap.String("address", cfg.HTTPAddress), zap.String("storage_type", cfg.StorageType))

	// Initialize storage
	store, err := storage.NewStorage(
		cfg.StorageType,
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
		cfg.DBCert,
		cfg.DBKey,
		cfg.DBRootCert,
	)
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.Error(err), zap.String("storage_type", cfg.StorageType))
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage initialized")

	// Initialize object store
	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var objects objstore.Store
	if strings.EqualFold(cfg.StorageType, "memory") {
		// Memory storage implies local development; keep documents in memory too.
		objects = objstore.NewMemoryStore(cfg.PublicBaseURL + "/documents")
	} else {
		objects, err = objstore.NewMinioStore(initCtx, cfg.ObjectEndpoint, cfg.ObjectAccessKey, cfg.ObjectSecretKey, cfg.ObjectBucket, cfg.ObjectUseSSL, cfg.ObjectPublicBase)
		if err != nil {
			logger.Fatal("failed to initialize object store", zap.Error(err), zap.String("endpoint", cfg.ObjectEndpoint))
			os.Exit(1)
		}
	}
	logger.Info("object store initialized")

	// Initialize rate limiter
	var limiter ratelimit.Limiter
	switch strings.ToLower(cfg.RateLimitBackend) {
	case "redis":
		redisLimiter, err := ratelimit.NewRedisLimiterFromURL(initCtx, cfg.RedisURL, cfg.RateLimitMax, cfg.RateLimitWindow)
		if err != nil {
			logger.Fatal("failed to initialize redis rate limiter", zap.Error(err))
			os.Exit(1)
		}
		defer redisLimiter.Close()
		limiter = redisLimiter
	default:
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
	}
	logger.Info("rate limiter initialized", zap.String("backend", cfg.RateLimitBackend), zap.Int("limit", cfg.RateLimitMax), zap.Duration("window", cfg.RateLimitWindow))

	// Initialize certificate service
	certService := cert.New(cfg, store, objects, limiter)
	logger.Info("certificate service initialized")

	if cfg.OperatorJWTSecret == "" {
		logger.Warn("operator JWT secret is not configured; operator endpoints will reject all requests")
	}

	e := echo.New()
	server.ApplyCommonMiddleware(e, store, cfg, certService, logger)
	server.SetupRouter(e, store, cfg)

	logger.Info("listening on address", zap.String("address", cfg.HTTPAddress))
	if err := e.Start(cfg.HTTPAddress); err != nil {
		logger.Fatal("error starting HTTP server", zap.Error(err), zap.String("address", cfg.HTTPAddress))
		os.Exit(1)
	}
}
