package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OrganizationName  string        // Name printed on issued certificate documents
	ProgramName       string        // Compliance program name printed under the title
	PublicBaseURL     string        // Base URL used for validation links when the request carries no Origin
	CertValidityYears int           // Validity period of issued certificates in years
	HTTPAddress       string        // The address to listen on
	StorageType       string        // Storage type: "postgres" or "memory"
	DBHost            string        // PostgreSQL host
	DBUser            string        // PostgreSQL user
	DBPassword        string        // PostgreSQL password
	DBName            string        // PostgreSQL database name
	DBPort            int           // PostgreSQL port
	DBSSLMode         string        // PostgreSQL SSL mode
	DBCert            string        // PostgreSQL client certificate file
	DBKey             string        // PostgreSQL client private key file
	DBRootCert        string        // PostgreSQL root CA certificate file
	ObjectEndpoint    string        // S3-compatible object store endpoint
	ObjectAccessKey   string        // Object store access key
	ObjectSecretKey   string        // Object store secret key
	ObjectBucket      string        // Bucket holding rendered certificate documents
	ObjectUseSSL      bool          // Use TLS when talking to the object store
	ObjectPublicBase  string        // Public URL prefix for uploaded documents
	OperatorJWTSecret string        // HMAC secret shared with the external identity provider
	RateLimitMax      int           // Validation attempts allowed per window and origin
	RateLimitWindow   time.Duration // Validation rate-limit window
	RateLimitBackend  string        // Rate limiter backend: "memory" or "redis"
	RedisURL          string        // Redis URL for the redis rate limiter backend
}

const (
	defaultOrganizationName  = "Programas de Integridad"
	defaultProgramName       = "Programa de Integridad"
	defaultPublicBaseURL     = "http://localhost:8080"
	defaultCertValidityYears = 1
	defaultHTTPAddress       = ":8080"
	defaultStorageType       = "postgres"
	defaultDBHost            = "localhost"
	defaultDBUser            = "integricert"
	defaultDBPassword        = "password"
	defaultDBName            = "integricert"
	defaultDBPort            = 5432
	defaultDBSSLMode         = "disable" // Default to disable SSL
	defaultDBCert            = ""
	defaultDBKey             = ""
	defaultDBRootCert        = ""
	defaultObjectEndpoint    = "localhost:9000"
	defaultObjectAccessKey   = "minioadmin"
	defaultObjectSecretKey   = "minioadmin"
	defaultObjectBucket      = "certificates"
	defaultObjectPublicBase  = ""
	defaultRateLimitMax      = 10
	defaultRateLimitWindowS  = 60
	defaultRateLimitBackend  = "memory"
	defaultRedisURL          = ""
)

// LoadConfig loads the configuration from a .env file (if present) and
// environment variables, falling back to defaults.
func LoadConfig() (*Config, error) {
	// A missing .env file is fine; env vars and defaults still apply.
	_ = godotenv.Load()

	cfg := &Config{
		OrganizationName:  getEnv("INTEGRICERT_ORGANIZATION", defaultOrganizationName),
		ProgramName:       getEnv("INTEGRICERT_PROGRAM_NAME", defaultProgramName),
		PublicBaseURL:     getEnv("INTEGRICERT_PUBLIC_BASE_URL", defaultPublicBaseURL),
		CertValidityYears: getEnvAsInt("INTEGRICERT_CERT_VALIDITY_YEARS", defaultCertValidityYears),
		HTTPAddress:       getEnv("INTEGRICERT_HTTP_ADDRESS", defaultHTTPAddress),
		StorageType:       getEnv("INTEGRICERT_STORAGE_TYPE", defaultStorageType),
		DBHost:            getEnv("INTEGRICERT_DB_HOST", defaultDBHost),
		DBUser:            getEnv("INTEGRICERT_DB_USER", defaultDBUser),
		DBPassword:        getEnv("INTEGRICERT_DB_PASSWORD", defaultDBPassword),
		DBName:            getEnv("INTEGRICERT_DB_NAME", defaultDBName),
		DBPort:            getEnvAsInt("INTEGRICERT_DB_PORT", defaultDBPort),
		DBSSLMode:         getEnv("INTEGRICERT_DB_SSLMODE", defaultDBSSLMode),
		DBCert:            getEnv("INTEGRICERT_DB_CERT", defaultDBCert),
		DBKey:             getEnv("INTEGRICERT_DB_KEY", defaultDBKey),
		DBRootCert:        getEnv("INTEGRICERT_DB_ROOTCERT", defaultDBRootCert),
		ObjectEndpoint:    getEnv("INTEGRICERT_OBJECT_ENDPOINT", defaultObjectEndpoint),
		ObjectAccessKey:   getEnv("INTEGRICERT_OBJECT_ACCESS_KEY", defaultObjectAccessKey),
		ObjectSecretKey:   getEnv("INTEGRICERT_OBJECT_SECRET_KEY", defaultObjectSecretKey),
		ObjectBucket:      getEnv("INTEGRICERT_OBJECT_BUCKET", defaultObjectBucket),
		ObjectUseSSL:      getEnvAsBool("INTEGRICERT_OBJECT_USE_SSL", false),
		ObjectPublicBase:  getEnv("INTEGRICERT_OBJECT_PUBLIC_BASE", defaultObjectPublicBase),
		OperatorJWTSecret: getEnv("INTEGRICERT_OPERATOR_JWT_SECRET", ""),
		RateLimitMax:      getEnvAsInt("INTEGRICERT_RATE_LIMIT_MAX", defaultRateLimitMax),
		RateLimitWindow:   time.Duration(getEnvAsInt("INTEGRICERT_RATE_LIMIT_WINDOW_SECONDS", defaultRateLimitWindowS)) * time.Second,
		RateLimitBackend:  getEnv("INTEGRICERT_RATE_LIMIT_BACKEND", defaultRateLimitBackend),
		RedisURL:          getEnv("INTEGRICERT_REDIS_URL", defaultRedisURL),
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s (%s), using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s (%s), using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
