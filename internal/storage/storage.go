package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq" // PostgreSQL driver and error helpers
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blockadesystems/integricert/internal/model"
)

var logger *zap.Logger

// init initializes the package logger.
func init() {
	cfg := zap.NewDevelopmentConfig() // Consider NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(fmt.Sprintf("failed to initialize zap logger: %v", err))
	}
	logger = l.With(zap.String("package", "storage"))
}

// Sentinel errors surfaced by implementations. The service layer treats
// these as its synchronization primitives: a duplicate-code violation means
// "regenerate and retry", zero rows at revocation time means "lost the race".
var (
	ErrNotFound      = errors.New("storage: certificate not found")
	ErrDuplicateCode = errors.New("storage: public code already exists")
	ErrNotActive     = errors.New("storage: certificate is not active")
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

// --- Interfaces ---

// Querier defines common methods implemented by *sql.DB and *sql.Tx.
// This allows storage helpers to work with either a pool or a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Storage defines the interface for persisting certificates and their
// validation audit trail.
type Storage interface {
	// Certificate Methods
	CreateCertificate(ctx context.Context, cert *model.Certificate) error
	GetCertificateByCode(ctx context.Context, publicCode string) (*model.Certificate, error)
	RevokeCertificate(ctx context.Context, id string, revokedAt time.Time) error
	ListCertificates(ctx context.Context) ([]*model.Certificate, error)
	SearchCertificates(ctx context.Context, term string) ([]*model.Certificate, error)

	// Validation Log Methods (append-only)
	SaveValidationLog(ctx context.Context, entry *model.ValidationLogEntry) error
	ListValidationLogs(ctx context.Context, limit int) ([]*model.ValidationLogEntry, error)

	// Transaction Helper (only meaningful on PostgreSQLStorage)
	WithinTransaction(ctx context.Context, fn func(ctx context.Context, txStorage Storage) error) error

	Ping(ctx context.Context) error
	Close() error // Close the underlying connection pool
}

// --- PostgreSQL Implementation ---

// PostgreSQLStorage holds the connection pool.
type PostgreSQLStorage struct {
	db *sql.DB
}

// postgresTxStore holds a transaction and implements the Storage interface.
type postgresTxStore struct {
	tx *sql.Tx
}

// Compile-time interface checks.
var _ Storage = (*PostgreSQLStorage)(nil)
var _ Storage = (*postgresTxStore)(nil)

// NewStorage is the factory function.
func NewStorage(storageType string, dbHost string, dbUser string, dbPassword string, dbName string, dbPort int, dbSSLMode string, dbCert string, dbKey string, dbRootCert string) (Storage, error) {
	switch strings.ToLower(storageType) {
	case "postgres":
		return NewPostgreSQLStorage(dbHost, dbUser, dbPassword, dbName, dbPort, dbSSLMode, dbCert, dbKey, dbRootCert)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		logger.Error("Invalid storage type specified", zap.String("storage_type", storageType))
		return nil, fmt.Errorf("storage: invalid storage type: %s", storageType)
	}
}

// NewPostgreSQLStorage creates a new PostgreSQLStorage instance and ensures schema exists.
func NewPostgreSQLStorage(dbHost string, dbUser string, dbPassword string, dbName string, dbPort int, dbSSLMode string, dbCert string, dbKey string, dbRootCert string) (*PostgreSQLStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		dbHost, dbUser, dbPassword, dbName, dbPort, dbSSLMode,
	)
	// Add optional SSL params
	if dbCert != "" {
		connStr += " sslcert=" + dbCert
	}
	if dbKey != "" {
		connStr += " sslkey=" + dbKey
	}
	if dbRootCert != "" {
		connStr += " sslrootcert=" + dbRootCert
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		logger.Error("Failed to open PostgreSQL connection", zap.Error(err))
		return nil, fmt.Errorf("storage: failed to open PostgreSQL database: %w", err)
	}

	// Configure connection pool (tune as needed)
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Ping database to verify connection
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = db.PingContext(pingCtx)
	if err != nil {
		db.Close() // Close pool if ping fails
		logger.Error("Failed to ping PostgreSQL database", zap.Error(err), zap.String("host", dbHost), zap.Int("port", dbPort), zap.String("dbname", dbName))
		return nil, fmt.Errorf("storage: failed to connect to PostgreSQL database: %w", err)
	}
	logger.Info("Successfully connected to PostgreSQL database", zap.String("host", dbHost), zap.Int("port", dbPort), zap.String("dbname", dbName))

	// --- Ensure Schema ---
	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 30*time.Second) // Longer timeout for DDL
	defer schemaCancel()
	if err := ensureSchema(schemaCtx, db); err != nil {
		db.Close()
		return nil, err // Error already logged in ensureSchema
	}

	s := &PostgreSQLStorage{
		db: db,
	}
	logger.Info("PostgreSQLStorage initialized")
	return s, nil
}

// ensureSchema creates tables and indexes if they don't exist.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS certificates (
			id TEXT PRIMARY KEY,
			public_code TEXT NOT NULL UNIQUE,
			company_name TEXT NOT NULL,
			issued_at TIMESTAMP WITH TIME ZONE NOT NULL,
			expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			revoked_at TIMESTAMP WITH TIME ZONE,
			document_url TEXT NOT NULL,
			document_hash TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW() );`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_status ON certificates (status);`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_created_at ON certificates (created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS validation_logs (
			id BIGSERIAL PRIMARY KEY,
			public_code TEXT NOT NULL,
			result TEXT NOT NULL,
			ip TEXT NOT NULL,
			user_agent TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW() );`,
		`CREATE INDEX IF NOT EXISTS idx_validation_logs_public_code ON validation_logs (public_code);`,
		`CREATE INDEX IF NOT EXISTS idx_validation_logs_created_at ON validation_logs (created_at DESC);`,
	}

	logger.Info("Executing CREATE TABLE IF NOT EXISTS and CREATE INDEX IF NOT EXISTS statements...")
	for i, stmt := range stmts {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			logger.Error("Failed to execute schema statement", zap.Error(err), zap.Int("statement_index", i), zap.String("statement", stmt))
			return fmt.Errorf("storage: failed to initialize database schema: %w", err)
		}
	}
	logger.Info("Database schema initialization check complete.")
	return nil
}

// =============================================
// PostgreSQLStorage Method Implementations
// =============================================

// Close shuts down the database connection pool.
func (s *PostgreSQLStorage) Close() error {
	logger.Info("Closing database connection pool")
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *PostgreSQLStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTransaction executes the given function within a database transaction.
func (s *PostgreSQLStorage) WithinTransaction(ctx context.Context, fn func(ctx context.Context, txStorage Storage) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: failed to begin transaction: %w", err)
	}
	txStore := &postgresTxStore{tx: tx}
	err = fn(ctx, txStore)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			logger.Error("Transaction function failed and rollback failed", zap.Error(err), zap.NamedError("rollback_error", rbErr))
			return fmt.Errorf("storage: transaction function failed (%w) and rollback failed (%v)", err, rbErr)
		}
		logger.Warn("Transaction rolled back due to error", zap.Error(err))
		return err
	}
	if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("storage: failed to commit transaction: %w", err)
	}
	return nil
}

// --- Certificates ---
func (s *PostgreSQLStorage) CreateCertificate(ctx context.Context, cert *model.Certificate) error {
	return createCertificate(ctx, s.db, cert)
}
func (s *PostgreSQLStorage) GetCertificateByCode(ctx context.Context, publicCode string) (*model.Certificate, error) {
	return getCertificateByCode(ctx, s.db, publicCode)
}
func (s *PostgreSQLStorage) RevokeCertificate(ctx context.Context, id string, revokedAt time.Time) error {
	return revokeCertificate(ctx, s.db, id, revokedAt)
}
func (s *PostgreSQLStorage) ListCertificates(ctx context.Context) ([]*model.Certificate, error) {
	return listCertificates(ctx, s.db)
}
func (s *PostgreSQLStorage) SearchCertificates(ctx context.Context, term string) ([]*model.Certificate, error) {
	return searchCertificates(ctx, s.db, term)
}

// --- Validation Logs ---
func (s *PostgreSQLStorage) SaveValidationLog(ctx context.Context, entry *model.ValidationLogEntry) error {
	return saveValidationLog(ctx, s.db, entry)
}
func (s *PostgreSQLStorage) ListValidationLogs(ctx context.Context, limit int) ([]*model.ValidationLogEntry, error) {
	return listValidationLogs(ctx, s.db, limit)
}

// =============================================
// postgresTxStore Method Implementations
// =============================================

// Close is a no-op for a transaction store.
func (s *postgresTxStore) Close() error { return nil }

// Ping is a no-op for a transaction store.
func (s *postgresTxStore) Ping(ctx context.Context) error { return nil }

// WithinTransaction cannot be called on an already active transaction store.
func (s *postgresTxStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, txStorage Storage) error) error {
	return errors.New("storage: cannot start a transaction within an existing transaction")
}

// --- Certificates ---
func (s *postgresTxStore) CreateCertificate(ctx context.Context, cert *model.Certificate) error {
	return createCertificate(ctx, s.tx, cert)
}
func (s *postgresTxStore) GetCertificateByCode(ctx context.Context, publicCode string) (*model.Certificate, error) {
	return getCertificateByCode(ctx, s.tx, publicCode)
}
func (s *postgresTxStore) RevokeCertificate(ctx context.Context, id string, revokedAt time.Time) error {
	return revokeCertificate(ctx, s.tx, id, revokedAt)
}
func (s *postgresTxStore) ListCertificates(ctx context.Context) ([]*model.Certificate, error) {
	return listCertificates(ctx, s.tx)
}
func (s *postgresTxStore) SearchCertificates(ctx context.Context, term string) ([]*model.Certificate, error) {
	return searchCertificates(ctx, s.tx, term)
}

// --- Validation Logs ---
func (s *postgresTxStore) SaveValidationLog(ctx context.Context, entry *model.ValidationLogEntry) error {
	return saveValidationLog(ctx, s.tx, entry)
}
func (s *postgresTxStore) ListValidationLogs(ctx context.Context, limit int) ([]*model.ValidationLogEntry, error) {
	return listValidationLogs(ctx, s.tx, limit)
}

// =============================================
// Unexported Helper Implementations
// =============================================

const certificateColumns = `id, public_code, company_name, issued_at, expires_at, status, revoked_at, document_url, document_hash, created_at`

func createCertificate(ctx context.Context, q Querier, cert *model.Certificate) error {
	query := `
        INSERT INTO certificates
            (id, public_code, company_name, issued_at, expires_at, status, revoked_at, document_url, document_hash, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	var sqlRevokedAt sql.NullTime
	if cert.RevokedAt != nil {
		sqlRevokedAt = sql.NullTime{Time: *cert.RevokedAt, Valid: true}
	}
	_, err := q.ExecContext(ctx, query, cert.ID, cert.PublicCode, cert.CompanyName, cert.IssuedAt, cert.ExpiresAt,
		string(cert.Status), sqlRevokedAt, cert.DocumentURL, cert.DocumentHash, cert.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			logger.Warn("Public code collision on insert", zap.String("public_code", cert.PublicCode))
			return ErrDuplicateCode
		}
		return fmt.Errorf("storage: failed to create certificate '%s': %w", cert.PublicCode, err)
	}
	logger.Debug("Certificate created", zap.String("public_code", cert.PublicCode))
	return nil
}

func getCertificateByCode(ctx context.Context, q Querier, publicCode string) (*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE public_code = $1`
	row := q.QueryRowContext(ctx, query, publicCode)
	cert, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: failed to get certificate by code '%s': %w", publicCode, err)
	}
	return cert, nil
}

// revokeCertificate flips status to revoked. The WHERE status clause makes
// the one-way transition atomic: a concurrent revocation leaves zero rows
// affected here and surfaces as ErrNotActive.
func revokeCertificate(ctx context.Context, q Querier, id string, revokedAt time.Time) error {
	query := `UPDATE certificates SET status = $1, revoked_at = $2 WHERE id = $3 AND status = $4`
	res, err := q.ExecContext(ctx, query, string(model.StatusRevoked), revokedAt, id, string(model.StatusActive))
	if err != nil {
		return fmt.Errorf("storage: failed to revoke certificate '%s': %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: failed to read rows affected for revocation of '%s': %w", id, err)
	}
	if affected == 0 {
		return ErrNotActive
	}
	logger.Debug("Certificate revoked", zap.String("id", id))
	return nil
}

func listCertificates(ctx context.Context, q Querier) ([]*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates ORDER BY created_at DESC`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list certificates: %w", err)
	}
	defer rows.Close()
	return collectCertificates(rows)
}

func searchCertificates(ctx context.Context, q Querier, term string) ([]*model.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE company_name ILIKE '%' || $1 || '%' ORDER BY created_at DESC`
	rows, err := q.QueryContext(ctx, query, term)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to search certificates: %w", err)
	}
	defer rows.Close()
	return collectCertificates(rows)
}

func saveValidationLog(ctx context.Context, q Querier, entry *model.ValidationLogEntry) error {
	query := `INSERT INTO validation_logs (public_code, result, ip, user_agent, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`
	err := q.QueryRowContext(ctx, query, entry.PublicCode, string(entry.Result), entry.IP, entry.UserAgent, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("storage: failed to save validation log for '%s': %w", entry.PublicCode, err)
	}
	logger.Debug("Validation log saved", zap.String("public_code", entry.PublicCode), zap.String("result", string(entry.Result)))
	return nil
}

func listValidationLogs(ctx context.Context, q Querier, limit int) ([]*model.ValidationLogEntry, error) {
	query := `SELECT id, public_code, result, ip, user_agent, created_at FROM validation_logs ORDER BY created_at DESC LIMIT $1`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list validation logs: %w", err)
	}
	defer rows.Close()

	var entries []*model.ValidationLogEntry
	for rows.Next() {
		var e model.ValidationLogEntry
		var result string
		if err := rows.Scan(&e.ID, &e.PublicCode, &result, &e.IP, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: failed to scan validation log row: %w", err)
		}
		e.Result = model.ValidationResult(result)
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: validation log row iteration failed: %w", err)
	}
	return entries, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCertificate(row rowScanner) (*model.Certificate, error) {
	var cert model.Certificate
	var status string
	var revokedAt sql.NullTime
	err := row.Scan(&cert.ID, &cert.PublicCode, &cert.CompanyName, &cert.IssuedAt, &cert.ExpiresAt,
		&status, &revokedAt, &cert.DocumentURL, &cert.DocumentHash, &cert.CreatedAt)
	if err != nil {
		return nil, err
	}
	cert.Status = model.Status(status)
	if revokedAt.Valid {
		t := revokedAt.Time
		cert.RevokedAt = &t
	}
	return &cert, nil
}

func collectCertificates(rows *sql.Rows) ([]*model.Certificate, error) {
	var certs []*model.Certificate
	for rows.Next() {
		cert, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: failed to scan certificate row: %w", err)
		}
		certs = append(certs, cert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: certificate row iteration failed: %w", err)
	}
	return certs, nil
}
