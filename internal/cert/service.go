// Package cert implements the certificate lifecycle engine: issuance,
// revocation, and the anonymous, rate-limited validation protocol.
package cert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/blockadesystems/integricert/internal/code"
	"github.com/blockadesystems/integricert/internal/config"
	"github.com/blockadesystems/integricert/internal/document"
	"github.com/blockadesystems/integricert/internal/model"
	"github.com/blockadesystems/integricert/internal/objstore"
	"github.com/blockadesystems/integricert/internal/ratelimit"
	"github.com/blockadesystems/integricert/internal/storage"
)

var logger *zap.Logger

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("cert: failed to initialize zap logger: %v", err))
	}
	logger = l.With(zap.String("package", "cert"))
}

// maxCodeAttempts bounds regeneration when a freshly generated public code
// collides with an existing one.
const maxCodeAttempts = 5

// Service implements the certificate lifecycle operations.
type Service struct {
	cfg      *config.Config
	store    storage.Storage
	objects  objstore.Store
	renderer *document.Renderer
	limiter  ratelimit.Limiter
	now      func() time.Time
}

// New creates the certificate service. The limiter guards only Validate;
// operator-facing operations are not rate limited here.
func New(cfg *config.Config, store storage.Storage, objects objstore.Store, limiter ratelimit.Limiter) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		objects:  objects,
		renderer: document.NewRenderer(cfg.OrganizationName, cfg.ProgramName),
		limiter:  limiter,
		now:      time.Now,
	}
}

// IssueRequest carries the operator-supplied issuance inputs. Origin is the
// requesting host's base URL, used to build the validation link embedded in
// the document; empty falls back to the configured public base URL.
type IssueRequest struct {
	CompanyName string
	Origin      string
}

// Issue creates a certificate: generate code, render the document, stamp
// it, publish it, and insert the record. The caller's operator identity has
// already been verified by the transport layer.
//
// A failure after upload but before insert can orphan the uploaded object;
// that is acceptable garbage, but the call always reports failure, never a
// silent success.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*model.Certificate, error) {
	companyName := strings.TrimSpace(req.CompanyName)
	if companyName == "" {
		return nil, fmt.Errorf("%w: company name is required", ErrInvalidInput)
	}

	issuedAt := s.now().UTC()
	expiresAt := issuedAt.AddDate(s.cfg.CertValidityYears, 0, 0)
	base := strings.TrimSuffix(req.Origin, "/")
	if base == "" {
		base = strings.TrimSuffix(s.cfg.PublicBaseURL, "/")
	}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		publicCode, err := code.Generate()
		if err != nil {
			return nil, fmt.Errorf("cert: failed to generate public code: %w", err)
		}
		validationURL := fmt.Sprintf("%s/validar?code=%s", base, publicCode)

		docBytes, err := s.renderer.Render(document.Data{
			CompanyName:   companyName,
			IssuedAt:      issuedAt,
			ExpiresAt:     expiresAt,
			PublicCode:    publicCode,
			ValidationURL: validationURL,
		})
		if err != nil {
			return nil, fmt.Errorf("cert: failed to render document: %w", err)
		}
		docHash := document.Stamp(docBytes)

		docURL, err := s.objects.Upload(ctx, publicCode+".pdf", docBytes, "application/pdf")
		if err != nil {
			if errors.Is(err, objstore.ErrKeyExists) {
				// Another issuance won this key; regenerate.
				logger.Warn("Object key collision during issuance, regenerating code",
					zap.String("public_code", publicCode), zap.Int("attempt", attempt))
				continue
			}
			return nil, fmt.Errorf("cert: failed to upload document: %w", err)
		}

		certificate := &model.Certificate{
			ID:           uuid.NewString(),
			PublicCode:   publicCode,
			CompanyName:  companyName,
			IssuedAt:     issuedAt,
			ExpiresAt:    expiresAt,
			Status:       model.StatusActive,
			DocumentURL:  docURL,
			DocumentHash: docHash,
			CreatedAt:    issuedAt,
		}
		if err := s.store.CreateCertificate(ctx, certificate); err != nil {
			if errors.Is(err, storage.ErrDuplicateCode) {
				// The uploaded object is now orphaned garbage; eventual
				// cleanup is out of scope.
				logger.Warn("Public code collision during issuance, regenerating code",
					zap.String("public_code", publicCode), zap.Int("attempt", attempt))
				continue
			}
			return nil, fmt.Errorf("cert: failed to persist certificate: %w", err)
		}

		logger.Info("Certificate issued",
			zap.String("public_code", publicCode),
			zap.String("company_name", companyName),
			zap.Time("expires_at", expiresAt))
		return certificate, nil
	}

	return nil, fmt.Errorf("%w: exhausted %d code generation attempts", ErrIssuanceFailed, maxCodeAttempts)
}

// Revoke transitions a certificate from active to revoked. The transition
// is one-way; revoking an already-revoked certificate fails with
// ErrAlreadyRevoked rather than succeeding silently.
func (s *Service) Revoke(ctx context.Context, publicCode string) error {
	normalized := code.Normalize(publicCode)
	if normalized == "" {
		return fmt.Errorf("%w: public code is required", ErrInvalidInput)
	}

	certificate, err := s.store.GetCertificateByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("cert: failed to load certificate for revocation: %w", err)
	}
	if certificate.Status == model.StatusRevoked {
		return ErrAlreadyRevoked
	}

	if err := s.store.RevokeCertificate(ctx, certificate.ID, s.now().UTC()); err != nil {
		if errors.Is(err, storage.ErrNotActive) {
			// A concurrent revocation got there first.
			return ErrAlreadyRevoked
		}
		return fmt.Errorf("cert: failed to revoke certificate: %w", err)
	}

	logger.Info("Certificate revoked", zap.String("public_code", normalized))
	return nil
}

// Validate performs the anonymous lookup. Every call that passes the rate
// limiter appends exactly one audit entry, including misses; a rate-limited
// call performs no lookup and writes no entry.
func (s *Service) Validate(ctx context.Context, rawCode, ip, userAgent string) (*model.CertificateSummary, error) {
	allowed, err := s.limiter.Allow(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("cert: rate limiter failure: %w", err)
	}
	if !allowed {
		return nil, ErrRateLimited
	}

	normalized := code.Normalize(rawCode)
	if normalized == "" {
		return nil, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}

	certificate, err := s.store.GetCertificateByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.appendLog(ctx, normalized, model.ResultNotFound, ip, userAgent)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cert: failed to look up certificate: %w", err)
	}

	state := EvaluateState(certificate.Status, certificate.ExpiresAt, s.now())
	result := model.ValidationResult(state)
	if state == model.StateActive {
		result = model.ResultFound
	}
	s.appendLog(ctx, normalized, result, ip, userAgent)

	return &model.CertificateSummary{
		CompanyName: certificate.CompanyName,
		IssuedAt:    certificate.IssuedAt,
		ExpiresAt:   certificate.ExpiresAt,
		PublicCode:  certificate.PublicCode,
		State:       state,
		DocumentURL: certificate.DocumentURL,
	}, nil
}

// appendLog writes the audit entry for a validation attempt. A failed write
// is logged but does not change the anonymous caller's outcome; they cannot
// remediate it.
func (s *Service) appendLog(ctx context.Context, publicCode string, result model.ValidationResult, ip, userAgent string) {
	entry := &model.ValidationLogEntry{
		PublicCode: publicCode,
		Result:     result,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.SaveValidationLog(ctx, entry); err != nil {
		logger.Error("Failed to append validation log entry",
			zap.Error(err), zap.String("public_code", publicCode), zap.String("result", string(result)))
	}
}

// CompanySearchResult is the outcome of a public company search.
type CompanySearchResult struct {
	Found       bool   `json:"found"`
	CompanyName string `json:"company_name,omitempty"`
}

// SearchCompany reports whether any certificate matching the term by
// company-name substring currently evaluates to active.
func (s *Service) SearchCompany(ctx context.Context, term string) (*CompanySearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}

	certs, err := s.store.SearchCertificates(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("cert: failed to search certificates: %w", err)
	}
	now := s.now()
	for _, certificate := range certs {
		if EvaluateState(certificate.Status, certificate.ExpiresAt, now) == model.StateActive {
			return &CompanySearchResult{Found: true, CompanyName: certificate.CompanyName}, nil
		}
	}
	return &CompanySearchResult{Found: false}, nil
}

// ListCertificates returns all certificates, newest first, for the operator
// console.
func (s *Service) ListCertificates(ctx context.Context) ([]*model.Certificate, error) {
	certs, err := s.store.ListCertificates(ctx)
	if err != nil {
		return nil, fmt.Errorf("cert: failed to list certificates: %w", err)
	}
	return certs, nil
}

// ListValidationLogs returns the most recent audit entries.
func (s *Service) ListValidationLogs(ctx context.Context, limit int) ([]*model.ValidationLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries, err := s.store.ListValidationLogs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("cert: failed to list validation logs: %w", err)
	}
	return entries, nil
}
