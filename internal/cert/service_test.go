package cert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockadesystems/integricert/internal/code"
	"github.com/blockadesystems/integricert/internal/config"
	"github.com/blockadesystems/integricert/internal/document"
	"github.com/blockadesystems/integricert/internal/model"
	"github.com/blockadesystems/integricert/internal/objstore"
	"github.com/blockadesystems/integricert/internal/ratelimit"
	"github.com/blockadesystems/integricert/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		OrganizationName:  "Programas de Integridad",
		ProgramName:       "Programa de Integridad",
		PublicBaseURL:     "http://registry.test",
		CertValidityYears: 1,
		RateLimitMax:      10,
		RateLimitWindow:   time.Minute,
	}
}

// testHarness bundles the service with its fakes and a settable clock.
type testHarness struct {
	svc     *Service
	store   *storage.MemoryStorage
	objects *objstore.MemoryStore
	now     time.Time
}

func newTestHarness(t *testing.T, limit int) *testHarness {
	t.Helper()
	cfg := testConfig()
	cfg.RateLimitMax = limit
	h := &testHarness{
		store:   storage.NewMemoryStorage(),
		objects: objstore.NewMemoryStore(cfg.PublicBaseURL + "/documents"),
		now:     time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC),
	}
	h.svc = New(cfg, h.store, h.objects, ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))
	h.svc.now = func() time.Time { return h.now }
	return h
}

func (h *testHarness) advance(d time.Duration) { h.now = h.now.Add(d) }

func (h *testHarness) logs(t *testing.T) []*model.ValidationLogEntry {
	t.Helper()
	entries, err := h.store.ListValidationLogs(context.Background(), 1000)
	require.NoError(t, err)
	return entries
}

func TestIssueAndValidate_Active(t *testing.T) {
	h := newTestHarness(t, 10)
	ctx := context.Background()

	issued, err := h.svc.Issue(ctx, IssueRequest{CompanyName: "Empresa ABC"})
	require.NoError(t, err)

	assert.Regexp(t, code.Pattern, issued.PublicCode)
	assert.Equal(t, "Empresa ABC", issued.CompanyName)
	assert.Equal(t, model.StatusActive, issued.Status)
	assert.Nil(t, issued.RevokedAt)
	assert.True(t, issued.ExpiresAt.After(issued.IssuedAt))
	assert.Equal(t, issued.IssuedAt.AddDate(1, 0, 0), issued.ExpiresAt)
	assert.NotEmpty(t, issued.DocumentURL)

	// The published artifact hashes to the persisted integrity stamp.
	stored, ok := h.objects.Get(issued.PublicCode + ".pdf")
	require.True(t, ok, "document should be uploaded under <code>.pdf")
	assert.Equal(t, document.Stamp(stored), issued.DocumentHash)

	// Validation of a sloppy rendition of the same code succeeds.
	summary, err := h.svc.Validate(ctx, "  "+string(issued.PublicCode[0])+issued.PublicCode[1:]+" ", "203.0.113.9", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, summary.State)
	assert.Equal(t, "Empresa ABC", summary.CompanyName)
	assert.Equal(t, issued.PublicCode, summary.PublicCode)
	assert.Equal(t, issued.DocumentURL, summary.DocumentURL)

	entries := h.logs(t)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ResultFound, entries[0].Result)
	assert.Equal(t, issued.PublicCode, entries[0].PublicCode)
	assert.Equal(t, "203.0.113.9", entries[0].IP)
	assert.Equal(t, "test-agent", entries[0].UserAgent)
}

func TestValidate_ExpiredAfterValidityWindow(t *testing.T) {
	h := newTestHarness(t, 10)
	ctx := context.Background()

	issued, err := h.svc.Issue(ctx, IssueRequest{CompanyName: "Empresa ABC"})
	require.NoError(t, err)

	h.advance(366 * 24 * time.Hour)

	summary, err := h.svc.Validate(ctx, issued.PublicCode, "203.0.113.9", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, model.StateExpired, summary.State)

	entries := h.logs(t)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ResultExpired, entries[0].Result)
}

func TestValidate_RevocationPrecedesExpiry(t *testing.T) {
	h := newTestHarness(t, 10)
	ctx := context.Background()

	issued, err := h.svc.Issue(ctx, IssueRequest{CompanyName: "Empresa ABC"})
	require.NoError(t, err)
	require.NoError(t, h.svc.Revoke(ctx, issued.PublicCode))

	// Aged well past expiry: revocation still wins.
	h.advance(2 * 366 * 24 * time.Hour)

	summary, err := h.svc.Validate(ctx, issued.PublicCode, "203.0.113.9", "test-agent")
	require.NoError(t, err)
	assert.Equal(t, model.StateRevoked, summary.State)

	entries := h.logs(t)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ResultRevoked, entries[0].Result)
}

func TestRevoke_IsOneWay(t *testing.T) {
	h := newTestHarness(t, 10)
	ctx := context.Background()

	issued, err := h.svc.Issue(ctx, IssueRequest{CompanyName: "Empresa ABC"})
	require.NoError(t, err)

	require.NoError(t, h.svc.Revoke(ctx, issued.PublicCode))
	err = h.svc.Revoke(ctx, issued.PublicCode)
	assert.ErrorIs(t, err, ErrAlreadyRevoked)

	stored, err := h.store.GetCertificateByCode(ctx, issued.PublicCode)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRevoked, stored.Status)
	require.NotNil(t, stored.RevokedAt)
	assert.Equal(t, h.now.UTC(), stored.RevokedAt.UTC())
}

func TestRevoke_NormalizesCode(t *testing.T) {
	h := newTestHarness(t, 10)
	ctx := context.Background()

	issued, err := h.svc.Issue(ctx, IssueRequest{CompanyName: "Empresa ABC"})
	require.NoError(t, err)

	require.NoError(t, h.svc.Revoke(ctx, "  "+issued.PublicCode+"  "))
}

func TestRevoke_UnknownCode(t *testing.T) {
	h := newTestHarness(t, 10)
	err := h.svc.Revoke(context.Background(), "PIC-ZZZZ-9999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevoke_EmptyCode(t *testing.T) {
	h := newTestHarness(t, 10)
	err := h.svc.Revoke(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidate_UnknownCodeWritesAuditEntry(t *testing.T) {
	h := newTestHarness(t, 10)

	_, err := h.svc.Validate(context.Background(), "PIC-0000-0000", "203.0.113.9", "test-agent")
	assert.ErrorIs(t, err, ErrNotFound)

	entries := h.logs(t)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ResultNotFound, entries[0].Result)
	assert.Equal(t, "PIC-0000-0000", entries[0].PublicCode)
}

func TestValidate_EmptyCode(t *testing.T) {
	h := newTestHarness(t, 10)

	_, err := h.svc.Validate(context.Background(), "   ", "203.0.113.9", "test-agent")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Empty(t, h.logs(t), "malformed input is rejected before any audit write")
}

func TestIssue_EmptyCompanyName(t *testing.T) {
	h := newTestHarness(t, 10)
	ctx := context.Background()

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := h.svc.Issue(ctx, IssueRequest{CompanyName: name})
		assert.ErrorIs(t, err, ErrInvalidInput)
	}

	certs, err := h.store.ListCertificates(ctx)
	require.NoError(t, err)
	assert.Empty(t, certs, "no certificate row may exist after rejected issuance")
	assert.Zero(t, h.objects.Len(), "no document may be uploaded after rejected issuance")
}

func TestValidate_RateLimited(t *testing.T) {
	h := newTestHarness(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.svc.Validate(ctx, "PIC-0000-0000", "203.0.113.9", "test-agent")
		assert.ErrorIs(t, err, ErrNotFound, "call %d should pass the limiter", i+1)
	}
	_, err := h.svc.Validate(ctx, "PIC-0000-0000", "203.0.113.9", "test-agent")
	assert.ErrorIs(t, err, ErrRateLimited)

	// The rate-limited call performed no lookup and wrote no audit entry.
	assert.Len(t, h.logs(t), 3)

	// A different origin is unaffected.
	_, err = h.svc.Validate(ctx, "PIC-0000-0000", "198.51.100.7", "test-agent")
	assert.ErrorIs(t, err, ErrNotFound)
}

// duplicateStore forces code collisions on the first insert attempts.
type duplicateStore struct {
	*storage.MemoryStorage
	failures int
}

func (d *duplicateStore) CreateCertificate(ctx context.Context, cert *model.Certificate) error {
	if d.failures > 0 {
		d.failures--
		return storage.ErrDuplicateCode
	}
	return d.MemoryStorage.CreateCertificate(ctx, cert)
}

func TestIssue_RetriesOnCodeCollision(t *testing.T) {
	cfg := testConfig()
	store := &duplicateStore{MemoryStorage: storage.NewMemoryStorage(), failures: 2}
	objects := objstore.NewMemoryStore(cfg.PublicBaseURL + "/documents")
	svc := New(cfg, store, objects, ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))

	issued, err := svc.Issue(context.Background(), IssueRequest{CompanyName: "Empresa ABC"})
	require.NoError(t, err)
	assert.Regexp(t, code.Pattern, issued.PublicCode)
}

func TestIssue_FailsAfterExhaustedRetries(t *testing.T) {
	cfg := testConfig()
	store := &duplicateStore{MemoryStorage: storage.NewMemoryStorage(), failures: maxCodeAttempts}
	objects := objstore.NewMemoryStore(cfg.PublicBaseURL + "/documents")
	svc := New(cfg, store, objects, ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow))

	_, err := svc.Issue(context.Background(), IssueRequest{CompanyName: "Empresa ABC"})
	assert.ErrorIs(t, err, ErrIssuanceFailed)
}

func TestSearchCompany(t *testing.T) {
	h := newTestHarness(t, 10)
	ctx := context.Background()

	issued, err := h.svc.Issue(ctx, IssueRequest{CompanyName: "Empresa ABC"})
	require.NoError(t, err)
	revoked, err := h.svc.Issue(ctx, IssueRequest{CompanyName: "Revocada SpA"})
	require.NoError(t, err)
	require.NoError(t, h.svc.Revoke(ctx, revoked.PublicCode))

	result, err := h.svc.SearchCompany(ctx, "empresa")
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, issued.CompanyName, result.CompanyName)

	// A revoked certificate does not count as certified.
	result, err = h.svc.SearchCompany(ctx, "Revocada")
	require.NoError(t, err)
	assert.False(t, result.Found)

	result, err = h.svc.SearchCompany(ctx, "Desconocida")
	require.NoError(t, err)
	assert.False(t, result.Found)

	_, err = h.svc.SearchCompany(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
