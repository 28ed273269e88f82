package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blockadesystems/integricert/internal/model"
)

// MemoryStorage is an in-memory Storage implementation used by tests and
// the "memory" storage type. Not durable and not distributed.
type MemoryStorage struct {
	mu     sync.RWMutex
	certs  map[string]*model.Certificate // keyed by public code
	logs   []*model.ValidationLogEntry
	nextID int64
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		certs:  make(map[string]*model.Certificate),
		nextID: 1,
	}
}

func (s *MemoryStorage) CreateCertificate(ctx context.Context, cert *model.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.certs[cert.PublicCode]; exists {
		return ErrDuplicateCode
	}
	clone := *cert
	s.certs[cert.PublicCode] = &clone
	return nil
}

func (s *MemoryStorage) GetCertificateByCode(ctx context.Context, publicCode string) (*model.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cert, ok := s.certs[publicCode]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *cert
	return &clone, nil
}

func (s *MemoryStorage) RevokeCertificate(ctx context.Context, id string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cert := range s.certs {
		if cert.ID != id {
			continue
		}
		if cert.Status != model.StatusActive {
			return ErrNotActive
		}
		cert.Status = model.StatusRevoked
		t := revokedAt
		cert.RevokedAt = &t
		return nil
	}
	return ErrNotActive
}

func (s *MemoryStorage) ListCertificates(ctx context.Context) ([]*model.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	certs := make([]*model.Certificate, 0, len(s.certs))
	for _, cert := range s.certs {
		clone := *cert
		certs = append(certs, &clone)
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].CreatedAt.After(certs[j].CreatedAt) })
	return certs, nil
}

func (s *MemoryStorage) SearchCertificates(ctx context.Context, term string) ([]*model.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(term)
	var certs []*model.Certificate
	for _, cert := range s.certs {
		if strings.Contains(strings.ToLower(cert.CompanyName), needle) {
			clone := *cert
			certs = append(certs, &clone)
		}
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].CreatedAt.After(certs[j].CreatedAt) })
	return certs, nil
}

func (s *MemoryStorage) SaveValidationLog(ctx context.Context, entry *model.ValidationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *entry
	clone.ID = s.nextID
	s.nextID++
	s.logs = append(s.logs, &clone)
	entry.ID = clone.ID
	return nil
}

func (s *MemoryStorage) ListValidationLogs(ctx context.Context, limit int) ([]*model.ValidationLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []*model.ValidationLogEntry
	for i := len(s.logs) - 1; i >= 0 && len(entries) < limit; i-- {
		clone := *s.logs[i]
		entries = append(entries, &clone)
	}
	return entries, nil
}

// WithinTransaction runs fn against the store itself; the memory store has
// no transaction isolation.
func (s *MemoryStorage) WithinTransaction(ctx context.Context, fn func(ctx context.Context, txStorage Storage) error) error {
	return fn(ctx, s)
}

func (s *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (s *MemoryStorage) Close() error { return nil }
