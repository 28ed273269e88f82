// Package objstore stores rendered certificate documents in an
// S3-compatible object store.
package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

func init() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize zap logger: %v", err))
	}
	logger = l.With(zap.String("package", "objstore"))
}

// ErrKeyExists indicates a non-overwriting upload found the key already
// present.
var ErrKeyExists = errors.New("objstore: object key already exists")

// Store is the interface for publishing immutable document artifacts.
// Upload is non-overwriting: an existing key is a conflict, never replaced.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	PublicURL(key string) string
}

// --- MinIO / S3 implementation ---

// MinioStore publishes documents to an S3-compatible bucket.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

var _ Store = (*MinioStore)(nil)

// NewMinioStore connects to the object store and ensures the bucket exists.
// publicBase overrides the URL prefix reported for uploaded objects; when
// empty the endpoint URL is used.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, publicBase string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objstore: failed to create client for '%s': %w", endpoint, err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("objstore: failed to check bucket '%s': %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("objstore: failed to create bucket '%s': %w", bucket, err)
		}
		logger.Info("Created bucket", zap.String("bucket", bucket))
	}

	s := &MinioStore{client: client, bucket: bucket, publicBase: strings.TrimSuffix(publicBase, "/")}
	logger.Info("MinioStore initialized", zap.String("endpoint", endpoint), zap.String("bucket", bucket))
	return s, nil
}

// Upload writes the object if the key is absent. The existence check and
// the put are not atomic; the database's unique public-code constraint is
// the real guard, this check only narrows the window.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return "", ErrKeyExists
	}
	if resp := minio.ToErrorResponse(err); resp.Code != "NoSuchKey" {
		return "", fmt.Errorf("objstore: failed to stat object '%s': %w", key, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("objstore: failed to upload object '%s': %w", key, err)
	}
	logger.Debug("Object uploaded", zap.String("key", key), zap.Int("size", len(data)))
	return s.PublicURL(key), nil
}

// PublicURL returns the public location of an object.
func (s *MinioStore) PublicURL(key string) string {
	if s.publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", s.publicBase, s.bucket, key)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.client.EndpointURL().String(), "/"), s.bucket, key)
}

// --- In-memory implementation ---

// MemoryStore keeps objects in a map. Used by tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory object store. baseURL is the
// prefix reported in returned URLs.
func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *MemoryStore) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objects[key]; exists {
		return "", ErrKeyExists
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = buf
	return s.PublicURL(key), nil
}

func (s *MemoryStore) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Get returns a stored object. Test helper.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	return data, ok
}

// Len reports the number of stored objects. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
