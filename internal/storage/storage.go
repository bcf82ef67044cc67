package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/joseph-ayodele/expense-docs/internal/common"
)

// ObjectStore keeps the uploaded files.
type ObjectStore interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
}

// ObjectKey is where an uploaded file for a request is stored. The request id is
// escaped into a single segment under solicitudes/.
func ObjectKey(solicitudID, sha256Hex, ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join("solicitudes", keySegment(solicitudID), sha256Hex+ext)
}

func keySegment(s string) string {
	seg := url.PathEscape(s)
	if strings.Trim(seg, ".") == "" {
		// "", "." and ".." would collapse in path.Join
		seg = "_" + strings.ReplaceAll(seg, ".", "%2E")
	}
	return seg
}

// MinioStore wraps MinIO/S3 interactions for uploaded documents.
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

var _ ObjectStore = (*MinioStore)(nil)

// NewMinio creates a MinIO client from the storage config.
func NewMinio(cfg common.StorageConfig, logger *slog.Logger) (*MinioStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket, logger: logger}, nil
}

// EnsureBucket makes sure the bucket exists before use.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("storage.bucket.created", "bucket", s.bucket)
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, content []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(content), int64(len(content)), opts); err != nil {
		return fmt.Errorf("upload object %s: %w", key, err)
	}
	s.logger.Debug("storage.put.ok",
		"req_id", common.RequestIDFromContext(ctx),
		"solicitud_id", common.SolicitudIDFromContext(ctx),
		"bucket", s.bucket, "key", key, "size", len(content))
	return nil
}

// MemoryStore keeps objects in process memory. Used by `serve --inmem` and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	content     []byte
	contentType string
}

var _ ObjectStore = (*MemoryStore)(nil)

func NewMemory() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) Put(ctx context.Context, key string, content []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{content: bytes.Clone(content), contentType: contentType}
	return nil
}

// Get returns a stored object and its content type.
func (m *MemoryStore) Get(key string) ([]byte, string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(o.content), o.contentType, true
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
