package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage stores uploaded audit document bytes. The pipeline re-reads the
// original bytes from here when a document is processed or reprocessed.
type Storage interface {
	// Upload stores a document's bytes and returns the storage path
	Upload(ctx context.Context, documentID uuid.UUID, filename string, data io.Reader) (string, error)

	// Download retrieves a document's bytes by storage path
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)

	// Delete removes a stored document by storage path
	Delete(ctx context.Context, storagePath string) error
}

// BackendType selects the storage backend
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendS3    BackendType = "s3"
)

// Config holds storage backend configuration
type Config struct {
	Type         BackendType
	LocalPath    string
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// New creates a storage backend from configuration
func New(cfg Config) (Storage, error) {
	switch cfg.Type {
	case BackendLocal:
		return NewLocalStorage(cfg.LocalPath)
	case BackendS3:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewFromEnv creates a storage backend from environment variables
func NewFromEnv() (Storage, error) {
	backend := os.Getenv("STORAGE_TYPE")
	if backend == "" {
		backend = "local" // local is the development default
	}

	switch BackendType(backend) {
	case BackendLocal:
		localPath := os.Getenv("STORAGE_LOCAL_PATH")
		if localPath == "" {
			localPath = "./storage/documents"
		}
		return NewLocalStorage(localPath)

	case BackendS3:
		cfg := Config{
			Type:         BackendS3,
			S3Bucket:     os.Getenv("AWS_S3_BUCKET"),
			S3Region:     os.Getenv("AWS_REGION"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		}
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1"
		}
		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET environment variable is required for S3 storage")
		}
		return NewS3Storage(cfg)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", backend)
	}
}

// documentKey builds the storage path for a document. The id prefix spreads
// objects across key ranges; the id itself guarantees uniqueness.
func documentKey(documentID uuid.UUID, filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	base = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\':
			return '_'
		}
		return r
	}, base)

	id := documentID.String()
	return fmt.Sprintf("documents/%s/%s_%s%s", id[:2], id, base, ext)
}
