package gcp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/freightquote-backend/internal/platform/logger"
)

// DocumentStore answers whether a freight document object exists.
type DocumentStore interface {
	Exists(ctx context.Context, bucket, object string) (bool, error)
	Close() error
}

type gcsDocumentStore struct {
	log    *logger.Logger
	client *storage.Client
}

func NewDocumentStore(ctx context.Context, log *logger.Logger, cfg StorageConfig) (DocumentStore, error) {
	var (
		client *storage.Client
		err    error
	)
	switch cfg.Mode {
	case StorageModeGCS:
		opts := append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadOnly))
		client, err = storage.NewClient(ctx, opts...)
	case StorageModeGCSEmulator:
		// The storage client only honours the emulator through the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", cfg.EmulatorHost)
		client, err = storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &StorageConfigError{Field: "OBJECT_STORAGE_MODE", Value: string(cfg.Mode)}
	}
	if err != nil {
		return nil, fmt.Errorf("init storage client: %w", err)
	}
	log.Info("Document store ready", "mode", cfg.Mode, "inferred", cfg.Inferred)
	return &gcsDocumentStore{log: log.With("client", "GCSDocumentStore"), client: client}, nil
}

func (s *gcsDocumentStore) Exists(ctx context.Context, bucket, object string) (bool, error) {
	_, err := s.client.Bucket(bucket).Object(object).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist), errors.Is(err, storage.ErrBucketNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (s *gcsDocumentStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// ParseGSURI splits gs://bucket/path/to/object. ok is false for any other form.
func ParseGSURI(ref string) (bucket, object string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(ref), "gs://")
	if !found {
		return "", "", false
	}
	bucket, object, found = strings.Cut(rest, "/")
	if !found || bucket == "" || strings.Trim(object, "/") == "" {
		return "", "", false
	}
	return bucket, object, true
}
