package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type gcsStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore stores uploads as objects under "uploads/" in bucket.
func NewGCSStore(ctx context.Context, log *logger.Logger, bucket string) (Store, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("uploads: missing GCS bucket")
	}
	opts := append(clientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("uploads: create storage client: %w", err)
	}
	serviceLog := log.With("service", "GCSUploadStore")
	serviceLog.Info("object storage initialized", "bucket", bucket)
	return &gcsStore{log: serviceLog, client: client, bucket: bucket, prefix: "uploads/"}, nil
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func (s *gcsStore) Backend() string { return "gcs" }

func (s *gcsStore) Save(ctx context.Context, filename string, r io.Reader) (string, int64, error) {
	key := ObjectKey(filename)
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(s.prefix + key).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return "", 0, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return key, n, nil
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}

func (s *gcsStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Minute)
	rd, err := s.client.Bucket(s.bucket).Object(s.prefix + ref).NewReader(ctx2)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open GCS object: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: rd, cancel: cancel}, nil
}

func (s *gcsStore) Delete(ctx context.Context, ref string) error {
	err := s.client.Bucket(s.bucket).Object(s.prefix + ref).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return err
	}
	return nil
}
