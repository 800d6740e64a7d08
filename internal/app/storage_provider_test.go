package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/platform/uploads"
)

func TestResolveUploadStoreLocal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := resolveUploadStore(context.Background(), logger.Nop(), Config{UploadDir: dir})
	if err != nil {
		t.Fatalf("resolveUploadStore: %v", err)
	}
	if store.Backend() != "local" {
		t.Fatalf("backend: want=local got=%q", store.Backend())
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("upload dir not created: %v", err)
	}
}

func TestResolveUploadStoreInvalidBucket(t *testing.T) {
	_, err := resolveUploadStore(context.Background(), logger.Nop(), Config{GCSUploadBucket: "my bucket/x"})

	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
	}
	if got.Code != StorageProviderBootstrapErrorInvalidBucket {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorInvalidBucket, got.Code)
	}
}

func TestResolveUploadStoreGCSConnectFailed(t *testing.T) {
	orig := newGCSUploadStore
	t.Cleanup(func() { newGCSUploadStore = orig })
	newGCSUploadStore = func(context.Context, *logger.Logger, string) (uploads.Store, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	_, err := resolveUploadStore(context.Background(), logger.Nop(), Config{GCSUploadBucket: "nexus-uploads"})

	var got *StorageProviderBootstrapError
	if !errors.As(err, &got) {
		t.Fatalf("expected StorageProviderBootstrapError, got=%T", err)
	}
	if got.Code != StorageProviderBootstrapErrorConnectFailed || got.Backend != "gcs" {
		t.Fatalf("unexpected error: %+v", got)
	}
}

func TestClassifyStorageProviderBootstrapErrorLocal(t *testing.T) {
	err := classifyStorageProviderBootstrapError("local", "/root/forbidden", errors.New("permission denied"))
	if code := storageProviderBootstrapErrorCode(err); code != StorageProviderBootstrapErrorLocalDir {
		t.Fatalf("code: want=%q got=%q", StorageProviderBootstrapErrorLocalDir, code)
	}
	if code := storageProviderBootstrapErrorCode(errors.New("other")); code != StorageProviderBootstrapErrorConnectFailed {
		t.Fatalf("fallback code: got=%q", code)
	}
}
