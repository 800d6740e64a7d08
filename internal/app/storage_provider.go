package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/platform/uploads"
)

var (
	newGCSUploadStore   = uploads.NewGCSStore
	newLocalUploadStore = uploads.NewLocalStore
)

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidBucket StorageProviderBootstrapErrorCode = "invalid_bucket"
	StorageProviderBootstrapErrorLocalDir      StorageProviderBootstrapErrorCode = "local_dir_unusable"
	StorageProviderBootstrapErrorConnectFailed StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code    StorageProviderBootstrapErrorCode
	Backend string
	Target  string
	Cause   error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "upload storage bootstrap failed"
	}
	return fmt.Sprintf(
		"upload storage bootstrap failed (code=%s backend=%q target=%q): %v",
		e.Code,
		e.Backend,
		e.Target,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveUploadStore picks GCS when a bucket is configured and local disk otherwise.
func resolveUploadStore(ctx context.Context, log *logger.Logger, cfg Config) (uploads.Store, error) {
	bucket := strings.TrimSpace(cfg.GCSUploadBucket)
	backend, target := "local", strings.TrimSpace(cfg.UploadDir)
	if bucket != "" {
		backend, target = "gcs", bucket
	}
	metrics := observability.Current()

	if backend == "gcs" && strings.ContainsAny(bucket, "/ ") {
		err := &StorageProviderBootstrapError{
			Code:    StorageProviderBootstrapErrorInvalidBucket,
			Backend: backend,
			Target:  target,
			Cause:   fmt.Errorf("invalid bucket name %q", bucket),
		}
		metrics.ObserveProviderBootstrap("uploads", backend, "error", string(err.Code))
		log.Error("Upload storage selection failed", "backend", backend, "target", target, "error_code", err.Code, "error", err)
		return nil, err
	}

	log.Info("Selecting upload storage", "backend", backend, "target", target)

	var (
		store uploads.Store
		err   error
	)
	if backend == "gcs" {
		store, err = newGCSUploadStore(ctx, log, bucket)
	} else {
		store, err = newLocalUploadStore(log, target)
	}
	if err != nil {
		classified := classifyStorageProviderBootstrapError(backend, target, err)
		code := storageProviderBootstrapErrorCode(classified)
		metrics.ObserveProviderBootstrap("uploads", backend, "error", string(code))
		log.Error("Upload storage bootstrap failed", "backend", backend, "target", target, "error_code", code, "error", classified)
		return nil, classified
	}
	metrics.ObserveProviderBootstrap("uploads", backend, "success", "none")
	return store, nil
}

func classifyStorageProviderBootstrapError(backend, target string, err error) error {
	var already *StorageProviderBootstrapError
	if errors.As(err, &already) {
		return err
	}
	code := StorageProviderBootstrapErrorConnectFailed
	if backend == "local" {
		code = StorageProviderBootstrapErrorLocalDir
	}
	return &StorageProviderBootstrapError{
		Code:    code,
		Backend: backend,
		Target:  target,
		Cause:   err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
