package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

// Store keeps accepted uploads until the ingestion worker reads them.
type Store interface {
	// Save writes r under a unique key derived from filename and returns the reference.
	Save(ctx context.Context, filename string, r io.Reader) (ref string, size int64, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	Backend() string
}

// ObjectKey builds "<uuid>_<base name>" so concurrent uploads of one filename never collide.
func ObjectKey(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "upload"
	}
	return uuid.New().String() + "_" + base
}

type localStore struct {
	dir string
	log *logger.Logger
}

func NewLocalStore(log *logger.Logger, dir string) (Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "./uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create dir: %w", err)
	}
	return &localStore{dir: dir, log: log.With("service", "LocalUploadStore")}, nil
}

func (s *localStore) Backend() string { return "local" }

func (s *localStore) Save(ctx context.Context, filename string, r io.Reader) (string, int64, error) {
	key := ObjectKey(filename)
	path := filepath.Join(s.dir, key)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("uploads: create %s: %w", key, err)
	}
	n, err := io.Copy(f, readerWithContext{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("uploads: write %s: %w", key, err)
	}
	return key, n, nil
}

func (s *localStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (s *localStore) Delete(_ context.Context, ref string) error {
	path, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *localStore) resolve(ref string) (string, error) {
	if ref == "" || strings.Contains(ref, "..") || strings.ContainsAny(ref, `/\`) {
		return "", fmt.Errorf("uploads: invalid reference %q", ref)
	}
	return filepath.Join(s.dir, ref), nil
}

type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
