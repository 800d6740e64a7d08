package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig(logger.Nop())
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, time.Hour, cfg.JobRetention)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Contains(t, cfg.AllowedExtensions, ".pdf")
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("MAX_UPLOAD_SIZE_MB", "5")
	t.Setenv("ALLOWED_EXTENSIONS", "TXT, .md")
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/ng")
	t.Setenv("MAX_RETRIES", "-2")
	t.Setenv("JOB_RETENTION", "90s")

	cfg := LoadConfig(logger.Nop())
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	assert.Equal(t, []string{".txt", ".md"}, cfg.AllowedExtensions)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/ng", cfg.AnalystDatabaseURL)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.JobRetention)
}

func TestLoadConfigFileLayer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("TOP_K: 4\nHTTP_ADDR: \":9000\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":9100")

	cfg := LoadConfig(logger.Nop())
	assert.Equal(t, 4, cfg.TopK)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
}
