package testutil

import (
	"os"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/nexusgraph-backend/internal/data/db"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

// memoryDSN is one in-memory sqlite database per test binary, shared by the pool's connections.
const memoryDSN = "file:nexusgraph_test?mode=memory&cache=shared"

var (
	dbOnce sync.Once
	svc    *db.Service
	dbErr  error

	logOnce sync.Once
	logg    *logger.Logger
	logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// Config is in-memory sqlite unless TEST_POSTGRES_DSN points at a Postgres database.
func Config() db.Config {
	if dsn := strings.TrimSpace(os.Getenv("TEST_POSTGRES_DSN")); dsn != "" {
		return db.Config{Driver: "postgres", DatabaseURL: dsn}
	}
	return db.Config{Driver: "sqlite", SQLitePath: memoryDSN}
}

// DB returns a migrated handle opened through data/db.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dbOnce.Do(func() {
		svc, dbErr = db.Open(Logger(tb), Config())
		if dbErr != nil {
			return
		}
		dbErr = db.AutoMigrateAll(svc.DB())
	})
	if dbErr != nil {
		tb.Fatalf("failed to init test db (%s): %v", Config().Driver, dbErr)
	}
	return svc.DB()
}

// Tx opens a transaction that is rolled back when the test ends.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
