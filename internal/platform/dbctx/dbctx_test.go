package dbctx

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type ctxKey struct{}

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestDBUsesBaseAndBindsContext(t *testing.T) {
	base := openMemory(t)
	ctx := context.WithValue(context.Background(), ctxKey{}, "req-1")

	got := For(ctx).DB(base)
	if got.Statement.Context.Value(ctxKey{}) != "req-1" {
		t.Fatalf("DB: request context not bound")
	}
	if got.Statement.ConnPool != base.Statement.ConnPool {
		t.Fatalf("DB: expected base connection pool")
	}
}

func TestDBPrefersTransaction(t *testing.T) {
	base := openMemory(t)
	tx := base.Begin()
	if tx.Error != nil {
		t.Fatalf("begin: %v", tx.Error)
	}
	defer tx.Rollback()

	dbc := For(context.Background()).WithTx(tx)
	if got := dbc.DB(base); got.Statement.ConnPool != tx.Statement.ConnPool {
		t.Fatalf("DB: expected transaction connection")
	}
	if dbc.Tx != tx {
		t.Fatalf("WithTx: transaction not kept")
	}
}

func TestDBWithoutContext(t *testing.T) {
	base := openMemory(t)
	got := Context{}.DB(base)
	if got.Statement.Context == nil {
		t.Fatalf("DB: nil context should fall back to background")
	}
	var one int
	if err := got.Raw("SELECT 1").Scan(&one).Error; err != nil || one != 1 {
		t.Fatalf("query: one=%d err=%v", one, err)
	}
}
