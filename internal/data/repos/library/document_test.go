package library

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/nexusgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
)

func TestDocumentRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewDocumentRepo(db, testutil.Logger(t))

	id := "doc_" + uuid.NewString()[:16]
	doc := &types.Document{ID: id, Filename: "handbook.md", ChunkCount: 3, Status: types.DocumentProcessed}
	if err := repo.Upsert(dbc, doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	first, err := repo.GetByID(dbc, id)
	if err != nil || first == nil {
		t.Fatalf("GetByID: got=%+v err=%v", first, err)
	}

	again := &types.Document{ID: id, Filename: "handbook-v2.md", ChunkCount: 5, Status: types.DocumentProcessed}
	if err := repo.Upsert(dbc, again); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	got, err := repo.GetByID(dbc, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ChunkCount != 5 || got.Filename != "handbook-v2.md" {
		t.Fatalf("GetByID: unexpected row %+v", got)
	}
	if !got.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", first.CreatedAt, got.CreatedAt)
	}

	n, err := repo.Count(dbc)
	if err != nil || n < 1 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}
	if missing, err := repo.GetByID(dbc, "doc_missing"); err != nil || missing != nil {
		t.Fatalf("GetByID missing: got=%+v err=%v", missing, err)
	}
}
