package chat

import (
	"context"
	"testing"

	"gorm.io/datatypes"

	"github.com/yungbote/nexusgraph-backend/internal/data/repos/testutil"
	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
)

func TestChatTurnRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewChatTurnRepo(db, testutil.Logger(t))

	if err := repo.Create(dbc, &types.ChatTurn{}); err == nil {
		t.Fatalf("Create without conversation id should fail")
	}

	for _, msg := range []string{"first", "second"} {
		row := &types.ChatTurn{
			ConversationID:   "conv-repo-test",
			UserMessage:      msg,
			AssistantMessage: "ok",
			Status:           "completed",
			Trace:            datatypes.JSON([]byte(`[]`)),
		}
		if err := repo.Create(dbc, row); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rows, err := repo.ListByConversation(dbc, "conv-repo-test", 10)
	if err != nil {
		t.Fatalf("ListByConversation: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("ListByConversation: want=2 got=%d", len(rows))
	}
}
