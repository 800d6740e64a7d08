package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/datatypes"

	"github.com/yungbote/nexusgraph-backend/internal/data/repos"
	types "github.com/yungbote/nexusgraph-backend/internal/domain"
	domainchat "github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/modules/chat/steps"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/apierr"
	"github.com/yungbote/nexusgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/nexusgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

const (
	TurnCompleted = "completed"
	TurnFailed    = "failed"
	TurnAbandoned = "abandoned"
)

type UsecasesDeps struct {
	Log *logger.Logger

	// Turns persists closed turns. Optional.
	Turns repos.ChatTurnRepo

	Pipeline steps.PipelineDeps
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Pipeline.Log == nil {
		deps.Pipeline.Log = deps.Log
	}
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

// Respond runs one turn and streams it onto sink. Without a conversation id in req, the one
// carried by the request's trace data is used, else a new one is assigned. The sink is
// always closed when Respond returns. Cancelling ctx abandons the turn: nothing further is written and ctx.Err() is
// returned.
func (u Usecases) Respond(ctx context.Context, req domainchat.ChatRequest, sink realtime.Sink) (*domainchat.ChatResponse, error) {
	transport := transportOf(sink)
	log := u.deps.Log.With("transport", transport)
	mux := realtime.NewMultiplexer(sink, log)
	// No write reaches the sink once Respond has returned.
	defer mux.Abort()

	message := strings.TrimSpace(req.Message)
	if message == "" {
		_ = mux.Fail(ctx, realtime.ErrorEvent{Message: "message is required", Code: realtime.CodeEmptyMessage})
		return nil, apierr.BadRequest(realtime.CodeEmptyMessage, errors.New("message is required"))
	}
	td := ctxutil.GetTraceData(ctx)
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" && td != nil {
		conversationID = td.ConversationID
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	if td != nil {
		td.ConversationID = conversationID
		log = log.With(ctxutil.LogFields(ctx)...)
	} else {
		log = log.With("conversation_id", conversationID)
	}

	ctx, span := observability.StartSpan(ctx, "chat.turn",
		attribute.String("chat.transport", transport),
		attribute.String("chat.conversation_id", conversationID),
	)
	defer span.End()

	start := time.Now()
	_ = mux.Emit(realtime.AckEvent{ConversationID: conversationID})
	em := steps.NewEmitter(mux, log)

	out, err := steps.RunPipeline(ctx, u.deps.Pipeline, em, message)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if ctx.Err() != nil {
		return nil, u.abandon(ctx, log, mux, transport, elapsed)
	}

	if err != nil {
		span.RecordError(err)
		log.Error("chat pipeline failed", "error", err, "elapsed_ms", elapsed)
		if ferr := mux.Fail(ctx, realtime.ErrorEvent{
			Message:   "The assistant could not complete this request: " + err.Error(),
			Code:      realtime.CodePipelineFailed,
			Retryable: true,
		}); ferr != nil && ctx.Err() != nil {
			return nil, u.abandon(ctx, log, mux, transport, elapsed)
		}
		u.persist(ctx, log, &types.ChatTurn{
			ConversationID:   conversationID,
			UserMessage:      message,
			Status:           TurnFailed,
			Error:            err.Error(),
			Trace:            toJSON(em.Trace()),
			ProcessingTimeMs: elapsed,
		})
		observability.Current().IncTurn(transport, TurnFailed)
		return nil, apierr.New(http.StatusInternalServerError, realtime.CodePipelineFailed, err)
	}

	sources := out.Sources
	if sources == nil {
		sources = []map[string]any{}
	}
	res := domainchat.TurnResult{
		Message:          out.Answer,
		ConversationID:   conversationID,
		Data:             out.Data,
		ExecutionTrace:   em.Trace(),
		Sources:          sources,
		ProcessingTimeMs: elapsed,
		Validation:       out.Validation,
	}
	if err := mux.Finish(ctx, res); err != nil && ctx.Err() != nil {
		return nil, u.abandon(ctx, log, mux, transport, elapsed)
	}
	if err := mux.Err(); err != nil {
		log.Warn("stream broke before the turn closed", "error", err, "dropped", mux.Dropped())
	}

	u.persist(ctx, log, &types.ChatTurn{
		ConversationID:   conversationID,
		UserMessage:      message,
		AssistantMessage: res.Message,
		Status:           TurnCompleted,
		Data:             toJSON(res.Data),
		Trace:            toJSON(res.ExecutionTrace),
		Validation:       toJSON(res.Validation),
		ProcessingTimeMs: elapsed,
	})
	observability.Current().IncTurn(transport, TurnCompleted)
	log.Info("turn completed",
		"intent", out.Intent,
		"steps", len(res.ExecutionTrace),
		"retries", out.Retries,
		"elapsed_ms", elapsed,
	)
	return &res, nil
}

// abandon stops the stream without a terminal event once the subscriber is gone.
func (u Usecases) abandon(ctx context.Context, log *logger.Logger, mux *realtime.Multiplexer, transport string, elapsed float64) error {
	mux.Abort()
	observability.Current().IncTurn(transport, TurnAbandoned)
	log.Info("turn abandoned", "elapsed_ms", elapsed, "dropped", mux.Dropped())
	return ctx.Err()
}

// History returns the newest persisted turns of a conversation.
func (u Usecases) History(ctx context.Context, conversationID string, limit int) ([]*types.ChatTurn, error) {
	if u.deps.Turns == nil {
		return []*types.ChatTurn{}, nil
	}
	if strings.TrimSpace(conversationID) == "" {
		return nil, apierr.BadRequest("missing_conversation_id", errors.New("conversation id is required"))
	}
	return u.deps.Turns.ListByConversation(dbctx.For(ctx), conversationID, limit)
}

func (u Usecases) persist(ctx context.Context, log *logger.Logger, row *types.ChatTurn) {
	if u.deps.Turns == nil {
		return
	}
	// Detached: the request may already be gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := u.deps.Turns.Create(dbctx.For(ctx), row); err != nil {
		log.Warn("persist chat turn failed", "error", err)
	}
}

func toJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return datatypes.JSON(b)
}

func transportOf(sink realtime.Sink) string {
	switch sink.(type) {
	case *realtime.SSESink:
		return "sse"
	case *realtime.SocketSink:
		return "socket"
	default:
		return "http"
	}
}
