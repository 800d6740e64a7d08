package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	httpx "github.com/yungbote/nexusgraph-backend/internal/http"
	httpH "github.com/yungbote/nexusgraph-backend/internal/http/handlers"
	chatuc "github.com/yungbote/nexusgraph-backend/internal/modules/chat"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

type sliceFeeder struct {
	events []realtime.Event
	err    error
}

func (f sliceFeeder) Feed(_ context.Context, _ chat.ChatRequest, emit func(realtime.Event) bool) error {
	for _, ev := range f.events {
		if !emit(ev) {
			return nil
		}
	}
	return f.err
}

func chatServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	uc := chatuc.New(chatuc.UsecasesDeps{Log: log})
	sockets := realtime.NewSocketHub(log, func(ctx context.Context, _ string, req chat.ChatRequest, sink realtime.Sink) error {
		_, err := uc.Respond(ctx, req, sink)
		return err
	}, realtime.SocketOptions{})
	srv := httptest.NewServer(httpx.NewRouter(httpx.RouterConfig{
		Log:             log,
		ServiceName:     "nexusgraph-test",
		ChatHandler:     httpH.NewChatHandler(log, uc, 0),
		RealtimeHandler: httpH.NewRealtimeHandler(log, sockets),
	}))
	t.Cleanup(func() {
		sockets.CloseAll()
		srv.Close()
	})
	return srv
}

func assertPong(t *testing.T, st State) {
	t.Helper()
	require.Len(t, st.Steps, 2)
	assert.Equal(t, chat.AgentSwitchboard, st.Steps[0].Agent)
	assert.Equal(t, chat.AgentLibrarian, st.Steps[1].Agent)
	assert.Equal(t, 2, st.Completed())
	require.NotNil(t, st.Result)
	assert.Equal(t, "pong", st.Result.Message)
	assert.False(t, st.Loading)
}

// statusTrail records the statuses each agent went through, as seen by onUpdate.
func statusTrail() (map[string][]chat.AgentStatus, func(State)) {
	trail := map[string][]chat.AgentStatus{}
	return trail, func(st State) {
		for _, s := range st.Steps {
			seen := trail[s.Agent]
			if len(seen) == 0 || seen[len(seen)-1] != s.Status {
				trail[s.Agent] = append(seen, s.Status)
			}
		}
	}
}

func TestRunTurnPingOverHTTP(t *testing.T) {
	srv := chatServer(t)
	trail, onUpdate := statusTrail()

	st, err := RunTurn(context.Background(), &HTTPFeeder{BaseURL: srv.URL}, chat.ChatRequest{Message: "ping"}, onUpdate)
	require.NoError(t, err)
	assertPong(t, st)
	assert.NotEmpty(t, st.ConversationID)

	lifecycle := []chat.AgentStatus{chat.StatusPending, chat.StatusRunning, chat.StatusCompleted}
	assert.Equal(t, lifecycle, trail[chat.AgentSwitchboard])
	assert.Equal(t, lifecycle, trail[chat.AgentLibrarian])
}

func TestRunTurnPingOverSocket(t *testing.T) {
	srv := chatServer(t)
	feeder, err := DialSocket(context.Background(), srv.URL, "")
	require.NoError(t, err)
	defer feeder.Close()
	assert.NotEmpty(t, feeder.ClientID)

	st, err := RunTurn(context.Background(), feeder, chat.ChatRequest{Message: "ping", ConversationID: "conv-9"}, nil)
	require.NoError(t, err)
	assertPong(t, st)
	assert.Equal(t, "conv-9", st.ConversationID)

	// the socket stays open for the next turn
	st, err = RunTurn(context.Background(), feeder, chat.ChatRequest{Message: "ping"}, nil)
	require.NoError(t, err)
	assertPong(t, st)
}

func TestRunTurnTransportsAgree(t *testing.T) {
	srv := chatServer(t)
	feeder, err := DialSocket(context.Background(), srv.URL, "agree-client")
	require.NoError(t, err)
	defer feeder.Close()
	assert.Equal(t, "agree-client", feeder.ClientID)

	req := chat.ChatRequest{Message: "ping", ConversationID: "same"}
	viaHTTP, err := RunTurn(context.Background(), &HTTPFeeder{BaseURL: srv.URL}, req, nil)
	require.NoError(t, err)
	viaSocket, err := RunTurn(context.Background(), feeder, req, nil)
	require.NoError(t, err)

	agents := func(st State) []string {
		var out []string
		for _, s := range st.Steps {
			out = append(out, s.Agent+":"+string(s.Status)+":"+s.OutputSummary)
		}
		return out
	}
	assert.Equal(t, agents(viaHTTP), agents(viaSocket))
	assert.Equal(t, viaHTTP.Result.Message, viaSocket.Result.Message)
	assert.Equal(t, viaHTTP.ConversationID, viaSocket.ConversationID)
}

func TestRunTurnDropBeforeTerminal(t *testing.T) {
	events := pingTurn()
	// ack, then the first of the two step events
	feeder := sliceFeeder{events: events[:2]}

	st, err := RunTurn(context.Background(), feeder, chat.ChatRequest{Message: "ping"}, nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrStreamEnded)
	assert.True(t, Retryable(err))
	assert.False(t, st.Loading)
	assert.Nil(t, st.Result)
	assert.Len(t, st.Steps, 1)
}

func TestRunTurnTransportFailure(t *testing.T) {
	boom := errors.New("connection reset by peer")
	st, err := RunTurn(context.Background(), sliceFeeder{events: pingTurn()[:3], err: boom}, chat.ChatRequest{Message: "ping"}, nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, boom)
	assert.False(t, st.Loading)
}

func TestRunTurnErrorEvent(t *testing.T) {
	events := []realtime.Event{
		realtime.AckEvent{ConversationID: "c"},
		step(chat.AgentSynthesizer, chat.StatusFailed, "", "model unavailable"),
		realtime.ErrorEvent{Message: "could not complete", Code: realtime.CodePipelineFailed, Retryable: true},
	}
	st, err := RunTurn(context.Background(), sliceFeeder{events: events}, chat.ChatRequest{Message: "q"}, nil)
	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Retryable)
	assert.False(t, st.Loading)
}

func TestHTTPFeederNon2xx(t *testing.T) {
	srv := chatServer(t)
	_, err := RunTurn(context.Background(), &HTTPFeeder{BaseURL: srv.URL}, chat.ChatRequest{Message: "  "}, nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.Status)
	assert.Contains(t, te.Error(), realtime.CodeEmptyMessage)
	assert.False(t, Retryable(err))
}

func TestSocketFeederServerDrop(t *testing.T) {
	srv := chatServer(t)
	feeder, err := DialSocket(context.Background(), srv.URL, "drop-me")
	require.NoError(t, err)
	defer feeder.Close()

	// a second connection with the same id replaces, and closes, the first
	other, err := DialSocket(context.Background(), srv.URL, "drop-me")
	require.NoError(t, err)
	defer other.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := RunTurn(ctx, feeder, chat.ChatRequest{Message: "ping"}, nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.False(t, st.Loading)
}
