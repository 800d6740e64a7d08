package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

// NewClientID is the path value that asks the hub to assign an id.
const NewClientID = "new"

// TurnHandler runs one chat turn, writing its events to sink. It must return once the
// turn is closed or ctx is cancelled.
type TurnHandler func(ctx context.Context, clientID string, req chat.ChatRequest, sink Sink) error

type SocketOptions struct {
	WriteTimeout   time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

func (o SocketOptions) withDefaults() SocketOptions {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 1 << 20
	}
	return o
}

// SocketMessage is the inbound request frame.
type SocketMessage struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// SocketHub owns every connected chat socket, keyed by client id. A client runs at most one
// turn at a time; a request that arrives while a turn is in flight is rejected with a
// retryable turn_in_progress error and the running turn continues.
type SocketHub struct {
	log      *logger.Logger
	opts     SocketOptions
	handler  TurnHandler
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*SocketClient
}

func NewSocketHub(log *logger.Logger, handler TurnHandler, opts SocketOptions) *SocketHub {
	opts = opts.withDefaults()
	h := &SocketHub{
		log:     log.With("component", "SocketHub"),
		opts:    opts,
		handler: handler,
		clients: make(map[string]*SocketClient),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *SocketHub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.opts.AllowedOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// SocketClient is one connected socket.
type SocketClient struct {
	ID string

	conn         *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	busy         atomic.Bool
	closeOnce    sync.Once
	log          *logger.Logger
	// trace is copied from the upgrade request into every turn.
	trace ctxutil.TraceData
}

func (c *SocketClient) write(env Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ctx.Err(); err != nil {
		return ErrStreamClosed
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteJSON(env)
}

// turnContext gives each turn its own request id under the socket's trace.
func (c *SocketClient) turnContext() context.Context {
	td := c.trace
	td.RequestID = uuid.NewString()
	td.ConversationID = ""
	return ctxutil.WithTraceData(c.ctx, &td)
}

func (c *SocketClient) writeError(code, msg string, retryable bool) {
	if err := c.write(MustEncode(ErrorEvent{Message: msg, Code: code, Retryable: retryable})); err != nil {
		c.log.Debug("socket error frame not delivered", "code", code, "error", err)
	}
}

func (c *SocketClient) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// SocketSink carries one turn over a client's socket. Closing it ends the turn; the socket
// stays open for the next request.
type SocketSink struct {
	client  *SocketClient
	closed  atomic.Bool
	release func()
}

// Send writes env to the socket. The client is free for its next request as soon as the
// terminal envelope is handed to the socket.
func (s *SocketSink) Send(ctx context.Context, env Envelope) error {
	if s.closed.Load() {
		return ErrStreamClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if env.Terminal() {
		s.closed.Store(true)
		s.done()
	}
	return s.client.write(env)
}

func (s *SocketSink) Close() error {
	s.closed.Store(true)
	s.done()
	return nil
}

func (s *SocketSink) done() {
	if s.release != nil {
		s.release()
	}
}

// ServeWS upgrades the request and serves the socket until it disconnects.
func (h *SocketHub) ServeWS(w http.ResponseWriter, r *http.Request, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || clientID == NewClientID {
		clientID = uuid.New().String()
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &SocketClient{
		ID:           clientID,
		conn:         conn,
		writeTimeout: h.opts.WriteTimeout,
		ctx:          ctx,
		cancel:       cancel,
		log:          h.log.With("client_id", clientID),
	}
	if td := ctxutil.GetTraceData(r.Context()); td != nil {
		client.trace = *td
	}
	client.trace.ClientID = clientID
	h.register(client)
	observability.Current().SocketConnected()
	defer func() {
		h.unregister(client)
		client.close()
		observability.Current().SocketDisconnected()
	}()

	if err := client.write(MustEncode(AckEvent{ClientID: clientID})); err != nil {
		return nil
	}

	go h.pingLoop(client)
	h.readLoop(client)
	return nil
}

func (h *SocketHub) register(c *SocketClient) {
	h.mu.Lock()
	existing := h.clients[c.ID]
	h.clients[c.ID] = c
	h.mu.Unlock()
	if existing != nil {
		h.log.Info("replacing socket for client", "client_id", c.ID)
		existing.close()
	}
}

func (h *SocketHub) unregister(c *SocketClient) {
	h.mu.Lock()
	if h.clients[c.ID] == c {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()
}

// Count reports the connected sockets.
func (h *SocketHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client, cancelling their turns.
func (h *SocketHub) CloseAll() {
	h.mu.Lock()
	clients := make([]*SocketClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (h *SocketHub) pingLoop(c *SocketClient) {
	period := (h.opts.PongWait * 9) / 10
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.opts.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

func (h *SocketHub) readLoop(c *SocketClient) {
	c.conn.SetReadLimit(h.opts.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.busy.Load() {
				c.log.Info("socket closed mid-turn; abandoning turn", "error", err)
			} else if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("socket read ended", "error", err)
			}
			c.cancel()
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		h.dispatch(c, raw)
	}
}

func (h *SocketHub) dispatch(c *SocketClient, raw []byte) {
	var msg SocketMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.writeError(CodeBadRequest, "malformed message", false)
		return
	}
	msg.Message = strings.TrimSpace(msg.Message)
	if msg.Message == "" {
		c.writeError(CodeEmptyMessage, "message must not be empty", false)
		return
	}
	if !c.busy.CompareAndSwap(false, true) {
		c.writeError(CodeTurnInProgress, ErrTurnInProgress.Error(), true)
		return
	}

	req := chat.ChatRequest{Message: msg.Message, ConversationID: msg.ConversationID, Stream: true}
	var once sync.Once
	release := func() { once.Do(func() { c.busy.Store(false) }) }
	sink := &SocketSink{client: c, release: release}
	go func() {
		defer release()
		defer func() {
			if rec := recover(); rec != nil {
				c.log.Error("socket turn panicked", "panic", rec)
				_ = sink.Send(context.Background(), MustEncode(ErrorEvent{Message: "internal error", Code: CodeInternal, Retryable: true}))
			}
		}()
		if h.handler == nil {
			c.writeError(CodeInternal, "no turn handler configured", false)
			return
		}
		if err := h.handler(c.turnContext(), c.ID, req, sink); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Warn("socket turn ended with error", "error", err)
		}
	}()
}
