package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

// Feeder delivers the events of one turn, in arrival order, to emit. emit returns false
// once it wants no more events. A nil error means the transport ended cleanly; whether the
// turn closed is for the caller to decide.
type Feeder interface {
	Feed(ctx context.Context, req chat.ChatRequest, emit func(realtime.Event) bool) error
}

const readChunk = 4096

// HTTPFeeder posts the turn to the streaming chat endpoint and parses the `data:` lines of
// the response.
type HTTPFeeder struct {
	BaseURL string
	HTTP    *http.Client
	// OnDrop sees malformed lines. Optional.
	OnDrop func(*ParseError)
}

func (f *HTTPFeeder) Feed(ctx context.Context, req chat.ChatRequest, emit func(realtime.Event) bool) error {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(f.BaseURL, "/")+"/api/v1/chat/stream", bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: "chat stream", Err: err}
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "text/event-stream")

	resp, err := httpClient(f.HTTP).Do(hreq)
	if err != nil {
		return &TransportError{Op: "chat stream", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return statusError("chat stream", resp)
	}

	parser := &LineParser{OnDrop: f.OnDrop}
	buf := make([]byte, readChunk)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			for _, ev := range parser.Feed(buf[:n]) {
				if !emit(ev) {
					return nil
				}
			}
		}
		if errors.Is(rerr, io.EOF) {
			for _, ev := range parser.Flush() {
				if !emit(ev) {
					return nil
				}
			}
			return nil
		}
		if rerr != nil {
			return &TransportError{Op: "chat stream", Err: rerr}
		}
	}
}

// SocketFeeder runs turns over one persistent socket. Turns on a feeder are sequential.
type SocketFeeder struct {
	// ClientID is the id the server acknowledged at connect time.
	ClientID string

	// OnDrop sees malformed messages. Optional.
	OnDrop func(*ParseError)

	mu   sync.Mutex
	conn *websocket.Conn
}

// DialSocket connects to the chat socket. An empty clientID asks the server to assign one.
func DialSocket(ctx context.Context, baseURL, clientID string) (*SocketFeeder, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, &TransportError{Op: "dial socket", Err: err}
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if strings.TrimSpace(clientID) == "" {
		clientID = realtime.NewClientID
	}
	u.Path += "/api/v1/chat/ws/" + url.PathEscape(clientID)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		te := &TransportError{Op: "dial socket", Err: err}
		if resp != nil {
			te.Status = resp.StatusCode
		}
		return nil, te
	}

	// The first message acknowledges the connection and carries the client id.
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		_ = conn.Close()
		return nil, &TransportError{Op: "socket ack", Err: err}
	}
	_ = conn.SetReadDeadline(time.Time{})
	ev, err := DispatchSocket(msg)
	ack, ok := ev.(realtime.AckEvent)
	if err != nil || !ok {
		_ = conn.Close()
		return nil, &TransportError{Op: "socket ack", Err: fmt.Errorf("unexpected first message %q", truncate(string(msg), 200))}
	}
	return &SocketFeeder{ClientID: ack.ClientID, conn: conn}, nil
}

func (f *SocketFeeder) Feed(ctx context.Context, req chat.ChatRequest, emit func(realtime.Event) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return &TransportError{Op: "socket turn", Err: net.ErrClosed}
	}
	conn := f.conn

	// Cancellation unblocks the read; the socket cannot be reused afterwards.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	out := struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversation_id,omitempty"`
	}{req.Message, req.ConversationID}
	if err := conn.WriteJSON(out); err != nil {
		f.closeLocked()
		return &TransportError{Op: "socket turn", Err: err}
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			f.closeLocked()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransportError{Op: "socket turn", Err: err}
		}
		ev, err := DispatchSocket(msg)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) && f.OnDrop != nil {
				f.OnDrop(pe)
			}
			continue
		}
		if !emit(ev) {
			return nil
		}
	}
}

// Close disconnects the socket. A turn in flight is abandoned on the server.
func (f *SocketFeeder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeLocked()
}

func (f *SocketFeeder) closeLocked() error {
	if f.conn == nil {
		return nil
	}
	_ = f.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := f.conn.Close()
	f.conn = nil
	return err
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}

// statusError reads the error envelope of a non-2xx response.
func statusError(op string, resp *http.Response) *TransportError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &env) == nil && env.Error.Message != "" {
		msg = env.Error.Message
		if env.Error.Code != "" {
			msg = env.Error.Code + ": " + msg
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(truncate(msg, 300))}
}
