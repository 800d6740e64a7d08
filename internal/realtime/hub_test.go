package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

func recvMessage(t *testing.T, ch <-chan PushMessage, timeout time.Duration) PushMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for push message")
	}
	return PushMessage{}
}

func TestHubReconnectAndOrdering(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	channel := JobChannel("job-1")

	subA := hub.NewSubscriber()
	hub.AddChannel(subA, channel)

	hub.Broadcast(PushMessage{Channel: channel, Event: PushJobCreated, Data: map[string]any{"seq": 1}})
	hub.Broadcast(PushMessage{Channel: channel, Event: PushJobProgress, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, subA.Outbound, time.Second); got.Event != PushJobCreated {
		t.Fatalf("first event: want=%s got=%s", PushJobCreated, got.Event)
	}
	if got := recvMessage(t, subA.Outbound, time.Second); got.Event != PushJobProgress {
		t.Fatalf("second event: want=%s got=%s", PushJobProgress, got.Event)
	}

	hub.CloseSubscriber(subA)
	hub.CloseSubscriber(subA)
	select {
	case _, ok := <-subA.Outbound:
		if ok {
			t.Fatalf("subA outbound should be closed after disconnect")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for subA channel close")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after close: want=0 got=%d", n)
	}

	subB := hub.NewSubscriber()
	hub.AddChannel(subB, channel)
	hub.Broadcast(PushMessage{Channel: channel, Event: PushJobDone})
	if got := recvMessage(t, subB.Outbound, time.Second); got.Event != PushJobDone {
		t.Fatalf("reconnect event: want=%s got=%s", PushJobDone, got.Event)
	}
}

func TestHubIgnoresOtherChannels(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	sub := hub.NewSubscriber()
	hub.AddChannel(sub, JobChannel("a"))

	hub.Broadcast(PushMessage{Channel: JobChannel("b"), Event: PushJobProgress})
	hub.Broadcast(PushMessage{Channel: "", Event: PushJobProgress})
	select {
	case msg := <-sub.Outbound:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubServeHTTPStopsAfterTerminalEvent(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	channel := JobChannel("job-2")
	sub := hub.NewSubscriber()
	hub.AddChannel(sub, channel)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.ServeHTTP(rec, req, sub, PushMessage{Channel: channel, Event: PushJobCreated})
	}()

	hub.Broadcast(PushMessage{Channel: channel, Event: PushJobProgress, Data: map[string]any{"progress": 0.5}})
	hub.Broadcast(PushMessage{Channel: channel, Event: PushJobDone})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ServeHTTP did not return after terminal event")
	}
	body := rec.Body.String()
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: got=%q", ct)
	}
	for _, want := range []string{"event: JobCreated\n", "event: JobProgress\n", "event: JobDone\n"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
	if strings.Index(body, "JobCreated") > strings.Index(body, "JobProgress") {
		t.Fatalf("initial message must precede broadcast messages:\n%s", body)
	}
}

func TestHubCloseAllEndsOpenStreams(t *testing.T) {
	hub := NewHub(mustTestLogger(t))
	channel := JobChannel("job-3")
	sub := hub.NewSubscriber()
	hub.AddChannel(sub, channel)
	idle := hub.NewSubscriber()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.ServeHTTP(rec, req, sub)
	}()

	hub.CloseAll()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ServeHTTP did not return after CloseAll")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after CloseAll: want=0 got=%d", n)
	}
	if _, ok := <-idle.Outbound; ok {
		t.Fatalf("subscriber without channels should be closed")
	}

	late := hub.NewSubscriber()
	hub.AddChannel(late, channel)
	if _, ok := <-late.Outbound; ok {
		t.Fatalf("subscriber created after CloseAll should be closed")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("late subscriber joined a channel: got=%d", n)
	}
	hub.CloseSubscriber(late)
}
