package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

type PushEvent string

const (
	PushJobCreated   PushEvent = "JobCreated"
	PushJobProgress  PushEvent = "JobProgress"
	PushJobDone      PushEvent = "JobDone"
	PushJobFailed    PushEvent = "JobFailed"
	PushJobCancelled PushEvent = "JobCancelled"
)

// Terminal reports whether no further events follow on the channel.
func (e PushEvent) Terminal() bool {
	return e == PushJobDone || e == PushJobFailed || e == PushJobCancelled
}

type PushMessage struct {
	Channel string    `json:"channel"`
	Event   PushEvent `json:"event"`
	Data    any       `json:"data,omitempty"`
}

// JobChannel names the push channel of one ingestion job.
func JobChannel(jobID string) string { return "job:" + jobID }

type Subscriber struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan PushMessage
	done     chan struct{}
	once     sync.Once
}

// Hub fans push messages out to subscribers of a channel. Delivery to a slow subscriber is
// best effort: when its buffer is full the message is dropped for that subscriber only.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Subscriber]bool
	live          map[*Subscriber]bool
	closed        bool
	heartbeat     time.Duration
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "PushHub"),
		subscriptions: make(map[string]map[*Subscriber]bool),
		live:          make(map[*Subscriber]bool),
		heartbeat:     15 * time.Second,
	}
}

// NewSubscriber registers a subscriber. After CloseAll it comes back already closed.
func (hub *Hub) NewSubscriber() *Subscriber {
	sub := &Subscriber{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan PushMessage, 32),
		done:     make(chan struct{}),
	}
	hub.mu.Lock()
	closed := hub.closed
	if !closed {
		hub.live[sub] = true
	}
	hub.mu.Unlock()
	if closed {
		hub.CloseSubscriber(sub)
	}
	return sub
}

func (hub *Hub) AddChannel(sub *Subscriber, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if !hub.live[sub] {
		return
	}

	sub.Channels[channel] = true
	subs, ok := hub.subscriptions[channel]
	if !ok {
		subs = make(map[*Subscriber]bool)
		hub.subscriptions[channel] = subs
	}
	subs[sub] = true
	hub.log.Debug("push subscriber added", "subscriber", sub.ID, "channel", channel)
}

func (hub *Hub) removeLocked(sub *Subscriber) {
	for ch := range sub.Channels {
		if subs, ok := hub.subscriptions[ch]; ok {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(hub.subscriptions, ch)
			}
		}
	}
	sub.Channels = make(map[string]bool)
}

// Subscribers reports how many subscribers listen on channel.
func (hub *Hub) Subscribers(channel string) int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.subscriptions[channel])
}

func (hub *Hub) Broadcast(msg PushMessage) {
	if msg.Channel == "" {
		return
	}
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for sub := range hub.subscriptions[msg.Channel] {
		select {
		case sub.Outbound <- msg:
		default:
			hub.log.Warn("dropping push message; subscriber buffer full", "subscriber", sub.ID, "channel", msg.Channel)
		}
	}
}

// Publish lets the hub stand in for a bus in single-instance deployments.
func (hub *Hub) Publish(_ context.Context, msg PushMessage) error {
	hub.Broadcast(msg)
	return nil
}

func (hub *Hub) CloseSubscriber(sub *Subscriber) {
	sub.once.Do(func() {
		hub.mu.Lock()
		hub.removeLocked(sub)
		delete(hub.live, sub)
		close(sub.done)
		close(sub.Outbound)
		hub.mu.Unlock()
	})
}

// CloseAll closes every subscriber so open ServeHTTP streams return. Registered as an
// http.Server shutdown hook, since Shutdown waits for those handlers.
func (hub *Hub) CloseAll() {
	hub.mu.Lock()
	hub.closed = true
	subs := make([]*Subscriber, 0, len(hub.live))
	for sub := range hub.live {
		subs = append(subs, sub)
	}
	hub.mu.Unlock()
	for _, sub := range subs {
		hub.CloseSubscriber(sub)
	}
	if len(subs) > 0 {
		hub.log.Info("push subscribers closed", "count", len(subs))
	}
}

// ServeHTTP streams sub's messages as `event:`/`data:` frames. initial messages are written
// first. The stream ends after a terminal event, on client disconnect, or on CloseSubscriber.
func (hub *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, sub *Subscriber, initial ...PushMessage) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for _, msg := range initial {
		if err := writePush(w, msg); err != nil {
			return
		}
		flusher.Flush()
		if msg.Event.Terminal() {
			return
		}
	}

	heartbeat := time.NewTicker(hub.heartbeat)
	defer heartbeat.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			hub.log.Debug("push subscriber context done", "subscriber", sub.ID, "err", ctx.Err())
			return
		case <-sub.done:
			return
		case <-heartbeat.C:
			_ = WriteHeartbeat(w)
			flusher.Flush()
		case msg, ok := <-sub.Outbound:
			if !ok {
				return
			}
			if err := writePush(w, msg); err != nil {
				hub.log.Warn("failed to write push message", "error", err)
				return
			}
			flusher.Flush()
			if msg.Event.Terminal() {
				return
			}
		}
	}
}

func writePush(w http.ResponseWriter, msg PushMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, raw)
	return err
}
