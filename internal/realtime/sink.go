package realtime

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Sink is one subscriber's end of a turn. The multiplexer is its only writer.
type Sink interface {
	Send(ctx context.Context, env Envelope) error
	Close() error
}

// SSESink writes envelopes onto a chunked HTTP response.
type SSESink struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
	stop    chan struct{}
}

var ErrStreamingUnsupported = errors.New("streaming unsupported by response writer")

// NewSSESink sets the event-stream headers on w. A positive heartbeat interval writes
// `: ping` comments while the sink is open.
func NewSSESink(w http.ResponseWriter, heartbeat time.Duration) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	SetSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := &SSESink{w: w, flusher: flusher, stop: make(chan struct{})}
	if heartbeat > 0 {
		go s.heartbeat(heartbeat)
	}
	return s, nil
}

func (s *SSESink) heartbeat(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.mu.Lock()
			if !s.closed {
				if err := WriteHeartbeat(s.w); err == nil {
					s.flusher.Flush()
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *SSESink) Send(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	if err := WriteSSE(s.w, env); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *SSESink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stop)
	s.flusher.Flush()
	return nil
}

// RecorderSink keeps envelopes in memory. Non-streaming requests collect their trace with it.
type RecorderSink struct {
	mu        sync.Mutex
	envelopes []Envelope
	closed    bool
	// FailAfter makes Send fail once that many envelopes were accepted. Zero disables it.
	FailAfter int
}

func NewRecorderSink() *RecorderSink { return &RecorderSink{} }

func (r *RecorderSink) Send(_ context.Context, env Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrStreamClosed
	}
	if r.FailAfter > 0 && len(r.envelopes) >= r.FailAfter {
		return errors.New("recorder: simulated write failure")
	}
	r.envelopes = append(r.envelopes, env)
	return nil
}

func (r *RecorderSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *RecorderSink) Envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, len(r.envelopes))
	copy(out, r.envelopes)
	return out
}

func (r *RecorderSink) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
