package realtime

import (
	"context"
	"sync"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

// Multiplexer serializes one turn's events onto a Sink in the order they were produced.
// Producers never block on the transport: events go to an unbounded queue drained by a
// single writer goroutine. The terminal event is flushed before the sink is closed.
type Multiplexer struct {
	sink Sink
	log  *logger.Logger

	mu       sync.Mutex
	queue    []Envelope
	wake     chan struct{}
	closed   bool
	aborted  bool
	err      error
	dropped  int
	done     chan struct{}
	writeCtx context.Context
	cancel   context.CancelFunc
}

func NewMultiplexer(sink Sink, log *logger.Logger) *Multiplexer {
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Multiplexer{
		sink:     sink,
		log:      log.With("component", "Multiplexer"),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		writeCtx: ctx,
		cancel:   cancel,
	}
	go m.run()
	return m
}

// Publish enqueues a step event. It returns ErrTurnClosed after the terminal event.
func (m *Multiplexer) Publish(ev chat.StepEvent) error {
	return m.enqueue(StepEvent{StepEvent: ev}, false)
}

// Emit enqueues a non-terminal event such as an ack. Terminal kinds go through
// Finish or Fail.
func (m *Multiplexer) Emit(ev Event) error {
	if ev == nil || ev.Kind() == KindResponse || ev.Kind() == KindError {
		return ErrTurnClosed
	}
	return m.enqueue(ev, false)
}

// Finish enqueues the turn result and waits until it was written and the sink closed.
func (m *Multiplexer) Finish(ctx context.Context, res chat.TurnResult) error {
	if err := m.enqueue(ResponseEvent{TurnResult: res}, true); err != nil {
		return err
	}
	return m.Wait(ctx)
}

// Fail enqueues a terminal error event and waits like Finish.
func (m *Multiplexer) Fail(ctx context.Context, ev ErrorEvent) error {
	if err := m.enqueue(ev, true); err != nil {
		return err
	}
	return m.Wait(ctx)
}

// Abort ends the turn without a terminal event; queued events are discarded, including a
// terminal one that has not been written yet. It returns once the writer has exited and the
// sink is closed, so the caller may release the transport. Used when the subscriber has
// gone away.
func (m *Multiplexer) Abort() {
	m.mu.Lock()
	if !m.aborted {
		m.closed = true
		m.aborted = true
		m.dropped += len(m.queue)
		m.queue = nil
	}
	m.mu.Unlock()
	m.cancel()
	m.signal()
	<-m.done
}

// Wait blocks until the writer has exited or ctx is done.
func (m *Multiplexer) Wait(ctx context.Context) error {
	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err reports the first sink error, if any.
func (m *Multiplexer) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Dropped reports how many events were discarded after the sink broke.
func (m *Multiplexer) Dropped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *Multiplexer) enqueue(ev Event, terminal bool) error {
	env, err := Encode(ev)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrTurnClosed
	}
	m.queue = append(m.queue, env)
	if terminal {
		m.closed = true
	}
	m.mu.Unlock()
	m.signal()
	return nil
}

func (m *Multiplexer) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Multiplexer) run() {
	defer close(m.done)
	defer m.cancel()
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.mu.Unlock()
			<-m.wake
			m.mu.Lock()
		}
		if len(m.queue) == 0 {
			// closed and drained
			m.mu.Unlock()
			m.closeSink()
			return
		}
		env := m.queue[0]
		m.queue[0] = Envelope{}
		m.queue = m.queue[1:]
		broken := m.err != nil
		m.mu.Unlock()

		if broken {
			m.drop(env)
			continue
		}
		if err := m.sink.Send(m.writeCtx, env); err != nil {
			m.mu.Lock()
			if m.err == nil {
				m.err = err
			}
			aborted := m.aborted
			m.mu.Unlock()
			if !aborted {
				m.log.Warn("stream write failed; discarding remaining events", "type", env.Type, "error", err)
			}
			m.drop(env)
		}
	}
}

func (m *Multiplexer) drop(env Envelope) {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
	observability.Current().IncDroppedEvent(string(env.Type))
}

func (m *Multiplexer) closeSink() {
	if err := m.sink.Close(); err != nil {
		m.log.Debug("sink close failed", "error", err)
	}
}
