package client

import (
	"sync"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

// State is the display model of one turn.
type State struct {
	ConversationID string
	ClientID       string
	// Steps holds the latest state of each agent in first-seen order.
	Steps   []chat.StepEvent
	Result  *chat.TurnResult
	Loading bool
	Err     error
}

// Completed reports how many steps reached a terminal status.
func (s State) Completed() int {
	n := 0
	for _, st := range s.Steps {
		if st.Status.Terminal() {
			n++
		}
	}
	return n
}

// Reducer folds a turn's events into a State. Step updates for an agent merge onto its
// earlier state and never move its lifecycle backwards. Nothing is applied once the turn
// has closed.
type Reducer struct {
	mu     sync.Mutex
	state  State
	index  map[string]int
	closed bool
}

func NewReducer() *Reducer {
	return &Reducer{index: make(map[string]int)}
}

// Begin marks the turn as loading.
func (r *Reducer) Begin() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.state.Loading = true
	}
}

// Apply folds ev into the state and reports whether anything changed.
func (r *Reducer) Apply(ev realtime.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	switch e := ev.(type) {
	case realtime.AckEvent:
		if e.ConversationID != "" {
			r.state.ConversationID = e.ConversationID
		}
		if e.ClientID != "" {
			r.state.ClientID = e.ClientID
		}
		return true
	case realtime.StepEvent:
		return r.applyStep(e.StepEvent)
	case realtime.ResponseEvent:
		res := e.TurnResult
		r.state.Result = &res
		if res.ConversationID != "" {
			r.state.ConversationID = res.ConversationID
		}
		r.close(nil)
		return true
	case realtime.ErrorEvent:
		r.close(&PipelineError{Code: e.Code, Message: e.Message, Retryable: e.Retryable})
		return true
	default:
		return false
	}
}

func (r *Reducer) applyStep(step chat.StepEvent) bool {
	i, ok := r.index[step.Agent]
	if !ok {
		r.index[step.Agent] = len(r.state.Steps)
		r.state.Steps = append(r.state.Steps, step)
		return true
	}
	cur := r.state.Steps[i]
	if !cur.Status.CanAdvanceTo(step.Status) {
		return false
	}
	r.state.Steps[i] = cur.Merge(step)
	return true
}

// Fail closes the turn with err unless it already closed. Loading is cleared either way.
func (r *Reducer) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.state.Loading = false
		return
	}
	r.close(err)
}

func (r *Reducer) close(err error) {
	r.closed = true
	r.state.Loading = false
	r.state.Err = err
}

func (r *Reducer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Snapshot returns a copy of the current state.
func (r *Reducer) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.state
	out.Steps = append([]chat.StepEvent(nil), r.state.Steps...)
	return out
}
