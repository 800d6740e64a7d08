package steps

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/observability"
	"github.com/yungbote/nexusgraph-backend/internal/platform/logger"
)

var ErrStepClosed = errors.New("step already started or finished")

// Publisher receives step events. Publish must not block on the transport.
type Publisher interface {
	Publish(ev chat.StepEvent) error
}

// Emitter reports the lifecycle of each pipeline stage and keeps the execution trace.
type Emitter struct {
	pub Publisher
	log *logger.Logger
	now func() time.Time

	mu     sync.Mutex
	order  []string
	states map[string]chat.StepEvent
}

func NewEmitter(pub Publisher, log *logger.Logger) *Emitter {
	if log == nil {
		log = logger.Nop()
	}
	return &Emitter{
		pub:    pub,
		log:    log.With("component", "StepEmitter"),
		now:    func() time.Time { return time.Now().UTC() },
		states: map[string]chat.StepEvent{},
	}
}

// Plan announces agents as pending. Agents already seen are left alone.
func (e *Emitter) Plan(agents ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, agent := range agents {
		if _, ok := e.states[agent]; ok {
			continue
		}
		e.applyLocked(chat.StepEvent{Agent: agent, Status: chat.StatusPending})
	}
}

// Run wraps one stage. fn returns the stage's output summary. The returned error is fn's
// error unchanged, or ErrStepClosed when the agent key already ran in this turn.
func (e *Emitter) Run(ctx context.Context, agent, thinking string, fn func(ctx context.Context) (string, error)) error {
	e.mu.Lock()
	if cur, ok := e.states[agent]; ok && cur.Status != chat.StatusPending {
		e.mu.Unlock()
		return ErrStepClosed
	} else if !ok {
		e.applyLocked(chat.StepEvent{Agent: agent, Status: chat.StatusPending})
	}
	started := e.now()
	e.applyLocked(chat.StepEvent{Agent: agent, Status: chat.StatusRunning, Thinking: thinking, StartedAt: &started})
	e.mu.Unlock()

	ctx, span := observability.StartSpan(ctx, "agent."+BaseAgent(agent), attribute.String("agent.key", agent))
	defer span.End()

	summary, err := fn(ctx)

	completed := e.now()
	status := chat.StatusCompleted
	if err != nil {
		status = chat.StatusFailed
		summary = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.Current().ObserveStage(BaseAgent(agent), string(status), completed.Sub(started))

	e.mu.Lock()
	e.applyLocked(chat.StepEvent{Agent: agent, Status: status, OutputSummary: summary, CompletedAt: &completed})
	e.mu.Unlock()
	return err
}

// Trace returns the last state of every agent in first-seen order.
func (e *Emitter) Trace() []chat.StepEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]chat.StepEvent, 0, len(e.order))
	for _, agent := range e.order {
		out = append(out, e.states[agent])
	}
	return out
}

func (e *Emitter) applyLocked(ev chat.StepEvent) {
	cur, seen := e.states[ev.Agent]
	if !seen {
		e.order = append(e.order, ev.Agent)
	}
	merged := cur.Merge(ev)
	e.states[ev.Agent] = merged
	observability.Current().IncStepEvent(BaseAgent(ev.Agent), string(ev.Status))
	if e.pub == nil {
		return
	}
	if err := e.pub.Publish(merged); err != nil {
		e.log.Debug("step event not delivered", "agent", ev.Agent, "status", ev.Status, "error", err)
	}
}

// BaseAgent strips the retry suffix from a step key ("librarian#2" -> "librarian").
func BaseAgent(key string) string {
	if i := strings.IndexByte(key, '#'); i >= 0 {
		return key[:i]
	}
	return key
}

// StepKey names the n-th attempt of an agent. The first attempt uses the bare name.
func StepKey(agent string, attempt int) string {
	if attempt <= 1 {
		return agent
	}
	return agent + "#" + strconv.Itoa(attempt)
}
