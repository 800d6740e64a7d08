package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
)

type EventKind string

const (
	KindAck      EventKind = "ack"
	KindStep     EventKind = "step"
	KindResponse EventKind = "response"
	KindError    EventKind = "error"
)

// Error codes carried by ErrorEvent.
const (
	CodePipelineFailed = "pipeline_failed"
	CodeTurnInProgress = "turn_in_progress"
	CodeEmptyMessage   = "empty_message"
	CodeBadRequest     = "bad_request"
	CodeInternal       = "internal_error"
)

var (
	ErrTurnClosed     = errors.New("turn already closed")
	ErrTurnInProgress = errors.New("a turn is already in progress")
	ErrStreamClosed   = errors.New("stream closed")
	ErrUnknownKind    = errors.New("unknown event kind")
)

// Envelope is the self-describing unit written to every transport.
type Envelope struct {
	Type EventKind       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Event is one of AckEvent, StepEvent, ResponseEvent or ErrorEvent.
type Event interface {
	Kind() EventKind
	sealed()
}

type AckEvent struct {
	ConversationID string `json:"conversation_id"`
	ClientID       string `json:"client_id,omitempty"`
}

type StepEvent struct {
	chat.StepEvent
}

type ResponseEvent struct {
	chat.TurnResult
}

type ErrorEvent struct {
	Message   string `json:"message"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

func (AckEvent) Kind() EventKind      { return KindAck }
func (StepEvent) Kind() EventKind     { return KindStep }
func (ResponseEvent) Kind() EventKind { return KindResponse }
func (ErrorEvent) Kind() EventKind    { return KindError }

func (AckEvent) sealed()      {}
func (StepEvent) sealed()     {}
func (ResponseEvent) sealed() {}
func (ErrorEvent) sealed()    {}

func (e ErrorEvent) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Terminal reports whether the envelope closes a turn. A non-terminal error (for example a
// rejected socket request) is still an error envelope; callers decide by context.
func (e Envelope) Terminal() bool {
	return e.Type == KindResponse || e.Type == KindError
}

func Encode(ev Event) (Envelope, error) {
	if ev == nil {
		return Envelope{}, fmt.Errorf("encode: nil event")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", ev.Kind(), err)
	}
	return Envelope{Type: ev.Kind(), Data: raw}, nil
}

// MustEncode is Encode for events whose payloads always marshal.
func MustEncode(ev Event) Envelope {
	env, err := Encode(ev)
	if err != nil {
		panic(err)
	}
	return env
}

func Decode(env Envelope) (Event, error) {
	switch env.Type {
	case KindAck:
		var ev AckEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case KindStep:
		var ev StepEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		if ev.Agent == "" || !ev.Status.Valid() {
			return nil, fmt.Errorf("decode step: missing agent or invalid status %q", ev.Status)
		}
		return ev, nil
	case KindResponse:
		var ev ResponseEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	case KindError:
		var ev ErrorEvent
		if err := unmarshalData(env, &ev); err != nil {
			return nil, err
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

func unmarshalData(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("decode %s: empty data", env.Type)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return nil
}

// ParseEnvelope decodes one JSON envelope and its payload.
func ParseEnvelope(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("envelope: %w", err)
	}
	return Decode(env)
}
