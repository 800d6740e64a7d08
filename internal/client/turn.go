package client

import (
	"context"
	"errors"

	"github.com/yungbote/nexusgraph-backend/internal/domain/chat"
	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

// RunTurn sends req through feeder and reduces the reply. onUpdate, when set, sees the
// state after every change. The returned state is never left loading: a stream that ends
// before its terminal event yields a TransportError, an error event yields a PipelineError.
func RunTurn(ctx context.Context, feeder Feeder, req chat.ChatRequest, onUpdate func(State)) (State, error) {
	r := NewReducer()
	r.Begin()
	err := feeder.Feed(ctx, req, func(ev realtime.Event) bool {
		if r.Apply(ev) && onUpdate != nil {
			onUpdate(r.Snapshot())
		}
		return !r.Closed()
	})
	if !r.Closed() {
		switch {
		case err == nil:
			err = &TransportError{Op: "chat turn", Err: ErrStreamEnded}
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		default:
			var te *TransportError
			if !errors.As(err, &te) {
				err = &TransportError{Op: "chat turn", Err: err}
			}
		}
		r.Fail(err)
		if onUpdate != nil {
			onUpdate(r.Snapshot())
		}
	}
	st := r.Snapshot()
	return st, st.Err
}
