package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies a request in logs. ConversationID is filled in by the chat service
// when the caller did not supply one; ClientID is set for socket connections.
type TraceData struct {
	TraceID        string
	RequestID      string
	ConversationID string
	ClientID       string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// LogFields flattens the trace data into logger key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	out := make([]interface{}, 0, 8)
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.ConversationID != "" {
		out = append(out, "conversation_id", td.ConversationID)
	}
	if td.ClientID != "" {
		out = append(out, "client_id", td.ClientID)
	}
	return out
}
