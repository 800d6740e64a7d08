package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	ssePrefix    = "data: "
	sseHeartbeat = ": ping\n\n"
)

func SetSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteSSE writes one envelope as a single `data:` line followed by a blank line.
func WriteSSE(w io.Writer, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s%s\n\n", ssePrefix, raw)
	return err
}

func WriteHeartbeat(w io.Writer) error {
	_, err := io.WriteString(w, sseHeartbeat)
	return err
}
