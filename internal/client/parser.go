package client

import (
	"bytes"
	"errors"

	"github.com/yungbote/nexusgraph-backend/internal/realtime"
)

// maxLineBytes bounds one line, including the partial line held between chunks.
const maxLineBytes = 1 << 20

var (
	errNotData     = errors.New("not a data line")
	errLineTooLong = errors.New("line exceeds 1 MiB")
)

// LineParser turns a chunked `data:` stream into events. Chunks may split lines anywhere;
// the trailing partial line is held until the next chunk completes it.
type LineParser struct {
	buf     []byte
	dropped int
	// skipping discards the rest of an oversized line up to its newline.
	skipping bool

	// OnDrop, when set, sees every malformed line.
	OnDrop func(*ParseError)
}

// Feed appends chunk and returns the events completed by it, in stream order. A line longer
// than 1 MiB is dropped as malformed without being buffered whole.
func (p *LineParser) Feed(chunk []byte) []realtime.Event {
	if p.skipping {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			return nil
		}
		chunk = chunk[i+1:]
		p.skipping = false
	}
	p.buf = append(p.buf, chunk...)
	var out []realtime.Event
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := p.buf[:i]
		if len(line) > maxLineBytes {
			p.drop(line, errLineTooLong)
		} else if ev, ok := p.parseLine(line); ok {
			out = append(out, ev)
		}
		p.buf = p.buf[i+1:]
	}
	if len(p.buf) > maxLineBytes {
		p.drop(p.buf, errLineTooLong)
		p.buf = nil
		p.skipping = true
	}
	if len(p.buf) == 0 {
		p.buf = nil
	}
	return out
}

// Flush parses whatever is held back once the stream has ended.
func (p *LineParser) Flush() []realtime.Event {
	line := p.buf
	p.buf = nil
	p.skipping = false
	if ev, ok := p.parseLine(line); ok {
		return []realtime.Event{ev}
	}
	return nil
}

// Dropped counts the malformed lines skipped so far.
func (p *LineParser) Dropped() int { return p.dropped }

func (p *LineParser) parseLine(line []byte) (realtime.Event, bool) {
	line = bytes.TrimRight(line, "\r")
	if len(bytes.TrimSpace(line)) == 0 || line[0] == ':' {
		return nil, false
	}
	payload, ok := bytes.CutPrefix(line, []byte("data:"))
	if !ok {
		p.drop(line, errNotData)
		return nil, false
	}
	ev, err := realtime.ParseEnvelope(bytes.TrimSpace(payload))
	if err != nil {
		p.drop(line, err)
		return nil, false
	}
	return ev, true
}

func (p *LineParser) drop(line []byte, err error) {
	p.dropped++
	if p.OnDrop != nil {
		p.OnDrop(&ParseError{Raw: truncate(string(line), 200), Err: err})
	}
}

// DispatchSocket decodes one socket message. Each message is a whole envelope.
func DispatchSocket(msg []byte) (realtime.Event, error) {
	ev, err := realtime.ParseEnvelope(msg)
	if err != nil {
		return nil, &ParseError{Raw: truncate(string(msg), 200), Err: err}
	}
	return ev, nil
}
