package ingestion

import "strings"

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	minChunkSize        = 200
)

// Chunker splits extracted text into retrievable passages.
type Chunker interface {
	Split(text string) []string
}

// TextChunker cuts fixed-size overlapping windows measured in runes.
type TextChunker struct {
	Size    int
	Overlap int
}

func (c TextChunker) Split(text string) []string {
	size, overlap := c.Size, c.Overlap
	if size == 0 {
		size = DefaultChunkSize
	}
	if overlap == 0 && c.Size == 0 {
		overlap = DefaultChunkOverlap
	}
	return SplitIntoChunks(text, size, overlap)
}

// SplitIntoChunks splits long text into overlapping chunks.
func SplitIntoChunks(text string, chunkSize int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// runes, so a multi-byte character is never split
	r := []rune(text)

	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	out := make([]string, 0, (len(r)/step)+1)
	for start := 0; start < len(r); start += step {
		end := start + chunkSize
		if end > len(r) {
			end = len(r)
		}
		if end < len(r) {
			end = backToSpace(r, start, end)
		}

		p := strings.TrimSpace(string(r[start:end]))
		if p != "" {
			out = append(out, p)
		}

		if end == len(r) {
			break
		}
		if end-start < step {
			start = end - step
		}
	}
	return out
}

// backToSpace moves end left to the last whitespace in the back half of the window, so
// words stay whole when possible.
func backToSpace(r []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end; i > floor; i-- {
		switch r[i-1] {
		case ' ', '\n', '\t', '\r':
			return i
		}
	}
	return end
}
