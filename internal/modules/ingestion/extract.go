package ingestion

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

var DefaultAllowedExtensions = []string{".txt", ".md", ".csv", ".json", ".pdf", ".docx", ".pptx", ".xlsx"}

var plainTextExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".json": true,
}

// minRunLen drops short printable fragments from binary formats.
const minRunLen = 4

// ExtractText turns an uploaded file into plain text. Text formats pass through; binary
// formats keep only their printable runs.
func ExtractText(filename string, raw []byte) string {
	if plainTextExtensions[strings.ToLower(filepath.Ext(filename))] {
		return string(bytes.ToValidUTF8(raw, []byte("�")))
	}
	return printableRuns(raw)
}

func printableRuns(raw []byte) string {
	var out strings.Builder
	var run strings.Builder
	runLen := 0
	flush := func() {
		if runLen >= minRunLen {
			if out.Len() > 0 {
				out.WriteByte(' ')
			}
			out.WriteString(strings.TrimSpace(run.String()))
		}
		run.Reset()
		runLen = 0
	}
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		raw = raw[size:]
		if r != utf8.RuneError && (unicode.IsPrint(r) || r == ' ') {
			run.WriteRune(r)
			runLen++
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(out.String())
}

func allowedExtension(filename string, allowed []string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(a, ext) {
			return true
		}
	}
	return false
}
