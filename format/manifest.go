package format

import (
	"io"
	"strings"
	"unicode/utf8"
)

// MaxLineLength is the manifest line limit in bytes, line break excluded.
const MaxLineLength = 72

// ManifestEncoder writes the computed package headers in manifest syntax.
// Empty headers are omitted.
type ManifestEncoder struct {
	w      io.Writer
	report *Report
}

func NewManifestEncoder(w io.Writer) *ManifestEncoder {
	return &ManifestEncoder{w: w}
}

func (e *ManifestEncoder) Encode(r *Report) error {
	e.report = r
	text, err := e.MarshalText()
	if err != nil {
		return err
	}
	_, err = e.w.Write(text)
	return err
}

func (e *ManifestEncoder) MarshalText() ([]byte, error) {
	var sb strings.Builder
	r := e.report
	writeHeader(&sb, "Export-Package", clauses(r.Exports))
	writeHeader(&sb, "Import-Package", clauses(r.Imports))
	writeHeader(&sb, "Private-Package", strings.Join(r.Privates, ","))
	writeHeader(&sb, "Bundle-Activator", r.Activator)
	return []byte(sb.String()), nil
}

// writeHeader wraps name: value at MaxLineLength; continuation lines start
// with a single space. Lines are never split inside a UTF-8 sequence.
func writeHeader(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	line := name + ": " + value
	limit := MaxLineLength
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		sb.WriteString(line[:cut])
		sb.WriteString("\r\n ")
		line = line[cut:]
		limit = MaxLineLength - 1
	}
	sb.WriteString(line)
	sb.WriteString("\r\n")
}
