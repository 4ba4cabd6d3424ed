package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLWriter writes each page as its own YAML document.
type YAMLWriter struct {
	w      *bufio.Writer
	enc    *yaml.Encoder
	closed bool
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	bw := bufio.NewWriter(w)
	enc := yaml.NewEncoder(bw)
	enc.SetIndent(2)
	return &YAMLWriter{w: bw, enc: enc}
}

// Write encodes a single item as a document. Documents after the first are
// preceded by a "---" separator.
func (w *YAMLWriter) Write(data any) error {
	return w.enc.Encode(data)
}

// WriteAll encodes multiple items.
func (w *YAMLWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered output.
func (w *YAMLWriter) Flush() error {
	return w.w.Flush()
}

// Close finishes the YAML stream and flushes.
func (w *YAMLWriter) Close() error {
	if w.closed {
		return w.Flush()
	}
	w.closed = true
	if err := w.enc.Close(); err != nil {
		return err
	}
	return w.Flush()
}
