package output

import (
	"bufio"
	"fmt"
	"io"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/features"
)

// TextWriter prints results in the console layout: an "Action" section
// followed by an "Information" section.
type TextWriter struct {
	w     *bufio.Writer
	count int
}

// NewTextWriter creates a text writer.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: bufio.NewWriter(w)}
}

// Write prints a Record or Features value.
func (w *TextWriter) Write(data any) error {
	var rec Record
	switch v := data.(type) {
	case Record:
		rec = v
	case *Record:
		rec = *v
	case *features.Features:
		rec = Record{Features: v}
	case features.Features:
		rec = Record{Features: &v}
	default:
		return fmt.Errorf("%w: text cannot print %T", ErrUnsupportedFormat, data)
	}

	if w.count > 0 {
		fmt.Fprintln(w.w)
	}
	w.count++

	view := rec.view()
	if m := rec.Metadata; m != nil && m.Source != "" {
		fmt.Fprintf(w.w, "== %s ==\n", m.Source)
	}

	fmt.Fprint(w.w, "\nAction\n\n")
	if len(view.Actions) == 0 {
		fmt.Fprintln(w.w, "(none)")
	}
	for i, a := range view.Actions {
		fmt.Fprintf(w.w, "%d. %s\n   Process: %s\n", i+1, a.Description, a.Process)
	}

	fmt.Fprint(w.w, "\nInformation\n\n")
	if len(view.Info) == 0 {
		fmt.Fprintln(w.w, "(none)")
	}
	for _, info := range view.Info {
		fmt.Fprintf(w.w, "- %s\n", info.Description)
	}

	if m := rec.Metadata; m != nil {
		fmt.Fprintf(w.w, "\n[%s/%s, %d in / %d out tokens, %d retries, %dms]\n",
			m.Provider, m.Model, m.InputTokens, m.OutputTokens, m.RetryCount, m.DurationMS)
		for _, warn := range m.Warnings {
			fmt.Fprintf(w.w, "warning: %s\n", warn)
		}
	}
	return w.w.Flush()
}

// WriteAll prints multiple items.
func (w *TextWriter) WriteAll(data []any) error {
	for _, item := range data {
		if err := w.Write(item); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *TextWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *TextWriter) Close() error {
	return w.Flush()
}
