package output

import (
	"io"
	"time"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/features"
)

// TrainingExample pairs the markup sent to the model with the accepted
// classification, for building fine-tuning sets.
type TrainingExample struct {
	Source      string             `json:"source,omitempty"`
	ContentHash string             `json:"content_hash"`
	Provider    string             `json:"provider"`
	Model       string             `json:"model"`
	CreatedAt   time.Time          `json:"created_at"`
	Input       string             `json:"input"`
	Output      *features.Features `json:"output"`
}

// TrainingWriter appends training examples as JSON lines.
type TrainingWriter struct {
	jsonl *JSONLWriter
}

// NewTrainingWriter creates a training data writer.
func NewTrainingWriter(w io.Writer) *TrainingWriter {
	return &TrainingWriter{jsonl: NewJSONLWriter(w)}
}

// Write appends one example.
func (w *TrainingWriter) Write(ex TrainingExample) error {
	if ex.Output == nil {
		ex.Output = features.New()
	}
	return w.jsonl.Write(ex)
}

// Close flushes the writer.
func (w *TrainingWriter) Close() error {
	return w.jsonl.Close()
}
