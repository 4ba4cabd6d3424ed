package output

import (
	"bytes"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/classify"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/features"
)

// Metadata describes how a page was classified.
type Metadata struct {
	Source       string   `json:"source,omitempty" yaml:"source,omitempty"`
	RequestID    string   `json:"request_id" yaml:"request_id"`
	ContentHash  string   `json:"content_hash" yaml:"content_hash"`
	Provider     string   `json:"provider" yaml:"provider"`
	Model        string   `json:"model" yaml:"model"`
	InputTokens  int      `json:"input_tokens" yaml:"input_tokens"`
	OutputTokens int      `json:"output_tokens" yaml:"output_tokens"`
	CostUSD      float64  `json:"cost_usd" yaml:"cost_usd"`
	RetryCount   int      `json:"retry_count" yaml:"retry_count"`
	DurationMS   int64    `json:"duration_ms" yaml:"duration_ms"`
	Warnings     []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Record is one classified page as written by the writers: the Features
// fields at the top level and an optional "_metadata" block.
type Record struct {
	Features *features.Features
	Metadata *Metadata
}

// NewRecord builds a record from a classification result. Metadata is
// attached only when withMetadata is set.
func NewRecord(source string, res *classify.Result, withMetadata bool) Record {
	r := Record{Features: res.Features}
	if withMetadata {
		r.Metadata = &Metadata{
			Source:       source,
			RequestID:    res.RequestID,
			ContentHash:  res.ContentHash,
			Provider:     res.Provider,
			Model:        res.Model,
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
			CostUSD:      res.Cost,
			RetryCount:   res.RetryCount,
			DurationMS:   res.Duration.Milliseconds(),
			Warnings:     res.Warnings,
		}
	}
	return r
}

type recordView struct {
	Actions  []features.Action `json:"actions" yaml:"actions"`
	Info     []features.Info   `json:"info" yaml:"info"`
	Metadata *Metadata         `json:"_metadata,omitempty" yaml:"_metadata,omitempty"`
}

func (r Record) view() recordView {
	f := r.Features
	if f == nil {
		f = features.New()
	}
	v := recordView{Actions: f.Actions, Info: f.Info, Metadata: r.Metadata}
	if v.Actions == nil {
		v.Actions = []features.Action{}
	}
	if v.Info == nil {
		v.Info = []features.Info{}
	}
	return v
}

// MarshalJSON writes {"actions":[...],"info":[...],"_metadata":{...}}.
func (r Record) MarshalJSON() ([]byte, error) {
	out, err := marshal(r.view(), "")
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(out, "\n"), nil
}

// MarshalYAML mirrors MarshalJSON.
func (r Record) MarshalYAML() (any, error) {
	return r.view(), nil
}
