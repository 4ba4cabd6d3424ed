// Package classify is the entry point for page classification. It builds the
// fixed instruction, calls the oracle once and maps failures onto
// ErrExtractionFailed, ErrInvalidInput and ErrOracleUnavailable.
package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/amitmahapatrav5/genai-sop-generator/internal/logger"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/extractor"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/features"
	"github.com/amitmahapatrav5/genai-sop-generator/pkg/schema"
)

// SchemaDescription is attached to the Features schema.
const SchemaDescription = "Interactive actions and read-only information visible on a rendered web page."

// Result is a successful classification and its metadata.
type Result struct {
	Features *features.Features

	RequestID   string
	ContentHash string

	Provider   string
	Model      string
	Usage      extractor.Usage
	Cost       float64
	RetryCount int
	Duration   time.Duration

	// Warnings lists disjointness violations that were tolerated.
	Warnings []string
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithStrictDisjoint makes overlaps between actions and info a validation
// error, so the oracle retries instead of the result being accepted with
// warnings.
func WithStrictDisjoint(strict bool) Option {
	return func(c *Classifier) { c.strict = strict }
}

// Classifier classifies page content into Features. It holds no mutable
// state and is safe for concurrent use when its oracle is.
type Classifier struct {
	oracle extractor.Extractor
	schema schema.Schema
	strict bool
}

// New creates a Classifier around oracle.
func New(oracle extractor.Extractor, opts ...Option) (*Classifier, error) {
	if oracle == nil {
		return nil, fmt.Errorf("classify: oracle is required")
	}

	c := &Classifier{oracle: oracle}
	for _, opt := range opts {
		opt(c)
	}

	schemaOpts := []schema.SchemaOption{schema.WithDescription(SchemaDescription)}
	if c.strict {
		schemaOpts = append(schemaOpts, schema.WithCheck(disjointCheck))
	}
	s, err := schema.NewSchema[features.Features](schemaOpts...)
	if err != nil {
		return nil, fmt.Errorf("classify: build schema: %w", err)
	}
	c.schema = s

	return c, nil
}

// Schema returns the Features schema the oracle validates against.
func (c *Classifier) Schema() schema.Schema {
	return c.schema
}

// Classify is the extract operation. Empty or whitespace-only content is
// rejected with ErrInvalidInput before the oracle is called. The oracle is
// called exactly once; failures are never retried here.
func (c *Classifier) Classify(ctx context.Context, content string) (*Result, error) {
	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = WithRequestID(ctx, requestID)
	}

	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrInvalidInput)
	}

	hash := ContentHash(content)
	log := logger.With("content_hash", hash)
	log.DebugContext(ctx, "classify starting", "content_size", len(content), "oracle", c.oracle.Name())

	res, err := c.oracle.Extract(ctx, BuildInstruction(content), c.schema)
	if err != nil {
		err = categorize(err)
		log.DebugContext(ctx, "classify failed", "error", err)
		return nil, err
	}

	f, ok := res.Data.(*features.Features)
	if !ok || f == nil {
		return nil, fmt.Errorf("%w: oracle returned %T", ErrExtractionFailed, res.Data)
	}
	f.Normalize()

	var warnings []string
	for _, o := range f.Overlaps() {
		warnings = append(warnings, o.String())
	}
	if len(warnings) > 0 {
		log.WarnContext(ctx, "classification is not disjoint", "overlaps", len(warnings), "first", warnings[0])
	}

	log.DebugContext(ctx, "classify complete",
		"actions", len(f.Actions),
		"info", len(f.Info),
		"provider", res.Provider,
		"model", res.Model,
		"retries", res.RetryCount)

	return &Result{
		Features:    f,
		RequestID:   requestID,
		ContentHash: hash,
		Provider:    res.Provider,
		Model:       res.Model,
		Usage:       res.Usage,
		Cost:        res.Cost,
		RetryCount:  res.RetryCount,
		Duration:    res.Duration,
		Warnings:    warnings,
	}, nil
}

// Extract is Classify without metadata.
func (c *Classifier) Extract(ctx context.Context, content string) (*features.Features, error) {
	res, err := c.Classify(ctx, content)
	if err != nil {
		return nil, err
	}
	return res.Features, nil
}

// disjointCheck turns overlaps into validation errors for the retry loop.
func disjointCheck(data any) []schema.ValidationError {
	f, ok := data.(*features.Features)
	if !ok {
		return nil
	}
	var errs []schema.ValidationError
	for _, o := range f.Overlaps() {
		errs = append(errs, schema.ValidationError{
			Field:   fmt.Sprintf("info[%d].description", o.Info),
			Message: fmt.Sprintf("repeats %q from actions[%d].process; remove it from info", o.Fragment, o.Action),
			Value:   o.Fragment,
		})
	}
	return errs
}

// ContentHash returns the fixed-width hex xxhash of content.
func ContentHash(content string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(content))
}

type requestIDKey struct{}

// WithRequestID attaches a request ID that Classify reports instead of
// generating one. Log records written with the returned context carry it.
func WithRequestID(ctx context.Context, id string) context.Context {
	ctx = logger.ContextWith(ctx, "request_id", id)
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID carried by ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
