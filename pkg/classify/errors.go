package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/extractor"
)

var (
	// ErrExtractionFailed means the oracle did not produce a valid Features
	// value within its retry bound. Callers may retry the whole request.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrInvalidInput means the content was empty or unusable. The oracle was
	// not called.
	ErrInvalidInput = errors.New("invalid input")

	// ErrOracleUnavailable means the model backend could not be reached.
	ErrOracleUnavailable = errors.New("oracle unavailable")
)

// categorize maps an oracle error onto the error taxonomy. Both the category
// and the cause stay reachable through errors.Is. Context errors pass through.
func categorize(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, extractor.ErrProviderUnavailable), errors.Is(err, extractor.ErrNoExtractorAvailable):
		return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
}

// Retryable reports whether a failed call may succeed if issued again.
func Retryable(err error) bool {
	return errors.Is(err, ErrExtractionFailed) || errors.Is(err, extractor.ErrRateLimited)
}
