package extractor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/amitmahapatrav5/genai-sop-generator/pkg/schema"
)

// ErrRateLimited is returned when the local token bucket cannot admit a call
// before the context deadline.
var ErrRateLimited = errors.New("rate limited")

// RateLimitedExtractor admits calls to the wrapped extractor through a token
// bucket shared by every caller.
type RateLimitedExtractor struct {
	inner   Extractor
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a limiter of rps calls per second.
// A burst below 1 is treated as 1.
func NewRateLimited(inner Extractor, rps float64, burst int) *RateLimitedExtractor {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedExtractor{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Extract waits for a token, then delegates.
func (r *RateLimitedExtractor) Extract(ctx context.Context, instruction string, s schema.Schema) (*Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return r.inner.Extract(ctx, instruction, s)
}

// Name returns the wrapped extractor's name.
func (r *RateLimitedExtractor) Name() string {
	return r.inner.Name()
}

// Available reports whether the wrapped extractor is available.
func (r *RateLimitedExtractor) Available() bool {
	return r.inner.Available()
}
