package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"google.golang.org/genai"
)

// StatusError is returned by HTTP-based providers for non-200 replies.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(e.Body))
}

// StatusCode extracts an HTTP status code from a provider error, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	var oe *openai.Error
	if errors.As(err, &oe) {
		return oe.StatusCode
	}
	var ge genai.APIError
	if errors.As(err, &ge) {
		return ge.Code
	}
	var gp *genai.APIError
	if errors.As(err, &gp) {
		return gp.Code
	}
	return 0
}

// IsRateLimited reports whether err is a rate limit or overload response.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	switch StatusCode(err) {
	case http.StatusTooManyRequests, 529:
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}
