// Package fetcher retrieves page markup for classification.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects how pages are fetched.
type Mode string

const (
	ModeStatic  Mode = "static"
	ModeDynamic Mode = "dynamic"
	ModeAuto    Mode = "auto"
)

// ErrUnsupportedMode is returned by New for an unknown fetch mode.
var ErrUnsupportedMode = errors.New("unsupported fetch mode")

// ErrStatus indicates the server answered with a non-success status.
var ErrStatus = errors.New("unexpected status")

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves the page at url.
	Fetch(ctx context.Context, url string) (Page, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Mode reports the fetch strategy.
	Mode() Mode
}

// Config controls fetching behavior.
type Config struct {
	UserAgent       string
	Timeout         time.Duration
	Headers         map[string]string
	WaitForSelector string        // dynamic only, defaults to body
	WaitDuration    time.Duration // dynamic only, extra settle time after load
	ChromePath      string        // dynamic only, found with FindChrome when empty
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:       defaultUserAgent,
		Timeout:         30 * time.Second,
		WaitForSelector: "body",
	}
}

// Chrome user agent for better compatibility
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.UserAgent == "" {
		c.UserAgent = d.UserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.WaitForSelector == "" {
		c.WaitForSelector = d.WaitForSelector
	}
	return c
}

// Page is fetched page data.
type Page struct {
	URL         string
	HTML        string
	Title       string
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// ParseMode converts a mode name, case-insensitively. Empty means static.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeStatic, nil
	case ModeStatic, ModeDynamic, ModeAuto:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
	}
}

// New creates a fetcher for mode.
func New(mode Mode, cfg Config) (Fetcher, error) {
	switch mode {
	case ModeStatic, "":
		return NewStatic(cfg), nil
	case ModeDynamic:
		return NewDynamic(cfg), nil
	case ModeAuto:
		return NewAuto(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}
