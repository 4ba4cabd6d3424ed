// Package cleaner provides interfaces and implementations for preparing page
// markup before classification.
package cleaner

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCleaner is returned by New for an unrecognized cleaner name.
var ErrUnknownCleaner = errors.New("unknown cleaner")

// Cleaner transforms HTML content before it is sent to the oracle.
type Cleaner interface {
	// Clean transforms the input HTML.
	Clean(html string) (string, error)

	// Name returns the cleaner type for logging/debugging.
	Name() string
}

// DefaultName is the cleaner used when none is configured.
const DefaultName = "visible"

// Names lists the cleaners New understands.
func Names() []string {
	return []string{"noop", "visible", "markdown"}
}

// New builds a cleaner from a comma-separated list of names, e.g.
// "visible,markdown". An empty spec selects the default cleaner.
func New(spec string) (Cleaner, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		spec = DefaultName
	}

	var cleaners []Cleaner
	for _, name := range strings.Split(spec, ",") {
		c, err := byName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		cleaners = append(cleaners, c)
	}

	if len(cleaners) == 1 {
		return cleaners[0], nil
	}
	return NewChain(cleaners...), nil
}

func byName(name string) (Cleaner, error) {
	switch strings.ToLower(name) {
	case "noop", "none", "raw":
		return NewNoop(), nil
	case "visible":
		return NewVisible(), nil
	case "markdown", "md":
		return NewMarkdown(), nil
	}
	return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownCleaner, name, strings.Join(Names(), ", "))
}
