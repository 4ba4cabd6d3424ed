// Package features defines the result model produced by page classification:
// interactive Actions and read-only Info records grouped in a Features container.
package features

import "encoding/json"

// Action is one complete interactive goal a user can accomplish on the page.
// Every input, toggle and button serving the goal is described in Process.
type Action struct {
	Description string `json:"description" yaml:"description" validate:"required,notblank" description:"A short, human-readable summary of the complete goal of the action (e.g. \"Sign in to the dashboard\", \"Search the catalogue\")."`
	Process     string `json:"process" yaml:"process" validate:"required,notblank" description:"A sequential, step-by-step description of every human interaction needed to complete the action, including filling inputs and toggling options, ending with the submitting click (e.g. \"enter email, enter password, check 'Remember me', then click 'Sign In'\")."`
}

// Info is one cohesive, read-only statement about the page.
type Info struct {
	Description string `json:"description" yaml:"description" validate:"required,notblank" description:"One human-readable sentence combining related static facts, such as a metric's label, value and change, into a single statement. Never a list of fragments."`
}

// Features is the classification result for one document.
// Either list may be empty; neither is ever absent.
type Features struct {
	Actions []Action `json:"actions" yaml:"actions" validate:"required,dive" description:"All interactive actions available on the rendered page. All components of one form or goal are combined into one action."`
	Info    []Info   `json:"info" yaml:"info" validate:"required,dive" description:"All read-only information displayed on the rendered page. Must not include any element or text that is part of an action."`
}

// New returns an empty Features value with non-nil lists.
func New() *Features {
	return &Features{Actions: []Action{}, Info: []Info{}}
}

// Normalize replaces nil lists with empty ones so the value always
// serializes as {"actions":[],"info":[]}.
func (f *Features) Normalize() *Features {
	if f.Actions == nil {
		f.Actions = []Action{}
	}
	if f.Info == nil {
		f.Info = []Info{}
	}
	return f
}

// Empty reports whether no actions and no info were found.
func (f *Features) Empty() bool {
	return len(f.Actions) == 0 && len(f.Info) == 0
}

// MarshalJSON always emits both lists, using [] for nil.
func (f Features) MarshalJSON() ([]byte, error) {
	type plain Features
	out := plain(f)
	if out.Actions == nil {
		out.Actions = []Action{}
	}
	if out.Info == nil {
		out.Info = []Info{}
	}
	return json.Marshal(out)
}
