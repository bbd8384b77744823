// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package delegate holds the named sub-agents a manager can dispatch to.
//
// A Registry is built once and is read-only afterwards. Dispatch is a plain
// name lookup; a name that is not registered is an UNKNOWN_DELEGATE error.
package delegate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/errors"
)

// Delegate is a named sub-agent.
type Delegate struct {
	// Name is the tool name the manager's model calls.
	Name string
	// Description tells the manager's model when to use the delegate.
	Description string
	Runner      core.Runner
}

// Registry maps delegate names to delegates.
type Registry struct {
	ordered []Delegate
	byName  map[string]Delegate
}

// NewRegistry validates the delegates and returns a registry. Names must be
// non-empty, unique and free of whitespace; every delegate needs a runner.
func NewRegistry(delegates ...Delegate) (*Registry, error) {
	r := &Registry{byName: make(map[string]Delegate, len(delegates))}
	for _, d := range delegates {
		switch {
		case d.Name == "":
			return nil, invalid("delegate name is required")
		case strings.ContainsAny(d.Name, " \t\n"):
			return nil, invalid(fmt.Sprintf("delegate name %q contains whitespace", d.Name))
		case d.Runner == nil:
			return nil, invalid(fmt.Sprintf("delegate %q has no runner", d.Name))
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, invalid(fmt.Sprintf("duplicate delegate name %q", d.Name)).
				WithContext("name", d.Name)
		}
		r.byName[d.Name] = d
		r.ordered = append(r.ordered, d)
	}
	return r, nil
}

// Lookup returns the delegate registered under name.
func (r *Registry) Lookup(name string) (Delegate, error) {
	if d, ok := r.byName[name]; ok {
		return d, nil
	}
	return Delegate{}, NewUnknownDelegateError(name, r.Names())
}

// NewUnknownDelegateError reports a dispatch to an unregistered delegate.
func NewUnknownDelegateError(name string, known []string) *errors.Error {
	return errors.New(errors.CodeUnknownDelegate, "no delegate named "+name, nil).
		WithContext("name", name).
		WithContext("known", known)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, d := range r.ordered {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// Delegates returns the delegates in registration order.
func (r *Registry) Delegates() []Delegate {
	out := make([]Delegate, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the number of delegates.
func (r *Registry) Len() int { return len(r.ordered) }

func invalid(msg string) *errors.Error {
	return errors.New(errors.CodeInvalidInput, msg, nil)
}
