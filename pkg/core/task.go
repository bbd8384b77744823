// SPDX-License-Identifier: Apache-2.0
package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResponseMode selects how much detail the manager puts in its answer.
type ResponseMode string

const (
	ModeShort    ResponseMode = "short"
	ModeDetailed ResponseMode = "detailed"
)

// ParseResponseMode accepts the mode identifiers and the UI labels.
func ParseResponseMode(s string) (ResponseMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "short", "short answer":
		return ModeShort, nil
	case "detailed", "detailed report":
		return ModeDetailed, nil
	default:
		return "", fmt.Errorf("unknown response mode %q", s)
	}
}

// Label returns the human-facing name of the mode.
func (m ResponseMode) Label() string {
	if m == ModeDetailed {
		return "Detailed Report"
	}
	return "Short Answer"
}

// Task is one user question handed to the manager. It is passed by value.
type Task struct {
	ID        string
	Goal      string
	Mode      ResponseMode
	CreatedAt time.Time
}

// NewTask creates a task with a generated ID.
func NewTask(goal string, mode ResponseMode) Task {
	if mode == "" {
		mode = ModeShort
	}
	return Task{
		ID:        uuid.NewString(),
		Goal:      goal,
		Mode:      mode,
		CreatedAt: time.Now().UTC(),
	}
}
