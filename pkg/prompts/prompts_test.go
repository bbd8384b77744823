// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jllopis/healthdesk/pkg/core"
)

func TestDefault(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	m := s.Manager()
	if len(m.Delegates) != 3 {
		t.Fatalf("expected 3 declared delegates, got %v", m.Delegates)
	}
	for _, name := range m.Delegates {
		if _, ok := s.Agent(name); !ok {
			t.Errorf("declared delegate %q has no definition", name)
		}
	}

	q, ok := s.Agent("sql_query_agent_health")
	if !ok {
		t.Fatalf("query agent missing")
	}
	if q.Description != "A SQL query agent that can query the database with comprehensive personal health data." {
		t.Errorf("unexpected description %q", q.Description)
	}
	if !strings.Contains(q.Instructions, "CREATE TABLE IF NOT EXISTS record") {
		t.Errorf("query instructions should embed the schema")
	}

	if got := s.ModeInstructions(core.ModeShort); got != "Provide a short, concise answer to the user's question." {
		t.Errorf("unexpected short mode text %q", got)
	}
	if got := s.ModeInstructions(core.ModeDetailed); !strings.HasPrefix(got, "1. Use the sql_query_agent_health") {
		t.Errorf("unexpected detailed mode text %q", got)
	}
	if s.ModeInstructions("") != s.ModeInstructions(core.ModeShort) {
		t.Errorf("empty mode should default to short")
	}
}

func TestManagerPreamble(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	out, err := s.Manager().Preamble([]DelegateInfo{
		{Name: "sql_query_agent_health", Description: "queries"},
		{Name: "visual_agent", Description: "draws"},
	})
	if err != nil {
		t.Fatalf("Preamble: %v", err)
	}
	if !strings.Contains(out, "- sql_query_agent_health: queries") || !strings.Contains(out, "- visual_agent: draws") {
		t.Fatalf("delegates missing from preamble:\n%s", out)
	}
}

func TestRecordsAreCopies(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	m := s.Manager()
	m.Delegates[0] = "mutated"
	if s.Manager().Delegates[0] == "mutated" {
		t.Fatalf("Manager must return a copy")
	}
	agents := s.Agents()
	agents[0].Instructions = "mutated"
	if s.Agents()[0].Instructions == "mutated" {
		t.Fatalf("Agents must return a copy")
	}
}

func TestLoadOverridesFromDir(t *testing.T) {
	dir := t.TempDir()
	manifest := `
manager:
  instructions_file: manager.md
  delegates: [sql_query_agent_health]
agents:
  - name: sql_query_agent_health
    description: local db
    instructions: Query carefully.
    max_steps: 2
modes:
  short: Be brief.
  detailed: Be thorough.
`
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, ok := s.Agent("sql_query_agent_health")
	if !ok || d.Instructions != "Query carefully." || d.MaxSteps != 2 {
		t.Fatalf("unexpected definition %+v", d)
	}
	if s.ModeInstructions(core.ModeDetailed) != "Be thorough." {
		t.Fatalf("mode override not applied")
	}
	if s.Manager().Name != "manager" {
		t.Fatalf("manager name should default")
	}
	if !strings.Contains(s.Schema(), "activitysummary") {
		t.Fatalf("schema should fall back to the built-in copy")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{"bad yaml", "manager: [\n"},
		{"missing mode", "manager:\n  instructions_file: manager.md\nmodes:\n  short: x\n"},
		{"unknown mode", "manager:\n  instructions_file: manager.md\nmodes:\n  short: x\n  detailed: y\n  verbose: z\n"},
		{"bad name", "manager:\n  instructions_file: manager.md\nagents:\n  - name: Bad Name\nmodes:\n  short: x\n  detailed: y\n"},
		{"duplicate", "manager:\n  instructions_file: manager.md\nagents:\n  - name: a\n  - name: a\nmodes:\n  short: x\n  detailed: y\n"},
		{"missing file", "manager:\n  instructions_file: nope.md\nmodes:\n  short: x\n  detailed: y\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, ManifestFile), []byte(tt.manifest), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(dir); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for a missing dir")
	}
}
