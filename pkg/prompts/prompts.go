// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package prompts loads the instruction preambles, the response-mode texts
// and the health database schema. Everything is read once into immutable
// values that agents copy at construction.
package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/healthdesk/pkg/core"
)

//go:embed defaults/*
var defaults embed.FS

// ManifestFile is the agent manifest name inside a prompts directory.
const ManifestFile = "agents.yaml"

// SchemaFile holds the health database DDL.
const SchemaFile = "schema.sql"

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Definition is the immutable description of one agent.
type Definition struct {
	Name         string
	Description  string
	Instructions string
	MaxSteps     int
}

// Manager is the immutable description of the manager agent. Delegates are
// the sub-agent names its preamble declares.
type Manager struct {
	Name      string
	MaxSteps  int
	Delegates []string

	template string
}

// DelegateInfo is what the manager preamble shows for each delegate.
type DelegateInfo struct {
	Name        string
	Description string
}

// Preamble renders the manager instructions for the given delegates.
func (m Manager) Preamble(delegates []DelegateInfo) (string, error) {
	tmpl, err := template.New(m.Name).Parse(m.template)
	if err != nil {
		return "", fmt.Errorf("parse manager preamble: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Delegates []DelegateInfo }{delegates}); err != nil {
		return "", fmt.Errorf("render manager preamble: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Set is a loaded prompt set.
type Set struct {
	manager Manager
	agents  []Definition
	modes   map[core.ResponseMode]string
	schema  string
}

type manifest struct {
	Manager struct {
		Name             string   `yaml:"name"`
		InstructionsFile string   `yaml:"instructions_file"`
		MaxSteps         int      `yaml:"max_steps"`
		Delegates        []string `yaml:"delegates"`
	} `yaml:"manager"`
	Agents []struct {
		Name             string `yaml:"name"`
		Description      string `yaml:"description"`
		Instructions     string `yaml:"instructions"`
		InstructionsFile string `yaml:"instructions_file"`
		IncludeSchema    bool   `yaml:"include_schema"`
		MaxSteps         int    `yaml:"max_steps"`
	} `yaml:"agents"`
	Modes map[string]string `yaml:"modes"`
}

// Default returns the built-in prompt set.
func Default() (Set, error) {
	return Load("")
}

// Load reads the prompt set from dir. Files missing from dir, or every file
// when dir is empty, come from the built-in copies.
func Load(dir string) (Set, error) {
	src := overlay{embedded: mustSub(defaults, "defaults")}
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return Set{}, fmt.Errorf("prompts dir: %w", err)
		}
		if !info.IsDir() {
			return Set{}, fmt.Errorf("prompts dir %s is not a directory", dir)
		}
		src.local = os.DirFS(dir)
	}
	return load(src)
}

func load(src overlay) (Set, error) {
	raw, err := src.read(ManifestFile)
	if err != nil {
		return Set{}, err
	}
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Set{}, fmt.Errorf("parse %s: %w", ManifestFile, err)
	}

	schema, err := src.read(SchemaFile)
	if err != nil {
		return Set{}, err
	}
	s := Set{
		schema: string(schema),
		modes:  make(map[core.ResponseMode]string, len(m.Modes)),
	}

	for key, text := range m.Modes {
		mode, err := core.ParseResponseMode(key)
		if err != nil {
			return Set{}, fmt.Errorf("%s: %w", ManifestFile, err)
		}
		s.modes[mode] = strings.TrimSpace(text)
	}
	for _, mode := range []core.ResponseMode{core.ModeShort, core.ModeDetailed} {
		if s.modes[mode] == "" {
			return Set{}, fmt.Errorf("%s: missing instructions for mode %q", ManifestFile, mode)
		}
	}

	seen := make(map[string]bool, len(m.Agents))
	for _, a := range m.Agents {
		if !namePattern.MatchString(a.Name) {
			return Set{}, fmt.Errorf("%s: invalid agent name %q", ManifestFile, a.Name)
		}
		if seen[a.Name] {
			return Set{}, fmt.Errorf("%s: duplicate agent %q", ManifestFile, a.Name)
		}
		seen[a.Name] = true

		instructions := a.Instructions
		if a.InstructionsFile != "" {
			data, err := src.read(a.InstructionsFile)
			if err != nil {
				return Set{}, fmt.Errorf("agent %s: %w", a.Name, err)
			}
			instructions = string(data)
		}
		instructions = strings.TrimSpace(instructions)
		if a.IncludeSchema {
			instructions += "\n\n" + strings.TrimSpace(s.schema)
		}
		s.agents = append(s.agents, Definition{
			Name:         a.Name,
			Description:  strings.TrimSpace(a.Description),
			Instructions: instructions,
			MaxSteps:     a.MaxSteps,
		})
	}

	tmpl, err := src.read(m.Manager.InstructionsFile)
	if err != nil {
		return Set{}, fmt.Errorf("manager: %w", err)
	}
	name := m.Manager.Name
	if name == "" {
		name = "manager"
	}
	s.manager = Manager{
		Name:      name,
		MaxSteps:  m.Manager.MaxSteps,
		Delegates: append([]string(nil), m.Manager.Delegates...),
		template:  string(tmpl),
	}
	if _, err := template.New(name).Parse(s.manager.template); err != nil {
		return Set{}, fmt.Errorf("manager preamble: %w", err)
	}
	return s, nil
}

// Manager returns the manager record.
func (s Set) Manager() Manager {
	m := s.manager
	m.Delegates = append([]string(nil), s.manager.Delegates...)
	return m
}

// Agent returns the definition named name.
func (s Set) Agent(name string) (Definition, bool) {
	for _, d := range s.agents {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// Agents returns every sub-agent definition in manifest order.
func (s Set) Agents() []Definition {
	return append([]Definition(nil), s.agents...)
}

// Schema returns the health database DDL.
func (s Set) Schema() string { return s.schema }

// ModeInstructions returns the text appended to a goal for mode.
func (s Set) ModeInstructions(mode core.ResponseMode) string {
	if mode == "" {
		mode = core.ModeShort
	}
	return s.modes[mode]
}

// Modes returns a copy of the response-mode texts.
func (s Set) Modes() map[core.ResponseMode]string {
	out := make(map[core.ResponseMode]string, len(s.modes))
	for k, v := range s.modes {
		out[k] = v
	}
	return out
}

// overlay reads from a local directory first, then from the built-in files.
type overlay struct {
	local    fs.FS
	embedded fs.FS
}

func (o overlay) read(name string) ([]byte, error) {
	if name == "" {
		return nil, errors.New("empty file name")
	}
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid prompt file name %q", name)
	}
	if o.local != nil {
		data, err := fs.ReadFile(o.local, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	data, err := fs.ReadFile(o.embedded, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
