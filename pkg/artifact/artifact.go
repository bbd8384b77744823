// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact finds the charts and images agents leave in the artifact
// directory. The newest file wins regardless of which run wrote it; callers
// that care use WithSince or check Fresh.
package artifact

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Extensions are the file types treated as artifacts.
var Extensions = []string{".png", ".jpg", ".jpeg", ".svg", ".pdf"}

var mimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".svg":  "image/svg+xml",
	".pdf":  "application/pdf",
}

// Artifact is a file found in the artifact directory.
type Artifact struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Fresh reports whether the artifact was modified at or after t.
func (a Artifact) Fresh(t time.Time) bool {
	return !a.ModTime.Before(t)
}

// MIMEType returns the content type for the artifact's extension.
func (a Artifact) MIMEType() string {
	ext := strings.ToLower(filepath.Ext(a.Name))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// IsImage reports whether the artifact can be shown in an <img> tag.
func (a Artifact) IsImage() bool {
	return strings.HasPrefix(a.MIMEType(), "image/")
}

// DataURI reads the file and returns it as a base64 data URI.
func (a Artifact) DataURI() (string, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return "", fmt.Errorf("read artifact %s: %w", a.Name, err)
	}
	return "data:" + a.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

type options struct {
	since time.Time
}

// Option narrows the search.
type Option func(*options)

// WithSince ignores files modified before t.
func WithSince(t time.Time) Option {
	return func(o *options) { o.since = t }
}

// Latest returns the most recently modified artifact in dir. Ties on
// modification time go to the lexically greatest name. Subdirectories are
// not searched. ok is false when dir holds no artifact.
func Latest(dir string, opts ...Option) (a Artifact, ok bool, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Artifact{}, false, fmt.Errorf("scan artifact dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !HasArtifactExt(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		mod := info.ModTime()
		if !o.since.IsZero() && mod.Before(o.since) {
			continue
		}
		if ok && (mod.Before(a.ModTime) || (mod.Equal(a.ModTime) && entry.Name() < a.Name)) {
			continue
		}
		a = Artifact{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			ModTime: mod,
			Size:    info.Size(),
		}
		ok = true
	}
	return a, ok, nil
}

// HasArtifactExt reports whether name ends in one of Extensions, ignoring case.
func HasArtifactExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CheckWritable creates and removes a temporary file in dir.
func CheckWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("artifact dir %s is not writable: %w", dir, err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return err
	}
	return os.Remove(name)
}
