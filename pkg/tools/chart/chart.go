// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package chart implements the save_chart tool used by the visual
// sub-agent. Charts are rendered with go-chart into the artifact directory.
package chart

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/llm"
	"github.com/jllopis/healthdesk/pkg/tools"
)

const ToolName = "save_chart"

const (
	KindBar  = "bar"
	KindLine = "line"
	KindPie  = "pie"
)

const (
	defaultWidth  = 1024
	defaultHeight = 576
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Series is one named row of values aligned with Request.Labels.
type Series struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// Request describes a chart.
type Request struct {
	Kind     string   `json:"kind"`
	Title    string   `json:"title"`
	XLabel   string   `json:"x_label"`
	YLabel   string   `json:"y_label"`
	Labels   []string `json:"labels"`
	Series   []Series `json:"series"`
	Filename string   `json:"filename"`
}

// Validate checks the shape of r. Bar and pie charts take exactly one series.
func (r Request) Validate() error {
	switch r.Kind {
	case KindBar, KindLine, KindPie:
	default:
		return tools.InvalidArgs("kind must be bar, line or pie, got %q", r.Kind)
	}
	if len(r.Labels) == 0 {
		return tools.InvalidArgs("labels are required")
	}
	if len(r.Series) == 0 {
		return tools.InvalidArgs("at least one series is required")
	}
	if r.Kind != KindLine && len(r.Series) > 1 {
		return tools.InvalidArgs("%s charts take a single series, got %d", r.Kind, len(r.Series))
	}
	if r.Kind == KindLine && len(r.Labels) < 2 {
		return tools.InvalidArgs("line charts need at least two points")
	}
	for _, s := range r.Series {
		if len(s.Values) != len(r.Labels) {
			return tools.InvalidArgs("series %q has %d values for %d labels", s.Name, len(s.Values), len(r.Labels))
		}
	}
	return nil
}

// Tool is the save_chart tool.
type Tool struct {
	dir string
	now func() time.Time
}

// NewTool returns a tool writing into dir.
func NewTool(dir string) *Tool {
	if dir == "" {
		dir = "."
	}
	return &Tool{dir: dir, now: time.Now}
}

// Dir returns the output directory.
func (t *Tool) Dir() string { return t.dir }

func (t *Tool) Name() string { return ToolName }

func (t *Tool) ToolDefinition() llm.Tool {
	return llm.NewFunctionTool(ToolName,
		"Renders a bar, line or pie chart from the given data and saves it as a PNG or SVG file. Returns the saved filename.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"kind":    map[string]any{"type": "string", "enum": []string{KindBar, KindLine, KindPie}},
				"title":   map[string]any{"type": "string"},
				"x_label": map[string]any{"type": "string"},
				"y_label": map[string]any{"type": "string"},
				"labels": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Category or date labels, one per point.",
				},
				"series": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"name":   map[string]any{"type": "string"},
							"values": map[string]any{"type": "array", "items": map[string]any{"type": "number"}},
						},
						"required": []string{"values"},
					},
				},
				"filename": map[string]any{"type": "string", "description": "File name ending in .png or .svg."},
			},
			"required": []string{"kind", "labels", "series"},
		})
}

func (t *Tool) Call(ctx context.Context, input any) (any, error) {
	args, err := tools.DecodeArgs(input)
	if err != nil {
		return nil, err
	}
	req, err := decodeRequest(args)
	if err != nil {
		return nil, err
	}
	name, err := t.Save(ctx, req)
	if err != nil {
		return nil, err
	}
	return "Chart saved as " + name, nil
}

// Save renders req and writes it into the output directory. It returns the
// file name relative to that directory.
func (t *Tool) Save(ctx context.Context, req Request) (string, error) {
	req.Kind = strings.ToLower(strings.TrimSpace(req.Kind))
	if req.Kind == "" {
		req.Kind = KindBar
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	name, err := sanitizeFilename(req.Filename, req.Title, t.now())
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	provider := gochart.PNG
	if strings.EqualFold(filepath.Ext(name), ".svg") {
		provider = gochart.SVG
	}
	if err := t.write(name, func(w io.Writer) error { return render(req, provider, w) }); err != nil {
		return "", tools.Failure(ToolName, err)
	}
	return name, nil
}

// write renders into a hidden temp file and renames it so readers never
// see a partial chart.
func (t *Tool) write(name string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(t.dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(t.dir, ".chart-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(t.dir, name))
}

func render(req Request, provider gochart.RendererProvider, w io.Writer) error {
	switch req.Kind {
	case KindPie:
		pie := gochart.PieChart{
			Title:  req.Title,
			Width:  defaultHeight,
			Height: defaultHeight,
			Values: values(req.Labels, req.Series[0].Values),
		}
		return pie.Render(provider, w)
	case KindLine:
		return lineChart(req).Render(provider, w)
	default:
		bw := barWidth(len(req.Labels))
		bar := gochart.BarChart{
			Title:      req.Title,
			Width:      defaultWidth,
			Height:     defaultHeight,
			BarWidth:   bw,
			BarSpacing: bw,
			Background: gochart.Style{
				Padding: gochart.Box{Top: 40},
			},
			XAxis: gochart.Style{FontSize: 9},
			YAxis: gochart.YAxis{Name: req.YLabel},
			Bars:  values(req.Labels, req.Series[0].Values),
		}
		return bar.Render(provider, w)
	}
}

func lineChart(req Request) *gochart.Chart {
	xs := make([]float64, len(req.Labels))
	ticks := make([]gochart.Tick, len(req.Labels))
	for i, label := range req.Labels {
		xs[i] = float64(i)
		ticks[i] = gochart.Tick{Value: float64(i), Label: label}
	}
	graph := &gochart.Chart{
		Title:  req.Title,
		Width:  defaultWidth,
		Height: defaultHeight,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 40, Left: 20},
		},
		XAxis: gochart.XAxis{Name: req.XLabel, Ticks: ticks},
		YAxis: gochart.YAxis{Name: req.YLabel},
	}
	for _, s := range req.Series {
		graph.Series = append(graph.Series, gochart.ContinuousSeries{
			Name:    s.Name,
			XValues: xs,
			YValues: s.Values,
		})
	}
	if len(req.Series) > 1 {
		graph.Elements = []gochart.Renderable{gochart.Legend(graph)}
	}
	return graph
}

func values(labels []string, vs []float64) []gochart.Value {
	out := make([]gochart.Value, len(labels))
	for i, label := range labels {
		out[i] = gochart.Value{Label: label, Value: vs[i]}
	}
	return out
}

func barWidth(n int) int {
	w := (defaultWidth - 100) / (2 * n)
	switch {
	case w > 60:
		return 60
	case w < 4:
		return 4
	}
	return w
}

func decodeRequest(args tools.Args) (Request, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return Request{}, tools.InvalidArgs("arguments: %v", err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, tools.InvalidArgs("arguments do not describe a chart: %v", err)
	}
	return req, nil
}

// sanitizeFilename keeps the base name, replaces unsafe characters and
// defaults the extension to .png. Other extensions are rejected. Without a
// filename the title names the file.
func sanitizeFilename(filename, title string, now time.Time) (string, error) {
	fallback := fmt.Sprintf("chart_%d", now.Unix())
	name := strings.TrimSpace(filename)
	if name != "" {
		name = filepath.Base(filepath.Clean("/" + name))
	}
	if name == "" || name == "/" || name == "." {
		return cleanBase(strings.ToLower(title), fallback) + ".png", nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".svg":
	case "":
		ext = ".png"
	default:
		return "", tools.InvalidArgs("filename must end in .png or .svg, got %q", filename)
	}
	return cleanBase(strings.TrimSuffix(name, filepath.Ext(name)), fallback) + ext, nil
}

func cleanBase(base, fallback string) string {
	base = strings.Trim(unsafeName.ReplaceAllString(strings.TrimSpace(base), "_"), "._")
	if base == "" {
		return fallback
	}
	return base
}

var _ core.Tool = (*Tool)(nil)
