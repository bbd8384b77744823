// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the browser-facing layer: it runs questions through the
// manager one at a time, reports staged progress, keeps per-session history
// and attaches the latest chart to the answer.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/healthdesk/pkg/artifact"
	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/errors"
	"github.com/jllopis/healthdesk/pkg/telemetry"
)

// Stage is a step of a chat run as shown to the user.
type Stage struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

var (
	StageInitializing = Stage{"initializing", "Initializing Health Analysis", "Preparing to analyze your health data..."}
	StageSearching    = Stage{"searching", "Searching Health Database", "Querying your health records and metrics..."}
	StageAnalyzing    = Stage{"analyzing", "Analyzing Health Patterns", "Processing data and generating insights..."}
	StageVisualizing  = Stage{"visualizing", "Creating Visualizations", "Generating charts and visual insights..."}
	StageDone         = Stage{"done", "", ""}
	StageError        = Stage{"error", "Analysis Error", "Please try again or contact support if the issue persists."}
)

var stages = map[string]Stage{
	StageInitializing.Key: StageInitializing,
	StageSearching.Key:    StageSearching,
	StageAnalyzing.Key:    StageAnalyzing,
	StageVisualizing.Key:  StageVisualizing,
	StageDone.Key:         StageDone,
	StageError.Key:        StageError,
}

// StageByKey returns the stage named key.
func StageByKey(key string) (Stage, bool) {
	s, ok := stages[key]
	return s, ok
}

// Update is sent to the progress callback whenever the run advances.
type Update struct {
	Stage    Stage  `json:"stage"`
	Entry    Entry  `json:"entry"`
	Activity string `json:"activity,omitempty"`
	Done     bool   `json:"done"`
}

// Runner answers a task. *manager.Manager satisfies it.
type Runner interface {
	Run(ctx context.Context, task core.Task) (string, error)
}

// Service runs chat questions. Runs are serialized: a second Submit waits
// for the first to finish.
type Service struct {
	runner         Runner
	artifactDir    string
	currentRunOnly bool
	timeout        time.Duration

	mu sync.Mutex

	now     func() time.Time
	metrics *telemetry.Metrics
	log     *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithArtifactDir sets where charts are looked up. Defaults to ".".
func WithArtifactDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.artifactDir = dir
		}
	}
}

// WithCurrentRunOnly ignores artifacts older than the run.
func WithCurrentRunOnly(enabled bool) Option {
	return func(s *Service) { s.currentRunOnly = enabled }
}

// WithRunTimeout bounds each run. Zero means no bound.
func WithRunTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithMetrics records run and error counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger replaces slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService returns a Service running questions through runner.
func NewService(runner Runner, opts ...Option) (*Service, error) {
	if runner == nil {
		return nil, errors.New(errors.CodeInvalidInput, "chat service requires a runner", nil)
	}
	s := &Service{
		runner:      runner,
		artifactDir: ".",
		now:         time.Now,
		log:         slog.Default(),
		tracer:      otel.Tracer("healthdesk/chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ArtifactDir returns the directory charts are read from.
func (s *Service) ArtifactDir() string { return s.artifactDir }

// Submit asks message in mode and records the exchange in h. progress, if
// not nil, sees every stage change. A blank message is rejected without
// touching h. A failed run still leaves an error entry in h; the returned
// error is the run's.
func (s *Service) Submit(ctx context.Context, h *History, message string, mode core.ResponseMode, progress func(Update)) (Entry, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Entry{}, errors.New(errors.CodeInvalidInput, "message is empty", nil)
	}
	if progress == nil {
		progress = func(Update) {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := core.NewTask(message, mode)
	ctx, span := s.tracer.Start(ctx, "Chat.Submit")
	defer span.End()
	span.SetAttributes(telemetry.TaskAttributes(task.ID, task.Goal, string(task.Mode))...)

	start := s.now()
	h.Append(Entry{Role: RoleUser, Content: message})
	pending := h.Append(Entry{Role: RoleAssistant, Pending: true, Stage: StageInitializing.Key})
	// A Clear during the run drops the pending entry from the history; the
	// run keeps a local copy so the answer still reaches the caller.
	var curMu sync.Mutex
	current := pending
	update := func(fn func(*Entry)) Entry {
		curMu.Lock()
		defer curMu.Unlock()
		if e, ok := h.Update(pending.ID, fn); ok {
			current = e
			return e
		}
		fn(&current)
		current.ID, current.CreatedAt = pending.ID, pending.CreatedAt
		return current
	}
	advance := func(stage Stage) {
		e := update(func(e *Entry) { e.Stage = stage.Key })
		progress(Update{Stage: stage, Entry: e})
	}

	advance(StageInitializing)
	advance(StageSearching)
	advance(StageAnalyzing)

	s.log.InfoContext(ctx, "chat.run.start",
		slog.String("task_id", task.ID),
		slog.String("mode", string(task.Mode)),
	)
	answer, err := s.run(ctx, task, func(activity string) {
		progress(Update{Stage: StageAnalyzing, Entry: update(func(*Entry) {}), Activity: activity})
	})
	s.record(ctx, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.log.ErrorContext(ctx, "chat.run.error",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()),
		)
		e := update(func(e *Entry) {
			e.Stage = StageError.Key
			e.Content = err.Error()
			e.Error = true
			e.Pending = false
		})
		progress(Update{Stage: StageError, Entry: e, Done: true})
		return e, err
	}

	advance(StageVisualizing)
	img := s.latestImage(ctx, start)

	e := update(func(e *Entry) {
		e.Stage = StageDone.Key
		e.Content = answer
		e.Pending = false
		e.Image, e.ImageName, e.ImageFresh = img.uri, img.name, img.fresh
		if img.name != "" && img.uri == "" {
			e.Content += fmt.Sprintf("\n\nI've created a visualization saved as: %s", img.name)
		}
	})
	progress(Update{Stage: StageDone, Entry: e, Done: true})
	s.log.InfoContext(ctx, "chat.run.complete",
		slog.String("task_id", task.ID),
		slog.Int("answer_len", len(answer)),
		slog.String("artifact", img.name),
	)
	return e, nil
}

func (s *Service) run(ctx context.Context, task core.Task, activity func(string)) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	ctx = core.WithEventEmitter(ctx, core.EventEmitterFunc(func(_ context.Context, ev core.Event) {
		if ev.Type != core.EventAgentDelegation {
			return
		}
		name, _ := ev.Payload["delegate"].(string)
		activity("Consulting " + name)
	}))

	answer, err := s.runner.Run(ctx, task)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && !errors.HasCode(err, errors.CodeTimeout) {
			err = errors.New(errors.CodeTimeout, fmt.Sprintf("analysis did not finish within %s", s.timeout), err)
		}
		return "", err
	}
	return answer, nil
}

type inlineImage struct {
	name  string
	uri   string
	fresh bool
}

// latestImage picks the newest artifact. Files that cannot be inlined keep
// their name so the answer can point to them.
func (s *Service) latestImage(ctx context.Context, start time.Time) inlineImage {
	var opts []artifact.Option
	if s.currentRunOnly {
		opts = append(opts, artifact.WithSince(start))
	}
	a, ok, err := artifact.Latest(s.artifactDir, opts...)
	if err != nil {
		s.log.WarnContext(ctx, "chat.artifact.error", slog.String("error", err.Error()))
		return inlineImage{}
	}
	if !ok {
		return inlineImage{}
	}
	img := inlineImage{name: a.Name, fresh: a.Fresh(start)}
	if !a.IsImage() {
		return img
	}
	uri, err := a.DataURI()
	if err != nil {
		s.log.WarnContext(ctx, "chat.artifact.error", slog.String("artifact", a.Name), slog.String("error", err.Error()))
		return img
	}
	img.uri = uri
	return img
}

func (s *Service) record(ctx context.Context, err error) {
	s.metrics.RecordRun(ctx, "chat", err)
	s.metrics.RecordError(ctx, err, "chat")
}
