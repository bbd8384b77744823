// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/jllopis/healthdesk/pkg/artifact"
	"github.com/jllopis/healthdesk/pkg/core"
	"github.com/jllopis/healthdesk/pkg/errors"
)

const sessionCookie = "healthdesk_session"

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"imageURL": imageURL,
	"stage": func(key string) Stage {
		s, _ := StageByKey(key)
		return s
	},
}).ParseFS(templatesFS, "templates/index.html"))

// Example is a canned question offered as a button.
type Example struct {
	Label  string
	Prompt string
}

// DefaultExamples are the questions shown under the chat.
var DefaultExamples = []Example{
	{Label: "Heart Health", Prompt: "How is my heart health, compared to people in my age group?"},
	{Label: "Sleep Health", Prompt: "How well am I sleeping?"},
	{Label: "Activity Level", Prompt: "How can I improve my activity level?"},
}

// Server serves the chat page and its API.
type Server struct {
	svc      *Service
	sessions *Sessions
	health   *core.HealthRegistry
	title    string
	examples []Example
	log      *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTitle sets the page title.
func WithTitle(title string) ServerOption {
	return func(s *Server) {
		if title != "" {
			s.title = title
		}
	}
}

// WithHealth serves reg at /healthz.
func WithHealth(reg *core.HealthRegistry) ServerOption {
	return func(s *Server) { s.health = reg }
}

// WithExamples replaces DefaultExamples.
func WithExamples(examples ...Example) ServerOption {
	return func(s *Server) { s.examples = examples }
}

// WithServerLogger replaces slog.Default.
func WithServerLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// NewServer returns the HTTP front end for svc.
func NewServer(svc *Service, opts ...ServerOption) *Server {
	s := &Server{
		svc:      svc,
		sessions: NewSessions(),
		health:   core.NewHealthRegistry(),
		title:    "Health Assistant",
		examples: DefaultExamples,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/latest-image", s.handleLatestImage)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

type pageData struct {
	Title    string
	Entries  []Entry
	Examples []Example
	Modes    []core.ResponseMode
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	h := s.sessions.Get(s.session(w, r))
	data := pageData{
		Title:    s.title,
		Entries:  h.Messages(),
		Examples: s.examples,
		Modes:    []core.ResponseMode{core.ModeShort, core.ModeDetailed},
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.log.ErrorContext(r.Context(), "chat.page.error", slog.String("error", err.Error()))
	}
}

// handleChat runs one question and streams each Update as a server-sent
// event. The run itself is the Service's; the stream only reports it.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	message, modeValue, err := readChatRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	mode, err := core.ParseResponseMode(modeValue)
	if err != nil {
		writeError(w, errors.New(errors.CodeInvalidInput, err.Error(), nil))
		return
	}
	if strings.TrimSpace(message) == "" {
		writeError(w, errors.New(errors.CodeInvalidInput, "message is empty", nil))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream not supported", http.StatusInternalServerError)
		return
	}

	sessionID := s.session(w, r)
	h := s.sessions.Get(sessionID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	send := func(u Update) {
		data, err := json.Marshal(u)
		if err != nil {
			return
		}
		event := "progress"
		if u.Done {
			event = "done"
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return
		}
		flusher.Flush()
	}

	ctx := core.WithSessionID(r.Context(), sessionID)
	if _, err := s.svc.Submit(ctx, h, message, mode, send); err != nil {
		s.log.WarnContext(ctx, "chat.request.error",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h := s.sessions.Get(s.session(w, r))
	writeJSON(w, http.StatusOK, map[string]any{"entries": h.Messages()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.sessions.Get(s.session(w, r)).Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLatestImage(w http.ResponseWriter, r *http.Request) {
	a, ok, err := artifact.Latest(s.svc.ArtifactDir())
	if err != nil {
		writeError(w, errors.New(errors.CodeInternal, "artifact lookup failed", err))
		return
	}
	if !ok || !a.IsImage() {
		writeError(w, errors.New(errors.CodeNotFound, "no visualization yet", nil))
		return
	}
	f, err := os.Open(a.Path)
	if err != nil {
		writeError(w, errors.New(errors.CodeNotFound, "artifact vanished: "+a.Name, err))
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", a.MIMEType())
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Artifact-Name", a.Name)
	http.ServeContent(w, r, a.Name, a.ModTime, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	results, overall := s.health.CheckAll(r.Context())
	status := http.StatusOK
	if overall == core.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}

// session returns the caller's session ID, issuing a cookie on first visit.
func (s *Server) session(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func readChatRequest(r *http.Request) (message, mode string, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Message string `json:"message"`
			Mode    string `json:"mode"`
		}
		if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 64<<10)).Decode(&body); err != nil {
			return "", "", errors.New(errors.CodeInvalidInput, "invalid JSON body", err)
		}
		return body.Message, body.Mode, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", "", errors.New(errors.CodeInvalidInput, "invalid form body", err)
	}
	return r.PostFormValue("message"), r.PostFormValue("mode"), nil
}

func imageURL(uri string) template.URL {
	if strings.HasPrefix(uri, "data:image/") {
		return template.URL(uri)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	he := errors.AsError(err)
	writeJSON(w, he.StatusCode, map[string]any{"error": he.Message, "code": he.Code})
}
