// Package web serves the generated calendar files plus a small JSON API
// for listing views, inspecting events and triggering a resync.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"scoutcal/internal/config"
	"scoutcal/internal/ics"
	appLog "scoutcal/internal/log"
	"scoutcal/internal/syncer"
)

// syncTimeout bounds a manually triggered resync via POST /api/sync.
const syncTimeout = 120 * time.Second

// Server exposes the HTTP endpoints over a loaded configuration and a
// sync runner.
type Server struct {
	cfg    *config.Config
	runner *syncer.Runner
	mux    *http.ServeMux
}

// NewServer constructs a Server.
func NewServer(cfg *config.Config, runner *syncer.Runner) *Server {
	s := &Server{
		cfg:    cfg,
		runner: runner,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/calendars", s.handleCalendars)
	s.mux.HandleFunc("GET /api/events/{name}", s.handleEvents)
	s.mux.HandleFunc("POST /api/sync", s.handleSync)
	s.mux.HandleFunc("GET /{file}", s.handleFeed)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// indexResponse is the JSON shape of GET /.
type indexResponse struct {
	Status     string          `json:"status"`
	Message    string          `json:"message"`
	Calendars  []string        `json:"calendars"`
	Configured []configuredDTO `json:"configured"`
	OutputDir  string          `json:"output_dir"`
}

type configuredDTO struct {
	Name         string `json:"name"`
	File         string `json:"file"`
	Visibility   string `json:"visibility"`
	SourcesCount int    `json:"sources_count"`
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	configured := make([]configuredDTO, 0, len(s.cfg.Calendars))
	for _, cal := range s.cfg.Calendars {
		configured = append(configured, configuredDTO{
			Name:         cal.Name,
			File:         cal.Output,
			Visibility:   cal.Visibility,
			SourcesCount: len(cal.Sources),
		})
	}

	absOut, err := filepath.Abs(s.cfg.Server.OutputDir)
	if err != nil {
		absOut = s.cfg.Server.OutputDir
	}

	writeJSON(w, http.StatusOK, indexResponse{
		Status:     "ok",
		Message:    "Scouting Calendar Server",
		Calendars:  s.availableCalendars(),
		Configured: configured,
		OutputDir:  absOut,
	})
}

// calendarDTO is one entry of GET /api/calendars.
type calendarDTO struct {
	Name       string      `json:"name"`
	File       string      `json:"file"`
	URL        string      `json:"url"`
	Visibility string      `json:"visibility"`
	Sources    []sourceDTO `json:"sources"`
	Exists     bool        `json:"exists"`
	SizeBytes  int64       `json:"size_bytes,omitempty"`
	Modified   *time.Time  `json:"modified,omitempty"`
}

type sourceDTO struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func (s *Server) handleCalendars(w http.ResponseWriter, _ *http.Request) {
	out := make([]calendarDTO, 0, len(s.cfg.Calendars))
	for _, cal := range s.cfg.Calendars {
		dto := calendarDTO{
			Name:       cal.Name,
			File:       cal.Output,
			URL:        "/" + cal.Output,
			Visibility: cal.Visibility,
		}
		for _, src := range cal.Sources {
			dto.Sources = append(dto.Sources, sourceDTO{
				Name: src.Name,
				URL:  truncateURL(src.URL.String()),
			})
		}
		if info, err := os.Stat(filepath.Join(s.cfg.Server.OutputDir, cal.Output)); err == nil {
			dto.Exists = true
			dto.SizeBytes = info.Size()
			mod := info.ModTime()
			dto.Modified = &mod
		}
		out = append(out, dto)
	}

	writeJSON(w, http.StatusOK, map[string][]calendarDTO{"calendars": out})
}

// eventDTO is a JSON-friendly view of a published event. Start and end
// carry the raw ICS values; the server does not reinterpret dates.
type eventDTO struct {
	Title       string `json:"title"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	URL         string `json:"url,omitempty"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	cal, ok := s.cfg.FindCalendar(name)
	if !ok {
		writeError(w, http.StatusNotFound, "calendar not found")
		return
	}
	if !passwordValid(cal, r.URL.Query().Get("key")) {
		writeError(w, http.StatusForbidden, "invalid password")
		return
	}

	path := filepath.Join(s.cfg.Server.OutputDir, cal.Output)
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "calendar file not found")
			return
		}
		appLog.Error("failed to read calendar file", err, "path", path)
		writeError(w, http.StatusInternalServerError, "error reading calendar")
		return
	}

	events, err := ics.ParseICS(ics.Source{Name: cal.Name}, body)
	if err != nil {
		appLog.Error("failed to parse generated calendar", err, "path", path)
		writeError(w, http.StatusInternalServerError, "error reading calendar")
		return
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		title := ev.Summary
		if title == "" {
			title = "Geen titel"
		}
		dtos = append(dtos, eventDTO{
			Title:       title,
			Start:       ev.Start.Value,
			End:         ev.End.Value,
			Description: ev.Description,
			Location:    ev.Location,
			URL:         ev.URL,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"calendar": name,
		"events":   dtos,
	})
}

// syncResponse is the JSON shape of POST /api/sync.
type syncResponse struct {
	Status  string `json:"status"`
	Synced  int    `json:"synced"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), syncTimeout)
	defer cancel()

	summary := s.runner.Run(ctx)

	status := "completed"
	code := http.StatusOK
	if !summary.OK() {
		status = "failed"
		code = http.StatusInternalServerError
	}

	writeJSON(w, code, syncResponse{
		Status:  status,
		Synced:  summary.Synced,
		Skipped: summary.Skipped,
		Failed:  summary.Failed,
	})
}

// handleFeed serves a generated .ics file, gated by the view password
// when one is configured.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")
	if !strings.HasSuffix(name, ".ics") {
		name += ".ics"
	}

	// The path value never contains a slash, but be explicit about
	// keeping lookups inside the output directory.
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		writeError(w, http.StatusBadRequest, "invalid calendar name")
		return
	}

	if cal, ok := s.findCalendarByOutput(name); ok {
		if !passwordValid(cal, r.URL.Query().Get("key")) {
			writeError(w, http.StatusUnauthorized, "password required, add ?key=your_password to the URL")
			return
		}
	}

	body, err := os.ReadFile(filepath.Join(s.cfg.Server.OutputDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "calendar not found")
			return
		}
		appLog.Error("failed to read calendar file", err, "file", name)
		writeError(w, http.StatusInternalServerError, "error reading calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="`+name+`"`)
	w.Header().Set("Cache-Control", "no-cache, must-revalidate")
	_, _ = w.Write(body)
}

func (s *Server) findCalendarByOutput(output string) (config.CalendarConfig, bool) {
	for _, cal := range s.cfg.Calendars {
		if cal.Output == output {
			return cal, true
		}
	}
	return config.CalendarConfig{}, false
}

// availableCalendars lists the .ics files currently in the output dir.
func (s *Server) availableCalendars() []string {
	entries, err := os.ReadDir(s.cfg.Server.OutputDir)
	if err != nil {
		return []string{}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".ics") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// passwordValid checks the view password, constant-time. Views without
// a password (or with an unresolved !secret placeholder) are open.
func passwordValid(cal config.CalendarConfig, provided string) bool {
	required := cal.Password.String()
	if required == "" || strings.HasPrefix(required, "!secret") {
		return true
	}
	if provided == "" {
		return false
	}
	return secureCompare(required, provided)
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func truncateURL(u string) string {
	const max = 50
	if len(u) <= max {
		return u
	}
	return u[:max] + "..."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
