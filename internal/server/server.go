package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"leadwatch/internal/monitor"
	"leadwatch/internal/store"

	"go.uber.org/zap"
)

// LeadReader is the slice of the lead store the dashboard needs.
type LeadReader interface {
	List(ctx context.Context, filters store.Filters) ([]*store.Lead, error)
	Dismiss(ctx context.Context, identity string) (bool, error)
	Count(ctx context.Context) (total, active int, err error)
}

// Server exposes the dashboard HTTP API.
type Server struct {
	leads     LeadReader
	runner    *monitor.Runner
	scheduler *monitor.Scheduler
	runConfig monitor.RunConfig
	hub       *Hub
	logger    *zap.Logger
}

func New(leads LeadReader, runner *monitor.Runner, scheduler *monitor.Scheduler, runConfig monitor.RunConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		leads:     leads,
		runner:    runner,
		scheduler: scheduler,
		runConfig: runConfig,
		hub:       NewHub(),
		logger:    logger,
	}

	runner.OnLeadCreated(func(lead *store.Lead) {
		s.hub.PublishEvent("lead_created", map[string]any{
			"identity": lead.Identity,
			"author":   lead.AuthorName,
			"company":  lead.Company,
			"url":      lead.PostURL,
		})
	})

	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.handleHealth,
	}))
	mux.HandleFunc("/leads", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.handleListLeads,
	}))
	mux.HandleFunc("/leads/", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: s.handleDismiss, // expects /leads/{identity}/dismiss
	}))
	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: s.handleRun,
	}))
	mux.HandleFunc("/monitoring/start", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: s.handleMonitoringStart,
	}))
	mux.HandleFunc("/monitoring/stop", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: s.handleMonitoringStop,
	}))
	mux.HandleFunc("/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.handleStatus,
	}))
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: s.handleEvents,
	}))

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	leads, err := s.leads.List(r.Context(), store.Filters{
		Keyword:          q.Get("keyword"),
		JobTitle:         q.Get("job_title"),
		Industry:         q.Get("industry"),
		FreeText:         q.Get("q"),
		IncludeDismissed: q.Get("include_dismissed") == "true",
		Limit:            limit,
	})
	if err != nil {
		s.logger.Error("list leads failed", zap.Error(err))
		http.Error(w, "lead store unavailable", http.StatusServiceUnavailable)
		return
	}

	if leads == nil {
		leads = []*store.Lead{}
	}
	writeJSON(w, leads)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/leads/")
	identity, ok := strings.CutSuffix(rest, "/dismiss")
	if !ok || identity == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if decoded, err := url.PathUnescape(identity); err == nil {
		identity = decoded
	}

	found, err := s.leads.Dismiss(r.Context(), identity)
	if err != nil {
		s.logger.Error("dismiss failed", zap.String("identity", identity), zap.Error(err))
		http.Error(w, "lead store unavailable", http.StatusServiceUnavailable)
		return
	}
	if !found {
		http.Error(w, "unknown lead", http.StatusNotFound)
		return
	}

	s.hub.PublishEvent("lead_dismissed", map[string]any{"identity": identity})
	writeJSON(w, map[string]any{"ok": true, "identity": identity})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	summary, err := s.runner.Run(r.Context(), s.runConfig)
	if err != nil {
		if errors.Is(err, monitor.ErrConfigInvalid) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.logger.Error("on-demand sweep failed", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]any{"error": err.Error(), "summary": summary})
		return
	}

	writeJSON(w, summary)
}

func (s *Server) handleMonitoringStart(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.Start(context.WithoutCancel(r.Context()), s.runConfig); err != nil {
		if errors.Is(err, monitor.ErrConfigInvalid) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	writeJSON(w, s.scheduler.Status())
}

func (s *Server) handleMonitoringStop(w http.ResponseWriter, _ *http.Request) {
	stopped := s.scheduler.Stop()
	writeJSON(w, map[string]any{"ok": stopped, "state": s.scheduler.Status().State})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, active, err := s.leads.Count(r.Context())
	if err != nil {
		s.logger.Error("lead count failed", zap.Error(err))
		http.Error(w, "lead store unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]any{
		"monitoring":   s.scheduler.Status(),
		"leads_total":  total,
		"leads_active": active,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(ch)

	fmt.Fprintf(w, "event: message\ndata: {\"type\":\"ping\"}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
