package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"statusdeck/internal/shadowstate"
	"statusdeck/pkg/plugin"

	"go.uber.org/zap"
)

// Actions is what the API needs from the plugin that owns the buttons
type Actions interface {
	plugin.Triggerer
	plugin.Refresher
}

// Server provides HTTP API endpoints for the status buttons
type Server struct {
	tracker   *shadowstate.Tracker
	actions   Actions
	logger    *zap.Logger
	server    *http.Server
	startedAt time.Time
}

// NewServer creates a new API server
func NewServer(tracker *shadowstate.Tracker, actions Actions, logger *zap.Logger, port int) *Server {
	s := &Server{
		tracker:   tracker,
		actions:   actions,
		logger:    logger.Named("api"),
		startedAt: time.Now(),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleSitemap)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/actions", s.handleListActions)
	mux.HandleFunc("GET /api/actions/{context}", s.handleGetAction)
	mux.HandleFunc("POST /api/actions/{context}/trigger", s.handleTrigger)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	return mux
}

// TriggerResponse is returned by the trigger endpoint
type TriggerResponse struct {
	Context string `json:"context"`
	Started bool   `json:"started"`
	Reason  string `json:"reason,omitempty"`
}

// handleListActions returns the shadow state of every button
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	states := s.tracker.All()
	writeJSON(w, http.StatusOK, states)

	s.logger.Debug("Actions request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("actions", len(states)))
}

// handleGetAction returns the shadow state of one button
func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("context")
	state, ok := s.tracker.Get(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown action " + key})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// handleTrigger runs a check for one button now
func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("context")
	if _, ok := s.tracker.Get(key); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown action " + key})
		return
	}

	started, err := s.actions.Trigger(key)
	if err != nil {
		s.logger.Error("Failed to trigger check", zap.String("context", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	resp := TriggerResponse{Context: key, Started: started}
	status := http.StatusAccepted
	if !started {
		resp.Reason = "check already in flight"
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)

	s.logger.Info("Check triggered via API",
		zap.String("context", key),
		zap.Bool("started", started),
		zap.String("remote_addr", r.RemoteAddr))
}

// handleRefresh runs a check on every button
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.actions.Refresh(); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"actions": len(s.tracker.Keys())})
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"actions": len(s.tracker.Keys()),
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
	{Path: "/health", Method: "GET", Description: "Health check endpoint - returns {\"status\": \"ok\"}"},
	{Path: "/api/actions", Method: "GET", Description: "Shadow state of every button: settings, last check, counters"},
	{Path: "/api/actions/{context}", Method: "GET", Description: "Shadow state of one button"},
	{Path: "/api/actions/{context}/trigger", Method: "POST", Description: "Run a check now, like a key press"},
	{Path: "/api/refresh", Method: "POST", Description: "Run a check on every button"},
}

// handleSitemap returns a list of all available API endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	// Only handle requests to the root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>Status Deck API</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
    </style>
</head>
<body>
    <h1>Status Deck API</h1>
`)
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint">
        <div><span class="method">%s</span> <span class="path">%s</span></div>
        <div class="description">%s</div>
    </div>
`, ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "</body>\n</html>\n")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "Status Deck API\n")
		fmt.Fprintf(w, "===============\n\n")
		fmt.Fprintf(w, "Available endpoints:\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "  %-6s %-32s %s\n", ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "\nExamples:\n\n")
		fmt.Fprintf(w, "  curl http://localhost:8081/api/actions | jq\n")
		fmt.Fprintf(w, "  curl -X POST http://localhost:8081/api/actions/<context>/trigger\n\n")
	}

	s.logger.Debug("Sitemap request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("html_format", preferHTML))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Run serves HTTP requests until ctx is cancelled, then shuts down
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return s.Stop()
	}
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
