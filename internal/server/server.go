// Package server exposes the guide pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/ftbhabuk/yatra/internal/domain"
	"github.com/ftbhabuk/yatra/internal/service"
)

// GuidePlanner is the server-facing subset of the planner.
type GuidePlanner interface {
	PlanGuide(ctx context.Context, place string) (*service.PlanResult, error)
}

// Config configures the HTTP server.
type Config struct {
	Qualifier string
	Logger    *log.Logger
}

// Server routes guide requests to the planner and maps pipeline errors to
// HTTP statuses.
type Server struct {
	planner   GuidePlanner
	qualifier string
	logger    *log.Logger
	mux       *http.ServeMux
}

// New creates the HTTP server.
func New(planner GuidePlanner, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	s := &Server{
		planner:   planner,
		qualifier: cfg.Qualifier,
		logger:    cfg.Logger,
		mux:       http.NewServeMux(),
	}
	s.mux.HandleFunc("/api/guide", s.handleGuide)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(sw, r)
	s.logger.Printf("%s %s %s -> %d (%dms)", id, r.Method, r.URL.Path, sw.status, time.Since(start).Milliseconds())
}

type guideRequest struct {
	Place string `json:"place"`
}

type guideResponse struct {
	Result    string          `json:"result"`
	Sources   []domain.Source `json:"sources"`
	FromCache bool            `json:"fromCache"`
	CachedAt  string          `json:"cachedAt,omitempty"`
	Debug     map[string]any  `json:"debug"`
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}
	var req guideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Invalid request body"})
		return
	}

	result, err := s.planner.PlanGuide(r.Context(), req.Place)
	if err != nil {
		s.writeError(w, req.Place, err)
		return
	}

	debug := map[string]any{"place": req.Place}
	for k, v := range s.searchURLHints(req.Place) {
		debug[k] = v
	}
	if !result.FromCache {
		debug["totalChunks"] = result.TotalChunks
	}
	writeJSON(w, http.StatusOK, guideResponse{
		Result:    result.Result,
		Sources:   result.Sources,
		FromCache: result.FromCache,
		CachedAt:  result.CachedAt,
		Debug:     debug,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) writeError(w http.ResponseWriter, place string, err error) {
	var validation *domain.ValidationError
	if errors.As(err, &validation) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": validation.Msg})
		return
	}
	var config *domain.ConfigError
	if errors.As(err, &config) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":       "API keys not configured",
			"missingKeys": config.MissingKeys,
		})
		return
	}
	if domain.NotFound(err) {
		body := map[string]any{"error": err.Error()}
		for k, v := range s.searchURLHints(place) {
			body[k] = v
		}
		writeJSON(w, http.StatusNotFound, body)
		return
	}
	s.logger.Printf("guide request for %q failed: %v", place, err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":     err.Error(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// searchURLHints builds external search links for the place, returned in
// debug blocks and not-found responses.
func (s *Server) searchURLHints(place string) map[string]string {
	q := url.QueryEscape(place + " " + s.qualifier)
	return map[string]string{
		"wikipedia":    "https://en.wikipedia.org/w/index.php?search=" + q,
		"tripadvisor":  "https://www.tripadvisor.com/Search?q=" + q,
		"lonelyPlanet": "https://www.lonelyplanet.com/search?q=" + q,
		"googleMaps":   "https://www.google.com/maps/search/" + q,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
