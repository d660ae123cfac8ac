// SPDX-License-Identifier: MIT

// Package control exposes playcore's host-facing HTTP surface: health,
// Prometheus metrics, an SSE mirror of the observer event bus, and the
// lifecycle endpoints a host application calls on focus changes,
// backgrounding, and memory-pressure notifications.
package control

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reelstack/playcore/internal/events"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Manager is the subset of the composed playback manager the control
// surface calls into. Satisfied by *manager.Manager.
type Manager interface {
	Focus(ctx context.Context, id string) error
	PauseActive(ctx context.Context) error
	PauseAll(ctx context.Context)
	ReclaimUnderMemoryPressure()
}

// Server wires a chi router over a Manager and an events.Bus.
type Server struct {
	router  chi.Router
	manager Manager
	bus     *events.Bus
	logger  zerolog.Logger
}

// NewServer builds the HTTP control surface. requestsPerMinute bounds the
// write endpoints' per-IP request rate; 0 disables rate limiting.
func NewServer(mgr Manager, bus *events.Bus, logger zerolog.Logger, requestsPerMinute int) *Server {
	s := &Server{manager: mgr, bus: bus, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(otelhttp.NewMiddleware("playcore"))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/v1/events", s.handleEvents)

	write := r.Group(nil)
	if requestsPerMinute > 0 {
		write.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))
	}
	write.Post("/v1/focus/{id}", s.handleFocus)
	write.Post("/v1/app/background", s.handleBackground)
	write.Post("/v1/app/foreground", s.handleForeground)
	write.Post("/v1/memory-pressure", s.handleMemoryPressure)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.manager.Focus(r.Context(), id); err != nil {
		s.logger.Warn().Err(err).Str("id", id).Msg("focus request failed")
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBackground(w http.ResponseWriter, r *http.Request) {
	s.manager.PauseAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForeground(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMemoryPressure(w http.ResponseWriter, r *http.Request) {
	s.manager.ReclaimUnderMemoryPressure()
	w.WriteHeader(http.StatusAccepted)
}

// handleEvents streams observer events as server-sent events until the
// client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.bus.Subscribe(r.Context())
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
