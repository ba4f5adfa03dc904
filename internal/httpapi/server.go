// Package httpapi maps HTTP requests onto orchestrator operations. Handlers
// stay thin: decode the body, call the orchestrator, write the outcome.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/vairlabs/vair-api/internal/avatar"
	"github.com/vairlabs/vair-api/internal/config"
	"github.com/vairlabs/vair-api/internal/observability"
)

type Server struct {
	cfg          config.Config
	orchestrator *avatar.Orchestrator
	logger       *slog.Logger
}

func New(cfg config.Config, orchestrator *avatar.Orchestrator, logger *slog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		orchestrator: orchestrator,
		logger:       logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// The viewer frontend is served from a different origin than this proxy.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.recoverJSON)

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api/avatar", func(r chi.Router) {
		r.Post("/start", s.handleStart)
		r.Post("/speak", s.handleSpeak)
		r.Post("/stop", s.handleStop)
		r.Get("/sessions", s.handleSessions)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req avatar.StartRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "Invalid request data")
		return
	}

	out, _ := s.orchestrator.Start(r.Context(), req)
	respondOutcome(w, out)
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req avatar.SpeakRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request data. Request body is required")
		return
	}

	respondOutcome(w, s.orchestrator.Speak(r.Context(), req))
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	// An absent body is treated as an empty object; the orchestrator still
	// requires the session id.
	var req avatar.StopRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "Invalid request data")
		return
	}

	respondOutcome(w, s.orchestrator.Stop(r.Context(), req))
}

func (s *Server) handleSessions(w http.ResponseWriter, _ *http.Request) {
	respondOutcome(w, s.orchestrator.List())
}

func (s *Server) recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic while handling request",
					"method", r.Method, "path", r.URL.Path, "panic", rec)
				respondError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		// Only a body with no JSON value at all counts as absent; a
		// truncated document is malformed and must surface as an error.
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondOutcome(w http.ResponseWriter, out avatar.Outcome) {
	respondJSON(w, out.Status, out.Body)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
