// Package agenthttp implements the per-agent HTTP surface: read-only
// introspection endpoints plus the single inbound gossip endpoint,
// POST /pheromone.
package agenthttp

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pheromone-collective/swarm/internal/agent"
	"github.com/pheromone-collective/swarm/internal/persistence"
	"github.com/pheromone-collective/swarm/pkg/wire"
)

// Server wraps one agent's Loop and exposes it over HTTP.
type Server struct {
	Loop    *agent.Loop
	Persist persistence.Store // for GET /collective; nil disables it (empty array returned)

	router chi.Router
}

// New builds the router. Call Handler() or Run to serve it.
func New(loop *agent.Loop, store persistence.Store) *Server {
	s := &Server{Loop: loop, Persist: store}
	s.router = s.buildRouter()
	return s
}

// Handler returns the http.Handler to mount, e.g. in tests via
// httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/state", s.handleState)
	r.Get("/pheromones", s.handlePheromones)
	r.Post("/pheromone", s.handlePostPheromone)
	r.Get("/thoughts", s.handleThoughts)
	r.Get("/identity", s.handleIdentity)
	r.Get("/attestation", s.handleAttestation)
	r.Get("/collective", s.handleCollective)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// corsMiddleware allows the dashboard to read every agent from one
// origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("agenthttp: encode response: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.Loop.Snapshot()
	writeJSON(w, map[string]interface{}{"ok": true, "agent": snap.ID, "step": snap.Step})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Loop.Snapshot())
}

func (s *Server) handlePheromones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Loop.Pheromones())
}

func (s *Server) handlePostPheromone(w http.ResponseWriter, r *http.Request) {
	var sig wire.Signal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		http.Error(w, "invalid signal payload", http.StatusBadRequest)
		return
	}
	s.Loop.AcceptPheromone(sig)
	writeJSON(w, map[string]bool{"ok": true})
}

func (s *Server) handleThoughts(w http.ResponseWriter, r *http.Request) {
	thoughts := s.Loop.Thoughts()
	// newest first, last 50
	sort.Slice(thoughts, func(i, j int) bool { return thoughts[i].Timestamp > thoughts[j].Timestamp })
	if len(thoughts) > 50 {
		thoughts = thoughts[:50]
	}
	writeJSON(w, thoughts)
}

func (s *Server) handleIdentity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Loop.Identity())
}

func (s *Server) handleAttestation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Loop.AttestationView())
}

func (s *Server) handleCollective(w http.ResponseWriter, r *http.Request) {
	if s.Persist == nil {
		writeJSON(w, []wire.CollectiveMemory{})
		return
	}
	mems, err := s.Persist.LoadCollectiveMemories(r.Context(), 0)
	if err != nil {
		log.Printf("agenthttp: load collective memories: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, mems)
}

// Run serves the router on addr until ctx is cancelled, then shuts down
// gracefully with a 30s drain. Shutdown is driven by caller-supplied
// context cancellation so cmd/agent can coordinate one shutdown path
// across both the HTTP server and the tick loop.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("agenthttp: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Printf("agenthttp: shutting down %s", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
