// Package aggregator implements the optional read-only dashboard
// surface: it fans out to every configured agent URL and de-duplicates
// by id, plus the single mutating endpoint, POST /api/inject.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/pheromone-collective/swarm/internal/auth"
	"github.com/pheromone-collective/swarm/internal/config"
	"github.com/pheromone-collective/swarm/pkg/wire"
)

// Config tunes the aggregator's fan-out behavior.
type Config struct {
	AgentURLs []string
	Timeout   time.Duration // per-agent fetch deadline, default 3s
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 3 * time.Second
	}
	return c.Timeout
}

// Server fans out to every configured agent and serves the merged,
// deduplicated result.
type Server struct {
	cfg    Config
	client *http.Client
	guard  *auth.Guard
	router chi.Router
}

// New builds the aggregator's router, gating POST /api/inject with the
// given OIDC config (the guard is a no-op if cfg.ClientID is empty).
func New(cfg Config, oidcCfg config.OIDCConfig) *Server {
	s := &Server{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.timeout()},
		guard:  auth.NewGuard(&oidcCfg),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/api/state", s.handleState)
	r.Get("/api/agents", s.handleAgents)
	r.Get("/api/pheromones", s.handlePheromones)
	r.Get("/api/thoughts", s.handleThoughts)
	r.Get("/api/collective", s.handleCollective)
	r.Get("/api/report", s.handleReport)
	r.Get("/api/attestations", s.handleAttestations)
	r.Get("/api/identities", s.handleIdentities)
	r.With(s.guard.Require).Post("/api/inject", s.handleInject)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

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
		log.Printf("aggregator: encode response: %v", err)
	}
}

// fetchEach calls path on every configured agent URL concurrently with
// the configured per-peer deadline, dropping individual failures —
// identical settle-all-ignore-failures semantics to
// internal/gossip.Transport.Pull.
func (s *Server) fetchEach(ctx context.Context, path string) [][]byte {
	results := make([][]byte, len(s.cfg.AgentURLs))
	var g errgroup.Group
	for i, url := range s.cfg.AgentURLs {
		i, url := i, url
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, s.cfg.timeout())
			defer cancel()
			body, err := s.getOne(reqCtx, url+path)
			if err != nil {
				return nil // drop this peer
			}
			results[i] = body
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Server) getOne(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, io.ErrUnexpectedEOF
	}
	return io.ReadAll(resp.Body)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	var out []wire.State
	for _, body := range s.fetchEach(r.Context(), "/state") {
		if body == nil {
			continue
		}
		var st wire.State
		if json.Unmarshal(body, &st) == nil {
			out = append(out, st)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	var out []wire.Identity
	for _, body := range s.fetchEach(r.Context(), "/identity") {
		if body == nil {
			continue
		}
		var id wire.Identity
		if json.Unmarshal(body, &id) == nil {
			out = append(out, id)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleIdentities(w http.ResponseWriter, r *http.Request) {
	s.handleAgents(w, r)
}

func (s *Server) handlePheromones(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]bool)
	var out []wire.Signal
	for _, body := range s.fetchEach(r.Context(), "/pheromones") {
		if body == nil {
			continue
		}
		var sigs []wire.Signal
		if json.Unmarshal(body, &sigs) != nil {
			continue
		}
		for _, sg := range sigs {
			if seen[sg.ID] {
				continue
			}
			seen[sg.ID] = true
			out = append(out, sg)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleThoughts(w http.ResponseWriter, r *http.Request) {
	seen := make(map[string]bool)
	var out []wire.Thought
	for _, body := range s.fetchEach(r.Context(), "/thoughts") {
		if body == nil {
			continue
		}
		var ts []wire.Thought
		if json.Unmarshal(body, &ts) != nil {
			continue
		}
		for _, t := range ts {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	writeJSON(w, out)
}

func (s *Server) collectiveMemories(ctx context.Context) []wire.CollectiveMemory {
	seen := make(map[string]bool)
	var out []wire.CollectiveMemory
	for _, body := range s.fetchEach(ctx, "/collective") {
		if body == nil {
			continue
		}
		var mems []wire.CollectiveMemory
		if json.Unmarshal(body, &mems) != nil {
			continue
		}
		for _, m := range mems {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

func (s *Server) handleCollective(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.collectiveMemories(r.Context()))
}

// handleReport returns the most recently synthesized CollectiveMemory
// across the swarm, or 404 if none exists yet.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	mems := s.collectiveMemories(r.Context())
	if len(mems) == 0 {
		http.Error(w, "no collective report yet", http.StatusNotFound)
		return
	}
	writeJSON(w, mems[0])
}

func (s *Server) handleAttestations(w http.ResponseWriter, r *http.Request) {
	var out []wire.AttestationView
	for _, body := range s.fetchEach(r.Context(), "/attestation") {
		if body == nil {
			continue
		}
		var av wire.AttestationView
		if json.Unmarshal(body, &av) == nil {
			out = append(out, av)
		}
	}
	writeJSON(w, out)
}

// handleInject synthesizes a Signal with producerId "human" and
// broadcasts it to every agent's /pheromone endpoint. Unsigned — there
// is no human keypair to attest with.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	var req wire.InjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid inject payload", http.StatusBadRequest)
		return
	}

	domain := req.Topic
	if domain == "" {
		domain = "general"
	}

	if who := auth.InjectorFrom(r.Context()); who != nil {
		log.Printf("aggregator: signal injection by %s", who.Subject)
	}

	sig := wire.Signal{
		ID:         uuid.NewString(),
		ProducerID: "human",
		Content:    req.Content,
		Domain:     domain,
		Confidence: 0.5,
		Strength:   0.6,
		Timestamp:  time.Now().UnixMilli(),
	}

	body, err := json.Marshal(sig)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var g errgroup.Group
	for _, url := range s.cfg.AgentURLs {
		url := url
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), s.cfg.timeout())
			defer cancel()
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/pheromone", bytes.NewReader(body))
			if err != nil {
				return nil
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := s.client.Do(req)
			if err != nil {
				return nil
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			return nil
		})
	}
	_ = g.Wait()

	writeJSON(w, sig)
}

// Run serves the aggregator until ctx is cancelled, with the same
// graceful-shutdown choreography as internal/agenthttp.Server.Run.
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
		log.Printf("aggregator: listening on %s", addr)
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
		log.Printf("aggregator: shutting down %s", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
