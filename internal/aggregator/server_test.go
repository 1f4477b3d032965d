package aggregator

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pheromone-collective/swarm/internal/config"
	"github.com/pheromone-collective/swarm/pkg/wire"
)

// newStubAgent starts an httptest.Server that serves fixed bodies for
// the agent HTTP surface paths the aggregator fans out to.
func newStubAgent(t *testing.T, id string, sigs []wire.Signal) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/state", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.State{ID: id})
	})
	mux.HandleFunc("/identity", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(wire.Identity{AgentID: id})
	})
	mux.HandleFunc("/pheromones", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sigs)
	})
	mux.HandleFunc("/collective", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]wire.CollectiveMemory{})
	})
	mux.HandleFunc("/pheromone", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	return httptest.NewServer(mux)
}

func TestHandleStateCollectsEveryAgent(t *testing.T) {
	a := newStubAgent(t, "agent-a", nil)
	defer a.Close()
	b := newStubAgent(t, "agent-b", nil)
	defer b.Close()

	s := New(Config{AgentURLs: []string{a.URL, b.URL}, Timeout: 2 * time.Second}, config.OIDCConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var states []wire.State
	if err := json.NewDecoder(w.Body).Decode(&states); err != nil {
		t.Fatalf("decode states: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 agent states, got %d", len(states))
	}
}

func TestHandlePheromonesDedupesByID(t *testing.T) {
	shared := wire.Signal{ID: "shared", ProducerID: "agent-a", Domain: "climate"}
	a := newStubAgent(t, "agent-a", []wire.Signal{shared})
	defer a.Close()
	b := newStubAgent(t, "agent-b", []wire.Signal{shared})
	defer b.Close()

	s := New(Config{AgentURLs: []string{a.URL, b.URL}, Timeout: 2 * time.Second}, config.OIDCConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/pheromones", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var sigs []wire.Signal
	if err := json.NewDecoder(w.Body).Decode(&sigs); err != nil {
		t.Fatalf("decode pheromones: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected dedup to 1 signal, got %d", len(sigs))
	}
}

func TestHandleStateSkipsUnreachablePeer(t *testing.T) {
	a := newStubAgent(t, "agent-a", nil)
	defer a.Close()

	s := New(Config{AgentURLs: []string{a.URL, "http://127.0.0.1:1"}, Timeout: 500 * time.Millisecond}, config.OIDCConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var states []wire.State
	if err := json.NewDecoder(w.Body).Decode(&states); err != nil {
		t.Fatalf("decode states: %v", err)
	}
	if len(states) != 1 {
		t.Fatalf("expected unreachable peer dropped silently, got %d states", len(states))
	}
}

func TestHandleReportNotFoundWhenNoCollective(t *testing.T) {
	a := newStubAgent(t, "agent-a", nil)
	defer a.Close()

	s := New(Config{AgentURLs: []string{a.URL}, Timeout: 2 * time.Second}, config.OIDCConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 with no collective memories, got %d", w.Code)
	}
}

func TestHandleInjectBroadcastsToAllAgents(t *testing.T) {
	a := newStubAgent(t, "agent-a", nil)
	defer a.Close()
	b := newStubAgent(t, "agent-b", nil)
	defer b.Close()

	s := New(Config{AgentURLs: []string{a.URL, b.URL}, Timeout: 2 * time.Second}, config.OIDCConfig{})

	body, _ := json.Marshal(wire.InjectRequest{Topic: "climate", Content: "a human observation"})
	req := httptest.NewRequest(http.MethodPost, "/api/inject", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var sig wire.Signal
	if err := json.NewDecoder(w.Body).Decode(&sig); err != nil {
		t.Fatalf("decode injected signal: %v", err)
	}
	if sig.ProducerID != "human" {
		t.Errorf("expected producerId human, got %q", sig.ProducerID)
	}
	if sig.Domain != "climate" {
		t.Errorf("expected domain climate, got %q", sig.Domain)
	}
}

func TestHandleInjectRejectsInvalidBody(t *testing.T) {
	s := New(Config{}, config.OIDCConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/inject", bytes.NewReader([]byte("not json")))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed inject body, got %d", w.Code)
	}
}

func TestHandleInjectRequiresBearerTokenWhenConfigured(t *testing.T) {
	s := New(Config{}, config.OIDCConfig{Issuer: "https://issuer.example", ClientID: "swarm"})

	body, _ := json.Marshal(wire.InjectRequest{Content: "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/inject", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with no bearer token when issuer configured, got %d", w.Code)
	}
}
