package reasoning

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPReasonerSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected system+user messages, got %d", len(req.Messages))
		}
		resp := chatResponse{Choices: []choice{{Message: message{Role: "assistant", Content: "jupiter has 95 moons"}}}}
		resp.Usage.TotalTokens = 120
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	r := NewHTTPReasoner(server.URL, "", "test-model", "", 5*time.Second)
	result, err := r.Reason(context.Background(), "system prompt", "user prompt", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Content != "jupiter has 95 moons" {
		t.Errorf("unexpected content: %q", result.Content)
	}
	if result.TokensUsed != 120 {
		t.Errorf("expected 120 tokens, got %d", result.TokensUsed)
	}
}

func TestHTTPReasonerDegradesOnExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	r := NewHTTPReasoner(server.URL, "", "test-model", "", 5*time.Second)
	r.RetryDelay = time.Millisecond // keep the test fast

	result, err := r.Reason(context.Background(), "s", "u", Options{})
	if err != nil {
		t.Fatalf("expected degraded result, not an error: %v", err)
	}
	if result.Content != "" || result.TokensUsed != 0 {
		t.Errorf("expected empty degraded result, got %+v", result)
	}
}

func TestCheaperModelSelection(t *testing.T) {
	r := NewHTTPReasoner("http://unused", "", "full-model", "cheap-model", time.Second)
	if got := r.modelFor(Options{CheaperModel: true}); got != "cheap-model" {
		t.Errorf("expected cheap-model, got %s", got)
	}
	if got := r.modelFor(Options{CheaperModel: false}); got != "full-model" {
		t.Errorf("expected full-model, got %s", got)
	}
}

func TestCannedReasonerNeverSpends(t *testing.T) {
	var c Canned
	result, err := c.Reason(context.Background(), "s", "u", Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TokensUsed != 0 {
		t.Errorf("expected canned reasoner to report zero tokens, got %d", result.TokensUsed)
	}
}

func TestCollectiveReportMalformedJSONFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := chatResponse{Choices: []choice{{Message: message{Content: "not json"}}}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	r := NewHTTPReasoner(server.URL, "", "m", "", 5*time.Second)
	_, err := r.GenerateCollectiveReport(context.Background(), nil, nil, "topic")
	if err == nil {
		t.Fatal("expected error on malformed collective report JSON")
	}
}
