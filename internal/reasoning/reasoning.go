// Package reasoning implements the interchangeable reasoning-backend
// contract — reason(system, user, opts) -> {content, tokensUsed} —
// plus the collective-report generation call, over any
// OpenAI-compatible chat-completion endpoint.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pheromone-collective/swarm/pkg/wire"
)

// Options tunes a single reasoning call.
type Options struct {
	// CheaperModel requests a lower-cost model variant when the
	// backend offers one (credits.Governor.CheaperModelRequested).
	CheaperModel bool
	Temperature  float64
	MaxTokens    int
}

// Result is the outcome of a reasoning call.
type Result struct {
	Content    string
	TokensUsed int
}

// Reasoner is the contract every reasoning backend implementation
// satisfies.
type Reasoner interface {
	Reason(ctx context.Context, system, user string, opts Options) (Result, error)
	GenerateCollectiveReport(ctx context.Context, bundle []EvidenceItem, topicsStudied []string, topic string) (*wire.CollectiveReport, error)
}

// EvidenceItem is one contributor's evidence for collective synthesis.
type EvidenceItem struct {
	ProducerName   string
	Specialization string
	Observation    string
	Reasoning      string
	Conclusion     string
	Confidence     float64
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type choice struct {
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type chatResponse struct {
	Choices []choice `json:"choices"`
	Usage   struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// HTTPReasoner calls an OpenAI-compatible REASONING_API_URL endpoint
// with up to two linear-backoff retries.
type HTTPReasoner struct {
	Client     *http.Client
	APIURL     string
	APIKey     string
	Model      string
	CheapModel string
	MaxRetries int
	RetryDelay time.Duration
}

// NewHTTPReasoner constructs a client with the default retry policy
// (2 retries, linear backoff).
func NewHTTPReasoner(apiURL, apiKey, model, cheapModel string, timeout time.Duration) *HTTPReasoner {
	return &HTTPReasoner{
		Client:     &http.Client{Timeout: timeout},
		APIURL:     apiURL,
		APIKey:     apiKey,
		Model:      model,
		CheapModel: cheapModel,
		MaxRetries: 2,
		RetryDelay: 500 * time.Millisecond,
	}
}

func (h *HTTPReasoner) modelFor(opts Options) string {
	if opts.CheaperModel && h.CheapModel != "" {
		return h.CheapModel
	}
	return h.Model
}

// Reason implements Reasoner. On exhaustion of retries it returns an
// empty content and zero tokens rather than an error — the caller
// downgrades confidence itself.
func (h *HTTPReasoner) Reason(ctx context.Context, system, user string, opts Options) (Result, error) {
	req := chatRequest{
		Model: h.modelFor(opts),
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= h.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(h.RetryDelay * time.Duration(attempt)):
			}
		}

		result, err := h.doRequest(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	// Exhausted retries: degrade rather than fail the tick.
	_ = lastErr
	return Result{Content: "", TokensUsed: 0}, nil
}

func (h *HTTPReasoner) doRequest(ctx context.Context, reqBody chatRequest) (Result, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("reasoning: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.APIURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("reasoning: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.APIKey)
	}

	resp, err := h.Client.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("reasoning: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{}, fmt.Errorf("reasoning: backend returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reasoning: read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("reasoning: malformed response json: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("reasoning: no choices in response")
	}

	return Result{
		Content:    parsed.Choices[0].Message.Content,
		TokensUsed: parsed.Usage.TotalTokens,
	}, nil
}

// GenerateCollectiveReport calls the reasoning backend for a
// structured collective report. On any failure it returns (nil, err)
// so the caller can fall back to plaintext synthesis.
func (h *HTTPReasoner) GenerateCollectiveReport(ctx context.Context, bundle []EvidenceItem, topicsStudied []string, topic string) (*wire.CollectiveReport, error) {
	system := "You are the collective synthesis engine for a swarm of autonomous research agents. " +
		"Respond ONLY with a JSON object with fields: overview, keyFindings (array of strings), " +
		"opinions, improvements (array of strings), verdict."

	user, err := json.Marshal(struct {
		Topic    string         `json:"topic"`
		Studied  []string       `json:"topicsStudied"`
		Evidence []EvidenceItem `json:"evidence"`
	}{Topic: topic, Studied: topicsStudied, Evidence: bundle})
	if err != nil {
		return nil, fmt.Errorf("reasoning: marshal collective bundle: %w", err)
	}

	result, err := h.Reason(ctx, system, string(user), Options{})
	if err != nil {
		return nil, err
	}
	if result.Content == "" {
		return nil, fmt.Errorf("reasoning: backend unavailable")
	}

	var report wire.CollectiveReport
	if err := json.Unmarshal([]byte(result.Content), &report); err != nil {
		return nil, fmt.Errorf("reasoning: malformed collective report json: %w", err)
	}
	return &report, nil
}

// Canned is a zero-dependency Reasoner used when no reasoning backend
// is configured. The credit gate does not use it: a gated deep step
// builds its own canned Thought without calling any Reasoner.
// It returns a degraded result without ever spending tokens.
type Canned struct{}

func (Canned) Reason(ctx context.Context, system, user string, opts Options) (Result, error) {
	return Result{Content: "", TokensUsed: 0}, nil
}

func (Canned) GenerateCollectiveReport(ctx context.Context, bundle []EvidenceItem, topicsStudied []string, topic string) (*wire.CollectiveReport, error) {
	return nil, fmt.Errorf("reasoning: canned backend cannot synthesize a collective report")
}
