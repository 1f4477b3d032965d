// Package attestationsink implements the disperse(blob) -> commitment
// contract: a thin fire-and-forget client over a KZG/DA proxy.
package attestationsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Sink is the disperse(blob) -> commitment contract.
type Sink interface {
	// Disperse submits blob for durable dispersal and returns an
	// opaque commitment string. Enabled returns false for a sink that
	// should never be invoked (DA_PROXY_URL unset).
	Disperse(ctx context.Context, blob []byte) (string, error)
	Enabled() bool
}

// HTTPSink posts blobs to an external DA proxy.
type HTTPSink struct {
	Client   *http.Client
	ProxyURL string
}

// NewHTTPSink returns nil if proxyURL is empty — dispersal disabled.
func NewHTTPSink(proxyURL string) *HTTPSink {
	if proxyURL == "" {
		return nil
	}
	return &HTTPSink{Client: &http.Client{Timeout: 10 * time.Second}, ProxyURL: proxyURL}
}

// Enabled reports whether this sink is wired to a live proxy.
func (h *HTTPSink) Enabled() bool {
	return h != nil && h.ProxyURL != ""
}

type disperseRequest struct {
	Blob string `json:"blob"`
}

type disperseResponse struct {
	Commitment string `json:"commitment"`
}

// Disperse posts blob and returns the commitment the proxy assigns.
func (h *HTTPSink) Disperse(ctx context.Context, blob []byte) (string, error) {
	body, err := json.Marshal(disperseRequest{Blob: string(blob)})
	if err != nil {
		return "", fmt.Errorf("attestationsink: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.ProxyURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("attestationsink: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("attestationsink: disperse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("attestationsink: proxy returned %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("attestationsink: read response: %w", err)
	}

	var parsed disperseResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("attestationsink: malformed response: %w", err)
	}
	return parsed.Commitment, nil
}

// DisperseAsync fires Disperse in its own goroutine and invokes onDone
// with the result if it is non-nil. Failures are logged and otherwise
// ignored — dispersal is fire-and-forget; overflow or failure drops
// silently.
func DisperseAsync(sink Sink, blob []byte, onDone func(commitment string)) {
	if sink == nil || !sink.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		commitment, err := sink.Disperse(ctx, blob)
		if err != nil {
			log.Printf("attestationsink: disperse failed: %v", err)
			return
		}
		if onDone != nil {
			onDone(commitment)
		}
	}()
}
