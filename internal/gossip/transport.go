// Package gossip implements the push-on-emit / pull-on-tick transport:
// best-effort HTTP fan-out to peer agents, with no acknowledgement,
// ordering, or retry guarantee.
package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pheromone-collective/swarm/internal/signal"
	"github.com/pheromone-collective/swarm/pkg/wire"
)

// Transport fans a single Signal out to every configured peer
// (Push), or pulls each peer's current signal set (Pull). Every
// dispatched request carries its own deadline; a peer that times out
// or errors is dropped silently, with no retry.
type Transport struct {
	Client   *http.Client
	PeerURLs []string
	Timeout  time.Duration
}

// New constructs a Transport with sane per-request timeout defaults.
func New(peerURLs []string, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Transport{
		Client:   &http.Client{Timeout: timeout},
		PeerURLs: peerURLs,
		Timeout:  timeout,
	}
}

// Push POSTs s to every peer's /pheromone endpoint. It returns once
// every peer has either responded or timed out; individual failures
// are neither returned nor retried — push is advisory, not
// transactional.
func (t *Transport) Push(ctx context.Context, s *signal.Signal) {
	if len(t.PeerURLs) == 0 {
		return
	}
	body, err := json.Marshal(s.ToWire())
	if err != nil {
		return
	}

	var g errgroup.Group
	for _, peer := range t.PeerURLs {
		peer := peer
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, t.Timeout)
			defer cancel()
			return t.postPheromone(reqCtx, peer, body)
		})
	}
	_ = g.Wait() // settle-all; per-peer errors already discarded below
}

func (t *Transport) postPheromone(ctx context.Context, peerURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, peerURL+"/pheromone", bytes.NewReader(body))
	if err != nil {
		return nil // malformed peer URL: drop, don't fail the group
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Pull fetches every peer's current pheromone set concurrently and
// returns the union of successfully-decoded signals. A peer that
// fails or times out contributes nothing, never an error — pull is
// opportunistic sync, not a quorum read.
func (t *Transport) Pull(ctx context.Context) []*signal.Signal {
	if len(t.PeerURLs) == 0 {
		return nil
	}

	results := make([][]*signal.Signal, len(t.PeerURLs))
	var g errgroup.Group
	for i, peer := range t.PeerURLs {
		i, peer := i, peer
		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, t.Timeout)
			defer cancel()
			sigs, err := t.getPheromones(reqCtx, peer)
			if err != nil {
				return nil // drop this peer, don't fail the group
			}
			results[i] = sigs
			return nil
		})
	}
	_ = g.Wait()

	var merged []*signal.Signal
	for _, r := range results {
		merged = append(merged, r...)
	}
	return merged
}

func (t *Transport) getPheromones(ctx context.Context, peerURL string) ([]*signal.Signal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, peerURL+"/pheromones", nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gossip: peer %s returned %d", peerURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var wireSignals []wire.Signal
	if err := json.Unmarshal(raw, &wireSignals); err != nil {
		return nil, err
	}

	out := make([]*signal.Signal, 0, len(wireSignals))
	for _, w := range wireSignals {
		out = append(out, signal.FromWire(w))
	}
	return out, nil
}

// MergeInto deposits every pulled signal into ch, relying on its
// dedup-by-id rule to discard anything already present. Returns the
// count of genuinely new signals absorbed.
func MergeInto(ch *signal.Channel, pulled []*signal.Signal) int {
	var added int
	for _, s := range pulled {
		if ch.Deposit(s) {
			added++
		}
	}
	return added
}
