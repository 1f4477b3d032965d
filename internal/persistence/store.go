// Package persistence implements the idempotent save/load contract
// agents and the aggregator depend on, with an in-memory default and a
// Postgres-backed implementation.
package persistence

import (
	"context"

	"github.com/pheromone-collective/swarm/pkg/wire"
)

// Store is the idempotent persistence contract every agent and the
// aggregator depend on. Every Save* call overwrites any prior record
// for the same key — safe to call repeatedly with the same snapshot.
type Store interface {
	SaveAgentState(ctx context.Context, agentID string, snapshot wire.State) error
	LoadAgentState(ctx context.Context, agentID string) (*wire.State, error)

	SaveThought(ctx context.Context, agentID string, t wire.Thought) error
	SaveDecision(ctx context.Context, agentID string, d wire.Decision) error
	SaveSignal(ctx context.Context, s wire.Signal) error

	SaveCollectiveMemory(ctx context.Context, mem wire.CollectiveMemory) error
	LoadCollectiveMemories(ctx context.Context, limit int) ([]wire.CollectiveMemory, error)

	Close() error
}
