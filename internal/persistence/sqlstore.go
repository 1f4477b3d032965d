package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/pheromone-collective/swarm/pkg/wire"
)

// SQLStore is a Postgres-backed Store. Every table is keyed so writes
// are idempotent upserts (ON CONFLICT ... DO UPDATE).
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens dsn, pings it, and creates the schema if absent.
func NewSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("persistence: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("persistence: ping: %w", err)
	}
	s := &SQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS agent_states (
			agent_id TEXT PRIMARY KEY,
			snapshot JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS thoughts (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS pheromones (
			id TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS collective_memories (
			id TEXT PRIMARY KEY,
			payload JSONB NOT NULL,
			created_at BIGINT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("persistence: migrate: %w", err)
		}
	}
	return nil
}

func (s *SQLStore) SaveAgentState(ctx context.Context, agentID string, snapshot wire.State) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("persistence: marshal state: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agent_states (agent_id, snapshot, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (agent_id) DO UPDATE SET snapshot = EXCLUDED.snapshot, updated_at = now()`,
		agentID, payload)
	if err != nil {
		return fmt.Errorf("persistence: save agent state: %w", err)
	}
	return nil
}

func (s *SQLStore) LoadAgentState(ctx context.Context, agentID string) (*wire.State, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM agent_states WHERE agent_id = $1`, agentID).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistence: load agent state: %w", err)
	}
	var state wire.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("persistence: unmarshal state: %w", err)
	}
	return &state, nil
}

func (s *SQLStore) SaveThought(ctx context.Context, agentID string, t wire.Thought) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("persistence: marshal thought: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO thoughts (id, agent_id, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		t.ID, agentID, payload)
	if err != nil {
		return fmt.Errorf("persistence: save thought: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveDecision(ctx context.Context, agentID string, d wire.Decision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("persistence: marshal decision: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, agent_id, payload) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		d.ID, agentID, payload)
	if err != nil {
		return fmt.Errorf("persistence: save decision: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveSignal(ctx context.Context, sig wire.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("persistence: marshal signal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pheromones (id, payload) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		sig.ID, payload)
	if err != nil {
		return fmt.Errorf("persistence: save signal: %w", err)
	}
	return nil
}

func (s *SQLStore) SaveCollectiveMemory(ctx context.Context, mem wire.CollectiveMemory) error {
	payload, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("persistence: marshal collective memory: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collective_memories (id, payload, created_at) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
		mem.ID, payload, mem.CreatedAt)
	if err != nil {
		return fmt.Errorf("persistence: save collective memory: %w", err)
	}
	return nil
}

func (s *SQLStore) LoadCollectiveMemories(ctx context.Context, limit int) ([]wire.CollectiveMemory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM collective_memories ORDER BY created_at DESC LIMIT $1`, nullableLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("persistence: load collective memories: %w", err)
	}
	defer rows.Close()

	var out []wire.CollectiveMemory
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("persistence: scan collective memory: %w", err)
		}
		var mem wire.CollectiveMemory
		if err := json.Unmarshal(raw, &mem); err != nil {
			return nil, fmt.Errorf("persistence: unmarshal collective memory: %w", err)
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

func nullableLimit(limit int) int {
	if limit <= 0 {
		return 1 << 30 // effectively unbounded
	}
	return limit
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
