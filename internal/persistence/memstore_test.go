package persistence

import (
	"context"
	"testing"

	"github.com/pheromone-collective/swarm/pkg/wire"
)

func TestMemStoreSaveAndLoadAgentState(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	if err := store.SaveAgentState(ctx, "agent-0", wire.State{ID: "agent-0", Step: 5}); err != nil {
		t.Fatalf("SaveAgentState: %v", err)
	}
	got, err := store.LoadAgentState(ctx, "agent-0")
	if err != nil {
		t.Fatalf("LoadAgentState: %v", err)
	}
	if got == nil || got.Step != 5 {
		t.Fatalf("expected loaded state with Step=5, got %+v", got)
	}
}

func TestMemStoreLoadMissingAgentReturnsNilNil(t *testing.T) {
	store := NewMemStore()
	got, err := store.LoadAgentState(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown agent, got %+v", got)
	}
}

func TestMemStoreSaveAgentStateOverwrites(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	store.SaveAgentState(ctx, "agent-0", wire.State{Step: 1})
	store.SaveAgentState(ctx, "agent-0", wire.State{Step: 2})

	got, _ := store.LoadAgentState(ctx, "agent-0")
	if got.Step != 2 {
		t.Errorf("expected overwrite to Step=2, got %d", got.Step)
	}
}

func TestMemStoreCollectiveMemoryUpsertsByID(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	store.SaveCollectiveMemory(ctx, wire.CollectiveMemory{ID: "cm-1", Topic: "v1", CreatedAt: 1})
	store.SaveCollectiveMemory(ctx, wire.CollectiveMemory{ID: "cm-1", Topic: "v2", CreatedAt: 2})
	store.SaveCollectiveMemory(ctx, wire.CollectiveMemory{ID: "cm-2", Topic: "other", CreatedAt: 3})

	mems, err := store.LoadCollectiveMemories(ctx, 0)
	if err != nil {
		t.Fatalf("LoadCollectiveMemories: %v", err)
	}
	if len(mems) != 2 {
		t.Fatalf("expected 2 distinct collective memories, got %d", len(mems))
	}
	if mems[0].ID != "cm-2" {
		t.Errorf("expected newest-first ordering, got %s first", mems[0].ID)
	}
}

func TestMemStoreLoadCollectiveMemoriesRespectsLimit(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		store.SaveCollectiveMemory(ctx, wire.CollectiveMemory{ID: string(rune('a' + i)), CreatedAt: int64(i)})
	}
	mems, err := store.LoadCollectiveMemories(ctx, 2)
	if err != nil {
		t.Fatalf("LoadCollectiveMemories: %v", err)
	}
	if len(mems) != 2 {
		t.Errorf("expected limit of 2, got %d", len(mems))
	}
}
