// Command agent runs a single swarm participant: it owns one identity,
// one signal channel, and one HTTP surface, and gossips with every
// peer named in PEER_URLS.
package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	ossignal "os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pheromone-collective/swarm/internal/agent"
	"github.com/pheromone-collective/swarm/internal/agenthttp"
	"github.com/pheromone-collective/swarm/internal/attestationsink"
	"github.com/pheromone-collective/swarm/internal/collective"
	"github.com/pheromone-collective/swarm/internal/config"
	"github.com/pheromone-collective/swarm/internal/credits"
	"github.com/pheromone-collective/swarm/internal/dataset"
	"github.com/pheromone-collective/swarm/internal/gossip"
	"github.com/pheromone-collective/swarm/internal/persistence"
	"github.com/pheromone-collective/swarm/internal/reasoning"
	"github.com/pheromone-collective/swarm/internal/signal"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWithOverrides(os.Getenv(config.OverridesPathEnv))
	if err != nil {
		log.Fatalf("agent: load config overrides: %v", err)
	}
	log.Printf("agent: starting agent-%d on port %d", cfg.AgentIndex, cfg.AgentPort)

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("agent: open persistence: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("agent: close store: %v", err)
		}
	}()

	r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(cfg.AgentIndex)))

	thresholds := credits.Thresholds{T1: cfg.CreditTierT1, T2: cfg.CreditTierT2}
	roster := agent.LoadRoster(cfg.RosterPath)
	state, err := agent.NewState(cfg.AgentIndex, cfg.TokenBudgetPerAgent, cfg.CreditTierT1*2, thresholds, r, roster)
	if err != nil {
		log.Fatalf("agent: construct state: %v", err)
	}

	channel := signal.New(signal.Config{
		DecayRate:         cfg.PheromoneDecay,
		MinStrength:       cfg.MinStrength,
		CriticalThreshold: cfg.CriticalDensity,
	})

	var transport *gossip.Transport
	if len(cfg.PeerURLs) > 0 {
		transport = gossip.New(cfg.PeerURLs, cfg.PeerTimeout())
	}

	reasoner := buildReasoner(cfg)
	datasets := dataset.NewHTTPSource(cfg.DataAPIURL, cfg.DataAPIKey, 10*time.Minute, time.Hour)
	sink := attestationsink.NewHTTPSink(cfg.DAProxyURL)

	synth := collective.New(collective.DefaultConfig, reasoner, store)

	loopCfg := agent.Config{
		Bounds:                agent.WorldBounds{MinX: -500, MinY: -500, MaxX: 500, MaxY: 500},
		Cooldown:              cfg.CycleCooldown,
		StepInterval:          cfg.SyncInterval(),
		BusyStepInterval:      cfg.SyncInterval() * 3,
		PersistEveryNSteps:    10,
		AgentCount:            max(1, len(cfg.PeerURLs)+1),
		EngineeringEnabled:    cfg.EngineeringStepIntervalMS > 0,
		DACommitmentWriteback: cfg.DACommitmentWriteback,
	}

	loop := agent.New(state, channel, transport, reasoner, datasets, sink, store, loopCfg, r)
	loop.Collective = synth

	httpServer := agenthttp.New(loop, store)

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.Run(ctx, addrFor(cfg.AgentPort)) }()
	go runTickLoop(ctx, loop, cfg.MaxSteps)

	if err := <-errCh; err != nil {
		log.Fatalf("agent: http server error: %v", err)
	}
	log.Printf("agent: agent-%d shut down cleanly", cfg.AgentIndex)
}

// runTickLoop drives Loop.Tick until ctx is cancelled or MaxSteps (if
// positive) is reached, sleeping the interval Tick recommends between
// calls.
func runTickLoop(ctx context.Context, loop *agent.Loop, maxSteps int) {
	steps := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		interval, err := loop.Tick(ctx)
		if err != nil {
			log.Printf("agent: tick error: %v", err)
		}

		steps++
		if maxSteps > 0 && steps >= maxSteps {
			log.Printf("agent: reached max steps (%d), idling", maxSteps)
			<-ctx.Done()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func buildReasoner(cfg *config.Config) reasoning.Reasoner {
	if cfg.ReasoningAPIURL == "" || cfg.ReasoningAPIKey == "" {
		log.Printf("agent: no reasoning backend configured, using canned degraded reasoner")
		return reasoning.Canned{}
	}
	return reasoning.NewHTTPReasoner(cfg.ReasoningAPIURL, cfg.ReasoningAPIKey, cfg.ReasoningModel, cfg.ReasoningModel, cfg.ReasoningTimeout())
}

func openStore(cfg *config.Config) (persistence.Store, error) {
	if cfg.PersistenceDSN == "" {
		log.Printf("agent: no PERSISTENCE_DSN set, using in-memory store")
		return persistence.NewMemStore(), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return persistence.NewSQLStore(ctx, cfg.PersistenceDSN)
}

func addrFor(port int) string {
	return ":" + strconv.Itoa(port)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
