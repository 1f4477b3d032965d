// Command aggregator runs the optional read-only dashboard surface: it
// fans out to every agent named in PEER_URLS and serves the merged
// result, plus the one mutating endpoint, POST /api/inject.
package main

import (
	"context"
	"log"
	"os"
	ossignal "os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pheromone-collective/swarm/internal/aggregator"
	"github.com/pheromone-collective/swarm/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadWithOverrides(os.Getenv(config.OverridesPathEnv))
	if err != nil {
		log.Fatalf("aggregator: load config overrides: %v", err)
	}
	addr := ":" + strconv.Itoa(cfg.AgentPort)

	srv := aggregator.New(aggregator.Config{
		AgentURLs: cfg.PeerURLs,
		Timeout:   cfg.PeerTimeout(),
	}, cfg.OIDC())

	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("aggregator: fanning out to %d agents", len(cfg.PeerURLs))
	if err := srv.Run(ctx, addr); err != nil {
		log.Fatalf("aggregator: http server error: %v", err)
	}
	log.Printf("aggregator: shut down cleanly")
}
