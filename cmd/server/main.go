package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/psenger/massive-multiplayer-arena/internal/api"
	"github.com/psenger/massive-multiplayer-arena/internal/config"
	"github.com/psenger/massive-multiplayer-arena/internal/game"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("no .env file found, using environment variables only")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Printf("fatal configuration error: %v", err)
		os.Exit(1)
	}

	log.Printf("arena server: %d TPS, %gx%g world, %d-%d players/match",
		cfg.Match.TickHz, cfg.World.Width, cfg.World.Height,
		cfg.Match.MinPlayers, cfg.Match.MaxPlayers)

	registry := game.NewRegistry()
	server := api.NewServer(cfg, registry)
	server.Matchmaker().Start()

	if os.Getenv("DISABLE_DEBUG_SERVER") != "true" {
		api.StartDebugServer(api.DefaultObservabilityConfig())
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(server),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", addr)
		errChan <- httpServer.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("received %s, shutting down", sig)
	case err := <-errChan:
		log.Printf("server error: %v", err)
		os.Exit(1)
	}

	server.Matchmaker().Stop()
	registry.Range(func(m *game.Match) bool {
		m.Stop()
		return true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	log.Println("goodbye")
}
