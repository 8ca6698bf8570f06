// Command register records an agent endpoint in the directory, mirroring what
// deployment tooling does after rolling out a specialist.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/greyhaven/game-analyst-agents/internal/config"
	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	directorypg "github.com/greyhaven/game-analyst-agents/internal/infrastructure/directory/postgres"
)

func main() {
	agent := flag.String("agent", "", "agent name, e.g. lore_agent")
	endpoint := flag.String("endpoint", "", "invocations URL, e.g. http://lore:8080/invocations")
	noMemories := flag.Bool("no-memories", false, "register under the memoryless key variant")
	flag.Parse()

	if *agent == "" || *endpoint == "" {
		log.Fatal("both -agent and -endpoint are required")
	}

	cfg := config.Load()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := directorypg.OpenDB(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	registry := directorypg.NewRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	key := domain.DirectoryKey(*agent, !*noMemories)
	if err := registry.Register(ctx, key, *endpoint); err != nil {
		log.Fatalf("register %s: %v", key, err)
	}
	log.Printf("registered %s -> %s", key, *endpoint)
}
