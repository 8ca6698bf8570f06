package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/greyhaven/game-analyst-agents/internal/config"
	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/core/ports"
	"github.com/greyhaven/game-analyst-agents/internal/core/usecase"
	directorypg "github.com/greyhaven/game-analyst-agents/internal/infrastructure/directory/postgres"
	"github.com/greyhaven/game-analyst-agents/internal/infrastructure/llm/ollama"
	memorypg "github.com/greyhaven/game-analyst-agents/internal/infrastructure/memory/postgres"
	"github.com/greyhaven/game-analyst-agents/internal/infrastructure/queue/nats"
	"github.com/greyhaven/game-analyst-agents/internal/infrastructure/resilience"
	"github.com/greyhaven/game-analyst-agents/internal/infrastructure/runtime"
	"github.com/greyhaven/game-analyst-agents/internal/infrastructure/tools/mcp"
	"github.com/greyhaven/game-analyst-agents/internal/infrastructure/vector/qdrant"
	"github.com/greyhaven/game-analyst-agents/internal/observability/metrics"
)

// App holds one wired agent service and its shared infrastructure.
type App struct {
	Config      config.Config
	ServiceName string
	Service     ports.AgentService
	Metrics     *metrics.ServerMetrics

	closeFn func()
}

// NewOrchestrator wires the game-analyst orchestrator service.
func NewOrchestrator(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	serviceName := domain.AgentGameAnalyst
	serverMetrics := metrics.NewServerMetrics(serviceName)

	db, err := directorypg.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := directorypg.NewRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure directory schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	invoker := runtime.NewClient(time.Duration(cfg.InvokeTimeoutSeconds) * time.Second)
	model := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(executor)

	publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init turn event publisher: %w", err)
	}

	var hooks []usecase.TurnHook
	if cfg.MemoryEnabled {
		store, err := newEventStore(ctx, db, serverMetrics, serviceName)
		if err != nil {
			publisher.Close()
			_ = db.Close()
			return nil, err
		}
		embedder := ollama.NewEmbedder(model)
		index := qdrant.NewIndex(cfg.QdrantURL, cfg.QdrantMemoryCollection)
		hooks = []usecase.TurnHook{
			usecase.NewShortTermMemoryHook(store, cfg.ShortTermStoreID, cfg.AgentShortTermTurns, logger),
			usecase.NewLongTermMemoryHook(store, cfg.LongTermStoreID, embedder, index, logger),
		}
	}

	service := usecase.NewOrchestrator(
		registry,
		invoker,
		model,
		hooks,
		publisher,
		agentLimits(cfg),
		cfg.MemoryEnabled,
		logger,
	)

	return &App{
		Config:      cfg,
		ServiceName: serviceName,
		Service:     service,
		Metrics:     serverMetrics,
		closeFn: func() {
			publisher.Close()
			_ = db.Close()
		},
	}, nil
}

// NewSpecialist wires one specialist service selected by AGENT_ROLE.
func NewSpecialist(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	agentName, err := specialistAgentName(cfg.AgentRole)
	if err != nil {
		return nil, err
	}
	serverMetrics := metrics.NewServerMetrics(agentName)

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	model := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel).WithExecutor(executor)

	publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init turn event publisher: %w", err)
	}

	connector := mcp.NewConnector(mcp.ServerConfig{
		Name:      cfg.AgentRole + "-kb",
		Transport: cfg.MCPTransport,
		Command:   cfg.MCPCommand,
		Args:      cfg.MCPArgs,
		URL:       cfg.MCPURL,
	}, logger)

	// Memoryless specialists skip the event store entirely, so the database
	// connection is only opened when memory is on.
	var db *sql.DB
	var hooks []usecase.TurnHook
	var embedder ports.Embedder
	var index ports.MemoryIndex
	if cfg.MemoryEnabled {
		db, err = directorypg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			publisher.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store, err := newEventStore(ctx, db, serverMetrics, agentName)
		if err != nil {
			publisher.Close()
			_ = db.Close()
			return nil, err
		}
		embedder = ollama.NewEmbedder(model)
		index = qdrant.NewIndex(cfg.QdrantURL, cfg.QdrantMemoryCollection)
		hooks = []usecase.TurnHook{
			usecase.NewShortTermMemoryHook(store, cfg.ShortTermStoreID, cfg.AgentShortTermTurns, logger),
			usecase.NewLongTermMemoryHook(store, cfg.LongTermStoreID, embedder, index, logger),
		}
	}

	service := usecase.NewSpecialist(
		agentName,
		connector,
		model,
		embedder,
		index,
		hooks,
		publisher,
		agentLimits(cfg),
		logger,
	)

	return &App{
		Config:      cfg,
		ServiceName: agentName,
		Service:     service,
		Metrics:     serverMetrics,
		closeFn: func() {
			publisher.Close()
			if db != nil {
				_ = db.Close()
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newEventStore(ctx context.Context, db *sql.DB, serverMetrics *metrics.ServerMetrics, serviceName string) (*memorypg.EventStore, error) {
	store := memorypg.NewEventStore(db).WithMetrics(serverMetrics.Memory(serviceName))
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure memory schema: %w", err)
	}
	return store, nil
}

func agentLimits(cfg config.Config) domain.AgentLimits {
	return domain.AgentLimits{
		MaxIterations:  cfg.AgentMaxIterations,
		TurnTimeout:    time.Duration(cfg.AgentTurnTimeoutSeconds) * time.Second,
		PlannerTimeout: time.Duration(cfg.AgentPlannerTimeoutSecond) * time.Second,
		ToolTimeout:    time.Duration(cfg.AgentToolTimeoutSeconds) * time.Second,
		ShortTermTurns: cfg.AgentShortTermTurns,
		MemoryTopK:     cfg.AgentMemoryTopK,
	}
}

func specialistAgentName(role string) (string, error) {
	switch role {
	case "lore":
		return domain.AgentLore, nil
	case "gameplay":
		return domain.AgentGameplay, nil
	case "strategy":
		return domain.AgentStrategy, nil
	default:
		return "", fmt.Errorf("unsupported agent role %q", role)
	}
}
