package ports

import (
	"context"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

// AgentInvoker performs one blocking remote call to an agent endpoint.
// Each call is at-most-once; no retry is attempted.
type AgentInvoker interface {
	Invoke(ctx context.Context, endpoint, query string) (domain.ToolInvocationResult, error)
}

// AgentDirectory resolves an agent's network endpoint by its directory key.
type AgentDirectory interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// ModelClient wraps the underlying language model.
type ModelClient interface {
	GenerateText(ctx context.Context, prompt string) (domain.ModelResult, error)
	GenerateJSON(ctx context.Context, prompt string) (domain.ModelResult, error)
}

// Embedder builds vectors for semantic memory text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// MemoryStore persists and reads conversation memory events. Both operations
// are safe to skip on failure; callers treat the store as best-effort.
type MemoryStore interface {
	GetLastKTurns(ctx context.Context, storeID, actorID, sessionID string, k int) ([]domain.MemoryTurn, error)
	CreateEvent(ctx context.Context, storeID, actorID, sessionID string, messages []domain.MemoryMessage) error
}

// MemoryIndex stores and searches long-term facts by namespace.
type MemoryIndex interface {
	IndexFact(ctx context.Context, namespace, actorID, factID, text string, vector []float32) error
	SearchFacts(ctx context.Context, namespace, actorID string, queryVector []float32, limit int) ([]domain.MemoryHit, error)
}

// Capability is one opaque callable action available to an agent for a turn.
type Capability interface {
	Name() string
	Description() string
	Call(ctx context.Context, args map[string]any) (string, error)
}

// CapabilitySet is the dynamic tool set resolved for a single turn. Close
// releases the underlying connection; the set is never reused across turns.
type CapabilitySet interface {
	List() []Capability
	Close() error
}

// CapabilitySource acquires a fresh capability set at the start of a turn.
type CapabilitySource interface {
	Acquire(ctx context.Context) (CapabilitySet, error)
}

// TurnEventPublisher emits a record after each completed turn. Failures are
// observability-only and must never fail the turn.
type TurnEventPublisher interface {
	PublishTurnCompleted(ctx context.Context, event domain.TurnEvent) error
}
