package ports

import (
	"context"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

// AgentService handles one agent invocation end to end.
type AgentService interface {
	Handle(ctx context.Context, req domain.AgentRequest) (*domain.AgentResponse, error)
}
