package usecase

import (
	"context"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

// TurnState is the per-invocation snapshot shared with lifecycle hooks.
// It is scoped to a single in-flight request and never shared across
// concurrent invocations.
type TurnState struct {
	Agent     string
	ActorID   string
	SessionID string
	ProjectID string
	Namespace string

	// Context holds instruction lines injected before the model exchange.
	Context []string
	// Messages is the append-only message list of the current turn.
	Messages []domain.TurnMessage
}

func (s *TurnState) AddContext(lines ...string) {
	s.Context = append(s.Context, lines...)
}

// TurnHook receives lifecycle callbacks around a conversation turn:
// BeforeTurn before the model exchange, AfterMessage for every newly added
// message, AfterTurn once the final message is produced. Hooks are
// best-effort; implementations log failures and never abort the turn.
type TurnHook interface {
	BeforeTurn(ctx context.Context, state *TurnState)
	AfterMessage(ctx context.Context, state *TurnState, msg domain.TurnMessage)
	AfterTurn(ctx context.Context, state *TurnState)
}

func runBeforeTurn(ctx context.Context, hooks []TurnHook, state *TurnState) {
	for _, h := range hooks {
		h.BeforeTurn(ctx, state)
	}
}

func runAfterTurn(ctx context.Context, hooks []TurnHook, state *TurnState) {
	for _, h := range hooks {
		h.AfterTurn(ctx, state)
	}
}

// appendMessage records a message on the turn and fires AfterMessage hooks.
func appendMessage(ctx context.Context, hooks []TurnHook, state *TurnState, msg domain.TurnMessage) {
	state.Messages = append(state.Messages, msg)
	for _, h := range hooks {
		h.AfterMessage(ctx, state, msg)
	}
}
