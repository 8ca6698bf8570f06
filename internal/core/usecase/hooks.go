package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/core/ports"
)

// ShortTermMemoryHook loads recent conversation turns before a turn and
// mirrors every newly added message into the session-bounded store.
type ShortTermMemoryHook struct {
	store   ports.MemoryStore
	storeID string
	turns   int
	logger  *slog.Logger
}

func NewShortTermMemoryHook(store ports.MemoryStore, storeID string, turns int, logger *slog.Logger) *ShortTermMemoryHook {
	if turns <= 0 {
		turns = 5
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShortTermMemoryHook{store: store, storeID: storeID, turns: turns, logger: logger}
}

func (h *ShortTermMemoryHook) BeforeTurn(ctx context.Context, state *TurnState) {
	if state.ActorID == "" || state.SessionID == "" {
		h.logger.Warn("short-term load skipped: missing actor or session id", "agent", state.Agent)
		return
	}

	recent, err := h.store.GetLastKTurns(ctx, h.storeID, state.ActorID, state.SessionID, h.turns)
	if err != nil {
		h.logger.Error("short-term load failed", "agent", state.Agent, "error", err)
		return
	}
	if len(recent) == 0 {
		return
	}

	lines := make([]string, 0, len(recent)*2)
	for _, turn := range recent {
		for _, msg := range turn {
			content := strings.TrimSpace(msg.Content)
			if content == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", titleRole(msg.Role), content))
		}
	}
	if len(lines) == 0 {
		return
	}

	state.AddContext("Recent conversation history:")
	state.AddContext(lines...)
	state.AddContext("Continue the conversation naturally based on this context.")
}

func (h *ShortTermMemoryHook) AfterMessage(ctx context.Context, state *TurnState, msg domain.TurnMessage) {
	if state.ActorID == "" || state.SessionID == "" {
		return
	}
	if strings.TrimSpace(msg.Content) == "" {
		return
	}

	err := h.store.CreateEvent(ctx, h.storeID, state.ActorID, state.SessionID, []domain.MemoryMessage{
		{Role: msg.Role, Content: msg.Content},
	})
	if err != nil {
		h.logger.Error("session log append failed", "agent", state.Agent, "error", err)
	}
}

func (h *ShortTermMemoryHook) AfterTurn(context.Context, *TurnState) {}

// LongTermMemoryHook persists the (user, assistant) pair of a completed turn
// into the cross-session store and, when an index is configured, adds the
// pair to the semantic memory index under the turn's namespace.
type LongTermMemoryHook struct {
	store    ports.MemoryStore
	storeID  string
	embedder ports.Embedder
	index    ports.MemoryIndex
	logger   *slog.Logger
}

func NewLongTermMemoryHook(store ports.MemoryStore, storeID string, embedder ports.Embedder, index ports.MemoryIndex, logger *slog.Logger) *LongTermMemoryHook {
	if logger == nil {
		logger = slog.Default()
	}
	return &LongTermMemoryHook{store: store, storeID: storeID, embedder: embedder, index: index, logger: logger}
}

func (h *LongTermMemoryHook) BeforeTurn(context.Context, *TurnState) {}

func (h *LongTermMemoryHook) AfterMessage(context.Context, *TurnState, domain.TurnMessage) {}

func (h *LongTermMemoryHook) AfterTurn(ctx context.Context, state *TurnState) {
	if state.ActorID == "" || state.SessionID == "" {
		h.logger.Warn("long-term persist skipped: missing actor or session id", "agent", state.Agent)
		return
	}

	userMsg, assistantMsg, ok := lastExchange(state.Messages)
	if !ok {
		return
	}

	err := h.store.CreateEvent(ctx, h.storeID, state.ActorID, state.SessionID, []domain.MemoryMessage{
		{Role: "USER", Content: userMsg},
		{Role: "ASSISTANT", Content: assistantMsg},
	})
	if err != nil {
		h.logger.Error("long-term persist failed", "agent", state.Agent, "error", err)
		return
	}

	if h.embedder == nil || h.index == nil || state.Namespace == "" {
		return
	}
	fact := fmt.Sprintf("User: %s\nAssistant: %s", userMsg, assistantMsg)
	vector, err := h.embedder.EmbedQuery(ctx, fact)
	if err != nil || len(vector) == 0 {
		h.logger.Warn("memory fact embedding failed", "agent", state.Agent, "error", err)
		return
	}
	if err := h.index.IndexFact(ctx, state.Namespace, state.ActorID, uuid.NewString(), fact, vector); err != nil {
		h.logger.Warn("memory fact indexing failed", "agent", state.Agent, "error", err)
	}
}

// lastExchange finds the most recent assistant message and the most recent
// true user message, skipping tool-result messages.
func lastExchange(messages []domain.TurnMessage) (userMsg, assistantMsg string, ok bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		switch {
		case msg.Role == "assistant" && assistantMsg == "":
			assistantMsg = content
		case msg.Role == "user" && userMsg == "" && !msg.IsToolResult():
			userMsg = content
		}
		if userMsg != "" && assistantMsg != "" {
			return userMsg, assistantMsg, true
		}
	}
	return "", "", false
}

func titleRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return "Unknown"
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
