package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/core/ports"
)

// memoryRetrieveCapability searches the long-term semantic index scoped to
// the turn's namespace. The preference for memory over the knowledge base is
// prompt-level policy; nothing here gates the model's choice.
type memoryRetrieveCapability struct {
	namespace string
	actorID   string
	embedder  ports.Embedder
	index     ports.MemoryIndex
	topK      int
}

func (c *memoryRetrieveCapability) Name() string { return "memory_retrieve" }

func (c *memoryRetrieveCapability) Description() string {
	return "Search previously stored facts for this project before consulting the knowledge base."
}

func (c *memoryRetrieveCapability) Call(ctx context.Context, args map[string]any) (string, error) {
	query := stringInput(args, "query", "")
	if query == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "memory_retrieve", fmt.Errorf("query is required"))
	}

	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return "", fmt.Errorf("memory_retrieve embed: %w", err)
	}
	hits, err := c.index.SearchFacts(ctx, c.namespace, c.actorID, vector, c.topK)
	if err != nil {
		return "", fmt.Errorf("memory_retrieve search: %w", err)
	}
	if len(hits) == 0 {
		return `{"facts":[]}`, nil
	}

	facts := make([]map[string]any, 0, len(hits))
	for _, hit := range hits {
		facts = append(facts, map[string]any{"text": hit.Text, "score": hit.Score})
	}
	payload, _ := json.Marshal(map[string]any{"facts": facts})
	return string(payload), nil
}

// Specialist is a single-purpose agent scoped to one knowledge domain. Each
// invocation acquires a fresh knowledge-base tool set, runs the model loop,
// and releases the tool connection before returning.
type Specialist struct {
	agentName string
	prompt    string
	tools     ports.CapabilitySource
	model     ports.ModelClient
	embedder  ports.Embedder
	index     ports.MemoryIndex
	hooks     []TurnHook
	events    ports.TurnEventPublisher
	limits    domain.AgentLimits
	logger    *slog.Logger
}

func NewSpecialist(
	agentName string,
	tools ports.CapabilitySource,
	model ports.ModelClient,
	embedder ports.Embedder,
	index ports.MemoryIndex,
	hooks []TurnHook,
	events ports.TurnEventPublisher,
	limits domain.AgentLimits,
	logger *slog.Logger,
) *Specialist {
	if logger == nil {
		logger = slog.Default()
	}
	return &Specialist{
		agentName: agentName,
		prompt:    SpecialistPrompt(agentName),
		tools:     tools,
		model:     model,
		embedder:  embedder,
		index:     index,
		hooks:     hooks,
		events:    events,
		limits:    normalizeLimits(limits),
		logger:    logger,
	}
}

func (s *Specialist) Handle(ctx context.Context, req domain.AgentRequest) (*domain.AgentResponse, error) {
	req = req.Normalized()
	if req.Prompt == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "specialist handle", fmt.Errorf("prompt is required"))
	}

	state := &TurnState{
		Agent:     s.agentName,
		ActorID:   req.UserID,
		SessionID: req.SessionID,
		ProjectID: req.ProjectID,
		Namespace: domain.ProjectSemanticNamespace(shortRole(s.agentName), req.ProjectID),
	}

	// The knowledge-base connection is scoped to this turn: acquired here,
	// released on return regardless of outcome, never pooled.
	toolSet, err := s.tools.Acquire(ctx)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "specialist handle", fmt.Errorf("acquire knowledge base tools: %w", err))
	}
	defer func() {
		if closeErr := toolSet.Close(); closeErr != nil {
			s.logger.Warn("knowledge base tool close failed", "agent", s.agentName, "error", closeErr)
		}
	}()

	runBeforeTurn(ctx, s.hooks, state)
	appendMessage(ctx, s.hooks, state, domain.TurnMessage{Role: "user", Content: req.Prompt})

	tools := toolSet.List()
	if s.embedder != nil && s.index != nil {
		tools = append(tools, &memoryRetrieveCapability{
			namespace: state.Namespace,
			actorID:   state.ActorID,
			embedder:  s.embedder,
			index:     s.index,
			topK:      s.limits.MemoryTopK,
		})
	}

	turnCtx, cancel := context.WithTimeout(ctx, s.limits.TurnTimeout)
	defer cancel()

	answer, metrics, err := s.runLoop(turnCtx, state, tools, req.Prompt)
	status := "success"
	if err != nil {
		status = "error"
	}

	if answer != "" {
		appendMessage(ctx, s.hooks, state, domain.TurnMessage{Role: "assistant", Content: answer})
		runAfterTurn(ctx, s.hooks, state)
	}
	s.publishTurn(ctx, state, status)

	if err != nil {
		return nil, err
	}
	return &domain.AgentResponse{Response: answer, Metrics: metrics}, nil
}

func (s *Specialist) runLoop(ctx context.Context, state *TurnState, tools []ports.Capability, userPrompt string) (string, domain.MetricsSummary, error) {
	planner := stepPlanner{model: s.model, limits: s.limits}
	byName := make(map[string]ports.Capability, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}

	var metrics domain.MetricsSummary
	scratchpad := make([]string, 0, s.limits.MaxIterations)

	for i := 1; i <= s.limits.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", metrics, domain.WrapError(domain.ErrTemporary, "specialist loop", err)
		}

		step, usage, err := planner.next(ctx, buildStepPrompt(s.prompt, tools, state, scratchpad, userPrompt))
		metrics.Add(usage)
		if err != nil {
			return "", metrics, err
		}

		switch step.Type {
		case "final":
			answer := strings.TrimSpace(step.Answer)
			if answer == "" {
				return "", metrics, domain.WrapError(domain.ErrEmptyAnswer, "specialist loop", fmt.Errorf("model produced an empty final answer"))
			}
			return answer, metrics, nil
		case "tool":
			observation := s.executeTool(ctx, state, byName, step)
			scratchpad = append(scratchpad, fmt.Sprintf("%s:%s", step.Tool, observation))
		default:
			scratchpad = append(scratchpad, errorObservation(fmt.Errorf("unsupported step type %q", step.Type)))
		}
	}

	return "", metrics, domain.WrapError(domain.ErrTemporary, "specialist loop", fmt.Errorf("no final answer after %d iterations", s.limits.MaxIterations))
}

func (s *Specialist) executeTool(ctx context.Context, state *TurnState, byName map[string]ports.Capability, step domain.PlanStep) string {
	tool, ok := byName[step.Tool]
	if !ok {
		return errorObservation(fmt.Errorf("unknown tool %q", step.Tool))
	}

	toolCtx, cancel := context.WithTimeout(ctx, s.limits.ToolTimeout)
	out, err := tool.Call(toolCtx, step.Input)
	cancel()
	if err != nil {
		s.logger.Warn("tool call failed", "agent", s.agentName, "tool", step.Tool, "error", err)
		out = errorObservation(err)
	}

	appendMessage(ctx, s.hooks, state, domain.TurnMessage{Role: "tool", Content: out})
	return out
}

func (s *Specialist) publishTurn(ctx context.Context, state *TurnState, status string) {
	if s.events == nil {
		return
	}
	err := s.events.PublishTurnCompleted(ctx, domain.TurnEvent{
		Agent:     state.Agent,
		ActorID:   state.ActorID,
		SessionID: state.SessionID,
		Status:    status,
	})
	if err != nil {
		s.logger.Warn("turn event publish failed", "agent", state.Agent, "error", err)
	}
}

func shortRole(agentName string) string {
	return strings.TrimSuffix(agentName, "_agent")
}
