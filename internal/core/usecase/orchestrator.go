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

// Delegation tool names exposed to the orchestrating model.
const (
	toolLoreAgent     = "get_lore_agent"
	toolGameplayAgent = "get_gameplay_agent"
	toolStrategyAgent = "get_strategy_agent"
)

var delegationTargets = map[string]string{
	toolLoreAgent:     domain.AgentLore,
	toolGameplayAgent: domain.AgentGameplay,
	toolStrategyAgent: domain.AgentStrategy,
}

var delegationDescriptions = map[string]string{
	toolLoreAgent:     "Ask the lore specialist about the game world, story, characters, and setting.",
	toolGameplayAgent: "Ask the gameplay specialist about mechanics, balance, progression, and engagement.",
	toolStrategyAgent: "Ask the strategy specialist about corporate strategy, metrics, and roadmaps.",
}

// toolMetricsCollector accumulates per-delegation metrics for one invocation.
// It is created fresh inside Handle so concurrent requests in the same
// process can never observe each other's counts.
type toolMetricsCollector struct {
	entries []domain.MetricsSummary
}

func (c *toolMetricsCollector) Append(m domain.MetricsSummary) {
	c.entries = append(c.entries, m)
}

func (c *toolMetricsCollector) Snapshot() []domain.MetricsSummary {
	if len(c.entries) == 0 {
		return nil
	}
	return append([]domain.MetricsSummary(nil), c.entries...)
}

// delegationCapability adapts one specialist delegation into a capability.
// The returned text is the only model-visible result; decoded metrics go to
// the invocation-scoped collector as a side channel.
type delegationCapability struct {
	name      string
	target    string
	directory ports.AgentDirectory
	invoker   ports.AgentInvoker
	withMem   bool
	collector *toolMetricsCollector
}

func (d *delegationCapability) Name() string        { return d.name }
func (d *delegationCapability) Description() string { return delegationDescriptions[d.name] }

func (d *delegationCapability) Call(ctx context.Context, args map[string]any) (string, error) {
	query := stringInput(args, "query", "")
	if query == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, d.name, fmt.Errorf("query is required"))
	}

	endpoint, err := d.directory.Resolve(ctx, domain.DirectoryKey(d.target, d.withMem))
	if err != nil {
		return "", domain.WrapError(domain.ErrAgentNotFound, d.name, err)
	}

	result, err := d.invoker.Invoke(ctx, endpoint, query)
	if err != nil {
		return "", fmt.Errorf("%s: %w", d.name, err)
	}

	d.collector.Append(result.Metrics)
	return result.Response, nil
}

// Orchestrator is the game analyst agent: it answers design questions by
// delegating to specialist agents and merging their answers and metrics.
type Orchestrator struct {
	directory    ports.AgentDirectory
	invoker      ports.AgentInvoker
	model        ports.ModelClient
	hooks        []TurnHook
	events       ports.TurnEventPublisher
	limits       domain.AgentLimits
	withMemories bool
	logger       *slog.Logger
}

func NewOrchestrator(
	directory ports.AgentDirectory,
	invoker ports.AgentInvoker,
	model ports.ModelClient,
	hooks []TurnHook,
	events ports.TurnEventPublisher,
	limits domain.AgentLimits,
	withMemories bool,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		directory:    directory,
		invoker:      invoker,
		model:        model,
		hooks:        hooks,
		events:       events,
		limits:       normalizeLimits(limits),
		withMemories: withMemories,
		logger:       logger,
	}
}

func (o *Orchestrator) Handle(ctx context.Context, req domain.AgentRequest) (*domain.AgentResponse, error) {
	req = req.Normalized()
	if req.Prompt == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "orchestrator handle", fmt.Errorf("prompt is required"))
	}
	ctx = domain.WithSessionID(ctx, req.SessionID)

	state := &TurnState{
		Agent:     domain.AgentGameAnalyst,
		ActorID:   req.UserID,
		SessionID: req.SessionID,
		ProjectID: req.ProjectID,
		Namespace: domain.AnalystPreferencesNamespace(req.UserID),
	}
	runBeforeTurn(ctx, o.hooks, state)
	appendMessage(ctx, o.hooks, state, domain.TurnMessage{Role: "user", Content: req.Prompt})

	collector := &toolMetricsCollector{}
	tools := o.delegationTools(collector)

	turnCtx, cancel := context.WithTimeout(ctx, o.limits.TurnTimeout)
	defer cancel()

	answer, ownMetrics, err := o.runLoop(turnCtx, state, tools, req.Prompt)
	status := "success"
	if err != nil {
		status = "error"
	}

	if answer != "" {
		appendMessage(ctx, o.hooks, state, domain.TurnMessage{Role: "assistant", Content: answer})
		runAfterTurn(ctx, o.hooks, state)
	}
	o.publishTurn(ctx, state, status, len(collector.entries))

	if err != nil {
		return nil, err
	}
	return &domain.AgentResponse{
		Response:    answer,
		Metrics:     ownMetrics,
		ToolMetrics: collector.Snapshot(),
	}, nil
}

func (o *Orchestrator) delegationTools(collector *toolMetricsCollector) []ports.Capability {
	names := []string{toolGameplayAgent, toolLoreAgent, toolStrategyAgent}
	tools := make([]ports.Capability, 0, len(names))
	for _, name := range names {
		tools = append(tools, &delegationCapability{
			name:      name,
			target:    delegationTargets[name],
			directory: o.directory,
			invoker:   o.invoker,
			withMem:   o.withMemories,
			collector: collector,
		})
	}
	return tools
}

func (o *Orchestrator) runLoop(ctx context.Context, state *TurnState, tools []ports.Capability, userPrompt string) (string, domain.MetricsSummary, error) {
	planner := stepPlanner{model: o.model, limits: o.limits}
	byName := make(map[string]ports.Capability, len(tools))
	for _, tool := range tools {
		byName[tool.Name()] = tool
	}

	var ownMetrics domain.MetricsSummary
	scratchpad := make([]string, 0, o.limits.MaxIterations)

	for i := 1; i <= o.limits.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", ownMetrics, domain.WrapError(domain.ErrTemporary, "orchestrator loop", err)
		}

		step, usage, err := planner.next(ctx, buildStepPrompt(gameAnalystPrompt, tools, state, scratchpad, userPrompt))
		ownMetrics.Add(usage)
		if err != nil {
			return "", ownMetrics, err
		}

		switch step.Type {
		case "final":
			answer := strings.TrimSpace(step.Answer)
			if answer == "" {
				return "", ownMetrics, domain.WrapError(domain.ErrEmptyAnswer, "orchestrator loop", fmt.Errorf("model produced an empty final answer"))
			}
			return answer, ownMetrics, nil
		case "tool":
			observation := o.executeDelegation(ctx, state, byName, step)
			scratchpad = append(scratchpad, fmt.Sprintf("%s:%s", step.Tool, observation))
		default:
			scratchpad = append(scratchpad, errorObservation(fmt.Errorf("unsupported step type %q", step.Type)))
		}
	}

	return "", ownMetrics, domain.WrapError(domain.ErrTemporary, "orchestrator loop", fmt.Errorf("no final answer after %d iterations", o.limits.MaxIterations))
}

// executeDelegation runs one delegation tool. Failures become textual error
// observations returned to the model so it can explain the limitation to the
// user; they never escape the entrypoint as exceptions.
func (o *Orchestrator) executeDelegation(ctx context.Context, state *TurnState, byName map[string]ports.Capability, step domain.PlanStep) string {
	tool, ok := byName[step.Tool]
	if !ok {
		return errorObservation(fmt.Errorf("unknown tool %q", step.Tool))
	}

	toolCtx, cancel := context.WithTimeout(ctx, o.limits.ToolTimeout)
	out, err := tool.Call(toolCtx, step.Input)
	cancel()
	if err != nil {
		o.logger.Warn("delegation failed", "tool", step.Tool, "error", err)
		out = errorObservation(err)
	}

	appendMessage(ctx, o.hooks, state, domain.TurnMessage{Role: "tool", Content: out})
	return out
}

func (o *Orchestrator) publishTurn(ctx context.Context, state *TurnState, status string, delegations int) {
	if o.events == nil {
		return
	}
	err := o.events.PublishTurnCompleted(ctx, domain.TurnEvent{
		Agent:       state.Agent,
		ActorID:     state.ActorID,
		SessionID:   state.SessionID,
		Status:      status,
		Delegations: delegations,
	})
	if err != nil {
		o.logger.Warn("turn event publish failed", "agent", state.Agent, "error", err)
	}
}

func errorObservation(err error) string {
	payload, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(payload)
}
