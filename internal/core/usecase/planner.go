package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/core/ports"
)

// stepPlanner drives the model one JSON plan step at a time, with a single
// repair pass for malformed planner output.
type stepPlanner struct {
	model  ports.ModelClient
	limits domain.AgentLimits
}

func (p stepPlanner) next(ctx context.Context, prompt string) (domain.PlanStep, domain.MetricsSummary, error) {
	var usage domain.MetricsSummary

	plannerCtx, cancel := context.WithTimeout(ctx, p.limits.PlannerTimeout)
	result, err := p.model.GenerateJSON(plannerCtx, prompt)
	cancel()
	if err != nil {
		return domain.PlanStep{}, usage, fmt.Errorf("plan step: %w", err)
	}
	usage.Add(result.Metrics)

	step, parseErr := parsePlanStep(result.Text)
	if parseErr == nil {
		return step, usage, nil
	}

	repairCtx, cancel := context.WithTimeout(ctx, p.limits.PlannerTimeout)
	repaired, err := p.model.GenerateJSON(repairCtx, buildStepRepairPrompt(result.Text))
	cancel()
	if err != nil {
		return domain.PlanStep{}, usage, fmt.Errorf("plan step repair: %w", err)
	}
	usage.Add(repaired.Metrics)

	step, parseErr = parsePlanStep(repaired.Text)
	if parseErr != nil {
		return domain.PlanStep{}, usage, domain.WrapError(domain.ErrMalformedResponse, "plan step", parseErr)
	}
	return step, usage, nil
}

func parsePlanStep(raw string) (domain.PlanStep, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.PlanStep{}, fmt.Errorf("empty planner response")
	}
	var step domain.PlanStep
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		return domain.PlanStep{}, fmt.Errorf("unmarshal planner json: %w", err)
	}
	step.Type = strings.ToLower(strings.TrimSpace(step.Type))
	step.Tool = strings.TrimSpace(step.Tool)
	return step, nil
}

func normalizeLimits(limits domain.AgentLimits) domain.AgentLimits {
	if limits.MaxIterations <= 0 {
		limits.MaxIterations = 6
	}
	if limits.TurnTimeout <= 0 {
		limits.TurnTimeout = 10 * time.Minute
	}
	if limits.PlannerTimeout <= 0 {
		limits.PlannerTimeout = 2 * time.Minute
	}
	if limits.ToolTimeout <= 0 {
		limits.ToolTimeout = 5 * time.Minute
	}
	if limits.ShortTermTurns <= 0 {
		limits.ShortTermTurns = 5
	}
	if limits.MemoryTopK <= 0 {
		limits.MemoryTopK = 4
	}
	return limits
}

func stringInput(input map[string]any, key, fallback string) string {
	if input == nil {
		return fallback
	}
	value, ok := input[key]
	if !ok || value == nil {
		return fallback
	}
	switch typed := value.(type) {
	case string:
		if strings.TrimSpace(typed) == "" {
			return fallback
		}
		return typed
	default:
		return fmt.Sprint(typed)
	}
}
