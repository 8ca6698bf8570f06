package usecase

import (
	"fmt"
	"strings"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/core/ports"
)

const gameAnalystPrompt = `You are a professional Game Analyst agent specializing in game design
documents for New World Aeternum. You review design documentation, understand
the developer's vision, and provide expert feedback consistent with the game's
established story, lore, gameplay, and strategy.

Delegate domain questions to the specialist tools:
- get_lore_agent: world, story, narrative consistency, characters, setting.
- get_gameplay_agent: mechanics, balance, progression, difficulty, engagement.
- get_strategy_agent: corporate strategy, performance metrics, roadmaps.

Always refer to previously established user preferences when formatting your
response. Provide specific, actionable feedback without preambles.`

var specialistPrompts = map[string]string{
	domain.AgentLore: `You are a Game Analyst expert on the lore of New World, built by Amazon
Game Studios: the game's story and main goals, the history of Aeternum, its
locations, geography, demographics, and characters.

First search your memory for the requested information. Only when memory
yields nothing sufficient, use the knowledge base tools, searching with
precise terms from the question. Only use information retrieved from your
tools; never invent lore.`,
	domain.AgentGameplay: `You are a Game Analyst expert on New World gameplay: game systems,
mechanics and balance, core loops and progression, player motivation,
difficulty curves and accessibility.

First search your memory for the requested information. Only when memory
yields nothing sufficient, use the knowledge base tools. Ground every answer
in retrieved information and call out potential balance issues explicitly.`,
	domain.AgentStrategy: `You are a Corporate Strategy analyst for New World: corporate strategy,
performance metrics, roadmaps, and strategic priorities.

First search your memory for the requested information. Only when memory
yields nothing sufficient, use the knowledge base tools. Keep answers factual
and tied to retrieved strategy material.`,
}

// SpecialistPrompt returns the fixed role prompt for an agent name.
func SpecialistPrompt(agentName string) string {
	if p, ok := specialistPrompts[agentName]; ok {
		return p
	}
	return gameAnalystPrompt
}

func buildStepPrompt(rolePrompt string, tools []ports.Capability, state *TurnState, scratchpad []string, userPrompt string) string {
	toolLines := make([]string, 0, len(tools))
	for _, tool := range tools {
		toolLines = append(toolLines, fmt.Sprintf("- %s: %s", tool.Name(), tool.Description()))
	}
	if len(toolLines) == 0 {
		toolLines = append(toolLines, "(no tools available)")
	}
	contextLines := state.Context
	if len(contextLines) == 0 {
		contextLines = []string{"(empty)"}
	}
	if len(scratchpad) == 0 {
		scratchpad = []string{"(no tool outputs yet)"}
	}

	return fmt.Sprintf(`%s

Return ONLY a valid JSON object with one step.
Schema:
{"type":"tool","tool":"<tool name>","input":{"query":"..."}}
or
{"type":"final","answer":"..."}

Available tools:
%s

Additional context:
%s

Scratchpad with previous tool outputs:
%s

Current user request:
%s
`, rolePrompt, strings.Join(toolLines, "\n"), strings.Join(contextLines, "\n"), strings.Join(scratchpad, "\n"), userPrompt)
}

func buildStepRepairPrompt(raw string) string {
	return fmt.Sprintf(`Convert the following text into a valid JSON object for this schema:
{"type":"tool","tool":"<tool name>","input":{"query":"..."}}
or {"type":"final","answer":"..."}
Return only JSON.
Text:
%s`, raw)
}
