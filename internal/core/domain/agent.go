package domain

import (
	"strings"
	"time"
)

// Agent names as registered in the directory.
const (
	AgentGameAnalyst = "game_analyst_agent"
	AgentLore        = "lore_agent"
	AgentGameplay    = "gameplay_agent"
	AgentStrategy    = "strategy_agent"
)

const (
	DefaultUserID    = "default-user"
	DefaultProjectID = "new-world-aeternum"
)

// AgentRequest is one inbound invocation. SessionID is supplied by the
// hosting runtime (request header), never by the payload.
type AgentRequest struct {
	Prompt    string `json:"prompt"`
	UserID    string `json:"user_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	SessionID string `json:"-"`
}

// Normalized trims fields and applies the sentinel identifiers.
func (r AgentRequest) Normalized() AgentRequest {
	out := r
	out.Prompt = strings.TrimSpace(r.Prompt)
	out.UserID = strings.TrimSpace(r.UserID)
	if out.UserID == "" {
		out.UserID = DefaultUserID
	}
	out.ProjectID = strings.TrimSpace(r.ProjectID)
	if out.ProjectID == "" {
		out.ProjectID = DefaultProjectID
	}
	out.SessionID = strings.TrimSpace(r.SessionID)
	return out
}

// MetricsSummary carries usage counters for one model exchange or one
// delegated call. Orchestration logic merges these without interpreting them.
type MetricsSummary struct {
	InputTokens  int   `json:"input_tokens"`
	OutputTokens int   `json:"output_tokens"`
	TotalTokens  int   `json:"total_tokens"`
	LatencyMs    int64 `json:"latency_ms"`
	ModelCalls   int   `json:"model_calls"`
}

func (m *MetricsSummary) Add(other MetricsSummary) {
	m.InputTokens += other.InputTokens
	m.OutputTokens += other.OutputTokens
	m.TotalTokens += other.TotalTokens
	m.LatencyMs += other.LatencyMs
	m.ModelCalls += other.ModelCalls
}

// AgentResponse is the success envelope returned by every agent. ToolMetrics
// holds one entry per delegated call made during this invocation, in call
// order, and always starts empty for a new invocation.
type AgentResponse struct {
	Response    string           `json:"response"`
	Metrics     MetricsSummary   `json:"metrics"`
	ToolMetrics []MetricsSummary `json:"toolMetrics,omitempty"`
}

// ToolInvocationResult is the decoded result of one delegation call.
type ToolInvocationResult struct {
	Response string         `json:"response"`
	Metrics  MetricsSummary `json:"metrics"`
}

// ModelResult is one model exchange: the text and its usage counters.
type ModelResult struct {
	Text    string
	Metrics MetricsSummary
}

// PlanStep is a single planner decision: either a tool call or a final answer.
type PlanStep struct {
	Type   string         `json:"type"`
	Tool   string         `json:"tool,omitempty"`
	Answer string         `json:"answer,omitempty"`
	Input  map[string]any `json:"input,omitempty"`
}

// TurnMessage is one entry in the in-flight turn's message list.
type TurnMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IsToolResult reports whether the message is a framework artifact rather
// than true user input.
func (m TurnMessage) IsToolResult() bool {
	return m.Role == "tool"
}

// AgentLimits bounds one invocation.
type AgentLimits struct {
	MaxIterations  int           `json:"max_iterations"`
	TurnTimeout    time.Duration `json:"turn_timeout"`
	PlannerTimeout time.Duration `json:"planner_timeout"`
	ToolTimeout    time.Duration `json:"tool_timeout"`
	ShortTermTurns int           `json:"short_term_turns"`
	MemoryTopK     int           `json:"memory_top_k"`
}

// TurnEvent is the compact record published after a completed turn.
type TurnEvent struct {
	Agent       string `json:"agent"`
	ActorID     string `json:"actor_id"`
	SessionID   string `json:"session_id"`
	Status      string `json:"status"`
	Delegations int    `json:"delegations,omitempty"`
}
