package domain

import "fmt"

// MemoryMessage is one entry of a stored memory event.
type MemoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryTurn is one stored event: the messages persisted together by a single
// CreateEvent call, in write order.
type MemoryTurn []MemoryMessage

// MemoryHit is one semantic memory fact returned by namespace search.
type MemoryHit struct {
	Namespace string  `json:"namespace"`
	ActorID   string  `json:"actor_id"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// ProjectSemanticNamespace scopes a specialist's long-term facts to one
// project, e.g. "project/gameplay/new-world-aeternum/semantic".
func ProjectSemanticNamespace(role, projectID string) string {
	return fmt.Sprintf("project/%s/%s/semantic", role, projectID)
}

// AnalystPreferencesNamespace scopes the orchestrator's long-term facts to
// one analyst, e.g. "analyst/default-user/preferences".
func AnalystPreferencesNamespace(userID string) string {
	return fmt.Sprintf("analyst/%s/preferences", userID)
}

// DirectoryKey is the fixed naming convention under which an agent's endpoint
// is registered, mirroring the deployment tooling.
func DirectoryKey(agentName string, withMemories bool) string {
	if withMemories {
		return "/agents/" + agentName
	}
	return "/agents/" + agentName + "_no_memories"
}
