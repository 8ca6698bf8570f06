package usecase

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

type memoryStoreCall struct {
	storeID   string
	actorID   string
	sessionID string
	messages  []domain.MemoryMessage
}

type fakeMemoryStore struct {
	turns     []domain.MemoryTurn
	getErr    error
	createErr error
	// echo makes CreateEvent feed written messages back through GetLastKTurns.
	echo    bool
	gets    int
	creates []memoryStoreCall
}

func (s *fakeMemoryStore) GetLastKTurns(_ context.Context, _, _, _ string, _ int) ([]domain.MemoryTurn, error) {
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.turns, nil
}

func (s *fakeMemoryStore) CreateEvent(_ context.Context, storeID, actorID, sessionID string, messages []domain.MemoryMessage) error {
	s.creates = append(s.creates, memoryStoreCall{storeID: storeID, actorID: actorID, sessionID: sessionID, messages: messages})
	if s.echo && s.createErr == nil {
		s.turns = append(s.turns, domain.MemoryTurn(messages))
	}
	return s.createErr
}

func TestShortTermHookInjectsRecentHistory(t *testing.T) {
	store := &fakeMemoryStore{turns: []domain.MemoryTurn{
		{{Role: "user", Content: "what about crafting?"}, {Role: "assistant", Content: "crafting uses trade skills"}},
		{{Role: "user", Content: "and gathering?"}},
	}}
	hook := NewShortTermMemoryHook(store, "short-term", 5, discardLogger())
	state := &TurnState{Agent: domain.AgentLore, ActorID: "alice", SessionID: "s-1"}

	hook.BeforeTurn(context.Background(), state)

	want := []string{
		"Recent conversation history:",
		"User: what about crafting?",
		"Assistant: crafting uses trade skills",
		"User: and gathering?",
		"Continue the conversation naturally based on this context.",
	}
	if !reflect.DeepEqual(state.Context, want) {
		t.Fatalf("unexpected context lines:\ngot  %#v\nwant %#v", state.Context, want)
	}
}

func TestShortTermHookSkipsWithoutIdentifiers(t *testing.T) {
	store := &fakeMemoryStore{}
	hook := NewShortTermMemoryHook(store, "short-term", 5, discardLogger())

	hook.BeforeTurn(context.Background(), &TurnState{ActorID: "alice"})
	hook.BeforeTurn(context.Background(), &TurnState{SessionID: "s-1"})

	if store.gets != 0 {
		t.Fatalf("store must not be queried without both identifiers, got %d queries", store.gets)
	}
}

func TestShortTermHookLoadFailureLeavesContextEmpty(t *testing.T) {
	store := &fakeMemoryStore{getErr: fmt.Errorf("db down")}
	hook := NewShortTermMemoryHook(store, "short-term", 5, discardLogger())
	state := &TurnState{ActorID: "alice", SessionID: "s-1"}

	hook.BeforeTurn(context.Background(), state)

	if len(state.Context) != 0 {
		t.Fatalf("expected empty context after load failure, got %#v", state.Context)
	}
}

func TestShortTermHookAppendsEachMessage(t *testing.T) {
	store := &fakeMemoryStore{}
	hook := NewShortTermMemoryHook(store, "short-term", 5, discardLogger())
	state := &TurnState{ActorID: "alice", SessionID: "s-1"}

	hook.AfterMessage(context.Background(), state, domain.TurnMessage{Role: "user", Content: "hello"})
	hook.AfterMessage(context.Background(), state, domain.TurnMessage{Role: "tool", Content: `{"facts":[]}`})
	hook.AfterMessage(context.Background(), state, domain.TurnMessage{Role: "assistant", Content: "   "})

	if len(store.creates) != 2 {
		t.Fatalf("expected 2 stored messages, got %d", len(store.creates))
	}
	first := store.creates[0]
	if first.storeID != "short-term" || first.actorID != "alice" || first.sessionID != "s-1" {
		t.Fatalf("unexpected store call %#v", first)
	}
	if len(first.messages) != 1 || first.messages[0].Role != "user" || first.messages[0].Content != "hello" {
		t.Fatalf("unexpected stored messages %#v", first.messages)
	}
}

func TestLongTermHookPersistsLastExchange(t *testing.T) {
	store := &fakeMemoryStore{}
	hook := NewLongTermMemoryHook(store, "long-term", nil, nil, discardLogger())
	state := &TurnState{
		Agent:     domain.AgentGameplay,
		ActorID:   "alice",
		SessionID: "s-1",
		Messages: []domain.TurnMessage{
			{Role: "user", Content: "is the endgame too grindy?"},
			{Role: "tool", Content: `{"error":"kb timeout"}`},
			{Role: "tool", Content: "expertise gating slows progression"},
			{Role: "assistant", Content: "the expertise system adds friction late game"},
		},
	}

	hook.AfterTurn(context.Background(), state)

	if len(store.creates) != 1 {
		t.Fatalf("expected one stored event, got %d", len(store.creates))
	}
	call := store.creates[0]
	if call.storeID != "long-term" {
		t.Fatalf("unexpected store id %q", call.storeID)
	}
	want := []domain.MemoryMessage{
		{Role: "USER", Content: "is the endgame too grindy?"},
		{Role: "ASSISTANT", Content: "the expertise system adds friction late game"},
	}
	if !reflect.DeepEqual(call.messages, want) {
		t.Fatalf("unexpected stored pair:\ngot  %#v\nwant %#v", call.messages, want)
	}
}

func TestLongTermHookSkipsIncompleteExchange(t *testing.T) {
	store := &fakeMemoryStore{}
	hook := NewLongTermMemoryHook(store, "long-term", nil, nil, discardLogger())
	state := &TurnState{
		ActorID:   "alice",
		SessionID: "s-1",
		Messages:  []domain.TurnMessage{{Role: "user", Content: "hello"}},
	}

	hook.AfterTurn(context.Background(), state)

	if len(store.creates) != 0 {
		t.Fatalf("expected no stored events without an assistant reply, got %d", len(store.creates))
	}
}

func TestLongTermHookIndexesFactUnderNamespace(t *testing.T) {
	store := &fakeMemoryStore{}
	embedder := &fakeEmbedder{vector: []float32{0.3, 0.4}}
	index := &fakeMemoryIndex{}
	hook := NewLongTermMemoryHook(store, "long-term", embedder, index, discardLogger())
	state := &TurnState{
		ActorID:   "alice",
		SessionID: "s-1",
		Namespace: "project/lore/new-world-aeternum/semantic",
		Messages: []domain.TurnMessage{
			{Role: "user", Content: "who rules Everfall?"},
			{Role: "assistant", Content: "Everfall is governed by a player company"},
		},
	}

	hook.AfterTurn(context.Background(), state)

	if len(index.facts) != 1 {
		t.Fatalf("expected one indexed fact, got %d", len(index.facts))
	}
	if index.namespaces[0] != "project/lore/new-world-aeternum/semantic" {
		t.Fatalf("unexpected namespace %q", index.namespaces[0])
	}
	wantFact := "User: who rules Everfall?\nAssistant: Everfall is governed by a player company"
	if index.facts[0] != wantFact {
		t.Fatalf("unexpected fact text %q", index.facts[0])
	}
	if len(embedder.texts) != 1 || embedder.texts[0] != wantFact {
		t.Fatalf("unexpected embedded texts %#v", embedder.texts)
	}
}

func TestLongTermHookIndexFailureIsNonFatal(t *testing.T) {
	store := &fakeMemoryStore{}
	embedder := &fakeEmbedder{vector: []float32{0.5}}
	index := &fakeMemoryIndex{indexErr: fmt.Errorf("qdrant unreachable")}
	hook := NewLongTermMemoryHook(store, "long-term", embedder, index, discardLogger())
	state := &TurnState{
		ActorID:   "alice",
		SessionID: "s-1",
		Namespace: "analyst/alice/preferences",
		Messages: []domain.TurnMessage{
			{Role: "user", Content: "keep answers short"},
			{Role: "assistant", Content: "noted, short answers from now on"},
		},
	}

	hook.AfterTurn(context.Background(), state)

	if len(store.creates) != 1 {
		t.Fatalf("event store write must still happen, got %d", len(store.creates))
	}
}

func TestLongTermHookSkipsIndexWithoutNamespace(t *testing.T) {
	store := &fakeMemoryStore{}
	embedder := &fakeEmbedder{vector: []float32{0.5}}
	index := &fakeMemoryIndex{}
	hook := NewLongTermMemoryHook(store, "long-term", embedder, index, discardLogger())
	state := &TurnState{
		ActorID:   "alice",
		SessionID: "s-1",
		Messages: []domain.TurnMessage{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
		},
	}

	hook.AfterTurn(context.Background(), state)

	if len(index.facts) != 0 {
		t.Fatalf("expected no indexing without a namespace, got %#v", index.facts)
	}
}
