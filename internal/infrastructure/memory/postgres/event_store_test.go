package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

func newStoreWithMock(t *testing.T) (*EventStore, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &EventStore{db: db}, mock, func() { _ = db.Close() }
}

func TestCreateEventWritesMessagePairInOneTransaction(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO memory_events").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "long-term", "default-user", "session-1", 0, "USER", "who is Isabella?", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO memory_events").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "long-term", "default-user", "session-1", 1, "ASSISTANT", "the corrupted alchemist", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.CreateEvent(context.Background(), "long-term", "default-user", "session-1", []domain.MemoryMessage{
		{Role: "USER", Content: "who is Isabella?"},
		{Role: "ASSISTANT", Content: "the corrupted alchemist"},
	})
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateEventSkipsEmptyMessages(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	if err := store.CreateEvent(context.Background(), "long-term", "actor", "session", nil); err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateEventRollsBackOnInsertFailure(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO memory_events").
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.CreateEvent(context.Background(), "long-term", "actor", "session", []domain.MemoryMessage{
		{Role: "USER", Content: "hi"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetLastKTurnsGroupsByEventChronologically(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"event_id", "role", "content"}).
		AddRow("event-1", "USER", "first question").
		AddRow("event-1", "ASSISTANT", "first answer").
		AddRow("event-2", "USER", "second question").
		AddRow("event-2", "ASSISTANT", "second answer")

	mock.ExpectQuery("SELECT event_id, role, content").
		WithArgs("short-term", "default-user", "session-1", 5).
		WillReturnRows(rows)

	turns, err := store.GetLastKTurns(context.Background(), "short-term", "default-user", "session-1", 5)
	if err != nil {
		t.Fatalf("GetLastKTurns() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0][0].Content != "first question" || turns[0][1].Content != "first answer" {
		t.Fatalf("unexpected first turn: %#v", turns[0])
	}
	if turns[1][1].Role != "ASSISTANT" || turns[1][1].Content != "second answer" {
		t.Fatalf("unexpected second turn: %#v", turns[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetLastKTurnsZeroKIsNoop(t *testing.T) {
	store, mock, done := newStoreWithMock(t)
	defer done()

	turns, err := store.GetLastKTurns(context.Background(), "short-term", "actor", "session", 0)
	if err != nil {
		t.Fatalf("GetLastKTurns() error = %v", err)
	}
	if turns != nil {
		t.Fatalf("expected nil turns, got %#v", turns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
