package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/observability/metrics"
)

// EventStore persists conversation memory events. One CreateEvent call
// groups its messages under a single event id; GetLastKTurns returns the
// last k such events in chronological order.
type EventStore struct {
	db      *sql.DB
	metrics *metrics.MemoryMetrics
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// WithMetrics attaches operation counters; pass nil to disable.
func (s *EventStore) WithMetrics(m *metrics.MemoryMetrics) *EventStore {
	s.metrics = m
	return s
}

func (s *EventStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const table = `
CREATE TABLE IF NOT EXISTS memory_events (
	id TEXT PRIMARY KEY,
	event_id TEXT NOT NULL,
	store_id TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	seq INT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`
	if _, err := tx.ExecContext(ctx, table); err != nil {
		return fmt.Errorf("ensure memory_events: %w", err)
	}

	const index = `
CREATE INDEX IF NOT EXISTS memory_events_scope_idx
ON memory_events (store_id, actor_id, session_id, created_at)`
	if _, err := tx.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("ensure memory_events index: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *EventStore) CreateEvent(ctx context.Context, storeID, actorID, sessionID string, messages []domain.MemoryMessage) error {
	if len(messages) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.finishWrite(start, fmt.Errorf("begin event tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	eventID := uuid.NewString()
	now := time.Now().UTC()
	for seq, msg := range messages {
		_, err := tx.ExecContext(ctx, `
INSERT INTO memory_events (id, event_id, store_id, actor_id, session_id, seq, role, content, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, uuid.NewString(), eventID, storeID, actorID, sessionID, seq, msg.Role, msg.Content, now)
		if err != nil {
			return s.finishWrite(start, fmt.Errorf("insert memory event message: %w", err))
		}
	}
	if err := tx.Commit(); err != nil {
		return s.finishWrite(start, fmt.Errorf("commit event tx: %w", err))
	}
	return s.finishWrite(start, nil)
}

func (s *EventStore) GetLastKTurns(ctx context.Context, storeID, actorID, sessionID string, k int) ([]domain.MemoryTurn, error) {
	if k <= 0 {
		return nil, nil
	}
	start := time.Now()

	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, role, content
FROM memory_events
WHERE store_id = $1 AND actor_id = $2 AND session_id = $3
  AND event_id IN (
	SELECT event_id FROM (
		SELECT event_id, MAX(created_at) AS latest
		FROM memory_events
		WHERE store_id = $1 AND actor_id = $2 AND session_id = $3
		GROUP BY event_id
		ORDER BY latest DESC
		LIMIT $4
	) recent
  )
ORDER BY created_at ASC, seq ASC
`, storeID, actorID, sessionID, k)
	if err != nil {
		s.finishRead(start)
		return nil, fmt.Errorf("list memory turns: %w", err)
	}
	defer rows.Close()

	turns := make([]domain.MemoryTurn, 0, k)
	var currentEvent string
	for rows.Next() {
		var eventID string
		var msg domain.MemoryMessage
		if err := rows.Scan(&eventID, &msg.Role, &msg.Content); err != nil {
			s.finishRead(start)
			return nil, fmt.Errorf("scan memory turn: %w", err)
		}
		if eventID != currentEvent {
			turns = append(turns, domain.MemoryTurn{})
			currentEvent = eventID
		}
		turns[len(turns)-1] = append(turns[len(turns)-1], msg)
	}
	if err := rows.Err(); err != nil {
		s.finishRead(start)
		return nil, fmt.Errorf("iterate memory turns: %w", err)
	}
	s.finishRead(start)
	return turns, nil
}

func (s *EventStore) finishWrite(start time.Time, err error) error {
	if s.metrics != nil {
		s.metrics.FinishEventWrite(time.Since(start), err)
	}
	return err
}

func (s *EventStore) finishRead(start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveTurnLoad(time.Since(start))
	}
}
