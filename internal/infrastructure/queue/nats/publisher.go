package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/infrastructure/resilience"
)

// Publisher emits turn-completed audit events. Publishing is fire-and-forget
// from the caller's point of view, failures never abort a turn.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("game-analyst-agents"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

type turnEventEnvelope struct {
	domain.TurnEvent
	CompletedAt time.Time `json:"completed_at"`
}

func (p *Publisher) PublishTurnCompleted(ctx context.Context, event domain.TurnEvent) error {
	payload, err := json.Marshal(turnEventEnvelope{
		TurnEvent:   event,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := p.conn.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}
