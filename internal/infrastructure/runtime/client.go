package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

// DefaultTimeout accommodates long-running model generations on the remote
// agent. The call blocks until completion or this timeout; no retry is
// attempted, so each delegation is at-most-once.
const DefaultTimeout = 300 * time.Second

// Client invokes remotely hosted agents over their /invocations endpoint.
type Client struct {
	httpClient *http.Client
	sessionID  string
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// WithSession returns a client that forwards the given session id so the
// remote agent joins the same conversation scope.
func (c *Client) WithSession(sessionID string) *Client {
	return &Client{httpClient: c.httpClient, sessionID: sessionID}
}

type invocationEnvelope struct {
	Response string                `json:"response"`
	Metrics  domain.MetricsSummary `json:"metrics"`
	Error    string                `json:"error"`
}

func (c *Client) Invoke(ctx context.Context, endpoint, query string) (domain.ToolInvocationResult, error) {
	body, err := json.Marshal(map[string]string{"prompt": query})
	if err != nil {
		return domain.ToolInvocationResult{}, fmt.Errorf("marshal invocation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ToolInvocationResult{}, fmt.Errorf("create invocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	sessionID := c.sessionID
	if sessionID == "" {
		sessionID = domain.SessionIDFromContext(ctx)
	}
	if sessionID != "" {
		req.Header.Set("X-Session-Id", sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ToolInvocationResult{}, domain.WrapError(domain.ErrInvocation, "invoke agent", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.ToolInvocationResult{}, domain.WrapError(domain.ErrInvocation, "read invocation response", err)
	}

	var envelope invocationEnvelope
	if decodeErr := json.Unmarshal(raw, &envelope); decodeErr != nil {
		if resp.StatusCode >= 300 {
			return domain.ToolInvocationResult{}, domain.WrapError(domain.ErrInvocation, "invoke agent",
				fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(raw))))
		}
		return domain.ToolInvocationResult{}, domain.WrapError(domain.ErrMalformedResponse, "decode invocation response", decodeErr)
	}

	if envelope.Error != "" {
		return domain.ToolInvocationResult{}, domain.WrapError(domain.ErrInvocation, "invoke agent", fmt.Errorf("%s", envelope.Error))
	}
	if resp.StatusCode >= 300 {
		return domain.ToolInvocationResult{}, domain.WrapError(domain.ErrInvocation, "invoke agent", fmt.Errorf("status %s", resp.Status))
	}
	if strings.TrimSpace(envelope.Response) == "" {
		return domain.ToolInvocationResult{}, domain.WrapError(domain.ErrEmptyAnswer, "invoke agent", fmt.Errorf("agent returned an empty answer"))
	}

	return domain.ToolInvocationResult{
		Response: envelope.Response,
		Metrics:  envelope.Metrics,
	}, nil
}
