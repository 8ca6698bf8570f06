package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// WithExecutor enables retry and circuit breaking on model calls.
func (c *Client) WithExecutor(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	TotalDuration   int64  `json:"total_duration"`
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (domain.ModelResult, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	})
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string) (domain.ModelResult, error) {
	return c.generate(ctx, map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	})
}

func (c *Client) generate(ctx context.Context, reqBody map[string]any) (domain.ModelResult, error) {
	var response generateResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/api/generate", reqBody, &response, "generate")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama.generate", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return domain.ModelResult{}, wrapTemporaryIfNeeded("ollama generate", err)
	}

	return domain.ModelResult{
		Text: strings.TrimSpace(response.Response),
		Metrics: domain.MetricsSummary{
			InputTokens:  response.PromptEvalCount,
			OutputTokens: response.EvalCount,
			TotalTokens:  response.PromptEvalCount + response.EvalCount,
			LatencyMs:    response.TotalDuration / int64(time.Millisecond),
			ModelCalls:   1,
		},
	}, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	call := func(callCtx context.Context) error {
		return e.client.postJSON(callCtx, "/api/embed", request, &response, "embed")
	}

	var err error
	if e.client.executor != nil {
		err = e.client.executor.Execute(ctx, "ollama.embed", call, classifyOllamaError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ollama embed", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}
