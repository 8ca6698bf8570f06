package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

// Index stores long-term memory facts as vectors, scoped by namespace and
// actor so one collection serves every agent and project.
type Index struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func NewIndex(baseURL, collection string) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Index) IndexFact(ctx context.Context, namespace, actorID, factID, text string, vector []float32) error {
	if len(vector) == 0 || strings.TrimSpace(text) == "" {
		return nil
	}
	if err := c.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"points": []map[string]any{
			{
				"id":     factID,
				"vector": vector,
				"payload": map[string]any{
					"namespace": namespace,
					"actor_id":  actorID,
					"fact_id":   factID,
					"text":      text,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal fact upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create fact upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fact upsert request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return statusError("fact upsert", resp)
	}
	return nil
}

func (c *Index) SearchFacts(
	ctx context.Context,
	namespace, actorID string,
	queryVector []float32,
	limit int,
) ([]domain.MemoryHit, error) {
	if len(queryVector) == 0 || strings.TrimSpace(namespace) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 4
	}

	body, err := json.Marshal(map[string]any{
		"query":        queryVector,
		"limit":        limit,
		"with_payload": true,
		"filter":       buildFactFilter(namespace, actorID),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal fact query body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create fact query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fact query request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, statusError("fact query", resp)
	}

	points, err := decodeQueryPoints(resp.Body)
	if err != nil {
		return nil, err
	}
	out := make([]domain.MemoryHit, 0, len(points))
	for _, p := range points {
		out = append(out, domain.MemoryHit{
			Namespace: getStringPayload(p.Payload, "namespace"),
			ActorID:   getStringPayload(p.Payload, "actor_id"),
			Text:      getStringPayload(p.Payload, "text"),
			Score:     p.Score,
		})
	}
	return out, nil
}

func buildFactFilter(namespace, actorID string) map[string]any {
	must := []map[string]any{
		{
			"key": "namespace",
			"match": map[string]any{
				"value": namespace,
			},
		},
	}
	if strings.TrimSpace(actorID) != "" {
		must = append(must, map[string]any{
			"key": "actor_id",
			"match": map[string]any{
				"value": actorID,
			},
		})
	}
	return map[string]any{"must": must}
}

type queryPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func decodeQueryPoints(r io.Reader) ([]queryPoint, error) {
	var queryResp struct {
		Result struct {
			Points []queryPoint `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(r).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return queryResp.Result.Points, nil
}

func (c *Index) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal ensure collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ensure collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ensure collection request: %w", err)
	}
	defer resp.Body.Close()
	// 409 means another writer created it first.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return statusError("ensure collection", resp)
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
	}
	return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
