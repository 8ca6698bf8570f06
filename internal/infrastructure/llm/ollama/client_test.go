package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerateTextReturnsUsageMetrics(t *testing.T) {
	var capturedPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&capturedPayload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"  the answer  ","prompt_eval_count":12,"eval_count":30,"total_duration":2500000000}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed")
	result, err := client.GenerateText(context.Background(), "question?")
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if result.Text != "the answer" {
		t.Fatalf("unexpected text %q", result.Text)
	}
	if result.Metrics.InputTokens != 12 || result.Metrics.OutputTokens != 30 || result.Metrics.TotalTokens != 42 {
		t.Fatalf("unexpected token counts: %#v", result.Metrics)
	}
	if result.Metrics.LatencyMs != 2500 {
		t.Fatalf("expected latency 2500ms, got %d", result.Metrics.LatencyMs)
	}
	if result.Metrics.ModelCalls != 1 {
		t.Fatalf("expected 1 model call, got %d", result.Metrics.ModelCalls)
	}
	if capturedPayload["model"] != "gen" {
		t.Fatalf("unexpected model %v", capturedPayload["model"])
	}
	if _, hasFormat := capturedPayload["format"]; hasFormat {
		t.Fatalf("expected no format field for plain generation")
	}
}

func TestGenerateJSONRequestsJSONFormat(t *testing.T) {
	var capturedPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&capturedPayload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"{\"type\":\"final\",\"answer\":\"ok\"}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed")
	result, err := client.GenerateJSON(context.Background(), "plan the next step")
	if err != nil {
		t.Fatalf("GenerateJSON() error = %v", err)
	}
	if capturedPayload["format"] != "json" {
		t.Fatalf("expected json format, got %v", capturedPayload["format"])
	}
	if !strings.Contains(result.Text, `"final"`) {
		t.Fatalf("unexpected text %q", result.Text)
	}
}

func TestGenerateIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "gen", "embed")
	_, err := client.GenerateText(context.Background(), "question?")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Fatalf("expected response body in error, got %v", err)
	}
}

func TestEmbedQueryReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.25,0.5,0.75]]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	vector, err := embedder.EmbedQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 3 || vector[0] != 0.25 {
		t.Fatalf("unexpected vector %#v", vector)
	}
}

func TestEmbedQueryRejectsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[]}`))
	}))
	defer server.Close()

	embedder := NewEmbedder(New(server.URL, "gen", "embed"))
	if _, err := embedder.EmbedQuery(context.Background(), "hello"); err == nil {
		t.Fatalf("expected error for empty embeddings")
	}
}
