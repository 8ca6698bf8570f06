package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
)

func TestInvokeDecodesResponseAndMetrics(t *testing.T) {
	var capturedBody map[string]string
	var capturedSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedSession = r.Header.Get("X-Session-Id")
		if err := json.NewDecoder(r.Body).Decode(&capturedBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"response":"lore answer","metrics":{"input_tokens":10,"output_tokens":20,"total_tokens":30,"model_calls":1}}`))
	}))
	defer server.Close()

	client := NewClient(0).WithSession("session-1")
	result, err := client.Invoke(context.Background(), server.URL, "tell me the lore")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if result.Response != "lore answer" {
		t.Fatalf("unexpected response %q", result.Response)
	}
	if result.Metrics.TotalTokens != 30 || result.Metrics.ModelCalls != 1 {
		t.Fatalf("unexpected metrics %#v", result.Metrics)
	}
	if capturedBody["prompt"] != "tell me the lore" {
		t.Fatalf("unexpected prompt %q", capturedBody["prompt"])
	}
	if capturedSession != "session-1" {
		t.Fatalf("expected session header, got %q", capturedSession)
	}
}

func TestInvokeForwardsSessionFromContext(t *testing.T) {
	var capturedSession string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedSession = r.Header.Get("X-Session-Id")
		_, _ = w.Write([]byte(`{"response":"ok","metrics":{}}`))
	}))
	defer server.Close()

	ctx := domain.WithSessionID(context.Background(), "ctx-session")
	if _, err := NewClient(0).Invoke(ctx, server.URL, "hi"); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if capturedSession != "ctx-session" {
		t.Fatalf("expected session from context, got %q", capturedSession)
	}
}

func TestInvokeMapsErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"specialist exploded"}`))
	}))
	defer server.Close()

	_, err := NewClient(0).Invoke(context.Background(), server.URL, "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvocation) {
		t.Fatalf("expected ErrInvocation, got %v", err)
	}
}

func TestInvokeMapsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	_, err := NewClient(0).Invoke(context.Background(), server.URL, "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestInvokeMapsEmptyAnswer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"   ","metrics":{}}`))
	}))
	defer server.Close()

	_, err := NewClient(0).Invoke(context.Background(), server.URL, "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEmptyAnswer) {
		t.Fatalf("expected ErrEmptyAnswer, got %v", err)
	}
}

func TestInvokeMapsNetworkFailure(t *testing.T) {
	_, err := NewClient(0).Invoke(context.Background(), "http://127.0.0.1:1", "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvocation) {
		t.Fatalf("expected ErrInvocation, got %v", err)
	}
}
