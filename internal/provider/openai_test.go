package provider

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatSendsRequestAndParsesResponse(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.Write([]byte(`{
			"choices":[{"message":{"role":"assistant","content":"We charge 0.5% yearly."},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":420,"completion_tokens":12,"total_tokens":432}
		}`))
	}))
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider("sk-test", srv.URL, "gpt-3.5-turbo")
	resp, err := p.Chat(t.Context(), &ChatRequest{
		Messages: []Message{
			{Role: "system", Content: "You answer from the knowledge base."},
			{Role: "user", Content: "what are the fees?"},
		},
		MaxTokens:   512,
		Temperature: 0.2,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gpt-3.5-turbo" {
		t.Errorf("model = %v", gotBody["model"])
	}
	if gotBody["max_tokens"] != float64(512) || gotBody["temperature"] != 0.2 {
		t.Errorf("sampling params = %v / %v", gotBody["max_tokens"], gotBody["temperature"])
	}
	msgs, ok := gotBody["messages"].([]any)
	if !ok || len(msgs) != 2 {
		t.Fatalf("messages = %v", gotBody["messages"])
	}

	if resp.Content != "We charge 0.5% yearly." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 432 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
}

func TestChatSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider("sk-test", srv.URL, "")
	if _, err := p.Chat(t.Context(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("expected error for 429")
	}
}

func TestChatRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	t.Cleanup(srv.Close)

	p := NewOpenAIProvider("sk-test", srv.URL, "")
	if _, err := p.Chat(t.Context(), &ChatRequest{Messages: []Message{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestDefaultModelFallback(t *testing.T) {
	p := NewOpenAIProvider("sk-test", "", "")
	if p.DefaultModel() != "gpt-3.5-turbo" {
		t.Errorf("DefaultModel = %q", p.DefaultModel())
	}
}
