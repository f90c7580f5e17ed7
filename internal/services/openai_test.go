package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOpenAIService_Configured(t *testing.T) {
	if NewOpenAIService("", "https://api.openai.com/v1", "gpt-3.5-turbo").Configured() {
		t.Error("Expected empty API key to be unconfigured")
	}
	if !NewOpenAIService("sk-test", "https://api.openai.com/v1", "gpt-3.5-turbo").Configured() {
		t.Error("Expected non-empty API key to be configured")
	}
}

func TestOpenAIService_Complete(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Expected /chat/completions path, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Expected bearer API key, got %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&captured)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "El nuevo tomo sale en octubre."}},
			},
		})
	}))
	defer server.Close()

	svc := NewOpenAIService("sk-test", server.URL, "gpt-3.5-turbo")
	reply, err := svc.Complete(context.Background(), "Eres un asistente.", "¿Cuándo sale el tomo?")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply != "El nuevo tomo sale en octubre." {
		t.Errorf("Unexpected reply %q", reply)
	}

	if captured.Model != "gpt-3.5-turbo" {
		t.Errorf("Expected model gpt-3.5-turbo, got %q", captured.Model)
	}
	if captured.Temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", captured.Temperature)
	}
	if captured.MaxTokens != 500 {
		t.Errorf("Expected max_tokens 500, got %d", captured.MaxTokens)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Errorf("Expected system+user messages, got %+v", captured.Messages)
	}
}

func TestOpenAIService_Complete_EmptyChoices(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no choices", `{"choices":[]}`},
		{"blank content", `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			svc := NewOpenAIService("sk-test", server.URL, "gpt-3.5-turbo")
			reply, err := svc.Complete(context.Background(), "system", "user")
			if err != nil {
				t.Fatalf("Complete failed: %v", err)
			}
			if reply != FallbackCompletion {
				t.Errorf("Expected fallback completion, got %q", reply)
			}
		})
	}
}

func TestOpenAIService_Complete_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewOpenAIService("sk-test", server.URL, "gpt-3.5-turbo")
	if _, err := svc.Complete(context.Background(), "system", "user"); err == nil {
		t.Error("Expected error for non-200 upstream status")
	}
}
