package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"vineta-backend/internal/middleware"
	"vineta-backend/internal/models"
	"vineta-backend/internal/services"
)

const testSecret = "test-secret"

func newChatTestHandler(t *testing.T, ledger services.CreditLedger, openai *services.OpenAIService) (*ChatHandler, string) {
	t.Helper()
	auth := middleware.NewJWTAuth(testSecret)
	token, err := auth.GenerateAccessToken(uuid.New(), "lector@example.com", "lector")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return NewChatHandler(auth, ledger, openai), token
}

func newOpenAIStub(t *testing.T, reply string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func doChat(handler *ChatHandler, method, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, "/api/v1/chatbot", nil)
	} else {
		req = httptest.NewRequest(method, "/api/v1/chatbot", bytes.NewReader([]byte(body)))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.HandleChat(rr, req)
	return rr
}

func decodeChat(t *testing.T, rr *httptest.ResponseRecorder) models.ChatResponse {
	t.Helper()
	var resp models.ChatResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode chat response: %v", err)
	}
	return resp
}

func TestChatHandler_Preflight(t *testing.T) {
	ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
	handler, _ := newChatTestHandler(t, ledger, services.NewOpenAIService("", "", ""))

	rr := doChat(handler, http.MethodOptions, "", "")

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("Expected empty preflight body, got %q", rr.Body.String())
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected Access-Control-Allow-Origin *, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, DELETE, OPTIONS" {
		t.Errorf("Unexpected allowed methods %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization, X-Client-Info, Apikey" {
		t.Errorf("Unexpected allowed headers %q", got)
	}
}

func TestChatHandler_MissingAuthHeader(t *testing.T) {
	ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
	handler, _ := newChatTestHandler(t, ledger, services.NewOpenAIService("", "", ""))

	rr := doChat(handler, http.MethodPost, "", `{"message":"hola"}`)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
	if resp := decodeChat(t, rr); resp.Error != "No authorization header" {
		t.Errorf("Expected 'No authorization header' error, got %q", resp.Error)
	}
}

func TestChatHandler_InvalidToken(t *testing.T) {
	ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
	handler, _ := newChatTestHandler(t, ledger, services.NewOpenAIService("", "", ""))

	rr := doChat(handler, http.MethodPost, "not-a-valid-jwt", `{"message":"hola"}`)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
	if resp := decodeChat(t, rr); resp.Error != "Unauthorized" {
		t.Errorf("Expected 'Unauthorized' error, got %q", resp.Error)
	}
}

func TestChatHandler_MessageRequired(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":""}`},
		{"whitespace message", `{"message":"   "}`},
		{"missing field", `{}`},
		{"invalid json", `{not json`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
			handler, token := newChatTestHandler(t, ledger, services.NewOpenAIService("", "", ""))

			rr := doChat(handler, http.MethodPost, token, tc.body)

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
			if resp := decodeChat(t, rr); resp.Error != "Message is required" {
				t.Errorf("Expected 'Message is required' error, got %q", resp.Error)
			}
		})
	}
}

func TestChatHandler_DegradedMode(t *testing.T) {
	server, calls := newOpenAIStub(t, "nunca")
	ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
	// Empty API key: the stub must never be reached
	handler, token := newChatTestHandler(t, ledger, services.NewOpenAIService("", server.URL, "gpt-3.5-turbo"))

	rr := doChat(handler, http.MethodPost, token, `{"message":"¿Qué manga me recomiendas?"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	resp := decodeChat(t, rr)
	if resp.Response != chatDegradedResponse {
		t.Errorf("Expected the fixed degraded-mode response, got %q", resp.Response)
	}
	if resp.Credits == nil || *resp.Credits != 9 {
		t.Errorf("Expected 9 credits after consumption, got %v", resp.Credits)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("Expected gateway to never be invoked in degraded mode, got %d calls", n)
	}
}

func TestChatHandler_Success(t *testing.T) {
	server, calls := newOpenAIStub(t, "¡Hay varios lanzamientos nuevos este mes!")
	ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
	handler, token := newChatTestHandler(t, ledger, services.NewOpenAIService("sk-test", server.URL, "gpt-3.5-turbo"))

	rr := doChat(handler, http.MethodPost, token, `{"message":"¿Qué hay de nuevo en el mundo del cómic?"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeChat(t, rr)
	if resp.Response == "" {
		t.Error("Expected non-empty response")
	}
	if resp.Credits == nil || *resp.Credits != 9 {
		t.Errorf("Expected 9 credits remaining, got %v", resp.Credits)
	}
	if n := atomic.LoadInt32(calls); n != 1 {
		t.Errorf("Expected exactly one gateway call, got %d", n)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected CORS headers on success, got %q", got)
	}
}

func TestChatHandler_GatewayFailure_CreditNotRefunded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	auth := middleware.NewJWTAuth(testSecret)
	userID := uuid.New()
	token, _ := auth.GenerateAccessToken(userID, "lector@example.com", "lector")
	ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
	handler := NewChatHandler(auth, ledger, services.NewOpenAIService("sk-test", server.URL, "gpt-3.5-turbo"))

	rr := doChat(handler, http.MethodPost, token, `{"message":"hola"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}
	resp := decodeChat(t, rr)
	if resp.Response == "" || resp.Error != "" {
		t.Errorf("Expected apology response body, got %+v", resp)
	}

	// The credit spent on the failed call stays spent
	result, err := ledger.Consume(context.Background(), userID)
	if err != nil {
		t.Fatalf("Consume failed: %v", err)
	}
	if result.Credits != 8 {
		t.Errorf("Expected 8 credits after failed call + consume, got %d", result.Credits)
	}
}

func TestChatHandler_CreditsExhausted(t *testing.T) {
	server, _ := newOpenAIStub(t, "claro")
	auth := middleware.NewJWTAuth(testSecret)
	userID := uuid.New()
	token, _ := auth.GenerateAccessToken(userID, "lector@example.com", "lector")
	ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
	handler := NewChatHandler(auth, ledger, services.NewOpenAIService("sk-test", server.URL, "gpt-3.5-turbo"))

	for i := 1; i <= 10; i++ {
		rr := doChat(handler, http.MethodPost, token, `{"message":"hola"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("Request %d: expected status 200, got %d", i, rr.Code)
		}
		resp := decodeChat(t, rr)
		if resp.Credits == nil || *resp.Credits != 10-i {
			t.Errorf("Request %d: expected %d credits, got %v", i, 10-i, resp.Credits)
		}
	}

	rr := doChat(handler, http.MethodPost, token, `{"message":"hola"}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected status 429, got %d", rr.Code)
	}
	resp := decodeChat(t, rr)
	if resp.Error == "" {
		t.Error("Expected ledger message in error field")
	}
	if resp.Credits == nil || *resp.Credits != 0 {
		t.Errorf("Expected 0 credits in rate-limited response, got %v", resp.Credits)
	}
}

func TestChatHandler_ConcurrentLastCredit(t *testing.T) {
	server, _ := newOpenAIStub(t, "claro")
	auth := middleware.NewJWTAuth(testSecret)
	userID := uuid.New()
	token, _ := auth.GenerateAccessToken(userID, "lector@example.com", "lector")
	ledger := services.NewMemoryCreditLedger(10, 24*time.Hour)
	handler := NewChatHandler(auth, ledger, services.NewOpenAIService("sk-test", server.URL, "gpt-3.5-turbo"))

	// Burn down to a single remaining credit
	for i := 0; i < 9; i++ {
		if rr := doChat(handler, http.MethodPost, token, `{"message":"hola"}`); rr.Code != http.StatusOK {
			t.Fatalf("Setup request %d: expected 200, got %d", i, rr.Code)
		}
	}

	var wg sync.WaitGroup
	codes := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = doChat(handler, http.MethodPost, token, `{"message":"hola"}`).Code
		}(i)
	}
	wg.Wait()

	ok, limited := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
		}
	}
	if ok != 1 || limited != 1 {
		t.Errorf("Expected exactly one 200 and one 429, got %v", codes)
	}
}

type failingLedger struct{}

func (failingLedger) Consume(context.Context, uuid.UUID) (services.ConsumeResult, error) {
	return services.ConsumeResult{}, errors.New("redis: connection refused")
}

func TestChatHandler_LedgerFailure(t *testing.T) {
	handler, token := newChatTestHandler(t, failingLedger{}, services.NewOpenAIService("", "", ""))

	rr := doChat(handler, http.MethodPost, token, `{"message":"hola"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}
	if resp := decodeChat(t, rr); resp.Error != "Error checking credits" {
		t.Errorf("Expected 'Error checking credits' error, got %q", resp.Error)
	}
}

type panickingLedger struct{}

func (panickingLedger) Consume(context.Context, uuid.UUID) (services.ConsumeResult, error) {
	panic("ledger went sideways")
}

func TestChatHandler_PanicRecovery(t *testing.T) {
	handler, token := newChatTestHandler(t, panickingLedger{}, services.NewOpenAIService("", "", ""))

	rr := doChat(handler, http.MethodPost, token, `{"message":"hola"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", rr.Code)
	}
	resp := decodeChat(t, rr)
	if resp.Response == "" {
		t.Error("Expected apology response after panic")
	}
	if resp.Error != "" {
		t.Errorf("Expected no error field on catch-all response, got %q", resp.Error)
	}
}
