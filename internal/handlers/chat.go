package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"vineta-backend/internal/middleware"
	"vineta-backend/internal/models"
	"vineta-backend/internal/services"
)

const chatSystemPrompt = `Eres un asistente virtual experto en cómics, manga y arte. Tu trabajo es ayudar a los usuarios con información relevante sobre estos temas.

Responde de manera amigable, concisa y útil. Si no tienes información específica, sugiere alternativas o recursos donde pueden encontrar más información.

Algunos temas que puedes abordar:
- Recomendaciones de cómics, manga o arte
- Información sobre lanzamientos recientes o próximos
- Historia y contexto de series populares
- Estilos artísticos y técnicas
- Comparaciones entre obras similares

Mantén tus respuestas en español y con un tono cercano y entusiasta.`

const chatDegradedResponse = "Gracias por tu pregunta. En este momento el servicio de IA no está configurado. Te recomendaría explorar nuestro foro donde la comunidad comparte excelentes recomendaciones sobre cómics, manga y arte. ¡También puedes publicar tu pregunta allí!"

const chatApologyResponse = "Lo siento, ocurrió un error al procesar tu mensaje. Por favor, intenta de nuevo más tarde."

// ChatHandler implements the chatbot endpoint. It deliberately does
// not sit behind the router's JWT middleware: the widget is embedded
// on a different origin, so every response (including errors) must
// carry permissive CORS headers and the flat JSON shapes the widget
// expects. Auth, credit consumption and the model call happen inline,
// in that order — a credit is always spent before the model is
// invoked, and is not refunded if the model call fails.
type ChatHandler struct {
	auth   *middleware.JWTAuth
	ledger services.CreditLedger
	openai *services.OpenAIService
}

func NewChatHandler(auth *middleware.JWTAuth, ledger services.CreditLedger, openai *services.OpenAIService) *ChatHandler {
	return &ChatHandler{
		auth:   auth,
		ledger: ledger,
		openai: openai,
	}
}

func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	// The widget must never see a raw protocol fault
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Panic in chatbot handler: %v", rec)
			writeChat(w, http.StatusInternalServerError, models.ChatResponse{
				Response: chatApologyResponse,
			})
		}
	}()

	setChatCORSHeaders(w)

	// Cross-origin preflight
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Authenticate
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeChat(w, http.StatusUnauthorized, models.ChatResponse{Error: "No authorization header"})
		return
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		writeChat(w, http.StatusUnauthorized, models.ChatResponse{Error: "Unauthorized"})
		return
	}

	userID, err := h.auth.VerifyToken(parts[1])
	if err != nil {
		writeChat(w, http.StatusUnauthorized, models.ChatResponse{Error: "Unauthorized"})
		return
	}

	// Validate input
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeChat(w, http.StatusBadRequest, models.ChatResponse{Error: "Message is required"})
		return
	}

	// Spend a credit before any model call. The ledger serializes
	// concurrent consumes per user; the handler holds no state.
	result, err := h.ledger.Consume(r.Context(), userID)
	if err != nil {
		log.Printf("Credit ledger error for user %s: %v", userID, err)
		writeChat(w, http.StatusInternalServerError, models.ChatResponse{Error: "Error checking credits"})
		return
	}
	if !result.Success {
		writeChat(w, http.StatusTooManyRequests, models.ChatResponse{
			Error:   result.Message,
			Credits: &result.Credits,
		})
		return
	}
	credits := result.Credits

	// Degraded mode: keep the forum usable without an API key
	if !h.openai.Configured() {
		writeChat(w, http.StatusOK, models.ChatResponse{
			Response: chatDegradedResponse,
			Credits:  &credits,
		})
		return
	}

	reply, err := h.openai.Complete(r.Context(), chatSystemPrompt, req.Message)
	if err != nil {
		// The credit stays spent
		log.Printf("Completion failed for user %s: %v", userID, err)
		writeChat(w, http.StatusInternalServerError, models.ChatResponse{
			Response: chatApologyResponse,
		})
		return
	}

	writeChat(w, http.StatusOK, models.ChatResponse{
		Response: reply,
		Credits:  &credits,
	})
}

func setChatCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-Info, Apikey")
}

func writeChat(w http.ResponseWriter, status int, resp models.ChatResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
