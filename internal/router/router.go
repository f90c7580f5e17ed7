package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"vineta-backend/internal/handlers"
	"vineta-backend/internal/middleware"
	"vineta-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	postHandler *handlers.PostHandler,
	commentHandler *handlers.CommentHandler,
	uploadHandler *handlers.UploadHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	frontendURL string,
	storagePath string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Chatbot endpoint. Lives outside the CORS group: the handler
	// sets its own permissive headers and answers its own preflight.
	r.HandleFunc("/api/v1/chatbot", chatHandler.HandleChat)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CORS(frontendURL))

		r.Route("/api/v1", func(r chi.Router) {

			// ──── Auth Routes (public) ────
			r.Route("/auth", func(r chi.Router) {
				r.Use(authLimiter.Middleware)
				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)

				// Logout requires auth
				r.Group(func(r chi.Router) {
					r.Use(jwtAuth.Middleware)
					r.Post("/logout", authHandler.Logout)
				})
			})

			// ──── Post Routes ────
			r.Route("/posts", func(r chi.Router) {
				r.Get("/", postHandler.List)
				r.Get("/{id}", postHandler.Get)
				r.Get("/{id}/recommendations", postHandler.Recommendations)
				r.Get("/{id}/comments", commentHandler.List)

				r.Group(func(r chi.Router) {
					r.Use(jwtAuth.Middleware)
					r.Post("/", postHandler.Create)
					r.Post("/{id}/comments", commentHandler.Create)
				})
			})

			// ──── Upload Routes ────
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/uploads", uploadHandler.Upload)
			})

			// ──── User Routes ────
			r.Route("/users", func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Get("/me", userHandler.GetMe)
			})

			// ──── WebSocket ────
			r.Get("/ws", wsHub.HandleWebSocket)
		})
	})

	// Uploaded images
	fileServer := http.StripPrefix("/uploads/", http.FileServer(http.Dir(storagePath)))
	r.Get("/uploads/*", fileServer.ServeHTTP)

	return r
}
