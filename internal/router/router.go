package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studyloop-backend/internal/handlers"
	"studyloop-backend/internal/middleware"
	"studyloop-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	contentHandler *handlers.ContentHandler,
	flashcardHandler *handlers.FlashcardHandler,
	quizHandler *handlers.QuizHandler,
	chatHandler *handlers.ChatHandler,
	statsHandler *handlers.StatsHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// Auth (public)
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Get("/verify-email", authHandler.VerifyEmail)
			r.Post("/resend-verification", authHandler.ResendVerification)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Content
		r.Route("/content", func(r chi.Router) {
			r.Get("/supported-formats", contentHandler.SupportedFormats) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/upload", contentHandler.Upload)
				r.Post("/video", contentHandler.AddVideo)
				r.Post("/article", contentHandler.AddArticle)
				r.Post("/note", contentHandler.CreateNote)
				r.Get("/", contentHandler.ListContent)
				r.Get("/{id}", contentHandler.GetContent)
				r.Delete("/{id}", contentHandler.DeleteContent)
				r.Post("/{id}/summarize", contentHandler.Summarize)
				r.Post("/{id}/chat", chatHandler.AskQuestion)

				// Per-content study material
				r.Get("/{id}/flashcards", flashcardHandler.ListByContent)
				r.Get("/{id}/flashcards/due", flashcardHandler.ListDue)
				r.Get("/{id}/flashcards/stats", flashcardHandler.Stats)
				r.Get("/{id}/quizzes", quizHandler.ListByContent)
				r.Get("/{id}/quizzes/stats", quizHandler.StatsByContent)
			})
		})

		// Flashcards
		r.Route("/flashcards", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/generate", flashcardHandler.Generate)
			r.Post("/{id}/review", flashcardHandler.Review)
		})

		// Quizzes
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/generate", quizHandler.Generate)
			r.Get("/{id}", quizHandler.Get)
			r.Delete("/{id}", quizHandler.Delete)
			r.Post("/{id}/attempts", quizHandler.SubmitAttempt)
			r.Get("/{id}/attempts", quizHandler.ListAttempts)
		})

		// Stats
		r.Route("/stats", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/overview", statsHandler.Overview)
		})

		// Jobs
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.GetJob)
		})

		// WebSocket
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
