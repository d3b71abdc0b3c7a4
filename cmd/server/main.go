package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyloop-backend/internal/config"
	"studyloop-backend/internal/database"
	"studyloop-backend/internal/handlers"
	"studyloop-backend/internal/middleware"
	"studyloop-backend/internal/repository"
	"studyloop-backend/internal/router"
	"studyloop-backend/internal/services"
	"studyloop-backend/internal/websocket"
	"studyloop-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting StudyLoop Backend...")

	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	if err := database.RunMigrations(pool); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// Repositories
	userRepo := repository.NewUserRepo(pool)
	contentRepo := repository.NewContentRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	flashcardRepo := repository.NewFlashcardRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// Gemini client
	geminiService, err := services.NewGeminiService(
		cfg.GeminiAPIKey,
		cfg.GeminiConcurrentReqs,
		contentRepo,
		quizRepo,
		flashcardRepo,
		jobRepo,
		redisClients.Queue,
	)
	if err != nil {
		log.Fatalf("✗ Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	log.Println("✓ Gemini Flash client initialized")

	// Services
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	emailService := services.NewEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.FrontendURL)
	youtubeService := services.NewYouTubeService()
	extractorService := services.NewExtractorService()
	scraperService := services.NewScraperService()
	authService := services.NewAuthService(userRepo, redisClients.Queue, jwtAuth, emailService)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	contentHandler := handlers.NewContentHandler(contentRepo, jobRepo, redisClients.Queue, cfg.StoragePath)
	flashcardHandler := handlers.NewFlashcardHandler(flashcardRepo, contentRepo, jobRepo, redisClients.Queue)
	quizHandler := handlers.NewQuizHandler(quizRepo, contentRepo, jobRepo, redisClients.Queue)
	chatHandler := handlers.NewChatHandler(contentRepo, geminiService)
	statsHandler := handlers.NewStatsHandler(contentRepo)
	jobHandler := handlers.NewJobHandler(jobRepo)

	// Job worker pool
	workerPool := worker.NewPool(
		redisClients.Queue,
		geminiService,
		youtubeService,
		extractorService,
		scraperService,
		jobRepo,
		contentRepo,
		quizRepo,
		flashcardRepo,
		cfg.StoragePath,
		cfg.WorkerCount,
	)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	reminderScheduler := services.NewReviewReminderScheduler(flashcardRepo, emailService, redisClients.Queue)
	reminderScheduler.Start()
	log.Println("✓ Review reminder scheduler started")

	// WebSocket hub
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// HTTP server
	r := router.New(
		jwtAuth,
		authHandler,
		contentHandler,
		flashcardHandler,
		quizHandler,
		chatHandler,
		statsHandler,
		jobHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		reminderScheduler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ StudyLoop Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
