package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/giftforyoube/giftipie/docs"
	"github.com/giftforyoube/giftipie/internal/config"
	"github.com/giftforyoube/giftipie/internal/database"
	"github.com/giftforyoube/giftipie/internal/funding"
	"github.com/giftforyoube/giftipie/internal/mail"
	"github.com/giftforyoube/giftipie/internal/notification"
	"github.com/giftforyoube/giftipie/internal/scheduler"
	mw "github.com/giftforyoube/giftipie/pkg/middleware"
	"github.com/giftforyoube/giftipie/pkg/response"
)

// @title        Giftipie API
// @version      1.0
// @description  Notification delivery API for Giftipie
// @BasePath     /api
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	log.Println("Connected to database successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Process-wide shared delivery state, constructed once and injected
	registry := notification.NewRegistry()
	eventCache := notification.NewEventCache(cfg.ReplayCacheSize)
	mailer := mail.New(mail.Config{
		From:      cfg.SMTPFrom,
		Password:  cfg.SMTPPassword,
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		RateLimit: cfg.EmailRateLimit,
	})

	// Notification feature
	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo, registry, eventCache, mailer, notification.Options{
		StreamTimeout:   cfg.StreamTimeout,
		DispatchWorkers: cfg.DispatchWorkers,
		DispatchBuffer:  cfg.DispatchBuffer,
		ListingCacheTTL: cfg.ListingCacheTTL,
	})
	notificationService.Start(ctx)
	defer notificationService.Close()

	notificationHandler := notification.NewHandler(notificationService)

	// Funding expiry sweep
	fundingRepo := funding.NewRepository(db)
	sweeper := scheduler.New(fundingRepo, notificationService, cfg.FrontendBaseURL)
	go sweeper.Run(ctx)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"status":      "ok",
			"connections": registry.Len(),
			"metrics":     notificationService.Metrics(),
		})
	})
	r.Get("/swagger/*", httpSwagger.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.JWTAuth(cfg.JWTSecret))
		r.Mount("/notification", notificationHandler.Routes())
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}
