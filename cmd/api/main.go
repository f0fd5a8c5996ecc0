package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"monsweeper-backend/internal/config"
	"monsweeper-backend/internal/handlers"
	"monsweeper-backend/internal/logger"
	"monsweeper-backend/internal/services"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}

	logger.Init(&logger.Options{
		Level:      logger.ParseLevel(cfg.LogLevel),
		TimeFormat: time.RFC3339,
		NoColor:    cfg.IsProduction(),
	})
	if envErr != nil {
		logger.Info("No .env file found, using environment variables")
	}

	policy, err := cfg.Policy()
	if err != nil {
		logger.Fatal("Invalid game policy", "error", err)
	}
	scheme, err := cfg.Scheme()
	if err != nil {
		logger.Fatal("Invalid seed scheme", "error", err)
	}

	store, err := services.OpenStore(cfg)
	if err != nil {
		logger.Fatal("Failed to open store", "backend", cfg.StoreBackend, "error", err)
	}
	defer store.Close()

	var publisher services.EventPublisher = services.NopPublisher{}
	if cfg.NATSURL != "" {
		nats, err := services.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", "url", cfg.NATSURL, "error", err)
		}
		publisher = nats
	}
	defer publisher.Close()

	jwtService := services.NewJWTService(cfg)

	gameEngine := services.NewGameEngine(store, services.EngineOptions{
		Policy:    policy,
		Scheme:    scheme,
		Publisher: publisher,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	restored, err := gameEngine.RestoreGames(ctx)
	if err != nil {
		logger.Error("Failed to restore games", "error", err)
	}
	logger.Info("Games restored", "count", restored)

	wsHandler := handlers.NewWebSocketHandler(store)
	defer wsHandler.Close()
	gameEngine.SetBroadcaster(wsHandler)

	go func() {
		ticker := time.NewTicker(cfg.StaleGameAfter / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := gameEngine.CleanupStaleGames(ctx, cfg.StaleGameAfter); n > 0 {
					logger.Info("Cleaned up stale games", "count", n)
				}
			}
		}
	}()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Engine:     gameEngine,
		Store:      store,
		JWTService: jwtService,
		WebSocket:  wsHandler,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "store", cfg.StoreBackend, "scheme", scheme.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
}
