package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/joho/godotenv"

	"zapwheel/internal/config"
	"zapwheel/internal/handlers"
	"zapwheel/internal/services"
	"zapwheel/internal/store"
	"zapwheel/internal/wheel"
	"zapwheel/pkg/speedapi"
)

func main() {
	defer logger.Init("zapwheel", true, false, io.Discard).Close()

	// .env is optional; real deployments inject the environment.
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// 1. Initialize the entity store and its collaborators.
	entityStore := store.New()
	gateway := speedapi.NewClient(cfg.Speed.APIURL, cfg.Speed.APIKey, cfg.Speed.Simulate)
	spinService := services.NewSpinService(entityStore, gateway, wheel.Policy{
		MinTurns: cfg.Wheel.MinTurns,
		MaxTurns: cfg.Wheel.MaxTurns,
		Duration: cfg.Wheel.SpinDuration,
	})

	// 2. Initialize the HTTP handler.
	httpHandler := handlers.NewHTTPHandler(entityStore, spinService, gateway, cfg.Payout.DefaultAmount)

	// 3. Set up the Gin router.
	r := gin.Default()
	r.Use(handlers.CORSMiddleware(cfg.Server.AllowedOrigins))
	httpHandler.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Infof("Server starting on http://localhost:%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to run server: %v", err)
		}
	}()

	// Wait for interrupt, then drain in-flight requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited")
}
