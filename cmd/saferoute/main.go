package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mr1hm/go-saferoute/internal/api"
	"github.com/mr1hm/go-saferoute/internal/config"
	"github.com/mr1hm/go-saferoute/internal/directions"
	internalgrpc "github.com/mr1hm/go-saferoute/internal/grpc"
	"github.com/mr1hm/go-saferoute/internal/history"
	"github.com/mr1hm/go-saferoute/internal/logging"
	"github.com/mr1hm/go-saferoute/internal/models"
	"github.com/mr1hm/go-saferoute/internal/orchestrator"
	"github.com/mr1hm/go-saferoute/internal/places"
	"github.com/mr1hm/go-saferoute/internal/prediction"
	"github.com/mr1hm/go-saferoute/internal/reasoning"
	"github.com/mr1hm/go-saferoute/internal/repository"
	"github.com/mr1hm/go-saferoute/internal/selector"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Fatal while loading config: %v", err)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("Server starting", "host", cfg.Server.Host, "port", cfg.Server.Port, "demo_mode", cfg.DemoMode())

	db, err := repository.NewSQLiteDB(cfg.DB.Path)
	if err != nil {
		logging.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	predictor := prediction.NewClient(cfg.Services.PredictionURL, cfg.Services.HTTPTimeout)
	directory := places.NewDirectory(cfg.Services.PlacesURL, cfg.Services.HTTPTimeout, cfg.Search.MaxFacilities)
	router := directions.NewFetcher(cfg.Services.DirectionsURL, cfg.Services.DirectionsAPIKey, cfg.Services.HTTPTimeout)

	// Without a key the selector stays in demo mode.
	var reasoner selector.Reasoner
	if !cfg.DemoMode() {
		reasoner = reasoning.NewClient(cfg.Services.ReasoningURL, cfg.Services.ReasoningAPIKey,
			reasoning.WithModel(cfg.Services.ReasoningModel),
			reasoning.WithTimeout(cfg.Services.ReasoningTimeout),
		)
	}
	sel := selector.NewSelector(reasoner)

	broadcaster := internalgrpc.NewBroadcaster()

	recorder := history.NewRecorder(db, cfg.Worker.Count, cfg.Worker.BufferSize)
	recorder.Start(ctx)

	sessions := orchestrator.NewManager(orchestrator.ManagerConfig{
		Options: orchestrator.Options{
			RadiusMeters: cfg.Search.RadiusMeters,
			Profile:      cfg.Search.Profile,
		},
		SessionTTL:    cfg.Sessions.TTL,
		SweepInterval: cfg.Sessions.SweepInterval,
		MaxSessions:   cfg.Sessions.MaxSessions,
		OnClose: func(id string) {
			broadcaster.CloseSession(id)
			if _, err := db.DeleteSession(context.Background(), id); err != nil {
				slog.Warn("failed to delete session history", "session_id", id, "error", err)
			}
		},
	}, orchestrator.Dependencies{
		Directory: directory,
		Selector:  sel,
		Router:    router,
		Assessor:  predictor,
		Publisher: broadcaster,
		OnSettled: func(s *models.Snapshot) { recorder.Record(s) },
	})
	sessions.Start(ctx)

	// Start gRPC server
	grpcServer := internalgrpc.NewServer(sessions, broadcaster)
	go func() {
		grpcAddr := fmt.Sprintf(":%d", cfg.GRPC.Port)
		if err := grpcServer.Start(grpcAddr); err != nil {
			logging.Fatalf("gRPC server error: %v", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // Set to false when using wildcard origins
	}))
	engine.Use(api.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))

	handler := api.NewHandler(api.Dependencies{
		Predictor:   predictor,
		Facilities:  directory,
		Recommender: sel,
		Router:      router,
		Sessions:    sessions,
		History:     db,
		Broadcaster: broadcaster,
	}, api.Options{
		RadiusMeters: cfg.Search.RadiusMeters,
		Profile:      cfg.Search.Profile,
	})
	handler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: engine,
	}

	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")

	cancel()
	sessions.Stop()
	broadcaster.Close()
	grpcServer.Stop()
	recorder.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
}
