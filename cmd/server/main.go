// backend-go/cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andresuchdata/autodrp/backend-go/internal/api"
	"github.com/andresuchdata/autodrp/backend-go/internal/cache"
	"github.com/andresuchdata/autodrp/backend-go/internal/config"
	"github.com/andresuchdata/autodrp/backend-go/internal/domain"
	"github.com/andresuchdata/autodrp/backend-go/internal/drp"
	"github.com/andresuchdata/autodrp/backend-go/internal/pipeline"
	"github.com/andresuchdata/autodrp/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/autodrp/backend-go/internal/service"
	"github.com/andresuchdata/autodrp/backend-go/internal/storage"
	"github.com/andresuchdata/autodrp/backend-go/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Configure(cfg.Server.LogLevel, cfg.Server.LogJSON)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Initialize cache
	planCache, err := cache.NewPlanCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Plan cache unavailable, continuing without it")
		planCache = cache.NewNoopPlanCache()
	}

	// Initialize services
	ledger := postgres.NewLedgerRepository(db)
	planner := service.NewPlanner(ledger, drp.NewEngine(cfg.DRP.PriorityBranches), planCache, service.PlannerConfig{
		Policy:       domain.Policy{LeadTimeDays: cfg.DRP.LeadTimeDays, SafetyDays: cfg.DRP.SafetyDays},
		WindowDays:   cfg.DRP.WindowDays,
		SourceBranch: cfg.DRP.SourceBranch,
		Concurrency:  cfg.DRP.BatchConcurrency,
	})

	var uploader storage.ObjectStorage
	if cfg.Storage.Enabled {
		client, err := storage.NewS3Client(storage.S3ConfigFrom(cfg.Storage))
		if err != nil {
			logger.Log.Warn().Err(err).Msg("Object storage unavailable, reports stay local")
		} else {
			uploader = client
		}
	}

	jobCfg := pipeline.DefaultJobConfig(pipeline.MinimumStockJobName)
	if cfg.Job.Workers > 0 {
		jobCfg.WorkerCount = cfg.Job.Workers
	}
	if cfg.Job.OutputDir != "" {
		jobCfg.OutputDir = cfg.Job.OutputDir
	}
	jobCfg.Branches = cfg.Job.Branches
	worker := pipeline.NewWorker(
		jobCfg,
		ledger,
		ledger,
		planner,
		postgres.NewSuggestionRepository(db),
		pipeline.NewRepository(db.DB.DB),
		uploader,
	)

	// Initialize HTTP server
	router := api.NewRouter(&api.Services{Planner: planner, Jobs: worker}, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// let running jobs record their final state
	worker.Wait()

	logger.Log.Info().Msg("Server exiting")
}
