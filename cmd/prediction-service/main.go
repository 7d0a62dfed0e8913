package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/medflow/medpredict-backend/internal/prediction/cache"
	"github.com/medflow/medpredict-backend/internal/prediction/consumers"
	"github.com/medflow/medpredict-backend/internal/prediction/engine"
	"github.com/medflow/medpredict-backend/internal/prediction/events"
	"github.com/medflow/medpredict-backend/internal/prediction/handler"
	"github.com/medflow/medpredict-backend/internal/prediction/repository"
	"github.com/medflow/medpredict-backend/internal/prediction/service"
	"github.com/medflow/medpredict-backend/pkg/config"
	"github.com/medflow/medpredict-backend/pkg/database"
	"github.com/medflow/medpredict-backend/pkg/httputil"
	"github.com/medflow/medpredict-backend/pkg/logger"
	"github.com/medflow/medpredict-backend/pkg/messaging"
	"github.com/medflow/medpredict-backend/pkg/monitoring"
	"golang.org/x/sync/errgroup"
)

const serviceName = "prediction-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithOptions(serviceName, cfg.Server.Environment, logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	log.Info().Str("source", cfg.Prediction.Source).Msg("starting Prediction Service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetricsCollector(serviceName)

	// Data source
	var (
		loader repository.Loader
		db     *database.DB
	)
	switch cfg.Prediction.Source {
	case config.SourceCSV:
		loader = repository.NewCSVLoader(cfg.Prediction.DataDir)
	default:
		db, err = database.New(&cfg.Database, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		loader = repository.NewPostgresLoader(db)
	}

	// Summary cache
	summaryCache, err := cache.NewSummaryCache(ctx, cfg.Cache)
	if err != nil {
		log.Warn().Err(err).Msg("summary cache unavailable, continuing without it")
		summaryCache = cache.NewNoopSummaryCache()
	}
	defer summaryCache.Close()

	// RabbitMQ is optional; without it no events are published or consumed
	var (
		rmq       *messaging.RabbitMQ
		publisher *events.PredictionEventPublisher
	)
	if cfg.RabbitMQ.URL != "" {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewPredictionEventPublisher(rmq, metrics, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
	} else {
		log.Info().Msg("rabbitmq disabled")
	}

	// Initialize service
	predictionService := service.NewPredictionService(loader, service.Options{
		Cache:       summaryCache,
		Events:      publisher,
		Metrics:     metrics,
		LoadTimeout: cfg.Prediction.LoadTimeout,
		EngineOptions: []engine.Option{
			engine.WithStatsWindow(cfg.Prediction.StatsWindowDays),
			engine.WithAnomalyThreshold(cfg.Prediction.AnomalyThreshold),
		},
	}, log.WithComponent("prediction-service"))

	// A failed initial load is not fatal: the service answers 503 until a
	// later reload succeeds.
	if status, err := predictionService.Reload(ctx); err != nil {
		log.Error().Err(err).Msg("initial load failed")
	} else {
		log.Info().
			Int("items", status.Items).
			Int("batches", status.Batches).
			Int64("duration_ms", status.DurationMS).
			Msg("initial snapshot loaded")
	}

	// Initialize handlers
	predictionHandler := handler.NewPredictionHandler(predictionService, metrics, log)
	predictionHandler.SetQueryDefaults(handler.QueryDefaults{
		ForecastDays:     cfg.Prediction.ForecastDays,
		AnomalyDays:      cfg.Prediction.AnomalyDays,
		AnomalyThreshold: cfg.Prediction.AnomalyThreshold,
		DetectAllDays:    cfg.Prediction.DetectAllDays,
		ListLimit:        cfg.Prediction.ListLimit,
	})
	if db != nil {
		predictionHandler.AddHealthCheck("database", db.Health)
	}
	if rmq != nil {
		predictionHandler.AddHealthCheck("rabbitmq", func(context.Context) map[string]string {
			return rmq.Health()
		})
	}

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(metrics.HTTPMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api/v1/prediction", predictionHandler.Routes)

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	scheduler := service.NewReloadScheduler(predictionService, cfg.Prediction.ReloadInterval, log)
	g.Go(func() error {
		scheduler.Start(gctx)
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	if rmq != nil {
		inventoryConsumer, err := consumers.NewInventoryEventConsumer(rmq, cfg.RabbitMQ, predictionService, metrics, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create inventory event consumer")
		}
		g.Go(func() error {
			return inventoryConsumer.Start(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down server")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("service stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
