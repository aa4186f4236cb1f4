package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"closet-cast/internal/auth"
	"closet-cast/internal/config"
	"closet-cast/internal/feed"
	"closet-cast/internal/handlers"
	"closet-cast/internal/llm"
	"closet-cast/internal/repository"
	"closet-cast/internal/scheduler"
	"closet-cast/internal/services"
	"closet-cast/pkg/database"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("closet-cast-api", version, logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting closet-cast API server", logging.Fields{
		"version":     version,
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_driver":   cfg.Database.Driver,
		"nx":          cfg.Feed.NX,
		"ny":          cfg.Feed.NY,
	})

	location, err := cfg.Location()
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Invalid timezone", logging.Fields{}, err)
	}

	// Initialize metrics collector
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsCollector := metrics.NewCollector("closet_cast", registry)

	// Initialize database
	db, err := database.Open(cfg.Database.Connection(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repositories
	forecastRepo := repository.NewForecastRepository(db, logger, metricsCollector)
	memberRepo := repository.NewMemberRepository(db, logger, metricsCollector)

	// Initialize external clients
	feedClient := feed.NewClient(feed.Config{
		BaseURL:   cfg.Feed.BaseURL,
		AuthKey:   cfg.Feed.AuthKey,
		NumOfRows: cfg.Feed.NumOfRows,
		Timeout:   cfg.Feed.Timeout.Duration,
	}, logger, metricsCollector)

	var completer llm.Completer = llm.Unconfigured{}
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewOpenAIClient(llm.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout.Duration,
		})
		if err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to create completion client", logging.Fields{}, err)
		}
		completer = client
	} else {
		logger.Warn(ctx, "[STARTUP] OPENAI_API_KEY not set, recommendations will fail", logging.Fields{})
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL.Duration)

	// Initialize services
	grid := services.Grid{NX: cfg.Feed.NX, NY: cfg.Feed.NY}
	ingestionService := services.NewIngestionService(feedClient, forecastRepo, grid, location, logger, metricsCollector)
	weatherService := services.NewWeatherService(forecastRepo, location, logger, metricsCollector)
	memberService := services.NewMemberService(memberRepo, tokens, logger, metricsCollector)
	recommendService := services.NewRecommendService(memberRepo, weatherService, completer, logger, metricsCollector)

	// Start the ingestion schedule
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New(ingestionService, cfg.Scheduler.Cron, location, logger)
		if err := sched.Start(); err != nil {
			logger.Fatal(ctx, "[STARTUP_ERROR] Failed to start scheduler", logging.Fields{}, err)
		}
	}

	// Setup router
	router := handlers.NewRouter(handlers.RouterConfig{
		Weather:   handlers.NewWeatherHandler(ingestionService, weatherService, db, logger, metricsCollector),
		Members:   handlers.NewMemberHandler(memberService, logger, metricsCollector),
		Recommend: handlers.NewRecommendHandler(recommendService, logger, metricsCollector),
		Docs:      handlers.NewDocsHandler(logger, metricsCollector),
		Auth:      handlers.NewAuthenticator(tokens, logger, metricsCollector),
		Metrics:   metricsCollector,
		Gatherer:  registry,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
		IdleTimeout:  cfg.Server.IdleTimeout.Duration,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	if sched != nil {
		sched.Stop()
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
