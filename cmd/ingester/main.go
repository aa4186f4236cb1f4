package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"closet-cast/internal/config"
	"closet-cast/internal/feed"
	"closet-cast/internal/repository"
	"closet-cast/internal/services"
	"closet-cast/pkg/database"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

func main() {
	// Parse command-line flags
	baseDate := flag.String("base-date", "", "Issuance date (yyyyMMdd); latest issuance when empty")
	baseTime := flag.String("base-time", "", "Issuance time (HHmm); latest issuance when empty")
	payloadFile := flag.String("payload", "", "Parse a saved feed payload instead of fetching; nothing is stored")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("closet-cast-ingester", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	defer logger.Sync()

	ctx := context.Background()

	if *payloadFile != "" {
		if err := parseOffline(*payloadFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to parse payload: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if (*baseDate == "") != (*baseTime == "") {
		fmt.Fprintln(os.Stderr, "-base-date and -base-time must be given together")
		os.Exit(2)
	}

	location, err := cfg.Location()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Info(ctx, "[INGESTER_START] Starting forecast ingestion", logging.Fields{
		"base_date": *baseDate,
		"base_time": *baseTime,
		"nx":        cfg.Feed.NX,
		"ny":        cfg.Feed.NY,
	})

	metricsCollector := metrics.NewCollector("closet_cast_ingester", prometheus.NewRegistry())

	db, err := database.Open(cfg.Database.Connection(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	forecastRepo := repository.NewForecastRepository(db, logger, metricsCollector)
	feedClient := feed.NewClient(feed.Config{
		BaseURL:   cfg.Feed.BaseURL,
		AuthKey:   cfg.Feed.AuthKey,
		NumOfRows: cfg.Feed.NumOfRows,
		Timeout:   cfg.Feed.Timeout.Duration,
	}, logger, metricsCollector)

	ingestionService := services.NewIngestionService(
		feedClient,
		forecastRepo,
		services.Grid{NX: cfg.Feed.NX, NY: cfg.Feed.NY},
		location,
		logger,
		metricsCollector,
	)

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	var result *services.IngestionResult
	if *baseDate != "" {
		result, err = ingestionService.RunPass(runCtx, *baseDate, *baseTime)
	} else {
		result, err = ingestionService.RunLatest(runCtx)
	}
	if result != nil {
		printResult(result)
	}
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{}, err)
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed successfully", logging.Fields{
		"days_upserted":    result.DaysUpserted,
		"hourly_samples":   result.HourlySamples,
		"duration_seconds": result.Duration.Seconds(),
	})
}

func printResult(result *services.IngestionResult) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Issuance:       %s %s\n", result.BaseDate, result.BaseTime)
	fmt.Printf("Days Parsed:    %d\n", result.DaysParsed)
	fmt.Printf("Days Upserted:  %d\n", result.DaysUpserted)
	fmt.Printf("Hourly Samples: %d\n", result.HourlySamples)
	fmt.Printf("Malformed:      %t\n", result.Malformed)
	fmt.Printf("Duration:       %v\n", result.Duration)
}

// parseOffline parses and derives a saved payload and prints the days it contains
func parseOffline(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	parsed, err := services.ParseForecast(string(raw))
	if err != nil {
		return err
	}
	services.ApplyApparentTemperatures(parsed)

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("PAYLOAD %s (result %s %s)\n", path, parsed.ResultCode, parsed.ResultMsg)
	fmt.Println(strings.Repeat("=", 80))
	for _, day := range parsed.Days {
		fmt.Printf("%s  max %s  min %s  samples %d\n", day.Date, formatTemp(day.MaxTemp), formatTemp(day.MinTemp), len(day.Hourly))
		for _, s := range day.Hourly {
			fmt.Printf("  %s  %5.1f°C  feels %s\n", s.Time, s.Temperature, formatTemp(s.ApparentTemperature))
		}
	}
	fmt.Printf("\n%d days, %d hourly samples\n", len(parsed.Days), parsed.HourlyCount())
	return nil
}

func formatTemp(v *float64) string {
	if v == nil {
		return "  -  "
	}
	return fmt.Sprintf("%5.1f", *v)
}
