package repository

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"closet-cast/pkg/database"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

type testDeps struct {
	db        *database.DB
	logger    *logging.StructuredLogger
	collector *metrics.Collector
}

func setupTestDB(t *testing.T) testDeps {
	t.Helper()

	logger := logging.NewStructuredLogger("repository-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("repository_test", prometheus.NewRegistry())

	db, err := database.Open(&database.Config{Driver: database.DriverSQLite, Path: ":memory:"}, logger, collector)
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	script, err := os.ReadFile("../../migrations/sqlite/001_create_schema.up.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	if err := db.Migrate(context.Background(), string(script)); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	return testDeps{db: db, logger: logger, collector: collector}
}

func floatPtr(v float64) *float64 { return &v }
