package services

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"closet-cast/internal/repository"
	"closet-cast/pkg/database"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

type testEnv struct {
	logger    *logging.StructuredLogger
	collector *metrics.Collector
	forecasts repository.ForecastRepository
	members   repository.MemberRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := logging.NewStructuredLogger("services-test", "test", logging.ErrorLevel)
	logger.SetOutput(io.Discard)
	collector := metrics.NewCollector("services_test", prometheus.NewRegistry())

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

	return &testEnv{
		logger:    logger,
		collector: collector,
		forecasts: repository.NewForecastRepository(db, logger, collector),
		members:   repository.NewMemberRepository(db, logger, collector),
	}
}

// stubFeed returns queued payloads in order, or err when set
type stubFeed struct {
	payloads []string
	err      error
	calls    []string
}

func (f *stubFeed) Fetch(ctx context.Context, baseDate, baseTime string, nx, ny int) (string, error) {
	f.calls = append(f.calls, baseDate+"/"+baseTime)
	if f.err != nil {
		return "", f.err
	}
	p := f.payloads[0]
	f.payloads = f.payloads[1:]
	return p, nil
}

func floatPtr(v float64) *float64 { return &v }
