package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"closet-cast/internal/models"
	"closet-cast/pkg/database"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// ForecastRepository provides data access for daily forecasts
type ForecastRepository interface {
	// UpsertByDate inserts or updates the record keyed by its date.
	// Stored hourly samples are replaced only when record.Hourly is non-empty.
	UpsertByDate(ctx context.Context, record *models.ForecastRecord) error
	FindByDate(ctx context.Context, date string) (*models.ForecastRecord, error)
	FindHourlyForRecord(ctx context.Context, record *models.ForecastRecord) ([]models.HourlySample, error)

	HealthCheck(ctx context.Context) error
}

// forecastRepository implements ForecastRepository
type forecastRepository struct {
	db      *database.DB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewForecastRepository creates a new forecast repository
func NewForecastRepository(db *database.DB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) ForecastRepository {
	return &forecastRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// UpsertByDate writes the record row and, when present, its hourly samples in one transaction
func (r *forecastRepository) UpsertByDate(ctx context.Context, record *models.ForecastRecord) error {
	timer := time.Now()
	defer func() {
		r.metrics.DBQueryDuration.WithLabelValues("upsert_forecast").Observe(time.Since(timer).Seconds())
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	record.UpdatedAt = time.Now().UTC()

	upsert := tx.Rebind(`
		INSERT INTO forecasts (forecast_date, max_temp, min_temp, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (forecast_date) DO UPDATE SET
			max_temp = excluded.max_temp,
			min_temp = excluded.min_temp,
			updated_at = excluded.updated_at
		RETURNING id
	`)

	var id int64
	if err := tx.QueryRowxContext(ctx, upsert,
		record.Date,
		record.MaxTemp,
		record.MinTemp,
		record.UpdatedAt,
	).Scan(&id); err != nil {
		r.metrics.RecordDBError("upsert_forecast")
		return fmt.Errorf("failed to upsert forecast %s: %w", record.Date, err)
	}

	if len(record.Hourly) > 0 {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM hourly_forecasts WHERE forecast_id = ?`), id); err != nil {
			r.metrics.RecordDBError("delete_hourly")
			return fmt.Errorf("failed to clear hourly samples for %s: %w", record.Date, err)
		}

		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`
			INSERT INTO hourly_forecasts (forecast_id, position, fcst_time, temperature, apparent_temperature)
			VALUES (?, ?, ?, ?, ?)
		`))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, sample := range record.Hourly {
			if _, err := stmt.ExecContext(ctx, id, i, sample.Time, sample.Temperature, sample.ApparentTemperature); err != nil {
				r.metrics.RecordDBError("insert_hourly")
				return fmt.Errorf("failed to insert hourly sample %s/%s: %w", record.Date, sample.Time, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		r.metrics.RecordDBError("transaction_commit_error")
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	record.ID = id

	r.logger.Debug(ctx, "[REPO_UPSERT_FORECAST] Forecast upserted", logging.Fields{
		"date":           record.Date,
		"id":             id,
		"hourly_samples": len(record.Hourly),
		"duration_ms":    time.Since(timer).Milliseconds(),
	})

	return nil
}

// FindByDate retrieves the forecast record for a yyyyMMdd date
func (r *forecastRepository) FindByDate(ctx context.Context, date string) (*models.ForecastRecord, error) {
	query := `
		SELECT id, forecast_date, max_temp, min_temp, updated_at
		FROM forecasts
		WHERE forecast_date = ?
	`

	var record models.ForecastRecord
	err := r.db.GetContext(ctx, "get_forecast", &record, query, date)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{
			Resource: "forecast",
			ID:       date,
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get forecast: %w", err)
	}

	return &record, nil
}

// FindHourlyForRecord retrieves the hourly samples of a record in stored order
func (r *forecastRepository) FindHourlyForRecord(ctx context.Context, record *models.ForecastRecord) ([]models.HourlySample, error) {
	query := `
		SELECT fcst_time, temperature, apparent_temperature
		FROM hourly_forecasts
		WHERE forecast_id = ?
		ORDER BY position
	`

	samples := make([]models.HourlySample, 0)
	if err := r.db.SelectContext(ctx, "list_hourly", &samples, query, record.ID); err != nil {
		return nil, fmt.Errorf("failed to list hourly samples: %w", err)
	}

	return samples, nil
}

// HealthCheck verifies database connectivity
func (r *forecastRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
