package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"closet-cast/internal/models"
	"closet-cast/internal/repository"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// FeedClient fetches a raw forecast payload for one issuance and grid cell
type FeedClient interface {
	Fetch(ctx context.Context, baseDate, baseTime string, nx, ny int) (string, error)
}

// Grid is the forecast grid cell the service ingests
type Grid struct {
	NX int
	NY int
}

// publishedHours are the base hours at which the short-term forecast is issued, latest first
var publishedHours = []int{23, 20, 17, 14, 11, 8, 5, 2}

// IngestionService runs forecast ingestion passes. Passes never overlap.
type IngestionService struct {
	feed     FeedClient
	repo     repository.ForecastRepository
	grid     Grid
	location *time.Location
	now      func() time.Time
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector

	mu sync.Mutex
}

// IngestionResult contains ingestion statistics for one pass
type IngestionResult struct {
	BaseDate      string        `json:"baseDate"`
	BaseTime      string        `json:"baseTime"`
	DaysParsed    int           `json:"daysParsed"`
	DaysUpserted  int           `json:"daysUpserted"`
	HourlySamples int           `json:"hourlySamples"`
	Malformed     bool          `json:"malformed"`
	Duration      time.Duration `json:"duration"`
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(
	feed FeedClient,
	repo repository.ForecastRepository,
	grid Grid,
	location *time.Location,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *IngestionService {
	if location == nil {
		location = time.UTC
	}
	return &IngestionService{
		feed:     feed,
		repo:     repo,
		grid:     grid,
		location: location,
		now:      time.Now,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// BaseTimeFor returns the latest forecast issuance at least 30 minutes before now,
// as yyyyMMdd and HHmm in now's location.
func BaseTimeFor(now time.Time) (string, string) {
	t := now.Add(-30 * time.Minute)
	for _, h := range publishedHours {
		if t.Hour() >= h {
			return t.Format(models.DateLayout), fmt.Sprintf("%02d00", h)
		}
	}
	// Before the first issuance of the day: use yesterday's last one.
	return t.AddDate(0, 0, -1).Format(models.DateLayout), "2300"
}

// RunLatest runs a pass for the most recent issuance
func (s *IngestionService) RunLatest(ctx context.Context) (*IngestionResult, error) {
	baseDate, baseTime := BaseTimeFor(s.now().In(s.location))
	return s.RunPass(ctx, baseDate, baseTime)
}

// RunPass fetches, parses, derives and merges one forecast issuance.
// A malformed payload is logged and yields an empty result with a nil error.
// Dates processed before a storage failure stay updated.
func (s *IngestionService) RunPass(ctx context.Context, baseDate, baseTime string) (*IngestionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	startTime := time.Now()
	result := &IngestionResult{BaseDate: baseDate, BaseTime: baseTime}

	s.logger.Info(ctx, "[INGEST_START] Starting forecast ingestion", logging.Fields{
		"base_date": baseDate,
		"base_time": baseTime,
		"nx":        s.grid.NX,
		"ny":        s.grid.NY,
		"stage":     "FETCH",
	})

	raw, err := s.feed.Fetch(ctx, baseDate, baseTime, s.grid.NX, s.grid.NY)
	if err != nil {
		s.metrics.RecordIngestionPass("failed")
		s.metrics.RecordIngestionError("feed_unavailable")
		return nil, fmt.Errorf("failed to fetch forecast: %w", err)
	}

	parsed, err := ParseForecast(raw)
	if err != nil {
		var malformed *MalformedFeedError
		if !errors.As(err, &malformed) {
			s.metrics.RecordIngestionPass("failed")
			return nil, err
		}
		s.logger.Error(ctx, "[INGEST_MALFORMED] Forecast payload could not be parsed, nothing ingested", logging.Fields{
			"base_date":   baseDate,
			"base_time":   baseTime,
			"payload_len": len(raw),
			"stage":       "PARSE",
		}, err)
		s.metrics.RecordIngestionError("malformed_feed")
		s.metrics.RecordIngestionPass("empty")
		result.Malformed = true
		result.Duration = time.Since(startTime)
		return result, nil
	}

	if len(parsed.Days) == 0 {
		s.logger.Warn(ctx, "[INGEST_EMPTY] Forecast payload contained no items", logging.Fields{
			"base_date":   baseDate,
			"base_time":   baseTime,
			"result_code": parsed.ResultCode,
			"result_msg":  parsed.ResultMsg,
			"stage":       "PARSE",
		})
	}

	ApplyApparentTemperatures(parsed)

	result.DaysParsed = len(parsed.Days)
	result.HourlySamples = parsed.HourlyCount()
	s.metrics.IngestionHourlySamples.Add(float64(result.HourlySamples))

	for _, day := range parsed.Days {
		if err := s.mergeDay(ctx, day); err != nil {
			s.metrics.RecordIngestionPass("failed")
			s.metrics.RecordIngestionError("storage_error")
			s.logger.Error(ctx, "[INGEST_MERGE_ERROR] Failed to merge forecast day", logging.Fields{
				"date":          day.Date,
				"days_upserted": result.DaysUpserted,
				"stage":         "MERGE",
			}, err)
			return result, fmt.Errorf("failed to merge forecast for %s: %w", day.Date, err)
		}
		result.DaysUpserted++
		s.metrics.IngestionDaysUpserted.Inc()
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())
	if result.DaysUpserted == 0 {
		s.metrics.RecordIngestionPass("empty")
	} else {
		s.metrics.RecordIngestionPass("success")
	}

	s.logger.Info(ctx, "[INGEST_COMPLETE] Forecast ingestion completed", logging.Fields{
		"base_date":      baseDate,
		"base_time":      baseTime,
		"days_parsed":    result.DaysParsed,
		"days_upserted":  result.DaysUpserted,
		"hourly_samples": result.HourlySamples,
		"duration_ms":    result.Duration.Milliseconds(),
		"stage":          "COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) mergeDay(ctx context.Context, day *models.DailyForecast) error {
	existing, err := s.repo.FindByDate(ctx, day.Date)
	if err != nil {
		var nf *repository.NotFoundError
		if !errors.As(err, &nf) {
			return err
		}
		existing = nil
	}

	return s.repo.UpsertByDate(ctx, MergeForecast(existing, day))
}

// MergeForecast applies a parsed day onto the stored record for the same date.
// Max/min are overwritten only when the parsed day carries them. The returned
// record has Hourly set only when the parsed day has samples, which tells the
// repository to replace the stored sequence; otherwise stored samples are kept.
func MergeForecast(existing *models.ForecastRecord, day *models.DailyForecast) *models.ForecastRecord {
	record := &models.ForecastRecord{Date: day.Date}
	if existing != nil {
		record.ID = existing.ID
		record.MaxTemp = existing.MaxTemp
		record.MinTemp = existing.MinTemp
	}

	if day.MaxTemp != nil {
		v := *day.MaxTemp
		record.MaxTemp = &v
	}
	if day.MinTemp != nil {
		v := *day.MinTemp
		record.MinTemp = &v
	}

	if len(day.Hourly) > 0 {
		record.Hourly = models.CloneSamples(day.Hourly)
	}

	return record
}
