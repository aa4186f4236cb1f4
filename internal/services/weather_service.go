package services

import (
	"context"
	"fmt"
	"time"

	"closet-cast/internal/models"
	"closet-cast/internal/repository"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// WindowDays is the number of consecutive days served by ReadWindow
const WindowDays = 3

// WeatherService serves stored forecasts
type WeatherService struct {
	repo     repository.ForecastRepository
	location *time.Location
	now      func() time.Time
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewWeatherService creates a new weather service
func NewWeatherService(repo repository.ForecastRepository, location *time.Location, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherService {
	if location == nil {
		location = time.UTC
	}
	return &WeatherService{
		repo:     repo,
		location: location,
		now:      time.Now,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Today returns the current date in the service's location, as yyyyMMdd
func (s *WeatherService) Today() string {
	return s.now().In(s.location).Format(models.DateLayout)
}

// ReadDay returns the stored forecast for date with its hourly samples
func (s *WeatherService) ReadDay(ctx context.Context, date string) (*models.DailyForecast, error) {
	if _, err := models.ParseDate(date); err != nil {
		return nil, err
	}

	record, err := s.repo.FindByDate(ctx, date)
	if err != nil {
		return nil, err
	}

	hourly, err := s.repo.FindHourlyForRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to load hourly samples for %s: %w", date, err)
	}

	return record.ToDailyForecast(hourly), nil
}

// ReadWindow returns the forecasts for anchor and the two following days, in order.
// If any of the days is missing the whole read fails with a *repository.NotFoundError.
func (s *WeatherService) ReadWindow(ctx context.Context, anchor string) ([]*models.DailyForecast, error) {
	if _, err := models.ParseDate(anchor); err != nil {
		return nil, err
	}

	window := make([]*models.DailyForecast, 0, WindowDays)
	for i := 0; i < WindowDays; i++ {
		date, err := models.AddDays(anchor, i)
		if err != nil {
			return nil, err
		}

		day, err := s.ReadDay(ctx, date)
		if err != nil {
			s.logger.Warn(ctx, "[WINDOW_READ] Forecast window incomplete", logging.Fields{
				"anchor":  anchor,
				"missing": date,
				"error":   err.Error(),
			})
			return nil, err
		}
		window = append(window, day)
	}

	return window, nil
}
