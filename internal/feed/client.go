package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// DefaultBaseURL is the short-term forecast service of the KMA API hub
const DefaultBaseURL = "https://apihub.kma.go.kr/api/typ02/openApi/VilageFcstInfoService_2.0"

// ErrFeedUnavailable matches every failure to obtain a feed payload
var ErrFeedUnavailable = errors.New("forecast feed unavailable")

// FeedUnavailableError describes why the feed could not be fetched
type FeedUnavailableError struct {
	Reason     string // "request", "timeout", "status", "read_body", "circuit_open"
	StatusCode int
	Err        error
}

func (e *FeedUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("forecast feed unavailable (%s): status %d", e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("forecast feed unavailable (%s): %v", e.Reason, e.Err)
}

func (e *FeedUnavailableError) Unwrap() error {
	return e.Err
}

func (e *FeedUnavailableError) Is(target error) bool {
	return target == ErrFeedUnavailable
}

// IsTransient returns true; the next scheduled pass may succeed
func (e *FeedUnavailableError) IsTransient() bool {
	return true
}

// Config holds feed client settings
type Config struct {
	BaseURL   string
	AuthKey   string
	NumOfRows int
	Timeout   time.Duration
}

// Client fetches raw forecast payloads. Each Fetch makes exactly one request.
type Client struct {
	config  Config
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewClient creates a feed client
func NewClient(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.NumOfRows <= 0 {
		cfg.NumOfRows = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "kma-vilage-fcst",
		MaxRequests: 1,
		Interval:    10 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "[FEED_CIRCUIT] Circuit breaker state changed", logging.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
		},
	})

	return &Client{
		config:  cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		circuit: cb,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Fetch requests the forecast issued at baseDate/baseTime for grid cell (nx, ny)
// and returns the raw response body.
func (c *Client) Fetch(ctx context.Context, baseDate, baseTime string, nx, ny int) (string, error) {
	timer := c.metrics.NewTimer(c.metrics.FeedRequestDuration)

	values := url.Values{}
	values.Set("authKey", c.config.AuthKey)
	values.Set("pageNo", "1")
	values.Set("numOfRows", strconv.Itoa(c.config.NumOfRows))
	values.Set("dataType", "JSON")
	values.Set("base_date", baseDate)
	values.Set("base_time", baseTime)
	values.Set("nx", strconv.Itoa(nx))
	values.Set("ny", strconv.Itoa(ny))

	u := fmt.Sprintf("%s/getVilageFcst?%s", c.config.BaseURL, values.Encode())

	result, err := c.circuit.Execute(func() (interface{}, error) {
		return c.do(ctx, u)
	})
	duration := timer.ObserveDuration()

	if err != nil {
		var feedErr *FeedUnavailableError
		if !errors.As(err, &feedErr) {
			// gobreaker.ErrOpenState and ErrTooManyRequests come back unwrapped
			feedErr = &FeedUnavailableError{Reason: "circuit_open", Err: err}
		}
		c.metrics.RecordFeedError(feedErr.Reason)
		c.logger.Error(ctx, "[FEED_FETCH_ERROR] Forecast feed request failed", logging.Fields{
			"base_date":   baseDate,
			"base_time":   baseTime,
			"reason":      feedErr.Reason,
			"duration_ms": duration.Milliseconds(),
		}, err)
		return "", feedErr
	}

	body := result.(string)
	c.logger.Info(ctx, "[FEED_FETCH] Forecast feed fetched", logging.Fields{
		"base_date":   baseDate,
		"base_time":   baseTime,
		"bytes":       len(body),
		"duration_ms": duration.Milliseconds(),
	})

	return body, nil
}

func (c *Client) do(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", &FeedUnavailableError{Reason: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", &FeedUnavailableError{Reason: "timeout", Err: err}
		}
		return "", &FeedUnavailableError{Reason: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return "", &FeedUnavailableError{Reason: "status", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return "", &FeedUnavailableError{Reason: "timeout", Err: err}
		}
		return "", &FeedUnavailableError{Reason: "read_body", Err: err}
	}

	return string(body), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
