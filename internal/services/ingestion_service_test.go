package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"closet-cast/internal/feed"
	"closet-cast/internal/models"
)

func newIngestion(env *testEnv, f FeedClient) *IngestionService {
	return NewIngestionService(f, env.forecasts, Grid{NX: 55, NY: 127}, time.UTC, env.logger, env.collector)
}

func loadDay(t *testing.T, env *testEnv, date string) *models.DailyForecast {
	t.Helper()
	svc := NewWeatherService(env.forecasts, time.UTC, env.logger, env.collector)
	day, err := svc.ReadDay(context.Background(), date)
	if err != nil {
		t.Fatalf("ReadDay(%s) error = %v", date, err)
	}
	return day
}

func TestIngestionService_RunPass(t *testing.T) {
	env := newTestEnv(t)
	f := &stubFeed{payloads: []string{buildPayload(
		testItem{"20240101", "0600", "TMP", `"5.0"`},
		testItem{"20240101", "0600", "WSD", `"2.0"`},
		testItem{"20240101", "0700", "TMP", `"6.0"`},
		testItem{"20240101", "0600", "TMN", `"-1.0"`},
		testItem{"20240102", "1500", "TMX", `"9.0"`},
	)}}
	svc := newIngestion(env, f)

	result, err := svc.RunPass(context.Background(), "20240101", "0500")
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	if result.DaysParsed != 2 || result.DaysUpserted != 2 || result.HourlySamples != 2 {
		t.Errorf("result = %+v, want 2 parsed, 2 upserted, 2 samples", result)
	}
	if len(f.calls) != 1 || f.calls[0] != "20240101/0500" {
		t.Errorf("feed calls = %v", f.calls)
	}

	day := loadDay(t, env, "20240101")
	if day.MinTemp == nil || *day.MinTemp != -1 {
		t.Errorf("MinTemp = %v, want -1", day.MinTemp)
	}
	if day.MaxTemp != nil {
		t.Errorf("MaxTemp = %v, want nil", *day.MaxTemp)
	}
	if len(day.Hourly) != 2 {
		t.Fatalf("len(Hourly) = %d, want 2", len(day.Hourly))
	}
	if day.Hourly[0].ApparentTemperature == nil || *day.Hourly[0].ApparentTemperature != 5.7 {
		t.Errorf("0600 apparent = %v, want 5.7", day.Hourly[0].ApparentTemperature)
	}
	if day.Hourly[1].ApparentTemperature != nil {
		t.Errorf("0700 apparent = %v, want nil", *day.Hourly[1].ApparentTemperature)
	}

	if got := testutil.ToFloat64(env.collector.IngestionPassesTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("success passes = %v, want 1", got)
	}
}

func TestIngestionService_MergeRules(t *testing.T) {
	tests := []struct {
		name        string
		second      string
		checkValues func(*testing.T, *models.DailyForecast)
	}{
		{
			name: "extremes only keep stored hourly samples",
			second: buildPayload(
				testItem{"20240101", "0600", "TMX", `"12.0"`},
				testItem{"20240101", "0600", "TMN", `"-4.0"`},
			),
			checkValues: func(t *testing.T, day *models.DailyForecast) {
				if len(day.Hourly) != 2 || day.Hourly[0].Time != "0600" || day.Hourly[1].Time != "0900" {
					t.Errorf("Hourly = %+v, want stored 0600 and 0900", day.Hourly)
				}
				if day.Hourly[0].ApparentTemperature == nil || *day.Hourly[0].ApparentTemperature != 5.7 {
					t.Errorf("stored apparent temperature changed: %v", day.Hourly[0].ApparentTemperature)
				}
				if day.MaxTemp == nil || *day.MaxTemp != 12 {
					t.Errorf("MaxTemp = %v, want 12", day.MaxTemp)
				}
				if day.MinTemp == nil || *day.MinTemp != -4 {
					t.Errorf("MinTemp = %v, want -4", day.MinTemp)
				}
			},
		},
		{
			name: "hourly samples replace the stored sequence",
			second: buildPayload(
				testItem{"20240101", "1200", "TMP", `"10.0"`},
			),
			checkValues: func(t *testing.T, day *models.DailyForecast) {
				if len(day.Hourly) != 1 {
					t.Fatalf("len(Hourly) = %d, want 1", len(day.Hourly))
				}
				if day.Hourly[0].Time != "1200" || day.Hourly[0].Temperature != 10 {
					t.Errorf("Hourly[0] = %+v, want 1200/10", day.Hourly[0])
				}
				if day.MaxTemp == nil || *day.MaxTemp != 8 {
					t.Errorf("MaxTemp = %v, want stored 8", day.MaxTemp)
				}
			},
		},
		{
			name: "non-numeric items change nothing",
			second: buildPayload(
				testItem{"20240101", "0600", "TMP", `"-"`},
			),
			checkValues: func(t *testing.T, day *models.DailyForecast) {
				if len(day.Hourly) != 2 {
					t.Errorf("len(Hourly) = %d, want 2", len(day.Hourly))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			f := &stubFeed{payloads: []string{
				buildPayload(
					testItem{"20240101", "0600", "TMP", `"5.0"`},
					testItem{"20240101", "0600", "WSD", `"2.0"`},
					testItem{"20240101", "0900", "TMP", `"7.0"`},
					testItem{"20240101", "0600", "TMX", `"8.0"`},
				),
				tt.second,
			}}
			svc := newIngestion(env, f)
			ctx := context.Background()

			if _, err := svc.RunPass(ctx, "20240101", "0500"); err != nil {
				t.Fatalf("first RunPass() error = %v", err)
			}
			if _, err := svc.RunPass(ctx, "20240101", "0800"); err != nil {
				t.Fatalf("second RunPass() error = %v", err)
			}

			tt.checkValues(t, loadDay(t, env, "20240101"))
		})
	}
}

func TestIngestionService_MalformedPayload(t *testing.T) {
	env := newTestEnv(t)
	f := &stubFeed{payloads: []string{`<html>gateway error</html>`}}
	svc := newIngestion(env, f)

	result, err := svc.RunPass(context.Background(), "20240101", "0500")
	if err != nil {
		t.Fatalf("RunPass() error = %v, want nil for malformed payload", err)
	}
	if !result.Malformed || result.DaysParsed != 0 || result.DaysUpserted != 0 {
		t.Errorf("result = %+v, want empty malformed result", result)
	}
	if got := testutil.ToFloat64(env.collector.IngestionErrorsTotal.WithLabelValues("malformed_feed")); got != 1 {
		t.Errorf("malformed_feed errors = %v, want 1", got)
	}
}

func TestIngestionService_FeedUnavailable(t *testing.T) {
	env := newTestEnv(t)
	f := &stubFeed{err: &feed.FeedUnavailableError{Reason: "status", StatusCode: 503}}
	svc := newIngestion(env, f)

	_, err := svc.RunPass(context.Background(), "20240101", "0500")
	if !errors.Is(err, feed.ErrFeedUnavailable) {
		t.Fatalf("RunPass() error = %v, want ErrFeedUnavailable", err)
	}
}

func TestMergeForecast(t *testing.T) {
	existing := &models.ForecastRecord{ID: 7, Date: "20240101", MaxTemp: floatPtr(10), MinTemp: floatPtr(1)}

	day := models.NewDailyForecast("20240101")
	day.MinTemp = floatPtr(-2)
	merged := MergeForecast(existing, day)

	if merged.ID != 7 {
		t.Errorf("ID = %d, want 7", merged.ID)
	}
	if *merged.MaxTemp != 10 || *merged.MinTemp != -2 {
		t.Errorf("extremes = %v/%v, want 10/-2", *merged.MaxTemp, *merged.MinTemp)
	}
	if merged.Hourly != nil {
		t.Errorf("Hourly = %+v, want nil so stored samples are kept", merged.Hourly)
	}

	fresh := MergeForecast(nil, day)
	if fresh.ID != 0 || fresh.MaxTemp != nil {
		t.Errorf("MergeForecast(nil) = %+v", fresh)
	}

	day.Hourly = append(day.Hourly, models.HourlySample{Time: "0600", Temperature: 3, ApparentTemperature: floatPtr(1)})
	withHourly := MergeForecast(existing, day)
	*day.Hourly[0].ApparentTemperature = 42
	if *withHourly.Hourly[0].ApparentTemperature != 1 {
		t.Error("merged samples must not share storage with the parsed day")
	}
}

func TestBaseTimeFor(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)

	tests := []struct {
		name     string
		now      time.Time
		wantDate string
		wantTime string
	}{
		{name: "scheduled 02:30", now: time.Date(2024, 3, 15, 2, 30, 0, 0, seoul), wantDate: "20240315", wantTime: "0200"},
		{name: "scheduled 23:30", now: time.Date(2024, 3, 15, 23, 30, 0, 0, seoul), wantDate: "20240315", wantTime: "2300"},
		{name: "between issuances", now: time.Date(2024, 3, 15, 13, 10, 0, 0, seoul), wantDate: "20240315", wantTime: "1100"},
		{name: "just before publish", now: time.Date(2024, 3, 15, 5, 20, 0, 0, seoul), wantDate: "20240315", wantTime: "0200"},
		{name: "after midnight", now: time.Date(2024, 1, 1, 1, 0, 0, 0, seoul), wantDate: "20231231", wantTime: "2300"},
		{name: "just after midnight", now: time.Date(2024, 3, 1, 0, 10, 0, 0, seoul), wantDate: "20240229", wantTime: "2300"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDate, gotTime := BaseTimeFor(tt.now)
			if gotDate != tt.wantDate || gotTime != tt.wantTime {
				t.Errorf("BaseTimeFor() = %s/%s, want %s/%s", gotDate, gotTime, tt.wantDate, tt.wantTime)
			}
		})
	}
}

func TestIngestionService_RunLatest(t *testing.T) {
	env := newTestEnv(t)
	f := &stubFeed{payloads: []string{buildPayload()}}
	svc := newIngestion(env, f)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 8, 30, 0, 0, time.UTC) }

	if _, err := svc.RunLatest(context.Background()); err != nil {
		t.Fatalf("RunLatest() error = %v", err)
	}
	if len(f.calls) != 1 || f.calls[0] != "20240315/0800" {
		t.Errorf("feed calls = %v, want [20240315/0800]", f.calls)
	}
}
