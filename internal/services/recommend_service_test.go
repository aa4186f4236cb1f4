package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"closet-cast/internal/models"
	"closet-cast/internal/repository"
)

func TestParseRecommendation(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantErr     bool
		checkValues func(*testing.T, *Recommendation)
	}{
		{
			name:  "full outfit",
			reply: "(COAT, HOODIE, JEANS)",
			checkValues: func(t *testing.T, r *Recommendation) {
				if r.Outer != "COAT" || r.Top != "HOODIE" || r.Bottom != "JEANS" {
					t.Errorf("got %+v", r)
				}
				if !r.HasOuter() {
					t.Error("HasOuter() = false, want true")
				}
			},
		},
		{
			name:  "no outer",
			reply: "(None, SHORT_SLEEVE, SHORTS)",
			checkValues: func(t *testing.T, r *Recommendation) {
				if r.Outer != NoOuter || r.HasOuter() {
					t.Errorf("Outer = %q, want None", r.Outer)
				}
			},
		},
		{
			name:  "surrounding whitespace and newlines",
			reply: "\n ( FLEECE ,\tSWEATER , COTTON_PANTS ) \n",
			checkValues: func(t *testing.T, r *Recommendation) {
				if r.Outer != "FLEECE" || r.Bottom != "COTTON_PANTS" {
					t.Errorf("got %+v", r)
				}
			},
		},
		{name: "two items", reply: "(HOODIE, JEANS)", wantErr: true},
		{name: "four items", reply: "(COAT, HOODIE, SHIRT, JEANS)", wantErr: true},
		{name: "empty item", reply: "(COAT, , JEANS)", wantErr: true},
		{name: "prose", reply: "I recommend a coat today.", wantErr: true},
		{name: "empty", reply: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecommendation(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRecommendation() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var parseErr *RecommendationParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("error type = %T, want *RecommendationParseError", err)
				}
				return
			}
			tt.checkValues(t, got)
		})
	}
}

func TestSummarizeDay(t *testing.T) {
	day := models.NewDailyForecast("20240315")
	day.MaxTemp = floatPtr(12)
	day.Hourly = []models.HourlySample{
		{Time: "0600", Temperature: 3, ApparentTemperature: floatPtr(0.5)},
		{Time: "0900", Temperature: 6},
		{Time: "1500", Temperature: 11, ApparentTemperature: floatPtr(10.2)},
	}

	summary, err := SummarizeDay(day)
	if err != nil {
		t.Fatalf("SummarizeDay() error = %v", err)
	}
	if summary.MaxFeel != 10.2 || summary.MinFeel != 0.5 {
		t.Errorf("feel range = %v..%v, want 0.5..10.2", summary.MinFeel, summary.MaxFeel)
	}

	noWind := models.NewDailyForecast("20240315")
	noWind.Hourly = []models.HourlySample{{Time: "0600", Temperature: 3}, {Time: "0900", Temperature: 6}}
	summary, err = SummarizeDay(noWind)
	if err != nil {
		t.Fatalf("SummarizeDay() error = %v", err)
	}
	if summary.MaxFeel != 6 || summary.MinFeel != 3 {
		t.Errorf("fallback feel range = %v..%v, want 3..6", summary.MinFeel, summary.MaxFeel)
	}

	var nf *repository.NotFoundError
	if _, err := SummarizeDay(models.NewDailyForecast("20240315")); !errors.As(err, &nf) {
		t.Errorf("SummarizeDay(empty) error = %v, want *repository.NotFoundError", err)
	}
}

type stubCompleter struct {
	reply        string
	err          error
	system, user string
}

func (c *stubCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	c.system, c.user = system, user
	return c.reply, c.err
}

func TestRecommendService_Recommend(t *testing.T) {
	tests := []struct {
		name      string
		completer *stubCompleter
		seedDay   bool
		check     func(*testing.T, *Recommendation, error, *stubCompleter)
	}{
		{
			name:      "success",
			completer: &stubCompleter{reply: "(COAT, HOODIE, JEANS)"},
			seedDay:   true,
			check: func(t *testing.T, rec *Recommendation, err error, c *stubCompleter) {
				if err != nil {
					t.Fatalf("Recommend() error = %v", err)
				}
				if rec.Outer != "COAT" {
					t.Errorf("Outer = %q", rec.Outer)
				}
				if !strings.Contains(c.system, "COAT,HOODIE,JEANS") {
					t.Errorf("system prompt missing wardrobe: %q", c.system)
				}
				if !strings.Contains(c.user, "CASUAL") || !strings.Contains(c.user, "COLD") {
					t.Errorf("user prompt missing preference or tendency: %q", c.user)
				}
				if !strings.Contains(c.user, "12.0") {
					t.Errorf("user prompt missing max temperature: %q", c.user)
				}
			},
		},
		{
			name:      "unparseable reply",
			completer: &stubCompleter{reply: "Wear something warm."},
			seedDay:   true,
			check: func(t *testing.T, rec *Recommendation, err error, c *stubCompleter) {
				var parseErr *RecommendationParseError
				if !errors.As(err, &parseErr) {
					t.Errorf("error = %v, want *RecommendationParseError", err)
				}
			},
		},
		{
			name:      "completion failure",
			completer: &stubCompleter{err: errors.New("upstream 500")},
			seedDay:   true,
			check: func(t *testing.T, rec *Recommendation, err error, c *stubCompleter) {
				var compErr *CompletionError
				if !errors.As(err, &compErr) {
					t.Errorf("error = %v, want *CompletionError", err)
				}
			},
		},
		{
			name:      "no forecast for today",
			completer: &stubCompleter{reply: "(COAT, HOODIE, JEANS)"},
			check: func(t *testing.T, rec *Recommendation, err error, c *stubCompleter) {
				var nf *repository.NotFoundError
				if !errors.As(err, &nf) {
					t.Errorf("error = %v, want *repository.NotFoundError", err)
				}
				if c.system != "" {
					t.Error("completion service should not be called without a forecast")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()

			member := &models.Member{
				LoginID:      "kim01",
				Name:         "Kim",
				PasswordHash: "x",
				Preferences:  []models.Preference{models.PreferenceCasual},
				Tendencies:   []models.Tendency{models.TendencyCold},
				Clothes:      []models.Cloth{models.ClothCoat, models.ClothHoodie, models.ClothJeans},
			}
			if err := env.members.Create(ctx, member); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			weather := NewWeatherService(env.forecasts, time.UTC, env.logger, env.collector)
			weather.now = func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) }

			if tt.seedDay {
				rec := &models.ForecastRecord{
					Date:    "20240315",
					MaxTemp: floatPtr(12),
					MinTemp: floatPtr(2),
					Hourly:  []models.HourlySample{{Time: "0900", Temperature: 5, ApparentTemperature: floatPtr(3.1)}},
				}
				if err := env.forecasts.UpsertByDate(ctx, rec); err != nil {
					t.Fatalf("UpsertByDate() error = %v", err)
				}
			}

			svc := NewRecommendService(env.members, weather, tt.completer, env.logger, env.collector)
			rec, err := svc.Recommend(ctx, member.ID)
			tt.check(t, rec, err, tt.completer)
		})
	}
}
