package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"closet-cast/internal/llm"
	"closet-cast/internal/models"
	"closet-cast/internal/repository"
	"closet-cast/pkg/logging"
	"closet-cast/pkg/metrics"
)

// NoOuter is the outer value of a recommendation that needs no outer layer
const NoOuter = "None"

// Recommendation is one outfit picked from a member's clothes
type Recommendation struct {
	Outer  string `json:"outer"`
	Top    string `json:"top"`
	Bottom string `json:"bottom"`
}

// HasOuter reports whether the outfit includes an outer layer
func (r *Recommendation) HasOuter() bool {
	return r.Outer != NoOuter
}

// RecommendationParseError reports a completion reply that is not an (outer, top, bottom) triple
type RecommendationParseError struct {
	Reply  string
	Tokens int
}

func (e *RecommendationParseError) Error() string {
	return fmt.Sprintf("unexpected recommendation reply %q: got %d non-empty items, want 3", e.Reply, e.Tokens)
}

func (e *RecommendationParseError) IsTransient() bool {
	return true
}

// CompletionError wraps a failed call to the completion service
type CompletionError struct {
	Err error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion service failed: %v", e.Err)
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

func (e *CompletionError) IsTransient() bool {
	return true
}

// ParseRecommendation reads a reply shaped "(outer, top, bottom)".
// Parentheses and whitespace are ignored; anything other than exactly three
// non-empty comma-separated items is rejected.
func ParseRecommendation(reply string) (*Recommendation, error) {
	cleaned := strings.Map(func(r rune) rune {
		if r == '(' || r == ')' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, reply)

	parts := strings.Split(cleaned, ",")
	nonEmpty := 0
	for _, p := range parts {
		if p != "" {
			nonEmpty++
		}
	}
	if len(parts) != 3 || nonEmpty != 3 {
		return nil, &RecommendationParseError{Reply: reply, Tokens: nonEmpty}
	}

	return &Recommendation{Outer: parts[0], Top: parts[1], Bottom: parts[2]}, nil
}

// DaySummary holds the temperatures a recommendation is based on
type DaySummary struct {
	Date    string
	MaxTemp *float64
	MinTemp *float64
	MaxFeel float64
	MinFeel float64
}

// SummarizeDay computes the feel-temperature range of a day from its hourly samples.
// Apparent temperatures are used when any sample has one, plain temperatures otherwise.
func SummarizeDay(day *models.DailyForecast) (*DaySummary, error) {
	if len(day.Hourly) == 0 {
		return nil, &repository.NotFoundError{Resource: "hourly_forecast", ID: day.Date}
	}

	values := make([]float64, 0, len(day.Hourly))
	for _, s := range day.Hourly {
		if s.ApparentTemperature != nil {
			values = append(values, *s.ApparentTemperature)
		}
	}
	if len(values) == 0 {
		for _, s := range day.Hourly {
			values = append(values, s.Temperature)
		}
	}

	summary := &DaySummary{
		Date:    day.Date,
		MaxTemp: day.MaxTemp,
		MinTemp: day.MinTemp,
		MaxFeel: values[0],
		MinFeel: values[0],
	}
	for _, v := range values[1:] {
		if v > summary.MaxFeel {
			summary.MaxFeel = v
		}
		if v < summary.MinFeel {
			summary.MinFeel = v
		}
	}
	return summary, nil
}

// BuildPrompts renders the system and user prompts for a member and day
func BuildPrompts(member *models.Member, summary *DaySummary) (string, string) {
	byCategory := map[models.ClothCategory][]string{}
	for _, c := range member.Clothes {
		byCategory[c.Category()] = append(byCategory[c.Category()], string(c))
	}

	system := fmt.Sprintf(
		"You are a fashion assistant recommending clothes for today's weather from the user's wardrobe. "+
			"The user owns: [%s]. "+
			"Outer: [%s]. Top: [%s]. Bottom: [%s]. "+
			"Recommend exactly one (outer, top, bottom) combination using only items from this list. "+
			"Answer only in the form (OUTER, TOP, BOTTOM) with no greeting, explanation or weather briefing. "+
			"If the weather does not call for an outer layer, answer %s for the outer. "+
			"Example: (COAT, HOODIE, JEANS) or (%s, SHORT_SLEEVE, SHORTS)",
		models.JoinEnums(member.Clothes),
		strings.Join(byCategory[models.CategoryOuter], ", "),
		strings.Join(byCategory[models.CategoryTop], ", "),
		strings.Join(byCategory[models.CategoryBottom], ", "),
		NoOuter, NoOuter,
	)

	user := fmt.Sprintf(
		"Today's high is %s°C and low is %s°C; the feel temperature ranges from %.1f°C to %.1f°C. "+
			"My style preference is '%s' and my tendencies are '%s'. "+
			"Recommend one (outer, top, bottom) combination from my clothes.",
		formatTemp(summary.MaxTemp), formatTemp(summary.MinTemp),
		summary.MinFeel, summary.MaxFeel,
		models.JoinEnums(member.Preferences), models.JoinEnums(member.Tendencies),
	)

	return system, user
}

func formatTemp(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.1f", *v)
}

// RecommendService picks an outfit for a member from today's forecast
type RecommendService struct {
	members   repository.MemberRepository
	weather   *WeatherService
	completer llm.Completer
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
}

// NewRecommendService creates a new recommendation service
func NewRecommendService(
	members repository.MemberRepository,
	weather *WeatherService,
	completer llm.Completer,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *RecommendService {
	return &RecommendService{
		members:   members,
		weather:   weather,
		completer: completer,
		logger:    logger,
		metrics:   metricsCollector,
	}
}

// Recommend asks the completion service for an outfit for today's forecast
func (s *RecommendService) Recommend(ctx context.Context, memberID int64) (*Recommendation, error) {
	member, err := s.members.Get(ctx, memberID)
	if err != nil {
		return nil, err
	}

	today := s.weather.Today()
	day, err := s.weather.ReadDay(ctx, today)
	if err != nil {
		return nil, err
	}

	summary, err := SummarizeDay(day)
	if err != nil {
		return nil, err
	}

	system, user := BuildPrompts(member, summary)

	timer := time.Now()
	reply, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		s.metrics.RecordRecommendation("completion_error")
		s.logger.Error(ctx, "[RECOMMEND_ERROR] Completion request failed", logging.Fields{
			"member_id": memberID,
			"date":      today,
		}, err)
		return nil, &CompletionError{Err: err}
	}

	rec, err := ParseRecommendation(reply)
	if err != nil {
		s.metrics.RecordRecommendation("parse_error")
		var parseErr *RecommendationParseError
		if errors.As(err, &parseErr) {
			s.logger.Warn(ctx, "[RECOMMEND_PARSE] Completion reply rejected", logging.Fields{
				"member_id": memberID,
				"reply":     reply,
				"items":     parseErr.Tokens,
			})
		}
		return nil, err
	}

	s.metrics.RecordRecommendation("success")
	s.logger.Info(ctx, "[RECOMMEND] Outfit recommended", logging.Fields{
		"member_id":   memberID,
		"date":        today,
		"outer":       rec.Outer,
		"top":         rec.Top,
		"bottom":      rec.Bottom,
		"duration_ms": time.Since(timer).Milliseconds(),
	})

	return rec, nil
}
