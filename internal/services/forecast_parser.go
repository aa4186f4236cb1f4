package services

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"closet-cast/internal/models"
)

// MalformedFeedError reports a payload that does not have the expected structure
type MalformedFeedError struct {
	Err error
}

func (e *MalformedFeedError) Error() string {
	return fmt.Sprintf("malformed forecast payload: %v", e.Err)
}

func (e *MalformedFeedError) Unwrap() error {
	return e.Err
}

func (e *MalformedFeedError) IsTransient() bool {
	return false
}

// SampleKey identifies a forecast instant
type SampleKey struct {
	Date string
	Time string
}

// ParsedForecast is the regrouped content of one feed payload
type ParsedForecast struct {
	// Days are in order of first appearance in the payload
	Days []*models.DailyForecast
	// Wind holds WSD values by instant, used only to derive apparent temperature
	Wind map[SampleKey]float64

	ResultCode string
	ResultMsg  string
}

// HourlyCount returns the number of hourly samples across all days
func (p *ParsedForecast) HourlyCount() int {
	n := 0
	for _, d := range p.Days {
		n += len(d.Hourly)
	}
	return n
}

type feedPayload struct {
	Response *struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body *struct {
			Items *struct {
				Item []feedItem `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

// feedItem keeps each item as decoded JSON so that an absent field can be told
// apart from a field that is present but null.
type feedItem map[string]interface{}

// text returns the textual form of a present field. A null field reads as "null",
// which never parses as a number.
func (it feedItem) text(key string) (string, bool, error) {
	v, ok := it[key]
	if !ok {
		return "", false, nil
	}
	switch t := v.(type) {
	case nil:
		return "null", true, nil
	case string:
		return t, true, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true, nil
	case bool:
		return strconv.FormatBool(t), true, nil
	default:
		return "", true, fmt.Errorf("field %s is not a scalar", key)
	}
}

// parseValue reads a forecast value. NaN and infinities are treated as non-numeric.
func parseValue(text string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseForecast regroups a raw feed payload by forecast date.
// Items with a non-numeric value are skipped. An unparseable payload, or an item
// missing one of its identifying fields, yields a *MalformedFeedError.
// A payload without an item list parses to an empty forecast.
func ParseForecast(raw string) (*ParsedForecast, error) {
	var payload feedPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, &MalformedFeedError{Err: err}
	}

	parsed := &ParsedForecast{
		Days: make([]*models.DailyForecast, 0),
		Wind: make(map[SampleKey]float64),
	}

	if payload.Response == nil {
		return parsed, nil
	}
	parsed.ResultCode = payload.Response.Header.ResultCode
	parsed.ResultMsg = payload.Response.Header.ResultMsg

	if payload.Response.Body == nil || payload.Response.Body.Items == nil {
		return parsed, nil
	}

	byDate := make(map[string]*models.DailyForecast)

	for i, item := range payload.Response.Body.Items.Item {
		var fields [4]string
		for k, key := range []string{"fcstDate", "fcstTime", "category", "fcstValue"} {
			v, present, err := item.text(key)
			if err != nil {
				return nil, &MalformedFeedError{Err: fmt.Errorf("item %d: %w", i, err)}
			}
			if !present {
				return nil, &MalformedFeedError{Err: fmt.Errorf("item %d is missing %s", i, key)}
			}
			fields[k] = v
		}
		date, at, category := fields[0], fields[1], fields[2]

		value, ok := parseValue(fields[3])
		if !ok {
			continue
		}

		day, exists := byDate[date]
		if !exists {
			day = models.NewDailyForecast(date)
			byDate[date] = day
			parsed.Days = append(parsed.Days, day)
		}

		switch models.Category(category) {
		case models.CategoryTemperature:
			day.Hourly = append(day.Hourly, models.HourlySample{Time: at, Temperature: value})
		case models.CategoryWindSpeed:
			parsed.Wind[SampleKey{Date: date, Time: at}] = value
		case models.CategoryDailyMax:
			v := value
			day.MaxTemp = &v
		case models.CategoryDailyMin:
			v := value
			day.MinTemp = &v
		}
	}

	return parsed, nil
}
