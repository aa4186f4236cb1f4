package models

import (
	"time"
)

const (
	// DateLayout is the yyyyMMdd layout used by the feed and as the storage key
	DateLayout = "20060102"
	// TimeLayout is the HHmm layout of hourly sample times
	TimeLayout = "1504"
)

// Category identifies what a feed item measures
type Category string

const (
	CategoryTemperature Category = "TMP" // instantaneous temperature
	CategoryWindSpeed   Category = "WSD" // wind speed, m/s
	CategoryDailyMax    Category = "TMX"
	CategoryDailyMin    Category = "TMN"
)

// HourlySample is one temperature reading of a forecast day
type HourlySample struct {
	Time                string   `json:"fcstTime" db:"fcst_time"`
	Temperature         float64  `json:"temperature" db:"temperature"`
	ApparentTemperature *float64 `json:"apparentTemp" db:"apparent_temperature"`
}

// DailyForecast groups the forecast values of one calendar date.
// Hourly keeps feed arrival order and is never nil.
type DailyForecast struct {
	Date    string         `json:"date"`
	MaxTemp *float64       `json:"tmx"`
	MinTemp *float64       `json:"tmn"`
	Hourly  []HourlySample `json:"hourlyList"`
}

// NewDailyForecast creates an empty forecast for date
func NewDailyForecast(date string) *DailyForecast {
	return &DailyForecast{
		Date:   date,
		Hourly: make([]HourlySample, 0),
	}
}

// ForecastRecord is the stored counterpart of DailyForecast, unique per date.
// On upsert a non-empty Hourly replaces every stored sample for the date;
// an empty Hourly leaves the stored samples untouched.
type ForecastRecord struct {
	ID        int64          `json:"id" db:"id"`
	Date      string         `json:"date" db:"forecast_date"`
	MaxTemp   *float64       `json:"tmx" db:"max_temp"`
	MinTemp   *float64       `json:"tmn" db:"min_temp"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
	Hourly    []HourlySample `json:"-" db:"-"`
}

// ToDailyForecast combines the record with its stored hourly samples
func (r *ForecastRecord) ToDailyForecast(hourly []HourlySample) *DailyForecast {
	day := NewDailyForecast(r.Date)
	day.MaxTemp = copyFloat(r.MaxTemp)
	day.MinTemp = copyFloat(r.MinTemp)
	day.Hourly = append(day.Hourly, CloneSamples(hourly)...)
	return day
}

// CloneSamples deep-copies samples so no two records share sample values
func CloneSamples(samples []HourlySample) []HourlySample {
	out := make([]HourlySample, len(samples))
	for i, s := range samples {
		out[i] = HourlySample{
			Time:                s.Time,
			Temperature:         s.Temperature,
			ApparentTemperature: copyFloat(s.ApparentTemperature),
		}
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// ParseDate parses a yyyyMMdd date
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "date",
			Value:   date,
			Message: "invalid date format, expected yyyyMMdd",
		}
	}
	return t, nil
}

// AddDays returns date shifted by days calendar days, in yyyyMMdd
func AddDays(date string, days int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, days).Format(DateLayout), nil
}
