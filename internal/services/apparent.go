package services

import "math"

// ApparentTemperature returns the wind-chill feel temperature for t (°C) and
// wind speed w (m/s), rounded half-up to one decimal.
func ApparentTemperature(t, w float64) float64 {
	wp := math.Pow(w, 0.16)
	v := 13.12 + 0.6215*t - 11.37*wp + 0.3965*t*wp
	return math.Floor(v*10+0.5) / 10
}

// ApplyApparentTemperatures sets ApparentTemperature on every hourly sample that
// has a wind value for the same date and time. Other samples keep a nil value.
func ApplyApparentTemperatures(parsed *ParsedForecast) {
	for _, day := range parsed.Days {
		for i := range day.Hourly {
			sample := &day.Hourly[i]
			w, ok := parsed.Wind[SampleKey{Date: day.Date, Time: sample.Time}]
			if !ok {
				continue
			}
			v := ApparentTemperature(sample.Temperature, w)
			sample.ApparentTemperature = &v
		}
	}
}
