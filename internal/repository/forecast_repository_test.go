package repository

import (
	"context"
	"errors"
	"testing"

	"closet-cast/internal/models"
)

func newForecastRepo(t *testing.T) ForecastRepository {
	deps := setupTestDB(t)
	return NewForecastRepository(deps.db, deps.logger, deps.collector)
}

func TestForecastRepository_FindByDateNotFound(t *testing.T) {
	repo := newForecastRepo(t)

	_, err := repo.FindByDate(context.Background(), "20240101")

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("FindByDate() error = %v, want *NotFoundError", err)
	}
	if nf.ID != "20240101" {
		t.Errorf("NotFoundError.ID = %v, want 20240101", nf.ID)
	}
}

func TestForecastRepository_UpsertByDate(t *testing.T) {
	tests := []struct {
		name        string
		first       *models.ForecastRecord
		second      *models.ForecastRecord
		checkValues func(*testing.T, *models.ForecastRecord, []models.HourlySample)
	}{
		{
			name: "insert with hourly samples",
			first: &models.ForecastRecord{
				Date:    "20240315",
				MaxTemp: floatPtr(14),
				Hourly: []models.HourlySample{
					{Time: "0600", Temperature: 5, ApparentTemperature: floatPtr(3.2)},
					{Time: "0700", Temperature: 6},
				},
			},
			checkValues: func(t *testing.T, rec *models.ForecastRecord, hourly []models.HourlySample) {
				if rec.MaxTemp == nil || *rec.MaxTemp != 14 {
					t.Errorf("MaxTemp = %v, want 14", rec.MaxTemp)
				}
				if rec.MinTemp != nil {
					t.Errorf("MinTemp = %v, want nil", *rec.MinTemp)
				}
				if len(hourly) != 2 {
					t.Fatalf("len(hourly) = %d, want 2", len(hourly))
				}
				if hourly[0].Time != "0600" || hourly[1].Time != "0700" {
					t.Errorf("hourly order = %v, %v", hourly[0].Time, hourly[1].Time)
				}
				if hourly[0].ApparentTemperature == nil || *hourly[0].ApparentTemperature != 3.2 {
					t.Errorf("hourly[0].ApparentTemperature = %v, want 3.2", hourly[0].ApparentTemperature)
				}
				if hourly[1].ApparentTemperature != nil {
					t.Errorf("hourly[1].ApparentTemperature = %v, want nil", *hourly[1].ApparentTemperature)
				}
			},
		},
		{
			name: "update without hourly keeps stored samples",
			first: &models.ForecastRecord{
				Date:   "20240315",
				Hourly: []models.HourlySample{{Time: "0600", Temperature: 5}},
			},
			second: &models.ForecastRecord{
				Date:    "20240315",
				MinTemp: floatPtr(-1),
			},
			checkValues: func(t *testing.T, rec *models.ForecastRecord, hourly []models.HourlySample) {
				if rec.MinTemp == nil || *rec.MinTemp != -1 {
					t.Errorf("MinTemp = %v, want -1", rec.MinTemp)
				}
				if len(hourly) != 1 || hourly[0].Time != "0600" {
					t.Errorf("hourly = %+v, want the stored single sample", hourly)
				}
			},
		},
		{
			name: "update with hourly replaces stored samples",
			first: &models.ForecastRecord{
				Date: "20240315",
				Hourly: []models.HourlySample{
					{Time: "0600", Temperature: 5},
					{Time: "0700", Temperature: 6},
				},
			},
			second: &models.ForecastRecord{
				Date:   "20240315",
				Hourly: []models.HourlySample{{Time: "1200", Temperature: 11}},
			},
			checkValues: func(t *testing.T, rec *models.ForecastRecord, hourly []models.HourlySample) {
				if len(hourly) != 1 {
					t.Fatalf("len(hourly) = %d, want 1", len(hourly))
				}
				if hourly[0].Time != "1200" || hourly[0].Temperature != 11 {
					t.Errorf("hourly[0] = %+v, want 1200/11", hourly[0])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newForecastRepo(t)
			ctx := context.Background()

			if err := repo.UpsertByDate(ctx, tt.first); err != nil {
				t.Fatalf("UpsertByDate(first) error = %v", err)
			}
			if tt.first.ID == 0 {
				t.Error("UpsertByDate() should set the record ID")
			}
			if tt.second != nil {
				if err := repo.UpsertByDate(ctx, tt.second); err != nil {
					t.Fatalf("UpsertByDate(second) error = %v", err)
				}
				if tt.second.ID != tt.first.ID {
					t.Errorf("second upsert ID = %d, want %d (same row)", tt.second.ID, tt.first.ID)
				}
			}

			rec, err := repo.FindByDate(ctx, tt.first.Date)
			if err != nil {
				t.Fatalf("FindByDate() error = %v", err)
			}
			hourly, err := repo.FindHourlyForRecord(ctx, rec)
			if err != nil {
				t.Fatalf("FindHourlyForRecord() error = %v", err)
			}
			tt.checkValues(t, rec, hourly)
		})
	}
}

func TestForecastRepository_DatesAreIndependent(t *testing.T) {
	repo := newForecastRepo(t)
	ctx := context.Background()

	for _, date := range []string{"20240315", "20240316"} {
		rec := &models.ForecastRecord{
			Date:   date,
			Hourly: []models.HourlySample{{Time: "0900", Temperature: 8}},
		}
		if err := repo.UpsertByDate(ctx, rec); err != nil {
			t.Fatalf("UpsertByDate(%s) error = %v", date, err)
		}
	}

	replace := &models.ForecastRecord{
		Date:   "20240316",
		Hourly: []models.HourlySample{{Time: "1000", Temperature: 9}, {Time: "1100", Temperature: 10}},
	}
	if err := repo.UpsertByDate(ctx, replace); err != nil {
		t.Fatalf("UpsertByDate() error = %v", err)
	}

	first, _ := repo.FindByDate(ctx, "20240315")
	hourly, err := repo.FindHourlyForRecord(ctx, first)
	if err != nil {
		t.Fatalf("FindHourlyForRecord() error = %v", err)
	}
	if len(hourly) != 1 || hourly[0].Time != "0900" {
		t.Errorf("20240315 hourly = %+v, want untouched single 0900 sample", hourly)
	}
}
