// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package healthdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sampleSource = "Sample Watch"

// Seed fills a freshly initialized database with days of synthetic daily
// records ending at end. Values are deterministic.
func Seed(ctx context.Context, path string, days int, end time.Time) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO healthdata
		(locale, export_date, date_of_birth, biological_sex, blood_type, fitzpatrick_skin_type, cardio_fitness_medications_use)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"en_US", end.Format(TimeLayout), "1985-04-12", "HKBiologicalSexFemale", "HKBloodTypeAPositive",
		"HKFitzpatrickSkinTypeNotSet", "None")
	if err != nil {
		return fmt.Errorf("seed healthdata: %w", err)
	}
	hid, err := res.LastInsertId()
	if err != nil {
		return err
	}

	record, err := tx.PrepareContext(ctx, `INSERT INTO record
		(type, unit, value, source_name, start_date, end_date, creation_date, health_data_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer record.Close()
	summary, err := tx.PrepareContext(ctx, `INSERT INTO activitysummary
		(date_components, active_energy_burned, active_energy_burned_goal, active_energy_burned_unit,
		 apple_exercise_time, apple_exercise_time_goal, apple_stand_hours, apple_stand_hours_goal, health_data_id)
		VALUES (?, ?, 500, 'kcal', ?, 30, ?, 12, ?)`)
	if err != nil {
		return err
	}
	defer summary.Close()

	start := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, end.Location()).AddDate(0, 0, -days+1)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		morning := day.Add(7 * time.Hour)
		evening := day.Add(22 * time.Hour)
		samples := []struct {
			typ, unit string
			value     float64
			from, to  time.Time
		}{
			{"HKQuantityTypeIdentifierRestingHeartRate", "count/min", float64(60 + i%7), morning, morning},
			{"HKQuantityTypeIdentifierHeartRate", "count/min", float64(68 + (i*5)%15), day.Add(12 * time.Hour), day.Add(12 * time.Hour)},
			{"HKQuantityTypeIdentifierHeartRateVariabilitySDNN", "ms", float64(40 + (i*3)%20), morning, morning},
			{"HKQuantityTypeIdentifierStepCount", "count", float64(6000 + (i*1379)%6000), day.Add(8 * time.Hour), evening},
			{"HKQuantityTypeIdentifierActiveEnergyBurned", "kcal", float64(350 + (i*47)%300), day.Add(8 * time.Hour), evening},
			{"HKQuantityTypeIdentifierBodyMass", "kg", 64.5 - float64(i%5)/10, morning, morning},
		}
		for _, s := range samples {
			if _, err := record.ExecContext(ctx, s.typ, s.unit, fmt.Sprint(s.value), sampleSource,
				s.from.Format(TimeLayout), s.to.Format(TimeLayout), s.to.Format(TimeLayout), hid); err != nil {
				return fmt.Errorf("seed record: %w", err)
			}
		}
		sleepStart := evening.Add(time.Hour)
		sleepEnd := sleepStart.Add(time.Duration(390+(i*23)%90) * time.Minute)
		if _, err := record.ExecContext(ctx, "HKCategoryTypeIdentifierSleepAnalysis", nil, "HKCategoryValueSleepAnalysisAsleepUnspecified",
			sampleSource, sleepStart.Format(TimeLayout), sleepEnd.Format(TimeLayout), sleepEnd.Format(TimeLayout), hid); err != nil {
			return fmt.Errorf("seed sleep: %w", err)
		}
		if _, err := summary.ExecContext(ctx, day.Format("2006-01-02"), float64(350+(i*47)%300),
			float64(20+(i*7)%40), 8+i%6, hid); err != nil {
			return fmt.Errorf("seed activity summary: %w", err)
		}
		if i%3 == 0 {
			if _, err := tx.ExecContext(ctx, `INSERT INTO workout
				(workout_activity_type, duration, duration_unit, total_distance, total_distance_unit,
				 total_energy_burned, total_energy_burned_unit, source_name, start_date, end_date, health_data_id)
				VALUES ('HKWorkoutActivityTypeRunning', ?, 'min', ?, 'km', ?, 'kcal', ?, ?, ?, ?)`,
				float64(30+i%20), 5+float64(i%4), float64(280+i%90), sampleSource,
				day.Add(18*time.Hour).Format(TimeLayout), day.Add(18*time.Hour+40*time.Minute).Format(TimeLayout), hid); err != nil {
				return fmt.Errorf("seed workout: %w", err)
			}
		}
	}
	return tx.Commit()
}
