package db

import (
	"context"
	"fmt"
	"time"

	"irrigation/internal/types"
)

// ObservationRepository provides data access for the daily_observations
// table. Measured columns are nullable; a NULL is a missing value.
type ObservationRepository struct {
	db DBTX
}

// NewObservationRepository creates a new ObservationRepository backed by the
// given database connection (pool or transaction).
func NewObservationRepository(db DBTX) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// ListBySite returns the observations of site within [start, end], ordered by
// date. A zero start or end leaves that side of the range open.
func (r *ObservationRepository) ListBySite(ctx context.Context, site string, start, end time.Time) ([]types.RawObservation, error) {
	query := `
		SELECT observed_on, temp_max, temp_min, temp_mean, precipitation_mm,
		       humidity_mean, soil_moisture, daylight_seconds
		FROM daily_observations
		WHERE site = $1
		  AND ($2::date IS NULL OR observed_on >= $2)
		  AND ($3::date IS NULL OR observed_on <= $3)
		ORDER BY observed_on ASC`

	rows, err := r.db.Query(ctx, query, site, nullableDate(start), nullableDate(end))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query observations", err)
	}
	defer rows.Close()

	var out []types.RawObservation
	for rows.Next() {
		var o types.RawObservation
		if err := rows.Scan(
			&o.Date,
			&o.TempMax,
			&o.TempMin,
			&o.TempMean,
			&o.PrecipitationMM,
			&o.HumidityMean,
			&o.SoilMoisture,
			&o.DaylightSeconds,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan observation row", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating observation rows", err)
	}
	return out, nil
}

// Upsert stores rows for site, replacing any existing row for the same day.
// It returns the number of rows written.
func (r *ObservationRepository) Upsert(ctx context.Context, site string, rows []types.RawObservation) (int, error) {
	query := `
		INSERT INTO daily_observations (
			site, observed_on, temp_max, temp_min, temp_mean, precipitation_mm,
			humidity_mean, soil_moisture, daylight_seconds
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (site, observed_on) DO UPDATE SET
			temp_max = EXCLUDED.temp_max,
			temp_min = EXCLUDED.temp_min,
			temp_mean = EXCLUDED.temp_mean,
			precipitation_mm = EXCLUDED.precipitation_mm,
			humidity_mean = EXCLUDED.humidity_mean,
			soil_moisture = EXCLUDED.soil_moisture,
			daylight_seconds = EXCLUDED.daylight_seconds`

	written := 0
	for _, o := range rows {
		if _, err := r.db.Exec(ctx, query,
			site, o.Date,
			o.TempMax, o.TempMin, o.TempMean, o.PrecipitationMM,
			o.HumidityMean, o.SoilMoisture, o.DaylightSeconds,
		); err != nil {
			return written, types.NewAppError(types.ErrCodeInternalDB,
				fmt.Sprintf("failed to upsert observation for %s", o.Date.Format(time.DateOnly)), err)
		}
		written++
	}
	return written, nil
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// ObservationSource adapts ObservationRepository to types.RecordSource.
type ObservationSource struct {
	Repo  *ObservationRepository
	Site  string
	Start time.Time
	End   time.Time
}

// Load implements types.RecordSource. The table schema declares every
// required column.
func (s ObservationSource) Load(ctx context.Context) (*types.RecordTable, error) {
	rows, err := s.Repo.ListBySite(ctx, s.Site, s.Start, s.End)
	if err != nil {
		return nil, err
	}
	return &types.RecordTable{
		Columns: append([]string(nil), types.RequiredColumns...),
		Rows:    rows,
	}, nil
}
