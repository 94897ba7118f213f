package dataset

import (
	"fmt"

	"irrigation/internal/types"
)

// CleanStats describes what Clean kept and dropped.
type CleanStats struct {
	Total   int `json:"total"`
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

// Clean validates the table schema and drops every row with a missing
// field, preserving the order of the rows it keeps.
//
// It returns an empty_dataset error when the table has no rows or no row
// survives, and a missing_data error when a required column is absent or
// has no value in any row.
func Clean(table *types.RecordTable) ([]types.Observation, CleanStats, error) {
	var stats CleanStats
	if table == nil {
		return nil, stats, types.NewAppError(types.ErrCodeEmptyDataset, "record source returned no table", nil)
	}
	stats.Total = len(table.Rows)
	if len(table.Rows) == 0 {
		return nil, stats, types.NewAppError(types.ErrCodeEmptyDataset, "record table has no rows", nil)
	}

	for _, col := range types.RequiredColumns {
		if !table.HasColumn(col) {
			return nil, stats, types.NewAppErrorWithDetails(types.ErrCodeMissingData,
				fmt.Sprintf("required column %q is absent", col), nil,
				map[string]any{"column": col, "columns": table.Columns})
		}
	}
	for _, col := range types.RequiredColumns {
		if columnEmpty(table.Rows, col) {
			return nil, stats, types.NewAppErrorWithDetails(types.ErrCodeMissingData,
				fmt.Sprintf("required column %q has no values", col), nil,
				map[string]any{"column": col})
		}
	}

	out := make([]types.Observation, 0, len(table.Rows))
	for _, r := range table.Rows {
		if !r.Complete() {
			stats.Dropped++
			continue
		}
		out = append(out, types.Observation{
			Date:            r.Date,
			TempMax:         *r.TempMax,
			TempMin:         *r.TempMin,
			TempMean:        *r.TempMean,
			PrecipitationMM: *r.PrecipitationMM,
			HumidityMean:    *r.HumidityMean,
			SoilMoisture:    *r.SoilMoisture,
			DaylightSeconds: *r.DaylightSeconds,
		})
	}
	stats.Kept = len(out)

	if len(out) == 0 {
		return nil, stats, types.NewAppErrorWithDetails(types.ErrCodeEmptyDataset,
			"no complete rows remain after cleaning", nil,
			map[string]any{"dropped": stats.Dropped})
	}
	return out, stats, nil
}

func columnEmpty(rows []types.RawObservation, col string) bool {
	for _, r := range rows {
		if has(r, col) {
			return false
		}
	}
	return true
}

func has(r types.RawObservation, col string) bool {
	switch col {
	case types.ColDate:
		return !r.Date.IsZero()
	case types.ColTempMax:
		return r.TempMax != nil
	case types.ColTempMin:
		return r.TempMin != nil
	case types.ColTempMean:
		return r.TempMean != nil
	case types.ColPrecipitationMM:
		return r.PrecipitationMM != nil
	case types.ColHumidityMean:
		return r.HumidityMean != nil
	case types.ColSoilMoisture:
		return r.SoilMoisture != nil
	case types.ColDaylightSeconds:
		return r.DaylightSeconds != nil
	}
	return false
}
