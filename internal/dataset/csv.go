// Package dataset reads and writes the daily record table and turns raw
// rows into cleaned observations.
//
// Tables are CSV with a header row using the canonical column names from
// internal/types. Files and objects whose name ends in ".zst" are zstd
// compressed.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"irrigation/internal/features"
	"irrigation/internal/types"
)

// DateLayout is the layout of the date column.
const DateLayout = "2006-01-02"

// WriteColumns is the column order WriteCSV emits.
var WriteColumns = append(append([]string(nil), types.RequiredColumns...), types.ColMonth, types.ColSeason)

// ReadCSV parses a record table. Unknown columns are ignored; empty cells,
// infinities and the literals "NaN", "null" and "NA" are missing values. A
// cell that is present but unparseable is a validation_invalid_row error.
func ReadCSV(r io.Reader) (*types.RecordTable, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &types.RecordTable{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	table := &types.RecordTable{}
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		index[name] = i
		table.Columns = append(table.Columns, name)
	}

	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidRow,
				fmt.Sprintf("line %d: malformed csv record", line), err)
		}
		row, err := parseRow(rec, index)
		if err != nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidRow,
				fmt.Sprintf("line %d: %v", line, err), err,
				map[string]any{"line": line})
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func parseRow(rec []string, index map[string]int) (types.RawObservation, error) {
	var row types.RawObservation

	if cell, ok := lookup(rec, index, types.ColDate); ok {
		d, err := time.Parse(DateLayout, cell)
		if err != nil {
			return row, fmt.Errorf("column %s: %w", types.ColDate, err)
		}
		row.Date = d
	}

	fields := []struct {
		col string
		dst **float64
	}{
		{types.ColTempMax, &row.TempMax},
		{types.ColTempMin, &row.TempMin},
		{types.ColTempMean, &row.TempMean},
		{types.ColPrecipitationMM, &row.PrecipitationMM},
		{types.ColHumidityMean, &row.HumidityMean},
		{types.ColSoilMoisture, &row.SoilMoisture},
		{types.ColDaylightSeconds, &row.DaylightSeconds},
	}
	for _, f := range fields {
		cell, ok := lookup(rec, index, f.col)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return row, fmt.Errorf("column %s: %w", f.col, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		*f.dst = &v
	}
	return row, nil
}

// lookup returns the trimmed cell for col, or false when the column is absent
// or the cell holds a missing-value marker.
func lookup(rec []string, index map[string]int, col string) (string, bool) {
	i, ok := index[col]
	if !ok || i >= len(rec) {
		return "", false
	}
	cell := strings.TrimSpace(rec[i])
	switch strings.ToLower(cell) {
	case "", "nan", "null", "na", "none":
		return "", false
	}
	return cell, true
}

// WriteCSV writes rows with the WriteColumns header. Missing values are
// written as empty cells; month and season are derived from the date.
func WriteCSV(w io.Writer, rows []types.RawObservation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(WriteColumns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	rec := make([]string, len(WriteColumns))
	for _, r := range rows {
		rec[0] = r.Date.Format(DateLayout)
		for i, v := range []*float64{r.TempMax, r.TempMin, r.TempMean, r.PrecipitationMM, r.HumidityMean, r.SoilMoisture, r.DaylightSeconds} {
			rec[i+1] = formatCell(v)
		}
		month := int(r.Date.Month())
		rec[len(rec)-2] = strconv.Itoa(month)
		rec[len(rec)-1] = strconv.Itoa(int(features.SeasonOf(month)))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write csv row %s: %w", rec[0], err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
