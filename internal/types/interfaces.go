package types

import "context"

// Logger is the subset of *slog.Logger used by components that accept an
// injected logger without depending on slog directly.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// RecordSource supplies the raw daily rows for one site. Implementations are
// the only blocking step of a run.
type RecordSource interface {
	// Load returns the rows in their stored order together with the set of
	// column names the source actually provides.
	Load(ctx context.Context) (*RecordTable, error)
}

// RecordTable is the raw table returned by a RecordSource.
type RecordTable struct {
	Columns []string
	Rows    []RawObservation
}

// HasColumn reports whether the table declares the named column.
func (t *RecordTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
