package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irrigation/internal/config"
	"irrigation/internal/dataset"
)

// archiveStub answers every window with complete synthetic days.
func archiveStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		start, _ := time.Parse(time.DateOnly, q.Get("start_date"))
		end, _ := time.Parse(time.DateOnly, q.Get("end_date"))

		daily := map[string]any{}
		var dates []string
		for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
			dates = append(dates, d.Format(time.DateOnly))
		}
		daily["time"] = dates
		for _, name := range strings.Split(q.Get("daily"), ",") {
			values := make([]float64, len(dates))
			for i := range values {
				values[i] = 0.2
			}
			daily[name] = values
		}
		json.NewEncoder(w).Encode(map[string]any{"daily": daily})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	cfg, err := config.LoadConfig(nil)
	require.NoError(t, err)
	return cfg
}

func TestParseOptions_Defaults(t *testing.T) {
	cfg := localConfig(t)

	opts, err := parseOptions(nil, cfg, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "ankara", opts.site)
	assert.Equal(t, 39.93, opts.query.Location.Lat)
	assert.Equal(t, "2020-01-01", opts.query.Start.Format(time.DateOnly))
	assert.Equal(t, "2024-12-31", opts.query.End.Format(time.DateOnly))
	assert.Equal(t, "weather_data.csv", opts.out)
}

func TestParseOptions_Errors(t *testing.T) {
	cfg := localConfig(t)

	for _, args := range [][]string{
		{"-start=2024-02-01", "-end=2024-01-01"},
		{"-start=", "-end=2024-01-01"},
		{"-site="},
		{"-upload"},
		{"-store"},
		{"-lat=abc"},
	} {
		_, err := parseOptions(args, cfg, io.Discard)
		assert.Error(t, err, args)
	}
}

func TestRun_WritesCompressedDataset(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	srv := archiveStub(t)
	out := filepath.Join(t.TempDir(), "history.csv.zst")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"-archive-url", srv.URL,
		"-start", "2023-12-30",
		"-end", "2024-01-02",
		"-out", out,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "wrote 4 days")

	table, err := dataset.FileSource{Path: out}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, table.Rows, 4)
	assert.Equal(t, "2024-01-02", table.Rows[3].Date.Format(time.DateOnly))
	require.NotNil(t, table.Rows[0].SoilMoisture)
	assert.Equal(t, 0.2, *table.Rows[0].SoilMoisture)
}
