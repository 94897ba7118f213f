package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"irrigation/internal/types"
)

// openMeteoArchiveBase is the default historical weather archive endpoint.
// Overridable in tests via OpenMeteoConfig.BaseURL.
const openMeteoArchiveBase = "https://archive-api.open-meteo.com"

const archivePath = "/v1/archive"

// DailyVariables are the archive variables requested for every day, in the
// order they map onto the record table columns.
var DailyVariables = []string{
	"temperature_2m_max",
	"temperature_2m_min",
	"temperature_2m_mean",
	"precipitation_sum",
	"relative_humidity_2m_mean",
	"soil_moisture_0_to_7cm_mean",
	"daylight_duration",
}

// DefaultLocation is the site the reference dataset was collected for.
var DefaultLocation = types.Location{Lat: 39.93, Lon: 32.86, Timezone: "Europe/Istanbul"}

// ArchiveQuery selects a site and an inclusive date range.
type ArchiveQuery struct {
	Location types.Location
	Start    time.Time
	End      time.Time
}

// Validate checks that the range is non-empty.
func (q ArchiveQuery) Validate() error {
	if q.Start.IsZero() || q.End.IsZero() || q.End.Before(q.Start) {
		return types.NewAppError(types.ErrCodeValidationDateRange,
			fmt.Sprintf("invalid date range %s..%s", q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly)), nil)
	}
	return nil
}

// YearWindows splits the range into calendar-year windows, the unit the
// client fetches in parallel.
func (q ArchiveQuery) YearWindows() []ArchiveQuery {
	var out []ArchiveQuery
	start := q.Start
	for !start.After(q.End) {
		end := time.Date(start.Year(), time.December, 31, 0, 0, 0, 0, start.Location())
		if end.After(q.End) {
			end = q.End
		}
		out = append(out, ArchiveQuery{Location: q.Location, Start: start, End: end})
		start = end.AddDate(0, 0, 1)
	}
	return out
}

// OpenMeteoConfig holds the configuration for creating an OpenMeteoClient.
type OpenMeteoConfig struct {
	BaseURL     string // Override for testing; defaults to openMeteoArchiveBase
	MaxParallel int    // Concurrent year windows; defaults to 4
	Logger      *slog.Logger
}

// archiveResponse is the subset of the archive payload we decode.
type archiveResponse struct {
	Daily map[string]json.RawMessage `json:"daily"`
}

// OpenMeteoClient fetches daily observations from the Open-Meteo archive
// through BaseClient.
type OpenMeteoClient struct {
	base        *BaseClient
	baseURL     string
	maxParallel int
	logger      *slog.Logger
}

// NewOpenMeteoClient creates an OpenMeteoClient with the archive retry policy.
func NewOpenMeteoClient(httpClient *http.Client, cfg OpenMeteoConfig) *OpenMeteoClient {
	base := NewBaseClient(
		httpClient,
		"open-meteo-archive",
		DefaultRetryPolicy(),
		"irrigation-distiller/1.0",
	)
	return NewOpenMeteoClientWithBase(base, cfg)
}

// NewOpenMeteoClientWithBase creates an OpenMeteoClient with a pre-configured
// BaseClient.
func NewOpenMeteoClientWithBase(base *BaseClient, cfg OpenMeteoConfig) *OpenMeteoClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openMeteoArchiveBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	parallel := cfg.MaxParallel
	if parallel <= 0 {
		parallel = 4
	}
	return &OpenMeteoClient{
		base:        base,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		maxParallel: parallel,
		logger:      logger,
	}
}

// FetchDaily returns one row per day of q in date order. Values the archive
// reports as null are left nil. Year windows are fetched concurrently; the
// first failure cancels the rest.
func (c *OpenMeteoClient) FetchDaily(ctx context.Context, q ArchiveQuery) ([]types.RawObservation, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	windows := q.YearWindows()
	results := make([][]types.RawObservation, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)
	for i, w := range windows {
		g.Go(func() error {
			rows, err := c.fetchWindow(gctx, w)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []types.RawObservation
	for _, rows := range results {
		out = append(out, rows...)
	}
	c.logger.InfoContext(ctx, "fetched archive observations",
		"lat", q.Location.Lat,
		"lon", q.Location.Lon,
		"windows", len(windows),
		"rows", len(out),
	)
	return out, nil
}

func (c *OpenMeteoClient) fetchWindow(ctx context.Context, q ArchiveQuery) ([]types.RawObservation, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%g", q.Location.Lat))
	params.Set("longitude", fmt.Sprintf("%g", q.Location.Lon))
	params.Set("start_date", q.Start.Format(time.DateOnly))
	params.Set("end_date", q.End.Format(time.DateOnly))
	params.Set("daily", strings.Join(DailyVariables, ","))
	if q.Location.Timezone != "" {
		params.Set("timezone", q.Location.Timezone)
	}

	resp, err := c.base.Get(ctx, c.baseURL+archivePath+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeatherArchive, "failed to read archive response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamWeatherArchive,
			fmt.Sprintf("archive returned %d", resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode, "body": truncate(string(body), 256)})
	}

	rows, err := decodeDaily(body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeatherArchive,
			fmt.Sprintf("failed to decode archive window %s..%s", q.Start.Format(time.DateOnly), q.End.Format(time.DateOnly)), err)
	}
	return rows, nil
}

// decodeDaily converts the column-oriented daily block into rows.
func decodeDaily(body []byte) ([]types.RawObservation, error) {
	var ar archiveResponse
	if err := json.Unmarshal(body, &ar); err != nil {
		return nil, err
	}

	var dates []string
	if raw, ok := ar.Daily["time"]; ok {
		if err := json.Unmarshal(raw, &dates); err != nil {
			return nil, fmt.Errorf("daily.time: %w", err)
		}
	}

	rows := make([]types.RawObservation, len(dates))
	for i, d := range dates {
		t, err := time.Parse(time.DateOnly, d)
		if err != nil {
			return nil, fmt.Errorf("daily.time[%d]: %w", i, err)
		}
		rows[i].Date = t
	}

	for _, name := range DailyVariables {
		raw, ok := ar.Daily[name]
		if !ok {
			continue
		}
		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("daily.%s: %w", name, err)
		}
		if len(values) != len(rows) {
			return nil, fmt.Errorf("daily.%s has %d values for %d days", name, len(values), len(rows))
		}
		for i, v := range values {
			assign(&rows[i], name, v)
		}
	}
	return rows, nil
}

func assign(r *types.RawObservation, variable string, v *float64) {
	switch variable {
	case "temperature_2m_max":
		r.TempMax = v
	case "temperature_2m_min":
		r.TempMin = v
	case "temperature_2m_mean":
		r.TempMean = v
	case "precipitation_sum":
		r.PrecipitationMM = v
	case "relative_humidity_2m_mean":
		r.HumidityMean = v
	case "soil_moisture_0_to_7cm_mean":
		r.SoilMoisture = v
	case "daylight_duration":
		r.DaylightSeconds = v
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ArchiveSource adapts OpenMeteoClient to types.RecordSource.
type ArchiveSource struct {
	Client *OpenMeteoClient
	Query  ArchiveQuery
}

// Load implements types.RecordSource. The archive always declares every
// required column; missing days surface as nil values.
func (s ArchiveSource) Load(ctx context.Context) (*types.RecordTable, error) {
	rows, err := s.Client.FetchDaily(ctx, s.Query)
	if err != nil {
		return nil, err
	}
	return &types.RecordTable{
		Columns: append([]string(nil), types.RequiredColumns...),
		Rows:    rows,
	}, nil
}
