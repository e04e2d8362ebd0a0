// Command export fetches enriched routes from a running route conditions
// server and flattens them into CSV, one row per route point, for offline
// risk model training.
//
// Input is a CSV of origin,destination[,mode] rows; a leading header row is
// skipped.
//
// Usage:
//
//	go run ./cmd/export \
//	  -in data/trips.csv \
//	  -out data/route_points.csv \
//	  -api http://localhost:8000
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/route-conditions-service/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const maxAttempts = 3

var header = []string{
	"route_id", "summary", "mode", "index", "lat", "lon",
	"temperature", "windspeed", "weathercode", "weather", "weather_error",
	"road_name", "road_type", "surface", "road_condition", "risk",
}

type tripRequest struct {
	Origin      string
	Destination string
	Mode        string
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "input CSV of origin,destination[,mode] rows")
	out := flag.String("out", "", "output CSV path (default stdout)")
	api := flag.String("api", "http://localhost:8000", "route conditions server base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "per-request timeout")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		return errors.New("missing required flag: -in")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	defer f.Close()

	trips, err := readTrips(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", *in, err)
	}

	var dst io.Writer = os.Stdout
	if *out != "" {
		outFile, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer outFile.Close()
		dst = outFile
	}

	ctx := context.Background()
	client := &http.Client{Timeout: *timeout}
	w := csv.NewWriter(dst)
	if err := w.Write(header); err != nil {
		return err
	}

	var points int
	for _, trip := range trips {
		routes, err := fetchRoutes(ctx, client, *api, trip)
		if err != nil {
			log.Printf("%s -> %s: %v", trip.Origin, trip.Destination, err)
			continue
		}
		for _, r := range routes {
			for _, row := range routeRows(r) {
				if err := w.Write(row); err != nil {
					return err
				}
				points++
			}
		}
		log.Printf("%s -> %s: %d routes", trip.Origin, trip.Destination, len(routes))
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	log.Printf("total: %d trips, %d points", len(trips), points)
	return nil
}

func readTrips(r io.Reader) ([]tripRequest, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	trips := make([]tripRequest, 0, len(records))
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && strings.EqualFold(rec[0], "origin") {
			continue
		}
		if len(rec) < 2 || rec[0] == "" || rec[1] == "" {
			return nil, fmt.Errorf("line %d: want origin,destination[,mode]", i+1)
		}
		t := tripRequest{Origin: rec[0], Destination: rec[1], Mode: string(domain.ModeDriving)}
		if len(rec) > 2 && rec[2] != "" {
			t.Mode = string(domain.NormalizeMode(rec[2]))
		}
		trips = append(trips, t)
	}
	return trips, nil
}

// fetchRoutes calls GET /routes, retrying server errors with backoff.
func fetchRoutes(ctx context.Context, client *http.Client, api string, trip tripRequest) ([]domain.Route, error) {
	q := url.Values{}
	q.Set("origin", trip.Origin)
	q.Set("destination", trip.Destination)
	q.Set("mode", trip.Mode)
	target := strings.TrimRight(api, "/") + "/routes?" + q.Encode()

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		routes, retryable, err := getRoutes(ctx, client, target)
		if err == nil {
			return routes, nil
		}
		lastErr = err
		if !retryable || attempt == maxAttempts {
			break
		}
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, 5*time.Second)
	}
	return nil, lastErr
}

func getRoutes(ctx context.Context, client *http.Client, target string) ([]domain.Route, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return nil, resp.StatusCode >= 500, fmt.Errorf("status %d: %s", resp.StatusCode, body.Error)
	}

	var routes []domain.Route
	if err := json.NewDecoder(resp.Body).Decode(&routes); err != nil {
		return nil, false, fmt.Errorf("decode routes: %w", err)
	}
	return routes, false, nil
}

func routeRows(r domain.Route) [][]string {
	rows := make([][]string, len(r.Conditions))
	for i, c := range r.Conditions {
		var temp, wind, code string
		if cw := c.Weather.CurrentWeather; cw != nil {
			temp = formatFloat(cw.Temperature)
			wind = formatFloat(cw.WindSpeed)
			code = strconv.Itoa(cw.WeatherCode)
		}
		var risk string
		if i < len(r.Risk) {
			risk = strconv.FormatFloat(r.Risk[i], 'f', 4, 64)
		}
		rows[i] = []string{
			r.ID, r.Summary, string(r.Mode), strconv.Itoa(i),
			strconv.FormatFloat(c.Lat, 'f', 5, 64), strconv.FormatFloat(c.Lon, 'f', 5, 64),
			temp, wind, code, c.Weather.Summarize().Summary, c.Weather.Error,
			c.Road.Name, c.Road.RoadType, c.Road.Surface, c.Road.Condition, risk,
		}
	}
	return rows
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
