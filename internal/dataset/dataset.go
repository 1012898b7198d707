// Package dataset reads and writes the historical weather CSV used for
// training. Columns are matched by header name, so extra columns are
// ignored and absent ones become missing values.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

// Columns is the header written by Write, in order.
var Columns = []string{
	"name", "datetime",
	"tempmax", "tempmin", "temp", "humidity", "sealevelpressure",
	"cloudcover", "visibility", "solarradiation", "windspeed", "precipprob",
	"sunrise", "sunset",
}

// ErrNoHeader is returned for an empty file.
var ErrNoHeader = errors.New("dataset has no header row")

const dateOnly = "2006-01-02"

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

// Load reads the CSV at path.
func Load(path string) ([]domain.WeatherObservation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	obs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read dataset %s: %w", path, err)
	}
	return obs, nil
}

// TrainingLoader returns a loader that reads path and engineers the training
// set on every call.
func TrainingLoader(path string) func(context.Context) (domain.TrainingSet, error) {
	return func(context.Context) (domain.TrainingSet, error) {
		obs, err := Load(path)
		if err != nil {
			return domain.TrainingSet{}, err
		}
		return domain.BuildTrainingSet(obs), nil
	}
}

// Read parses CSV rows into observations. Empty or "nan" cells and
// unparseable numbers become missing values; an unparseable datetime leaves
// Datetime zero for the training-set builder to resolve.
func Read(r io.Reader) ([]domain.WeatherObservation, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	var out []domain.WeatherObservation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, parseRow(rec, index))
	}
	return out, nil
}

func parseRow(rec []string, index map[string]int) domain.WeatherObservation {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	num := func(name string) *float64 { return parseNumber(cell(name)) }

	var o domain.WeatherObservation
	o.Datetime, o.HasTimeOfDay = parseDatetime(cell("datetime"))
	if t, _ := parseDatetime(cell("sunrise")); !t.IsZero() {
		o.Sunrise = &t
	}
	if t, _ := parseDatetime(cell("sunset")); !t.IsZero() {
		o.Sunset = &t
	}

	o.TempMax = num("tempmax")
	o.TempMin = num("tempmin")
	o.Temp = num("temp")
	o.Humidity = num("humidity")
	o.SeaLevelPressure = num("sealevelpressure")
	o.CloudCover = num("cloudcover")
	o.Visibility = num("visibility")
	o.SolarRadiation = num("solarradiation")
	o.WindSpeed = num("windspeed")
	o.PrecipProb = num("precipprob")
	return o
}

func parseNumber(s string) *float64 {
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseDatetime returns the zero time when s matches no known layout. The
// bool reports whether s carried a time of day.
func parseDatetime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Write emits observations as CSV with the Columns header. Missing values
// are written as empty cells.
func Write(w io.Writer, name string, obs []domain.WeatherObservation) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, o := range obs {
		dt := ""
		if !o.Datetime.IsZero() {
			if o.HasTimeOfDay {
				dt = o.Datetime.Format(timestampLayouts[0])
			} else {
				dt = o.Datetime.Format(dateOnly)
			}
		}
		rec := []string{
			name, dt,
			formatNumber(o.TempMax), formatNumber(o.TempMin), formatNumber(o.Temp),
			formatNumber(o.Humidity), formatNumber(o.SeaLevelPressure),
			formatNumber(o.CloudCover), formatNumber(o.Visibility),
			formatNumber(o.SolarRadiation), formatNumber(o.WindSpeed),
			formatNumber(o.PrecipProb),
			formatTime(o.Sunrise), formatTime(o.Sunset),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatNumber(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(timestampLayouts[0])
}
