package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/streetlight-predictor/internal/adapter/httpadapter"
	"github.com/couchcryptid/streetlight-predictor/internal/adapter/thingspeak"
	"github.com/couchcryptid/streetlight-predictor/internal/control"
	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/oracle"
)

// --- mocks ---

type mockPredictor struct {
	report   domain.PredictionReport
	err      error
	readyErr error
}

func (m *mockPredictor) Predict(context.Context) (domain.PredictionReport, error) {
	return m.report, m.err
}

func (m *mockPredictor) FeatureImportance(context.Context) ([]oracle.FeatureScore, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []oracle.FeatureScore{{Feature: "solarradiation", Importance: 0.7}, {Feature: "hour", Importance: 0.3}}, nil
}

func (m *mockPredictor) TrainingMetrics(context.Context) (oracle.Metrics, error) {
	if m.err != nil {
		return oracle.Metrics{}, m.err
	}
	return oracle.Metrics{MAE: 1.5, R2: 0.9, TrainRows: 80, TestRows: 20, Oracle: "gbt"}, nil
}

func (m *mockPredictor) CheckReadiness(context.Context) error { return m.readyErr }

type mockSensors struct {
	latest domain.SensorLogEntry
	feeds  []domain.SensorLogEntry
	err    error
	gotN   int
}

func (m *mockSensors) Latest(context.Context) (domain.SensorLogEntry, error) {
	return m.latest, m.err
}

func (m *mockSensors) Feeds(_ context.Context, n int) ([]domain.SensorLogEntry, error) {
	m.gotN = n
	return m.feeds, m.err
}

type mockWeather struct{ gotLocation string }

func (m *mockWeather) Summarize(_ context.Context, location string) domain.WeatherSummary {
	m.gotLocation = location
	return domain.WeatherSummary{AmbientLight: 39000, CloudCover: 50, AQI: 95, VehicleCount: 12, PedestrianCount: 30, Motion: 1}
}

type mockControl struct {
	override domain.Override
	err      error
	gotRaw   string
}

func (m *mockControl) SetLights(_ context.Context, raw json.RawMessage) (domain.Override, error) {
	m.gotRaw = string(raw)
	return m.override, m.err
}

type mockLog struct {
	records  []domain.PredictionRecord
	gotLimit int
}

func (m *mockLog) Recent(_ context.Context, limit int) ([]domain.PredictionRecord, error) {
	m.gotLimit = limit
	return m.records, nil
}

type fixture struct {
	predictor *mockPredictor
	sensors   *mockSensors
	weather   *mockWeather
	control   *mockControl
	log       *mockLog
}

func newFixture() *fixture {
	return &fixture{
		predictor: &mockPredictor{},
		sensors:   &mockSensors{},
		weather:   &mockWeather{},
		control:   &mockControl{},
		log:       &mockLog{},
	}
}

func (f *fixture) server() *httpadapter.Server {
	return httpadapter.NewServer(":0", &httpadapter.Handlers{
		Predictor: f.predictor,
		Sensors:   f.sensors,
		Weather:   f.weather,
		Control:   f.control,
		Log:       f.log,
		Logger:    slog.Default(),
	}, slog.Default())
}

func do(t *testing.T, srv http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

// --- tests ---

func TestHealthzReturns200(t *testing.T) {
	rec, body := do(t, newFixture().server(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzFollowsPredictor(t *testing.T) {
	f := newFixture()
	rec, body := do(t, f.server(), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])

	f.predictor.readyErr = errors.New("model has not been trained yet")
	rec, body = do(t, f.server(), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "model has not been trained yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec, _ := do(t, newFixture().server(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestPredict(t *testing.T) {
	f := newFixture()
	f.predictor.report = domain.PredictionReport{
		ID:               "p-1",
		PredictionResult: domain.PredictionResult{RecommendedIntensity: 80, LightsShouldBeOn: true, Confidence: 0.6},
		DebugInfo:        domain.DebugInfo{Timestamp: time.Date(2024, 6, 10, 19, 0, 0, 0, time.UTC)},
	}

	rec, body := do(t, f.server(), http.MethodGet, "/predict/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 80, body["recommended_intensity"], 0)
	assert.Equal(t, true, body["lights_should_be_on"])
	assert.InDelta(t, 0.6, body["confidence"], 1e-9)
	assert.Contains(t, body, "debug_info")
}

func TestPredict_ErrorIs500(t *testing.T) {
	f := newFixture()
	f.predictor.err = fmt.Errorf("%w: load training data: missing file", domain.ErrModelNotTrained)

	rec, body := do(t, f.server(), http.MethodGet, "/predict/", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, body["error"], "model not trained")
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	rec, _ := do(t, newFixture().server(), http.MethodPost, "/predict/", "{}")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFetchWeatherData(t *testing.T) {
	f := newFixture()

	rec, body := do(t, f.server(), http.MethodGet, "/fetch_weather_data/?location=Mutare,ZW", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mutare,ZW", f.weather.gotLocation)
	assert.InDelta(t, 39000, body["ambient_light"], 0)
	assert.InDelta(t, 95, body["aqi"], 0)
	assert.NotContains(t, body, "error")
}

func TestSensorData(t *testing.T) {
	f := newFixture()
	f.sensors.latest = domain.SensorLogEntry{EntryID: 7, AmbientLight: 42.5, Motion: 1, Timestamp: "2024-06-10T18:00:00Z"}

	rec, body := do(t, f.server(), http.MethodGet, "/get_sensor_data_from_thingspeak/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 42.5, body["ambient_light_sensor"], 0)
	assert.InDelta(t, 1, body["motion_sensor"], 0)
	assert.Equal(t, "2024-06-10T18:00:00Z", body["timestamp"])
	assert.Equal(t, "success", body["status"])
}

func TestSensorData_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"no feeds", thingspeak.ErrNoFeeds, http.StatusNotFound},
		{"missing fields", thingspeak.ErrMissingFields, http.StatusBadRequest},
		{"non-finite field", fmt.Errorf("%w: field1=%q", thingspeak.ErrInvalidField, "nan"), http.StatusInternalServerError},
		{"timeout", context.DeadlineExceeded, http.StatusInternalServerError},
		{"status", &thingspeak.StatusError{StatusCode: 401, Body: "unauthorized"}, http.StatusInternalServerError},
		{"connection", errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.sensors.err = tt.err

			rec, body := do(t, f.server(), http.MethodGet, "/get_sensor_data_from_thingspeak/", "")

			assert.Equal(t, tt.code, rec.Code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSensorData_NotConfigured(t *testing.T) {
	srv := httpadapter.NewServer(":0", &httpadapter.Handlers{
		Predictor: &mockPredictor{},
		Weather:   &mockWeather{},
		Control:   &mockControl{},
		Logger:    slog.Default(),
	}, slog.Default())

	rec, body := do(t, srv, http.MethodGet, "/get_sensor_data_from_thingspeak/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ThingSpeak channel not configured", body["error"])

	rec, _ = do(t, srv, http.MethodGet, "/sensor-logs/live/", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec, _ = do(t, srv, http.MethodGet, "/predictions/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSensorLogs_NewestFirst(t *testing.T) {
	f := newFixture()
	f.sensors.feeds = []domain.SensorLogEntry{
		{EntryID: 1, AmbientLight: 10, Timestamp: "2024-06-10T17:00:00Z"},
		{EntryID: 2, AmbientLight: 20, Timestamp: "2024-06-10T17:30:00Z"},
		{EntryID: 3, AmbientLight: 30, Motion: 1, Timestamp: "2024-06-10T18:00:00Z"},
	}

	rec, body := do(t, f.server(), http.MethodGet, "/sensor-logs/live/?results=3", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, f.sensors.gotN)
	assert.Equal(t, "success", body["status"])
	assert.InDelta(t, 3, body["total_entries"], 0)
	assert.Equal(t, "2024-06-10T18:00:00Z", body["last_updated"])

	logs, ok := body["live_logs"].([]any)
	require.True(t, ok)
	require.Len(t, logs, 3)
	first := logs[0].(map[string]any)
	assert.InDelta(t, 3, first["entry_id"], 0)
	assert.InDelta(t, 30, first["ambient_light_sensor"], 0)
}

func TestSensorLogs_DefaultsAndValidation(t *testing.T) {
	f := newFixture()
	f.sensors.feeds = []domain.SensorLogEntry{{EntryID: 1}}

	rec, _ := do(t, f.server(), http.MethodGet, "/sensor-logs/live/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20, f.sensors.gotN)

	rec, _ = do(t, f.server(), http.MethodGet, "/sensor-logs/live/?results=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.sensors.err = thingspeak.ErrNoFeeds
	rec, body := do(t, f.server(), http.MethodGet, "/sensor-logs/live/", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No live data available from ThingSpeak", body["error"])
}

func TestUpdateLightControl_Success(t *testing.T) {
	f := newFixture()
	ts := time.Date(2024, 6, 10, 19, 0, 0, 0, time.UTC)
	f.control.override = domain.Override{LightsOn: 1, UserOverride: 1, EntryID: "4711", Timestamp: ts}

	rec, body := do(t, f.server(), http.MethodPost, "/update_light_control/", `{"lights_on": 1}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", f.control.gotRaw)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Light control updated successfully", body["message"])
	assert.InDelta(t, 1, body["lights_on"], 0)
	assert.InDelta(t, 1, body["user_override"], 0)
	assert.Equal(t, "4711", body["thingspeak_entry_id"])
	assert.Equal(t, "2024-06-10T19:00:00Z", body["timestamp"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUpdateLightControl_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"invalid json", `{"lights_on":`, nil, http.StatusBadRequest},
		{"invalid value", `{"lights_on": 2}`, control.ErrInvalidLightsOn, http.StatusBadRequest},
		{"timeout", `{"lights_on": 1}`, fmt.Errorf("%w: deadline", control.ErrTimeout), http.StatusGatewayTimeout},
		{"unavailable", `{"lights_on": 1}`, fmt.Errorf("%w: refused", control.ErrUnavailable), http.StatusServiceUnavailable},
		{"rejected", `{"lights_on": 0}`, fmt.Errorf("%w: entry 0", control.ErrWriteFailed), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.control.err = tt.err

			rec, body := do(t, f.server(), http.MethodPost, "/update_light_control/", tt.body)

			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestUpdateLightControl_Preflight(t *testing.T) {
	rec, body := do(t, newFixture().server(), http.MethodOptions, "/update_light_control/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Accept", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestModel(t *testing.T) {
	rec, body := do(t, newFixture().server(), http.MethodGet, "/model/", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	metrics := body["metrics"].(map[string]any)
	assert.Equal(t, "gbt", metrics["oracle"])
	importance := body["feature_importance"].([]any)
	require.Len(t, importance, 2)
	assert.Equal(t, "solarradiation", importance[0].(map[string]any)["feature"])
}

func TestPredictions(t *testing.T) {
	f := newFixture()
	f.log.records = []domain.PredictionRecord{{ID: "b"}, {ID: "a"}}

	rec, body := do(t, f.server(), http.MethodGet, "/predictions/?limit=1000", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, f.log.gotLimit)
	assert.InDelta(t, 2, body["count"], 0)

	rec, _ = do(t, f.server(), http.MethodGet, "/predictions/?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
