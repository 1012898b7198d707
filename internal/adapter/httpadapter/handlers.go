// Package httpadapter serves the streetlight API over HTTP.
package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/streetlight-predictor/internal/adapter/thingspeak"
	"github.com/couchcryptid/streetlight-predictor/internal/control"
	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/oracle"
)

const (
	defaultLogResults   = 20
	maxLogResults       = 8000
	defaultRecentLimit  = 20
	maxRecentLimit      = 500
	maxControlBodyBytes = 4096
)

// Predictor serves predictions and model introspection.
type Predictor interface {
	Predict(ctx context.Context) (domain.PredictionReport, error)
	FeatureImportance(ctx context.Context) ([]oracle.FeatureScore, error)
	TrainingMetrics(ctx context.Context) (oracle.Metrics, error)
	CheckReadiness(ctx context.Context) error
}

// SensorFeed reads raw entries from the IoT channel.
type SensorFeed interface {
	Latest(ctx context.Context) (domain.SensorLogEntry, error)
	Feeds(ctx context.Context, n int) ([]domain.SensorLogEntry, error)
}

// WeatherSummarizer builds the dashboard weather summary.
type WeatherSummarizer interface {
	Summarize(ctx context.Context, location string) domain.WeatherSummary
}

// LightController relays user light overrides.
type LightController interface {
	SetLights(ctx context.Context, raw json.RawMessage) (domain.Override, error)
}

// PredictionLog lists recently served predictions.
type PredictionLog interface {
	Recent(ctx context.Context, limit int) ([]domain.PredictionRecord, error)
}

// Handlers holds the collaborators behind the API routes. Sensors and Log
// may be nil when the channel or the prediction store is not configured.
type Handlers struct {
	Predictor Predictor
	Sensors   SensorFeed
	Weather   WeatherSummarizer
	Control   LightController
	Log       PredictionLog
	Logger    *slog.Logger
}

type errorResponse struct {
	Error   string `json:"error"`
	Status  string `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}

func (h *Handlers) predict(w http.ResponseWriter, r *http.Request) {
	report, err := h.Predictor.Predict(r.Context())
	if err != nil {
		h.Logger.Error("prediction failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}

func (h *Handlers) fetchWeatherData(w http.ResponseWriter, r *http.Request) {
	summary := h.Weather.Summarize(r.Context(), r.URL.Query().Get("location"))
	sharedobs.WriteJSON(w, http.StatusOK, summary)
}

type sensorDataResponse struct {
	AmbientLight float64 `json:"ambient_light_sensor"`
	Motion       int     `json:"motion_sensor"`
	Timestamp    string  `json:"timestamp"`
	Status       string  `json:"status"`
}

func (h *Handlers) sensorData(w http.ResponseWriter, r *http.Request) {
	if h.Sensors == nil {
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "ThingSpeak channel not configured"})
		return
	}
	entry, err := h.Sensors.Latest(r.Context())
	if err != nil {
		h.writeSensorError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, sensorDataResponse{
		AmbientLight: entry.AmbientLight,
		Motion:       entry.Motion,
		Timestamp:    entry.Timestamp,
		Status:       "success",
	})
}

type sensorLogsResponse struct {
	Status       string                  `json:"status"`
	LiveLogs     []domain.SensorLogEntry `json:"live_logs"`
	TotalEntries int                     `json:"total_entries"`
	LastUpdated  *string                 `json:"last_updated"`
}

func (h *Handlers) sensorLogs(w http.ResponseWriter, r *http.Request) {
	if h.Sensors == nil {
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "ThingSpeak channel not configured"})
		return
	}
	n, err := intParam(r, "results", defaultLogResults, maxLogResults)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	entries, err := h.Sensors.Feeds(r.Context(), n)
	if err != nil {
		if errors.Is(err, thingspeak.ErrNoFeeds) {
			sharedobs.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "No live data available from ThingSpeak"})
			return
		}
		h.writeSensorError(w, err)
		return
	}

	slices.Reverse(entries)
	resp := sensorLogsResponse{Status: "success", LiveLogs: entries, TotalEntries: len(entries)}
	if len(entries) > 0 {
		resp.LastUpdated = &entries[0].Timestamp
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handlers) writeSensorError(w http.ResponseWriter, err error) {
	h.Logger.Warn("sensor channel request failed", "upstream", "thingspeak", "error", err)

	var statusErr *thingspeak.StatusError
	switch {
	case errors.Is(err, thingspeak.ErrNoFeeds):
		sharedobs.WriteJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, thingspeak.ErrMissingFields):
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case thingspeak.IsTimeout(err):
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: "Request to ThingSpeak timed out"})
	case errors.As(err, &statusErr):
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: statusErr.Error()})
	case errors.Is(err, thingspeak.ErrInvalidField):
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Invalid data format: %v", err)})
	default:
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("Unable to reach ThingSpeak: %v", err)})
	}
}

type lightControlRequest struct {
	LightsOn json.RawMessage `json:"lights_on"`
}

type lightControlResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	domain.Override
}

func (h *Handlers) updateLightControl(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxControlBodyBytes))
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Status: "error"})
		return
	}
	var req lightControlRequest
	if err := json.Unmarshal(body, &req); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON in request body", Status: "error"})
		return
	}

	o, err := h.Control.SetLights(r.Context(), req.LightsOn)
	if err != nil {
		status, msg := controlErrorStatus(err)
		sharedobs.WriteJSON(w, status, errorResponse{Error: msg, Status: "error", Details: err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, lightControlResponse{
		Status:   "success",
		Message:  "Light control updated successfully",
		Override: o,
	})
}

func controlErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, control.ErrInvalidLightsOn):
		return http.StatusBadRequest, "Invalid lights_on value. Must be 0 or 1."
	case errors.Is(err, control.ErrTimeout):
		return http.StatusGatewayTimeout, "ThingSpeak request timed out"
	case errors.Is(err, control.ErrUnavailable):
		return http.StatusServiceUnavailable, "Failed to connect to ThingSpeak"
	case errors.Is(err, control.ErrWriteFailed):
		return http.StatusInternalServerError, "ThingSpeak write failed"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

type modelResponse struct {
	Metrics           oracle.Metrics        `json:"metrics"`
	FeatureImportance []oracle.FeatureScore `json:"feature_importance"`
}

func (h *Handlers) model(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.Predictor.TrainingMetrics(r.Context())
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	importance, err := h.Predictor.FeatureImportance(r.Context())
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, modelResponse{Metrics: metrics, FeatureImportance: importance})
}

func (h *Handlers) predictions(w http.ResponseWriter, r *http.Request) {
	if h.Log == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "prediction log not enabled"})
		return
	}
	limit, err := intParam(r, "limit", defaultRecentLimit, maxRecentLimit)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	records, err := h.Log.Recent(r.Context(), limit)
	if err != nil {
		h.Logger.Error("list predictions failed", "error", err)
		sharedobs.WriteJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	if records == nil {
		records = []domain.PredictionRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{"predictions": records, "count": len(records)})
}

// intParam parses a positive integer query parameter, capped at hi.
func intParam(r *http.Request, name string, def, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", name)
	}
	return min(n, hi), nil
}
