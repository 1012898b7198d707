package domain

import (
	"errors"
	"time"
)

// ErrModelNotTrained is returned when a prediction is requested before the
// regression model has been fitted. It is a precondition failure, distinct
// from any data error.
var ErrModelNotTrained = errors.New("model not trained")

// DebugInfo accompanies a served prediction.
type DebugInfo struct {
	Trace         Trace              `json:"cascade"`
	InputFeatures map[string]float64 `json:"input_features"`
	Season        int                `json:"season"`
	Warnings      []string           `json:"feature_warnings"`
	DataSources   DataSources        `json:"data_sources"`
	Timestamp     time.Time          `json:"timestamp"`
}

// DataSources describes where each input came from.
type DataSources struct {
	Location          string            `json:"location"`
	External          map[string]Source `json:"external"`
	Sensor            Source            `json:"sensor"`
	CurrentConditions *CurrentWeather   `json:"current_conditions,omitempty"`
}

// PredictionReport is the full response of a served prediction.
type PredictionReport struct {
	ID string `json:"id"`
	PredictionResult
	DebugInfo DebugInfo `json:"debug_info"`
}

// PredictionRecord is the persisted/published summary of one prediction.
type PredictionRecord struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	BasePrediction     float64   `json:"base_prediction"`
	Intensity          float64   `json:"intensity"`
	LightsOn           bool      `json:"lights_on"`
	Confidence         float64   `json:"confidence"`
	AdjustmentsApplied bool      `json:"adjustments_applied"`
}

// Record summarizes the report for persistence.
func (r PredictionReport) Record() PredictionRecord {
	return PredictionRecord{
		ID:                 r.ID,
		Timestamp:          r.DebugInfo.Timestamp,
		BasePrediction:     r.DebugInfo.Trace.BasePrediction,
		Intensity:          r.RecommendedIntensity,
		LightsOn:           r.LightsShouldBeOn,
		Confidence:         r.Confidence,
		AdjustmentsApplied: r.DebugInfo.Trace.AdjustmentsApplied,
	}
}
