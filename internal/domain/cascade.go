package domain

import (
	"fmt"
	"math"
)

// Cascade thresholds.
const (
	poorAirQualityAQI  = 100.0
	poorAirQualityGain = 1.2
	trafficDivisor     = 20.0
	darkAmbientLight   = 20.0
	brightAmbientLight = 70.0
	darkMinIntensity   = 80.0
	brightMaxIntensity = 30.0
	motionMinIntensity = 60.0

	lightsOnThreshold = 15.0
	midpoint          = 50.0
)

// Rule names, in application order.
const (
	RuleAirQuality   = "air_quality"
	RuleTraffic      = "traffic"
	RuleAmbientLight = "ambient_light"
	RuleMotion       = "motion"
)

// Rule is one pure intensity transform in the cascade.
type Rule struct {
	Name   string
	Detail string
	Apply  func(intensity float64) float64
}

// Step records one rule application for the debug trace.
type Step struct {
	Rule   string  `json:"rule"`
	Detail string  `json:"detail,omitempty"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Fired  bool    `json:"fired"`
}

// PredictionResult is the bounded recommendation returned to callers.
// Confidence is a distance-from-midpoint heuristic, |intensity-50|/50, not a
// calibrated probability.
type PredictionResult struct {
	RecommendedIntensity float64 `json:"recommended_intensity"`
	LightsShouldBeOn     bool    `json:"lights_should_be_on"`
	Confidence           float64 `json:"confidence"`
}

// Trace is the debug view of a cascade run.
type Trace struct {
	BasePrediction     float64 `json:"base_prediction"`
	FinalPrediction    float64 `json:"final_prediction"`
	AdjustmentsApplied bool    `json:"adjustments_applied"`
	Steps              []Step  `json:"steps"`
}

// Rules returns the ordered cascade for the given context. A nil external
// context drops the air-quality and traffic rules; a nil sensor reading drops
// the ambient-light and motion rules. Missing fields inside a present context
// take defaults (AQI 50, zero traffic, ambient 50, no motion).
func Rules(external *ExternalContext, sensor *SensorReading) []Rule {
	var rules []Rule
	if external != nil {
		aqi := external.AQI()
		peds, vehicles := external.TrafficCounts()
		rules = append(rules,
			Rule{Name: RuleAirQuality, Detail: fmt.Sprintf("aqi=%g", aqi), Apply: airQualityRule(aqi)},
			Rule{Name: RuleTraffic, Detail: fmt.Sprintf("pedestrians=%d vehicles=%d", peds, vehicles), Apply: trafficRule(peds, vehicles)},
		)
	}
	if sensor != nil {
		ambient := sensor.AmbientLightOrDefault()
		motion := sensor.MotionDetected()
		rules = append(rules,
			Rule{Name: RuleAmbientLight, Detail: fmt.Sprintf("ambient=%g", ambient), Apply: ambientLightRule(ambient)},
			Rule{Name: RuleMotion, Detail: fmt.Sprintf("motion=%t", motion), Apply: motionRule(motion)},
		)
	}
	return rules
}

// Adjust runs the cascade over base and returns the bounded recommendation.
func Adjust(base float64, external *ExternalContext, sensor *SensorReading) PredictionResult {
	result, _ := AdjustDebug(base, external, sensor)
	return result
}

// AdjustDebug runs the cascade and also returns the per-rule trace. Each rule
// consumes the previous rule's output, never the base value.
func AdjustDebug(base float64, external *ExternalContext, sensor *SensorReading) (PredictionResult, Trace) {
	rules := Rules(external, sensor)
	trace := Trace{BasePrediction: base, Steps: make([]Step, 0, len(rules))}

	intensity := base
	for _, r := range rules {
		next := r.Apply(intensity)
		fired := next != intensity
		trace.Steps = append(trace.Steps, Step{
			Rule:   r.Name,
			Detail: r.Detail,
			Before: intensity,
			After:  next,
			Fired:  fired,
		})
		if fired {
			trace.AdjustmentsApplied = true
		}
		intensity = next
	}

	result := Finalize(intensity)
	trace.FinalPrediction = result.RecommendedIntensity
	return result, trace
}

// Finalize clamps an intensity to [0,100] and derives the on/off decision and
// confidence from the clamped value.
func Finalize(intensity float64) PredictionResult {
	rec := Clip(intensity, 0, 100)
	return PredictionResult{
		RecommendedIntensity: rec,
		LightsShouldBeOn:     rec > lightsOnThreshold,
		Confidence:           math.Min(1, math.Abs(rec-midpoint)/midpoint),
	}
}

func airQualityRule(aqi float64) func(float64) float64 {
	return func(x float64) float64 {
		if aqi > poorAirQualityAQI {
			return math.Min(100, x*poorAirQualityGain)
		}
		return x
	}
}

func trafficRule(pedestrians, vehicles int) func(float64) float64 {
	factor := float64(pedestrians+vehicles) / trafficDivisor
	return func(x float64) float64 {
		return math.Min(100, x+factor)
	}
}

func ambientLightRule(ambient float64) func(float64) float64 {
	return func(x float64) float64 {
		switch {
		case ambient < darkAmbientLight:
			return math.Max(x, darkMinIntensity)
		case ambient > brightAmbientLight:
			return math.Min(x, brightMaxIntensity)
		default:
			return x
		}
	}
}

func motionRule(motion bool) func(float64) float64 {
	return func(x float64) float64 {
		if motion {
			return math.Max(x, motionMinIntensity)
		}
		return x
	}
}
