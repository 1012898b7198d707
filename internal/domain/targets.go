package domain

import (
	"math"
	"time"
)

// Thresholds used to derive the lights_on training label.
const (
	nightBeforeHour     = 6
	nightAfterHour      = 18
	heavyCloudCover     = 80.0
	poorVisibility      = 5.0
	likelyPrecipitation = 70.0

	minAdaptiveBrightness = 20.0
	severityBrightness    = 20.0
)

// TrainingTarget holds the labels synthesized for one observation. Only
// LightIntensity feeds the regressor today.
type TrainingTarget struct {
	LightIntensity     float64 `json:"light_intensity"`
	LightsOn           int     `json:"lights_on"`
	AdaptiveBrightness float64 `json:"adaptive_brightness"`
}

// TrainingSet is the output of feature engineering over a historical batch.
type TrainingSet struct {
	Features  []FeatureVector
	Targets   []TrainingTarget
	Reference ReferenceQuantiles
}

// Labels returns the light_intensity column, the regression label.
func (s TrainingSet) Labels() []float64 {
	out := make([]float64, len(s.Targets))
	for i, t := range s.Targets {
		out[i] = t.LightIntensity
	}
	return out
}

// BatchReference computes p95 visibility and windspeed over the batch, after
// default substitution.
func BatchReference(obs []WeatherObservation) ReferenceQuantiles {
	vis := make([]float64, len(obs))
	wind := make([]float64, len(obs))
	for i, o := range obs {
		w := o.Filled()
		vis[i] = w.Visibility
		wind[i] = w.WindSpeed
	}
	return ReferenceQuantiles{
		VisibilityP95: nanToZero(Quantile(vis, 0.95)),
		WindSpeedP95:  nanToZero(Quantile(wind, 0.95)),
	}
}

// BuildTrainingSet builds batch-normalized features and synthesized targets.
// Observations with a zero datetime take the first valid datetime in the
// batch before falling back to EpochFallback.
func BuildTrainingSet(obs []WeatherObservation) TrainingSet {
	ref := BatchReference(obs)
	fallback := firstValidDatetime(obs)

	features := make([]FeatureVector, len(obs))
	for i, o := range obs {
		if o.Datetime.IsZero() {
			o.Datetime = fallback
		}
		features[i] = BuildFeatures(o, ref)
	}

	return TrainingSet{
		Features:  features,
		Targets:   SynthesizeTargets(features),
		Reference: ref,
	}
}

// SynthesizeTargets derives the training labels for each feature vector.
// light_intensity is inverse natural light normalized by the batch p95;
// lights_on fires at night or in poor conditions; adaptive_brightness adds a
// weather-severity boost on top of intensity, floored at 20, when lights are on.
func SynthesizeTargets(features []FeatureVector) []TrainingTarget {
	nli := make([]float64, len(features))
	for i, f := range features {
		nli[i] = f[FeatNaturalLightIndex]
	}
	q95 := Quantile(nli, 0.95)

	targets := make([]TrainingTarget, len(features))
	for i, f := range features {
		intensity := 100.0
		if q95 > 0 {
			intensity = Clip(100-(f[FeatNaturalLightIndex]/q95*100), 0, 100)
		}

		t := TrainingTarget{LightIntensity: intensity}
		if lightsOnLabel(f) {
			t.LightsOn = 1
			t.AdaptiveBrightness = Clip(intensity+f[FeatWeatherSeverity]*severityBrightness, minAdaptiveBrightness, 100)
		}
		targets[i] = t
	}
	return targets
}

func lightsOnLabel(f FeatureVector) bool {
	hour := f[FeatHour]
	return hour < nightBeforeHour ||
		hour > nightAfterHour ||
		f[FeatCloudCover] > heavyCloudCover ||
		f[FeatVisibility] < poorVisibility ||
		f[FeatPrecipProb] > likelyPrecipitation
}

// Clip bounds v to [lo, hi].
func Clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func firstValidDatetime(obs []WeatherObservation) time.Time {
	for _, o := range obs {
		if !o.Datetime.IsZero() {
			return o.Datetime
		}
	}
	return EpochFallback
}

func nanToZero(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
