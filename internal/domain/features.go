package domain

import (
	"fmt"
	"math"
	"time"
)

// FeatureCount is the length of every feature vector.
const FeatureCount = 17

// Feature positions. The regressor is trained and queried positionally, so
// this order must match between training and inference.
const (
	FeatTempMax = iota
	FeatTempMin
	FeatTemp
	FeatHumidity
	FeatSeaLevelPressure
	FeatCloudCover
	FeatVisibility
	FeatSolarRadiation
	FeatWindSpeed
	FeatPrecipProb
	FeatHour
	FeatDayOfYear
	FeatMonth
	FeatIsWeekend
	FeatDaylightDuration
	FeatNaturalLightIndex
	FeatWeatherSeverity
)

// FeatureNames lists feature names in vector order.
var FeatureNames = [FeatureCount]string{
	"tempmax",
	"tempmin",
	"temp",
	"humidity",
	"sealevelpressure",
	"cloudcover",
	"visibility",
	"solarradiation",
	"windspeed",
	"precipprob",
	"hour",
	"day_of_year",
	"month",
	"is_weekend",
	"daylight_duration",
	"natural_light_index",
	"weather_severity",
}

// FeatureVector is the fixed-order numeric encoding of a weather observation.
type FeatureVector [FeatureCount]float64

// FeatureVectorFrom copies values into a FeatureVector, rejecting any slice
// that is not exactly FeatureCount long.
func FeatureVectorFrom(values []float64) (FeatureVector, error) {
	var v FeatureVector
	if len(values) != FeatureCount {
		return v, fmt.Errorf("feature vector: got %d values, want %d", len(values), FeatureCount)
	}
	copy(v[:], values)
	return v, nil
}

// Slice returns the vector as a newly allocated slice.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, FeatureCount)
	copy(out, v[:])
	return out
}

// Named returns the vector as a name to value map.
func (v FeatureVector) Named() map[string]float64 {
	out := make(map[string]float64, FeatureCount)
	for i, name := range FeatureNames {
		out[name] = v[i]
	}
	return out
}

// ReferenceQuantiles are the population statistics the composite indices are
// normalized by. Training uses batch p95 values; single-record inference uses
// the record's own values (see SelfReference).
type ReferenceQuantiles struct {
	VisibilityP95 float64
	WindSpeedP95  float64
}

// SelfReference returns reference values taken from the record itself. At
// inference time there is no population to normalize against, so
// visibility/max(visibility,1) and windspeed/max(windspeed,1) are used. This
// deliberately differs from the training path and must not be unified with it
// without retraining.
func SelfReference(o WeatherObservation) ReferenceQuantiles {
	w := o.Filled()
	return ReferenceQuantiles{VisibilityP95: w.Visibility, WindSpeedP95: w.WindSpeed}
}

// BuildFeatures maps an observation to its feature vector. It never fails:
// missing fields take defaults and a zero datetime takes EpochFallback.
func BuildFeatures(o WeatherObservation, ref ReferenceQuantiles) FeatureVector {
	w := o.Filled()

	dt := o.Datetime
	if dt.IsZero() {
		dt = EpochFallback
	}

	var v FeatureVector
	v[FeatTempMax] = w.TempMax
	v[FeatTempMin] = w.TempMin
	v[FeatTemp] = w.Temp
	v[FeatHumidity] = w.Humidity
	v[FeatSeaLevelPressure] = w.SeaLevelPressure
	v[FeatCloudCover] = w.CloudCover
	v[FeatVisibility] = w.Visibility
	v[FeatSolarRadiation] = w.SolarRadiation
	v[FeatWindSpeed] = w.WindSpeed
	v[FeatPrecipProb] = w.PrecipProb
	v[FeatHour] = float64(o.Hour())
	v[FeatDayOfYear] = float64(dt.YearDay())
	v[FeatMonth] = float64(dt.Month())
	v[FeatIsWeekend] = boolToFloat(isWeekend(dt))
	v[FeatDaylightDuration] = o.DaylightHours()
	v[FeatNaturalLightIndex] = NaturalLightIndex(w, ref.VisibilityP95)
	v[FeatWeatherSeverity] = WeatherSeverity(w, ref.WindSpeedP95)
	return v
}

// NaturalLightIndex estimates available daylight from solar radiation
// attenuated by cloud cover and scaled by relative visibility.
func NaturalLightIndex(w Weather, visibilityRef float64) float64 {
	return w.SolarRadiation * (100 - w.CloudCover) / 100 * w.Visibility / math.Max(visibilityRef, 1)
}

// WeatherSeverity blends relative wind, precipitation probability, and cloud
// cover into a single score weighted 0.3/0.4/0.3.
func WeatherSeverity(w Weather, windRef float64) float64 {
	return w.WindSpeed/math.Max(windRef, 1)*0.3 +
		w.PrecipProb/100*0.4 +
		w.CloudCover/100*0.3
}

// Season returns 0 (Jan-Mar) through 3 (Oct-Dec).
func Season(t time.Time) int {
	return (int(t.Month()) - 1) / 3
}

// isWeekend uses a Monday-start week: Saturday and Sunday are indices 5 and 6.
func isWeekend(t time.Time) bool {
	wd := (int(t.Weekday()) + 6) % 7
	return wd >= 5
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
