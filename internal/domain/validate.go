package domain

import "fmt"

// Range is an inclusive bound on a feature value.
type Range struct {
	Min float64
	Max float64
}

// FeatureRanges lists the plausible bounds per feature, in vector order.
var FeatureRanges = [FeatureCount]Range{
	FeatTempMax:           {-10, 50},
	FeatTempMin:           {-20, 40},
	FeatTemp:              {-15, 45},
	FeatHumidity:          {0, 100},
	FeatSeaLevelPressure:  {900, 1100},
	FeatCloudCover:        {0, 100},
	FeatVisibility:        {0, 50},
	FeatSolarRadiation:    {0, 1000},
	FeatWindSpeed:         {0, 100},
	FeatPrecipProb:        {0, 100},
	FeatHour:              {0, 23},
	FeatDayOfYear:         {1, 366},
	FeatMonth:             {1, 12},
	FeatIsWeekend:         {0, 1},
	FeatDaylightDuration:  {8, 16},
	FeatNaturalLightIndex: {0, 1000},
	FeatWeatherSeverity:   {0, 1},
}

// binaryFeatures are flags: only the range bounds themselves are valid.
var binaryFeatures = [FeatureCount]bool{FeatIsWeekend: true}

// FeatureWarning describes one out-of-range feature.
type FeatureWarning struct {
	Feature string
	Value   float64
	Range   Range
	Binary  bool
}

func (w FeatureWarning) String() string {
	if w.Binary {
		return fmt.Sprintf("Feature '%s' value %g is not one of {%g, %g}",
			w.Feature, w.Value, w.Range.Min, w.Range.Max)
	}
	return fmt.Sprintf("Feature '%s' value %g is outside expected range [%g, %g]",
		w.Feature, w.Value, w.Range.Min, w.Range.Max)
}

// CheckFeatures returns one warning per feature outside its range. NaN values
// are always out of range, and flag features must equal one of their bounds.
// It never mutates the vector.
func CheckFeatures(v FeatureVector) []FeatureWarning {
	var warnings []FeatureWarning
	for i, r := range FeatureRanges {
		x := v[i]
		if binaryFeatures[i] {
			if x != r.Min && x != r.Max {
				warnings = append(warnings, FeatureWarning{Feature: FeatureNames[i], Value: x, Range: r, Binary: true})
			}
			continue
		}
		if !(r.Min <= x && x <= r.Max) {
			warnings = append(warnings, FeatureWarning{Feature: FeatureNames[i], Value: x, Range: r})
		}
	}
	return warnings
}

// Validate is the advisory range check: warning strings, possibly empty.
func Validate(v FeatureVector) []string {
	checks := CheckFeatures(v)
	out := make([]string, len(checks))
	for i, w := range checks {
		out[i] = w.String()
	}
	return out
}
