package domain

import (
	"math"
	"time"
)

// Default values substituted for weather fields that are absent or NaN.
const (
	DefaultTempMax          = 20.0
	DefaultTempMin          = 10.0
	DefaultTemp             = 15.0
	DefaultHumidity         = 60.0
	DefaultSeaLevelPressure = 1013.25
	DefaultCloudCover       = 50.0
	DefaultVisibility       = 10.0
	DefaultSolarRadiation   = 200.0
	DefaultWindSpeed        = 10.0
	DefaultPrecipProb       = 0.0

	// DefaultHour is used when an observation carries a date but no time of day.
	DefaultHour = 12
	// DefaultDaylightHours is used when sunrise or sunset is unavailable.
	DefaultDaylightHours = 12.0
)

// EpochFallback replaces datetimes that could not be parsed and have no
// batch-level substitute.
var EpochFallback = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// WeatherObservation is one timestamped weather record. Nil scalar fields are
// missing and take their documented default when features are built.
type WeatherObservation struct {
	Datetime time.Time
	// HasTimeOfDay is false for date-only records (daily aggregates).
	HasTimeOfDay bool
	Sunrise      *time.Time
	Sunset       *time.Time

	TempMax          *float64
	TempMin          *float64
	Temp             *float64
	Humidity         *float64
	SeaLevelPressure *float64
	CloudCover       *float64
	Visibility       *float64
	SolarRadiation   *float64
	WindSpeed        *float64
	PrecipProb       *float64
}

// Weather holds the ten scalar weather fields after default substitution.
type Weather struct {
	TempMax          float64
	TempMin          float64
	Temp             float64
	Humidity         float64
	SeaLevelPressure float64
	CloudCover       float64
	Visibility       float64
	SolarRadiation   float64
	WindSpeed        float64
	PrecipProb       float64
}

// Float returns a pointer to v. Handy for building observations by hand.
func Float(v float64) *float64 { return &v }

// Filled returns the observation's scalar fields with every missing or NaN
// value replaced by its default.
func (o WeatherObservation) Filled() Weather {
	return Weather{
		TempMax:          orDefault(o.TempMax, DefaultTempMax),
		TempMin:          orDefault(o.TempMin, DefaultTempMin),
		Temp:             orDefault(o.Temp, DefaultTemp),
		Humidity:         orDefault(o.Humidity, DefaultHumidity),
		SeaLevelPressure: orDefault(o.SeaLevelPressure, DefaultSeaLevelPressure),
		CloudCover:       orDefault(o.CloudCover, DefaultCloudCover),
		Visibility:       orDefault(o.Visibility, DefaultVisibility),
		SolarRadiation:   orDefault(o.SolarRadiation, DefaultSolarRadiation),
		WindSpeed:        orDefault(o.WindSpeed, DefaultWindSpeed),
		PrecipProb:       orDefault(o.PrecipProb, DefaultPrecipProb),
	}
}

// DaylightHours returns sunset minus sunrise in hours, or the 12h default when
// either bound is missing.
func (o WeatherObservation) DaylightHours() float64 {
	if o.Sunrise == nil || o.Sunset == nil || o.Sunrise.IsZero() || o.Sunset.IsZero() {
		return DefaultDaylightHours
	}
	return o.Sunset.Sub(*o.Sunrise).Hours()
}

// Hour returns the observation hour, or 12 for date-only records.
func (o WeatherObservation) Hour() int {
	if !o.HasTimeOfDay {
		return DefaultHour
	}
	return o.Datetime.Hour()
}

func orDefault(v *float64, def float64) float64 {
	if v == nil || math.IsNaN(*v) {
		return def
	}
	return *v
}
