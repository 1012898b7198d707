package domain

import "math"

// luxPerWattM2 converts solar irradiance to illuminance, mid-range of the
// usual 120-150 lux per W/m2.
const luxPerWattM2 = 130

// Hourly defaults applied when a field is absent from the upstream hour.
const (
	DefaultHourlySolar     = 50
	DefaultHourlyCloud     = 50
	DefaultHourlyUVIndex   = 8
	DefaultHourlyWindSpeed = 0
	maxSummaryAQI          = 500
	motionWindThreshold    = 5
)

// HourlyConditions is one hour of today's forecast.
type HourlyConditions struct {
	Hour           int
	SolarRadiation *float64
	CloudCover     *float64
	UVIndex        *float64
	WindSpeed      *float64
}

// WeatherSummary is the dashboard view of current conditions.
type WeatherSummary struct {
	Error           string  `json:"error,omitempty"`
	AmbientLight    int     `json:"ambient_light"`
	CloudCover      float64 `json:"cloudcover"`
	AQI             int     `json:"aqi"`
	VehicleCount    int     `json:"vehicle_count"`
	PedestrianCount int     `json:"pedestrian_count"`
	Motion          int     `json:"motion"`
}

// FallbackSummary is served when the forecast cannot be fetched.
func FallbackSummary(reason string) WeatherSummary {
	return WeatherSummary{
		Error:           reason,
		AmbientLight:    1000,
		CloudCover:      40,
		AQI:             80,
		VehicleCount:    5,
		PedestrianCount: 10,
		Motion:          0,
	}
}

// PickHour returns the entry for hour, else the first entry. ok is false
// when hours is empty.
func PickHour(hours []HourlyConditions, hour int) (HourlyConditions, bool) {
	if len(hours) == 0 {
		return HourlyConditions{}, false
	}
	for _, h := range hours {
		if h.Hour == hour {
			return h, true
		}
	}
	return hours[0], true
}

// Summarize derives ambient lux, a UV-based AQI proxy, and a wind-based
// motion flag from one forecast hour. Traffic counts are supplied by the caller.
func Summarize(h HourlyConditions, traffic TrafficData) WeatherSummary {
	solar := orDefault(h.SolarRadiation, DefaultHourlySolar)
	cloud := orDefault(h.CloudCover, DefaultHourlyCloud)
	uv := orDefault(h.UVIndex, DefaultHourlyUVIndex)
	wind := orDefault(h.WindSpeed, DefaultHourlyWindSpeed)

	return WeatherSummary{
		AmbientLight:    AmbientLux(solar, cloud),
		CloudCover:      cloud,
		AQI:             min(int(uv*10), maxSummaryAQI),
		VehicleCount:    traffic.VehicleCount,
		PedestrianCount: traffic.PedestrianCount,
		Motion:          boolToInt(int(wind) > motionWindThreshold),
	}
}

// AmbientLux estimates illuminance from irradiance dimmed by up to 80% under
// full cloud. Night (no irradiance) is 0.
func AmbientLux(solar, cloudCover float64) int {
	if solar <= 0 {
		return 0
	}
	lux := int(solar * luxPerWattM2 * (1 - 0.8*cloudCover/100))
	return int(math.Max(float64(lux), 0))
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
