package domain

import "time"

// Defaults the cascade applies to fields missing from a context that is
// otherwise present.
const (
	DefaultAQI          = 50.0
	DefaultAmbientLight = 50.0
)

// Source records where a gateway snapshot came from.
type Source string

const (
	SourceLive      Source = "live"
	SourceFallback  Source = "fallback"
	SourceSimulated Source = "simulated"
	SourceEstimated Source = "estimated"
	SourceAbsent    Source = "absent"
)

// CurrentWeather is the live weather snapshot used to build inference features.
type CurrentWeather struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	CloudCover  float64 `json:"cloudcover"`
	Visibility  float64 `json:"visibility"`
	WindSpeed   float64 `json:"wind_speed"`
}

// AirQuality is an air-quality snapshot. AQI is on a 0-500 style scale.
type AirQuality struct {
	AQI  float64 `json:"aqi"`
	PM25 float64 `json:"pm25"`
}

// TrafficData counts people and vehicles near the lamp.
type TrafficData struct {
	PedestrianCount int `json:"pedestrian_count"`
	VehicleCount    int `json:"vehicle_count"`
}

// ExternalContext is the third-party snapshot consumed by the cascade. Nil
// members are missing; the cascade substitutes AQI 50 and zero traffic.
type ExternalContext struct {
	CurrentWeather *CurrentWeather `json:"current_weather,omitempty"`
	AirQuality     *AirQuality     `json:"air_quality,omitempty"`
	Traffic        *TrafficData    `json:"traffic_data,omitempty"`
}

// AQI returns the air quality index or DefaultAQI when absent.
func (c ExternalContext) AQI() float64 {
	if c.AirQuality == nil {
		return DefaultAQI
	}
	return c.AirQuality.AQI
}

// TrafficCounts returns pedestrian and vehicle counts, zero when absent.
func (c ExternalContext) TrafficCounts() (pedestrians, vehicles int) {
	if c.Traffic == nil {
		return 0, 0
	}
	return c.Traffic.PedestrianCount, c.Traffic.VehicleCount
}

// SensorReading is telemetry from the IoT channel. The two fields the cascade
// reads are pointers so a partial reading can be told apart from a zero value.
type SensorReading struct {
	AmbientLight      *float64 `json:"ambient_light_sensor,omitempty"`
	Motion            *int     `json:"motion_sensor,omitempty"`
	TemperatureSensor float64  `json:"temperature_sensor,omitempty"`
	PowerConsumption  float64  `json:"power_consumption,omitempty"`
	DeviceHealth      float64  `json:"device_health,omitempty"`
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// AmbientLightOrDefault returns the ambient light reading or 50 when missing.
func (r SensorReading) AmbientLightOrDefault() float64 {
	if r.AmbientLight == nil {
		return DefaultAmbientLight
	}
	return *r.AmbientLight
}

// MotionDetected reports whether the motion sensor is truthy.
func (r SensorReading) MotionDetected() bool {
	return r.Motion != nil && *r.Motion != 0
}

// ExternalResult is the typed outcome of an external gateway fetch. Each
// member records its own Source so partial upstream failures stay visible.
type ExternalResult struct {
	Context ExternalContext   `json:"context"`
	Sources map[string]Source `json:"sources"`
}

// SensorResult is the typed outcome of a sensor gateway read. Reading is nil
// when Source is SourceAbsent, which makes the cascade skip sensor rules.
type SensorResult struct {
	Reading   *SensorReading `json:"reading,omitempty"`
	Source    Source         `json:"source"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// DefaultCurrentWeather is used when the live weather provider is unreachable.
func DefaultCurrentWeather() CurrentWeather {
	return CurrentWeather{Temperature: 20, Humidity: 60, CloudCover: 50, Visibility: 10, WindSpeed: 10}
}

// DefaultAirQuality is used when no air quality source responds.
func DefaultAirQuality() AirQuality {
	return AirQuality{AQI: 50, PM25: 12}
}

// SimulatedExternalContext is the fixed snapshot served when no weather API
// key is configured.
func SimulatedExternalContext() ExternalContext {
	return ExternalContext{
		CurrentWeather: &CurrentWeather{Temperature: 15.2, Humidity: 65, CloudCover: 45, Visibility: 10, WindSpeed: 12},
		AirQuality:     &AirQuality{AQI: 85, PM25: 15.2},
		Traffic:        &TrafficData{PedestrianCount: 25, VehicleCount: 12},
	}
}

// EstimateAirQuality derives an AQI proxy from weather: haze lowers
// visibility and raises humidity.
func EstimateAirQuality(cw CurrentWeather) AirQuality {
	aqi := Clip(100-cw.Visibility*5+cw.Humidity*0.5, 20, 150)
	return AirQuality{AQI: aqi, PM25: Clip(aqi*0.3, 5, 50)}
}

// SensorLogEntry is one telemetry entry from the IoT channel. Null readings
// are reported as zero.
type SensorLogEntry struct {
	EntryID      int     `json:"entry_id"`
	AmbientLight float64 `json:"ambient_light_sensor"`
	Motion       int     `json:"motion_sensor"`
	Timestamp    string  `json:"timestamp"`
}

// Override is a user light command relayed to the lamp.
type Override struct {
	LightsOn     int       `json:"lights_on"`
	UserOverride int       `json:"user_override"`
	EntryID      string    `json:"thingspeak_entry_id"`
	Timestamp    time.Time `json:"timestamp"`
}
