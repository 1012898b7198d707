package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAmbientLux(t *testing.T) {
	assert.Equal(t, 0, AmbientLux(0, 20))
	assert.Equal(t, 0, AmbientLux(-3, 0))
	assert.Equal(t, 26000, AmbientLux(200, 0))
	// 200 * 130 * (1 - 0.8*0.5) = 15600
	assert.Equal(t, 15600, AmbientLux(200, 50))
	// Full cloud keeps roughly 20% of the light.
	assert.InDelta(t, 5200, AmbientLux(200, 100), 1)
}

func TestPickHour(t *testing.T) {
	hours := []HourlyConditions{{Hour: 0}, {Hour: 1}, {Hour: 2}}

	h, ok := PickHour(hours, 2)
	assert.True(t, ok)
	assert.Equal(t, 2, h.Hour)

	h, ok = PickHour(hours, 17)
	assert.True(t, ok)
	assert.Equal(t, 0, h.Hour, "missing hour falls back to first")

	_, ok = PickHour(nil, 3)
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	h := HourlyConditions{
		Hour:           14,
		SolarRadiation: Float(400),
		CloudCover:     Float(25),
		UVIndex:        Float(7.5),
		WindSpeed:      Float(5.9),
	}
	got := Summarize(h, TrafficData{PedestrianCount: 31, VehicleCount: 9})

	assert.Equal(t, 41600, got.AmbientLight)
	assert.InDelta(t, 25, got.CloudCover, 0)
	assert.Equal(t, 75, got.AQI)
	assert.Equal(t, 9, got.VehicleCount)
	assert.Equal(t, 31, got.PedestrianCount)
	assert.Equal(t, 0, got.Motion, "wind truncates to 5, not above threshold")
	assert.Empty(t, got.Error)
}

func TestSummarize_Defaults(t *testing.T) {
	got := Summarize(HourlyConditions{Hour: 3}, TrafficData{})

	assert.Equal(t, 3900, got.AmbientLight) // 50 * 130 * 0.6
	assert.InDelta(t, 50, got.CloudCover, 0)
	assert.Equal(t, 80, got.AQI)
	assert.Equal(t, 0, got.Motion)
}

func TestSummarize_CapsAQIAndDetectsWind(t *testing.T) {
	got := Summarize(HourlyConditions{UVIndex: Float(80), WindSpeed: Float(6)}, TrafficData{})
	assert.Equal(t, 500, got.AQI)
	assert.Equal(t, 1, got.Motion)
}

func TestFallbackSummary(t *testing.T) {
	got := FallbackSummary("upstream down")
	assert.Equal(t, WeatherSummary{
		Error:           "upstream down",
		AmbientLight:    1000,
		CloudCover:      40,
		AQI:             80,
		VehicleCount:    5,
		PedestrianCount: 10,
	}, got)
}
