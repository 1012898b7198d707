package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdjust_NoContextPassesThrough(t *testing.T) {
	result, trace := AdjustDebug(42.5, nil, nil)

	assert.Equal(t, 42.5, result.RecommendedIntensity)
	assert.True(t, result.LightsShouldBeOn)
	assert.InDelta(t, 0.15, result.Confidence, 1e-9)
	assert.Empty(t, trace.Steps)
	assert.False(t, trace.AdjustmentsApplied)
	assert.Equal(t, 42.5, trace.BasePrediction)
	assert.Equal(t, 42.5, trace.FinalPrediction)
}

func TestAdjust_ClampsRawOutput(t *testing.T) {
	tests := []struct {
		name string
		base float64
		want float64
		on   bool
	}{
		{"above range", 120, 100, true},
		{"below range", -5, 0, false},
		{"at threshold", 15, 15, false},
		{"just above threshold", 15.01, 15.01, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Adjust(tt.base, nil, nil)
			assert.Equal(t, tt.want, result.RecommendedIntensity)
			assert.Equal(t, tt.on, result.LightsShouldBeOn)
			assert.LessOrEqual(t, result.Confidence, 1.0)
		})
	}
}

func TestAdjust_AirQualityThenTraffic(t *testing.T) {
	external := &ExternalContext{
		AirQuality: &AirQuality{AQI: 150},
		Traffic:    &TrafficData{PedestrianCount: 10, VehicleCount: 5},
	}

	result, trace := AdjustDebug(40, external, nil)

	require.Len(t, trace.Steps, 2)
	assert.Equal(t, RuleAirQuality, trace.Steps[0].Rule)
	assert.Equal(t, 40.0, trace.Steps[0].Before)
	assert.InDelta(t, 48, trace.Steps[0].After, 1e-9)
	assert.True(t, trace.Steps[0].Fired)

	assert.Equal(t, RuleTraffic, trace.Steps[1].Rule)
	assert.InDelta(t, 48, trace.Steps[1].Before, 1e-9)
	assert.InDelta(t, 48.75, trace.Steps[1].After, 1e-9)

	assert.InDelta(t, 48.75, result.RecommendedIntensity, 1e-9)
	assert.True(t, trace.AdjustmentsApplied)
}

func TestAdjust_AmbientDarkDominatesMotion(t *testing.T) {
	sensor := &SensorReading{AmbientLight: Float(10), Motion: Int(1)}

	result, trace := AdjustDebug(30, nil, sensor)

	require.Len(t, trace.Steps, 2)
	assert.Equal(t, 80.0, trace.Steps[0].After)
	assert.True(t, trace.Steps[0].Fired)
	assert.False(t, trace.Steps[1].Fired, "motion floor of 60 is below 80")
	assert.Equal(t, 80.0, result.RecommendedIntensity)
}

func TestAdjust_OrderMatters(t *testing.T) {
	// Bright ambient caps at 30, then motion lifts back to 60.
	sensor := &SensorReading{AmbientLight: Float(90), Motion: Int(1)}

	result, trace := AdjustDebug(70, nil, sensor)

	assert.Equal(t, 30.0, trace.Steps[0].After)
	assert.Equal(t, 60.0, trace.Steps[1].After)
	assert.Equal(t, 60.0, result.RecommendedIntensity)
}

func TestAdjust_PresentContextWithMissingFields(t *testing.T) {
	t.Run("external defaults cap at 100", func(t *testing.T) {
		result, trace := AdjustDebug(120, &ExternalContext{}, nil)

		require.Len(t, trace.Steps, 2)
		assert.False(t, trace.Steps[0].Fired, "default aqi 50 does not trigger")
		assert.Equal(t, 100.0, trace.Steps[1].After)
		assert.True(t, trace.AdjustmentsApplied)
		assert.Equal(t, 100.0, result.RecommendedIntensity)
	})

	t.Run("sensor defaults are neutral", func(t *testing.T) {
		result, trace := AdjustDebug(42, nil, &SensorReading{})

		require.Len(t, trace.Steps, 2)
		assert.False(t, trace.AdjustmentsApplied)
		assert.Equal(t, 42.0, result.RecommendedIntensity)
	})
}

func TestAdjust_AlwaysClamped(t *testing.T) {
	external := &ExternalContext{
		AirQuality: &AirQuality{AQI: 10000},
		Traffic:    &TrafficData{PedestrianCount: 100000, VehicleCount: 100000},
	}
	sensor := &SensorReading{AmbientLight: Float(-50), Motion: Int(1)}

	for _, base := range []float64{-1e9, -1, 0, 50, 100, 1e9} {
		result := Adjust(base, external, sensor)
		assert.GreaterOrEqual(t, result.RecommendedIntensity, 0.0)
		assert.LessOrEqual(t, result.RecommendedIntensity, 100.0)
	}
}

func TestAdjust_AQIMonotonic(t *testing.T) {
	traffic := &TrafficData{PedestrianCount: 3, VehicleCount: 4}
	for _, base := range []float64{-10, 0, 12, 40, 83, 99, 140} {
		prev := -1.0
		for aqi := 0.0; aqi <= 400; aqi += 25 {
			external := &ExternalContext{AirQuality: &AirQuality{AQI: aqi}, Traffic: traffic}
			got := Adjust(base, external, nil).RecommendedIntensity
			assert.GreaterOrEqual(t, got, prev, "base=%v aqi=%v", base, aqi)
			prev = got
		}
	}
}

func TestAdjust_MotionFloor(t *testing.T) {
	for base := 0.0; base <= 100; base += 5 {
		without := Adjust(base, nil, &SensorReading{AmbientLight: Float(50), Motion: Int(0)})
		with := Adjust(base, nil, &SensorReading{AmbientLight: Float(50), Motion: Int(1)})

		assert.GreaterOrEqual(t, with.RecommendedIntensity, 60.0)
		assert.GreaterOrEqual(t, with.RecommendedIntensity, without.RecommendedIntensity)
	}
}

func TestFinalize_Confidence(t *testing.T) {
	assert.Equal(t, 0.0, Finalize(50).Confidence)
	assert.Equal(t, 1.0, Finalize(0).Confidence)
	assert.Equal(t, 1.0, Finalize(100).Confidence)
	assert.InDelta(t, 0.5, Finalize(75).Confidence, 1e-9)
}

func TestRules_SkipsAbsentContexts(t *testing.T) {
	assert.Empty(t, Rules(nil, nil))

	names := func(rules []Rule) []string {
		out := make([]string, len(rules))
		for i, r := range rules {
			out[i] = r.Name
		}
		return out
	}
	assert.Equal(t, []string{RuleAirQuality, RuleTraffic}, names(Rules(&ExternalContext{}, nil)))
	assert.Equal(t, []string{RuleAmbientLight, RuleMotion}, names(Rules(nil, &SensorReading{})))
	assert.Equal(t,
		[]string{RuleAirQuality, RuleTraffic, RuleAmbientLight, RuleMotion},
		names(Rules(&ExternalContext{}, &SensorReading{})))
}

func TestEstimateAirQuality(t *testing.T) {
	got := EstimateAirQuality(CurrentWeather{Visibility: 10, Humidity: 60})
	assert.InDelta(t, 80, got.AQI, 1e-9)
	assert.InDelta(t, 24, got.PM25, 1e-9)

	clean := EstimateAirQuality(CurrentWeather{Visibility: 30, Humidity: 10})
	assert.InDelta(t, 20, clean.AQI, 1e-9)
	assert.InDelta(t, 6, clean.PM25, 1e-9)

	smog := EstimateAirQuality(CurrentWeather{Visibility: 0, Humidity: 100})
	assert.InDelta(t, 150, smog.AQI, 1e-9)
	assert.InDelta(t, 45, smog.PM25, 1e-9)
}

func TestSimulatedExternalContext(t *testing.T) {
	sim := SimulatedExternalContext()
	assert.InDelta(t, 85, sim.AQI(), 0)
	peds, vehicles := sim.TrafficCounts()
	assert.Equal(t, 25, peds)
	assert.Equal(t, 12, vehicles)
	assert.InDelta(t, 15.2, sim.CurrentWeather.Temperature, 0)
}
