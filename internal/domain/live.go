package domain

import "time"

// Assumptions for fields the live weather feed does not supply.
const (
	liveTempSpread     = 5.0
	liveSolarRadiation = 200.0
	livePrecipProb     = 30.0
)

// LiveObservation turns a current-conditions snapshot into an observation
// stamped at now. tempmax/tempmin are temp±5; pressure, solar radiation, and
// precipitation probability are fixed assumptions.
func LiveObservation(cw CurrentWeather, now time.Time) WeatherObservation {
	return WeatherObservation{
		Datetime:         now,
		HasTimeOfDay:     true,
		TempMax:          Float(cw.Temperature + liveTempSpread),
		TempMin:          Float(cw.Temperature - liveTempSpread),
		Temp:             Float(cw.Temperature),
		Humidity:         Float(cw.Humidity),
		SeaLevelPressure: Float(DefaultSeaLevelPressure),
		CloudCover:       Float(cw.CloudCover),
		Visibility:       Float(cw.Visibility),
		SolarRadiation:   Float(liveSolarRadiation),
		WindSpeed:        Float(cw.WindSpeed),
		PrecipProb:       Float(livePrecipProb),
	}
}

// LiveFeatures builds the inference feature vector for a live snapshot,
// normalizing composite indices against the record itself.
func LiveFeatures(cw CurrentWeather, now time.Time) FeatureVector {
	obs := LiveObservation(cw, now)
	return BuildFeatures(obs, SelfReference(obs))
}
