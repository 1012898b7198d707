// Package domain models streetlight brightness prediction.
//
// # Feature Vector
//
// Every weather observation is encoded as a fixed 17-element vector:
//
//	tempmax, tempmin, temp, humidity, sealevelpressure, cloudcover,
//	visibility, solarradiation, windspeed, precipprob, hour, day_of_year,
//	month, is_weekend, daylight_duration, natural_light_index, weather_severity
//
// The regressor is positional, so changing this order requires retraining.
// Missing weather fields take fixed defaults (tempmax 20, tempmin 10, temp 15,
// humidity 60, pressure 1013.25, cloudcover 50, visibility 10, solar 200,
// windspeed 10, precipprob 0). Date-only records use hour 12 and records
// without sunrise/sunset use 12 hours of daylight.
//
// # Composite Indices
//
//	natural_light_index = solar * (100 - cloud)/100 * visibility / max(visRef, 1)
//	weather_severity    = wind/max(windRef, 1)*0.3 + precip/100*0.4 + cloud/100*0.3
//
// During training the references are batch 95th percentiles. At inference
// there is a single record, so each reference is the record's own value. The
// two paths are kept distinct on purpose: unifying them changes model output.
//
// # Adjustment Cascade
//
// A raw regression output is refined by an ordered rule pipeline. Each rule
// consumes the previous rule's output:
//
//	air_quality    aqi > 100           → min(100, x*1.2)
//	traffic        (peds+vehicles)/20  → min(100, x+factor)
//	ambient_light  ambient < 20        → max(x, 80)
//	               ambient > 70        → min(x, 30)
//	motion         motion detected     → max(x, 60)
//
// Air quality and traffic run only when an external context is present;
// ambient light and motion only when a sensor reading is present. The result
// is clamped to [0,100]; lights are on above 15 and confidence is the distance
// from 50 scaled to [0,1].
package domain
