package dataset

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
)

// missingRate is the share of cells left empty, mirroring gaps in exported
// weather history.
const missingRate = 0.02

// Synthesize generates days of plausible daily weather for a southern
// hemisphere highland city starting at start. Output is fully determined by
// seed. Rows are date-only, like a daily history export.
func Synthesize(start time.Time, days int, seed uint64) []domain.WeatherObservation {
	rng := rand.New(rand.NewPCG(seed, seed^0x2545f4914f6cdd1d))
	u := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	maybe := func(v float64) *float64 {
		if rng.Float64() < missingRate {
			return nil
		}
		return domain.Float(math.Round(v*10) / 10)
	}

	day0 := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	out := make([]domain.WeatherObservation, 0, days)
	for i := range days {
		date := day0.AddDate(0, 0, i)
		doy := float64(date.YearDay())
		wet := isRainySeason(date.Month())

		// Warmest around mid November.
		base := 21 + 4*math.Cos(2*math.Pi*(doy-320)/365)
		tempMax := base + 5 + u(-2, 2)
		tempMin := base - 7 + u(-2, 2)

		var humidity, cloud, precip float64
		if wet {
			humidity = domain.Clip(70+u(-15, 15), 10, 100)
			cloud = domain.Clip(60+u(-35, 35), 0, 100)
			precip = domain.Clip(60+u(-45, 40), 0, 100)
		} else {
			humidity = domain.Clip(45+u(-15, 15), 10, 100)
			cloud = domain.Clip(20+u(-20, 25), 0, 100)
			precip = domain.Clip(8+u(-8, 12), 0, 100)
		}
		solar := math.Max(0, 300*(1-0.6*cloud/100)+u(-30, 30))

		// Longest day at the December solstice.
		daylight := 12 + 1.2*math.Cos(2*math.Pi*(doy-355)/365)
		noon := date.Add(12*time.Hour + 15*time.Minute)
		half := time.Duration(daylight / 2 * float64(time.Hour)).Round(time.Second)
		sunrise := noon.Add(-half)
		sunset := noon.Add(half)

		out = append(out, domain.WeatherObservation{
			Datetime:         date,
			Sunrise:          &sunrise,
			Sunset:           &sunset,
			TempMax:          maybe(tempMax),
			TempMin:          maybe(tempMin),
			Temp:             maybe((tempMax + tempMin) / 2),
			Humidity:         maybe(humidity),
			SeaLevelPressure: maybe(1015 + u(-5, 5)),
			CloudCover:       maybe(cloud),
			Visibility:       maybe(domain.Clip(10+u(-4, 4), 1, 30)),
			SolarRadiation:   maybe(solar),
			WindSpeed:        maybe(math.Max(0, 12+u(-7, 8))),
			PrecipProb:       maybe(precip),
		})
	}
	return out
}

func isRainySeason(m time.Month) bool {
	return m >= time.November || m <= time.March
}
