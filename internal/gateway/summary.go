package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/simulate"
)

// DefaultSummaryLocation is used when the caller names no location.
const DefaultSummaryLocation = "Harare,ZW"

// Summarizer builds the dashboard weather summary for the current hour.
type Summarizer struct {
	weather WeatherSource
	sim     *simulate.Simulator
	tz      *time.Location
	clock   clockwork.Clock
	logger  *slog.Logger
}

// NewSummarizer creates a Summarizer. A nil weather source always yields the
// fallback summary.
func NewSummarizer(weather WeatherSource, sim *simulate.Simulator, tz *time.Location, clock clockwork.Clock, logger *slog.Logger) *Summarizer {
	return &Summarizer{weather: weather, sim: sim, tz: tz, clock: clock, logger: logger}
}

// Summarize returns the summary for location. Upstream failures produce the
// fixed fallback summary with its Error set.
func (s *Summarizer) Summarize(ctx context.Context, location string) domain.WeatherSummary {
	if location == "" {
		location = DefaultSummaryLocation
	}
	if s.weather == nil {
		return domain.FallbackSummary(fmt.Sprintf("Failed to fetch weather data for %s: no weather API key configured", location))
	}

	hours, err := s.weather.Today(ctx, location)
	if err != nil {
		s.logger.Warn("weather summary fetch failed, using fallback",
			"upstream", SourceKeyWeather, "location", location, "error", err)
		return domain.FallbackSummary(fmt.Sprintf("Failed to fetch weather data for %s: %v", location, err))
	}

	hour := s.clock.Now().In(s.tz).Hour()
	h, ok := domain.PickHour(hours, hour)
	if !ok {
		return domain.FallbackSummary(fmt.Sprintf("Failed to fetch weather data for %s: no hourly data", location))
	}
	return domain.Summarize(h, s.sim.RoadActivity(hour))
}
