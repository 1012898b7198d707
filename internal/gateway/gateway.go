// Package gateway assembles prediction context from third-party services.
// Upstream failures are absorbed here: every result carries a Source telling
// the caller whether the value is live, a documented default, or simulated.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
	"github.com/couchcryptid/streetlight-predictor/internal/simulate"
)

// Keys of ExternalResult.Sources.
const (
	SourceKeyWeather    = "weather"
	SourceKeyAirQuality = "air_quality"
	SourceKeyTraffic    = "traffic"
)

// WeatherSource provides live conditions for a location.
type WeatherSource interface {
	Current(ctx context.Context, location string) (domain.CurrentWeather, error)
	Today(ctx context.Context, location string) ([]domain.HourlyConditions, error)
}

// AirSource provides air quality at a coordinate.
type AirSource interface {
	AirQuality(ctx context.Context, lat, lon float64) (domain.AirQuality, error)
}

// Site is where the lamp stands.
type Site struct {
	Location  string
	Latitude  float64
	Longitude float64
	Timezone  *time.Location
}

// External fetches weather, air quality, and traffic.
type External struct {
	weather WeatherSource
	air     AirSource
	sim     *simulate.Simulator
	site    Site
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewExternal creates the external gateway. A nil weather source serves the
// fixed simulated snapshot; a nil air source estimates AQI from the weather.
func NewExternal(weather WeatherSource, air AirSource, sim *simulate.Simulator, site Site, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *External {
	return &External{
		weather: weather,
		air:     air,
		sim:     sim,
		site:    site,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Fetch returns the external context. It never fails.
func (g *External) Fetch(ctx context.Context) domain.ExternalResult {
	if g.weather == nil {
		g.count(SourceKeyWeather, domain.SourceSimulated)
		return domain.ExternalResult{
			Context: domain.SimulatedExternalContext(),
			Sources: map[string]domain.Source{
				SourceKeyWeather:    domain.SourceSimulated,
				SourceKeyAirQuality: domain.SourceSimulated,
				SourceKeyTraffic:    domain.SourceSimulated,
			},
		}
	}

	sources := make(map[string]domain.Source, 3)

	cw, err := g.weather.Current(ctx, g.site.Location)
	if err != nil {
		g.logger.Warn("weather fetch failed, using defaults",
			"upstream", SourceKeyWeather, "location", g.site.Location, "error", err)
		cw = domain.DefaultCurrentWeather()
		sources[SourceKeyWeather] = domain.SourceFallback
	} else {
		sources[SourceKeyWeather] = domain.SourceLive
	}
	g.count(SourceKeyWeather, sources[SourceKeyWeather])

	aq, aqSource := g.airQuality(ctx, cw)
	sources[SourceKeyAirQuality] = aqSource
	g.count(SourceKeyAirQuality, aqSource)

	traffic := g.sim.Traffic(g.clock.Now().In(g.site.Timezone).Hour())
	sources[SourceKeyTraffic] = domain.SourceSimulated
	g.count(SourceKeyTraffic, domain.SourceSimulated)

	return domain.ExternalResult{
		Context: domain.ExternalContext{
			CurrentWeather: &cw,
			AirQuality:     &aq,
			Traffic:        &traffic,
		},
		Sources: sources,
	}
}

func (g *External) airQuality(ctx context.Context, cw domain.CurrentWeather) (domain.AirQuality, domain.Source) {
	if g.air == nil {
		return domain.EstimateAirQuality(cw), domain.SourceEstimated
	}
	aq, err := g.air.AirQuality(ctx, g.site.Latitude, g.site.Longitude)
	if err != nil {
		g.logger.Warn("air quality fetch failed, estimating from weather",
			"upstream", SourceKeyAirQuality, "error", err)
		return domain.EstimateAirQuality(cw), domain.SourceEstimated
	}
	return aq, domain.SourceLive
}

func (g *External) count(gateway string, source domain.Source) {
	g.metrics.GatewayRequests.WithLabelValues(gateway, string(source)).Inc()
}
