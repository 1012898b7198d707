package gateway

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
	"github.com/couchcryptid/streetlight-predictor/internal/simulate"
)

const sensorGateway = "sensor"

// SensorSource returns the latest telemetry entry from the IoT channel.
type SensorSource interface {
	Latest(ctx context.Context) (domain.SensorLogEntry, error)
}

// Sensors reads lamp telemetry.
type Sensors struct {
	source  SensorSource
	sim     *simulate.Simulator
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewSensors creates the sensor gateway. A nil source means no channel is
// configured. A nil simulator disables random fallback, so failures yield an
// absent reading and the cascade skips its sensor rules.
func NewSensors(source SensorSource, sim *simulate.Simulator, logger *slog.Logger, metrics *observability.Metrics) *Sensors {
	return &Sensors{source: source, sim: sim, logger: logger, metrics: metrics}
}

// Read returns the current sensor reading. It never fails.
func (g *Sensors) Read(ctx context.Context) domain.SensorResult {
	if g.source == nil {
		return g.fallback()
	}

	entry, err := g.source.Latest(ctx)
	if err != nil {
		g.logger.Warn("sensor read failed", "upstream", sensorGateway, "error", err)
		return g.fallback()
	}

	reading := domain.SensorReading{
		AmbientLight: domain.Float(entry.AmbientLight),
		Motion:       domain.Int(entry.Motion),
	}
	if g.sim != nil {
		g.sim.Extras(&reading)
	}
	g.count(domain.SourceLive)
	return domain.SensorResult{Reading: &reading, Source: domain.SourceLive, Timestamp: entry.Timestamp}
}

func (g *Sensors) fallback() domain.SensorResult {
	if g.sim == nil {
		g.count(domain.SourceAbsent)
		return domain.SensorResult{Source: domain.SourceAbsent}
	}
	reading := g.sim.Sensor()
	g.count(domain.SourceSimulated)
	return domain.SensorResult{Reading: &reading, Source: domain.SourceSimulated}
}

func (g *Sensors) count(source domain.Source) {
	g.metrics.GatewayRequests.WithLabelValues(sensorGateway, string(source)).Inc()
}
