// Package pipeline serves predictions: it gathers live context, queries the
// regression oracle, runs the adjustment cascade, and hands each result to
// the record publisher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
	"github.com/couchcryptid/streetlight-predictor/internal/oracle"
)

// ExternalGateway returns the third-party context for a prediction.
type ExternalGateway interface {
	Fetch(ctx context.Context) domain.ExternalResult
}

// SensorGateway returns the lamp's own telemetry.
type SensorGateway interface {
	Read(ctx context.Context) domain.SensorResult
}

// ModelProvider hands out the shared model, training it on first use.
type ModelProvider interface {
	Get(ctx context.Context) (*oracle.Model, error)
	Model() *oracle.Model
}

// Recorder accepts prediction records for asynchronous publication.
type Recorder interface {
	Enqueue(r domain.PredictionRecord) bool
}

// Options are the static inputs of a Pipeline.
type Options struct {
	Location string
	Timezone *time.Location
	Clock    clockwork.Clock
}

// Pipeline serves predictions.
type Pipeline struct {
	models   ModelProvider
	external ExternalGateway
	sensors  SensorGateway
	recorder Recorder
	location string
	tz       *time.Location
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Pipeline. recorder may be nil.
func New(models ModelProvider, external ExternalGateway, sensors SensorGateway, recorder Recorder, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Timezone == nil {
		opts.Timezone = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &Pipeline{
		models:   models,
		external: external,
		sensors:  sensors,
		recorder: recorder,
		location: opts.Location,
		tz:       opts.Timezone,
		clock:    opts.Clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once the model is trained. It never starts training.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.models.Model().Trained() {
		return errors.New("model has not been trained yet")
	}
	return nil
}

// Predict serves one prediction. The only errors are an untrained model and
// a failed oracle call; gateway failures are absorbed into defaults.
func (p *Pipeline) Predict(ctx context.Context) (domain.PredictionReport, error) {
	model, err := p.models.Get(ctx)
	if err != nil {
		p.metrics.Predictions.WithLabelValues("untrained").Inc()
		return domain.PredictionReport{}, fmt.Errorf("%w: %w", domain.ErrModelNotTrained, err)
	}

	ext, sensor := p.gather(ctx)

	now := p.clock.Now().In(p.tz)
	cw := domain.DefaultCurrentWeather()
	if ext.Context.CurrentWeather != nil {
		cw = *ext.Context.CurrentWeather
	}
	features := domain.LiveFeatures(cw, now)
	warnings := p.validate(features)

	base, err := model.Predict(features)
	if err != nil {
		p.metrics.Predictions.WithLabelValues("error").Inc()
		return domain.PredictionReport{}, fmt.Errorf("predict: %w", err)
	}

	result, trace := domain.AdjustDebug(base, &ext.Context, sensor.Reading)

	report := domain.PredictionReport{
		ID:               uuid.NewString(),
		PredictionResult: result,
		DebugInfo: domain.DebugInfo{
			Trace:         trace,
			InputFeatures: features.Named(),
			Season:        domain.Season(now),
			Warnings:      warnings,
			DataSources: domain.DataSources{
				Location:          p.location,
				External:          ext.Sources,
				Sensor:            sensor.Source,
				CurrentConditions: ext.Context.CurrentWeather,
			},
			Timestamp: now,
		},
	}

	p.observe(report)
	if p.recorder != nil {
		p.recorder.Enqueue(report.Record())
	}
	return report, nil
}

// gather queries both gateways concurrently. Neither returns an error, so the
// group only joins them.
func (p *Pipeline) gather(ctx context.Context) (domain.ExternalResult, domain.SensorResult) {
	var (
		ext    domain.ExternalResult
		sensor domain.SensorResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ext = p.external.Fetch(gctx)
		return nil
	})
	g.Go(func() error {
		sensor = p.sensors.Read(gctx)
		return nil
	})
	_ = g.Wait()
	return ext, sensor
}

func (p *Pipeline) validate(features domain.FeatureVector) []string {
	checks := domain.CheckFeatures(features)
	out := make([]string, len(checks))
	for i, w := range checks {
		p.logger.Warn("feature out of range",
			"feature", w.Feature, "value", w.Value, "min", w.Range.Min, "max", w.Range.Max)
		p.metrics.FeatureWarnings.WithLabelValues(w.Feature).Inc()
		out[i] = w.String()
	}
	return out
}

func (p *Pipeline) observe(report domain.PredictionReport) {
	p.metrics.Predictions.WithLabelValues("success").Inc()
	p.metrics.PredictedIntensity.Observe(report.RecommendedIntensity)
	for _, s := range report.DebugInfo.Trace.Steps {
		if s.Fired {
			p.metrics.AdjustmentsFired.WithLabelValues(s.Rule).Inc()
		}
	}
	p.logger.Debug("prediction served",
		"id", report.ID,
		"intensity", report.RecommendedIntensity,
		"lights_on", report.LightsShouldBeOn,
		"base", report.DebugInfo.Trace.BasePrediction,
	)
}

// FeatureImportance returns the model's importance ranking, training first if needed.
func (p *Pipeline) FeatureImportance(ctx context.Context) ([]oracle.FeatureScore, error) {
	model, err := p.models.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrModelNotTrained, err)
	}
	return model.FeatureImportance()
}

// TrainingMetrics returns the held-out metrics, training first if needed.
func (p *Pipeline) TrainingMetrics(ctx context.Context) (oracle.Metrics, error) {
	model, err := p.models.Get(ctx)
	if err != nil {
		return oracle.Metrics{}, fmt.Errorf("%w: %w", domain.ErrModelNotTrained, err)
	}
	return model.Metrics()
}
