package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
)

// Loader produces the training set, typically from the historical CSV.
type Loader func(ctx context.Context) (domain.TrainingSet, error)

// Lazy trains a Model on first use. Concurrent callers share one training
// attempt; a failed attempt is not cached, so the next caller retries.
type Lazy struct {
	model   *Model
	load    Loader
	group   singleflight.Group
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLazy wraps model with an init-once training step.
func NewLazy(model *Model, load Loader, logger *slog.Logger, metrics *observability.Metrics) *Lazy {
	return &Lazy{model: model, load: load, logger: logger, metrics: metrics}
}

// Model returns the wrapped model, trained or not.
func (l *Lazy) Model() *Model { return l.model }

// Get returns the trained model, training it first if needed. Training runs
// detached from the caller's cancellation so one dropped request does not
// abort it for everyone waiting.
func (l *Lazy) Get(ctx context.Context) (*Model, error) {
	if l.model.Trained() {
		return l.model, nil
	}

	_, err, _ := l.group.Do("train", func() (any, error) {
		if l.model.Trained() {
			return nil, nil
		}
		return nil, l.train(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return l.model, nil
}

func (l *Lazy) train(ctx context.Context) error {
	start := time.Now()

	set, err := l.load(ctx)
	if err != nil {
		l.logger.Error("load training data failed", "error", err)
		return fmt.Errorf("load training data: %w", err)
	}

	m, err := l.model.Train(set.Features, set.Labels())
	if err != nil {
		l.logger.Error("model training failed", "error", err, "rows", len(set.Features))
		return fmt.Errorf("train model: %w", err)
	}

	l.metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	l.metrics.ModelTrained.Set(1)
	l.metrics.ModelMAE.Set(m.MAE)
	l.metrics.ModelR2.Set(m.R2)
	l.logger.Info("model trained",
		"oracle", m.Oracle,
		"mae", m.MAE,
		"r2", m.R2,
		"train_rows", m.TrainRows,
		"test_rows", m.TestRows,
		"visibility_p95", set.Reference.VisibilityP95,
		"windspeed_p95", set.Reference.WindSpeedP95,
	)
	return nil
}
