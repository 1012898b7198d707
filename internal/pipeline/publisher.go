package pipeline

import (
	"context"
	"log/slog"
	"time"

	sharedretry "github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	// queueFactor sizes the queue in batches.
	queueFactor = 4
	// flushTimeout bounds the final flush after shutdown.
	flushTimeout = 5 * time.Second
)

// BatchLoader writes prediction records to a sink.
type BatchLoader interface {
	Name() string
	LoadBatch(ctx context.Context, records []domain.PredictionRecord) error
}

// Publisher drains queued prediction records into every loader in batches.
type Publisher struct {
	queue         chan domain.PredictionRecord
	loaders       []BatchLoader
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	metrics       *observability.Metrics
}

// NewPublisher creates a Publisher whose queue holds four batches.
func NewPublisher(loaders []BatchLoader, batchSize int, flushInterval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		queue:         make(chan domain.PredictionRecord, batchSize*queueFactor),
		loaders:       loaders,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger,
		metrics:       metrics,
	}
}

// Enqueue queues r without blocking. It reports false when the queue is full
// and the record was dropped.
func (p *Publisher) Enqueue(r domain.PredictionRecord) bool {
	select {
	case p.queue <- r:
		return true
	default:
		p.metrics.QueueDropped.Inc()
		p.logger.Warn("prediction queue full, dropping record", "id", r.ID)
		return false
	}
}

// Run batches queued records until the context is cancelled, then flushes
// what remains.
func (p *Publisher) Run(ctx context.Context) error {
	p.logger.Info("publisher started", "batch_size", p.batchSize, "loaders", len(p.loaders))

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.PredictionRecord, 0, p.batchSize)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("publisher stopping", "reason", ctx.Err())
			p.shutdown(ctx, batch)
			return nil
		case r := <-p.queue:
			batch = append(batch, r)
			if len(batch) >= p.batchSize {
				p.flush(ctx, batch)
				batch = make([]domain.PredictionRecord, 0, p.batchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(ctx, batch)
				batch = make([]domain.PredictionRecord, 0, p.batchSize)
			}
		}
	}
}

// shutdown drains the queue and writes it out under a fresh deadline.
func (p *Publisher) shutdown(ctx context.Context, batch []domain.PredictionRecord) {
drain:
	for {
		select {
		case r := <-p.queue:
			batch = append(batch, r)
		default:
			break drain
		}
	}
	if len(batch) == 0 {
		return
	}

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	for start := 0; start < len(batch); start += p.batchSize {
		end := min(start+p.batchSize, len(batch))
		p.flush(flushCtx, batch[start:end])
	}
}

func (p *Publisher) flush(ctx context.Context, batch []domain.PredictionRecord) {
	for _, l := range p.loaders {
		p.load(ctx, l, batch)
	}
}

// load retries one loader with exponential backoff until it succeeds or the
// context ends.
func (p *Publisher) load(ctx context.Context, l BatchLoader, batch []domain.PredictionRecord) {
	backoff := initialBackoff
	for {
		err := l.LoadBatch(ctx, batch)
		if err == nil {
			p.metrics.RecordsPublished.Add(float64(len(batch)))
			return
		}
		p.metrics.PublishErrors.WithLabelValues(l.Name()).Inc()
		p.logger.Error("load batch failed", "sink", l.Name(), "error", err, "batch_size", len(batch))

		if ctx.Err() != nil || !sharedretry.SleepWithContext(ctx, backoff) {
			p.logger.Warn("abandoning batch", "sink", l.Name(), "batch_size", len(batch))
			return
		}
		backoff = sharedretry.NextBackoff(backoff, maxBackoff)
	}
}
