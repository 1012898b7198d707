// Package control relays user light overrides to the lamp.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/streetlight-predictor/internal/adapter/thingspeak"
	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
)

var (
	// ErrInvalidLightsOn is returned for a lights_on value other than 0 or 1.
	ErrInvalidLightsOn = errors.New("invalid lights_on value, must be 0 or 1")
	// ErrWriteFailed is returned when the channel answers but refuses the write.
	ErrWriteFailed = errors.New("telemetry write failed")
	// ErrTimeout is returned when the channel does not answer in time.
	ErrTimeout = errors.New("telemetry write timed out")
	// ErrUnavailable is returned when the channel cannot be reached or is not configured.
	ErrUnavailable = errors.New("telemetry channel unavailable")
)

// Writer stores the override value and returns the new entry id.
type Writer interface {
	Update(ctx context.Context, value int) (string, error)
}

// Mirror forwards an accepted override to the lamp controller.
type Mirror interface {
	PublishOverride(ctx context.Context, o domain.Override) error
}

// Relay validates overrides, writes them to the telemetry channel, and
// mirrors accepted ones.
type Relay struct {
	writer  Writer
	mirror  Mirror
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRelay creates a Relay. writer and mirror may be nil.
func NewRelay(writer Writer, mirror Mirror, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Relay {
	return &Relay{writer: writer, mirror: mirror, clock: clock, logger: logger, metrics: metrics}
}

// ParseLightsOn decodes a lights_on JSON value. A missing value is 0. Only
// the numbers 0 and 1 are accepted.
func ParseLightsOn(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	if string(raw) == "null" {
		return 0, ErrInvalidLightsOn
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, ErrInvalidLightsOn
	}
	switch v {
	case 0:
		return 0, nil
	case 1:
		return 1, nil
	default:
		return 0, ErrInvalidLightsOn
	}
}

// SetLights relays the raw lights_on value. Mirror failures are logged and
// do not fail the call.
func (r *Relay) SetLights(ctx context.Context, raw json.RawMessage) (domain.Override, error) {
	value, err := ParseLightsOn(raw)
	if err != nil {
		r.count("invalid")
		return domain.Override{}, err
	}
	r.logger.Info("light control request", "lights_on", value)

	if r.writer == nil {
		r.count("unavailable")
		return domain.Override{}, fmt.Errorf("%w: no write key configured", ErrUnavailable)
	}

	entryID, err := r.writer.Update(ctx, value)
	if err != nil {
		outcome, err := classify(err)
		r.count(outcome)
		r.logger.Error("light control write failed", "error", err)
		return domain.Override{}, err
	}

	o := domain.Override{
		LightsOn:     value,
		UserOverride: value,
		EntryID:      entryID,
		Timestamp:    r.clock.Now(),
	}
	r.count("success")
	r.logger.Info("light control updated", "entry_id", entryID)

	if r.mirror != nil {
		if err := r.mirror.PublishOverride(ctx, o); err != nil {
			r.logger.Warn("override mirror failed", "upstream", "mqtt", "error", err)
		}
	}
	return o, nil
}

// classify maps a channel error onto the relay's error kinds and a metric outcome.
func classify(err error) (string, error) {
	var statusErr *thingspeak.StatusError
	switch {
	case thingspeak.IsTimeout(err):
		return "timeout", fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, thingspeak.ErrWriteRejected), errors.As(err, &statusErr):
		return "rejected", fmt.Errorf("%w: %w", ErrWriteFailed, err)
	default:
		return "unavailable", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}

func (r *Relay) count(outcome string) {
	r.metrics.Overrides.WithLabelValues(outcome).Inc()
}
