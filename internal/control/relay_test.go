package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/streetlight-predictor/internal/adapter/thingspeak"
	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
)

type fakeWriter struct {
	entryID string
	err     error
	values  []int
}

func (f *fakeWriter) Update(_ context.Context, value int) (string, error) {
	f.values = append(f.values, value)
	return f.entryID, f.err
}

type fakeMirror struct {
	err       error
	published []domain.Override
}

func (f *fakeMirror) PublishOverride(_ context.Context, o domain.Override) error {
	f.published = append(f.published, o)
	return f.err
}

var testNow = time.Date(2024, 6, 10, 19, 0, 0, 0, time.UTC)

func newRelay(w Writer, m Mirror) (*Relay, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRelay(w, m, clockwork.NewFakeClockAt(testNow), logger, metrics), metrics
}

func TestParseLightsOn(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"1", 1, false},
		{"1.0", 1, false},
		{"2", 0, true},
		{"-1", 0, true},
		{"0.5", 0, true},
		{`"1"`, 0, true},
		{"true", 0, true},
		{"null", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseLightsOn(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidLightsOn)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSetLights_Success(t *testing.T) {
	w := &fakeWriter{entryID: "4711"}
	m := &fakeMirror{}
	relay, metrics := newRelay(w, m)

	o, err := relay.SetLights(context.Background(), json.RawMessage("1"))
	require.NoError(t, err)

	assert.Equal(t, domain.Override{LightsOn: 1, UserOverride: 1, EntryID: "4711", Timestamp: testNow}, o)
	assert.Equal(t, []int{1}, w.values)
	require.Len(t, m.published, 1)
	assert.Equal(t, o, m.published[0])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Overrides.WithLabelValues("success")), 0)
}

func TestSetLights_MirrorFailureIgnored(t *testing.T) {
	relay, _ := newRelay(&fakeWriter{entryID: "12"}, &fakeMirror{err: errors.New("broker down")})

	o, err := relay.SetLights(context.Background(), json.RawMessage("0"))
	require.NoError(t, err)
	assert.Equal(t, "12", o.EntryID)
}

func TestSetLights_InvalidNeverWrites(t *testing.T) {
	w := &fakeWriter{entryID: "1"}
	relay, metrics := newRelay(w, nil)

	_, err := relay.SetLights(context.Background(), json.RawMessage("3"))
	require.ErrorIs(t, err, ErrInvalidLightsOn)
	assert.Empty(t, w.values)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Overrides.WithLabelValues("invalid")), 0)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestSetLights_UpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		want    error
		outcome string
	}{
		{"rejected", thingspeak.ErrWriteRejected, ErrWriteFailed, "rejected"},
		{"status", &thingspeak.StatusError{StatusCode: 400, Body: "bad key"}, ErrWriteFailed, "rejected"},
		{"deadline", context.DeadlineExceeded, ErrTimeout, "timeout"},
		{"net timeout", timeoutError{}, ErrTimeout, "timeout"},
		{"connection", errors.New("connection refused"), ErrUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &fakeMirror{}
			relay, metrics := newRelay(&fakeWriter{err: tt.err}, m)

			_, err := relay.SetLights(context.Background(), json.RawMessage("1"))
			require.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
			assert.Empty(t, m.published)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.Overrides.WithLabelValues(tt.outcome)), 0)
		})
	}
}

func TestSetLights_NoWriter(t *testing.T) {
	relay, _ := newRelay(nil, nil)

	_, err := relay.SetLights(context.Background(), json.RawMessage("1"))
	require.ErrorIs(t, err, ErrUnavailable)
}
