// Package thingspeak reads lamp telemetry from, and writes user overrides
// to, a ThingSpeak channel. field1 carries ambient light, field2 motion and
// field3 the user override.
package thingspeak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
)

const gatewayName = "thingspeak"

var (
	// ErrNoFeeds is returned when the channel has no entries.
	ErrNoFeeds = errors.New("no data available from ThingSpeak")
	// ErrMissingFields is returned when the latest entry lacks field1 or field2.
	ErrMissingFields = errors.New("missing required sensor data fields")
	// ErrWriteRejected is returned when an update is answered with entry id 0.
	ErrWriteRejected = errors.New("ThingSpeak write failed")
	// ErrInvalidField is returned for a field value that is not numeric.
	ErrInvalidField = errors.New("invalid sensor field value")
)

// StatusError is a non-200 response from ThingSpeak.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ThingSpeak API error: HTTP %d: %s", e.StatusCode, e.Body)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Client is a ThingSpeak channel client.
type Client struct {
	baseURL    string
	channelID  string
	readKey    string
	writeKey   string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewClient creates a ThingSpeak client for one channel.
func NewClient(baseURL, channelID, readKey, writeKey string, timeout time.Duration, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		channelID:  channelID,
		readKey:    readKey,
		writeKey:   writeKey,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
	}
}

// Latest returns the most recent entry. Unlike Feeds, it requires field1 and
// field2 to be present (they may be null).
func (c *Client) Latest(ctx context.Context) (domain.SensorLogEntry, error) {
	feeds, err := c.fetch(ctx, 1)
	if err != nil {
		return domain.SensorLogEntry{}, err
	}
	f := feeds[len(feeds)-1]
	if _, ok := f["field1"]; !ok {
		return domain.SensorLogEntry{}, ErrMissingFields
	}
	if _, ok := f["field2"]; !ok {
		return domain.SensorLogEntry{}, ErrMissingFields
	}
	return parseEntry(f)
}

// Feeds returns up to n entries in channel order, oldest first.
func (c *Client) Feeds(ctx context.Context, n int) ([]domain.SensorLogEntry, error) {
	feeds, err := c.fetch(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SensorLogEntry, 0, len(feeds))
	for _, f := range feeds {
		e, err := parseEntry(f)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Update writes value to field3 and returns the new entry id.
func (c *Client) Update(ctx context.Context, value int) (string, error) {
	start := time.Now()
	defer c.observe(start)

	form := url.Values{
		"api_key": {c.writeKey},
		"field3":  {strconv.Itoa(value)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/update", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("update request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	entryID := strings.TrimSpace(string(body))
	if entryID == "0" || entryID == "" {
		return "", ErrWriteRejected
	}
	return entryID, nil
}

func (c *Client) fetch(ctx context.Context, n int) ([]map[string]json.RawMessage, error) {
	start := time.Now()
	defer c.observe(start)

	params := url.Values{
		"results": {strconv.Itoa(n)},
		"api_key": {c.readKey},
	}
	u := fmt.Sprintf("%s/channels/%s/feeds.json?%s", c.baseURL, url.PathEscape(c.channelID), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feeds request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out feedsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Feeds) == 0 {
		return nil, ErrNoFeeds
	}
	return out.Feeds, nil
}

func (c *Client) observe(start time.Time) {
	c.metrics.GatewayDuration.WithLabelValues(gatewayName).Observe(time.Since(start).Seconds())
}

func parseEntry(f map[string]json.RawMessage) (domain.SensorLogEntry, error) {
	ambient, err := fieldValue(f, "field1")
	if err != nil {
		return domain.SensorLogEntry{}, err
	}
	motion, err := fieldValue(f, "field2")
	if err != nil {
		return domain.SensorLogEntry{}, err
	}

	e := domain.SensorLogEntry{AmbientLight: ambient}
	if motion != 0 {
		e.Motion = 1
	}
	if raw, ok := f["entry_id"]; ok {
		_ = json.Unmarshal(raw, &e.EntryID)
	}
	if raw, ok := f["created_at"]; ok {
		_ = json.Unmarshal(raw, &e.Timestamp)
	}
	return e, nil
}

// fieldValue decodes a channel field. ThingSpeak sends numbers as strings;
// absent, null and empty values read as 0. Non-finite values such as "nan"
// from a failed sensor are invalid.
func fieldValue(f map[string]json.RawMessage, name string) (float64, error) {
	raw, ok := f[name]
	if !ok {
		return 0, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidField, name)
	}
	switch x := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %s=%q", ErrInvalidField, name, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidField, name)
	}
}

// ThingSpeak API response types.

type feedsResponse struct {
	Feeds []map[string]json.RawMessage `json:"feeds"`
}
