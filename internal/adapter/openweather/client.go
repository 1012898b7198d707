// Package openweather reads air pollution from the OpenWeather API.
package openweather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
)

const gatewayName = "openweather"

// aqiScale maps the provider's 1-5 index onto the 0-100+ scale the cascade uses.
const aqiScale = 20

// ErrNoData is returned when the response list is empty.
var ErrNoData = errors.New("air pollution response has no entries")

// Client is an OpenWeather air pollution client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
}

// NewClient creates an OpenWeather client.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		metrics:    metrics,
	}
}

// AirQuality returns the current air quality at lat/lon. PM2.5 defaults to
// 12 when the component is missing.
func (c *Client) AirQuality(ctx context.Context, lat, lon float64) (domain.AirQuality, error) {
	start := time.Now()
	defer func() {
		c.metrics.GatewayDuration.WithLabelValues(gatewayName).Observe(time.Since(start).Seconds())
	}()

	params := url.Values{
		"lat":   {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(lon, 'f', -1, 64)},
		"appid": {c.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/air_pollution?"+params.Encode(), nil)
	if err != nil {
		return domain.AirQuality{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AirQuality{}, fmt.Errorf("air pollution request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.AirQuality{}, fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.AirQuality{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.List) == 0 {
		return domain.AirQuality{}, ErrNoData
	}

	first := out.List[0]
	aq := domain.AirQuality{AQI: first.Main.AQI * aqiScale, PM25: domain.DefaultAirQuality().PM25}
	if first.Components.PM25 != nil {
		aq.PM25 = *first.Components.PM25
	}
	return aq, nil
}

// OpenWeather API response types.

type response struct {
	List []struct {
		Main struct {
			AQI float64 `json:"aqi"`
		} `json:"main"`
		Components struct {
			PM25 *float64 `json:"pm2_5"`
		} `json:"components"`
	} `json:"list"`
}
