// Package visualcrossing reads current conditions and today's hourly
// forecast from the Visual Crossing timeline API.
package visualcrossing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/streetlight-predictor/internal/domain"
	"github.com/couchcryptid/streetlight-predictor/internal/observability"
)

const gatewayName = "visualcrossing"

// ErrNoHours is returned when the forecast response carries no hourly data.
var ErrNoHours = errors.New("forecast has no hourly data")

// Client is a Visual Crossing timeline API client.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Visual Crossing client.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Current returns current conditions at location. Fields missing from the
// response take the provider defaults (20C, 60%, 50% cloud, 10km, 10km/h).
func (c *Client) Current(ctx context.Context, location string) (domain.CurrentWeather, error) {
	params := url.Values{
		"unitGroup": {"metric"},
		"key":       {c.apiKey},
		"include":   {"current"},
		"elements":  {"temp,humidity,cloudcover,visibility,windspeed,conditions,datetime"},
	}
	u := fmt.Sprintf("%s/%s/today?%s", c.baseURL, url.PathEscape(location), params.Encode())

	resp, err := c.doRequest(ctx, u, "current")
	if err != nil {
		return domain.CurrentWeather{}, err
	}

	cw := domain.DefaultCurrentWeather()
	if cc := resp.CurrentConditions; cc != nil {
		setIfPresent(&cw.Temperature, cc.Temp)
		setIfPresent(&cw.Humidity, cc.Humidity)
		setIfPresent(&cw.CloudCover, cc.CloudCover)
		setIfPresent(&cw.Visibility, cc.Visibility)
		setIfPresent(&cw.WindSpeed, cc.WindSpeed)
	}
	return cw, nil
}

// Today returns today's hourly forecast at location.
func (c *Client) Today(ctx context.Context, location string) ([]domain.HourlyConditions, error) {
	params := url.Values{
		"unitGroup": {"metric"},
		"key":       {c.apiKey},
		"include":   {"hours"},
	}
	u := fmt.Sprintf("%s/%s/today?%s", c.baseURL, url.PathEscape(location), params.Encode())

	resp, err := c.doRequest(ctx, u, "today")
	if err != nil {
		return nil, err
	}
	if len(resp.Days) == 0 || len(resp.Days[0].Hours) == 0 {
		return nil, ErrNoHours
	}

	hours := make([]domain.HourlyConditions, 0, len(resp.Days[0].Hours))
	for _, h := range resp.Days[0].Hours {
		t, err := time.Parse("15:04:05", h.Datetime)
		if err != nil {
			c.logger.Debug("skipping forecast hour with bad datetime", "datetime", h.Datetime)
			continue
		}
		hours = append(hours, domain.HourlyConditions{
			Hour:           t.Hour(),
			SolarRadiation: h.SolarRadiation,
			CloudCover:     h.CloudCover,
			UVIndex:        h.UVIndex,
			WindSpeed:      h.WindSpeed,
		})
	}
	if len(hours) == 0 {
		return nil, ErrNoHours
	}
	return hours, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, op string) (timelineResponse, error) {
	start := time.Now()
	defer func() {
		c.metrics.GatewayDuration.WithLabelValues(gatewayName).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return timelineResponse{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return timelineResponse{}, fmt.Errorf("%s weather request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return timelineResponse{}, fmt.Errorf("visual crossing API error: status %d: %s", resp.StatusCode, body)
	}

	var out timelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return timelineResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func setIfPresent(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Visual Crossing API response types.

type timelineResponse struct {
	CurrentConditions *conditions `json:"currentConditions"`
	Days              []day       `json:"days"`
}

type day struct {
	Hours []conditions `json:"hours"`
}

type conditions struct {
	Datetime       string   `json:"datetime"`
	Temp           *float64 `json:"temp"`
	Humidity       *float64 `json:"humidity"`
	CloudCover     *float64 `json:"cloudcover"`
	Visibility     *float64 `json:"visibility"`
	WindSpeed      *float64 `json:"windspeed"`
	SolarRadiation *float64 `json:"solarradiation"`
	UVIndex        *float64 `json:"uvindex"`
	Conditions     string   `json:"conditions"`
}
