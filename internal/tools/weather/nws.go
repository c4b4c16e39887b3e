// Package weather provides National Weather Service backed tools: a forecast
// tool and an active-alerts tool. Both resolve coordinates through the NWS
// points endpoint, which maps a lat/lon onto a forecast grid and alert zone.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haasonsaas/placefinder/internal/config"
	"github.com/haasonsaas/placefinder/internal/faults"
)

// NWSClient talks to the National Weather Service API. The API requires a
// descriptive User-Agent and returns GeoJSON-flavored payloads.
type NWSClient struct {
	baseURL          string
	httpClient       *http.Client
	userAgentWeather string
	userAgentAlerts  string
}

// NewNWSClient builds a client from the resolved weather settings.
func NewNWSClient(settings config.WeatherSettings) *NWSClient {
	timeout := settings.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimSuffix(settings.BaseURL, "/")
	if base == "" {
		base = config.DefaultNWSBase
	}
	return &NWSClient{
		baseURL:          base,
		httpClient:       &http.Client{Timeout: timeout},
		userAgentWeather: settings.UserAgentWeather,
		userAgentAlerts:  settings.UserAgentAlerts,
	}
}

// pointInfo is the slice of the points response the tools need.
type pointInfo struct {
	ForecastURL string
	ZoneID      string
}

type pointsResponse struct {
	Properties struct {
		Forecast     string `json:"forecast"`
		ForecastZone string `json:"forecastZone"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []ForecastPeriod `json:"periods"`
	} `json:"properties"`
}

// ForecastPeriod is one named window of the NWS forecast.
type ForecastPeriod struct {
	Name             string `json:"name"`
	Temperature      int    `json:"temperature"`
	TemperatureUnit  string `json:"temperatureUnit"`
	WindSpeed        string `json:"windSpeed"`
	WindDirection    string `json:"windDirection"`
	ShortForecast    string `json:"shortForecast"`
	DetailedForecast string `json:"detailedForecast"`
}

type alertsResponse struct {
	Features []struct {
		Properties Alert `json:"properties"`
	} `json:"features"`
}

// Alert is one active NWS alert for a zone.
type Alert struct {
	Event       string `json:"event"`
	Headline    string `json:"headline"`
	Severity    string `json:"severity"`
	Urgency     string `json:"urgency"`
	Description string `json:"description"`
	Effective   string `json:"effective"`
	Expires     string `json:"expires"`
}

func (c *NWSClient) get(ctx context.Context, url, userAgent string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return faults.New(faults.CategoryInternal, faults.SeverityHigh,
			"failed to build weather request").WithCause(err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return faults.Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryAfter := 0
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retryAfter = secs
			}
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return faults.FromHTTPStatus(resp.StatusCode, retryAfter)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return faults.New(faults.CategoryProtocol, faults.SeverityHigh,
			"weather service returned an unparseable response").WithCause(err)
	}
	return nil
}

// point resolves coordinates to the forecast URL and alert zone id. NWS zone
// ids are the last path segment of the forecastZone URL.
func (c *NWSClient) point(ctx context.Context, lat, lon float64) (*pointInfo, error) {
	url := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)
	var pr pointsResponse
	if err := c.get(ctx, url, c.userAgentWeather, &pr); err != nil {
		return nil, err
	}
	if pr.Properties.Forecast == "" {
		return nil, faults.New(faults.CategoryProtocol, faults.SeverityHigh,
			"weather service returned no forecast for these coordinates")
	}

	zone := pr.Properties.ForecastZone
	if idx := strings.LastIndex(zone, "/"); idx >= 0 {
		zone = zone[idx+1:]
	}
	return &pointInfo{ForecastURL: pr.Properties.Forecast, ZoneID: zone}, nil
}

// Forecast returns the forecast periods for the coordinates.
func (c *NWSClient) Forecast(ctx context.Context, lat, lon float64) ([]ForecastPeriod, error) {
	info, err := c.point(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	var fr forecastResponse
	if err := c.get(ctx, info.ForecastURL, c.userAgentWeather, &fr); err != nil {
		return nil, err
	}
	if len(fr.Properties.Periods) == 0 {
		return nil, faults.New(faults.CategoryProtocol, faults.SeverityHigh,
			"weather service returned an empty forecast")
	}
	return fr.Properties.Periods, nil
}

// Alerts returns the active alerts for the zone covering the coordinates.
func (c *NWSClient) Alerts(ctx context.Context, lat, lon float64) ([]Alert, error) {
	info, err := c.point(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	if info.ZoneID == "" {
		return nil, faults.New(faults.CategoryProtocol, faults.SeverityHigh,
			"weather service returned no alert zone for these coordinates")
	}

	url := fmt.Sprintf("%s/alerts/active/zone/%s", c.baseURL, info.ZoneID)
	var ar alertsResponse
	if err := c.get(ctx, url, c.userAgentAlerts, &ar); err != nil {
		return nil, err
	}
	alerts := make([]Alert, 0, len(ar.Features))
	for _, f := range ar.Features {
		alerts = append(alerts, f.Properties)
	}
	return alerts, nil
}
