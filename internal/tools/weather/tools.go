package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/tools"
)

type coordinateParams struct {
	Latitude  float64 `json:"latitude" jsonschema:"description=Latitude in decimal degrees,minimum=-90,maximum=90"`
	Longitude float64 `json:"longitude" jsonschema:"description=Longitude in decimal degrees,minimum=-180,maximum=180"`
}

func parseCoordinates(args map[string]any) (lat, lon float64, err error) {
	lat, ok := toFloat(args["latitude"])
	if !ok {
		return 0, 0, faults.New(faults.CategoryValidation, faults.SeverityMedium,
			"latitude is required and must be a number")
	}
	lon, ok = toFloat(args["longitude"])
	if !ok {
		return 0, 0, faults.New(faults.CategoryValidation, faults.SeverityMedium,
			"longitude is required and must be a number")
	}
	if lat < -90 || lat > 90 {
		return 0, 0, faults.Newf(faults.CategoryValidation, faults.SeverityMedium,
			"latitude %.4f is out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return 0, 0, faults.Newf(faults.CategoryValidation, faults.SeverityMedium,
			"longitude %.4f is out of range [-180, 180]", lon)
	}
	return lat, lon, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// ForecastTool reports current conditions and the short-term forecast.
type ForecastTool struct {
	client *NWSClient
}

// NewForecastTool creates the forecast tool over an NWS client.
func NewForecastTool(client *NWSClient) *ForecastTool {
	return &ForecastTool{client: client}
}

func (t *ForecastTool) Name() string { return "get_weather" }

func (t *ForecastTool) Description() string {
	return "Get the current weather and short-term forecast for a location given its latitude and longitude."
}

func (t *ForecastTool) Schema() map[string]any {
	return tools.SchemaFor(&coordinateParams{})
}

func (t *ForecastTool) ReturnSchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Human-readable forecast summary",
	}
}

func (t *ForecastTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	lat, lon, err := parseCoordinates(args)
	if err != nil {
		return nil, err
	}
	periods, err := t.client.Forecast(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return formatForecast(periods), nil
}

// formatForecast renders the leading periods. The first period is current
// conditions; one more gives the model enough to answer follow-ups.
func formatForecast(periods []ForecastPeriod) string {
	var sb strings.Builder
	limit := min(len(periods), 2)
	for i := 0; i < limit; i++ {
		p := periods[i]
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "%s: %d°%s, wind %s %s. %s",
			p.Name, p.Temperature, p.TemperatureUnit, p.WindDirection, p.WindSpeed, p.ShortForecast)
		if p.DetailedForecast != "" {
			fmt.Fprintf(&sb, "\n%s", p.DetailedForecast)
		}
	}
	return sb.String()
}

// AlertsTool reports active weather alerts for a location's zone.
type AlertsTool struct {
	client *NWSClient
}

// NewAlertsTool creates the alerts tool over an NWS client.
func NewAlertsTool(client *NWSClient) *AlertsTool {
	return &AlertsTool{client: client}
}

func (t *AlertsTool) Name() string { return "get_alerts" }

func (t *AlertsTool) Description() string {
	return "Get active weather alerts and warnings for a location given its latitude and longitude."
}

func (t *AlertsTool) Schema() map[string]any {
	return tools.SchemaFor(&coordinateParams{})
}

func (t *AlertsTool) ReturnSchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Human-readable alert summary",
	}
}

func (t *AlertsTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	lat, lon, err := parseCoordinates(args)
	if err != nil {
		return nil, err
	}
	alerts, err := t.client.Alerts(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	return formatAlerts(alerts), nil
}

func formatAlerts(alerts []Alert) string {
	if len(alerts) == 0 {
		return "No active weather alerts for this area."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d active alert(s):", len(alerts))
	for _, a := range alerts {
		fmt.Fprintf(&sb, "\n\n%s (%s, %s)", a.Event, a.Severity, a.Urgency)
		if a.Headline != "" {
			fmt.Fprintf(&sb, "\n%s", a.Headline)
		}
		if a.Effective != "" || a.Expires != "" {
			fmt.Fprintf(&sb, "\nEffective %s, expires %s", a.Effective, a.Expires)
		}
	}
	return sb.String()
}
