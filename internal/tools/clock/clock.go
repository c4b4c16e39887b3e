// Package clock provides the current-time tool. The model has no clock of
// its own, so time-sensitive answers ("is the park open now") need one.
package clock

import (
	"context"
	"time"

	"github.com/haasonsaas/placefinder/internal/faults"
	"github.com/haasonsaas/placefinder/internal/tools"
)

type timeParams struct {
	Timezone string `json:"timezone,omitempty" jsonschema:"description=IANA timezone name such as America/Los_Angeles. Defaults to the server's local timezone."`
}

// Tool reports the current time, optionally in a requested timezone.
type Tool struct {
	now func() time.Time
}

// New creates the current-time tool.
func New() *Tool {
	return &Tool{now: time.Now}
}

func (t *Tool) Name() string { return "current_time" }

func (t *Tool) Description() string {
	return "Get the current date and time, optionally in a specific IANA timezone."
}

func (t *Tool) Schema() map[string]any {
	return tools.SchemaFor(&timeParams{})
}

func (t *Tool) ReturnSchema() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Current time in RFC 3339 format",
	}
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (any, error) {
	now := t.now()
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, faults.Newf(faults.CategoryValidation, faults.SeverityMedium,
				"unknown timezone %q", tz)
		}
		now = now.In(loc)
	}
	return now.Format(time.RFC3339), nil
}
