package weather

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mutablelogic/go-client"
)

const (
	NoAlertsMessage = "✅ No active weather alerts for your area. You're safe! ☀️"

	maxDescription = 300
	readMore       = " [Read more in the full alert.]"
)

// Alert is one active warning from the One Call endpoint.
type Alert struct {
	Event       string `json:"event"`
	Sender      string `json:"sender_name"`
	Description string `json:"description"`
	Start       int64  `json:"start,omitempty"`
	End         int64  `json:"end,omitempty"`
}

type oneCall struct {
	Alerts []Alert `json:"alerts"`
}

// ActiveAlerts fetches alerts from the 3.0 One Call endpoint.
func (c *Client) ActiveAlerts(ctx context.Context, lat, lon string) ([]Alert, error) {
	if c.key == "" {
		return nil, ErrMissingKey
	}
	q := c.values(lat, lon)
	q.Set("exclude", "current,minutely,hourly,daily")
	var resp oneCall
	if err := c.DoWithContext(ctx, nil, &resp, client.OptPath("data", "3.0", "onecall"), client.OptQuery(q)); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// Alerts returns the user-facing alert summary, or a ❌ message on failure.
func (c *Client) Alerts(ctx context.Context, lat, lon string) string {
	alerts, err := c.ActiveAlerts(ctx, lat, lon)
	if errors.Is(err, ErrMissingKey) {
		return MissingKeyMessage
	}
	if err != nil {
		return fmt.Sprintf("❌ Error retrieving weather alerts: %v", err)
	}
	return FormatAlerts(alerts, lat, lon)
}

// FormatAlerts renders alerts separated by blank lines, or NoAlertsMessage.
func FormatAlerts(alerts []Alert, lat, lon string) string {
	if len(alerts) == 0 {
		return NoAlertsMessage
	}
	msgs := make([]string, 0, len(alerts))
	for _, a := range alerts {
		event := a.Event
		if event == "" {
			event = "Weather Alert"
		}
		sender := a.Sender
		if sender == "" {
			sender = "N/A"
		}
		desc, extra := truncate(strings.ReplaceAll(strings.TrimSpace(a.Description), "\n", " "))
		msgs = append(msgs, fmt.Sprintf("⚠️ **%s** from *%s*\n📄 %s%s\n📍 Location: %s, %s", event, sender, desc, extra, lat, lon))
	}
	return strings.Join(msgs, "\n\n")
}

// truncate cuts descriptions longer than maxDescription runes to
// maxDescription-3 runes plus an ellipsis, and returns the read-more marker.
func truncate(s string) (string, string) {
	r := []rune(s)
	if len(r) <= maxDescription {
		return s, ""
	}
	return string(r[:maxDescription-3]) + "...", readMore
}
