// Package weather wraps the OpenWeatherMap current conditions and One Call
// alerts endpoints.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mutablelogic/go-client"

	"github.com/lizzyg/citysense/internal/upstream"
)

const (
	DefaultEndpoint = "https://api.openweathermap.org"
	DefaultUnits    = "metric"

	MissingKeyMessage = "❌ API key for OpenWeatherMap is missing. Set it in your .env file."
)

var ErrMissingKey = errors.New("openweathermap api key is missing")

// IncompleteError is returned when the provider answers without the
// fields a report needs. Raw holds the decoded response.
type IncompleteError struct {
	Raw map[string]any
}

func (e *IncompleteError) Error() string {
	b, _ := json.Marshal(e.Raw)
	return "incomplete weather response: " + string(b)
}

// Report is the current conditions at a coordinate pair.
type Report struct {
	Description        string  `json:"description"`
	TemperatureCelsius float64 `json:"temperature_celsius"`
	City               string  `json:"city"`
	Country            string  `json:"country"`
}

type Client struct {
	*client.Client
	key   string
	units string
}

// New returns a client. An empty key is accepted; lookups then report
// MissingKeyMessage instead of calling the provider.
func New(endpoint, key string, opts ...client.ClientOpt) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c, err := upstream.New(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{Client: c, key: key, units: DefaultUnits}, nil
}

func (c *Client) values(lat, lon string) url.Values {
	q := url.Values{}
	q.Set("lat", lat)
	q.Set("lon", lon)
	q.Set("appid", c.key)
	q.Set("units", c.units)
	return q
}

// CurrentReport fetches current conditions from the 2.5 weather endpoint.
func (c *Client) CurrentReport(ctx context.Context, lat, lon string) (Report, error) {
	if c.key == "" {
		return Report{}, ErrMissingKey
	}
	var raw map[string]any
	if err := c.DoWithContext(ctx, nil, &raw, client.OptPath("data", "2.5", "weather"), client.OptQuery(c.values(lat, lon))); err != nil {
		return Report{}, err
	}
	return parseReport(raw)
}

func parseReport(raw map[string]any) (Report, error) {
	conditions, _ := raw["weather"].([]any)
	main, _ := raw["main"].(map[string]any)
	if len(conditions) == 0 || main == nil {
		return Report{}, &IncompleteError{Raw: raw}
	}
	first, _ := conditions[0].(map[string]any)
	desc, _ := first["description"].(string)
	temp, ok := main["temp"].(float64)
	if !ok {
		return Report{}, &IncompleteError{Raw: raw}
	}
	r := Report{Description: desc, TemperatureCelsius: temp, City: "Unknown City", Country: "Unknown Country"}
	if name, _ := raw["name"].(string); name != "" {
		r.City = name
	}
	if sys, ok := raw["sys"].(map[string]any); ok {
		if country, _ := sys["country"].(string); country != "" {
			r.Country = country
		}
	}
	return r, nil
}

// Current returns the user-facing weather line. It never returns an error;
// failures are rendered as ❌ messages.
func (c *Client) Current(ctx context.Context, lat, lon string) string {
	r, err := c.CurrentReport(ctx, lat, lon)
	var incomplete *IncompleteError
	switch {
	case err == nil:
		return FormatReport(r)
	case errors.Is(err, ErrMissingKey):
		return MissingKeyMessage
	case errors.As(err, &incomplete):
		b, _ := json.Marshal(incomplete.Raw)
		return "❌ Failed to get weather data. Response: " + string(b)
	default:
		return fmt.Sprintf("❌ Error retrieving weather: %v", err)
	}
}

// FormatReport renders a successful report as the user-facing weather line.
func FormatReport(r Report) string {
	return fmt.Sprintf("🌤️ The current weather is **%s** with a temperature of **%s°C**.",
		r.Description, strconv.FormatFloat(r.TemperatureCelsius, 'f', -1, 64))
}
