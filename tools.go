package citysense

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/mutablelogic/go-client"

	moderr "github.com/lizzyg/citysense/errors"
	"github.com/lizzyg/citysense/internal/config"
	"github.com/lizzyg/citysense/internal/geo"
	"github.com/lizzyg/citysense/internal/places"
	"github.com/lizzyg/citysense/internal/util"
	"github.com/lizzyg/citysense/internal/weather"
)

// ToolName is the closed set of capabilities offered to the model.
type ToolName string

const (
	ToolLocation ToolName = "get_location_from_ip"
	ToolWeather  ToolName = "get_weather_from_location"
	ToolPlaces   ToolName = "get_nearby_places_osm"
	ToolAlerts   ToolName = "get_weather_alerts_from_location"
)

// ToolNames lists every tool in declaration order.
func ToolNames() []ToolName {
	return []ToolName{ToolLocation, ToolWeather, ToolPlaces, ToolAlerts}
}

// ToolDefinition is the contract a model runtime sees for one tool.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Registry dispatches tool calls by name.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry returns a registry holding tools. Later duplicates replace earlier ones.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{index: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := r.index[t.Name()]; !dup {
			r.tools = append(r.tools, t)
		} else {
			for i, old := range r.tools {
				if old.Name() == t.Name() {
					r.tools[i] = t
				}
			}
		}
		r.index[t.Name()] = t
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Definitions returns the tool contract in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, len(r.tools))
	for i, t := range r.tools {
		defs[i] = ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  json.RawMessage(util.GenerateJSONSchema(t.Parameters())),
		}
	}
	return defs
}

// Invoke decodes args into the tool's parameter struct and executes it.
// Unknown names return ErrUnknownTool; undecodable args ErrInvalidArguments.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", moderr.ErrUnknownTool, name)
	}
	repaired, ok := util.RepairArgs(args)
	if !ok {
		return nil, fmt.Errorf("%w: %s: not a JSON object: %s", moderr.ErrInvalidArguments, name, string(args))
	}
	argStruct := tool.Parameters()
	if err := json.Unmarshal(repaired, argStruct); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", moderr.ErrInvalidArguments, name, err)
	}
	return tool.Execute(ctx, argStruct)
}

// NewDefaultTools builds the four lookups from cfg.
func NewDefaultTools(cfg *config.Config, opts ...client.ClientOpt) ([]Tool, error) {
	gc, err := geo.New(cfg.Geo.Endpoint, cfg.Geo.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("geolocation client: %w", err)
	}
	wc, err := weather.New(cfg.Weather.Endpoint, cfg.Weather.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	pc, err := places.New(cfg.Places.Endpoint, cfg.Places.DefaultRadius, cfg.Places.MaxResults, opts...)
	if err != nil {
		return nil, fmt.Errorf("places client: %w", err)
	}
	return []Tool{
		&LocationTool{geo: gc},
		&WeatherTool{weather: wc},
		&PlacesTool{places: pc},
		&AlertsTool{weather: wc},
	}, nil
}

///////////////////////////////////////////////////////////////////////////////
// Location

type LocationArgs struct{}

type LocationTool struct {
	geo *geo.Client
}

func NewLocationTool(c *geo.Client) *LocationTool { return &LocationTool{geo: c} }

func (t *LocationTool) Name() string { return string(ToolLocation) }

func (t *LocationTool) Description() string {
	return "Detect the user's current city, country and coordinates from their IP address. " +
		"Call this first whenever the user's coordinates are not yet known."
}

func (t *LocationTool) Parameters() any { return &LocationArgs{} }

func (t *LocationTool) Execute(ctx context.Context, _ any) (any, error) {
	return t.geo.Resolve(ctx), nil
}

///////////////////////////////////////////////////////////////////////////////
// Weather

type CoordinateArgs struct {
	Latitude  string `json:"latitude" jsonschema:"description=Latitude in decimal degrees"`
	Longitude string `json:"longitude" jsonschema:"description=Longitude in decimal degrees"`
}

type WeatherTool struct {
	weather *weather.Client
}

func NewWeatherTool(c *weather.Client) *WeatherTool { return &WeatherTool{weather: c} }

func (t *WeatherTool) Name() string { return string(ToolWeather) }

func (t *WeatherTool) Description() string {
	return "Get the current weather condition and temperature in Celsius for the given coordinates."
}

func (t *WeatherTool) Parameters() any { return &CoordinateArgs{} }

func (t *WeatherTool) Execute(ctx context.Context, args any) (any, error) {
	a := args.(*CoordinateArgs)
	return t.weather.Current(ctx, a.Latitude, a.Longitude), nil
}

///////////////////////////////////////////////////////////////////////////////
// Alerts

type AlertsTool struct {
	weather *weather.Client
}

func NewAlertsTool(c *weather.Client) *AlertsTool { return &AlertsTool{weather: c} }

func (t *AlertsTool) Name() string { return string(ToolAlerts) }

func (t *AlertsTool) Description() string {
	return "Get real-time severe weather alerts (storms, heatwaves, floods) for the given coordinates. " +
		"Returns a formatted list of alerts or a safe status."
}

func (t *AlertsTool) Parameters() any { return &CoordinateArgs{} }

func (t *AlertsTool) Execute(ctx context.Context, args any) (any, error) {
	a := args.(*CoordinateArgs)
	return t.weather.Alerts(ctx, a.Latitude, a.Longitude), nil
}

///////////////////////////////////////////////////////////////////////////////
// Places

// Coordinate is a decimal degree value that decodes from a JSON number or
// a numeric string.
type Coordinate float64

func (c *Coordinate) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("coordinate %s is not a number", string(b))
	}
	*c = Coordinate(v)
	return nil
}

func (Coordinate) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: "Decimal degrees; numeric strings are accepted"}
}

// Meters is a whole-meter distance that decodes from a JSON number or a
// numeric string. Fractions are rounded; negative values are rejected.
type Meters int

func (m *Meters) UnmarshalJSON(b []byte) error {
	var c Coordinate
	if err := c.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("radius %s is not a number", string(b))
	}
	if c < 0 {
		return fmt.Errorf("radius %s is negative", string(b))
	}
	if c > math.MaxInt32 {
		return fmt.Errorf("radius %s is too large", string(b))
	}
	*m = Meters(math.Round(float64(c)))
	return nil
}

func (Meters) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: "Search radius in meters (default 1000); numeric strings are accepted"}
}

// PlacesArgs holds the coordinates as pointers so an omitted value is
// rejected rather than read as zero.
type PlacesArgs struct {
	Lat    *Coordinate `json:"lat" jsonschema:"description=Latitude in decimal degrees"`
	Lon    *Coordinate `json:"lon" jsonschema:"description=Longitude in decimal degrees"`
	Radius Meters      `json:"radius,omitempty"`
}

func (a *PlacesArgs) validate() error {
	switch {
	case a.Lat == nil:
		return fmt.Errorf("%w: latitude is required", moderr.ErrInvalidArguments)
	case a.Lon == nil:
		return fmt.Errorf("%w: longitude is required", moderr.ErrInvalidArguments)
	case *a.Lat < -90 || *a.Lat > 90:
		return fmt.Errorf("%w: latitude %v out of range", moderr.ErrInvalidArguments, float64(*a.Lat))
	case *a.Lon < -180 || *a.Lon > 180:
		return fmt.Errorf("%w: longitude %v out of range", moderr.ErrInvalidArguments, float64(*a.Lon))
	case a.Radius < 0:
		return fmt.Errorf("%w: radius %d is negative", moderr.ErrInvalidArguments, a.Radius)
	}
	return nil
}

type PlacesTool struct {
	places *places.Client
}

func NewPlacesTool(c *places.Client) *PlacesTool { return &PlacesTool{places: c} }

func (t *PlacesTool) Name() string { return string(ToolPlaces) }

func (t *PlacesTool) Description() string {
	return "Find nearby amenities (restaurants, clinics, pharmacies, schools, ATMs...) from OpenStreetMap " +
		"within a radius in meters of the given coordinates."
}

func (t *PlacesTool) Parameters() any { return &PlacesArgs{} }

func (t *PlacesTool) Execute(ctx context.Context, args any) (any, error) {
	a := args.(*PlacesArgs)
	if err := a.validate(); err != nil {
		return nil, err
	}
	found, err := t.places.Nearby(ctx, float64(*a.Lat), float64(*a.Lon), int(a.Radius))
	if err != nil {
		return map[string]string{"error": fmt.Sprintf("❌ Error retrieving nearby places: %v", err)}, nil
	}
	return found, nil
}

// failedOutput reports whether a tool output carries a lookup failure.
func failedOutput(out any) bool {
	switch v := out.(type) {
	case string:
		return strings.HasPrefix(v, "❌")
	case geo.Location:
		return v.Failed()
	case map[string]string:
		_, ok := v["error"]
		return ok
	case map[string]any:
		_, ok := v["error"]
		return ok
	}
	return false
}

func logToolOutcome(ctx context.Context, logger *slog.Logger, call ToolCall, failed bool, err error) {
	if err != nil {
		logger.WarnContext(ctx, "tool call failed",
			slog.String("tool", call.Name), slog.String("call_id", call.ID), slog.Any("error", err))
		return
	}
	logger.DebugContext(ctx, "tool call",
		slog.String("tool", call.Name), slog.String("call_id", call.ID), slog.Bool("lookup_failed", failed))
}
