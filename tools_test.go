package citysense

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	moderr "github.com/lizzyg/citysense/errors"
	"github.com/lizzyg/citysense/internal/geo"
	"github.com/lizzyg/citysense/internal/places"
	"github.com/lizzyg/citysense/internal/util"
)

type echoArgs struct {
	Text string `json:"text" jsonschema:"description=Text to echo back"`
}

// funcTool is a test tool whose behaviour is a closure.
type funcTool struct {
	name string
	fn   func(ctx context.Context, args any) (any, error)
}

func (f *funcTool) Name() string        { return f.name }
func (f *funcTool) Description() string { return "test tool " + f.name }
func (f *funcTool) Parameters() any     { return &echoArgs{} }
func (f *funcTool) Execute(ctx context.Context, args any) (any, error) {
	return f.fn(ctx, args)
}

func echoTool() *funcTool {
	return &funcTool{name: "echo", fn: func(_ context.Context, args any) (any, error) {
		return args.(*echoArgs).Text, nil
	}}
}

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry(echoTool())

	tests := []struct {
		name    string
		tool    string
		args    string
		want    any
		wantErr error
	}{
		{"plain", "echo", `{"text":"hi"}`, "hi", nil},
		{"fenced", "echo", "```json\n{\"text\":\"fenced\"}\n```", "fenced", nil},
		{"double encoded", "echo", `"{\"text\":\"twice\"}"`, "twice", nil},
		{"empty args", "echo", ``, "", nil},
		{"unknown tool", "nope", `{}`, nil, moderr.ErrUnknownTool},
		{"not an object", "echo", `[1,2]`, nil, moderr.ErrInvalidArguments},
		{"wrong type", "echo", `{"text":5}`, nil, moderr.ErrInvalidArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Invoke(context.Background(), tt.tool, json.RawMessage(tt.args))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistryDuplicateReplaces(t *testing.T) {
	second := &funcTool{name: "echo", fn: func(context.Context, any) (any, error) { return "second", nil }}
	r := NewRegistry(echoTool(), &funcTool{name: "other"}, second)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "echo", defs[0].Name)
	assert.Equal(t, "other", defs[1].Name)

	got, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestDefaultToolDefinitions(t *testing.T) {
	gc, err := geo.New("", "")
	require.NoError(t, err)
	pc, err := places.New("", 0, 0)
	require.NoError(t, err)
	r := NewRegistry(NewLocationTool(gc), NewWeatherTool(nil), NewPlacesTool(pc), NewAlertsTool(nil))

	defs := r.Definitions()
	require.Len(t, defs, len(ToolNames()))
	for i, name := range ToolNames() {
		assert.Equal(t, string(name), defs[i].Name)
		assert.NotEmpty(t, defs[i].Description)

		schema := util.SchemaMap(string(defs[i].Parameters))
		assert.Equal(t, "object", schema["type"], name)
	}

	weatherProps := util.SchemaMap(string(defs[1].Parameters))["properties"].(map[string]any)
	assert.Contains(t, weatherProps, "latitude")
	assert.Contains(t, weatherProps, "longitude")

	placesSchema := util.SchemaMap(string(defs[2].Parameters))
	props := placesSchema["properties"].(map[string]any)
	assert.Equal(t, "number", props["lat"].(map[string]any)["type"])
	assert.Equal(t, "integer", props["radius"].(map[string]any)["type"])
	assert.ElementsMatch(t, []any{"lat", "lon"}, placesSchema["required"])
}

func TestCoordinateUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    Coordinate
		wantErr bool
	}{
		{`38.72`, 38.72, false},
		{`"-9.14"`, -9.14, false},
		{`" 12.5 "`, 12.5, false},
		{`"north"`, 0, true},
		{`"NaN"`, 0, true},
		{`true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var c Coordinate
			err := json.Unmarshal([]byte(tt.in), &c)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, float64(tt.want), float64(c), 1e-9)
		})
	}
}

func TestPlacesArgsDecode(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		radius Meters
		ok     bool
	}{
		{"numbers", `{"lat":38.7,"lon":-9.1,"radius":500}`, 500, true},
		{"numeric strings", `{"lat":"10","lon":"20","radius":"2000"}`, 2000, true},
		{"float radius", `{"lat":"10","lon":"20","radius":1500.0}`, 1500, true},
		{"fractional radius rounds", `{"lat":0,"lon":0,"radius":"250.6"}`, 251, true},
		{"default radius", `{"lat":0,"lon":0}`, 0, true},
		{"empty object", `{}`, 0, false},
		{"missing lat", `{"lon":20}`, 0, false},
		{"missing lon", `{"lat":10}`, 0, false},
		{"null lat", `{"lat":null,"lon":20}`, 0, false},
		{"lat out of range", `{"lat":91,"lon":0}`, 0, false},
		{"lon out of range", `{"lat":0,"lon":-181}`, 0, false},
		{"negative radius", `{"lat":0,"lon":0,"radius":-1}`, 0, false},
		{"text radius", `{"lat":0,"lon":0,"radius":"wide"}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var args PlacesArgs
			err := json.Unmarshal([]byte(tt.in), &args)
			if err == nil {
				err = args.validate()
			}
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.radius, args.Radius)
		})
	}
}

func TestPlacesArgsValidateMissing(t *testing.T) {
	lat := Coordinate(10)
	err := (&PlacesArgs{Lat: &lat}).validate()
	require.ErrorIs(t, err, moderr.ErrInvalidArguments)
	assert.Contains(t, err.Error(), "longitude is required")

	err = (&PlacesArgs{}).validate()
	require.ErrorIs(t, err, moderr.ErrInvalidArguments)
	assert.Contains(t, err.Error(), "latitude is required")
}

func TestPlacesToolArguments(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		queries = append(queries, r.Form.Get("data"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"elements":[]}`))
	}))
	defer srv.Close()
	pc, err := places.New(srv.URL, 1000, 50)
	require.NoError(t, err)
	r := NewRegistry(NewPlacesTool(pc))

	for _, args := range []string{`{}`, `{"lon":20}`, `{"lat":"10"}`} {
		_, err := r.Invoke(context.Background(), string(ToolPlaces), json.RawMessage(args))
		assert.ErrorIs(t, err, moderr.ErrInvalidArguments, args)
	}
	assert.Empty(t, queries, "rejected arguments must not reach the upstream")

	_, err = r.Invoke(context.Background(), string(ToolPlaces), json.RawMessage(`{"lat":"10","lon":"20","radius":1500.0}`))
	require.NoError(t, err)
	_, err = r.Invoke(context.Background(), string(ToolPlaces), json.RawMessage(`{"lat":10,"lon":20,"radius":"2000"}`))
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], "around:1500,10,20")
	assert.Contains(t, queries[1], "around:2000,10,20")
}

func TestPlacesToolUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer srv.Close()
	pc, err := places.New(srv.URL, 1000, 50)
	require.NoError(t, err)

	r := NewRegistry(NewPlacesTool(pc))
	out, err := r.Invoke(context.Background(), string(ToolPlaces), json.RawMessage(`{"lat":"38.72","lon":-9.14}`))
	require.NoError(t, err)
	m, ok := out.(map[string]string)
	require.True(t, ok, "got %T", out)
	assert.Contains(t, m["error"], "❌ Error retrieving nearby places")
	assert.True(t, failedOutput(out))
}

func TestFailedOutput(t *testing.T) {
	assert.True(t, failedOutput("❌ Failed to get weather data."))
	assert.False(t, failedOutput("🌤️ The current weather is **rain**"))
	assert.True(t, failedOutput(geo.Location{Error: "❌ nope"}))
	assert.False(t, failedOutput(geo.Location{City: "Lisbon"}))
	assert.True(t, failedOutput(map[string]any{"error": "x"}))
	assert.False(t, failedOutput([]places.Place{}))
}
