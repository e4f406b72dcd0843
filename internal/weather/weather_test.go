package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func owmServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var last http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = *r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &last
}

func TestCurrentSuccess(t *testing.T) {
	srv, req := owmServer(t, http.StatusOK, `{
		"weather":[{"description":"light rain"}],
		"main":{"temp":17.5},
		"name":"Porto",
		"sys":{"country":"PT"}
	}`)
	c, err := New(srv.URL, "owm")
	require.NoError(t, err)

	r, err := c.CurrentReport(context.Background(), "41.15", "-8.61")
	require.NoError(t, err)
	assert.Equal(t, Report{Description: "light rain", TemperatureCelsius: 17.5, City: "Porto", Country: "PT"}, r)

	assert.Equal(t, "/data/2.5/weather", req.URL.Path)
	q := req.URL.Query()
	assert.Equal(t, "41.15", q.Get("lat"))
	assert.Equal(t, "-8.61", q.Get("lon"))
	assert.Equal(t, "owm", q.Get("appid"))
	assert.Equal(t, "metric", q.Get("units"))

	out := c.Current(context.Background(), "41.15", "-8.61")
	assert.Equal(t, "🌤️ The current weather is **light rain** with a temperature of **17.5°C**.", out)
}

func TestCurrentFailures(t *testing.T) {
	t.Run("missing key", func(t *testing.T) {
		c, err := New("http://127.0.0.1:1", "")
		require.NoError(t, err)
		assert.Equal(t, MissingKeyMessage, c.Current(context.Background(), "1", "2"))
	})
	t.Run("incomplete response", func(t *testing.T) {
		srv, _ := owmServer(t, http.StatusOK, `{"cod":"200","name":"Nowhere"}`)
		c, err := New(srv.URL, "k")
		require.NoError(t, err)
		out := c.Current(context.Background(), "1", "2")
		assert.True(t, strings.HasPrefix(out, "❌ Failed to get weather data. Response: "), out)
		assert.Contains(t, out, "Nowhere")
	})
	t.Run("transport error", func(t *testing.T) {
		srv, _ := owmServer(t, http.StatusUnauthorized, `{"cod":401,"message":"Invalid API key"}`)
		c, err := New(srv.URL, "bad")
		require.NoError(t, err)
		out := c.Current(context.Background(), "1", "2")
		assert.True(t, strings.HasPrefix(out, "❌ Error retrieving weather: "), out)
	})
}

func TestParseReportDefaults(t *testing.T) {
	r, err := parseReport(map[string]any{
		"weather": []any{map[string]any{"description": "clear sky"}},
		"main":    map[string]any{"temp": 30.0},
	})
	require.NoError(t, err)
	assert.Equal(t, "Unknown City", r.City)
	assert.Equal(t, "Unknown Country", r.Country)
	assert.Equal(t, "🌤️ The current weather is **clear sky** with a temperature of **30°C**.", FormatReport(r))
}
