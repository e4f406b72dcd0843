package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ipinfoServer(t *testing.T, status int, body string, gotPath *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotPath != nil {
			*gotPath = r.URL.Path
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestResolveSplitsLoc(t *testing.T) {
	srv := ipinfoServer(t, http.StatusOK, `{"ip":"8.8.8.8","city":"Lisbon","country":"PT","loc":"12.34,56.78"}`, nil)
	c, err := New(srv.URL, "")
	require.NoError(t, err)

	loc := c.Resolve(context.Background())
	require.False(t, loc.Failed(), loc.Error)
	assert.Equal(t, "12.34", loc.Latitude)
	assert.Equal(t, "56.78", loc.Longitude)
	assert.Equal(t, "Lisbon", loc.City)
	assert.Equal(t, "PT", loc.Country)
	assert.Equal(t, "📍 Your current location is **Lisbon, PT**.\n🧭 Coordinates: Latitude **12.34**, Longitude **56.78**.", loc.Description)
}

func TestResolveMissingLoc(t *testing.T) {
	srv := ipinfoServer(t, http.StatusOK, `{"ip":"8.8.8.8","city":"Lisbon"}`, nil)
	c, err := New(srv.URL, "")
	require.NoError(t, err)

	loc := c.Resolve(context.Background())
	assert.True(t, loc.Failed())
	assert.Equal(t, "❌ Location coordinates not found in IP data.", loc.Error)
	assert.Empty(t, loc.City)
}

func TestResolveUpstreamFailure(t *testing.T) {
	srv := ipinfoServer(t, http.StatusTooManyRequests, `{"error":"rate limited"}`, nil)
	c, err := New(srv.URL, "")
	require.NoError(t, err)

	loc := c.Resolve(context.Background())
	assert.True(t, strings.HasPrefix(loc.Error, "❌ Error retrieving location: "), loc.Error)
}

func TestResolveDefaults(t *testing.T) {
	loc := fromInfo(ipInfo{Loc: "1.5,2.5"})
	assert.Equal(t, "Unknown City", loc.City)
	assert.Equal(t, "Unknown Country", loc.Country)

	loc = fromInfo(ipInfo{Loc: "1.5"})
	assert.True(t, loc.Failed())
}

func TestResolveUsesPublicCallerIP(t *testing.T) {
	var path string
	srv := ipinfoServer(t, http.StatusOK, `{"loc":"1,2"}`, &path)
	c, err := New(srv.URL, "")
	require.NoError(t, err)

	c.Resolve(WithCallerIP(context.Background(), "81.2.69.142"))
	assert.Equal(t, "/81.2.69.142/json", path)

	c.Resolve(WithCallerIP(context.Background(), "192.168.1.10"))
	assert.Equal(t, "/json", path)
}

func TestCallerIP(t *testing.T) {
	tests := []struct {
		addr string
		ok   bool
	}{
		{"81.2.69.142", true},
		{"81.2.69.142:5555", true},
		{"::ffff:81.2.69.142", true},
		{"127.0.0.1", false},
		{"10.0.0.8", false},
		{"not-an-ip", false},
	}
	for _, tt := range tests {
		_, ok := CallerIP(WithCallerIP(context.Background(), tt.addr))
		assert.Equal(t, tt.ok, ok, tt.addr)
	}
}
