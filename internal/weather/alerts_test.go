package weather

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAlertsNone(t *testing.T) {
	assert.Equal(t, "✅ No active weather alerts for your area. You're safe! ☀️", FormatAlerts(nil, "1", "2"))
}

func TestFormatAlertsTruncates(t *testing.T) {
	desc := strings.Repeat("a", 350)
	out := FormatAlerts([]Alert{{Event: "Heat Advisory", Sender: "NWS", Description: desc}}, "10", "20")

	want := "⚠️ **Heat Advisory** from *NWS*\n📄 " + strings.Repeat("a", 297) + "..." +
		" [Read more in the full alert.]\n📍 Location: 10, 20"
	assert.Equal(t, want, out)
}

func TestFormatAlertsDefaultsAndJoin(t *testing.T) {
	out := FormatAlerts([]Alert{
		{Description: "  line one\nline two  "},
		{Event: "Storm", Sender: "Met Office", Description: "short"},
	}, "1", "2")

	parts := strings.Split(out, "\n\n")
	require.Len(t, parts, 2)
	assert.Equal(t, "⚠️ **Weather Alert** from *N/A*\n📄 line one line two\n📍 Location: 1, 2", parts[0])
	assert.Equal(t, "⚠️ **Storm** from *Met Office*\n📄 short\n📍 Location: 1, 2", parts[1])
}

func TestTruncateCountsRunes(t *testing.T) {
	s, extra := truncate(strings.Repeat("é", 300))
	assert.Empty(t, extra)
	assert.Equal(t, 300, utf8.RuneCountInString(s))

	s, extra = truncate(strings.Repeat("é", 301))
	assert.Equal(t, readMore, extra)
	assert.Equal(t, 300, utf8.RuneCountInString(s))
	assert.True(t, strings.HasSuffix(s, "..."))
}

func TestAlertsEndpoint(t *testing.T) {
	srv, req := owmServer(t, http.StatusOK, `{"lat":1,"lon":2,"alerts":[{"sender_name":"NWS","event":"Flood Warning","description":"River rising"}]}`)
	c, err := New(srv.URL, "k")
	require.NoError(t, err)

	out := c.Alerts(context.Background(), "1", "2")
	assert.Equal(t, "⚠️ **Flood Warning** from *NWS*\n📄 River rising\n📍 Location: 1, 2", out)
	assert.Equal(t, "/data/3.0/onecall", req.URL.Path)
}

func TestAlertsFailures(t *testing.T) {
	c, err := New("http://127.0.0.1:1", "")
	require.NoError(t, err)
	assert.Equal(t, MissingKeyMessage, c.Alerts(context.Background(), "1", "2"))

	srv, _ := owmServer(t, http.StatusInternalServerError, `{"message":"boom"}`)
	c, err = New(srv.URL, "k")
	require.NoError(t, err)
	out := c.Alerts(context.Background(), "1", "2")
	assert.True(t, strings.HasPrefix(out, "❌ Error retrieving weather alerts: "), out)
}

func TestAlertsNoneFromProvider(t *testing.T) {
	srv, _ := owmServer(t, http.StatusOK, `{"lat":1,"lon":2}`)
	c, err := New(srv.URL, "k")
	require.NoError(t, err)
	assert.Equal(t, NoAlertsMessage, c.Alerts(context.Background(), "1", "2"))
}
