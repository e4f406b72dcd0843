// Package geo resolves the caller's approximate location from their IP address.
package geo

import (
	"context"
	"fmt"
	"net/netip"
	"net/url"
	"strings"

	"github.com/mutablelogic/go-client"

	"github.com/lizzyg/citysense/internal/upstream"
)

const (
	DefaultEndpoint = "https://ipinfo.io"

	unknownCity    = "Unknown City"
	unknownCountry = "Unknown Country"
)

// Location is the resolver's answer. Exactly one of Error or the location
// fields is populated.
type Location struct {
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
	Latitude    string `json:"latitude,omitempty"`
	Longitude   string `json:"longitude,omitempty"`
	Description string `json:"description,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Failed reports whether the lookup produced an error value.
func (l Location) Failed() bool { return l.Error != "" }

type ipInfo struct {
	IP      string `json:"ip"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
	Loc     string `json:"loc"`
}

type Client struct {
	*client.Client
	token string
}

// New returns an ipinfo client. token may be empty for the anonymous tier.
func New(endpoint, token string, opts ...client.ClientOpt) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c, err := upstream.New(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{Client: c, token: token}, nil
}

// Resolve looks up the caller's location. Failures never escape as errors;
// they come back in Location.Error.
func (c *Client) Resolve(ctx context.Context) Location {
	var info ipInfo
	path := client.OptPath("json")
	if ip, ok := CallerIP(ctx); ok {
		path = client.OptPath(ip.String(), "json")
	}
	q := url.Values{}
	if c.token != "" {
		q.Set("token", c.token)
	}
	if err := c.DoWithContext(ctx, nil, &info, path, client.OptQuery(q)); err != nil {
		return Location{Error: fmt.Sprintf("❌ Error retrieving location: %v", err)}
	}
	return fromInfo(info)
}

func fromInfo(info ipInfo) Location {
	if info.Loc == "" {
		return Location{Error: "❌ Location coordinates not found in IP data."}
	}
	lat, lon, ok := strings.Cut(info.Loc, ",")
	if !ok || strings.Contains(lon, ",") {
		return Location{Error: fmt.Sprintf("❌ Error retrieving location: malformed coordinates %q", info.Loc)}
	}
	city := orDefault(info.City, unknownCity)
	country := orDefault(info.Country, unknownCountry)
	return Location{
		City:      city,
		Country:   country,
		Latitude:  lat,
		Longitude: lon,
		Description: fmt.Sprintf("📍 Your current location is **%s, %s**.\n🧭 Coordinates: Latitude **%s**, Longitude **%s**.",
			city, country, lat, lon),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

type callerIPKey struct{}

// WithCallerIP attaches the end user's address to ctx. Resolve uses it
// instead of the process's own egress address when it is publicly routable.
func WithCallerIP(ctx context.Context, addr string) context.Context {
	ip, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		if ap, err2 := netip.ParseAddrPort(addr); err2 == nil {
			ip = ap.Addr()
		} else {
			return ctx
		}
	}
	return context.WithValue(ctx, callerIPKey{}, ip.Unmap())
}

// CallerIP returns the public caller address stored by WithCallerIP.
func CallerIP(ctx context.Context) (netip.Addr, bool) {
	ip, ok := ctx.Value(callerIPKey{}).(netip.Addr)
	if !ok || !ip.IsGlobalUnicast() || ip.IsPrivate() {
		return netip.Addr{}, false
	}
	return ip, true
}
