// Package places finds amenities near a coordinate pair through the
// Overpass API.
package places

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/mutablelogic/go-client"

	"github.com/lizzyg/citysense/internal/upstream"
)

const (
	DefaultEndpoint = "http://overpass-api.de/api"
	DefaultRadius   = 1000
)

// Place is one amenity. Latitude and Longitude are nil when the element
// carried neither coordinates nor a center.
type Place struct {
	Name      string   `json:"name"`
	Category  string   `json:"category"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type point struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

type element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *point            `json:"center"`
	Tags   map[string]string `json:"tags"`
}

type response struct {
	Elements []element `json:"elements"`
}

type Client struct {
	*client.Client
	radius int
	max    int
}

// New returns an Overpass client. radius is the default search radius in
// meters; max caps the number of places returned, 0 for no cap.
func New(endpoint string, radius, max int, opts ...client.ClientOpt) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if radius <= 0 {
		radius = DefaultRadius
	}
	c, err := upstream.New(endpoint, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{Client: c, radius: radius, max: max}, nil
}

// DefaultRadius returns the radius used when a caller passes none.
func (c *Client) DefaultRadius() int { return c.radius }

// Nearby returns amenities within radius meters of (lat, lon), in upstream order.
func (c *Client) Nearby(ctx context.Context, lat, lon float64, radius int) ([]Place, error) {
	if radius <= 0 {
		radius = c.radius
	}
	q := url.Values{}
	q.Set("data", Query(lat, lon, radius, c.max))

	var resp response
	if err := c.DoWithContext(ctx, nil, &resp, client.OptPath("interpreter"), client.OptQuery(q)); err != nil {
		return nil, err
	}
	return parse(resp.Elements, c.max), nil
}

// Query builds the Overpass QL for all tagged amenities around a point.
// Ways and relations report their center.
func Query(lat, lon float64, radius, limit int) string {
	around := fmt.Sprintf("(around:%d,%s,%s)", radius, coord(lat), coord(lon))
	var b strings.Builder
	b.WriteString("[out:json];\n(\n")
	for _, kind := range []string{"node", "way", "relation"} {
		b.WriteString("  " + kind + around + "[amenity];\n")
	}
	b.WriteString(");\nout center")
	if limit > 0 {
		b.WriteString(" " + strconv.Itoa(limit))
	}
	b.WriteString(";")
	return b.String()
}

func coord(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func parse(elements []element, max int) []Place {
	out := make([]Place, 0, len(elements))
	for _, e := range elements {
		if max > 0 && len(out) == max {
			break
		}
		p := Place{Name: "Unknown", Category: "N/A", Latitude: e.Lat, Longitude: e.Lon}
		if name := e.Tags["name"]; name != "" {
			p.Name = name
		}
		if amenity := e.Tags["amenity"]; amenity != "" {
			p.Category = amenity
		}
		if e.Center != nil {
			if p.Latitude == nil {
				p.Latitude = e.Center.Lat
			}
			if p.Longitude == nil {
				p.Longitude = e.Center.Lon
			}
		}
		out = append(out, p)
	}
	return out
}
