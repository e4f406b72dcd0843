// Package upstream builds the REST clients used by the lookup packages.
package upstream

import (
	"io"

	"github.com/mutablelogic/go-client"
	"go.opentelemetry.io/otel/trace"

	"github.com/lizzyg/citysense/internal/config"
)

// Options returns client options derived from the http config section.
// trace writes request/response dumps to w when cfg.Trace is set.
func Options(cfg config.HTTPConfig, w io.Writer, tracer trace.Tracer) []client.ClientOpt {
	opts := []client.ClientOpt{}
	if cfg.Trace && w != nil {
		opts = append(opts, client.OptTrace(w, true))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, client.OptTimeout(cfg.Timeout))
	}
	if tracer != nil {
		opts = append(opts, client.OptTracer(tracer))
	}
	return opts
}

// New returns a client rooted at endpoint.
func New(endpoint string, opts ...client.ClientOpt) (*client.Client, error) {
	opts = append(append([]client.ClientOpt{}, opts...), client.OptEndpoint(endpoint))
	return client.New(opts...)
}
