package providers

import (
	"log/slog"
	"net/http"

	moderr "github.com/lizzyg/citysense/errors"
	"github.com/lizzyg/citysense/internal/config"
	"github.com/lizzyg/citysense/internal/core"
	"github.com/lizzyg/citysense/internal/providers/gemini"
	"github.com/lizzyg/citysense/internal/providers/openai"
)

// NewProviderClient builds the adapter named by mc.Provider.
func NewProviderClient(mc config.ModelConfig, hc *http.Client, logger *slog.Logger) (core.RawClient, error) {
	switch mc.Provider {
	case "openai", "":
		return openai.New(mc, hc, logger), nil
	case "gemini":
		return gemini.New(mc, hc, logger)
	default:
		return nil, moderr.ErrUnknownProvider
	}
}
