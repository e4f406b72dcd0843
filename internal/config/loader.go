package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	kenv "github.com/knadh/koanf/providers/env"
	kfile "github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	moderr "github.com/lizzyg/citysense/errors"
)

//go:embed default.yaml
var defaultConfig []byte

const (
	envPrefix   = "CITYSENSE__"
	envPath     = "CITYSENSE_CONFIG_PATH"
	defaultPath = "citysense.yaml"
	rootKey     = "citysense"
)

// Config is the root config structure.
type Config struct {
	Model        string                 `koanf:"model"`
	Models       map[string]ModelConfig `koanf:"models"`
	MaxToolTurns int                    `koanf:"max_tool_turns"`
	Weather      WeatherConfig          `koanf:"weather"`
	Geo          GeoConfig              `koanf:"geo"`
	Places       PlacesConfig           `koanf:"places"`
	HTTP         HTTPConfig             `koanf:"http"`
	Log          LogConfig              `koanf:"log"`
	Server       ServerConfig           `koanf:"server"`
	Telemetry    TelemetryConfig        `koanf:"telemetry"`
}

// ModelConfig defines a single model entry in config.
type ModelConfig struct {
	Provider        string  `koanf:"provider"`
	Model           string  `koanf:"model"`
	BaseURL         string  `koanf:"base_url"`
	APIKey          string  `koanf:"api_key"`
	MaxOutputTokens int     `koanf:"max_output_tokens"`
	Temperature     float32 `koanf:"temperature"`
}

type WeatherConfig struct {
	APIKey   string `koanf:"api_key"`
	Endpoint string `koanf:"endpoint"`
}

type GeoConfig struct {
	Endpoint string `koanf:"endpoint"`
	Token    string `koanf:"token"`
}

// PlacesConfig bounds the Overpass lookup. MaxResults <= 0 disables the cap.
type PlacesConfig struct {
	Endpoint      string `koanf:"endpoint"`
	DefaultRadius int    `koanf:"default_radius"`
	MaxResults    int    `koanf:"max_results"`
}

type HTTPConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Trace   bool          `koanf:"trace"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type ServerConfig struct {
	Addr           string        `koanf:"addr"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// Active returns the model entry selected by Model.
func (c *Config) Active() (ModelConfig, error) {
	mc, ok := c.Models[c.Model]
	if !ok {
		return ModelConfig{}, &moderr.ConfigError{Field: "model", Reason: "no model entry named " + strconv.Quote(c.Model)}
	}
	return mc, nil
}

// Validate reports the first missing credential as a *errors.ConfigError.
func (c *Config) Validate() error {
	mc, err := c.Active()
	if err != nil {
		return err
	}
	if mc.APIKey == "" {
		return moderr.Missing("models."+c.Model+".api_key", "set GEMINI_API_KEY")
	}
	if c.Weather.APIKey == "" {
		return moderr.Missing("weather.api_key", "set OPENWEATHERMAP_API_KEY")
	}
	return nil
}

var (
	loadOnce sync.Once
	loaded   *Config
	loadErr  error
)

// Load loads configuration once per process. Load is safe for repeated calls.
//
// Priority, lowest first:
// 1. embedded defaults
// 2. CITYSENSE_CONFIG_PATH if set, else ./citysense.yaml when present
// 3. CITYSENSE__ environment overrides
func Load() (*Config, error) {
	loadOnce.Do(func() {
		loaded, loadErr = load()
	})
	return loaded, loadErr
}

func load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider(defaultConfig), yaml.Parser()); err != nil {
		return nil, err
	}

	path := os.Getenv(envPath)
	explicit := path != ""
	if !explicit {
		path = defaultPath
	}
	if err := k.Load(kfile.Provider(path), yaml.Parser()); err != nil {
		// Only an explicitly configured file must exist.
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// CITYSENSE__WEATHER__API_KEY=... overrides citysense.weather.api_key.
	// Double underscore splits levels.
	if err := k.Load(kenv.Provider(envPrefix, "__", strings.ToLower), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal(rootKey, &cfg); err != nil {
		return nil, err
	}
	resolveEnvVars(&cfg)
	return &cfg, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// resolveEnvVars resolves ${VAR} patterns in config string fields
func resolveEnvVars(cfg *Config) {
	cfg.Model = resolveEnvString(cfg.Model)
	for key, model := range cfg.Models {
		model.APIKey = resolveEnvString(model.APIKey)
		model.Provider = resolveEnvString(model.Provider)
		model.Model = resolveEnvString(model.Model)
		model.BaseURL = resolveEnvString(model.BaseURL)
		cfg.Models[key] = model
	}
	cfg.Weather.APIKey = resolveEnvString(cfg.Weather.APIKey)
	cfg.Weather.Endpoint = resolveEnvString(cfg.Weather.Endpoint)
	cfg.Geo.Token = resolveEnvString(cfg.Geo.Token)
	cfg.Geo.Endpoint = resolveEnvString(cfg.Geo.Endpoint)
	cfg.Places.Endpoint = resolveEnvString(cfg.Places.Endpoint)
	cfg.Telemetry.OTLPEndpoint = resolveEnvString(cfg.Telemetry.OTLPEndpoint)
}

// resolveEnvString replaces ${VAR} with the variable's value, or nothing when unset.
func resolveEnvString(s string) string {
	return envVarRegex.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}
