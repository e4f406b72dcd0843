package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	// Packages
	kong "github.com/alecthomas/kong"
	godotenv "github.com/joho/godotenv"
	citysense "github.com/lizzyg/citysense"
	config "github.com/lizzyg/citysense/internal/config"
	logger "github.com/lizzyg/citysense/internal/logger"
	metrics "github.com/lizzyg/citysense/internal/metrics"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	// Debugging
	Debug   bool `name:"debug" help:"Enable debug logging"`
	Verbose bool `name:"verbose" help:"Dump upstream HTTP requests and responses"`

	// Configuration
	Config string `name:"config" env:"CITYSENSE_CONFIG_PATH" help:"Path to a YAML config file" optional:""`
	Model  string `name:"model" help:"Model entry to use (overrides config)" optional:""`

	// Context
	ctx     context.Context
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type CLI struct {
	Globals

	Chat  ChatCmd  `cmd:"" default:"1" help:"Start an interactive conversation"`
	Ask   AskCmd   `cmd:"" help:"Ask a single question and print the reply"`
	Serve ServeCmd `cmd:"" help:"Serve sessions over HTTP"`
	Tools ToolsCmd `cmd:"" help:"Print the tool contract as JSON"`
}

////////////////////////////////////////////////////////////////////////////////
// MAIN

func main() {
	// Pick up API keys from a local .env file when present
	_ = godotenv.Load()

	cli := CLI{}
	cmd := kong.Parse(&cli,
		kong.Name(execName()),
		kong.Description("CitySense location and weather assistant"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	cli.Globals.ctx = ctx

	if cli.Config != "" {
		cmd.FatalIfErrorf(os.Setenv("CITYSENSE_CONFIG_PATH", cli.Config))
	}
	cfg, err := config.Load()
	cmd.FatalIfErrorf(err)
	if cli.Model != "" {
		cfg.Model = cli.Model
	}
	if cli.Debug {
		cfg.Log.Level = "debug"
	}
	if cli.Verbose {
		cfg.HTTP.Trace = true
	}
	cli.Globals.cfg = cfg

	cli.Globals.logger = logger.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(cli.Globals.logger)
	cli.Globals.metrics = metrics.New()

	cmd.FatalIfErrorf(cmd.Run(&cli.Globals))
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func execName() string {
	name, err := os.Executable()
	if err != nil {
		return "citysense"
	}
	return filepath.Base(name)
}

// agentOptions are shared by every command that runs the agent.
func (g *Globals) agentOptions() []citysense.Option {
	return []citysense.Option{
		citysense.WithLogger(g.logger),
		citysense.WithMetrics(g.metrics),
	}
}
