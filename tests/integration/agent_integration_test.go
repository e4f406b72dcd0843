//go:build integration
// +build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lizzyg/citysense"
	"github.com/lizzyg/citysense/internal/config"
)

func loadLive(t *testing.T, model string) *config.Config {
	t.Helper()
	if os.Getenv("GEMINI_API_KEY") == "" || os.Getenv("OPENWEATHERMAP_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY and OPENWEATHERMAP_API_KEY are required; skipping integration test")
	}
	cfgPath := filepath.Join(t.TempDir(), "citysense.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("citysense:\n  model: "+model+"\n"), 0o600))
	t.Setenv("CITYSENSE_CONFIG_PATH", cfgPath)
	config.ResetForTest()

	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func runLocationThenWeather(t *testing.T, model string) {
	cfg := loadLive(t, model)
	agent, err := citysense.NewAgent(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	res, err := agent.Run(ctx, citysense.Transcript{
		citysense.UserMessage("Where am I right now, and what's the weather like here?"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.FinalOutput)

	called := map[string]bool{}
	for _, m := range res.History {
		for _, c := range m.ToolCalls {
			called[c.Name] = true
		}
	}
	assert.True(t, called[string(citysense.ToolLocation)], "expected a location lookup")
	assert.True(t, called[string(citysense.ToolWeather)], "expected a weather lookup")
	t.Log(res.FinalOutput)
}

func TestOpenAICompat_LocationThenWeather(t *testing.T) {
	runLocationThenWeather(t, "gemini-flash")
}

func TestGeminiNative_LocationThenWeather(t *testing.T) {
	runLocationThenWeather(t, "gemini-native")
}

func TestSession_OffTopicRefusal(t *testing.T) {
	cfg := loadLive(t, "gemini-flash")
	s := citysense.NewSession(citysense.ConfigRunnerFactory(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	reply, err := s.Send(ctx, "Write me a poem about databases.")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.Len(t, s.Transcript(), 2)
}
