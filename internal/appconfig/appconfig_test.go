package appconfig

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/trigbench/internal/distractor"
	"github.com/mwiater/trigbench/internal/scoring"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 600*time.Second, cfg.RequestTimeout())
	assert.Equal(t, "trigbench.log", cfg.LogFilePath())
	assert.Equal(t, 0.28, cfg.RelevanceThresholds().Hard)
	assert.Equal(t, scoring.DefaultConfig(), cfg.ScoringConfig())

	strategies, err := cfg.Strategies()
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	assert.Equal(t, distractor.ObjectAnchored, strategies[0].Kind)
}

func TestDefaultValuesCoverEveryField(t *testing.T) {
	values := DefaultValues()
	assert.Equal(t, 1, values["workers"])
	assert.Equal(t, "127.0.0.1:8188", values["comfy.server"])
	assert.Equal(t, "78", values["comfy.nodes.loadImage"])
	assert.Contains(t, values, "inference.model")
	assert.Contains(t, values, "scoring.wla")
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
		"workers": 4,
		"timeout": 30,
		"inference": {"baseURL": "http://gpu:8000/v1", "model": "qwen2.5-vl"},
		"attacks": {"model": "gpt-4o-mini"},
		"scoring": {"wla": [{"thresholdKm": 10, "weight": 0.5}, {"thresholdKm": 100, "weight": 0.5}]},
		"injection": {"strategies": ["free"]}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.ConfigPath)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout())
	assert.Equal(t, []scoring.Threshold{{Km: 10, Weight: 0.5}, {Km: 100, Weight: 0.5}}, cfg.Scoring.WLA)
	assert.Equal(t, scoring.DefaultTrapRadiusKm, cfg.Scoring.TrapRadiusKm)

	inference := cfg.InferenceClient()
	assert.Equal(t, "qwen2.5-vl", inference.Model)
	assert.Equal(t, 128, inference.MaxTokens)

	attack := cfg.AttackClient()
	assert.Equal(t, "gpt-4o-mini", attack.Model)
	assert.Equal(t, "http://gpu:8000/v1", attack.BaseURL)
	assert.InDelta(t, 0.7, attack.Temperature, 1e-6)

	strategies, err := cfg.Strategies()
	require.NoError(t, err)
	assert.Equal(t, []distractor.Strategy{{Kind: distractor.FreePlacement}}, strategies)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("TRIG_INFERENCE_MODEL", "llava")
	t.Setenv("TRIG_WORKERS", "8")
	path := writeConfig(t, `{"inference": {"model": "qwen"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "llava", cfg.Inference.Model)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "llava", cfg.AttackClient().Model)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{ "workers": `))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"workers": 0}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Workers")

	_, err = Load(writeConfig(t, `{"relevance": {"hardThreshold": 0.1, "midThreshold": 0.2}}`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"scoring": {"wla": [{"thresholdKm": 100, "weight": 1}, {"thresholdKm": 10, "weight": 1}]}}`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"injection": {"strategies": ["sky"]}}`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"comfy": {"server": "not a host"}}`))
	assert.Error(t, err)
}

func TestReadConfigFileMissing(t *testing.T) {
	missingPath := filepath.Join(t.TempDir(), "config.json")

	v := viper.New()
	v.SetConfigFile(missingPath)
	missing, err := ReadConfigFile(v, false)
	require.NoError(t, err)
	assert.True(t, missing)

	missing, err = ReadConfigFile(v, true)
	require.Error(t, err)
	assert.True(t, missing)

	v = viper.New()
	v.SetConfigFile(writeConfig(t, `{ "workers": `))
	missing, err = ReadConfigFile(v, false)
	require.Error(t, err, "malformed files are never tolerated")
	assert.False(t, missing)
}

func TestRequestTimeoutFallback(t *testing.T) {
	cfg := Defaults()
	cfg.TimeoutSeconds = 0
	assert.Equal(t, 600*time.Second, cfg.RequestTimeout())
	cfg.LogFile = "  "
	assert.Equal(t, "trigbench.log", cfg.LogFilePath())
}

func TestShowConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := Defaults()
	ShowConfig(&buf, "", cfg)
	out := buf.String()
	assert.Contains(t, out, "No config file loaded (using defaults).")
	assert.Contains(t, out, "Model:              (unset)")
	assert.Contains(t, out, "WLA:                <1km:0.2 <25km:0.2 <200km:0.2 <750km:0.2 <2500km:0.2")
	assert.Contains(t, out, "Strategies:         object, free")

	buf.Reset()
	cfg.Inference.Model = "qwen"
	ShowConfig(&buf, "config/config.json", cfg)
	assert.Contains(t, buf.String(), "Config file: config/config.json")
	assert.Contains(t, buf.String(), "Model:              qwen")
}
