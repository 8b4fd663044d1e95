package trigbench

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/trigbench/internal/appconfig"
	"github.com/mwiater/trigbench/internal/logging"
)

func resetFlag(cmdFlag string) {
	flag := rootCmd.PersistentFlags().Lookup(cmdFlag)
	if flag == nil {
		return
	}
	_ = flag.Value.Set(flag.DefValue)
	flag.Changed = false
}

// resetLocalFlags restores a command's own flags to their defaults.
func resetLocalFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// useConfig points the global configuration at cfg for the duration of t.
func useConfig(t *testing.T, cfg appconfig.Config) {
	t.Helper()
	prev := currentConfig
	currentConfig = &cfg
	t.Cleanup(func() { currentConfig = prev })
}

// prepare resets cmd's flags, sets the given ones and captures output.
func prepare(t *testing.T, cmd *cobra.Command, flags map[string]string) *bytes.Buffer {
	t.Helper()
	resetLocalFlags(cmd)
	t.Cleanup(func() { resetLocalFlags(cmd) })
	for name, value := range flags {
		require.NoError(t, cmd.Flags().Set(name, value), name)
	}
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return &out
}

func TestRootCmd(t *testing.T) {
	b := new(bytes.Buffer)
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	rootCmd.SetArgs([]string{"nonexistent"})
	_, err := rootCmd.ExecuteC()
	require.Error(t, err)
	assert.Contains(t, b.String(), `unknown command "nonexistent" for "trigbench"`)
}

func TestPersistentPreRunEUsesFlagValues(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "trigbench.log")
	configPath := writeTempConfig(t, `{"workers": 2, "inference": {"model": "qwen"}}`)

	prevCfgFile := cfgFile
	prevConfig := currentConfig
	cfgFile = configPath
	viper.SetConfigFile(configPath)
	t.Cleanup(func() {
		cfgFile = prevCfgFile
		currentConfig = prevConfig
		viper.SetConfigFile(prevCfgFile)
		for _, name := range []string{"debug", "jsonMode", "logFile", "workers", "timeout"} {
			resetFlag(name)
		}
		_ = logging.Close()
	})

	_ = rootCmd.PersistentFlags().Set("debug", "true")
	_ = rootCmd.PersistentFlags().Set("timeout", "45")
	_ = rootCmd.PersistentFlags().Set("logFile", logPath)

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, []string{}))
	require.NotNil(t, GetConfig())
	assert.Equal(t, configPath, GetConfig().ConfigPath)
	assert.True(t, GetConfig().Debug)
	assert.Equal(t, 45, GetConfig().TimeoutSeconds)
	assert.Equal(t, "qwen", GetConfig().Inference.Model)
	assert.Equal(t, 2, GetConfig().Workers, "unchanged flags keep the file value")
	assert.True(t, DebugEnabled())

	_, err := os.Stat(logPath)
	assert.NoError(t, err)
}

func TestPersistentPreRunEInvalidConfig(t *testing.T) {
	configPath := writeTempConfig(t, `{"relevance": {"hardThreshold": 0.1, "midThreshold": 0.3}}`)

	prevCfgFile := cfgFile
	cfgFile = configPath
	viper.SetConfigFile(configPath)
	t.Cleanup(func() {
		cfgFile = prevCfgFile
		viper.SetConfigFile(prevCfgFile)
		resetFlag("debug")
		resetFlag("jsonMode")
	})

	err := rootCmd.PersistentPreRunE(rootCmd, []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hard threshold")
}

func TestPersistentPreRunEMissingConfig(t *testing.T) {
	missingPath := filepath.Join(t.TempDir(), "config.json")
	logPath := filepath.Join(t.TempDir(), "trigbench.log")

	// A failed read keeps the previously loaded values; start from an empty
	// file so earlier tests cannot leak into this one.
	viper.SetConfigFile(writeTempConfig(t, `{}`))
	require.NoError(t, viper.ReadInConfig())

	prevCfgFile := cfgFile
	prevConfig := currentConfig
	cfgFile = missingPath
	viper.SetConfigFile(missingPath)
	t.Cleanup(func() {
		resetFlag("config")
		cfgFile = prevCfgFile
		currentConfig = prevConfig
		viper.SetConfigFile(prevCfgFile)
		for _, name := range []string{"debug", "jsonMode", "logFile"} {
			resetFlag(name)
		}
		_ = logging.Close()
	})
	// cobra merges persistent flags into Flags() during parsing, which this
	// test skips.
	rootCmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	_ = rootCmd.PersistentFlags().Set("logFile", logPath)

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, []string{}))
	require.NotNil(t, GetConfig())
	assert.Empty(t, GetConfig().ConfigPath, "a missing default file loads defaults")

	require.NoError(t, rootCmd.PersistentFlags().Set("config", missingPath))
	viper.SetConfigFile(missingPath)
	err := rootCmd.PersistentPreRunE(rootCmd, []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}

func TestListCommands(t *testing.T) {
	var out bytes.Buffer
	runListCommands(&out, rootCmd)
	text := out.String()
	assert.Contains(t, text, "Commands and Subcommands:")
	for _, name := range []string{"trigbench evaluate", "trigbench clean", "trigbench attacks", "trigbench plan", "trigbench generate", "trigbench report", "trigbench classify", "trigbench show config"} {
		assert.Contains(t, text, name)
	}
	assert.NotContains(t, text, "completion")
}

func TestShowConfig(t *testing.T) {
	cfg := appconfig.Defaults()
	cfg.Inference.Model = "qwen"
	useConfig(t, cfg)
	out := prepare(t, showConfigCmd, nil)

	runShowConfig(showConfigCmd)
	assert.Contains(t, out.String(), "Current configuration:")
	assert.Contains(t, out.String(), "qwen")
}
