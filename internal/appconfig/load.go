package appconfig

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Configure registers defaults and environment overrides on v. A .env file in
// the working directory is loaded when present.
func Configure(v *viper.Viper) {
	_ = godotenv.Load()
	for key, value := range DefaultValues() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Decode unmarshals v into a validated Config.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode configuration: %w", err)
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ReadConfigFile reads the config file already set on v. It reports
// missing when the file does not exist; that is an error only when the path
// was given explicitly.
func ReadConfigFile(v *viper.Viper, explicit bool) (missing bool, err error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing = errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
		if !missing || explicit {
			return missing, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
		return true, nil
	}
	return false, nil
}

// Load reads the configuration file at path on top of the defaults. A
// missing file is only tolerated at the default path.
func Load(path string) (Config, error) {
	v := viper.New()
	Configure(v)
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)
	missing, err := ReadConfigFile(v, explicit)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Decode(v)
	if err != nil {
		return Config{}, err
	}
	if missing {
		cfg.ConfigPath = ""
	}
	return cfg, nil
}
