// Package appconfig holds the merged runtime configuration and converts it
// into the option types of the packages that consume it.
package appconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mwiater/trigbench/internal/distractor"
	"github.com/mwiater/trigbench/internal/providers/comfy"
	"github.com/mwiater/trigbench/internal/providers/vlm"
	"github.com/mwiater/trigbench/internal/relevance"
	"github.com/mwiater/trigbench/internal/scoring"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// EnvPrefix prefixes environment overrides, e.g. TRIG_INFERENCE_MODEL.
	EnvPrefix = "TRIG"
	// defaultRequestTimeout is the default timeout for HTTP requests.
	defaultRequestTimeout = 600 * time.Second
	defaultLogFile        = "trigbench.log"
	defaultMaxTokens      = 128
	defaultComfyServer    = "127.0.0.1:8188"
	defaultPrefixSep      = "_"
)

// Config represents the top-level application configuration.
type Config struct {
	Debug          bool   `json:"debug" mapstructure:"debug"`
	JSONMode       bool   `json:"jsonMode" mapstructure:"jsonMode"`
	LogFile        string `json:"logFile,omitempty" mapstructure:"logFile"`
	Workers        int    `json:"workers" mapstructure:"workers" validate:"gte=1,lte=256"`
	TimeoutSeconds int    `json:"timeout,omitempty" mapstructure:"timeout" validate:"gte=0"`

	Relevance RelevanceConfig `json:"relevance" mapstructure:"relevance"`
	Scoring   ScoringConfig   `json:"scoring" mapstructure:"scoring"`
	Inference InferenceConfig `json:"inference" mapstructure:"inference"`
	Attacks   AttacksConfig   `json:"attacks" mapstructure:"attacks"`
	Embedding EndpointConfig  `json:"embedding" mapstructure:"embedding"`
	Detector  EndpointConfig  `json:"detector" mapstructure:"detector"`
	Comfy     ComfyConfig     `json:"comfy" mapstructure:"comfy"`
	Injection InjectionConfig `json:"injection" mapstructure:"injection"`

	ConfigPath string `json:"-" mapstructure:"-"`
}

// RelevanceConfig sets the difficulty bucket thresholds.
type RelevanceConfig struct {
	HardThreshold  float64 `json:"hardThreshold" mapstructure:"hardThreshold" validate:"gte=-1,lte=1"`
	MidThreshold   float64 `json:"midThreshold" mapstructure:"midThreshold" validate:"gte=-1,lte=1"`
	PromptTemplate string  `json:"promptTemplate" mapstructure:"promptTemplate"`
}

// ScoringConfig sets the accuracy table and trap radius.
type ScoringConfig struct {
	WLA             []scoring.Threshold `json:"wla" mapstructure:"wla" validate:"required,min=1"`
	TrapRadiusKm    float64             `json:"trapRadiusKm" mapstructure:"trapRadiusKm" validate:"gt=0"`
	PrefixSeparator string              `json:"prefixSeparator" mapstructure:"prefixSeparator"`
}

// InferenceConfig points at the OpenAI-compatible model under evaluation.
type InferenceConfig struct {
	BaseURL     string  `json:"baseURL" mapstructure:"baseURL" validate:"omitempty,url"`
	APIKey      string  `json:"apiKey,omitempty" mapstructure:"apiKey"`
	Model       string  `json:"model" mapstructure:"model"`
	MaxTokens   int     `json:"maxTokens" mapstructure:"maxTokens" validate:"gte=1"`
	Temperature float32 `json:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// AttacksConfig selects the model that writes distractor texts. Empty values
// fall back to the inference endpoint.
type AttacksConfig struct {
	BaseURL     string  `json:"baseURL,omitempty" mapstructure:"baseURL" validate:"omitempty,url"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float32 `json:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// EndpointConfig is a plain HTTP service address.
type EndpointConfig struct {
	URL string `json:"url" mapstructure:"url" validate:"omitempty,url"`
}

// ComfyConfig locates the image generation backend and its workflow.
type ComfyConfig struct {
	Server   string        `json:"server" mapstructure:"server" validate:"required,hostname_port"`
	Workflow string        `json:"workflow" mapstructure:"workflow"`
	Nodes    comfy.NodeIDs `json:"nodes" mapstructure:"nodes"`
}

// InjectionConfig lists the physical strategies to plan.
type InjectionConfig struct {
	Strategies    []string `json:"strategies" mapstructure:"strategies" validate:"dive,oneof=object free"`
	TargetClasses []string `json:"targetClasses" mapstructure:"targetClasses"`
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	thresholds := relevance.DefaultThresholds()
	sc := scoring.DefaultConfig()
	return Config{
		LogFile:        defaultLogFile,
		Workers:        1,
		TimeoutSeconds: int(defaultRequestTimeout.Seconds()),
		Relevance: RelevanceConfig{
			HardThreshold:  thresholds.Hard,
			MidThreshold:   thresholds.Mid,
			PromptTemplate: relevance.DefaultPromptTemplate,
		},
		Scoring: ScoringConfig{
			WLA:             sc.WLA,
			TrapRadiusKm:    sc.TrapRadiusKm,
			PrefixSeparator: defaultPrefixSep,
		},
		Inference: InferenceConfig{
			BaseURL:   "http://localhost:8000/v1",
			APIKey:    "EMPTY",
			MaxTokens: defaultMaxTokens,
		},
		Attacks: AttacksConfig{Temperature: 0.7},
		Comfy: ComfyConfig{
			Server:   defaultComfyServer,
			Workflow: "workflows/image_qwen_image_edit.json",
			Nodes:    comfy.DefaultNodeIDs(),
		},
		Injection: InjectionConfig{
			Strategies:    []string{string(distractor.ObjectAnchored), string(distractor.FreePlacement)},
			TargetClasses: append([]string(nil), distractor.DefaultTargetClasses...),
		},
	}
}

// DefaultValues flattens Defaults into dotted keys for viper.SetDefault.
// Every key must have a default for environment overrides to reach
// viper.Unmarshal.
func DefaultValues() map[string]any {
	d := Defaults()
	return map[string]any{
		"debug":                    d.Debug,
		"jsonMode":                 d.JSONMode,
		"logFile":                  d.LogFile,
		"workers":                  d.Workers,
		"timeout":                  d.TimeoutSeconds,
		"relevance.hardThreshold":  d.Relevance.HardThreshold,
		"relevance.midThreshold":   d.Relevance.MidThreshold,
		"relevance.promptTemplate": d.Relevance.PromptTemplate,
		"scoring.wla":              d.Scoring.WLA,
		"scoring.trapRadiusKm":     d.Scoring.TrapRadiusKm,
		"scoring.prefixSeparator":  d.Scoring.PrefixSeparator,
		"inference.baseURL":        d.Inference.BaseURL,
		"inference.apiKey":         d.Inference.APIKey,
		"inference.model":          d.Inference.Model,
		"inference.maxTokens":      d.Inference.MaxTokens,
		"inference.temperature":    d.Inference.Temperature,
		"attacks.baseURL":          d.Attacks.BaseURL,
		"attacks.model":            d.Attacks.Model,
		"attacks.temperature":      d.Attacks.Temperature,
		"embedding.url":            d.Embedding.URL,
		"detector.url":             d.Detector.URL,
		"comfy.server":             d.Comfy.Server,
		"comfy.workflow":           d.Comfy.Workflow,
		"comfy.nodes.loadImage":    d.Comfy.Nodes.LoadImage,
		"comfy.nodes.prompt":       d.Comfy.Nodes.Prompt,
		"comfy.nodes.sampler":      d.Comfy.Nodes.Sampler,
		"injection.strategies":     d.Injection.Strategies,
		"injection.targetClasses":  d.Injection.TargetClasses,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and the cross-field rules: WLA thresholds
// ascending and the hard threshold above the mid one.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.RelevanceThresholds().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.ScoringConfig().Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := c.Strategies(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return defaultLogFile
}

// RelevanceThresholds returns the bucket thresholds.
func (c Config) RelevanceThresholds() relevance.Thresholds {
	return relevance.Thresholds{Hard: c.Relevance.HardThreshold, Mid: c.Relevance.MidThreshold}
}

// ScoringConfig returns the scorer settings.
func (c Config) ScoringConfig() scoring.Config {
	return scoring.Config{
		WLA:          append([]scoring.Threshold(nil), c.Scoring.WLA...),
		TrapRadiusKm: c.Scoring.TrapRadiusKm,
	}
}

// InferenceClient returns the client settings for the evaluated model.
func (c Config) InferenceClient() vlm.Config {
	return vlm.Config{
		BaseURL:     c.Inference.BaseURL,
		APIKey:      c.Inference.APIKey,
		Model:       c.Inference.Model,
		MaxTokens:   c.Inference.MaxTokens,
		Temperature: c.Inference.Temperature,
		Timeout:     c.RequestTimeout(),
	}
}

// AttackClient returns the client settings for attack text generation.
func (c Config) AttackClient() vlm.Config {
	cfg := c.InferenceClient()
	if c.Attacks.BaseURL != "" {
		cfg.BaseURL = c.Attacks.BaseURL
	}
	if c.Attacks.Model != "" {
		cfg.Model = c.Attacks.Model
	}
	cfg.Temperature = c.Attacks.Temperature
	return cfg
}

// Strategies returns the configured injection strategies.
func (c Config) Strategies() ([]distractor.Strategy, error) {
	return distractor.ParseStrategies(c.Injection.Strategies, c.Injection.TargetClasses)
}
