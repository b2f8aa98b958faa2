// Package bridgeconfig loads the CLI demo binary's runtime configuration
// from a TOML file and environment variables, exposing typed structs and
// the accessors cmd/llmbridge uses to wire a Builder. The library itself
// (corebridge, internal/bridgeruntime) never imports this package: it takes
// a programmatic Builder, exactly as the teacher keeps internal/config
// separate from internal/provider.
package bridgeconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/llmbridge/llmbridge/internal/canon"
	"github.com/llmbridge/llmbridge/internal/pricing"
	"github.com/llmbridge/llmbridge/internal/transport"
)

// Config is the runtime configuration loaded from defaults, config.toml,
// and env vars.
type Config struct {
	// HomeDir is runtime-resolved from LLMBRIDGE_HOME and not read from
	// config.
	HomeDir  string                    `mapstructure:"-"`
	Default  string                    `mapstructure:"default"`
	Provider map[string]ProviderConfig `mapstructure:"provider"`
	Retry    RetryConfig               `mapstructure:"retry"`
	Pricing  []PricingRuleConfig       `mapstructure:"pricing"`
}

// ProviderConfig configures one provider's credentials, endpoint, and
// per-call timeout.
type ProviderConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RetryConfig controls the transport.Client retry policy shared by every
// adapter.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
}

// PricingRuleConfig is one configured pricing.Rule, keyed by provider name
// and model pattern rather than a canon.ProviderID so it can be decoded
// directly from TOML.
type PricingRuleConfig struct {
	Provider              string   `mapstructure:"provider"`
	ModelPattern          string   `mapstructure:"model_pattern"`
	InputCostPerToken     float64  `mapstructure:"input_cost_per_token"`
	OutputCostPerToken    float64  `mapstructure:"output_cost_per_token"`
	ReasoningCostPerToken *float64 `mapstructure:"reasoning_cost_per_token"`
}

var defaultConfig = Config{
	Default: "openai",
	Provider: map[string]ProviderConfig{
		"openai": {
			RequestTimeout: 30 * time.Second,
		},
		"anthropic": {
			RequestTimeout: 30 * time.Second,
		},
		"openrouter": {
			RequestTimeout: 30 * time.Second,
		},
	},
	Retry: RetryConfig{
		MaxRetries: transport.DefaultRetryPolicy.MaxRetries,
		BaseDelay:  transport.DefaultRetryPolicy.BaseDelay,
		MaxDelay:   transport.DefaultRetryPolicy.MaxDelay,
	},
}

// defaultUserConfig is the minimal bootstrap config written for first-time
// users: user-editable essentials only, not the full runtime default
// surface.
var defaultUserConfig = Config{
	Default: "openai",
	Provider: map[string]ProviderConfig{
		"openai": {
			APIKey:         "$OPENAI_API_KEY",
			RequestTimeout: 30 * time.Second,
		},
		"anthropic": {
			APIKey:         "$ANTHROPIC_API_KEY",
			RequestTimeout: 30 * time.Second,
		},
		"openrouter": {
			APIKey:         "$OPENROUTER_API_KEY",
			RequestTimeout: 30 * time.Second,
		},
	},
}

// homeDir returns the llmbridge home directory. Uses LLMBRIDGE_HOME if
// set, otherwise ~/.llmbridge.
func homeDir() (string, error) {
	if dir := os.Getenv("LLMBRIDGE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return home + "/.llmbridge", nil
}

func configPath(home string) string {
	return home + "/config.toml"
}

// Load merges hardcoded defaults and config file values, in that order,
// then applies environment variable expansion to every string field. The
// config file is always $LLMBRIDGE_HOME/config.toml; a missing file is not
// an error, since an all-env-var configuration is valid.
func Load() (*Config, error) {
	home, err := homeDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath(home))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		expandEnvStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HomeDir = home

	return &cfg, nil
}

// Write writes the merged configuration (defaults overlaid by any existing
// user config file) to w in TOML format.
func Write(w io.Writer) error {
	if w == nil {
		return errors.New("writer is required")
	}

	home, err := homeDir()
	if err != nil {
		return err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath(home))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	for name := range defaultConfig.Provider {
		key := "provider." + name + ".request_timeout"
		v.Set(key, v.GetDuration(key).String())
	}
	v.Set("retry.base_delay", v.GetDuration("retry.base_delay").String())
	v.Set("retry.max_delay", v.GetDuration("retry.max_delay").String())

	if err := v.WriteConfigTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// DefaultUserConfigTOML renders the minimal bootstrap user config as TOML.
func DefaultUserConfigTOML() (string, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.Set("default", defaultUserConfig.Default)
	for name, provider := range defaultUserConfig.Provider {
		v.Set("provider."+name+".api_key", provider.APIKey)
		v.Set("provider."+name+".request_timeout", provider.RequestTimeout.String())
	}

	var out bytes.Buffer
	if err := v.WriteConfigTo(&out); err != nil {
		return "", fmt.Errorf("write default user config: %w", err)
	}
	return out.String(), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default", defaultConfig.Default)
	for name, provider := range defaultConfig.Provider {
		prefix := "provider." + name + "."
		v.SetDefault(prefix+"api_key", provider.APIKey)
		v.SetDefault(prefix+"base_url", provider.BaseURL)
		v.SetDefault(prefix+"request_timeout", provider.RequestTimeout)
	}
	v.SetDefault("retry.max_retries", defaultConfig.Retry.MaxRetries)
	v.SetDefault("retry.base_delay", defaultConfig.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", defaultConfig.Retry.MaxDelay)
}

// RetryPolicy converts the loaded retry section into a transport.RetryPolicy.
func (c *Config) RetryPolicy() transport.RetryPolicy {
	return transport.RetryPolicy{
		MaxRetries: c.Retry.MaxRetries,
		BaseDelay:  c.Retry.BaseDelay,
		MaxDelay:   c.Retry.MaxDelay,
	}
}

// PricingTable converts the loaded pricing rules into a pricing.Table. It
// returns an error for the first rule whose provider name does not parse.
func (c *Config) PricingTable() (pricing.Table, error) {
	rules := make([]pricing.Rule, 0, len(c.Pricing))
	for _, rule := range c.Pricing {
		provider, err := canon.ParseProviderID(rule.Provider)
		if err != nil {
			return pricing.Table{}, fmt.Errorf("pricing rule for %q: %w", rule.Provider, err)
		}
		rules = append(rules, pricing.Rule{
			Provider:              provider,
			ModelPattern:          rule.ModelPattern,
			InputCostPerToken:     rule.InputCostPerToken,
			OutputCostPerToken:    rule.OutputCostPerToken,
			ReasoningCostPerToken: rule.ReasoningCostPerToken,
		})
	}
	return pricing.NewTable(rules), nil
}

// ProviderByName returns the named provider's configuration, if any.
func (c *Config) ProviderByName(name string) (ProviderConfig, bool) {
	cfg, ok := c.Provider[name]
	return cfg, ok
}

// DefaultProviderID resolves the configured default provider name to a
// canon.ProviderID.
func (c *Config) DefaultProviderID() (canon.ProviderID, error) {
	return canon.ParseProviderID(c.Default)
}

func expandEnvStringHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		value, ok := data.(string)
		if !ok {
			return data, nil
		}
		return os.ExpandEnv(value), nil
	}
}
