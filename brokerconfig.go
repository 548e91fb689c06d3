package imagebroker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted when the config file omits the API key.
var apiKeyEnvVars = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}

// BrokerConfig is the process-wide configuration, loadable from YAML.
// Validation failures are fatal at startup, never recovered mid-request.
type BrokerConfig struct {
	// APIKey authenticates against the provider. Falls back to the
	// GEMINI_API_KEY / GOOGLE_API_KEY environment variables when empty.
	APIKey string `yaml:"api_key"`

	// DefaultTier is used when the AUTO heuristic falls through.
	DefaultTier string `yaml:"default_tier"`

	// QualityKeywords / SpeedKeywords override the selection heuristic lists.
	QualityKeywords []string `yaml:"quality_keywords"`
	SpeedKeywords   []string `yaml:"speed_keywords"`

	// UseStorage enables the store-then-thumbnail output path; StorageDir
	// is required when set.
	UseStorage bool   `yaml:"use_storage"`
	StorageDir string `yaml:"storage_dir"`

	// FlashModelID / ProModelID override the backing model identifiers.
	FlashModelID string `yaml:"flash_model_id"`
	ProModelID   string `yaml:"pro_model_id"`

	// WaitOnRateLimit makes requests wait for limiter capacity up to
	// MaxRateLimitWait instead of failing immediately. MaxRateLimitWait is
	// a duration string like "30s"; empty means no limit.
	WaitOnRateLimit  bool   `yaml:"wait_on_rate_limit"`
	MaxRateLimitWait string `yaml:"max_rate_limit_wait"`
}

// LoadBrokerConfig reads and validates a YAML configuration file.
func LoadBrokerConfig(path string) (*BrokerConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, NewFileError(
			fmt.Sprintf("config file not found: %s", path),
			CodeFileNotFound, path, err)
	}
	if err != nil {
		return nil, NewFileError(
			fmt.Sprintf("failed to read config file: %s", path),
			CodeFileReadFailed, path, err)
	}

	cfg := &BrokerConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		e := NewConfigurationError("malformed config file", CodeConfigInvalidValue)
		e.Err = err
		return nil, e
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *BrokerConfig) applyEnv() {
	if c.APIKey != "" {
		return
	}
	for _, key := range apiKeyEnvVars {
		if v := os.Getenv(key); v != "" {
			c.APIKey = v
			return
		}
	}
}

// Validate checks the configuration. All failures are configuration-kind
// errors meant to abort startup.
func (c *BrokerConfig) Validate() error {
	if c.APIKey == "" {
		return NewConfigurationError(
			"missing API key: set api_key or the GEMINI_API_KEY environment variable",
			CodeConfigMissingAPIKey)
	}
	if c.DefaultTier != "" {
		if _, ok := ParseModelTier(c.DefaultTier); !ok {
			return NewConfigurationError(
				fmt.Sprintf("invalid default_tier %q", c.DefaultTier),
				CodeConfigInvalidValue)
		}
	}
	if c.UseStorage && c.StorageDir == "" {
		return NewConfigurationError(
			"storage_dir is required when use_storage is enabled",
			CodeConfigMissingRequired)
	}
	if c.MaxRateLimitWait != "" {
		if _, err := time.ParseDuration(c.MaxRateLimitWait); err != nil {
			return NewConfigurationError(
				fmt.Sprintf("invalid max_rate_limit_wait %q", c.MaxRateLimitWait),
				CodeConfigInvalidValue)
		}
	}
	return nil
}

// RateLimitWait returns the parsed maximum rate-limit wait. Zero means no
// limit.
func (c *BrokerConfig) RateLimitWait() time.Duration {
	if c.MaxRateLimitWait == "" {
		return 0
	}
	d, err := time.ParseDuration(c.MaxRateLimitWait)
	if err != nil {
		return 0
	}
	return d
}

// SelectionConfig builds the selector configuration, applying defaults for
// unset fields.
func (c *BrokerConfig) SelectionConfig() SelectionConfig {
	sel := DefaultSelectionConfig()
	if c.DefaultTier != "" {
		if tier, ok := ParseModelTier(c.DefaultTier); ok && tier != TierAuto {
			sel.DefaultTier = tier
		}
	}
	if len(c.QualityKeywords) > 0 {
		sel.QualityKeywords = c.QualityKeywords
	}
	if len(c.SpeedKeywords) > 0 {
		sel.SpeedKeywords = c.SpeedKeywords
	}
	return sel
}

// FlashConfig returns the fast-tier model configuration with overrides applied.
func (c *BrokerConfig) FlashConfig() ModelConfig {
	cfg := FlashModelConfig()
	if c.FlashModelID != "" {
		cfg.ModelID = c.FlashModelID
	}
	return cfg
}

// ProConfig returns the quality-tier model configuration with overrides applied.
func (c *BrokerConfig) ProConfig() ModelConfig {
	cfg := ProModelConfig()
	if c.ProModelID != "" {
		cfg.ModelID = c.ProModelID
	}
	return cfg
}
