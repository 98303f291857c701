package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envPrefix scopes environment overrides, e.g. MELTMAIL_PROVIDER_BASE_URL.
const envPrefix = "MELTMAIL"

// ProviderConfig holds the settings for the mail provisioning API.
type ProviderConfig struct {
	// BaseURL is the root URL of the mail.tm-compatible API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every request to the provider.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// FallbackDomain is used when domain discovery fails.
	FallbackDomain string `mapstructure:"fallback_domain" yaml:"fallback_domain"`
}

// SessionConfig holds the mailbox session policy.
type SessionConfig struct {
	// LifetimeSec is the client-side expiry deadline of a new mailbox.
	LifetimeSec int `mapstructure:"lifetime_sec" yaml:"lifetime_sec"`

	// CredentialBackend is "memory" or "keyring".
	CredentialBackend string `mapstructure:"credential_backend" yaml:"credential_backend"`
}

// PollingConfig controls the automatic inbox refresh.
type PollingConfig struct {
	IntervalSec int  `mapstructure:"interval_sec" yaml:"interval_sec"`
	AutoStart   bool `mapstructure:"auto_start" yaml:"auto_start"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// StorageConfig locates the local preferences database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Provider ProviderConfig `mapstructure:"provider" yaml:"provider"`
	Session  SessionConfig  `mapstructure:"session" yaml:"session"`
	Polling  PollingConfig  `mapstructure:"polling" yaml:"polling"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Storage  StorageConfig  `mapstructure:"storage" yaml:"storage"`
	LogFile  string         `mapstructure:"log_file" yaml:"log_file"`
}

// ProviderTimeout returns the provider request timeout as a duration.
func (c *AppConfig) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutSec) * time.Second
}

// SessionLifetime returns the mailbox lifetime as a duration.
func (c *AppConfig) SessionLifetime() time.Duration {
	return time.Duration(c.Session.LifetimeSec) * time.Second
}

// PollInterval returns the automatic refresh period as a duration.
func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSec) * time.Second
}

// ConfigDir returns ~/.config/meltmail, or the working directory when the
// home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "meltmail")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/meltmail/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := ConfigDir()
	return &AppConfig{
		Provider: ProviderConfig{
			BaseURL:        "https://api.mail.tm",
			TimeoutSec:     30,
			FallbackDomain: "mail.tm",
		},
		Session: SessionConfig{
			LifetimeSec:       600,
			CredentialBackend: "memory",
		},
		Polling: PollingConfig{
			IntervalSec: 10,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(dir, "meltmail.db"),
		},
		LogFile: filepath.Join(dir, "meltmail.log"),
	}
}

// setDefaults registers every default with v so that env overrides and
// partially filled files resolve to sensible values.
func setDefaults(v *viper.Viper) {
	d := defaultAppConfig()
	v.SetDefault("provider.base_url", d.Provider.BaseURL)
	v.SetDefault("provider.timeout_sec", d.Provider.TimeoutSec)
	v.SetDefault("provider.fallback_domain", d.Provider.FallbackDomain)
	v.SetDefault("session.lifetime_sec", d.Session.LifetimeSec)
	v.SetDefault("session.credential_backend", d.Session.CredentialBackend)
	v.SetDefault("polling.interval_sec", d.Polling.IntervalSec)
	v.SetDefault("polling.auto_start", d.Polling.AutoStart)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("log_file", d.LogFile)
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error; defaults and MELTMAIL_* environment
// variables still apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects values the client cannot run with.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Provider.BaseURL) == "" {
		return fmt.Errorf("provider.base_url must not be empty")
	}
	if c.Provider.TimeoutSec <= 0 {
		return fmt.Errorf("provider.timeout_sec must be positive, got %d", c.Provider.TimeoutSec)
	}
	if c.Session.LifetimeSec <= 0 {
		return fmt.Errorf("session.lifetime_sec must be positive, got %d", c.Session.LifetimeSec)
	}
	if c.Polling.IntervalSec <= 0 {
		return fmt.Errorf("polling.interval_sec must be positive, got %d", c.Polling.IntervalSec)
	}
	switch c.Session.CredentialBackend {
	case "memory", "keyring":
	default:
		return fmt.Errorf(
			"session.credential_backend must be memory or keyring, got %q",
			c.Session.CredentialBackend,
		)
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("provider", cfg.Provider)
	v.Set("session", cfg.Session)
	v.Set("polling", cfg.Polling)
	v.Set("display", cfg.Display)
	v.Set("storage", cfg.Storage)
	v.Set("log_file", cfg.LogFile)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
