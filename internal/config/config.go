// Package config loads the bot's runtime configuration: required secrets
// from the environment, and the [bot] [accounts] [proxies] [captcha]
// [stealth] [monitoring] tables from a TOML or YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the fully-resolved runtime configuration.
type Config struct {
	Bot        BotConfig        `toml:"bot" yaml:"bot"`
	Accounts   AccountsConfig   `toml:"accounts" yaml:"accounts"`
	Proxies    ProxiesConfig    `toml:"proxies" yaml:"proxies"`
	Captcha    CaptchaConfig    `toml:"captcha" yaml:"captcha"`
	Stealth    StealthConfig    `toml:"stealth" yaml:"stealth"`
	Monitoring MonitoringConfig `toml:"monitoring" yaml:"monitoring"`

	// Populated from the environment, never from the file.
	MasterKeyHex    string `toml:"-" yaml:"-"`
	CaptchaAPIKey   string `toml:"-" yaml:"-"`
	LogLevel        string `toml:"-" yaml:"-"`
	DataDir         string `toml:"-" yaml:"-"`
	LogDir          string `toml:"-" yaml:"-"`
	VaultPath       string `toml:"-" yaml:"-"`
	DatabaseURL     string `toml:"-" yaml:"-"`
	SessionsDir     string `toml:"-" yaml:"-"`
	ProxyFamily     string `toml:"-" yaml:"-"`
}

type BotConfig struct {
	RequestTimeoutMS int `toml:"request_timeout_ms" yaml:"request_timeout_ms"`
	ConnectTimeoutMS int `toml:"connect_timeout_ms" yaml:"connect_timeout_ms"`
	MaxConcurrent    int `toml:"max_concurrent" yaml:"max_concurrent"`
}

type AccountsConfig struct {
	LoginURL    string `toml:"login_url" yaml:"login_url"`
	ValidateURL string `toml:"validate_url" yaml:"validate_url"`
}

type ProxiesConfig struct {
	File           string `toml:"file" yaml:"file"`
	HealthCheckURL string `toml:"health_check_url" yaml:"health_check_url"`
	HealthTimeoutMS int   `toml:"health_timeout_ms" yaml:"health_timeout_ms"`
}

type CaptchaConfig struct {
	Endpoint       string `toml:"endpoint" yaml:"endpoint"`
	PollIntervalMS int    `toml:"poll_interval_ms" yaml:"poll_interval_ms"`
	MaxPolls       int    `toml:"max_polls" yaml:"max_polls"`
}

type StealthConfig struct {
	BrowserFamily string `toml:"browser_family" yaml:"browser_family"`
	PacingRPS     float64 `toml:"pacing_requests_per_second" yaml:"pacing_requests_per_second"`
}

type MonitoringConfig struct {
	ProductsFile string `toml:"products_file" yaml:"products_file"`
	DefaultPollMS int   `toml:"default_poll_ms" yaml:"default_poll_ms"`
}

// Defaults returns a Config with every field set to its documented default.
func Defaults() Config {
	return Config{
		Bot: BotConfig{
			RequestTimeoutMS: int((30 * time.Second).Milliseconds()),
			ConnectTimeoutMS: int((10 * time.Second).Milliseconds()),
			MaxConcurrent:    5,
		},
		Proxies: ProxiesConfig{
			HealthCheckURL:  "https://httpbin.org/ip",
			HealthTimeoutMS: int((10 * time.Second).Milliseconds()),
		},
		Captcha: CaptchaConfig{
			Endpoint:       "http://2captcha.com",
			PollIntervalMS: 5000,
			MaxPolls:       60,
		},
		Monitoring: MonitoringConfig{
			DefaultPollMS: 5000,
		},
	}
}

// Load reads the config file (TOML or YAML, picked by extension) if path is
// non-empty and merges in environment variables. It does not check required
// fields; Validate and ValidateStrict do that.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".toml":
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse toml %s: %w", path, err)
			}
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("config: parse yaml %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("config: unrecognized extension for %s (want .toml/.yaml/.yml)", path)
		}
	}

	cfg.MasterKeyHex = os.Getenv("LAZABOT_MASTER_KEY")
	cfg.CaptchaAPIKey = envOr("LAZABOT_CAPTCHA_API_KEY", "")
	cfg.LogLevel = envOr("LAZABOT_LOG_LEVEL", "info")
	cfg.DataDir = envOr("LAZABOT_DATA_DIR", "./data")
	cfg.LogDir = envOr("LAZABOT_LOG_DIR", "./logs")
	cfg.VaultPath = envOr("LAZABOT_VAULT_PATH", filepath.Join(cfg.DataDir, "vault.bin"))
	cfg.DatabaseURL = envOr("LAZABOT_DATABASE_URL", filepath.Join(cfg.DataDir, "lazabot.db"))
	cfg.SessionsDir = envOr("LAZABOT_SESSIONS_DIR", filepath.Join(cfg.DataDir, "sessions"))
	cfg.ProxyFamily = os.Getenv("LAZABOT_PROXY_FAMILY")

	return &cfg, nil
}

// Validate checks that every field required at startup is present. It
// returns every missing field as a single multi-line error rather than
// failing on the first, so `validate --strict` can report everything at
// once.
func (c *Config) Validate() error {
	var missing []string
	if c.MasterKeyHex == "" {
		missing = append(missing, "LAZABOT_MASTER_KEY")
	}
	if c.CaptchaAPIKey == "" {
		missing = append(missing, "LAZABOT_CAPTCHA_API_KEY")
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingEnvError{Fields: missing}
}

// MissingEnvError reports every missing required environment variable.
type MissingEnvError struct {
	Fields []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("config: missing required env vars: %s", strings.Join(e.Fields, ", "))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

