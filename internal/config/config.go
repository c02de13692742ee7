package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the bridge.
type Config struct {
	General  GeneralConfig  `json:"general" yaml:"general"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Dedup    DedupConfig    `json:"dedup" yaml:"dedup"`
	Bus      BusConfig      `json:"bus" yaml:"bus"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	LogFile  string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

// TelegramConfig covers both directions: the outbound Bot API and the
// inbound webhook.
type TelegramConfig struct {
	BotUsername           string        `json:"botUsername" yaml:"botUsername"`
	BotToken              string        `json:"botToken" yaml:"botToken"`
	BaseURL               string        `json:"baseUrl" yaml:"baseUrl"`
	InboundURL            string        `json:"inboundUrl" yaml:"inboundUrl"`
	RequestTimeoutSeconds int           `json:"requestTimeoutSeconds" yaml:"requestTimeoutSeconds"`
	Webhook               WebhookConfig `json:"webhook" yaml:"webhook"`
}

// WebhookConfig is the local listener the public inbound URL resolves
// to, typically behind a TLS-terminating proxy.
type WebhookConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	Path string `json:"path" yaml:"path"`
}

type DedupConfig struct {
	// DBPath locates the SQLite claim store. Empty selects the
	// in-memory store, which does not survive restarts.
	DBPath               string `json:"dbPath" yaml:"dbPath"`
	RetentionSeconds     int    `json:"retentionSeconds" yaml:"retentionSeconds"`
	PurgeIntervalSeconds int    `json:"purgeIntervalSeconds" yaml:"purgeIntervalSeconds"`
}

type BusConfig struct {
	BufferSize int `json:"bufferSize" yaml:"bufferSize"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.tgbridge).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tgbridge"
	}
	return filepath.Join(home, ".tgbridge")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, env-expands, parses, and validates a config file. The
// extension picks the format: .yaml/.yml parse as YAML, everything else
// as JSON.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Dedup.DBPath = ExpandPath(cfg.Dedup.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values. The bot token is
// checked at command time, not here, so init can save a skeleton.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Telegram.BaseURL == "" {
		errs = append(errs, "telegram.baseUrl must not be empty")
	}
	if cfg.Telegram.RequestTimeoutSeconds < 1 {
		errs = append(errs, "telegram.requestTimeoutSeconds must be >= 1")
	}
	if cfg.Telegram.Webhook.Port < 0 || cfg.Telegram.Webhook.Port > 65535 {
		errs = append(errs, "telegram.webhook.port must be between 0 and 65535")
	}
	if !strings.HasPrefix(cfg.Telegram.Webhook.Path, "/") {
		errs = append(errs, "telegram.webhook.path must start with /")
	}
	if cfg.Dedup.RetentionSeconds < 1 {
		errs = append(errs, "dedup.retentionSeconds must be >= 1")
	}
	if cfg.Dedup.PurgeIntervalSeconds < 1 {
		errs = append(errs, "dedup.purgeIntervalSeconds must be >= 1")
	}
	if cfg.Bus.BufferSize < 1 {
		errs = append(errs, "bus.bufferSize must be >= 1")
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
