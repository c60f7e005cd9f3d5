package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/devricklin/offline-responder/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Storage paths
	Paths PathsConfig

	// Telegram configuration
	Telegram TelegramConfig

	// Classifier configuration (optional, OpenAI-compatible)
	Classifier ClassifierConfig

	// API configuration
	API APIConfig

	// Log configuration
	Log LogConfig

	// Settings loaded from YAML
	Settings *Settings

	// SettingsErr holds the failure to read or parse the settings file.
	// Settings then carries the defaults and Validate reports the error.
	SettingsErr error

	// Debug mode
	Debug bool
}

// PathsConfig contains file locations
type PathsConfig struct {
	Home          string
	ConfigPath    string // Dotted-path JSON config store
	TemplatesPath string
	StatePath     string
	HistoryDBPath string
}

// TelegramConfig contains Telegram Bot API configuration
type TelegramConfig struct {
	Token   string // Empty means "read credentials.telegram.token from the config store"
	BaseURL string
}

// ClassifierConfig contains classifier model configuration
type ClassifierConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Enabled reports whether a classifier can be built
func (c ClassifierConfig) Enabled() bool {
	return c.APIKey != ""
}

// APIConfig contains control API configuration
type APIConfig struct {
	Port int
}

// LogConfig contains logging configuration
type LogConfig struct {
	Path  string // Empty disables the file sink
	Level string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	home := os.Getenv("RESPONDER_HOME")
	if home == "" {
		homeDir, _ := os.UserHomeDir()
		home = filepath.Join(homeDir, ".offline-responder")
	}

	// API port
	apiPort := 9876
	if val := os.Getenv("API_PORT"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			apiPort = parsed
		}
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	telegramBase := os.Getenv("TELEGRAM_API_BASE")
	if telegramBase == "" {
		telegramBase = "https://api.telegram.org"
	}

	// Load settings from YAML
	settings, settingsErr := LoadSettings(os.Getenv("SETTINGS_PATH"))

	return &Config{
		Paths: pathsUnder(home),
		Telegram: TelegramConfig{
			Token:   os.Getenv("TELEGRAM_BOT_TOKEN"),
			BaseURL: telegramBase,
		},
		Classifier: ClassifierConfig{
			APIKey:  os.Getenv("CLASSIFIER_API_KEY"),
			BaseURL: os.Getenv("CLASSIFIER_BASE_URL"),
			Model:   os.Getenv("CLASSIFIER_MODEL"),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Log: LogConfig{
			Path:  os.Getenv("LOG_PATH"),
			Level: logLevel,
		},
		Settings:    settings,
		SettingsErr: settingsErr,
		Debug:       os.Getenv("DEBUG") == "true",
	}
}

// pathsUnder derives storage paths from home, honoring per-file env overrides
func pathsUnder(home string) PathsConfig {
	return PathsConfig{
		Home:          home,
		ConfigPath:    envOr("CONFIG_PATH", filepath.Join(home, "config.json")),
		TemplatesPath: envOr("TEMPLATES_PATH", filepath.Join(home, "templates.json")),
		StatePath:     envOr("STATE_PATH", filepath.Join(home, "state.json")),
		HistoryDBPath: envOr("HISTORY_DB_PATH", filepath.Join(home, "history.db")),
	}
}

// SetHome moves all storage paths under a new home directory
func (c *Config) SetHome(home string) {
	c.Paths = pathsUnder(home)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ToPolicyConfig converts to responder policy configuration
func (c *Config) ToPolicyConfig() usecase.PolicyConfig {
	cfg := usecase.DefaultPolicyConfig()
	if c.Settings == nil {
		return cfg
	}
	s := c.Settings
	cfg.InactivityTimeout = time.Duration(s.Responder.InactivitySeconds) * time.Second
	cfg.MaxResponsesPerUser = s.Responder.MaxResponsesPerUser
	cfg.PendingLimit = s.Responder.PendingLimit
	if len(s.Families) > 0 {
		cfg.Families = s.Families
	}
	if s.Replies.OfflineSuffix != "" {
		cfg.OfflineSuffix = s.Replies.OfflineSuffix
	}
	if s.Replies.Fallback != "" {
		cfg.FallbackReply = s.Replies.Fallback
	}
	if s.Classifier.TimeoutSeconds > 0 {
		cfg.ClassifyTimeout = time.Duration(s.Classifier.TimeoutSeconds) * time.Second
	}
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Paths.ConfigPath == "" || c.Paths.TemplatesPath == "" || c.Paths.StatePath == "" {
		return &ConfigError{Field: "CONFIG_PATH/TEMPLATES_PATH/STATE_PATH", Message: "required"}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return &ConfigError{Field: "API_PORT", Message: "out of range"}
	}
	if c.SettingsErr != nil {
		return &ConfigError{Field: "SETTINGS_PATH", Message: c.SettingsErr.Error()}
	}
	if c.Classifier.APIKey != "" && c.Classifier.Model == "" {
		return &ConfigError{Field: "CLASSIFIER_MODEL", Message: "required when CLASSIFIER_API_KEY is set"}
	}
	if c.Settings != nil {
		if err := c.Settings.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
