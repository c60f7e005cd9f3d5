package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/devricklin/offline-responder/internal/biz/usecase"
)

// Settings contains tunables loaded from YAML
type Settings struct {
	Poll       PollSettings            `yaml:"poll"`
	Responder  ResponderSettings       `yaml:"responder"`
	Telegram   TelegramSettings        `yaml:"telegram"`
	History    HistorySettings         `yaml:"history"`
	Classifier ClassifierSettings      `yaml:"classifier"`
	Replies    ReplySettings           `yaml:"replies"`
	Families   []usecase.KeywordFamily `yaml:"keyword_families"`

	// LoadedFrom is the file the settings came from, empty for defaults
	LoadedFrom string `yaml:"-"`
}

// PollSettings controls the main loop
type PollSettings struct {
	IntervalSeconds     int `yaml:"interval_seconds"`
	ErrorBackoffSeconds int `yaml:"error_backoff_seconds"`
	FailureThreshold    int `yaml:"failure_threshold"` // Consecutive failed cycles before the loop halts
}

// ResponderSettings controls the policy engine
type ResponderSettings struct {
	InactivitySeconds   int `yaml:"inactivity_seconds"`
	MaxResponsesPerUser int `yaml:"max_responses_per_user"`
	PendingLimit        int `yaml:"pending_limit"`
}

// TelegramSettings controls Bot API calls
type TelegramSettings struct {
	UpdatesLimit          int `yaml:"updates_limit"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
	FetchRetries          int `yaml:"fetch_retries"`
	FetchRetryDelaySec    int `yaml:"fetch_retry_delay_seconds"`
	SendRetries           int `yaml:"send_retries"`
	SendRetryDelaySec     int `yaml:"send_retry_delay_seconds"`
}

// HistorySettings controls the SQLite archive
type HistorySettings struct {
	RetentionDays        int `yaml:"retention_days"`
	CleanupIntervalHours int `yaml:"cleanup_interval_hours"`
}

// ClassifierSettings controls the optional model classifier
type ClassifierSettings struct {
	Prompt         string `yaml:"prompt"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// ReplySettings overrides built-in reply texts
type ReplySettings struct {
	OfflineSuffix string `yaml:"offline_suffix"`
	Fallback      string `yaml:"fallback"`
}

// LoadSettings loads settings from a YAML file
func LoadSettings(settingsPath string) (*Settings, error) {
	// Try multiple paths
	paths := []string{settingsPath}
	if settingsPath == "" {
		paths = []string{
			"configs/responder.yaml",
			"/etc/offline-responder/responder.yaml",
		}
		// Add path relative to executable
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "responder.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
	}

	if data == nil {
		if settingsPath != "" {
			return DefaultSettings(), fmt.Errorf("settings file not found: %s", settingsPath)
		}
		return DefaultSettings(), nil
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	s.fillDefaults()
	s.LoadedFrom = loadedPath
	return &s, nil
}

// fillDefaults fills in default values for zero fields
func (s *Settings) fillDefaults() {
	d := DefaultSettings()

	setInt(&s.Poll.IntervalSeconds, d.Poll.IntervalSeconds)
	setInt(&s.Poll.ErrorBackoffSeconds, d.Poll.ErrorBackoffSeconds)
	setInt(&s.Poll.FailureThreshold, d.Poll.FailureThreshold)

	setInt(&s.Responder.InactivitySeconds, d.Responder.InactivitySeconds)
	setInt(&s.Responder.MaxResponsesPerUser, d.Responder.MaxResponsesPerUser)
	setInt(&s.Responder.PendingLimit, d.Responder.PendingLimit)

	setInt(&s.Telegram.UpdatesLimit, d.Telegram.UpdatesLimit)
	setInt(&s.Telegram.RequestTimeoutSeconds, d.Telegram.RequestTimeoutSeconds)
	setInt(&s.Telegram.FetchRetries, d.Telegram.FetchRetries)
	setInt(&s.Telegram.FetchRetryDelaySec, d.Telegram.FetchRetryDelaySec)
	setInt(&s.Telegram.SendRetries, d.Telegram.SendRetries)
	setInt(&s.Telegram.SendRetryDelaySec, d.Telegram.SendRetryDelaySec)

	setInt(&s.History.RetentionDays, d.History.RetentionDays)
	setInt(&s.History.CleanupIntervalHours, d.History.CleanupIntervalHours)

	if s.Classifier.Prompt == "" {
		s.Classifier.Prompt = d.Classifier.Prompt
	}
	setInt(&s.Classifier.TimeoutSeconds, d.Classifier.TimeoutSeconds)

	if len(s.Families) == 0 {
		s.Families = d.Families
	}
}

func setInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

// Validate checks value ranges
func (s *Settings) Validate() error {
	if s.Poll.IntervalSeconds < 0 || s.Poll.ErrorBackoffSeconds < 0 {
		return &ConfigError{Field: "poll", Message: "intervals must not be negative"}
	}
	if s.Responder.MaxResponsesPerUser < 0 {
		return &ConfigError{Field: "responder.max_responses_per_user", Message: "must not be negative"}
	}
	if s.Telegram.UpdatesLimit < 1 || s.Telegram.UpdatesLimit > 100 {
		return &ConfigError{Field: "telegram.updates_limit", Message: "must be between 1 and 100"}
	}
	for _, f := range s.Families {
		if f.Name == "" || f.TemplateID == "" {
			return &ConfigError{Field: "keyword_families", Message: "name and template are required"}
		}
	}
	return nil
}

// DefaultSettings returns the built-in settings
func DefaultSettings() *Settings {
	return &Settings{
		Poll: PollSettings{
			IntervalSeconds:     3,
			ErrorBackoffSeconds: 10,
			FailureThreshold:    5,
		},
		Responder: ResponderSettings{
			InactivitySeconds:   300,
			MaxResponsesPerUser: 3,
			PendingLimit:        100,
		},
		Telegram: TelegramSettings{
			UpdatesLimit:          10,
			RequestTimeoutSeconds: 30,
			FetchRetries:          3,
			FetchRetryDelaySec:    5,
			SendRetries:           3,
			SendRetryDelaySec:     2,
		},
		History: HistorySettings{
			RetentionDays:        30,
			CleanupIntervalHours: 24,
		},
		Classifier: ClassifierSettings{
			Prompt: `You sort incoming chat messages for an auto-responder.
Answer with exactly one of these categories: {{categories}}.
Answer "none" if no category fits. Output the category name only.`,
			TimeoutSeconds: 10,
		},
		Families: usecase.DefaultKeywordFamilies(),
	}
}
