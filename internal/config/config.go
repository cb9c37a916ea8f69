package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"telegram-ai-diary/internal/models"
)

// Keys understood by Load. Each is read from the environment variable of
// the same name in upper case.
const (
	KeyTelegramToken = "telegram_token"
	KeyGeminiAPIKey  = "gemini_api_key"
	KeyLLMBaseURL    = "llm_base_url"
	KeyLLMModel      = "llm_model"
	KeyLLMTimeout    = "llm_timeout"
	KeyStorePath     = "store_path"
	KeyMorningAt     = "morning_at"
	KeyEveningAt     = "evening_at"
	KeyTimezone      = "timezone"
	KeyTextsPath     = "texts_path"
	KeyHealthAddr    = "health_addr"
	KeyLogLevel      = "log_level"
	KeySecretsDir    = "secrets_dir"
)

const (
	DefaultStorePath  = "data.json"
	DefaultMorningAt  = "16:30"
	DefaultEveningAt  = "20:00"
	DefaultLLMTimeout = 30 * time.Second
	DefaultSecretsDir = "/run/secrets"
)

type Config struct {
	TelegramToken string
	GeminiAPIKey  string

	LLMBaseURL string
	LLMModel   string
	LLMTimeout time.Duration

	StorePath string
	TextsPath string

	MorningAt models.Clock
	EveningAt models.Clock
	Location  *time.Location

	HealthAddr string
	LogLevel   slog.Level
}

// ConfigError reports a missing or malformed setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Message)
}

// NewViper returns a viper instance with defaults and env bindings set.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyStorePath, DefaultStorePath)
	v.SetDefault(KeyMorningAt, DefaultMorningAt)
	v.SetDefault(KeyEveningAt, DefaultEveningAt)
	v.SetDefault(KeyLLMTimeout, DefaultLLMTimeout)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeySecretsDir, DefaultSecretsDir)
	v.AutomaticEnv()
	// older deployments used TELEGRAM_BOT_TOKEN
	_ = v.BindEnv(KeyTelegramToken, "TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	return v
}

// Load builds the Config from v. Secrets are read from Docker secret files
// first and from the environment second.
func Load(v *viper.Viper) (Config, error) {
	secrets := v.GetString(KeySecretsDir)

	cfg := Config{
		TelegramToken: secret(secrets, KeyTelegramToken, v),
		GeminiAPIKey:  secret(secrets, KeyGeminiAPIKey, v),
		LLMBaseURL:    v.GetString(KeyLLMBaseURL),
		LLMModel:      v.GetString(KeyLLMModel),
		LLMTimeout:    v.GetDuration(KeyLLMTimeout),
		StorePath:     v.GetString(KeyStorePath),
		TextsPath:     v.GetString(KeyTextsPath),
		HealthAddr:    v.GetString(KeyHealthAddr),
	}

	if cfg.TelegramToken == "" {
		return Config{}, &ConfigError{Field: "TELEGRAM_TOKEN", Message: "not set as Docker secret or environment variable"}
	}
	if cfg.GeminiAPIKey == "" {
		return Config{}, &ConfigError{Field: "GEMINI_API_KEY", Message: "not set as Docker secret or environment variable"}
	}
	if cfg.LLMTimeout <= 0 {
		return Config{}, &ConfigError{Field: "LLM_TIMEOUT", Message: "must be positive"}
	}

	var err error
	if cfg.MorningAt, err = models.ParseClock(v.GetString(KeyMorningAt)); err != nil {
		return Config{}, &ConfigError{Field: "MORNING_AT", Message: err.Error()}
	}
	if cfg.EveningAt, err = models.ParseClock(v.GetString(KeyEveningAt)); err != nil {
		return Config{}, &ConfigError{Field: "EVENING_AT", Message: err.Error()}
	}

	cfg.Location = time.Local
	if tz := v.GetString(KeyTimezone); tz != "" {
		if cfg.Location, err = time.LoadLocation(tz); err != nil {
			return Config{}, &ConfigError{Field: "TIMEZONE", Message: err.Error()}
		}
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, &ConfigError{Field: "LOG_LEVEL", Message: err.Error()}
	}
	return cfg, nil
}

func secret(dir, key string, v *viper.Viper) string {
	if dir != "" {
		if data, err := os.ReadFile(filepath.Join(dir, key)); err == nil {
			if s := strings.TrimSpace(string(data)); s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(v.GetString(key))
}
