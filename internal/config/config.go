package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"medical-intake-agent/internal/intake"
)

type Config struct {
	Port          string        `mapstructure:"PORT"`
	Env           string        `mapstructure:"ENV"`
	DatabaseURL   string        `mapstructure:"DATABASE_URL"`
	RedisURL      string        `mapstructure:"REDIS_URL"`
	MigrationsDir string        `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins   []string      `mapstructure:"CORS_ORIGINS"`
	DedupWindow   time.Duration `mapstructure:"DEDUP_WINDOW"`

	GeminiAPIKey      string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel       string        `mapstructure:"GEMINI_MODEL"`
	GenerationTimeout time.Duration `mapstructure:"GENERATION_TIMEOUT"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	DoctorChatID     int64  `mapstructure:"DOCTOR_CHAT_ID"`

	MaxFollowUps         int `mapstructure:"MAX_FOLLOW_UPS"`
	MaxTurns             int `mapstructure:"MAX_TURNS"`
	ConclusionOfferTurn  int `mapstructure:"CONCLUSION_OFFER_TURN"`
	CompletenessCap      int `mapstructure:"COMPLETENESS_CAP"`
	CompletionMinScore   int `mapstructure:"COMPLETION_MIN_SCORE"`
	MaxConsecutiveErrors int `mapstructure:"MAX_CONSECUTIVE_ERRORS"`
	HPIMinLength         int `mapstructure:"HPI_MIN_LENGTH"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "REDIS_URL", "MIGRATIONS_DIR", "CORS_ORIGINS", "DEDUP_WINDOW",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GENERATION_TIMEOUT",
	"TELEGRAM_BOT_TOKEN", "DOCTOR_CHAT_ID",
	"MAX_FOLLOW_UPS", "MAX_TURNS", "CONCLUSION_OFFER_TURN", "COMPLETENESS_CAP",
	"COMPLETION_MIN_SCORE", "MAX_CONSECUTIVE_ERRORS", "HPI_MIN_LENGTH",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	limits := intake.DefaultLimits()
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("MIGRATIONS_DIR", "migrations")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DEDUP_WINDOW", "10s")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")
	v.SetDefault("GENERATION_TIMEOUT", "30s")
	v.SetDefault("MAX_FOLLOW_UPS", limits.MaxFollowUps)
	v.SetDefault("MAX_TURNS", limits.MaxTurns)
	v.SetDefault("CONCLUSION_OFFER_TURN", limits.ConclusionOfferTurn)
	v.SetDefault("COMPLETENESS_CAP", limits.CompletenessCap)
	v.SetDefault("COMPLETION_MIN_SCORE", limits.CompletionMinScore)
	v.SetDefault("MAX_CONSECUTIVE_ERRORS", limits.MaxConsecutiveErrors)
	v.SetDefault("HPI_MIN_LENGTH", limits.HPIMinLength)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// A missing .env file is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the orchestrator limits are coherent.
func (c *Config) Validate() error {
	if c.MaxFollowUps < 1 {
		return fmt.Errorf("MAX_FOLLOW_UPS must be at least 1, got %d", c.MaxFollowUps)
	}
	if c.ConclusionOfferTurn >= c.MaxTurns {
		return fmt.Errorf("CONCLUSION_OFFER_TURN (%d) must be below MAX_TURNS (%d)", c.ConclusionOfferTurn, c.MaxTurns)
	}
	if c.CompletenessCap < 1 || c.CompletenessCap > 100 {
		return fmt.Errorf("COMPLETENESS_CAP must be within 1..100, got %d", c.CompletenessCap)
	}
	if c.CompletionMinScore > c.CompletenessCap {
		return fmt.Errorf("COMPLETION_MIN_SCORE (%d) must not exceed COMPLETENESS_CAP (%d)", c.CompletionMinScore, c.CompletenessCap)
	}
	if c.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("MAX_CONSECUTIVE_ERRORS must be at least 1, got %d", c.MaxConsecutiveErrors)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive")
	}
	if c.TelegramBotToken != "" && c.DoctorChatID == 0 {
		return fmt.Errorf("DOCTOR_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

func (c *Config) Limits() intake.Limits {
	return intake.Limits{
		MaxFollowUps:         c.MaxFollowUps,
		MaxTurns:             c.MaxTurns,
		ConclusionOfferTurn:  c.ConclusionOfferTurn,
		CompletenessCap:      c.CompletenessCap,
		CompletionMinScore:   c.CompletionMinScore,
		MaxConsecutiveErrors: c.MaxConsecutiveErrors,
		HPIMinLength:         c.HPIMinLength,
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
