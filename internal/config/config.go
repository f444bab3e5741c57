package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DiscordToken          string         `yaml:"discord_token"`
	DatabasePath          string         `yaml:"database_path"`
	LogLevel              string         `yaml:"log_level"`
	Prefix                string         `yaml:"prefix"`
	DefaultLevelUpChannel string         `yaml:"default_level_up_channel"`
	Health                HealthConfig   `yaml:"health"`
	Leveling              LevelingConfig `yaml:"leveling"`
	Giveaways             GiveawayConfig `yaml:"giveaways"`
	Tickets               TicketConfig   `yaml:"tickets"`
	Wizard                WizardConfig   `yaml:"wizard"`
	Colors                EmbedColors    `yaml:"colors"`
}

type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type LevelingConfig struct {
	XPBase          int `yaml:"xp_base"`
	XPBonusMax      int `yaml:"xp_bonus_max"`
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

type GiveawayConfig struct {
	SweepIntervalSeconds int    `yaml:"sweep_interval_seconds"`
	ReactionEmoji        string `yaml:"reaction_emoji"`
}

type TicketConfig struct {
	CategoryName       string `yaml:"category_name"`
	DeleteDelaySeconds int    `yaml:"delete_delay_seconds"`
}

type WizardConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type EmbedColors struct {
	Default int `yaml:"default"`
	Success int `yaml:"success"`
	Error   int `yaml:"error"`
	Warning int `yaml:"warning"`
}

func DefaultConfig() Config {
	return Config{
		DatabasePath:          "/data/clubhouse.db",
		LogLevel:              "info",
		Prefix:                ".",
		DefaultLevelUpChannel: "",
		Health:                HealthConfig{Enabled: false, Addr: ":8080"},
		Leveling: LevelingConfig{
			XPBase:          15,
			XPBonusMax:      5,
			CooldownSeconds: 60,
		},
		Giveaways: GiveawayConfig{
			SweepIntervalSeconds: 60,
			ReactionEmoji:        "\U0001F389",
		},
		Tickets: TicketConfig{
			CategoryName:       "Tickets",
			DeleteDelaySeconds: 5,
		},
		Wizard: WizardConfig{TimeoutSeconds: 120},
		Colors: EmbedColors{
			Default: 0x5865F2,
			Success: 0x57F287,
			Error:   0xED4245,
			Warning: 0xFEE75C,
		},
	}
}

func Load() (Config, error) {
	cfg := DefaultConfig()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	if cfg.DiscordToken == "" {
		return Config{}, errors.New("DISCORD_TOKEN is required")
	}
	if cfg.Leveling.CooldownSeconds <= 0 {
		cfg.Leveling.CooldownSeconds = 60
	}
	if cfg.Giveaways.SweepIntervalSeconds <= 0 {
		cfg.Giveaways.SweepIntervalSeconds = 60
	}
	if cfg.Tickets.CategoryName == "" {
		cfg.Tickets.CategoryName = "Tickets"
	}

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.DiscordToken = envString("DISCORD_TOKEN", cfg.DiscordToken)
	cfg.DatabasePath = envString("DATABASE_PATH", cfg.DatabasePath)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.Prefix = envString("COMMAND_PREFIX", cfg.Prefix)
	cfg.DefaultLevelUpChannel = envString("DEFAULT_LEVEL_UP_CHANNEL", cfg.DefaultLevelUpChannel)
	cfg.Health.Enabled = envBool("HEALTH_ENABLED", cfg.Health.Enabled)
	cfg.Health.Addr = envString("HEALTH_ADDR", cfg.Health.Addr)
	cfg.Leveling.XPBase = envInt("XP_BASE", cfg.Leveling.XPBase)
	cfg.Leveling.XPBonusMax = envInt("XP_BONUS_MAX", cfg.Leveling.XPBonusMax)
	cfg.Leveling.CooldownSeconds = envInt("XP_COOLDOWN_SECONDS", cfg.Leveling.CooldownSeconds)
	cfg.Giveaways.SweepIntervalSeconds = envInt("GIVEAWAY_SWEEP_SECONDS", cfg.Giveaways.SweepIntervalSeconds)
	cfg.Giveaways.ReactionEmoji = envString("GIVEAWAY_EMOJI", cfg.Giveaways.ReactionEmoji)
	cfg.Tickets.CategoryName = envString("TICKET_CATEGORY", cfg.Tickets.CategoryName)
	cfg.Tickets.DeleteDelaySeconds = envInt("TICKET_DELETE_DELAY", cfg.Tickets.DeleteDelaySeconds)
	cfg.Wizard.TimeoutSeconds = envInt("WIZARD_TIMEOUT_SECONDS", cfg.Wizard.TimeoutSeconds)
}

func BuildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl := strings.ToLower(level)
	switch lvl {
	case "debug", "info", "warn", "error":
		cfg.Level = zap.NewAtomicLevelAt(parseLevel(lvl))
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	return cfg.Build()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "1" || lower == "true" || lower == "yes"
	}
	return fallback
}
