package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration. It is
// constructed once at startup and passed by reference; decision logic
// never reads the process environment directly.
type Config struct {
	Detector  DetectorConfig  `mapstructure:"detector"`
	Snapshots SnapshotsConfig `mapstructure:"snapshots"`
	Events    EventsConfig    `mapstructure:"events"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DetectorConfig holds the spike-detection thresholds. All values are
// empirically tuned heuristics; they are configuration, not protocol.
type DetectorConfig struct {
	TickInterval         time.Duration `mapstructure:"tick_interval"`
	MinAbsoluteDelta     int           `mapstructure:"min_absolute_delta"`
	DeltaRatio           float64       `mapstructure:"delta_ratio"`
	GrowthThreshold      float64       `mapstructure:"growth_threshold"`
	SeasonalThreshold    float64       `mapstructure:"seasonal_threshold"`
	Cooldown             time.Duration `mapstructure:"cooldown"`
	CandidateCooldown    time.Duration `mapstructure:"candidate_cooldown"`
	BaselineFloor        float64       `mapstructure:"baseline_floor"`
	InterestGrowth       float64       `mapstructure:"interest_growth"`
	InterestDelta        int           `mapstructure:"interest_delta"`
	InterestTopN         int           `mapstructure:"interest_top_n"`
	MajorTopN            int           `mapstructure:"major_top_n"`
	MajorGrowthThreshold float64       `mapstructure:"major_growth_threshold"` // 0 = growth_threshold - 0.2
}

// SnapshotsConfig holds the columnar snapshot history store location.
type SnapshotsConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// EventsConfig holds the relational signal-event store location.
type EventsConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	AlertOnSpike   bool          `mapstructure:"alert_on_spike"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("STREAMPULSE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Detector.MajorGrowthThreshold == 0 {
		cfg.Detector.MajorGrowthThreshold = cfg.Detector.GrowthThreshold - 0.2
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("detector.tick_interval", "5m")
	v.SetDefault("detector.min_absolute_delta", 1500)
	v.SetDefault("detector.delta_ratio", 0.3)
	v.SetDefault("detector.growth_threshold", 1.7)
	v.SetDefault("detector.seasonal_threshold", 1.2)
	v.SetDefault("detector.cooldown", "30m")
	v.SetDefault("detector.candidate_cooldown", "120m")
	v.SetDefault("detector.baseline_floor", 300)
	v.SetDefault("detector.interest_growth", 1.2)
	v.SetDefault("detector.interest_delta", 500)
	v.SetDefault("detector.interest_top_n", 10)
	v.SetDefault("detector.major_top_n", 12)

	v.SetDefault("snapshots.db_path", "./data/analytics.db")
	v.SetDefault("events.db_path", "./data/events.db")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.alert_on_spike", true)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.Detector.TickInterval < time.Minute {
		return fmt.Errorf("detector.tick_interval must be at least 1 minute")
	}
	if c.Detector.MinAbsoluteDelta < 1 {
		return fmt.Errorf("detector.min_absolute_delta must be positive")
	}
	if c.Detector.DeltaRatio <= 0 || c.Detector.DeltaRatio > 1 {
		return fmt.Errorf("detector.delta_ratio must be in (0, 1]")
	}
	if c.Detector.GrowthThreshold <= 1.0 {
		return fmt.Errorf("detector.growth_threshold must be above 1.0")
	}
	if c.Detector.SeasonalThreshold <= 1.0 {
		return fmt.Errorf("detector.seasonal_threshold must be above 1.0")
	}
	if c.Detector.MajorGrowthThreshold <= 1.0 {
		return fmt.Errorf("detector.major_growth_threshold must be above 1.0")
	}
	if c.Detector.MajorGrowthThreshold > c.Detector.GrowthThreshold {
		return fmt.Errorf("detector.major_growth_threshold must not exceed detector.growth_threshold")
	}
	if c.Detector.Cooldown < time.Minute {
		return fmt.Errorf("detector.cooldown must be at least 1 minute")
	}
	if c.Detector.CandidateCooldown < c.Detector.Cooldown {
		return fmt.Errorf("detector.candidate_cooldown must not be shorter than detector.cooldown")
	}
	if c.Detector.BaselineFloor <= 0 {
		return fmt.Errorf("detector.baseline_floor must be positive")
	}
	if c.Detector.InterestGrowth <= 1.0 {
		return fmt.Errorf("detector.interest_growth must be above 1.0")
	}
	if c.Detector.InterestDelta < 0 {
		return fmt.Errorf("detector.interest_delta must not be negative")
	}
	if c.Detector.InterestTopN < 1 {
		return fmt.Errorf("detector.interest_top_n must be at least 1")
	}
	if c.Detector.MajorTopN < 1 {
		return fmt.Errorf("detector.major_top_n must be at least 1")
	}

	if c.Snapshots.DBPath == "" {
		return fmt.Errorf("snapshots.db_path is required")
	}
	if c.Events.DBPath == "" {
		return fmt.Errorf("events.db_path is required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
