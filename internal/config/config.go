package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"crisiswatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App          AppConfig          `mapstructure:"app"`
	Logging      logging.Config     `mapstructure:"logging"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Surveillance SurveillanceConfig `mapstructure:"surveillance"`
	MarketData   MarketDataConfig   `mapstructure:"marketdata"`
	News         NewsConfig         `mapstructure:"news"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	Detection    DetectionConfig    `mapstructure:"detection"`
	Correlation  CorrelationConfig  `mapstructure:"correlation"`
	Hunt         HuntConfig         `mapstructure:"hunt"`
	Alerting     AlertingConfig     `mapstructure:"alerting"`
	Export       ExportConfig       `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// SchedulerConfig governs surveillance cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// SurveillanceConfig names the watched tickers.
type SurveillanceConfig struct {
	Tickers []string `mapstructure:"tickers"`
}

// MarketDataConfig covers the chart API price source.
type MarketDataConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Range             string        `mapstructure:"range"`
	Interval          string        `mapstructure:"interval"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	MinIntradayPoints int           `mapstructure:"min_intraday_points"`
}

// NewsConfig covers the news RSS source.
type NewsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Language       string        `mapstructure:"language"`
	Country        string        `mapstructure:"country"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxItems       int           `mapstructure:"max_items"`
}

// GeminiConfig covers the LLM collaborator.
type GeminiConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DetectionConfig exposes the anomaly-detection policy constants.
type DetectionConfig struct {
	SigmaZ       float64 `mapstructure:"sigma_z"`
	HighVolZ     float64 `mapstructure:"high_vol_z"`
	RallyZ       float64 `mapstructure:"rally_z"`
	SlopeEpsilon float64 `mapstructure:"slope_epsilon"`
	TrendWindow  int     `mapstructure:"trend_window"`
	HorizonSteps int     `mapstructure:"horizon_steps"`
}

// CorrelationConfig exposes the causality scoring policy constants.
type CorrelationConfig struct {
	TemporalWeight float64 `mapstructure:"temporal_weight"`
	PanicWeight    float64 `mapstructure:"panic_weight"`
	DecayPerMinute float64 `mapstructure:"decay_per_minute"`
	WindowMinutes  float64 `mapstructure:"window_minutes"`
	ConfidenceGate int     `mapstructure:"confidence_gate"`
}

// HuntConfig tunes the reactive dragnet.
type HuntConfig struct {
	WindowMinutes       int      `mapstructure:"window_minutes"`
	Keywords            []string `mapstructure:"keywords"`
	SmokingGunThreshold int      `mapstructure:"smoking_gun_threshold"`
}

// AlertingConfig defines alert routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram alert channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRISISWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "crisiswatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x63726973))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("surveillance.tickers", []string{})

	v.SetDefault("marketdata.base_url", "https://yfapi.net")
	v.SetDefault("marketdata.range", "1d")
	v.SetDefault("marketdata.interval", "1m")
	v.SetDefault("marketdata.request_timeout", "10s")
	v.SetDefault("marketdata.user_agent", "crisiswatch/1.0")
	v.SetDefault("marketdata.min_intraday_points", 10)

	v.SetDefault("news.base_url", "https://news.google.com/rss/search")
	v.SetDefault("news.language", "en-US")
	v.SetDefault("news.country", "US")
	v.SetDefault("news.request_timeout", "10s")
	v.SetDefault("news.max_items", 25)

	v.SetDefault("gemini.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini.model", "gemini-2.0-flash-lite")
	v.SetDefault("gemini.request_timeout", "15s")

	v.SetDefault("detection.sigma_z", 2.0)
	v.SetDefault("detection.high_vol_z", 1.0)
	v.SetDefault("detection.rally_z", 2.0)
	v.SetDefault("detection.slope_epsilon", 0.1)
	v.SetDefault("detection.trend_window", 10)
	v.SetDefault("detection.horizon_steps", 12)

	v.SetDefault("correlation.temporal_weight", 0.6)
	v.SetDefault("correlation.panic_weight", 0.4)
	v.SetDefault("correlation.decay_per_minute", 3.0)
	v.SetDefault("correlation.window_minutes", 30.0)
	v.SetDefault("correlation.confidence_gate", 80)

	v.SetDefault("hunt.window_minutes", 30)
	v.SetDefault("hunt.keywords", []string{"fraud", "arrest", "raid", "bankruptcy", "scandal", "crisis"})
	v.SetDefault("hunt.smoking_gun_threshold", 60)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Detection.SigmaZ <= 0 {
		return fmt.Errorf("detection.sigma_z must be greater than zero")
	}
	if c.Correlation.WindowMinutes <= 0 {
		return fmt.Errorf("correlation.window_minutes must be greater than zero")
	}
	if c.Correlation.ConfidenceGate < 0 || c.Correlation.ConfidenceGate > 100 {
		return fmt.Errorf("correlation.confidence_gate must be within [0,100]")
	}
	if c.Correlation.TemporalWeight < 0 || c.Correlation.PanicWeight < 0 {
		return fmt.Errorf("correlation weights cannot be negative")
	}
	if c.Hunt.WindowMinutes <= 0 {
		return fmt.Errorf("hunt.window_minutes must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
