package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceName string            `yaml:"service_name"`
	Sources     []SourceConfig    `yaml:"sources"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Browser     BrowserConfig     `yaml:"browser"`
	Storage     StorageConfig     `yaml:"storage"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Health      HealthConfig      `yaml:"health"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// SourceConfig is one monitored league page.
type SourceConfig struct {
	Name         string `yaml:"name"`
	URL          string `yaml:"url"`
	Parser       string `yaml:"parser"`        // registered extractor name
	WaitSelector string `yaml:"wait_selector"` // element awaited after navigation
}

type SchedulerConfig struct {
	LiveInterval       time.Duration `yaml:"live_interval"`
	UpcomingInterval   time.Duration `yaml:"upcoming_interval"`
	FullRefreshTimeout time.Duration `yaml:"full_refresh_timeout"`
	RecoveryDelay      time.Duration `yaml:"recovery_delay"`
	ErrorBackoff       time.Duration `yaml:"error_backoff"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	MaxDuration        time.Duration `yaml:"max_duration"` // 0 runs until stopped
}

type BrowserConfig struct {
	Headless     bool          `yaml:"headless"`
	UserAgent    string        `yaml:"user_agent"`
	ChromePath   string        `yaml:"chrome_path"`
	RenderDelay  time.Duration `yaml:"render_delay"` // settle time for client-side rendering
	WindowWidth  int           `yaml:"window_width"`
	WindowHeight int           `yaml:"window_height"`
}

type StorageConfig struct {
	Driver        string `yaml:"driver"` // postgres, sqlite, redis or memory
	DSN           string `yaml:"dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	MaxHistory    int    `yaml:"max_history"`
}

type MaintenanceConfig struct {
	LivenessInterval time.Duration `yaml:"liveness_interval"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	Retention        time.Duration `yaml:"retention"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
}

type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type TelegramConfig struct {
	BotToken         string `yaml:"bot_token"`
	ChatID           int64  `yaml:"chat_id"`
	FailureThreshold int    `yaml:"failure_threshold"` // consecutive failures before alerting
}

// Enabled reports whether alerts can be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
	File   string `yaml:"file"`   // optional log file, appended to
}

// DefaultSources are the league pages monitored when none are configured.
var DefaultSources = []SourceConfig{
	{Name: "Czech Liga Pro", URL: "https://app.hardrock.bet/sport-leagues/table_tennis/767397703555776513"},
	{Name: "TT Cup", URL: "https://app.hardrock.bet/sport-leagues/table_tennis/691030508749717506"},
	{Name: "TT Elite Series", URL: "https://app.hardrock.bet/sport-leagues/table_tennis/754964912222535699"},
	{Name: "TT Star Series", URL: "https://app.hardrock.bet/sport-leagues/table_tennis/7406140231619706928"},
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		ServiceName: "ttmonitor",
		Scheduler: SchedulerConfig{
			LiveInterval:       15 * time.Second,
			UpcomingInterval:   180 * time.Second,
			FullRefreshTimeout: 300 * time.Second,
			RecoveryDelay:      5 * time.Second,
			ErrorBackoff:       30 * time.Second,
			FetchTimeout:       45 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:     true,
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RenderDelay:  5 * time.Second,
			WindowWidth:  1920,
			WindowHeight: 1080,
		},
		Storage: StorageConfig{
			Driver:     "memory",
			MaxHistory: 100,
		},
		Maintenance: MaintenanceConfig{
			LivenessInterval: 30 * time.Second,
			CleanupInterval:  6 * time.Hour,
			Retention:        7 * 24 * time.Hour,
			ShutdownTimeout:  10 * time.Second,
		},
		Health: HealthConfig{
			Enabled: true,
			Port:    8080,
		},
		Telegram: TelegramConfig{
			FailureThreshold: 3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at configPath over the defaults and applies
// environment overrides. An empty path uses defaults and environment only.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if len(config.Sources) == 0 {
		config.Sources = append([]SourceConfig(nil), DefaultSources...)
	}
	for i := range config.Sources {
		if config.Sources[i].Parser == "" {
			config.Sources[i].Parser = "hardrock"
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	seconds := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = time.Duration(n) * time.Second
		}
	}
	hours := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = time.Duration(n) * time.Hour
		}
	}

	str("STORE_DRIVER", &c.Storage.Driver)
	str("STORE_DSN", &c.Storage.DSN)
	str("REDIS_ADDR", &c.Storage.RedisAddr)
	str("TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken)
	seconds("LIVE_REFRESH_INTERVAL", &c.Scheduler.LiveInterval)
	seconds("UPCOMING_REFRESH_INTERVAL", &c.Scheduler.UpcomingInterval)
	seconds("FULL_REFRESH_TIMEOUT", &c.Scheduler.FullRefreshTimeout)
	hours("MAX_RUNTIME_HOURS", &c.Scheduler.MaxDuration)
	hours("CLEANUP_INTERVAL_HOURS", &c.Maintenance.CleanupInterval)

	if v, ok := lookup("HEADLESS"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HEADLESS: %w", err))
		} else {
			c.Browser.Headless = b
		}
	}
	if v, ok := lookup("TELEGRAM_CHAT_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err))
		} else {
			c.Telegram.ChatID = id
		}
	}
	if v, ok := lookup("HEALTH_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("HEALTH_PORT: %w", err))
		} else {
			c.Health.Port = port
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment override: %w", errors.Join(errs...))
	}
	return nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("at least one source is required"))
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" || s.URL == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name and url are required", i))
		}
		if seen[s.Name] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
	}

	sc := c.Scheduler
	if sc.LiveInterval <= 0 || sc.UpcomingInterval <= 0 || sc.FullRefreshTimeout <= 0 {
		errs = append(errs, errors.New("scheduler intervals must be positive"))
	}
	if sc.FetchTimeout <= 0 {
		errs = append(errs, errors.New("scheduler.fetch_timeout must be positive"))
	}
	if sc.MaxDuration < 0 {
		errs = append(errs, errors.New("scheduler.max_duration must not be negative"))
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres", "sqlite":
		if c.Storage.DSN == "" {
			errs = append(errs, fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver))
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			errs = append(errs, errors.New("storage.redis_addr is required for driver \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if c.Storage.MaxHistory <= 0 {
		errs = append(errs, errors.New("storage.max_history must be positive"))
	}

	m := c.Maintenance
	if m.LivenessInterval <= 0 || m.CleanupInterval <= 0 || m.Retention <= 0 || m.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("maintenance durations must be positive"))
	}

	if c.Health.Enabled && (c.Health.Port <= 0 || c.Health.Port > 65535) {
		errs = append(errs, fmt.Errorf("health.port %d out of range", c.Health.Port))
	}

	return errors.Join(errs...)
}
