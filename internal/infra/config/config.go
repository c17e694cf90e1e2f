package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Signal     SignalConfig     `mapstructure:"signal"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Notifier   NotifierConfig   `mapstructure:"notifier"`
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Backoff    BackoffConfig    `mapstructure:"backoff"`
	Log        LogConfig        `mapstructure:"log"`

	HistoryFile     string   `mapstructure:"history_file"`
	HistoryDriver   string   `mapstructure:"history_driver"` // file or sqlite
	Keywords        []string `mapstructure:"keywords"`
	CheckInterval   int      `mapstructure:"check_interval"`   // seconds
	SummarySchedule string   `mapstructure:"summary_schedule"` // cron expression, continuous mode only
}

// SignalConfig points at a signal-cli daemon started with --http.
type SignalConfig struct {
	DaemonURL string `mapstructure:"daemon_url"`
	Number    string `mapstructure:"number"`
	GroupID   string `mapstructure:"group_id"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

type NotifierConfig struct {
	Driver          string `mapstructure:"driver"` // signal or telegram
	ChunkLimit      int    `mapstructure:"chunk_limit"`
	ChunkIntervalMs int    `mapstructure:"chunk_interval_ms"`
}

type PolymarketConfig struct {
	BaseURL         string  `mapstructure:"base_url"`
	EventURL        string  `mapstructure:"event_url"`
	PageSize        int     `mapstructure:"page_size"`
	MaxPages        int     `mapstructure:"max_pages"`
	FetchTimeout    int     `mapstructure:"fetch_timeout"` // seconds, whole fetch
	MaxRetries      int     `mapstructure:"max_retries"`
	RatePerSec      float64 `mapstructure:"rate_per_sec"`
	MaxResponseSize int64   `mapstructure:"max_response_size"`
}

type BackoffConfig struct {
	Base   float64 `mapstructure:"base"` // seconds
	Factor float64 `mapstructure:"factor"`
	Jitter float64 `mapstructure:"jitter"`
	Max    float64 `mapstructure:"max"` // seconds, 0 disables the cap
}

type LogConfig struct {
	Dir     string `mapstructure:"dir"`
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.CheckInterval) * time.Second
}

func (b BackoffConfig) Durations() (base, max time.Duration) {
	return time.Duration(b.Base * float64(time.Second)), time.Duration(b.Max * float64(time.Second))
}

// Loader reads config from defaults, the YAML file, .env, environment and flags,
// in increasing order of precedence.
type Loader struct {
	path string
	v    *viper.Viper

	mu      sync.Mutex
	fileErr error
}

// NewLoader prepares a loader for the YAML file at path. flags may be nil; when set,
// the "interval" and "log-level" flags override check_interval and log.level.
func NewLoader(path string, flags *pflag.FlagSet) (*Loader, error) {
	// .env is optional
	_ = godotenv.Load(".env")

	v := viper.New()
	setDefaults(v)
	setupEnvAliases(v)

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	return &Loader{path: path, v: v}, nil
}

// Load reads the file and returns a validated config. A missing file is tolerated
// when everything required comes from the environment.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", l.path, err)
		}
		l.fileErr = err
	} else {
		l.fileErr = nil
	}

	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Keywords = parseList(l.v.Get("keywords"))

	if err := validateConfig(&cfg); err != nil {
		if l.fileErr != nil {
			return nil, fmt.Errorf("%w (config file %s not found)", err, l.path)
		}
		return nil, err
	}
	return &cfg, nil
}

// Watch re-reads the file on change and passes each valid config to onChange.
// Invalid edits are reported through onError and otherwise ignored.
func (l *Loader) Watch(onChange func(*Config), onError func(error)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileErr != nil {
		return
	}

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("config reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(cfg)
	})
	l.v.WatchConfig()
}

// parseList accepts a YAML list or a comma-separated string (from .env / env vars).
func parseList(raw interface{}) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				items = append(items, s)
			} else if item != nil {
				items = append(items, fmt.Sprint(item))
			}
		}
	default:
		items = []string{fmt.Sprint(v)}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("signal.daemon_url", "http://127.0.0.1:8080")

	v.SetDefault("notifier.driver", "signal")
	v.SetDefault("notifier.chunk_limit", 2000)
	v.SetDefault("notifier.chunk_interval_ms", 1000)

	v.SetDefault("polymarket.base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.event_url", "https://polymarket.com/event/")
	v.SetDefault("polymarket.page_size", 500)
	v.SetDefault("polymarket.max_pages", 4)
	v.SetDefault("polymarket.fetch_timeout", 30)
	v.SetDefault("polymarket.max_retries", 0)
	v.SetDefault("polymarket.rate_per_sec", 10)
	v.SetDefault("polymarket.max_response_size", 32*1024*1024)

	v.SetDefault("backoff.base", 3)
	v.SetDefault("backoff.factor", 1.6)
	v.SetDefault("backoff.jitter", 0.3)
	v.SetDefault("backoff.max", 600)

	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", true)

	v.SetDefault("history_file", "data/seen_markets.txt")
	v.SetDefault("history_driver", "file")
	v.SetDefault("check_interval", 60)
	v.SetDefault("summary_schedule", "")
}

func setupEnvAliases(v *viper.Viper) {
	v.BindEnv("signal.daemon_url", "SIGNAL_DAEMON_URL")
	v.BindEnv("signal.number", "SIGNAL_NUMBER")
	v.BindEnv("signal.group_id", "SIGNAL_GROUP_ID")

	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.chat_id", "TELEGRAM_CHAT_ID")

	v.BindEnv("notifier.driver", "NOTIFIER_DRIVER")

	v.BindEnv("polymarket.base_url", "POLYMARKET_BASE_URL")
	v.BindEnv("polymarket.max_retries", "POLYMARKET_MAX_RETRIES")

	v.BindEnv("history_file", "HISTORY_FILE")
	v.BindEnv("history_driver", "HISTORY_DRIVER")
	v.BindEnv("keywords", "KEYWORDS")
	v.BindEnv("check_interval", "CHECK_INTERVAL")
	v.BindEnv("summary_schedule", "SUMMARY_SCHEDULE")

	v.BindEnv("log.dir", "LOG_DIR")
	v.BindEnv("log.level", "LOG_LEVEL")
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	bindings := map[string]string{
		"check_interval": "interval",
		"log.level":      "log-level",
	}
	for key, name := range bindings {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func validateConfig(cfg *Config) error {
	cfg.Notifier.Driver = strings.ToLower(strings.TrimSpace(cfg.Notifier.Driver))
	switch cfg.Notifier.Driver {
	case "", "signal":
		cfg.Notifier.Driver = "signal"
		if cfg.Signal.DaemonURL == "" || cfg.Signal.Number == "" || cfg.Signal.GroupID == "" {
			return fmt.Errorf("signal.daemon_url, signal.number and signal.group_id are required")
		}
	case "telegram":
		if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.bot_token and telegram.chat_id are required for the telegram notifier")
		}
	default:
		return fmt.Errorf("unknown notifier driver: %s", cfg.Notifier.Driver)
	}

	if strings.TrimSpace(cfg.HistoryFile) == "" {
		return fmt.Errorf("history_file is required")
	}
	if cfg.CheckInterval <= 0 {
		return fmt.Errorf("check_interval must be positive, got %d", cfg.CheckInterval)
	}
	if cfg.Backoff.Base <= 0 || cfg.Backoff.Factor < 1 {
		return fmt.Errorf("backoff.base must be positive and backoff.factor at least 1")
	}
	if cfg.Backoff.Jitter < 0 || cfg.Backoff.Jitter > 1 {
		return fmt.Errorf("backoff.jitter must be within [0, 1]")
	}
	if cfg.Polymarket.PageSize <= 0 || cfg.Polymarket.MaxPages <= 0 {
		return fmt.Errorf("polymarket.page_size and polymarket.max_pages must be positive")
	}
	return nil
}
