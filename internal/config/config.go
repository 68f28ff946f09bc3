package config

import (
	"log"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"tomato/internal/pomodoro"
)

type PomodoroConfig struct {
	WorkMinutes        int  `mapstructure:"work_minutes"`
	ShortBreakMinutes  int  `mapstructure:"short_break_minutes"`
	LongBreakMinutes   int  `mapstructure:"long_break_minutes"`
	LongBreakInterval  int  `mapstructure:"long_break_interval"`
	AutoStartBreaks    bool `mapstructure:"auto_start_breaks"`
	AutoStartPomodoros bool `mapstructure:"auto_start_pomodoros"`
}

type NotificationsConfig struct {
	Desktop bool `mapstructure:"desktop"`
	Toast   bool `mapstructure:"toast"`
}

type Config struct {
	DatabasePath     string              `mapstructure:"database_path"`
	StorageBackend   string              `mapstructure:"storage_backend"` // "sqlite" or "bolt"
	SocketPath       string              `mapstructure:"socket_path"`
	HTTPAddr         string              `mapstructure:"http_addr"` // Empty disables the HTTP API
	TickIntervalMs   int                 `mapstructure:"tick_interval_ms"`
	AutoStartDelayMs int                 `mapstructure:"auto_start_delay_ms"`
	Notifications    NotificationsConfig `mapstructure:"notifications"`
	Pomodoro         PomodoroConfig      `mapstructure:"pomodoro"`
}

func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config/tomato")
		viper.AddConfigPath("/etc/tomato/")
	}

	viper.SetEnvPrefix("TOMATO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("Config file not found, using defaults.")
		} else {
			return nil, err
		}
	}

	cfg, err := decode()
	if err != nil {
		return nil, err
	}
	log.Printf("Configuration loaded: %+v", *cfg)
	return cfg, nil
}

// Watch calls onChange with the re-read configuration whenever the config
// file changes on disk. Invalid rewrites are logged and ignored.
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("Config file changed: %s (%s)", e.Name, e.Op)
		cfg, err := decode()
		if err != nil {
			log.Printf("Warning: Ignoring unreadable config change: %v", err)
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

func setDefaults() {
	defaults := pomodoro.DefaultSettings()
	viper.SetDefault("database_path", "tomato.db")
	viper.SetDefault("storage_backend", "sqlite")
	viper.SetDefault("socket_path", "/tmp/tomato.sock")
	viper.SetDefault("http_addr", "127.0.0.1:8425")
	viper.SetDefault("tick_interval_ms", int(pomodoro.DefaultTickInterval/time.Millisecond))
	viper.SetDefault("auto_start_delay_ms", int(pomodoro.DefaultAutoStartDelay/time.Millisecond))
	viper.SetDefault("notifications.desktop", true)
	viper.SetDefault("notifications.toast", true)
	viper.SetDefault("pomodoro.work_minutes", defaults.WorkDuration)
	viper.SetDefault("pomodoro.short_break_minutes", defaults.ShortBreakDuration)
	viper.SetDefault("pomodoro.long_break_minutes", defaults.LongBreakDuration)
	viper.SetDefault("pomodoro.long_break_interval", defaults.LongBreakInterval)
	viper.SetDefault("pomodoro.auto_start_breaks", defaults.AutoStartBreaks)
	viper.SetDefault("pomodoro.auto_start_pomodoros", defaults.AutoStartPomodoros)
}

func decode() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.clamp()
	return &cfg, nil
}

func (c *Config) clamp() {
	if c.StorageBackend != "sqlite" && c.StorageBackend != "bolt" {
		log.Printf("Warning: invalid storage_backend '%s', defaulting to 'sqlite'", c.StorageBackend)
		c.StorageBackend = "sqlite"
	}
	if c.TickIntervalMs < 10 {
		log.Println("Warning: tick_interval_ms too low, setting to 10")
		c.TickIntervalMs = 10
	}
	if c.AutoStartDelayMs < 0 {
		log.Println("Warning: auto_start_delay_ms negative, setting to 0")
		c.AutoStartDelayMs = 0
	}

	defaults := pomodoro.DefaultSettings()
	positive := func(name string, v *int, fallback int) {
		if *v < 1 {
			log.Printf("Warning: pomodoro.%s must be at least 1, got %d; using %d", name, *v, fallback)
			*v = fallback
		}
	}
	positive("work_minutes", &c.Pomodoro.WorkMinutes, defaults.WorkDuration)
	positive("short_break_minutes", &c.Pomodoro.ShortBreakMinutes, defaults.ShortBreakDuration)
	positive("long_break_minutes", &c.Pomodoro.LongBreakMinutes, defaults.LongBreakDuration)
	positive("long_break_interval", &c.Pomodoro.LongBreakInterval, defaults.LongBreakInterval)
}

// Settings converts the pomodoro block into the defaults used when no
// settings record has been stored yet.
func (p PomodoroConfig) Settings() pomodoro.Settings {
	return pomodoro.Settings{
		WorkDuration:       p.WorkMinutes,
		ShortBreakDuration: p.ShortBreakMinutes,
		LongBreakDuration:  p.LongBreakMinutes,
		LongBreakInterval:  p.LongBreakInterval,
		AutoStartBreaks:    p.AutoStartBreaks,
		AutoStartPomodoros: p.AutoStartPomodoros,
	}
}

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// AutoStartDelay is the engine option for the configured delay. Zero maps to
// a negative value so that it means "no delay" instead of "use the default".
func (c *Config) AutoStartDelay() time.Duration {
	if c.AutoStartDelayMs == 0 {
		return -1
	}
	return time.Duration(c.AutoStartDelayMs) * time.Millisecond
}
