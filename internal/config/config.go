// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev  bool
	Path string
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Mode     string  `yaml:"mode"`    // polling | webhook (future)
	Workers  int     `yaml:"workers"` // update workers
	AdminIDs []int64 `yaml:"admin_ids"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type StorefrontConfig struct {
	PhotoURL     string `yaml:"photo_url"`
	WelcomeText  string `yaml:"welcome_text"`
	MenuText     string `yaml:"menu_text"`
	ContactsText string `yaml:"contacts_text"`
	ShowcaseURL  string `yaml:"showcase_url"`
}

type DatabaseConfig struct {
	Driver      string        `yaml:"driver"` // sqlite | postgres
	Path        string        `yaml:"path"`   // sqlite file
	URL         string        `yaml:"url"`    // postgres dsn
	MaxConns    int32         `yaml:"max_conns"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type BroadcastConfig struct {
	SendDelay  time.Duration `yaml:"send_delay"`
	PreviewLen int           `yaml:"preview_len"`
	LockTTL    time.Duration `yaml:"lock_ttl"`
	RatePerSec int           `yaml:"rate_per_sec"` // outbound Telegram calls per second
}

type AdminConfig struct {
	Port      int           `yaml:"port"`
	APIKey    string        `yaml:"api_key"`
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type SchedulerConfig struct {
	BackupCron    string        `yaml:"backup_cron"`
	BackupDir     string        `yaml:"backup_dir"`
	BackupKeep    int           `yaml:"backup_keep"`
	StatsInterval time.Duration `yaml:"stats_interval"`
}

type Config struct {
	Bot        BotConfig        `yaml:"bot"`
	Log        LogConfig        `yaml:"log"`
	Storefront StorefrontConfig `yaml:"storefront"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Broadcast  BroadcastConfig  `yaml:"broadcast"`
	Admin      AdminConfig      `yaml:"admin"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing file is tolerated so the bot
// can run from environment variables alone.
func LoadConfig(path string, dev bool) (*Config, error) {
	cfg, err := Parse(path)
	if err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

// Parse is LoadConfig without runtime flags; config.Watch uses it on reload.
func Parse(path string) (*Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
		// env-only deployment
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)

	// Minimal validation
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required (or BOT_TOKEN)")
	}
	switch cfg.Database.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url is required for the postgres driver")
		}
	default:
		return nil, fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}

	cfg.Runtime.Path = path
	return &cfg, nil
}

// IsAdmin reports whether tgID may run admin commands. An empty allow-list
// authorizes everyone.
func (c *BotConfig) IsAdmin(tgID int64) bool {
	if len(c.AdminIDs) == 0 {
		return true
	}
	for _, id := range c.AdminIDs {
		if id == tgID {
			return true
		}
	}
	return false
}

func applyEnv(cfg *Config) error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	str("BOT_TOKEN", &cfg.Bot.Token)
	str("DB_FILE", &cfg.Database.Path)
	str("PHOTO_URL", &cfg.Storefront.PhotoURL)
	str("WELCOME_TEXT", &cfg.Storefront.WelcomeText)
	str("MENU_TEXT", &cfg.Storefront.MenuText)
	str("CONTACTS_TEXT", &cfg.Storefront.ContactsText)
	str("VETRINA_URL", &cfg.Storefront.ShowcaseURL)
	str("REDIS_URL", &cfg.Redis.URL)
	str("ADMIN_API_KEY", &cfg.Admin.APIKey)
	if v, ok := os.LookupEnv("DATABASE_URL"); ok && v != "" {
		cfg.Database.URL = v
		if cfg.Database.Driver == "" {
			cfg.Database.Driver = "postgres"
		}
	}
	if v, ok := os.LookupEnv("ADMIN_IDS"); ok && strings.TrimSpace(v) != "" {
		ids, err := ParseIDList(v)
		if err != nil {
			return fmt.Errorf("ADMIN_IDS: %w", err)
		}
		cfg.Bot.AdminIDs = ids
	}
	return nil
}

// ParseIDList parses "1, 2,3" into ids.
func ParseIDList(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == ';' }) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		out = append(out, id)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Bot.Mode == "" {
		cfg.Bot.Mode = "polling"
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	if cfg.Database.Driver == "" || cfg.Database.Driver == "sqlite3" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/data/users.db"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Database.BusyTimeout <= 0 {
		cfg.Database.BusyTimeout = 5 * time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Broadcast.SendDelay <= 0 {
		cfg.Broadcast.SendDelay = 50 * time.Millisecond
	}
	if cfg.Broadcast.PreviewLen <= 0 {
		cfg.Broadcast.PreviewLen = 60
	}
	if cfg.Broadcast.LockTTL <= 0 {
		cfg.Broadcast.LockTTL = 2 * time.Hour
	}
	if cfg.Broadcast.RatePerSec <= 0 {
		cfg.Broadcast.RatePerSec = 25
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 30 * time.Minute
	}
	if cfg.Scheduler.BackupCron == "" {
		cfg.Scheduler.BackupCron = "0 3 * * *"
	}
	if cfg.Scheduler.BackupKeep <= 0 {
		cfg.Scheduler.BackupKeep = 7
	}
	if cfg.Scheduler.StatsInterval <= 0 {
		cfg.Scheduler.StatsInterval = 5 * time.Minute
	}
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
