// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Retriever RetrieverConfig `mapstructure:"retriever"`
	Enricher  EnricherConfig  `mapstructure:"enricher"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Sources   []SourceConfig  `mapstructure:"sources"`
	Regions   []RegionConfig  `mapstructure:"regions"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Redis     RedisConfig     `mapstructure:"redis"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Mail      MailConfig      `mapstructure:"mail"`
	Push      PushConfig      `mapstructure:"push"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RetrieverConfig governs page fetching.
type RetrieverConfig struct {
	Timeout      time.Duration   `mapstructure:"timeout"`
	UserAgents   []string        `mapstructure:"user_agents"`
	MaxIdleConns int             `mapstructure:"max_idle_conns"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
	Headless     HeadlessConfig  `mapstructure:"headless"`
}

// RateLimitConfig throttles requests per host.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// HeadlessConfig configures the chromedp retriever.
type HeadlessConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxParallel int           `mapstructure:"max_parallel"`
	NavTimeout  time.Duration `mapstructure:"nav_timeout"`
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// EnricherConfig bounds detail page fetching.
type EnricherConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// SchedulerConfig drives periodic refresh cycles.
type SchedulerConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Interval           time.Duration `mapstructure:"interval"`
	Warmup             time.Duration `mapstructure:"warmup"`
	ParallelCategories int           `mapstructure:"parallel_categories"`
}

// SourceConfig binds a category to a listing page. An empty list selects the
// built-in sources.
type SourceConfig struct {
	Category string `mapstructure:"category"`
	URL      string `mapstructure:"url"`
	Shape    string `mapstructure:"shape"`
}

// RegionConfig adds a state_<code> category.
type RegionConfig struct {
	Code string `mapstructure:"code"`
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// StorageConfig selects the snapshot archive backend.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Bucket  string             `mapstructure:"bucket"`
	Prefix  string             `mapstructure:"prefix"`
	Local   LocalStorageConfig `mapstructure:"local"`
}

// LocalStorageConfig configures the filesystem archive.
type LocalStorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	Keep    int    `mapstructure:"keep"`
}

// DatabaseConfig controls access to PostgreSQL. An empty DSN keeps snapshots
// and subscribers in memory.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	SnapshotTable   string        `mapstructure:"snapshot_table"`
	TrackingTable   string        `mapstructure:"tracking_table"`
	SubscriberTable string        `mapstructure:"subscriber_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// TrackingConfig selects the change tracker backend.
type TrackingConfig struct {
	Backend string `mapstructure:"backend"`
}

// RedisConfig configures the redis tracking backend.
type RedisConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// PubSubConfig holds metadata for refresh event publishing. An empty project
// keeps events in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MailConfig configures the SMTP channel.
type MailConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	FromName string        `mapstructure:"from_name"`
	TLS      string        `mapstructure:"tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PushConfig configures the FCM channel.
type PushConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	ImageURL        string `mapstructure:"image_url"`
	TopicBroadcast  bool   `mapstructure:"topic_broadcast"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is applied first when present.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("JOBALERT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("retriever.timeout", 10*time.Second)
	v.SetDefault("retriever.max_idle_conns", 100)
	v.SetDefault("retriever.rate_limit.enabled", true)
	v.SetDefault("retriever.rate_limit.rps", 5.0)
	v.SetDefault("retriever.rate_limit.burst", 10)
	v.SetDefault("retriever.headless.enabled", false)
	v.SetDefault("retriever.headless.max_parallel", 2)
	v.SetDefault("retriever.headless.nav_timeout", 45*time.Second)
	v.SetDefault("retriever.headless.settle_delay", 500*time.Millisecond)
	v.SetDefault("enricher.concurrency", 20)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 30*time.Minute)
	v.SetDefault("scheduler.warmup", 5*time.Second)
	v.SetDefault("scheduler.parallel_categories", 4)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.prefix", "snapshots")
	v.SetDefault("storage.local.base_dir", "./data")
	v.SetDefault("storage.local.keep", 48)
	v.SetDefault("database.snapshot_table", "snapshots")
	v.SetDefault("database.tracking_table", "job_tracking")
	v.SetDefault("database.subscriber_table", "subscribers")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("tracking.backend", "memory")
	v.SetDefault("redis.key_prefix", "jobalert:tracking:")
	v.SetDefault("pubsub.topic_name", "category.refreshed")
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.from_name", "Notify")
	v.SetDefault("mail.tls", "mandatory")
	v.SetDefault("mail.timeout", 30*time.Second)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Retriever.Timeout <= 0 {
		return fmt.Errorf("retriever.timeout must be > 0")
	}
	if c.Retriever.Headless.Enabled && c.Retriever.Headless.MaxParallel <= 0 {
		return fmt.Errorf("retriever.headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Enricher.Concurrency <= 0 {
		return fmt.Errorf("enricher.concurrency must be > 0")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be > 0 when the scheduler is enabled")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Category == "" || src.URL == "" {
			return fmt.Errorf("sources[%d]: category and url are required", i)
		}
		if _, err := posting.ParseShape(src.Shape); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, dup := seen[src.Category]; dup {
			return fmt.Errorf("sources[%d]: duplicate category %q", i, src.Category)
		}
		seen[src.Category] = struct{}{}
	}
	switch c.Storage.Backend {
	case "memory", "local":
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Tracking.Backend {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the postgres tracking backend")
		}
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis.url must be set for the redis tracking backend")
		}
	default:
		return fmt.Errorf("unknown tracking.backend %q", c.Tracking.Backend)
	}
	if c.Mail.Enabled && (c.Mail.Host == "" || c.Mail.From == "") {
		return fmt.Errorf("mail.host and mail.from must be set when mail is enabled")
	}
	if c.Push.Enabled && c.Push.ProjectID == "" && c.Push.CredentialsFile == "" {
		return fmt.Errorf("push.project_id or push.credentials_file must be set when push is enabled")
	}
	return nil
}

// SourceList converts configured sources into domain sources. It returns nil
// when none are configured.
func (c Config) SourceList() []posting.Source {
	if len(c.Sources) == 0 {
		return nil
	}
	out := make([]posting.Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		shape, _ := posting.ParseShape(src.Shape)
		out = append(out, posting.Source{Category: src.Category, URL: src.URL, Shape: shape})
	}
	return out
}
