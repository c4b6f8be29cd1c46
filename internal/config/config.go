package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/weiawesome/wes-io-rooms/pkg/config"
	"github.com/weiawesome/wes-io-rooms/pkg/pubsub"
)

// Presence store drivers.
const (
	PresenceDriverDatabase = "database"
	PresenceDriverRedis    = "redis"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	PubSub    pubsub.Config `mapstructure:"pubsub"`
	Auth      AuthConfig
	Token     TokenConfig
	Presence  PresenceConfig
	Stream    StreamConfig
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Storage   StorageConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"-"`
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	BusyTimeoutMs   int    `mapstructure:"busy_timeout_ms"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration `mapstructure:"-"`
}

// AuthConfig configures verification of session tokens from the sign-in front end.
type AuthConfig struct {
	SessionSecret string `mapstructure:"session_secret"`
}

// TokenConfig configures capability tokens for the media provider.
type TokenConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	APISecret     string        `mapstructure:"api_secret"`
	TTL           time.Duration `mapstructure:"-"`
	NotBeforeSkew time.Duration `mapstructure:"-"`
}

type PresenceConfig struct {
	Driver            string
	DefaultWindow     time.Duration `mapstructure:"-"`
	MinWindow         time.Duration `mapstructure:"-"`
	MaxWindow         time.Duration `mapstructure:"-"`
	FreshnessWindow   time.Duration `mapstructure:"-"`
	HeartbeatInterval time.Duration `mapstructure:"-"`
	SweepInterval     time.Duration `mapstructure:"-"`
	Retention         time.Duration `mapstructure:"-"`
}

type StreamConfig struct {
	DefaultInterval time.Duration `mapstructure:"-"`
	MinInterval     time.Duration `mapstructure:"-"`
	MaxInterval     time.Duration `mapstructure:"-"`
	PingInterval    time.Duration `mapstructure:"-"`
	PongWait        time.Duration `mapstructure:"-"`
	WriteWait       time.Duration `mapstructure:"-"`
}

type RateLimitConfig struct {
	Enabled   bool
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int
}

// StorageConfig bounds retries of transient storage failures.
type StorageConfig struct {
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryBackoff  time.Duration `mapstructure:"-"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	setDefaults(v)
	if err := pkgconfig.BindEnvs(v, envBindings); err != nil {
		return nil, err
	}

	return FromViper(v)
}

// FromViper decodes and validates configuration from v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.ShutdownTimeout = parseDuration(v, "server.shutdown_timeout", 30*time.Second)
	cfg.Cache.TTL = parseDuration(v, "cache.ttl", 5*time.Minute)
	cfg.Token.TTL = parseDuration(v, "token.ttl", time.Hour)
	cfg.Token.NotBeforeSkew = parseDuration(v, "token.not_before_skew", 10*time.Second)
	cfg.Presence.DefaultWindow = parseDuration(v, "presence.default_window", 60*time.Second)
	cfg.Presence.MinWindow = parseDuration(v, "presence.min_window", 10*time.Second)
	cfg.Presence.MaxWindow = parseDuration(v, "presence.max_window", time.Hour)
	cfg.Presence.FreshnessWindow = parseDuration(v, "presence.freshness_window", 30*time.Second)
	cfg.Presence.HeartbeatInterval = parseDuration(v, "presence.heartbeat_interval", 20*time.Second)
	cfg.Presence.SweepInterval = parseDuration(v, "presence.sweep_interval", time.Minute)
	cfg.Presence.Retention = parseDuration(v, "presence.retention", time.Hour)
	cfg.Stream.DefaultInterval = parseDuration(v, "stream.default_interval", 2*time.Second)
	cfg.Stream.MinInterval = parseDuration(v, "stream.min_interval", time.Second)
	cfg.Stream.MaxInterval = parseDuration(v, "stream.max_interval", 10*time.Second)
	cfg.Stream.PingInterval = parseDuration(v, "stream.ping_interval", 30*time.Second)
	cfg.Stream.PongWait = parseDuration(v, "stream.pong_wait", 60*time.Second)
	cfg.Stream.WriteWait = parseDuration(v, "stream.write_wait", 10*time.Second)
	cfg.Storage.RetryBackoff = parseDuration(v, "storage.retry_backoff", 50*time.Millisecond)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the relations between durations.
func (c *Config) Validate() error {
	p := c.Presence
	if p.MinWindow <= 0 || p.MinWindow > p.DefaultWindow || p.DefaultWindow > p.MaxWindow {
		return fmt.Errorf("presence windows must satisfy 0 < min (%s) <= default (%s) <= max (%s)",
			p.MinWindow, p.DefaultWindow, p.MaxWindow)
	}
	if p.Retention < p.MaxWindow {
		return fmt.Errorf("presence retention (%s) must cover max window (%s)", p.Retention, p.MaxWindow)
	}
	if p.FreshnessWindow <= 0 {
		return fmt.Errorf("presence freshness window must be positive")
	}
	if p.Driver != PresenceDriverDatabase && p.Driver != PresenceDriverRedis {
		return fmt.Errorf("unsupported presence driver: %s", p.Driver)
	}

	s := c.Stream
	if s.MinInterval <= 0 || s.MinInterval > s.DefaultInterval || s.DefaultInterval > s.MaxInterval {
		return fmt.Errorf("stream intervals must satisfy 0 < min (%s) <= default (%s) <= max (%s)",
			s.MinInterval, s.DefaultInterval, s.MaxInterval)
	}
	if c.Storage.RetryAttempts < 1 {
		return fmt.Errorf("storage retry attempts must be at least 1")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "rooms")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/rooms.db")
	v.SetDefault("database.busy_timeout_ms", 5000)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.prefix", "rooms:cache")
	v.SetDefault("pubsub.driver", pubsub.DriverRedis)
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("presence.driver", PresenceDriverDatabase)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.per_second", 5)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("storage.retry_attempts", 3)
	v.SetDefault("log.level", "info")
}

var envBindings = map[string]string{
	"server.port":               "PORT",
	"database.driver":           "DB_DRIVER",
	"database.host":             "DB_HOST",
	"database.port":             "DB_PORT",
	"database.user":             "DB_USER",
	"database.password":         "DB_PASSWORD",
	"database.dbname":           "DB_NAME",
	"database.sslmode":          "DB_SSLMODE",
	"database.file_path":        "DB_FILE_PATH",
	"redis.address":             "REDIS_ADDRESS",
	"redis.password":            "REDIS_PASSWORD",
	"redis.db":                  "REDIS_DB",
	"cache.enabled":             "CACHE_ENABLED",
	"pubsub.driver":             "PUBSUB_DRIVER",
	"pubsub.redis.address":      "REDIS_ADDRESS",
	"pubsub.redis.password":     "REDIS_PASSWORD",
	"pubsub.kafka.brokers":      "KAFKA_BROKERS",
	"auth.session_secret":       "SESSION_SECRET",
	"token.api_key":             "TOKEN_API_KEY",
	"token.api_secret":          "TOKEN_API_SECRET",
	"presence.driver":           "PRESENCE_DRIVER",
	"presence.default_window":   "PRESENCE_DEFAULT_WINDOW",
	"presence.freshness_window": "PRESENCE_FRESHNESS_WINDOW",
	"ratelimit.enabled":         "RATELIMIT_ENABLED",
	"log.level":                 "LOG_LEVEL",
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
