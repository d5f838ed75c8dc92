package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Persistence drivers
const (
	DriverMemory = "memory"
	DriverMySQL  = "mysql"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Lane        LaneConfig        `mapstructure:"lane"`
	Janitor     JanitorConfig     `mapstructure:"janitor"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Events      EventsConfig      `mapstructure:"events"`
	Seed        SeedConfig        `mapstructure:"seed"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LaneConfig bounds how long a bid submission may wait for its auction's lane
type LaneConfig struct {
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RetryBackoff   time.Duration `mapstructure:"retry_backoff"`
}

type JanitorConfig struct {
	Schedule string `mapstructure:"schedule"`
}

type PersistenceConfig struct {
	Driver  string        `mapstructure:"driver"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type EventsConfig struct {
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type SeedConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("lane.acquire_timeout", 2*time.Second)
	v.SetDefault("lane.max_attempts", 3)
	v.SetDefault("lane.retry_backoff", 25*time.Millisecond)
	v.SetDefault("janitor.schedule", "@every 1m")
	v.SetDefault("persistence.driver", DriverMemory)
	v.SetDefault("persistence.timeout", 3*time.Second)
	v.SetDefault("mysql.dsn", "bidmenow:bidmenow@tcp(localhost:3306)/bidmenow?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "auction_events")
	v.SetDefault("events.publish_timeout", 500*time.Millisecond)
	v.SetDefault("seed.enabled", false)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	// BIDMENOW_LANE_ACQUIRE_TIMEOUT -> lane.acquire_timeout
	v.SetEnvPrefix("BIDMENOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads defaults, an optional config.yaml and BIDMENOW_* environment variables
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/bidmenow/")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Lane.AcquireTimeout <= 0 {
		problems = append(problems, "lane.acquire_timeout must be positive")
	}
	if c.Lane.MaxAttempts <= 0 {
		problems = append(problems, "lane.max_attempts must be positive")
	}
	if c.Lane.RetryBackoff < 0 {
		problems = append(problems, "lane.retry_backoff must not be negative")
	}
	if c.Persistence.Timeout <= 0 {
		problems = append(problems, "persistence.timeout must be positive")
	}
	if c.Events.PublishTimeout <= 0 {
		problems = append(problems, "events.publish_timeout must be positive")
	}
	switch c.Persistence.Driver {
	case DriverMemory:
	case DriverMySQL:
		if c.MySQL.DSN == "" {
			problems = append(problems, "mysql.dsn is required for the mysql driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("persistence.driver %q is not one of memory, mysql", c.Persistence.Driver))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Addr returns the gin listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// String renders the non-secret parts of the config for startup logs
func (c *Config) String() string {
	return fmt.Sprintf(
		"port=%d persistence=%s redis=%t lane_timeout=%s lane_attempts=%d janitor=%q",
		c.Server.Port,
		c.Persistence.Driver,
		c.Redis.Enabled,
		c.Lane.AcquireTimeout,
		c.Lane.MaxAttempts,
		c.Janitor.Schedule,
	)
}
