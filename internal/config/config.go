package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"closet-cast/pkg/database"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
	Feed      FeedConfig      `toml:"feed"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Auth      AuthConfig      `toml:"auth"`
	LLM       LLMConfig       `toml:"llm"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	IdleTimeout  Duration `toml:"idle_timeout"`
}

// DatabaseConfig contains storage settings
type DatabaseConfig struct {
	Driver          string   `toml:"driver"` // "postgres" or "sqlite"
	Host            string   `toml:"host"`
	Port            int      `toml:"port"`
	User            string   `toml:"user"`
	Password        string   `toml:"password"`
	Database        string   `toml:"database"`
	SSLMode         string   `toml:"sslmode"`
	Path            string   `toml:"path"` // sqlite only
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
	ConnMaxIdleTime Duration `toml:"conn_max_idle_time"`
}

// Connection converts the settings into a database connection config
func (c DatabaseConfig) Connection() *database.Config {
	return &database.Config{
		Driver:          c.Driver,
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		Path:            c.Path,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime.Duration,
		ConnMaxIdleTime: c.ConnMaxIdleTime.Duration,
	}
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `toml:"level"`
}

// FeedConfig contains forecast feed settings
type FeedConfig struct {
	BaseURL   string   `toml:"base_url"`
	AuthKey   string   `toml:"auth_key"`
	NX        int      `toml:"nx"`
	NY        int      `toml:"ny"`
	NumOfRows int      `toml:"num_of_rows"`
	Timeout   Duration `toml:"timeout"`
}

// SchedulerConfig contains ingestion schedule settings
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Cron     string `toml:"cron"`
	Timezone string `toml:"timezone"`
}

// AuthConfig contains bearer token settings
type AuthConfig struct {
	JWTSecret string   `toml:"jwt_secret"`
	Issuer    string   `toml:"issuer"`
	TokenTTL  Duration `toml:"token_ttl"`
}

// LLMConfig contains chat-completion settings
type LLMConfig struct {
	APIKey      string   `toml:"api_key"`
	BaseURL     string   `toml:"base_url"`
	Model       string   `toml:"model"`
	MaxTokens   int      `toml:"max_tokens"`
	Temperature float32  `toml:"temperature"`
	Timeout     Duration `toml:"timeout"`
}

// Duration is a time.Duration written as a Go duration string ("10s", "24h") in TOML
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  Duration{15 * time.Second},
			WriteTimeout: Duration{30 * time.Second},
			IdleTimeout:  Duration{60 * time.Second},
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			User:            "closet",
			Database:        "closet_cast",
			SSLMode:         "disable",
			Path:            "closet-cast.db",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: Duration{30 * time.Minute},
			ConnMaxIdleTime: Duration{5 * time.Minute},
		},
		Logging: LoggingConfig{Level: "info"},
		Feed: FeedConfig{
			BaseURL:   "https://apihub.kma.go.kr/api/typ02/openApi/VilageFcstInfoService_2.0",
			NX:        55,
			NY:        127,
			NumOfRows: 1000,
			Timeout:   Duration{10 * time.Second},
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Cron:     "30 2,5,8,11,14,17,20,23 * * *",
			Timezone: "Asia/Seoul",
		},
		Auth: AuthConfig{
			Issuer:   "closet-cast",
			TokenTTL: Duration{24 * time.Hour},
		},
		LLM: LLMConfig{
			Model:       "gpt-4o",
			MaxTokens:   100,
			Temperature: 0.2,
			Timeout:     Duration{20 * time.Second},
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional TOML file
// (CONFIG_FILE), a .env file and finally environment variables.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(key string, dst *Duration) {
		if v, ok := os.LookupEnv(key); ok {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	setString("SERVER_HOST", &c.Server.Host)
	setInt("SERVER_PORT", &c.Server.Port)
	setDuration("SERVER_READ_TIMEOUT", &c.Server.ReadTimeout)
	setDuration("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeout)
	setDuration("SERVER_IDLE_TIMEOUT", &c.Server.IdleTimeout)

	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_HOST", &c.Database.Host)
	setInt("DB_PORT", &c.Database.Port)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASSWORD", &c.Database.Password)
	setString("DB_NAME", &c.Database.Database)
	setString("DB_SSLMODE", &c.Database.SSLMode)
	setString("DB_PATH", &c.Database.Path)
	setInt("DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	setInt("DB_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)
	setDuration("DB_CONN_MAX_LIFETIME", &c.Database.ConnMaxLifetime)
	setDuration("DB_CONN_MAX_IDLE_TIME", &c.Database.ConnMaxIdleTime)

	setString("LOG_LEVEL", &c.Logging.Level)

	setString("FEED_BASE_URL", &c.Feed.BaseURL)
	setString("FEED_AUTH_KEY", &c.Feed.AuthKey)
	setInt("FEED_NX", &c.Feed.NX)
	setInt("FEED_NY", &c.Feed.NY)
	setDuration("FEED_TIMEOUT", &c.Feed.Timeout)

	setBool("SCHEDULER_ENABLED", &c.Scheduler.Enabled)
	setString("SCHEDULER_CRON", &c.Scheduler.Cron)
	setString("SCHEDULER_TIMEZONE", &c.Scheduler.Timezone)

	setString("JWT_SECRET", &c.Auth.JWTSecret)
	setString("JWT_ISSUER", &c.Auth.Issuer)
	setDuration("JWT_TOKEN_TTL", &c.Auth.TokenTTL)

	setString("OPENAI_API_KEY", &c.LLM.APIKey)
	setString("OPENAI_BASE_URL", &c.LLM.BaseURL)
	setString("OPENAI_MODEL", &c.LLM.Model)
	setInt("OPENAI_MAX_TOKENS", &c.LLM.MaxTokens)
	setDuration("OPENAI_TIMEOUT", &c.LLM.Timeout)

	return errors.Join(errs...)
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server port %d out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case database.DriverPostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			problems = append(problems, "postgres requires host and database name")
		}
	case database.DriverSQLite:
		if c.Database.Path == "" {
			problems = append(problems, "sqlite requires a database path")
		}
	default:
		problems = append(problems, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}

	if c.Auth.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required")
	}

	if c.Feed.NX <= 0 || c.Feed.NY <= 0 {
		problems = append(problems, "feed grid nx/ny must be positive")
	}

	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}

	if c.Scheduler.Enabled {
		if strings.TrimSpace(c.Scheduler.Cron) == "" {
			problems = append(problems, "scheduler cron expression is empty")
		}
		if c.Feed.AuthKey == "" {
			problems = append(problems, "FEED_AUTH_KEY is required when the scheduler is enabled")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location returns the time zone used for scheduling and "today"
func (c *Config) Location() (*time.Location, error) {
	name := c.Scheduler.Timezone
	if name == "" {
		name = "Asia/Seoul"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}
