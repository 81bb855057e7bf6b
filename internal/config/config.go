package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Quotes   Quotes   `mapstructure:"quotes"`
	Database Database `mapstructure:"database"`
	Auth     Auth     `mapstructure:"auth"`
	Status   Status   `mapstructure:"status"`
	Logger   Logger   `mapstructure:"logger"`
}

// Server holds the configuration for the client-facing TCP listener.
type Server struct {
	Address            string        `mapstructure:"address" validate:"required,hostname_port"`
	AlertCheckInterval time.Duration `mapstructure:"alert_check_interval" validate:"gt=0"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" validate:"gte=0"`
	MaxLineBytes       int           `mapstructure:"max_line_bytes" validate:"gte=64"`
}

// Quotes holds the configuration for the upstream market-data source.
type Quotes struct {
	BaseURL         string        `mapstructure:"base_url" validate:"required,url"`
	SymbolsFile     string        `mapstructure:"symbols_file" validate:"required"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" validate:"gt=0"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	RequestDelay    time.Duration `mapstructure:"request_delay" validate:"gte=0"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN          string `mapstructure:"dsn" validate:"required"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
}

// Auth holds password hashing parameters.
type Auth struct {
	BcryptCost int `mapstructure:"bcrypt_cost" validate:"gte=4,lte=31"`
}

// Status holds the configuration for the read-only status HTTP API.
// A zero port disables it.
type Status struct {
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error dpanic panic fatal"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1:1234")
	v.SetDefault("server.alert_check_interval", 60*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.max_line_bytes", 64*1024)

	v.SetDefault("quotes.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("quotes.symbols_file", "stocks.txt")
	v.SetDefault("quotes.refresh_interval", 60*time.Second)
	v.SetDefault("quotes.request_timeout", 10*time.Second)
	v.SetDefault("quotes.request_delay", 10*time.Millisecond)
	v.SetDefault("quotes.max_retries", 2)
	v.SetDefault("quotes.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)")

	v.SetDefault("database.dsn", "stocks.db")
	v.SetDefault("database.max_open_conns", 4)

	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)

	v.SetDefault("status.port", 0)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
}

// LoadConfig reads configuration from file or environment variables.
// A missing config.yml is not an error; defaults and environment apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
