package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string  `mapstructure:"env" validate:"required"` // current application environment (local, dev, production etc)
	TelegramAPIToken string  `mapstructure:"-" validate:"required"`   // Telegram API token loaded from environment
	API              API     `mapstructure:"api"`                     // quiz backend
	Auth             Auth    `mapstructure:"auth"`                    // login/refresh endpoints and token persistence
	Storage          Storage `mapstructure:"storage"`                 // where sessions are persisted
	DB               DB      `mapstructure:"database"`                // database configuration section
	Bot              Bot     `mapstructure:"bot"`                     // Telegram polling options
	Log              Log     `mapstructure:"log"`                     // logger options
}

// API describes the quiz backend.
type API struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Auth holds the endpoint paths of both login families.
type Auth struct {
	StorageKey         string        `mapstructure:"storage_key" validate:"required"`
	StaffLoginPath     string        `mapstructure:"staff_login_path" validate:"required,startswith=/"`
	StaffRefreshPath   string        `mapstructure:"staff_refresh_path" validate:"required,startswith=/"`
	StudentLoginPath   string        `mapstructure:"student_login_path" validate:"required,startswith=/"`
	StudentRefreshPath string        `mapstructure:"student_refresh_path" validate:"required,startswith=/"`
	LogoutPath         string        `mapstructure:"logout_path" validate:"omitempty,startswith=/"`
	RevokeTimeout      time.Duration `mapstructure:"revoke_timeout" validate:"gt=0"`
	SessionTTL         time.Duration `mapstructure:"session_ttl" validate:"gt=0"`        // stored sessions neither refreshed nor used for longer are purged
	TouchInterval      time.Duration `mapstructure:"touch_interval" validate:"gt=0"`     // how often an active chat marks its stored session as used
	SweepSchedule      string        `mapstructure:"sweep_schedule" validate:"required"` // cron spec of the purge job
}

type Storage struct {
	Driver string `mapstructure:"driver" validate:"oneof=postgres memory"`
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"`                                 // database connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections" validate:"min=1"`  // maximum number of open connections in the pool
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" validate:"gt=0"` // maximum lifetime of a single connection
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout" validate:"gt=0"`   // startup connect and ping deadline
}

// DSN returns the database connection string if it is configured.
func (db DB) DSN() (string, error) {
	if db.URL == "" {
		return "", ErrMissingEnvironmentVariables
	}
	return db.URL, nil
}

type Log struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

type Bot struct {
	Debug         bool `mapstructure:"debug"`
	UpdateTimeout int  `mapstructure:"update_timeout" validate:"min=1"`
}

// Load reads configuration from .env, config files and environment variables.
func Load() (*Config, error) {
	// Values already present in the environment win over .env.
	_ = godotenv.Load()

	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	// Set default values for configuration keys.
	v.SetDefault("env", "local")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.user_agent", "pathway-quiz-bot")
	v.SetDefault("auth.storage_key", "quizpath.auth")
	v.SetDefault("auth.staff_login_path", "/auth/token/")
	v.SetDefault("auth.staff_refresh_path", "/auth/token/refresh/")
	v.SetDefault("auth.student_login_path", "/student/auth/student/login/")
	v.SetDefault("auth.student_refresh_path", "/auth/student/token/refresh/")
	v.SetDefault("auth.logout_path", "/auth/logout/")
	v.SetDefault("auth.revoke_timeout", "5s")
	v.SetDefault("auth.session_ttl", "168h")
	v.SetDefault("auth.touch_interval", "1h")
	v.SetDefault("auth.sweep_schedule", "@hourly")
	v.SetDefault("storage.driver", StoragePostgres)
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30s")
	v.SetDefault("database.connect_timeout", "5s")
	v.SetDefault("bot.debug", false)
	v.SetDefault("bot.update_timeout", 60)

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("api.base_url", "API_BASE_URL")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Load sensitive values from environment variables.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")
	if cfg.TelegramAPIToken == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	cfg.DB.URL = v.GetString("database_url")
	if cfg.Storage.Driver == StoragePostgres && cfg.DB.URL == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
