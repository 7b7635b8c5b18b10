// Package config provides configuration for the studybuddy service.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xiaot623/studybuddy/internal/observability"
	"github.com/xiaot623/studybuddy/internal/reminder"
)

// Keys double as environment variable names (upper-cased) and YAML keys.
const (
	KeyDatabaseURL      = "database_url"
	KeyWSPort           = "ws_port"
	KeyAdminPort        = "admin_port"
	KeyReminderInterval = "reminder_interval_minutes"
	KeyLogLevel         = "log_level"
	KeyTimezone         = "timezone"
	KeyAPIKey           = "api_key"
	KeySessionTTL       = "session_ttl_seconds"
	KeyMaxTitleLength   = "max_title_length"
	KeyMaxOpenTasks     = "max_open_tasks"
	KeyPingInterval     = "ws_ping_interval_ms"
	KeyWriteTimeout     = "ws_write_timeout_ms"
	KeyReadTimeout      = "ws_read_timeout_ms"
	KeyMaxMessageSize   = "ws_max_message_size"
	KeyTurnTimeout      = "turn_timeout_ms"
	KeyChatURL          = "chat_url"
)

// Config holds the service configuration.
type Config struct {
	// Storage
	DatabaseURL string

	// Server settings
	WSPort    int // Public WebSocket port
	AdminPort int // Internal admin API port

	// Reminders
	ReminderInterval time.Duration

	// Dialog
	SessionTTL     time.Duration
	MaxTitleLength int
	MaxOpenTasks   int
	TurnTimeout    time.Duration

	// Auth settings
	APIKey string // Static API key for hello.api_key validation

	// WebSocket settings
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64

	// Chat client
	ChatURL string

	LogLevel string
	Timezone string
	Location *time.Location
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyDatabaseURL, "studybuddy.db")
	v.SetDefault(KeyWSPort, 8090)
	v.SetDefault(KeyAdminPort, 8091)
	v.SetDefault(KeyReminderInterval, 60)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyTimezone, "UTC")
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeySessionTTL, 120)
	v.SetDefault(KeyMaxTitleLength, 200)
	v.SetDefault(KeyMaxOpenTasks, 50)
	v.SetDefault(KeyPingInterval, 30000)
	v.SetDefault(KeyWriteTimeout, 10000)
	v.SetDefault(KeyReadTimeout, 60000)
	v.SetDefault(KeyMaxMessageSize, 65536)
	v.SetDefault(KeyTurnTimeout, 10000)
	v.SetDefault(KeyChatURL, "ws://localhost:8090/ws")
}

// Load reads defaults, the optional YAML file and the environment, in
// increasing priority, and validates the result.
func Load(v *viper.Viper, file string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:      v.GetString(KeyDatabaseURL),
		WSPort:           v.GetInt(KeyWSPort),
		AdminPort:        v.GetInt(KeyAdminPort),
		ReminderInterval: time.Duration(v.GetInt(KeyReminderInterval)) * time.Minute,
		SessionTTL:       time.Duration(v.GetInt(KeySessionTTL)) * time.Second,
		MaxTitleLength:   v.GetInt(KeyMaxTitleLength),
		MaxOpenTasks:     v.GetInt(KeyMaxOpenTasks),
		TurnTimeout:      time.Duration(v.GetInt(KeyTurnTimeout)) * time.Millisecond,
		APIKey:           v.GetString(KeyAPIKey),
		PingInterval:     time.Duration(v.GetInt(KeyPingInterval)) * time.Millisecond,
		WriteTimeout:     time.Duration(v.GetInt(KeyWriteTimeout)) * time.Millisecond,
		ReadTimeout:      time.Duration(v.GetInt(KeyReadTimeout)) * time.Millisecond,
		MaxMessageSize:   v.GetInt64(KeyMaxMessageSize),
		ChatURL:          v.GetString(KeyChatURL),
		LogLevel:         v.GetString(KeyLogLevel),
		Timezone:         v.GetString(KeyTimezone),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values and resolves Location.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s is required", KeyDatabaseURL)
	}
	if err := reminder.ValidateInterval(c.ReminderInterval); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyReminderInterval, err)
	}
	if _, err := observability.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid %s: %w", KeyLogLevel, err)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", KeyTimezone, err)
	}
	c.Location = loc
	if c.SessionTTL < 0 {
		return fmt.Errorf("%s must not be negative", KeySessionTTL)
	}
	if c.MaxTitleLength < 3 {
		return fmt.Errorf("%s must be at least 3", KeyMaxTitleLength)
	}
	if c.MaxOpenTasks < 0 {
		return fmt.Errorf("%s must not be negative", KeyMaxOpenTasks)
	}
	return nil
}
