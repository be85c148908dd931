package config

import (
	"strings"
	"time"
)

const (
	// EnvironmentDevelopment enables the local backend fallback when no server URL is configured.
	EnvironmentDevelopment = "development"
	// EnvironmentProduction requires an explicit server URL.
	EnvironmentProduction = "production"

	// DefaultDevServerURL is dialed in development when server_url is empty.
	DefaultDevServerURL = "ws://localhost:8080/ws"

	// DefaultNoticeTTL is how long a live admin notice stays pinned.
	DefaultNoticeTTL = 10 * time.Second
)

// Config holds the whole application configuration.
type Config struct {
	LogLevel string       `mapstructure:"log_level" yaml:"log_level"`
	Client   ClientConfig `mapstructure:"client" yaml:"client"`
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
}

// ClientConfig configures the chat widget.
type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	Environment    string        `mapstructure:"environment" yaml:"environment"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	NoticeTTL      time.Duration `mapstructure:"notice_ttl" yaml:"notice_ttl"`
	HistoryLimit   int           `mapstructure:"history_limit" yaml:"history_limit"`
	SettingsPath   string        `mapstructure:"settings_path" yaml:"settings_path"`
}

// ServerConfig configures the development backend.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience       string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	TokenTTL          time.Duration `mapstructure:"token_ttl" yaml:"token_ttl"`
	HistoryLimit      int           `mapstructure:"history_limit" yaml:"history_limit"`
	MaxMessageBytes   int64         `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	MessagesPerMinute int           `mapstructure:"messages_per_minute" yaml:"messages_per_minute"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		LogLevel: "info",
		Client: ClientConfig{
			Environment:    EnvironmentDevelopment,
			ConnectTimeout: 10 * time.Second,
			ReconnectDelay: time.Second,
			NoticeTTL:      DefaultNoticeTTL,
			HistoryLimit:   50,
			SettingsPath:   "chat-settings.yaml",
		},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   5 * time.Second,
			DatabasePath:      "wirechat.db",
			JWTSecret:         "change-me",
			JWTIssuer:         "wirechat",
			JWTAudience:       "wirechat-widget",
			TokenTTL:          24 * time.Hour,
			HistoryLimit:      50,
			MaxMessageBytes:   1 << 16,
			MessagesPerMinute: 30,
		},
	}
}

// IsDevelopment reports whether the widget runs against a local backend.
func (c ClientConfig) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), EnvironmentDevelopment)
}

// Reachable decides whether a chat backend can be dialed at all.
// It must be evaluated before any connection attempt.
func (c ClientConfig) Reachable() bool {
	return c.Endpoint() != ""
}

// Endpoint returns the websocket URL to dial, or "" when chat is unavailable.
func (c ClientConfig) Endpoint() string {
	if u := strings.TrimSpace(c.ServerURL); u != "" {
		return u
	}
	if c.IsDevelopment() {
		return DefaultDevServerURL
	}
	return ""
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	c.Client.updateFrom(other.Client)
	c.Server.updateFrom(other.Server)
}

func (c *ClientConfig) updateFrom(other ClientConfig) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.Environment != "" {
		c.Environment = other.Environment
	}
	if other.ConnectTimeout != 0 {
		c.ConnectTimeout = other.ConnectTimeout
	}
	if other.ReconnectDelay != 0 {
		c.ReconnectDelay = other.ReconnectDelay
	}
	if other.NoticeTTL != 0 {
		c.NoticeTTL = other.NoticeTTL
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.SettingsPath != "" {
		c.SettingsPath = other.SettingsPath
	}
}

func (c *ServerConfig) updateFrom(other ServerConfig) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.TokenTTL != 0 {
		c.TokenTTL = other.TokenTTL
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
	if other.MaxMessageBytes != 0 {
		c.MaxMessageBytes = other.MaxMessageBytes
	}
	if other.MessagesPerMinute != 0 {
		c.MessagesPerMinute = other.MessagesPerMinute
	}
}
