// Package server provides configuration helpers that define runtime defaults,
// validation, and environment loading for the relay service.
package server

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/linerelay/internal/relay"
)

// Config holds the service configuration: listener addresses, relay limits
// and WebSocket security controls.
type Config struct {
	// RelayAddr is the TCP address of the plain line relay.
	RelayAddr string
	// HTTPAddr enables the WebSocket gateway when not empty.
	HTTPAddr string
	// QUICAddr enables the QUIC listener when not empty.
	QUICAddr string
	// TLSCertFile and TLSKeyFile hold the QUIC certificate. A self-signed
	// certificate is generated when either is empty.
	TLSCertFile string
	TLSKeyFile  string

	AllowedOrigins   []string
	MaxLineLength    int
	SubscriberBuffer int
	WriteTimeout     time.Duration

	SocketSendBuffer int
	SocketRecvBuffer int

	LogLevel slog.Level
}

func defaultConfig() Config {
	return Config{
		RelayAddr: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8081",
		},
		MaxLineLength:    relay.DefaultMaxLineLength,
		SubscriberBuffer: relay.DefaultSubscriberBuffer,
		WriteTimeout:     10 * time.Second,
		LogLevel:         slog.LevelInfo,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.RelayAddr == "" {
		cfg.RelayAddr = ":8080"
	}

	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = relay.DefaultMaxLineLength
	}

	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = relay.DefaultSubscriberBuffer
	}

	if cfg.WriteTimeout < 0 {
		cfg.WriteTimeout = 0
	}

	if cfg.SocketSendBuffer < 0 {
		cfg.SocketSendBuffer = 0
	}

	if cfg.SocketRecvBuffer < 0 {
		cfg.SocketRecvBuffer = 0
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set or invalid.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr, ok := os.LookupEnv("RELAY_ADDR"); ok && addr != "" {
		cfg.RelayAddr = addr
	}

	if addr, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = strings.TrimSpace(addr)
	}

	if addr, ok := os.LookupEnv("QUIC_ADDR"); ok {
		cfg.QUICAddr = strings.TrimSpace(addr)
	}

	cfg.TLSCertFile = os.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = os.Getenv("TLS_KEY_FILE")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxLen := os.Getenv("MAX_LINE_LENGTH"); maxLen != "" {
		cfg.MaxLineLength = parseIntValue(maxLen, cfg.MaxLineLength)
	}

	if buffer := os.Getenv("SUBSCRIBER_BUFFER"); buffer != "" {
		cfg.SubscriberBuffer = parseIntValue(buffer, cfg.SubscriberBuffer)
	}

	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseSeconds(timeout, cfg.WriteTimeout)
	}

	if size := os.Getenv("SOCKET_SEND_BUFFER"); size != "" {
		cfg.SocketSendBuffer = parseIntValue(size, cfg.SocketSendBuffer)
	}

	if size := os.Getenv("SOCKET_RECV_BUFFER"); size != "" {
		cfg.SocketRecvBuffer = parseIntValue(size, cfg.SocketRecvBuffer)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = parseLogLevel(level, cfg.LogLevel)
	}

	sanitized := sanitizeConfig(cfg)
	return &sanitized
}

// RelayOptions returns the per-connection options derived from the config.
func (c *Config) RelayOptions(logger *slog.Logger) relay.Options {
	return relay.Options{
		MaxLineLength: c.MaxLineLength,
		WriteTimeout:  c.WriteTimeout,
		Logger:        logger,
	}
}

// SocketOptions returns the listening socket tuning derived from the config.
func (c *Config) SocketOptions() relay.SocketOptions {
	return relay.SocketOptions{
		SendBuffer: c.SocketSendBuffer,
		RecvBuffer: c.SocketRecvBuffer,
	}
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseSeconds accepts a whole number of seconds; 0 disables the timeout.
func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseLogLevel(value string, defaultValue slog.Level) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return defaultValue
	}
	return level
}
