package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`

	RoomCapacity     int `mapstructure:"room_capacity" yaml:"room_capacity"`
	RoomCodeLength   int `mapstructure:"room_code_length" yaml:"room_code_length"`
	MaxMessageLength int `mapstructure:"max_message_length" yaml:"max_message_length"`
	HistoryLimit     int `mapstructure:"history_limit" yaml:"history_limit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "roomserver.db",
		RoomCapacity:      4,
		RoomCodeLength:    6,
		MaxMessageLength:  200,
		HistoryLimit:      50,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RoomCapacity != 0 {
		c.RoomCapacity = other.RoomCapacity
	}
	if other.RoomCodeLength != 0 {
		c.RoomCodeLength = other.RoomCodeLength
	}
	if other.MaxMessageLength != 0 {
		c.MaxMessageLength = other.MaxMessageLength
	}
	if other.HistoryLimit != 0 {
		c.HistoryLimit = other.HistoryLimit
	}
}
