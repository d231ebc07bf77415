// Package config loads chatdash settings from defaults, an optional YAML
// file, CHATDASH_* environment variables and command-line flags.
package config

import (
	"time"
)

// Probe modes.
const (
	ModeTCP        = "tcp"
	ModeSimulated  = "simulated"
	ModePrometheus = "prometheus"
)

// Snapshot sources for the dashboard.
const (
	SourceSampler = "sampler"
	SourceRedis   = "redis"
)

type Config struct {
	Probe   ProbeConfig   `mapstructure:"probe" yaml:"probe"`
	Sampler SamplerConfig `mapstructure:"sampler" yaml:"sampler"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
}

// ---- PROBE ----

type ProbeConfig struct {
	Mode    string        `mapstructure:"mode" yaml:"mode"`
	Host    string        `mapstructure:"host" yaml:"host"`
	Port    int           `mapstructure:"port" yaml:"port"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// simulated mode
	Probability float64 `mapstructure:"probability" yaml:"probability"`

	// prometheus mode
	PrometheusURL   string `mapstructure:"prometheus_url" yaml:"prometheus_url"`
	PrometheusQuery string `mapstructure:"prometheus_query" yaml:"prometheus_query"`
}

// ---- SAMPLER ----

type SamplerConfig struct {
	Interval          time.Duration `mapstructure:"interval" yaml:"interval"`
	MessageChance     float64       `mapstructure:"message_chance" yaml:"message_chance"`
	ResetRoomsOffline bool          `mapstructure:"reset_rooms_offline" yaml:"reset_rooms_offline"`
}

// ---- SERVER ----

type ServerConfig struct {
	Addr      string  `mapstructure:"addr" yaml:"addr"`
	Source    string  `mapstructure:"source" yaml:"source"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// ---- REDIS ----

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Key      string        `mapstructure:"key" yaml:"key"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.Redis.Password != "" {
		c.Redis.Password = "********"
	}
	return c
}
