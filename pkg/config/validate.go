package config

import (
	"fmt"

	"ChatDash/pkg/errors"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	p := cfg.Probe
	switch p.Mode {
	case ModeTCP:
		if p.Host == "" {
			return invalid("probe.host is empty", "Set the chat server host, e.g. localhost")
		}
		if p.Port < 1 || p.Port > 65535 {
			return invalid(fmt.Sprintf("probe.port %d out of range", p.Port), "Use a port between 1 and 65535")
		}
	case ModeSimulated:
		if p.Probability < 0 || p.Probability > 1 {
			return invalid(fmt.Sprintf("probe.probability %v out of range", p.Probability), "Use a value between 0 and 1")
		}
	case ModePrometheus:
		if p.PrometheusURL == "" {
			return invalid("probe.prometheus_url is empty", "Point it at the Prometheus HTTP API")
		}
	default:
		return invalid(fmt.Sprintf("unknown probe.mode %q", p.Mode), "Use tcp, simulated or prometheus")
	}
	if p.Timeout <= 0 {
		return invalid("probe.timeout must be > 0", "Use a duration such as 5s")
	}

	s := cfg.Sampler
	if s.Interval <= 0 {
		return invalid("sampler.interval must be > 0", "Use a duration such as 2s")
	}
	if s.MessageChance < 0 || s.MessageChance > 1 {
		return invalid(fmt.Sprintf("sampler.message_chance %v out of range", s.MessageChance), "Use a value between 0 and 1")
	}

	srv := cfg.Server
	if srv.Addr == "" {
		return invalid("server.addr is empty", "Use a listen address such as :5001")
	}
	if srv.RateLimit <= 0 || srv.RateBurst < 1 {
		return invalid("server.rate_limit and server.rate_burst must be positive", "")
	}
	switch srv.Source {
	case SourceSampler:
	case SourceRedis:
		if !cfg.Redis.Enabled {
			return invalid("server.source is redis but redis.enabled is false", "Set redis.enabled: true")
		}
	default:
		return invalid(fmt.Sprintf("unknown server.source %q", srv.Source), "Use sampler or redis")
	}

	if cfg.Redis.Enabled {
		if cfg.Redis.Addr == "" {
			return invalid("redis.addr is empty", "Use host:port, e.g. localhost:6379")
		}
		if cfg.Redis.TTL < 0 {
			return invalid("redis.ttl must not be negative", "")
		}
		if cfg.Redis.TTL > 0 && cfg.Redis.TTL <= s.Interval {
			return invalid(
				fmt.Sprintf("redis.ttl %s does not outlast sampler.interval %s", cfg.Redis.TTL, s.Interval),
				"Leave redis.ttl unset to use three sampling intervals")
		}
	}
	return nil
}

func invalid(msg, suggestion string) error {
	return errors.New(errors.ErrConfig, msg, suggestion)
}
