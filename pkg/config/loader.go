package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"

	"ChatDash/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. CHATDASH_PROBE_PORT.
const EnvPrefix = "CHATDASH"

// New returns a viper instance with defaults and environment binding set up.
// Callers may bind flags on it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults mirrors the dashboard's historical hardcoded values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("probe.mode", ModeTCP)
	v.SetDefault("probe.host", "localhost")
	v.SetDefault("probe.port", 8080)
	v.SetDefault("probe.timeout", "5s")
	v.SetDefault("probe.probability", 0.9)
	v.SetDefault("probe.prometheus_url", "http://localhost:9090")
	v.SetDefault("probe.prometheus_query", `up{job="chat-server"}`)

	v.SetDefault("sampler.interval", "2s")
	v.SetDefault("sampler.message_chance", 0.3)
	v.SetDefault("sampler.reset_rooms_offline", false)

	v.SetDefault("server.addr", ":5001")
	v.SetDefault("server.source", SourceSampler)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key", "chatdash:snapshot")
	v.SetDefault("redis.ttl", "0s")
}

// TTLIntervals is how many sampling intervals a published snapshot outlives
// its tick when redis.ttl is unset.
const TTLIntervals = 3

// applyDerived fills settings whose defaults depend on other settings.
func applyDerived(cfg *Config) {
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = TTLIntervals * cfg.Sampler.Interval
	}
}

// Default returns the configuration with no file, env or flags applied.
func Default() *Config {
	cfg, err := decode(viper.New())
	if err != nil {
		// defaults are static; decoding them cannot fail
		panic(err)
	}
	return cfg
}

func decode(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	applyDerived(&cfg)
	return &cfg, nil
}

// Load reads the optional config file at path into v, then decodes and
// validates the merged result.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found: "+path,
					"Check the --config path")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file is valid YAML")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Durations use Go syntax such as 2s or 500ms")
	}
	applyDerived(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
