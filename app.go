package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/yaml.v3"

	"ChatDash/pkg/config"
	"ChatDash/pkg/dashboard"
	"ChatDash/pkg/errors"
	"ChatDash/pkg/health"
	"ChatDash/pkg/logger"
	"ChatDash/pkg/metrics"
	"ChatDash/pkg/ratelimit"
	"ChatDash/pkg/stats"
	"ChatDash/pkg/store"
)

// buildProber selects the reachability check for cfg.Probe.Mode.
func buildProber(cfg config.ProbeConfig) (health.Prober, error) {
	log := logger.New("[probe]")
	switch cfg.Mode {
	case config.ModeTCP:
		return health.NewTCPProber(cfg.Host, cfg.Port, cfg.Timeout, log), nil
	case config.ModeSimulated:
		return health.NewSimulatedProber(cfg.Probability, 0), nil
	case config.ModePrometheus:
		p, err := health.NewPrometheusProber(cfg.PrometheusURL, cfg.PrometheusQuery, log)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrProbe,
				"Cannot create Prometheus client",
				"Check probe.prometheus_url")
		}
		return p, nil
	}
	return nil, errors.New(errors.ErrProbe, "unknown probe mode "+cfg.Mode, "")
}

func buildSampler(cfg *config.Config, prober health.Prober, extra ...stats.Option) *stats.Sampler {
	opts := []stats.Option{
		stats.WithInterval(cfg.Sampler.Interval),
		stats.WithMessageChance(cfg.Sampler.MessageChance),
		stats.WithResetRoomsOffline(cfg.Sampler.ResetRoomsOffline),
		stats.WithLogger(logger.New("[sampler]")),
	}
	return stats.NewSampler(prober, append(opts, extra...)...)
}

func dialRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, *store.RedisStore, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rdb, err := store.Dial(dialCtx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.ErrStore,
			"Cannot connect to redis",
			"Check redis.addr or run without --redis")
	}
	return rdb, store.NewRedisStore(rdb, cfg.Key, cfg.TTL), nil
}

// serve runs the sampler (unless the dashboard reads from redis) and the
// HTTP dashboard until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New("[chatdash]")
	reg := prometheus.NewRegistry()

	var redisStore *store.RedisStore
	if cfg.Redis.Enabled {
		rdb, rs, err := dialRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		redisStore = rs
	}

	var source dashboard.SnapshotSource
	if cfg.Server.Source == config.SourceRedis {
		log.Info("serving snapshots from redis %s key %s", cfg.Redis.Addr, redisStore.Key)
		source = redisStore
	} else {
		prober, err := buildProber(cfg.Probe)
		if err != nil {
			return err
		}
		recorder, err := metrics.NewRecorder(reg)
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrServer, "Cannot register metrics", "")
		}
		publishers := []stats.Publisher{recorder}
		if redisStore != nil {
			publishers = append(publishers, redisStore)
		}

		sampler := buildSampler(cfg, prober,
			stats.WithPublishers(publishers...),
			stats.WithPanicHook(recorder.ObservePanic),
		)
		if err := sampler.Start(ctx); err != nil {
			return err
		}
		defer stopSampler(sampler, log)
		log.Info("monitoring chat server via %s probe (%s:%d)", cfg.Probe.Mode, cfg.Probe.Host, cfg.Probe.Port)
		source = sampler
	}

	srv, err := dashboard.NewServer(cfg.Server.Addr, source,
		dashboard.WithLogger(logger.New("[http]")),
		dashboard.WithLimiter(ratelimit.NewLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)),
		dashboard.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		dashboard.WithRefresh(cfg.Sampler.Interval),
	)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrServer, "Cannot build dashboard", "")
	}

	if err := srv.Run(ctx); err != nil {
		return errors.WrapWithCode(err, errors.ErrServer,
			"Dashboard server failed",
			"Check that "+cfg.Server.Addr+" is free")
	}
	return nil
}

// watch prints a one-line summary every second, like a terminal monitor.
func watch(ctx context.Context, cfg *config.Config, out io.Writer) error {
	prober, err := buildProber(cfg.Probe)
	if err != nil {
		return err
	}
	sampler := buildSampler(cfg, prober)
	if err := sampler.Start(ctx); err != nil {
		return err
	}
	defer stopSampler(sampler, logger.New("[chatdash]"))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case <-ticker.C:
			fmt.Fprint(out, statusLine(sampler.Snapshot()))
		}
	}
}

// stopSampler stops s and logs a loop that outlived the join timeout.
func stopSampler(s *stats.Sampler, log logger.Logger) {
	if err := s.Stop(); err != nil {
		log.Warn("sampler did not stop cleanly: %v", err)
	}
}

func statusLine(s stats.Snapshot) string {
	return fmt.Sprintf("\rActive clients: %d | Messages/min: %d | Status: %s",
		s.ActiveClientCount, s.MessagesPerMinute, s.Status)
}

func printConfig(out io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return err
	}
	return enc.Close()
}
