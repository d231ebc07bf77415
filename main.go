package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ChatDash/pkg/config"
)

// Version info set via ldflags at build time:
//
//	go build -ldflags "-X main.version=1.0.0"
var version = "dev"

var (
	configPath string
	v          = config.New()
)

var rootCmd = &cobra.Command{
	Use:   "chatdash",
	Short: "Dashboard for a chat server's (simulated) statistics",
	Long: `chatdash checks whether a chat server accepts TCP connections and shows
a dashboard of client, room and message statistics.

Only the Online/Offline status is real. Client counts, rooms, names and
message rates are randomly generated while the server is reachable.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sampler and the web dashboard",
	Long: `Run the sampling loop and serve the dashboard.

Examples:
  chatdash serve
  chatdash serve --host chat.local --port 8080 --addr :5001
  chatdash serve --redis --source redis   # read snapshots published by another process`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, configPath)
		if err != nil {
			return err
		}
		return serve(cmd.Context(), cfg)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the latest snapshot once a second without serving HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, configPath)
		if err != nil {
			return err
		}
		return watch(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, configPath)
		if err != nil {
			return err
		}
		return printConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "path to a YAML config file")
	pf.String("mode", "", "probe mode: tcp, simulated or prometheus")
	pf.String("host", "", "chat server host")
	pf.Int("port", 0, "chat server port")
	pf.Duration("interval", 0, "sampling interval")
	pf.String("addr", "", "dashboard listen address")
	pf.String("source", "", "snapshot source for the dashboard: sampler or redis")
	pf.Bool("redis", false, "publish snapshots to redis")
	pf.String("redis-addr", "", "redis address")

	bindFlag(v, "probe.mode", "mode")
	bindFlag(v, "probe.host", "host")
	bindFlag(v, "probe.port", "port")
	bindFlag(v, "sampler.interval", "interval")
	bindFlag(v, "server.addr", "addr")
	bindFlag(v, "server.source", "source")
	bindFlag(v, "redis.enabled", "redis")
	bindFlag(v, "redis.addr", "redis-addr")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

// bindFlag binds a persistent flag to a viper key. Unset flags leave the
// default, file or env value in place.
func bindFlag(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
