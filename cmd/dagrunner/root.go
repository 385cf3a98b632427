package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dagrunner/dagrunner-go/internal/config"
	"github.com/dagrunner/dagrunner-go/internal/dagrunnerlog"
	"github.com/dagrunner/dagrunner-go/internal/engine"
	"github.com/dagrunner/dagrunner-go/internal/metrics"
	"github.com/dagrunner/dagrunner-go/internal/registry"
)

var terminationSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

func newRootCommand() *cobra.Command {
	v := viper.New()
	config.Defaults(v)
	var configPath string
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "dagrunner",
		Short: "Compile and execute a dependency-driven task graph.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			cfg, err := config.Load(v, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.GraphPath == "" {
				return fmt.Errorf("--graph is required")
			}

			logger := dagrunnerlog.New(os.Stderr)
			if cfg.Verbose {
				logger = dagrunnerlog.NewJSON(os.Stderr)
			}

			reg := registry.New()
			prom := prometheus.NewRegistry()
			recorder := metrics.New(prom)

			if metricsAddr != "" {
				go serveMetrics(metricsAddr, prom, logger)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, terminationSignals...)
			var interrupted atomic.Bool
			go func() {
				<-sig
				interrupted.Store(true)
				cancel()
			}()

			result, runErr := engine.Run(ctx, engine.RunConfig{
				Graph:        cfg.GraphPath,
				Scheduler:    engine.SchedulerKind(cfg.Scheduler),
				NumWorkers:   cfg.NumWorkers,
				DryRun:       cfg.DryRun,
				Verbose:      cfg.Verbose,
				ProfilerPath: cfg.ProfilerPath,
				CommonParams: cfg.CommonParams,
				CachePath:    cfg.CacheDir,
				CacheEnabled: cfg.CacheEnabled,
				PollInterval: cfg.PollInterval,
				Registry:     reg,
				Logger:       logger,
				Metrics:      recorder,
			})

			if interrupted.Load() {
				return errInterrupted
			}
			if runErr != nil {
				return runErr
			}
			traceHash, hashErr := result.Trace.Hash()
			if hashErr != nil {
				traceHash = "unavailable"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s complete: %d tasks, %d skipped, trace %s\n",
				result.RunID, result.Total, result.Skipped, traceHash)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("graph", "", "path to a graph definition, or a dotted-path graph factory")
	flags.String("scheduler", "worker-pool", "scheduler backend: worker-pool, threads, processes, single-threaded")
	flags.Int("num-workers", 4, "number of concurrent workers")
	flags.Bool("dry-run", false, "validate and log without invoking units")
	flags.Bool("verbose", false, "emit structured JSON logs")
	flags.String("profiler-path", "", "write a CPU profile of the run to this path")
	flags.String("cache-dir", ".dagrunner-cache", "artifact cache directory")
	flags.Bool("cache-enabled", true, "enable the cache/skip filter")
	flags.Duration("poll-interval", 500*time.Millisecond, "scheduler poll interval")
	flags.StringVar(&configPath, "config", "", "path to a YAML/JSON config file")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address")

	return cmd
}

// errInterrupted is returned when a termination signal cancelled the run
// before it otherwise would have completed, mapped to exit code 130.
var errInterrupted = fmt.Errorf("interrupted")

func serveMetrics(addr string, reg *prometheus.Registry, logger dagrunnerlog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func run() int {
	cmd := newRootCommand()
	err := cmd.Execute()
	if errors.Is(err, errInterrupted) {
		return exitInterrupted
	}
	return exitCodeFor(err)
}
