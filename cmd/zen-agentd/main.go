package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/vistralis/zen/cmd/zen-agentd/internal/metrics"
	"github.com/vistralis/zen/cmd/zen-agentd/internal/server"
	"github.com/vistralis/zen/internal/health"
	"github.com/vistralis/zen/internal/installer"
	"github.com/vistralis/zen/internal/registry"
	"github.com/vistralis/zen/internal/scanner"
	"github.com/vistralis/zen/internal/zenconfig"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultMetricsAddr    = "0.0.0.0:8081"
	defaultInstallCommand = "pip"
	defaultScanCacheSize  = 1 << 16
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	configDirFlag := flag.String("config-dir", "", "override the Zen config directory (defaults to ~/.config/zen)")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "address to listen on for prometheus metrics, empty to disable")
	installCommandFlag := flag.String("install-command", defaultInstallCommand, "external package installer executable to delegate to")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := newLogger(*verboseFlag)

	var metricsServerErrCh = make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	zcfg, err := zenconfig.Load()
	if err != nil {
		return fmt.Errorf("failed to resolve zen config: %w", err)
	}
	if *configDirFlag != "" {
		zcfg.ConfigDir = *configDirFlag
	}
	if _, err := zcfg.EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	store, err := registry.New(registry.Config{Logger: log, Path: zcfg.DBPath()})
	if err != nil {
		return fmt.Errorf("failed to open registry: %w", err)
	}
	defer store.Close()

	cache, err := scanner.NewCache(defaultScanCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create scan cache: %w", err)
	}
	timedScanner := &instrumentedScanner{cache: cache}

	srv, err := server.New(server.Config{
		Logger:    log,
		Clock:     clockwork.NewRealClock(),
		Store:     store,
		Checker:   health.NewChecker(timedScanner),
		Scanner:   timedScanner,
		Installer: installer.New(*installCommandFlag),
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.Run(ctx); err != nil {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-metricsServerErrCh:
		return err
	}
}

// instrumentedScanner wraps *scanner.Cache to observe scan latency without
// the health/tools packages depending on Prometheus directly.
type instrumentedScanner struct {
	cache *scanner.Cache
}

func (s *instrumentedScanner) Scan(envRoot string) []scanner.Package {
	start := time.Now()
	defer func() { metrics.ScanDuration.Observe(time.Since(start).Seconds()) }()
	return s.cache.Scan(envRoot)
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	// stdout carries the MCP JSON-RPC stream over stdio; logs go to stderr.
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
