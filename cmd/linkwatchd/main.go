// Linkwatch daemon -- LLDP link-liveness and loop-detection engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/nettrail/linkwatch/internal/api"
	"github.com/nettrail/linkwatch/internal/config"
	"github.com/nettrail/linkwatch/internal/event"
	"github.com/nettrail/linkwatch/internal/liveness"
	"github.com/nettrail/linkwatch/internal/loop"
	lwmetrics "github.com/nettrail/linkwatch/internal/metrics"
	"github.com/nettrail/linkwatch/internal/store"
	"github.com/nettrail/linkwatch/internal/topoapi"
	"github.com/nettrail/linkwatch/internal/topology"
	appversion "github.com/nettrail/linkwatch/internal/version"
)

// shutdownTimeout is the maximum time to wait for HTTP servers to drain
// active connections during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// 1. Parse flags.
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	// 2. Load config.
	cfg, err := loadConfig(*configPath)
	if err != nil {
		// Logger is not set up yet; use a temporary stderr logger.
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	// 3. Set up logger with dynamic level support for SIGHUP reload.
	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("linkwatchd starting",
		slog.String("version", appversion.Version),
		slog.String("api_addr", cfg.API.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
	)

	// 4. Open the enablement store.
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		logger.Error("failed to open store",
			slog.String("path", cfg.Store.Path),
			slog.String("error", err.Error()),
		)
		return 1
	}
	defer st.Close()

	// 5. Run the engines and servers.
	if err := runDaemon(cfg, st, logger, *configPath, logLevel); err != nil {
		logger.Error("linkwatchd exited with error",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logger.Info("linkwatchd stopped")
	return 0
}

// runDaemon wires the engines together and runs the servers, the
// dispatch loop, and the poller under an errgroup with a signal-aware
// context.
func runDaemon(
	cfg *config.Config,
	st *store.Store,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	reg := prometheus.NewRegistry()
	collector := lwmetrics.NewCollector(reg)

	registry := topology.NewRegistry()
	bus := event.NewBus(logger)
	defer bus.Close()

	control := topoapi.NewClient(cfg.Topology.URL)

	live, err := liveness.NewManager(cfg.Liveness.MinHellos, bus, logger,
		liveness.WithMetrics(collector),
	)
	if err != nil {
		return fmt.Errorf("create liveness manager: %w", err)
	}

	loops, err := loop.NewManager(loop.Config{
		Actions:         cfg.Loop.Actions,
		StoppedInterval: cfg.LoopStoppedInterval(),
		LogEvery:        cfg.Loop.LogEvery,
		IgnoredLoops:    ignoredPairs(cfg.Loop.Ignored),
	}, registry, bus, control, logger,
		loop.WithMetrics(collector),
	)
	if err != nil {
		return fmt.Errorf("create loop manager: %w", err)
	}

	pol := newPoller(cfg.LLDP.PollingTime)

	restSrv := newAPIServer(cfg.API,
		api.New(registry, live, loops, st, bus, pol, logger).Handler())
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	// errgroup with signal-aware context.
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Dispatch loop: subscribe before anything can publish.
	events := bus.Subscribe()
	g.Go(func() error {
		return runDispatch(gCtx, events, live, loops, registry, logger)
	})

	// Periodic tick: liveness reaper + stopped-loop sweep. The dead
	// interval tracks the live polling interval so a runtime cadence
	// change rescales the timeout window too.
	deadMult := time.Duration(cfg.Liveness.DeadMultiplier)
	g.Go(func() error {
		return pol.run(gCtx, func() {
			live.Reaper(pol.Interval() * deadMult)
			loops.PublishStoppedLoops()
		})
	})

	startHTTPServers(gCtx, g, cfg, restSrv, metricsSrv, logger)
	startDaemonGoroutines(gCtx, g, configPath, logLevel, pol, logger)

	notifyReady(logger)

	// Shutdown goroutine: waits for context cancellation.
	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, logger, restSrv, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run daemon: %w", err)
	}
	return nil
}

// ignoredPairs converts the config ignore map into loop port pairs.
func ignoredPairs(ignored map[string][][]int) map[string][]loop.PortPair {
	if len(ignored) == 0 {
		return nil
	}
	out := make(map[string][]loop.PortPair, len(ignored))
	for dpid, pairs := range ignored {
		for _, pair := range pairs {
			if len(pair) != 2 {
				continue
			}
			out[dpid] = append(out[dpid], loop.PortPair{A: pair[0], B: pair[1]})
		}
	}
	return out
}

// startHTTPServers registers the REST and metrics HTTP server goroutines.
func startHTTPServers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	restSrv *http.Server,
	metricsSrv *http.Server,
	logger *slog.Logger,
) {
	lc := net.ListenConfig{}

	g.Go(func() error {
		logger.Info("api server listening", slog.String("addr", cfg.API.Addr))
		return listenAndServe(ctx, &lc, restSrv, cfg.API.Addr)
	})

	g.Go(func() error {
		logger.Info("metrics server listening",
			slog.String("addr", cfg.Metrics.Addr),
			slog.String("path", cfg.Metrics.Path),
		)
		return listenAndServe(ctx, &lc, metricsSrv, cfg.Metrics.Addr)
	})
}

// startDaemonGoroutines registers the watchdog and SIGHUP reload goroutines.
func startDaemonGoroutines(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	pol *poller,
	logger *slog.Logger,
) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, pol, logger)
		return nil
	})
}

// -------------------------------------------------------------------------
// Systemd Integration: sd_notify and watchdog
// -------------------------------------------------------------------------

// notifyReady sends READY=1 to systemd, indicating the daemon has
// completed initialization and is ready to serve.
func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness",
			slog.String("error", err.Error()),
		)
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

// notifyStopping sends STOPPING=1 to systemd, indicating the daemon
// is beginning graceful shutdown.
func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping",
			slog.String("error", err.Error()),
		)
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd.
// The interval is WatchdogSec/2 as recommended by the systemd documentation.
// If watchdog is not configured, the goroutine exits immediately.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	// Send keepalive at half the watchdog interval.
	tickInterval := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tickInterval),
	)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, wdErr := daemon.SdNotify(false, daemon.SdNotifyWatchdog); wdErr != nil {
				logger.Warn("failed to send watchdog keepalive",
					slog.String("error", wdErr.Error()),
				)
			}
		}
	}
}

// -------------------------------------------------------------------------
// SIGHUP Reload: log level and polling interval
// -------------------------------------------------------------------------

// handleSIGHUP listens for SIGHUP signals and reloads configuration.
// On reload, the log level and the polling interval are updated; the
// rest of the configuration requires a restart.
// Blocks until the context is cancelled (graceful shutdown).
func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	pol *poller,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			reloadConfig(configPath, logLevel, pol, logger)
		}
	}
}

// reloadConfig loads a fresh configuration from the given path and
// applies the runtime-adjustable settings. Errors during reload are
// logged but do not stop the daemon -- the previous configuration
// remains in effect.
func reloadConfig(
	configPath string,
	logLevel *slog.LevelVar,
	pol *poller,
	logger *slog.Logger,
) {
	newCfg, err := loadConfig(configPath)
	if err != nil {
		logger.Error("failed to reload configuration, keeping current settings",
			slog.String("error", err.Error()),
		)
		return
	}

	// Update log level.
	oldLevel := logLevel.Level()
	newLevel := config.ParseLogLevel(newCfg.Log.Level)
	logLevel.Set(newLevel)

	// Update polling interval.
	if err := pol.SetInterval(newCfg.LLDP.PollingTime); err != nil {
		logger.Error("failed to apply reloaded polling time",
			slog.String("error", err.Error()),
		)
	}

	logger.Info("configuration reloaded",
		slog.String("old_log_level", oldLevel.String()),
		slog.String("new_log_level", newLevel.String()),
		slog.Duration("polling_time", newCfg.LLDP.PollingTime),
	)
}

// -------------------------------------------------------------------------
// Graceful Shutdown
// -------------------------------------------------------------------------

// gracefulShutdown performs an orderly shutdown: signals systemd, then
// shuts down the HTTP servers.
//
// The parent context is already cancelled when this function is called.
// A fresh timeout context is created internally for server drain.
func gracefulShutdown(
	ctx context.Context,
	logger *slog.Logger,
	servers ...*http.Server,
) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	// Derive a fresh shutdown context from the parent (which is cancelled).
	// context.WithoutCancel detaches from the parent's cancellation so we
	// can enforce our own drain timeout.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var shutdownErr error
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("shutdown server: %w", err))
		}
	}
	return shutdownErr
}

// -------------------------------------------------------------------------
// Server Setup
// -------------------------------------------------------------------------

// listenAndServe creates a TCP listener using the ListenConfig and serves
// HTTP requests until the server is shut down.
func listenAndServe(ctx context.Context, lc *net.ListenConfig, srv *http.Server, addr string) error {
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// newMetricsServer creates an HTTP server for the Prometheus metrics endpoint.
func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// newAPIServer creates the REST HTTP server. The handler is wrapped with
// h2c so HTTP/2 clients can connect over plaintext.
func newAPIServer(cfg config.APIConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// loadConfig loads configuration from a file path or returns defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

// newLoggerWithLevel creates a structured logger using a shared LevelVar
// for dynamic log level changes via SIGHUP reload.
func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: level})
	default:
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}
