package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mpescimoro/wi-finder/internal/config"
	"github.com/mpescimoro/wi-finder/internal/domain"
	"github.com/mpescimoro/wi-finder/internal/engine"
	"github.com/mpescimoro/wi-finder/internal/handler"
	"github.com/mpescimoro/wi-finder/internal/hub"
	"github.com/mpescimoro/wi-finder/internal/metrics"
	"github.com/mpescimoro/wi-finder/internal/notify"
	"github.com/mpescimoro/wi-finder/internal/repository/sqlite"
	"github.com/mpescimoro/wi-finder/internal/scanner"
	"github.com/mpescimoro/wi-finder/internal/watcher"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	network := flag.String("network", "", "CIDR to scan, overrides config (empty = autodetect)")
	panicMode := flag.Bool("panic", false, "force panic mode on regardless of config")
	quiet := flag.Bool("quiet", false, "do not print presence changes to stdout")
	flag.Parse()

	if err := run(*configPath, *network, *panicMode, *quiet); err != nil {
		fmt.Fprintf(os.Stderr, "wifinder: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, networkFlag string, panicMode, quiet bool) error {
	var (
		cfg     *config.Config
		cfgPath string
		err     error
	)
	if configPath != "" {
		cfg, cfgPath, err = config.LoadFromPath(configPath)
	} else {
		cfg, cfgPath, err = config.Load()
	}
	if err != nil {
		return err
	}

	if panicMode {
		cfg.Panic.Enabled = true
	}

	log := newLogger(cfg.LogLevel)
	if cfgPath != "" {
		log.Info().Str("path", cfgPath).Msg("loaded config")
	} else {
		log.Info().Msg("no config file found, using defaults")
	}

	if err := config.EnsureConfigDir(cfg.Database.Path); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}
	repo, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repo.Close()
	log.Info().Str("path", cfg.Database.Path).Msg("database opened")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	network := networkFlag
	if network == "" {
		network = cfg.Network
	}
	if network == "" {
		network = scanner.DetectNetwork()
		log.Info().Str("network", network).Msg("autodetected network")
	}

	source := scanner.NewNmapSource(network, log)
	if !source.Available(ctx) {
		return fmt.Errorf("nmap is not available; install it and ensure it can run with raw socket privileges")
	}

	m := metrics.New()
	eng := engine.New(repo, cfg.DeviceTTL.Duration(), log, m)

	channels := notify.BuildChannels(cfg, log)
	policy := notify.NewPolicy(cfg, channels, log, m)
	var channelsMu sync.Mutex
	defer func() {
		channelsMu.Lock()
		notify.CloseChannels(channels)
		channelsMu.Unlock()
	}()

	sseHub := hub.New(log)
	go sseHub.Run()

	w := watcher.New(source, eng, policy, sseHub, cfg.Interval.Duration(), log, m)
	if !quiet {
		w.WithObserver(printChange)
	}

	// Config hot reload: TTL, interval and notification settings apply
	// live; network and database changes need a restart.
	if cfgPath != "" {
		cfgWatcher := config.NewWatcher(cfgPath, log, func(newCfg *config.Config) {
			if panicMode {
				newCfg.Panic.Enabled = true
			}
			eng.SetTTL(newCfg.DeviceTTL.Duration())
			w.SetInterval(newCfg.Interval.Duration())

			newChannels := notify.BuildChannels(newCfg, log)
			policy.SetConfig(newCfg, newChannels)

			channelsMu.Lock()
			old := channels
			channels = newChannels
			channelsMu.Unlock()
			notify.CloseChannels(old)
		})
		go func() {
			if err := cfgWatcher.Watch(ctx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Msg("config watcher stopped")
			}
		}()
	}

	var server *http.Server
	if cfg.Web.Enabled {
		api := handler.New(log, repo, eng, sseHub, m)
		server = &http.Server{
			Addr:              cfg.Web.Listen,
			Handler:           api.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Web.Listen).Msg("dashboard API listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server failed")
				stop()
			}
		}()
	}

	log.Info().
		Str("network", network).
		Dur("interval", cfg.Interval.Duration()).
		Dur("device_ttl", cfg.DeviceTTL.Duration()).
		Bool("panic", cfg.Panic.Enabled).
		Msg("wifinder starting")

	w.Run(ctx)
	sseHub.Shutdown()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("http server shutdown")
		}
	}

	log.Info().Msg("wifinder stopped")
	return nil
}

// printChange writes one presence change to stdout, the watch-mode console
// output.
func printChange(c domain.PresenceChange) {
	ts := time.Now().Format("15:04:05")
	switch c.Kind {
	case domain.ChangeNew:
		fmt.Printf("[%s] NEW      %s (%s) %s\n", ts, c.Device.MAC, c.Device.Vendor, c.Device.IP)
	case domain.ChangeArrived:
		fmt.Printf("[%s] ARRIVED  %s\n", ts, c.Device.DisplayName())
	case domain.ChangeLeft:
		fmt.Printf("[%s] LEFT     %s\n", ts, c.Device.DisplayName())
	}
}

func newLogger(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(parseLevel(level))

	return zerolog.New(os.Stderr).With().Timestamp().Str("service", "wifinder").Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
