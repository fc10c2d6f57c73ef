package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/vcap/cmd"
	"github.com/smazurov/vcap/internal/api"
	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/config"
	"github.com/smazurov/vcap/internal/devices"
	"github.com/smazurov/vcap/internal/events"
	"github.com/smazurov/vcap/internal/logging"
	"github.com/smazurov/vcap/internal/metrics"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"vcap.toml"`

	// Server settings
	Port            string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`
	SnapshotTimeout string `help:"Snapshot request timeout" default:"10s" toml:"server.snapshot_timeout" env:"SERVER_SNAPSHOT_TIMEOUT"`

	// Auth settings; empty disables auth
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Capture settings
	CaptureWarmUp        string `help:"Delay after starting a stream before the first grab" default:"500ms" toml:"capture.warm_up" env:"CAPTURE_WARM_UP"`
	CaptureGrabTimeout   string `help:"Per-frame grab timeout" default:"5s" toml:"capture.grab_timeout" env:"CAPTURE_GRAB_TIMEOUT"`
	CaptureMaxFrameBytes int    `help:"Largest decoded frame accepted, 0 for no limit" default:"0" toml:"capture.max_frame_bytes" env:"CAPTURE_MAX_FRAME_BYTES"`

	// Profiles settings
	ProfilesFile string `help:"Camera profiles file" default:"profiles.toml" toml:"profiles.file" env:"PROFILES_FILE"`

	// Device settings
	DevicesPollInterval string `help:"Device rescan interval when hotplug events are unavailable" default:"5s" toml:"devices.poll_interval" env:"DEVICES_POLL_INTERVAL"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings; per-module levels come from the [logging] table
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

func duration(logger *slog.Logger, name, value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("Invalid duration, using default", "setting", name, "value", value, "default", fallback)
		return fallback
	}
	return d
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		loggingConfig := config.LoadLoggingConfig(opts.Config)
		loggingConfig.Level = opts.LoggingLevel
		loggingConfig.Format = opts.LoggingFormat
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		eventBus := events.New()

		profiles := config.NewProfileStore(opts.ProfilesFile)
		if loadErr := profiles.Load(); loadErr != nil {
			logger.Warn("Failed to load profiles", "error", loadErr, "path", opts.ProfilesFile)
		}

		detector := devices.NewDetector(eventBus,
			devices.WithPollInterval(duration(logger, "devices.poll_interval", opts.DevicesPollInterval, 5*time.Second)),
		)

		manager := capture.NewManager(capture.Options{
			WarmUp:        duration(logger, "capture.warm_up", opts.CaptureWarmUp, 500*time.Millisecond),
			GrabTimeout:   duration(logger, "capture.grab_timeout", opts.CaptureGrabTimeout, 5*time.Second),
			MaxFrameBytes: opts.CaptureMaxFrameBytes,
		}, eventBus,
			capture.WithProfiles(profiles),
			capture.WithDeviceIDs(func(path string) string {
				dev, _ := detector.Lookup(path)
				return dev.DeviceID
			}),
		)

		// Unplugged cameras leave a dead fd behind; drop the session so the
		// next request reopens the node.
		detector.OnRemove(func(dev devices.DeviceInfo) {
			if releaseErr := manager.Release(dev.DevicePath); releaseErr != nil {
				logger.Warn("Failed to release capture session", "device", dev.DevicePath, "error", releaseErr)
			}
		})

		watcher := config.NewConfigWatcher(
			opts.ProfilesFile,
			config.LoadProfiles,
			logging.GetLogger("config"),
		)
		watcher.OnReload(func(p config.Profiles) {
			profiles.Replace(p)
			manager.ApplyProfiles(context.Background(), p)
		})

		apiOpts := &api.Options{
			AuthUsername:    opts.AuthUsername,
			AuthPassword:    opts.AuthPassword,
			SnapshotTimeout: duration(logger, "server.snapshot_timeout", opts.SnapshotTimeout, 10*time.Second),
			Manager:         manager,
			Detector:        detector,
			Profiles:        profiles,
			EventBus:        eventBus,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = metrics.Handler()
		}
		server := api.NewServer(apiOpts)

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			go func() {
				if runErr := detector.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
					logger.Error("Device detector stopped", "error", runErr)
				}
			}()

			if startErr := watcher.Start(); startErr != nil {
				logger.Warn("Failed to start profile watcher, hot-reload disabled", "error", startErr)
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()

			if stopErr := server.Stop(shutdownCtx); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			cancel()
			_ = watcher.Stop()

			if closeErr := manager.Close(); closeErr != nil {
				logger.Error("Error closing capture sessions", "error", closeErr)
			}
		})
	})

	cli.Root().Use = "vcap"
	cli.Root().Short = "Capture, decode and configure V4L2 cameras"
	cli.Root().AddCommand(
		cmd.CreateInfoCmd(),
		cmd.CreateGrabCmd(),
		cmd.CreatePNGCmd(),
		cmd.CreatePGMCmd(),
		cmd.CreateWatchCmd(),
	)

	cli.Run()
}
