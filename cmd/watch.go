package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/smazurov/vcap/internal/devices"
	"github.com/smazurov/vcap/internal/events"
	"github.com/smazurov/vcap/internal/logging"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
)

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print camera hotplug events",
		Long:  `Lists the cameras present at startup as "added", then prints every add and remove until interrupted.`,
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			logger := logging.GetLogger("main")

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus := events.New()
			detector := devices.NewDetector(bus)
			if err := watchDevices(ctx, detector, bus, c.OutOrStdout()); err != nil {
				logger.Error("Device watch failed", "error", err)
				os.Exit(1)
			}
		},
	}
	return cmd
}

type deviceWatcher interface {
	Run(ctx context.Context) error
	Lookup(idOrPath string) (devices.DeviceInfo, bool)
}

// watchDevices prints discovery events from bus until ctx is cancelled.
func watchDevices(ctx context.Context, detector deviceWatcher, bus *events.Bus, w io.Writer) error {
	lines := make(chan string, 16)
	unsubscribe := bus.Subscribe(func(e events.DeviceDiscoveryEvent) {
		line := fmt.Sprintf("%s %-7s %s", e.Timestamp, e.Action, e.Device)
		if e.Name != "" {
			line += fmt.Sprintf(" %q", e.Name)
		}
		if e.DeviceID != "" {
			line += " " + e.DeviceID
		}
		if dev, ok := detector.Lookup(e.Device); ok && dev.Type == v4l2.DeviceTypeHDMI {
			line += " signal=" + v4l2.GetDVTimings(e.Device).State.String()
		}
		select {
		case lines <- line:
		case <-ctx.Done():
		}
	})
	defer unsubscribe()

	errc := make(chan error, 1)
	go func() { errc <- detector.Run(ctx) }()

	for {
		select {
		case line := <-lines:
			fmt.Fprintln(w, line)
		case err := <-errc:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}
