package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/logging"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
)

const separator = "------------------------------------------------------------"

// CreateInfoCmd creates the info command.
func CreateInfoCmd() *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print camera formats, frame sizes, frame rates and controls",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			logger := logging.GetLogger("main")

			paths, err := cameraPaths(device)
			if err != nil {
				logger.Error("Failed to find cameras", "error", err)
				os.Exit(1)
			}

			out := c.OutOrStdout()
			fmt.Fprintln(out, separator)
			for _, path := range paths {
				if err := writeCameraInfo(out, newDevice(path)); err != nil {
					logger.Error("Failed to query camera", "device", path, "error", err)
					os.Exit(1)
				}
				fmt.Fprintln(out, separator)
			}
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "Device path or stable ID (default: all cameras)")
	return cmd
}

// describer is the part of a camera the info command reads.
type describer interface {
	Device() string
	Info() v4l2.DeviceInfo
	Open() error
	Close() error
	Formats() ([]v4l2.FormatInfo, error)
	FrameRates(f v4l2.Format) ([]v4l2.Framerate, error)
	Controls() ([]v4l2.ControlInfo, error)
}

var _ describer = capture.Device(nil)

// writeCameraInfo opens dev, describes it and closes it again.
func writeCameraInfo(w io.Writer, dev describer) (err error) {
	if err := dev.Open(); err != nil {
		return err
	}
	defer func() {
		if closeErr := dev.Close(); err == nil {
			err = closeErr
		}
	}()

	info := dev.Info()
	fmt.Fprintf(w, "Device: %s\n", dev.Device())
	fmt.Fprintf(w, "Driver: %s\n", info.Driver)
	fmt.Fprintf(w, "Info: %s (%s)\n", info.DeviceName, info.BusInfo)

	formats, err := dev.Formats()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Formats:")
	for _, f := range formats {
		fmt.Fprintf(w, "%s (%s):\n", f.PixelFormat, f.FormatName)
		for _, size := range f.Sizes {
			fmt.Fprintf(w, "\t%s", size)
			rates, err := dev.FrameRates(v4l2.Format{PixelFormat: f.PixelFormat, Width: size.Width, Height: size.Height})
			if err != nil {
				return err
			}
			if len(rates) > 0 {
				fps := make([]string, len(rates))
				for i, r := range rates {
					fps[i] = strconv.FormatFloat(r.FPS(), 'f', -1, 64)
				}
				fmt.Fprintf(w, " (FPS: %s)", strings.Join(fps, ", "))
			}
			fmt.Fprintln(w)
		}
	}

	controls, err := dev.Controls()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Controls:")
	for _, c := range controls {
		fmt.Fprintf(w, "%s [%s] (min: %d, max: %d, step: %d, default: %d)",
			c.Name, c.ID, c.Min, c.Max, c.Step, c.Default)
		if c.Type == v4l2.ControlTypeMenu {
			items := make([]string, len(c.Menu))
			for i, item := range c.Menu {
				items[i] = fmt.Sprintf("%d:%s", item.Value, item.Name)
			}
			fmt.Fprintf(w, " (Menu: %s)", strings.Join(items, ", "))
		}
		fmt.Fprintln(w)
	}
	return nil
}
