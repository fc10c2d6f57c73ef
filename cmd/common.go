// Package cmd holds the vcap subcommands that talk to cameras directly,
// without the HTTP server.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/devices"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
)

var errNoCameras = errors.New("no cameras found")

// newDevice opens cameras; tests replace it.
var newDevice = func(path string) capture.Device { return v4l2.NewCamera(path) }

// grabber is the part of a capture session the capture commands use.
type grabber interface {
	Grab(ctx context.Context, decoded, bgr bool) (*capture.Frame, error)
}

// captureFlags are shared by the commands that grab frames.
type captureFlags struct {
	device  string
	warmUp  time.Duration
	timeout time.Duration
	bgr     bool
}

func (f *captureFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.device, "device", "d", "", "Device path or stable ID (default: first camera)")
	// some cameras need time to initialize
	cmd.Flags().DurationVar(&f.warmUp, "warm-up", 3*time.Second, "Delay between starting the stream and the first grab")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Second, "Per-frame grab timeout")
	cmd.Flags().BoolVar(&f.bgr, "bgr", false, "Decode to BGR24 instead of RGB24")
}

// cameraPaths returns the node for device, or every capture device when
// device is empty.
func cameraPaths(device string) ([]string, error) {
	if device != "" {
		path, err := devices.ResolveDevicePath(device)
		if err != nil {
			return nil, err
		}
		return []string{path}, nil
	}

	found, err := v4l2.FindDevices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate cameras: %w", err)
	}
	if len(found) == 0 {
		return nil, errNoCameras
	}
	paths := make([]string, len(found))
	for i, d := range found {
		paths[i] = d.DevicePath
	}
	return paths, nil
}

// openSession opens the selected camera with its automatic format and
// starts streaming. The caller closes the session.
func (f *captureFlags) openSession(ctx context.Context) (*capture.Session, error) {
	paths, err := cameraPaths(f.device)
	if err != nil {
		return nil, err
	}

	sess := capture.NewSession(newDevice(paths[0]), capture.Options{
		WarmUp:      f.warmUp,
		GrabTimeout: f.timeout,
	}, nil)
	if err := sess.Open(nil); err != nil {
		return nil, err
	}
	if err := sess.Start(ctx); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}
