package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/logging"
)

// CreateGrabCmd creates the grab command, which writes one frame's bytes to
// a file: decoded RGB24 by default, the driver's raw buffer with --raw.
func CreateGrabCmd() *cobra.Command {
	var flags captureFlags
	var output string
	var raw bool

	cmd := &cobra.Command{
		Use:   "grab",
		Short: "Grab one frame and save its pixel data",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			runSnapshot(c, &flags, output, capture.ImageRaw, !raw, 0)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "image.raw", "Output file")
	cmd.Flags().BoolVar(&raw, "raw", false, "Save the undecoded driver buffer")
	return cmd
}

// CreatePNGCmd creates the png command. The output extension picks the
// encoding, so image.jpg or image.ppm work as well.
func CreatePNGCmd() *cobra.Command {
	var flags captureFlags
	var output string
	var quality int

	cmd := &cobra.Command{
		Use:   "png",
		Short: "Grab one frame and save it as an image",
		Args:  cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			format, err := capture.ParseImageFormat(filepath.Ext(output))
			if err != nil {
				format = capture.ImagePNG
			}
			runSnapshot(c, &flags, output, format, true, quality)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "image.png", "Output file")
	cmd.Flags().IntVarP(&quality, "quality", "q", capture.DefaultJPEGQuality, "JPEG quality (1-100)")
	return cmd
}

func runSnapshot(c *cobra.Command, flags *captureFlags, output string, format capture.ImageFormat, decoded bool, quality int) {
	logger := logging.GetLogger("main")
	ctx := c.Context()

	sess, err := flags.openSession(ctx)
	if err != nil {
		logger.Error("Failed to start capture", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sess.Close() }()

	n, err := saveFrame(ctx, sess, output, format, decoded, flags.bgr, quality)
	if err != nil {
		logger.Error("Failed to save frame", "error", err)
		_ = sess.Close()
		os.Exit(1)
	}
	fmt.Fprintf(c.OutOrStdout(), "Wrote output file '%s' (%d bytes)\n", output, n)
}

// saveFrame grabs one frame and writes it to path, returning the byte count.
func saveFrame(ctx context.Context, g grabber, path string, format capture.ImageFormat, decoded, bgr bool, quality int) (int64, error) {
	frame, err := g.Grab(ctx, decoded, bgr)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: f}
	if err := capture.Encode(cw, frame, format, quality); err != nil {
		_ = f.Close()
		return 0, err
	}
	return cw.n, f.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
