package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/logging"
)

// pgmRecorder writes a numbered grayscale image per frame and logs each
// file's wall-clock capture time.
type pgmRecorder struct {
	dir     string
	pattern string
	count   int // zero records until cancelled
	out     io.Writer
	now     func() time.Time
}

// CreatePGMCmd creates the pgm command.
func CreatePGMCmd() *cobra.Command {
	var flags captureFlags
	rec := pgmRecorder{now: time.Now}

	cmd := &cobra.Command{
		Use:   "pgm",
		Short: "Record frames as grayscale PGM files",
		Long: `Grabs frames continuously, writing each as an 8-bit PGM named by --pattern ` +
			`and appending "<unix ms> \t <file>" to timestamps.txt. Stops after --count ` +
			`frames, or on SIGINT/SIGTERM.`,
		Args: cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			logger := logging.GetLogger("main")

			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sess, err := flags.openSession(ctx)
			if err != nil {
				logger.Error("Failed to start capture", "error", err)
				os.Exit(1)
			}
			defer func() { _ = sess.Close() }()

			rec.out = c.OutOrStdout()
			n, err := rec.run(ctx, sess)
			logger.Info("Recording finished", "frames", n)
			if err != nil {
				logger.Error("Recording failed", "error", err)
				_ = sess.Close()
				os.Exit(1)
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&rec.dir, "output-dir", "o", ".", "Directory for frames and timestamps.txt")
	cmd.Flags().StringVar(&rec.pattern, "pattern", "frame_%08d.pgm", "File name pattern, formatted with the frame index")
	cmd.Flags().IntVarP(&rec.count, "count", "n", 0, "Number of frames to record (0 = until interrupted)")
	return cmd
}

// run records until count frames are written or ctx is cancelled, and
// returns the number of frames written. Cancellation is not an error.
func (r *pgmRecorder) run(ctx context.Context, g grabber) (int, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return 0, err
	}
	stamps, err := os.Create(filepath.Join(r.dir, "timestamps.txt"))
	if err != nil {
		return 0, err
	}
	defer stamps.Close()

	written := 0
	for r.count == 0 || written < r.count {
		frame, err := g.Grab(ctx, true, false)
		if err != nil {
			if ctx.Err() != nil {
				return written, nil
			}
			return written, err
		}

		name := fmt.Sprintf(r.pattern, written)
		fmt.Fprintf(stamps, "%d \t %s\n", r.now().UnixMilli(), name)

		n, err := writePGM(filepath.Join(r.dir, name), frame)
		if err != nil {
			return written, err
		}
		written++
		if r.out != nil {
			fmt.Fprintf(r.out, "Wrote output file '%s' (%d bytes)\n", name, n)
		}
	}
	return written, stamps.Close()
}

func writePGM(path string, frame *capture.Frame) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: f}
	if err := capture.EncodePGM(cw, frame); err != nil {
		_ = f.Close()
		return 0, err
	}
	return cw.n, f.Close()
}
