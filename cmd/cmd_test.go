package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/devices"
	"github.com/smazurov/vcap/internal/events"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
	"github.com/smazurov/vcap/pkg/pixfmt"
)

type fakeDescriber struct {
	opened, closed bool
}

func (f *fakeDescriber) Device() string { return "/dev/video0" }
func (f *fakeDescriber) Info() v4l2.DeviceInfo {
	return v4l2.DeviceInfo{DevicePath: "/dev/video0", DeviceName: "HD Webcam", Driver: "uvcvideo", BusInfo: "usb-0000:00:14.0-1"}
}
func (f *fakeDescriber) Open() error  { f.opened = true; return nil }
func (f *fakeDescriber) Close() error { f.closed = true; return nil }

func (f *fakeDescriber) Formats() ([]v4l2.FormatInfo, error) {
	return []v4l2.FormatInfo{{
		PixelFormat: pixfmt.YUYV,
		FormatName:  "YUYV 4:2:2",
		Sizes:       []v4l2.Size{{Width: 640, Height: 480}},
	}}, nil
}

func (f *fakeDescriber) FrameRates(v4l2.Format) ([]v4l2.Framerate, error) {
	return []v4l2.Framerate{{Numerator: 1, Denominator: 30}, {Numerator: 1001, Denominator: 30000}}, nil
}

func (f *fakeDescriber) Controls() ([]v4l2.ControlInfo, error) {
	return []v4l2.ControlInfo{
		{ID: v4l2.ControlBrightness, Type: v4l2.ControlTypeRange, Name: "Brightness", Min: -64, Max: 64, Step: 1},
		{ID: v4l2.ControlPowerLineFrequency, Type: v4l2.ControlTypeMenu, Name: "Power Line Frequency", Max: 2, Step: 1, Default: 1,
			Menu: []v4l2.MenuItem{{Name: "Disabled", Value: 0}, {Name: "50 Hz", Value: 1}}},
	}, nil
}

func TestWriteCameraInfo(t *testing.T) {
	dev := &fakeDescriber{}
	var buf bytes.Buffer
	if err := writeCameraInfo(&buf, dev); err != nil {
		t.Fatalf("writeCameraInfo() error = %v", err)
	}
	if !dev.opened || !dev.closed {
		t.Errorf("opened = %v, closed = %v, want both", dev.opened, dev.closed)
	}

	out := buf.String()
	for _, want := range []string{
		"Device: /dev/video0\n",
		"Driver: uvcvideo\n",
		"YUYV (YUYV 4:2:2):\n",
		"\t640x480 (FPS: 30, 29.97",
		"Brightness [brightness] (min: -64, max: 64, step: 1, default: 0)\n",
		"(Menu: 0:Disabled, 1:50 Hz)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// fakeGrabber hands out 2x1 decoded frames, then err once frames run out.
type fakeGrabber struct {
	frames int
	err    error
	calls  int
}

func (g *fakeGrabber) Grab(ctx context.Context, decoded, bgr bool) (*capture.Frame, error) {
	if g.frames > 0 && g.calls >= g.frames {
		return nil, g.err
	}
	g.calls++
	return &capture.Frame{
		Data:     []byte{255, 0, 0, 0, 0, 255},
		Format:   pixfmt.YUYV,
		Width:    2,
		Height:   1,
		Sequence: uint32(g.calls),
		Decoded:  decoded,
		BGR:      bgr,
	}, nil
}

func TestSaveFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.raw")

	n, err := saveFrame(context.Background(), &fakeGrabber{}, path, capture.ImageRaw, true, false, 0)
	if err != nil {
		t.Fatalf("saveFrame() error = %v", err)
	}
	if n != 6 {
		t.Errorf("saveFrame() = %d bytes, want 6", n)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{255, 0, 0, 0, 0, 255}) {
		t.Errorf("file = %v, want the RGB24 frame", data)
	}
}

func TestSaveFrameGrabError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.png")
	failing := grabberFunc(func(context.Context, bool, bool) (*capture.Frame, error) {
		return nil, v4l2.ErrTimeout
	})
	if _, err := saveFrame(context.Background(), failing, path, capture.ImagePNG, true, false, 0); !errors.Is(err, v4l2.ErrTimeout) {
		t.Errorf("saveFrame() error = %v, want ErrTimeout", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("output file exists after failed grab")
	}
}

type grabberFunc func(ctx context.Context, decoded, bgr bool) (*capture.Frame, error)

func (f grabberFunc) Grab(ctx context.Context, decoded, bgr bool) (*capture.Frame, error) {
	return f(ctx, decoded, bgr)
}

func TestPGMRecorder(t *testing.T) {
	dir := t.TempDir()
	clock := time.UnixMilli(1700000000000)
	var out bytes.Buffer
	rec := pgmRecorder{
		dir:     dir,
		pattern: "frame_%08d.pgm",
		count:   3,
		out:     &out,
		now: func() time.Time {
			clock = clock.Add(33 * time.Millisecond)
			return clock
		},
	}

	n, err := rec.run(context.Background(), &fakeGrabber{})
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if n != 3 {
		t.Errorf("run() = %d frames, want 3", n)
	}

	data, err := os.ReadFile(filepath.Join(dir, "frame_00000002.pgm"))
	if err != nil {
		t.Fatal(err)
	}
	// red luma 54, blue luma 18
	want := append([]byte("P5\n2 1\n255\n"), 54, 18)
	if !bytes.Equal(data, want) {
		t.Errorf("frame_00000002.pgm = %q, want %q", data, want)
	}

	stamps, err := os.ReadFile(filepath.Join(dir, "timestamps.txt"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(stamps)), "\n")
	if len(lines) != 3 || lines[0] != "1700000000033 \t frame_00000000.pgm" {
		t.Errorf("timestamps.txt = %q", stamps)
	}
	if !strings.Contains(out.String(), "Wrote output file 'frame_00000001.pgm' (13 bytes)") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPGMRecorderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	g := grabberFunc(func(ctx context.Context, decoded, bgr bool) (*capture.Frame, error) {
		calls++
		if calls == 3 {
			cancel()
			return nil, ctx.Err()
		}
		return (&fakeGrabber{}).Grab(ctx, decoded, bgr)
	})

	rec := pgmRecorder{dir: t.TempDir(), pattern: "f%d.pgm", now: time.Now}
	n, err := rec.run(ctx, g)
	if err != nil {
		t.Errorf("run() error = %v, want nil on cancel", err)
	}
	if n != 2 {
		t.Errorf("run() = %d frames, want 2", n)
	}
}

func TestPGMRecorderGrabError(t *testing.T) {
	rec := pgmRecorder{dir: t.TempDir(), pattern: "f%d.pgm", now: time.Now}
	n, err := rec.run(context.Background(), &fakeGrabber{frames: 1, err: v4l2.ErrTimeout})
	if !errors.Is(err, v4l2.ErrTimeout) || n != 1 {
		t.Errorf("run() = %d, %v, want 1, ErrTimeout", n, err)
	}
}

type fakeWatcher struct {
	bus *events.Bus
}

func (w *fakeWatcher) Lookup(string) (devices.DeviceInfo, bool) { return devices.DeviceInfo{}, false }

func (w *fakeWatcher) Run(ctx context.Context) error {
	w.bus.Publish(events.DeviceDiscoveryEvent{Device: "/dev/video0", Name: "Webcam", DeviceID: "usb-cam", Action: "added", Timestamp: "T0"})
	<-ctx.Done()
	return ctx.Err()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchDevices(t *testing.T) {
	bus := events.New()
	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer

	done := make(chan error, 1)
	go func() { done <- watchDevices(ctx, &fakeWatcher{bus: bus}, bus, &out) }()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "/dev/video0") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("watchDevices() error = %v", err)
	}
	if got, want := out.String(), "T0 added   /dev/video0 \"Webcam\" usb-cam\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}
