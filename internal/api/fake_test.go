package api

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/smazurov/vcap/internal/capture"
	"github.com/smazurov/vcap/internal/config"
	"github.com/smazurov/vcap/internal/devices"
	"github.com/smazurov/vcap/internal/events"
	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
	"github.com/smazurov/vcap/pkg/pixfmt"
)

// stubCamera is a 2x2 YUYV camera producing mid-grey frames.
type stubCamera struct {
	mu       sync.Mutex
	path     string
	state    v4l2.State
	format   v4l2.Format
	rate     v4l2.Framerate
	controls map[v4l2.ControlID]int32
	seq      uint32
	grabErr  error
}

func newStubCamera(path string) *stubCamera {
	return &stubCamera{
		path:     path,
		format:   v4l2.Format{PixelFormat: pixfmt.YUYV, Width: 2, Height: 2, BytesPerLine: 4, SizeImage: 8, Quantization: v4l2.QuantizationFullRange},
		rate:     v4l2.Framerate{Numerator: 1, Denominator: 30},
		controls: map[v4l2.ControlID]int32{v4l2.ControlBrightness: 128},
	}
}

func (c *stubCamera) transition(from, to v4l2.State, op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return fmt.Errorf("%w: %s while %s", v4l2.ErrInvalidState, op, c.state)
	}
	c.state = to
	return nil
}

func (c *stubCamera) Device() string        { return c.path }
func (c *stubCamera) Info() v4l2.DeviceInfo { return v4l2.DeviceInfo{DevicePath: c.path, DeviceName: "Stub"} }

func (c *stubCamera) State() v4l2.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *stubCamera) Open() error  { return c.transition(v4l2.StateClosed, v4l2.StateOpened, "open") }
func (c *stubCamera) Close() error { return c.transition(v4l2.StateOpened, v4l2.StateClosed, "close") }
func (c *stubCamera) Start() error { return c.transition(v4l2.StateOpened, v4l2.StateStreaming, "start") }
func (c *stubCamera) Stop() error  { return c.transition(v4l2.StateStreaming, v4l2.StateOpened, "stop") }

func (c *stubCamera) GrabFrame() (v4l2.RawFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grabErr != nil {
		return v4l2.RawFrame{}, c.grabErr
	}
	c.seq++
	data := make([]byte, int(c.format.Width)*int(c.format.Height)*2)
	for i := range data {
		data[i] = 128
	}
	return v4l2.RawFrame{Data: data, Sequence: c.seq}, nil
}

func (c *stubCamera) SetGrabTimeout(time.Duration) {}

func (c *stubCamera) Formats() ([]v4l2.FormatInfo, error) {
	return []v4l2.FormatInfo{
		{PixelFormat: pixfmt.YUYV, FormatName: "YUYV 4:2:2", Sizes: []v4l2.Size{{Width: 2, Height: 2}}},
		{PixelFormat: pixfmt.H264, FormatName: "H.264", Compressed: true, Sizes: []v4l2.Size{{Width: 1920, Height: 1080}}},
	}, nil
}

func (c *stubCamera) Format() (v4l2.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format, nil
}

func (c *stubCamera) SetFormat(f v4l2.Format) (v4l2.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.PixelFormat = pixfmt.YUYV
	f.Quantization = v4l2.QuantizationFullRange
	c.format = f
	return f, nil
}

func (c *stubCamera) AutoSetFormat() (v4l2.Format, error) { return c.Format() }

func (c *stubCamera) FrameRates(v4l2.Format) ([]v4l2.Framerate, error) {
	return []v4l2.Framerate{{Numerator: 1, Denominator: 30}, {Numerator: 1, Denominator: 15}}, nil
}

func (c *stubCamera) FrameRate() (v4l2.Framerate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate, nil
}

func (c *stubCamera) SetFrameRate(fr v4l2.Framerate) (v4l2.Framerate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = fr
	return fr, nil
}

func (c *stubCamera) Controls() ([]v4l2.ControlInfo, error) {
	return []v4l2.ControlInfo{
		{ID: v4l2.ControlBrightness, Type: v4l2.ControlTypeRange, Name: "Brightness", Max: 255, Step: 1, Default: 128},
		{ID: v4l2.ControlPowerLineFrequency, Type: v4l2.ControlTypeMenu, Name: "Power Line Frequency", Max: 2, Step: 1,
			Menu: []v4l2.MenuItem{{Name: "Disabled", Value: 0}, {Name: "50 Hz", Value: 1}, {Name: "60 Hz", Value: 2}}},
	}, nil
}

func (c *stubCamera) ControlValue(id v4l2.ControlID) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controls[id], nil
}

func (c *stubCamera) SetControlValue(id v4l2.ControlID, value int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	// clamp like a range control would
	c.controls[id] = min(value, 255)
	return nil
}

type testEnv struct {
	api      humatest.TestAPI
	server   *Server
	bus      *events.Bus
	manager  *capture.Manager
	profiles *config.ProfileStore

	mu   sync.Mutex
	cams map[string]*stubCamera
}

func (e *testEnv) camera(path string) capture.Device {
	e.mu.Lock()
	defer e.mu.Unlock()
	cam, ok := e.cams[path]
	if !ok {
		cam = newStubCamera(path)
		e.cams[path] = cam
	}
	return cam
}

var stubDevices = []devices.DeviceInfo{
	{DevicePath: "/dev/video0", DeviceName: "Stub Webcam", DeviceID: "usb-stub-webcam", Driver: "uvcvideo", Type: v4l2.DeviceTypeWebcam, Ready: true},
	{DevicePath: "/dev/video2", DeviceName: "Stub HDMI", DeviceID: "usb-stub-hdmi", Driver: "tc358743", Type: v4l2.DeviceTypeHDMI},
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	_, api := humatest.New(t)
	env := &testEnv{
		api:      api,
		bus:      events.New(),
		profiles: config.NewProfileStore(filepath.Join(t.TempDir(), "profiles.toml")),
		cams:     make(map[string]*stubCamera),
	}

	detector := devices.NewDetector(env.bus, devices.WithLister(func() ([]devices.DeviceInfo, error) {
		return stubDevices, nil
	}))
	if err := detector.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	env.manager = capture.NewManager(capture.Options{}, env.bus,
		capture.WithDeviceFactory(env.camera),
		capture.WithProfiles(env.profiles),
		capture.WithDeviceIDs(func(path string) string {
			dev, _ := detector.Lookup(path)
			return dev.DeviceID
		}),
	)
	t.Cleanup(func() { _ = env.manager.Close() })

	env.server = newServer(api, &Options{
		SnapshotTimeout: time.Second,
		Manager:         env.manager,
		Detector:        detector,
		Profiles:        env.profiles,
		EventBus:        env.bus,
	})
	env.server.registerRoutes()
	return env
}
