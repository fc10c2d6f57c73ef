package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/vcap/pkg/linuxav/v4l2"
	"github.com/smazurov/vcap/pkg/pixfmt"
)

// fakeCamera is an in-memory Device following the camera state machine.
type fakeCamera struct {
	mu       sync.Mutex
	path     string
	state    v4l2.State
	format   v4l2.Format
	rate     v4l2.Framerate
	controls map[v4l2.ControlID]int32
	reject   map[v4l2.ControlID]bool
	frame    []byte
	seq      uint32
	timeout  time.Duration
	grabErr  error
	opens    int
	// openGate, when set, holds Open until it is closed.
	openGate chan struct{}
}

func newFakeCamera(path string) *fakeCamera {
	return &fakeCamera{
		path: path,
		// two mid-grey pixels
		format:   v4l2.Format{PixelFormat: pixfmt.YUYV, Width: 2, Height: 1, Quantization: v4l2.QuantizationFullRange},
		frame:    []byte{128, 128, 128, 128},
		controls: make(map[v4l2.ControlID]int32),
		reject:   make(map[v4l2.ControlID]bool),
	}
}

func (c *fakeCamera) stateErr(op string) error {
	return fmt.Errorf("%w: %s while %s", v4l2.ErrInvalidState, op, c.state)
}

func (c *fakeCamera) Device() string        { return c.path }
func (c *fakeCamera) Info() v4l2.DeviceInfo { return v4l2.DeviceInfo{DevicePath: c.path, DeviceName: "Fake"} }

func (c *fakeCamera) State() v4l2.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeCamera) Open() error {
	if c.openGate != nil {
		<-c.openGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != v4l2.StateClosed {
		return c.stateErr("open")
	}
	c.state = v4l2.StateOpened
	c.opens++
	return nil
}

func (c *fakeCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != v4l2.StateOpened {
		return c.stateErr("close")
	}
	c.state = v4l2.StateClosed
	return nil
}

func (c *fakeCamera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != v4l2.StateOpened {
		return c.stateErr("start")
	}
	c.state = v4l2.StateStreaming
	return nil
}

func (c *fakeCamera) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != v4l2.StateStreaming {
		return c.stateErr("stop")
	}
	c.state = v4l2.StateOpened
	return nil
}

func (c *fakeCamera) GrabFrame() (v4l2.RawFrame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != v4l2.StateStreaming {
		return v4l2.RawFrame{}, c.stateErr("grab")
	}
	if c.grabErr != nil {
		return v4l2.RawFrame{}, c.grabErr
	}
	c.seq++
	return v4l2.RawFrame{
		Data:      append([]byte(nil), c.frame...),
		Sequence:  c.seq,
		Timestamp: time.Duration(c.seq) * time.Second / 30,
	}, nil
}

func (c *fakeCamera) SetGrabTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

func (c *fakeCamera) Formats() ([]v4l2.FormatInfo, error) {
	return []v4l2.FormatInfo{{
		PixelFormat: pixfmt.YUYV,
		FormatName:  "YUYV 4:2:2",
		Sizes:       []v4l2.Size{{Width: 2, Height: 1}, {Width: 4, Height: 2}},
	}}, nil
}

func (c *fakeCamera) Format() (v4l2.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == v4l2.StateClosed {
		return v4l2.Format{}, c.stateErr("format")
	}
	return c.format, nil
}

func (c *fakeCamera) SetFormat(f v4l2.Format) (v4l2.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != v4l2.StateOpened {
		return v4l2.Format{}, c.stateErr("set format")
	}
	if f.PixelFormat != pixfmt.YUYV {
		f.PixelFormat = pixfmt.YUYV // drivers substitute unsupported formats
	}
	f.Quantization = v4l2.QuantizationFullRange
	c.format = f
	c.frame = make([]byte, int(f.Width)*int(f.Height)*2)
	for i := range c.frame {
		c.frame[i] = 128
	}
	return f, nil
}

func (c *fakeCamera) AutoSetFormat() (v4l2.Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == v4l2.StateClosed {
		return v4l2.Format{}, c.stateErr("auto format")
	}
	return c.format, nil
}

func (c *fakeCamera) FrameRates(v4l2.Format) ([]v4l2.Framerate, error) {
	return []v4l2.Framerate{{Numerator: 1, Denominator: 30}, {Numerator: 1, Denominator: 15}}, nil
}

func (c *fakeCamera) FrameRate() (v4l2.Framerate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate, nil
}

func (c *fakeCamera) SetFrameRate(fr v4l2.Framerate) (v4l2.Framerate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = fr
	return fr, nil
}

func (c *fakeCamera) Controls() ([]v4l2.ControlInfo, error) {
	return []v4l2.ControlInfo{
		{ID: v4l2.ControlBrightness, Type: v4l2.ControlTypeRange, Name: "Brightness", Max: 255, Step: 1, Default: 128},
	}, nil
}

func (c *fakeCamera) ControlValue(id v4l2.ControlID) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controls[id], nil
}

func (c *fakeCamera) SetControlValue(id v4l2.ControlID, value int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == v4l2.StateClosed {
		return c.stateErr("set control")
	}
	if c.reject[id] {
		return fmt.Errorf("VIDIOC_S_CTRL %s: invalid argument", c.path)
	}
	c.controls[id] = value
	return nil
}
