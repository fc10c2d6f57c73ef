//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/smazurov/vcap/pkg/decode"
	"github.com/smazurov/vcap/pkg/pixfmt"
)

// Camera is a handle to one V4L2 capture device. It enforces the
// closed -> opened -> streaming lifecycle: Open only from closed, Start only
// from opened, Grab only while streaming, Stop back to opened and Close only
// from opened. Methods are safe for concurrent use; concurrent Grab calls are
// serialized, and a grab waiting for a frame does not block the other
// methods. Stop and Close wait for an in-flight grab.
type Camera struct {
	// grabMu serializes grabs and keeps the buffer ring mapped while one
	// runs. Lock order is grabMu, then mu.
	grabMu sync.Mutex

	mu   sync.Mutex
	path string
	info DeviceInfo

	fd    int
	state State

	bufs        [][]byte
	grabTimeout time.Duration
}

// NewCamera returns a closed handle for the device at path.
func NewCamera(path string) *Camera {
	return &Camera{path: path, fd: -1, info: DeviceInfo{DevicePath: path}}
}

// Device returns the device node path.
func (c *Camera) Device() string {
	return c.path
}

// Info returns the capability information read by the last Open, or the
// enumeration data the camera was created with.
func (c *Camera) Info() DeviceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// Driver returns the kernel driver name.
func (c *Camera) Driver() string {
	return c.Info().Driver
}

// Name returns the card name reported by the driver.
func (c *Camera) Name() string {
	return c.Info().DeviceName
}

// State returns the current lifecycle state.
func (c *Camera) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Opened reports whether the device is open (streaming or not).
func (c *Camera) Opened() bool {
	return c.State() != StateClosed
}

// Capturing reports whether the device is streaming.
func (c *Camera) Capturing() bool {
	return c.State() == StateStreaming
}

// SetGrabTimeout bounds how long Grab waits for a frame. Zero waits forever.
func (c *Camera) SetGrabTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grabTimeout = d
}

// Open opens the device node and verifies it can capture video.
func (c *Camera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateClosed {
		return stateError("open", c.state)
	}

	fd, err := open(c.path)
	if err != nil {
		return deviceError("open", c.path, err)
	}

	info, err := queryCapability(fd, c.path)
	if err != nil {
		closeFd(fd)
		return err
	}
	if info.Caps&v4l2CapVideoCapture == 0 {
		closeFd(fd)
		return deviceError("open", c.path, errors.New("not a video capture device"))
	}
	info.DeviceID = c.info.DeviceID
	c.info = info

	c.fd = fd
	c.state = StateOpened
	return nil
}

// Close releases the device. Streaming must be stopped first.
func (c *Camera) Close() error {
	c.grabMu.Lock()
	defer c.grabMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpened {
		return stateError("close", c.state)
	}

	err := closeFd(c.fd)
	c.fd = -1
	c.state = StateClosed
	return deviceError("close", c.path, err)
}

// requireOpen checks the handle is opened or streaming. Callers hold mu.
func (c *Camera) requireOpen(op string) error {
	if c.state == StateClosed {
		return stateError(op, c.state)
	}
	return nil
}

// Formats lists the supported pixel formats with their frame sizes.
func (c *Camera) Formats() ([]FormatInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen("formats"); err != nil {
		return nil, err
	}
	return enumFormats(c.fd, c.path)
}

// Format returns the currently negotiated format.
func (c *Camera) Format() (Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen("format"); err != nil {
		return Format{}, err
	}
	return getFormat(c.fd, c.path)
}

// SetFormat negotiates a format and returns what the driver accepted, which
// may differ from the request. Not allowed while streaming.
func (c *Camera) SetFormat(f Format) (Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpened {
		return Format{}, stateError("set format", c.state)
	}
	return setFormat(c.fd, c.path, f)
}

// autoFormatPriority orders the formats AutoSetFormat prefers. Uncompressed
// formats come first since they decode without loss.
var autoFormatPriority = []pixfmt.FourCC{
	pixfmt.YUYV, pixfmt.UYVY, pixfmt.NV12, pixfmt.YUV420, pixfmt.RGB24, pixfmt.BGR24,
	pixfmt.MJPEG, pixfmt.JPEG,
}

// AutoSetFormat picks the best decodable format at its largest size.
func (c *Camera) AutoSetFormat() (Format, error) {
	formats, err := c.Formats()
	if err != nil {
		return Format{}, err
	}
	best, ok := chooseFormat(formats)
	if !ok {
		return Format{}, deviceError("auto set format", c.path, ErrNoFormat)
	}
	return c.SetFormat(best)
}

func chooseFormat(formats []FormatInfo) (Format, bool) {
	rank := func(code pixfmt.FourCC) int {
		for i, p := range autoFormatPriority {
			if p == code {
				return i
			}
		}
		return len(autoFormatPriority)
	}

	candidates := make([]FormatInfo, 0, len(formats))
	for _, f := range formats {
		if decode.Supports(f.PixelFormat) && len(f.Sizes) > 0 {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) == 0 {
		return Format{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return rank(candidates[i].PixelFormat) < rank(candidates[j].PixelFormat)
	})

	chosen := candidates[0]
	largest := chosen.Sizes[0]
	for _, s := range chosen.Sizes[1:] {
		if s.Pixels() > largest.Pixels() {
			largest = s
		}
	}
	return Format{PixelFormat: chosen.PixelFormat, Width: largest.Width, Height: largest.Height}, true
}

// FrameRates lists the frame rates supported for a format and size.
func (c *Camera) FrameRates(f Format) ([]Framerate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen("frame rates"); err != nil {
		return nil, err
	}
	return enumFramerates(c.fd, c.path, uint32(f.PixelFormat), f.Width, f.Height)
}

// FrameRate returns the current frame interval.
func (c *Camera) FrameRate() (Framerate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen("frame rate"); err != nil {
		return Framerate{}, err
	}
	p, err := getParm(c.fd, c.path)
	if err != nil {
		return Framerate{}, err
	}
	return fract(p.capture.timeperframe), nil
}

// SetFrameRate requests a frame interval and returns the one the driver chose.
func (c *Camera) SetFrameRate(fr Framerate) (Framerate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpened {
		return Framerate{}, stateError("set frame rate", c.state)
	}
	p, err := getParm(c.fd, c.path)
	if err != nil {
		return Framerate{}, err
	}
	if p.capture.capability&v4l2CapTimeperframe == 0 {
		return Framerate{}, deviceError("set frame rate", c.path, syscall.ENOTSUP)
	}
	return setFrameInterval(c.fd, c.path, fr)
}

// Controls lists the supported controls the device implements.
func (c *Camera) Controls() ([]ControlInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen("controls"); err != nil {
		return nil, err
	}
	return queryControls(c.fd, c.path)
}

// ControlValue reads the current value of a control.
func (c *Camera) ControlValue(id ControlID) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen("get control"); err != nil {
		return 0, err
	}
	return getControl(c.fd, c.path, id)
}

// SetControlValue writes a control.
func (c *Camera) SetControlValue(id ControlID, value int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOpen("set control"); err != nil {
		return err
	}
	return setControl(c.fd, c.path, id, value)
}

// GrabDecoded grabs one frame and converts it to packed RGB24 (or BGR24),
// choosing YCbCr coefficients from the negotiated colorimetry.
func (c *Camera) GrabDecoded(bgr bool) ([]byte, error) {
	f, err := c.Format()
	if err != nil {
		return nil, err
	}
	frame, err := c.GrabFrame()
	if err != nil {
		return nil, err
	}
	rgb, err := DecoderFor(f).DecodeStride(frame.Data, f.PixelFormat, f.Width, f.Height, f.BytesPerLine, bgr)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", f, err)
	}
	return rgb, nil
}

// DecoderFor returns a decoder configured for a format's colorimetry.
// Fields the driver leaves at their default are derived the way V4L2 does:
// the encoding from the colorspace, and the range from the pixel format, so
// uncompressed Y'CbCr is limited range and JPEG or RGB data is full range.
func DecoderFor(f Format) *decode.Decoder {
	return decode.New(
		decode.WithEncoding(f.encoding()),
		decode.WithQuantization(f.quantization()),
	)
}

func (f Format) encoding() decode.Encoding {
	switch f.YCbCrEnc {
	case YCbCrEnc709, YCbCrEncXV709:
		return decode.BT709
	case YCbCrEncDefault:
		if f.Colorspace == ColorspaceREC709 {
			return decode.BT709
		}
	}
	// Encodings without a decoder matrix fall back to BT.601.
	return decode.BT601
}

func (f Format) quantization() decode.Quantization {
	switch f.Quantization {
	case QuantizationFullRange:
		return decode.FullRange
	case QuantizationLimitedRange:
		return decode.LimitedRange
	}
	if f.Colorspace == ColorspaceJPEG {
		return decode.FullRange
	}
	switch pixfmt.LayoutOf(f.PixelFormat) {
	case pixfmt.LayoutPackedYUV, pixfmt.LayoutPlanarYUV, pixfmt.LayoutSemiPlanarYUV:
		return decode.LimitedRange
	}
	return decode.FullRange
}
