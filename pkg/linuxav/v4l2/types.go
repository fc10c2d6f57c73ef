//go:build linux

package v4l2

import (
	"fmt"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	BusInfo    string
	Caps       uint32
}

// Size is a frame size in pixels.
type Size struct {
	Width  uint32
	Height uint32
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Pixels returns Width*Height.
func (s Size) Pixels() uint64 {
	return uint64(s.Width) * uint64(s.Height)
}

// FormatInfo contains information about a supported pixel format. Sizes is
// owned by the caller.
type FormatInfo struct {
	PixelFormat pixfmt.FourCC
	FormatName  string
	Emulated    bool
	Compressed  bool
	Sizes       []Size
}

// Format is a negotiated capture format.
type Format struct {
	PixelFormat  pixfmt.FourCC
	Width        uint32
	Height       uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   Colorspace
	YCbCrEnc     YCbCrEncoding
	Quantization Quantization
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dx%d", f.PixelFormat, f.Width, f.Height)
}

// Size returns the frame dimensions.
func (f Format) Size() Size {
	return Size{Width: f.Width, Height: f.Height}
}

// Colorspace is the V4L2 colorspace field. It supplies the defaults for
// YCbCrEnc and Quantization when the driver leaves those at zero.
type Colorspace uint32

// Colorspaces that change how frames decode.
const (
	ColorspaceDefault   Colorspace = v4l2ColorspaceDefault
	ColorspaceSMPTE170M Colorspace = v4l2ColorspaceSMPTE170M
	ColorspaceREC709    Colorspace = v4l2ColorspaceREC709
	ColorspaceJPEG      Colorspace = v4l2ColorspaceJPEG
	ColorspaceSRGB      Colorspace = v4l2ColorspaceSRGB
)

// YCbCrEncoding is the V4L2 ycbcr_enc field.
type YCbCrEncoding uint32

// YCbCr encodings. Drivers report other values too; only these matter for decoding.
const (
	YCbCrEncDefault YCbCrEncoding = v4l2YCbCrEncDefault
	YCbCrEnc601     YCbCrEncoding = v4l2YCbCrEnc601
	YCbCrEnc709     YCbCrEncoding = v4l2YCbCrEnc709
	YCbCrEncXV601   YCbCrEncoding = v4l2YCbCrEncXV601
	YCbCrEncXV709   YCbCrEncoding = v4l2YCbCrEncXV709
)

// Quantization is the V4L2 quantization field.
type Quantization uint32

// Quantization ranges.
const (
	QuantizationDefault      Quantization = v4l2QuantizationDef
	QuantizationFullRange    Quantization = v4l2QuantizationFull
	QuantizationLimitedRange Quantization = v4l2QuantizationLimit
)

// Framerate represents a supported framerate as a fraction.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

func (f Framerate) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// State is the lifecycle state of a Camera.
type State int

// Camera states.
const (
	StateClosed State = iota
	StateOpened
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpened:
		return "opened"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// DeviceType represents the type of V4L2 device.
type DeviceType int

// Device types.
const (
	DeviceTypeWebcam  DeviceType = 0
	DeviceTypeHDMI    DeviceType = 1
	DeviceTypeUnknown DeviceType = -1
)

func (d DeviceType) String() string {
	switch d {
	case DeviceTypeWebcam:
		return "webcam"
	case DeviceTypeHDMI:
		return "hdmi"
	default:
		return "unknown"
	}
}

// SignalState represents the state of a video signal.
type SignalState int

// Signal states.
const (
	SignalStateNoDevice     SignalState = -1
	SignalStateNoLink       SignalState = 0 // No cable connected
	SignalStateNoSignal     SignalState = 1 // Cable connected, no signal
	SignalStateUnstable     SignalState = 2 // Signal present but unstable
	SignalStateLocked       SignalState = 3 // Signal locked and stable
	SignalStateOutOfRange   SignalState = 4 // Signal out of supported range
	SignalStateNotSupported SignalState = 5 // Device doesn't support DV timings
)

func (s SignalState) String() string {
	switch s {
	case SignalStateNoDevice:
		return "no_device"
	case SignalStateNoLink:
		return "no_link"
	case SignalStateNoSignal:
		return "no_signal"
	case SignalStateUnstable:
		return "unstable"
	case SignalStateLocked:
		return "locked"
	case SignalStateOutOfRange:
		return "out_of_range"
	case SignalStateNotSupported:
		return "not_supported"
	default:
		return "unknown"
	}
}

// SignalStatus contains detailed signal information.
type SignalStatus struct {
	State      SignalState
	Width      uint32
	Height     uint32
	FPS        float64
	Interlaced bool
}

// DeviceStatus contains combined device type and ready status.
type DeviceStatus struct {
	DeviceType DeviceType
	Ready      bool
}

// FormatFourCC converts a 4-byte pixel format to a human-readable string.
func FormatFourCC(format uint32) string {
	return pixfmt.FourCC(format).String()
}
