// Package decode converts raw V4L2 frames into packed 24-bit RGB or BGR.
//
// Every supported pixel format decodes to exactly 3*width*height bytes, one
// triple per pixel in row-major order. The input buffer is never written and
// no output is allocated until the request has been validated.
//
// # Colour conversion
//
// YUV formats use BT.601 full-range coefficients unless configured otherwise:
//
//	R = Y + 1.402*(V-128)
//	G = Y - 0.344*(U-128) - 0.714*(V-128)
//	B = Y + 1.772*(U-128)
//
// computed in 16.16 fixed point and clamped to [0,255]. BT.709 and
// limited-range (studio swing) inputs are selected with options:
//
//	d := decode.New(decode.WithEncoding(decode.BT709), decode.WithQuantization(decode.LimitedRange))
//	rgb, err := d.Decode(raw, pixfmt.YUYV, 640, 480, false)
//
// # Bayer
//
// Raw sensor mosaics are demosaiced bilinearly by default. Samples wider than
// 8 bits are reduced to 8 bits by right shift first.
//
// # Compressed formats
//
// MJPEG and JPEG frames are decoded with image/jpeg. Frames without Huffman
// tables get the standard tables inserted. Other codecs return
// ErrUnsupportedFormat.
package decode

import (
	"fmt"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

// Encoding selects the YCbCr to RGB coefficient set.
type Encoding int

// YCbCr encodings.
const (
	BT601 Encoding = iota
	BT709
)

func (e Encoding) String() string {
	if e == BT709 {
		return "bt709"
	}
	return "bt601"
}

// Quantization selects the YCbCr value range.
type Quantization int

// Quantization ranges.
const (
	FullRange    Quantization = iota // Y, U, V span 0..255
	LimitedRange                     // Y spans 16..235, U and V 16..240
)

func (q Quantization) String() string {
	if q == LimitedRange {
		return "limited"
	}
	return "full"
}

// Demosaic selects the Bayer interpolation.
type Demosaic int

// Demosaic methods.
const (
	Bilinear Demosaic = iota
	NearestNeighbor
)

func (d Demosaic) String() string {
	if d == NearestNeighbor {
		return "nearest"
	}
	return "bilinear"
}

// DefaultMaxFrameBytes caps the output of a single decode (1 GiB).
const DefaultMaxFrameBytes = 1 << 30

// Decoder converts raw frames to RGB24. It holds only immutable settings and
// is safe for concurrent use.
type Decoder struct {
	encoding     Encoding
	quantization Quantization
	demosaic     Demosaic
	maxBytes     int
	m            matrix
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithEncoding sets the YCbCr coefficient set.
func WithEncoding(e Encoding) Option {
	return func(d *Decoder) { d.encoding = e }
}

// WithQuantization sets the YCbCr value range.
func WithQuantization(q Quantization) Option {
	return func(d *Decoder) { d.quantization = q }
}

// WithDemosaic sets the Bayer interpolation.
func WithDemosaic(m Demosaic) Option {
	return func(d *Decoder) { d.demosaic = m }
}

// WithMaxFrameBytes caps the output buffer size. Non-positive values keep the default.
func WithMaxFrameBytes(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxBytes = n
		}
	}
}

// New creates a Decoder. Without options it decodes BT.601 full range with
// bilinear demosaicing.
func New(opts ...Option) *Decoder {
	d := &Decoder{maxBytes: DefaultMaxFrameBytes}
	for _, opt := range opts {
		opt(d)
	}
	d.m = newMatrix(d.encoding, d.quantization)
	return d
}

// Encoding returns the configured coefficient set.
func (d *Decoder) Encoding() Encoding { return d.encoding }

// Quantization returns the configured value range.
func (d *Decoder) Quantization() Quantization { return d.quantization }

var defaultDecoder = New()

// Decode converts raw using the default decoder.
func Decode(raw []byte, code pixfmt.FourCC, width, height uint32, bgr bool) ([]byte, error) {
	return defaultDecoder.Decode(raw, code, width, height, bgr)
}

// Decode converts one raw frame of the given format and dimensions into a
// newly allocated buffer of 3*width*height bytes. Triples are R,G,B, or
// B,G,R when bgr is set.
func (d *Decoder) Decode(raw []byte, code pixfmt.FourCC, width, height uint32, bgr bool) ([]byte, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	info, ok := pixfmt.Lookup(code)
	if !ok || !supported(info) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, code)
	}

	size, err := d.outputSize(width, height)
	if err != nil {
		return nil, err
	}

	need, err := pixfmt.MinFrameSize(code, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %dx%d: %w", ErrAllocationFailure, code, width, height, err)
	}
	if len(raw) < need {
		return nil, fmt.Errorf("%w: %s %dx%d needs %d bytes, got %d",
			ErrTruncatedInput, code, width, height, need, len(raw))
	}

	w, h := int(width), int(height)

	if info.Layout == pixfmt.LayoutCompressed {
		return d.decodeJPEG(raw, code, w, h, size, bgr)
	}

	out := make([]byte, size)
	switch info.Layout {
	case pixfmt.LayoutRGB:
		decodeRGB(out, raw, info, w, h, bgr)
	case pixfmt.LayoutGrey:
		decodeGrey(out, raw, info, w, h)
	case pixfmt.LayoutPackedYUV:
		d.decodePacked(out, raw, info, w, h, bgr)
	case pixfmt.LayoutPlanarYUV:
		d.decodePlanar(out, raw, info, w, h, bgr)
	case pixfmt.LayoutSemiPlanarYUV:
		d.decodeSemiPlanar(out, raw, info, w, h, bgr)
	case pixfmt.LayoutBayer:
		d.decodeBayer(out, raw, info, w, h, bgr)
	}
	return out, nil
}

// Supports reports whether the decoder has a converter for code.
func Supports(code pixfmt.FourCC) bool {
	info, ok := pixfmt.Lookup(code)
	return ok && supported(info)
}

func supported(info pixfmt.Info) bool {
	switch info.Layout {
	case pixfmt.LayoutRGB, pixfmt.LayoutGrey, pixfmt.LayoutPackedYUV,
		pixfmt.LayoutPlanarYUV, pixfmt.LayoutSemiPlanarYUV, pixfmt.LayoutBayer:
		return true
	case pixfmt.LayoutCompressed:
		return info.Code == pixfmt.MJPEG || info.Code == pixfmt.JPEG
	default:
		return false
	}
}

func (d *Decoder) outputSize(width, height uint32) (int, error) {
	pixels := uint64(width) * uint64(height)
	if pixels > uint64(d.maxBytes)/3 {
		return 0, fmt.Errorf("%w: %dx%d exceeds limit of %d bytes",
			ErrAllocationFailure, width, height, d.maxBytes)
	}
	return int(pixels * 3), nil
}

// put stores one pixel at triple offset i.
func put(out []byte, i int, r, g, b uint8, bgr bool) {
	if bgr {
		r, b = b, r
	}
	out[i] = r
	out[i+1] = g
	out[i+2] = b
}
