// Package pixfmt describes the raw pixel layouts a V4L2 capture device can
// deliver, keyed by their FOURCC code.
//
// Every registered code carries a Layout class. Decoders dispatch on the
// class rather than on individual codes, so adding a new variant of an
// existing layout only needs a registry entry:
//
//	info, ok := pixfmt.Lookup(pixfmt.YUYV)
//	if ok && info.Layout == pixfmt.LayoutPackedYUV {
//	    n, _ := pixfmt.MinFrameSize(pixfmt.YUYV, 640, 480) // 614400
//	}
package pixfmt

import (
	"errors"
	"fmt"
	"strings"
)

// FourCC is a V4L2 pixel format code: four ASCII characters packed little-endian.
type FourCC uint32

// New packs four characters into a FourCC.
func New(a, b, c, d byte) FourCC {
	return FourCC(uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24)
}

// String returns the four characters of the code, e.g. "YUYV".
func (f FourCC) String() string {
	b := []byte{
		byte(f & 0xFF),
		byte((f >> 8) & 0xFF),
		byte((f >> 16) & 0xFF),
		byte((f >> 24) & 0xFF),
	}
	return string(b)
}

// ErrInvalidFourCC is returned by Parse for strings that cannot form a code.
var ErrInvalidFourCC = errors.New("invalid fourcc")

// Parse converts a 1-4 character string to a FourCC. Short strings are
// padded with spaces, so "Y16" parses to "Y16 ".
func Parse(s string) (FourCC, error) {
	if len(s) == 0 || len(s) > 4 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFourCC, s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7E {
			return 0, fmt.Errorf("%w: %q", ErrInvalidFourCC, s)
		}
	}
	padded := s + strings.Repeat(" ", 4-len(s))
	return New(padded[0], padded[1], padded[2], padded[3]), nil
}

// Layout is the memory layout class of a pixel format.
type Layout int

// Layout classes.
const (
	LayoutUnknown Layout = iota
	LayoutRGB
	LayoutGrey
	LayoutPackedYUV
	LayoutPlanarYUV
	LayoutSemiPlanarYUV
	LayoutBayer
	LayoutCompressed
)

func (l Layout) String() string {
	switch l {
	case LayoutRGB:
		return "rgb"
	case LayoutGrey:
		return "grey"
	case LayoutPackedYUV:
		return "packed-yuv"
	case LayoutPlanarYUV:
		return "planar-yuv"
	case LayoutSemiPlanarYUV:
		return "semi-planar-yuv"
	case LayoutBayer:
		return "bayer"
	case LayoutCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// Order names the position of each component inside a pixel, tile or plane
// group. Its meaning depends on the layout:
//
//	LayoutRGB           byte order of R, G, B (and X for padding) in one pixel
//	LayoutPackedYUV     byte order of Y0, U, Y1, V in one 4-byte macropixel ("YUYV")
//	LayoutPlanarYUV     plane order after Y ("UV" or "VU")
//	LayoutSemiPlanarYUV interleave order of the chroma plane ("UV" or "VU")
//	LayoutBayer         the 2x2 colour filter tile, row-major ("BGGR")
type Order string

// Info describes one registered pixel format.
type Info struct {
	Code        FourCC
	Description string
	Layout      Layout
	// BitsPerSample is the significant bits of one sample. Samples wider
	// than 8 bits are stored little-endian in 16-bit words.
	BitsPerSample int
	// BytesPerPixel is the packed pixel size for RGB and grey layouts.
	BytesPerPixel int
	// ChromaShiftX/Y are log2 of the chroma subsampling factors.
	ChromaShiftX int
	ChromaShiftY int
	Order        Order
}

// Lookup returns the descriptor for a code.
func Lookup(code FourCC) (Info, bool) {
	i, ok := index[code]
	if !ok {
		return Info{}, false
	}
	return registry[i], true
}

// LayoutOf returns the layout class of a code, or LayoutUnknown.
func LayoutOf(code FourCC) Layout {
	info, ok := Lookup(code)
	if !ok {
		return LayoutUnknown
	}
	return info.Layout
}

// All returns every registered format in registry order.
func All() []Info {
	out := make([]Info, len(registry))
	copy(out, registry)
	return out
}

// ErrUnknownFormat is returned for codes missing from the registry.
var ErrUnknownFormat = errors.New("unknown pixel format")

// ErrInvalidSize is returned for zero frame dimensions.
var ErrInvalidSize = errors.New("invalid frame size")

// MinFrameSize returns the minimum number of bytes a raw frame of the given
// dimensions occupies. Compressed formats have no fixed size and need at
// least one byte.
func MinFrameSize(code FourCC, width, height uint32) (int, error) {
	if width == 0 || height == 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	info, ok := Lookup(code)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, code)
	}

	w, h := uint64(width), uint64(height)
	sample := uint64(1)
	if info.BitsPerSample > 8 {
		sample = 2
	}

	var n uint64
	switch info.Layout {
	case LayoutRGB, LayoutGrey:
		n = w * h * uint64(info.BytesPerPixel)
	case LayoutPackedYUV:
		n = (w + 1) / 2 * 4 * h
	case LayoutPlanarYUV, LayoutSemiPlanarYUV:
		cw := (w + (1 << info.ChromaShiftX) - 1) >> info.ChromaShiftX
		ch := (h + (1 << info.ChromaShiftY) - 1) >> info.ChromaShiftY
		n = w*h + 2*cw*ch
	case LayoutBayer:
		n = w * h * sample
	case LayoutCompressed:
		n = 1
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownFormat, code)
	}

	if n > uint64(maxInt) {
		return 0, fmt.Errorf("%w: %dx%d overflows", ErrInvalidSize, width, height)
	}
	return int(n), nil
}

const maxInt = int(^uint(0) >> 1)
