package decode

import (
	"fmt"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

// plane is one image plane: rows of row bytes, stride bytes apart.
type plane struct {
	row, rows, stride int
}

// planes returns the geometry of a frame whose first plane rows are stride
// bytes apart. Chroma planes follow the V4L2 single-planar convention: their
// stride scales with the horizontal subsampling of the plane.
func planes(info pixfmt.Info, w, h, stride int) []plane {
	switch info.Layout {
	case pixfmt.LayoutRGB, pixfmt.LayoutGrey:
		return []plane{{w * info.BytesPerPixel, h, stride}}
	case pixfmt.LayoutPackedYUV:
		return []plane{{(w + 1) / 2 * 4, h, stride}}
	case pixfmt.LayoutBayer:
		sample := 1
		if info.BitsPerSample > 8 {
			sample = 2
		}
		return []plane{{w * sample, h, stride}}
	case pixfmt.LayoutPlanarYUV:
		cw, ch := chromaSize(info, w, h)
		cs := stride >> info.ChromaShiftX
		return []plane{{w, h, stride}, {cw, ch, cs}, {cw, ch, cs}}
	case pixfmt.LayoutSemiPlanarYUV:
		cw, ch := chromaSize(info, w, h)
		return []plane{{w, h, stride}, {2 * cw, ch, stride * 2 >> info.ChromaShiftX}}
	}
	return nil
}

// Unpad returns raw with per-row padding removed, for drivers that report a
// bytes-per-line larger than the packed row size. A zero stride, a stride
// equal to the packed row size, and compressed formats return raw as is.
//
// The last row of each plane may omit its padding.
func Unpad(raw []byte, code pixfmt.FourCC, width, height, stride uint32) ([]byte, error) {
	info, ok := pixfmt.Lookup(code)
	if !ok || !supported(info) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, code)
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	if stride == 0 || info.Layout == pixfmt.LayoutCompressed {
		return raw, nil
	}

	ps := planes(info, int(width), int(height), int(stride))
	if int(stride) < ps[0].row {
		return nil, fmt.Errorf("%w: %s stride %d shorter than row of %d bytes",
			ErrInvalidSize, code, stride, ps[0].row)
	}
	if int(stride) == ps[0].row {
		return raw, nil
	}

	need, packed := 0, 0
	for i, p := range ps {
		if i < len(ps)-1 {
			need += p.stride * p.rows
		} else {
			need += p.stride*(p.rows-1) + p.row
		}
		packed += p.row * p.rows
	}
	if len(raw) < need {
		return nil, fmt.Errorf("%w: %s %dx%d stride %d needs %d bytes, got %d",
			ErrTruncatedInput, code, width, height, stride, need, len(raw))
	}

	out := make([]byte, 0, packed)
	off := 0
	for _, p := range ps {
		for y := 0; y < p.rows; y++ {
			start := off + y*p.stride
			out = append(out, raw[start:start+p.row]...)
		}
		off += p.stride * p.rows
	}
	return out, nil
}

// DecodeStride is Decode for frames whose rows are stride bytes apart.
func (d *Decoder) DecodeStride(raw []byte, code pixfmt.FourCC, width, height, stride uint32, bgr bool) ([]byte, error) {
	packed, err := Unpad(raw, code, width, height, stride)
	if err != nil {
		return nil, err
	}
	return d.Decode(packed, code, width, height, bgr)
}
