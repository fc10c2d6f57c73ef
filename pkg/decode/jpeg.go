package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

// JPEG markers.
const (
	markerSOI = 0xD8
	markerDHT = 0xC4
	markerSOS = 0xDA
	markerTEM = 0x01
	markerRST = 0xD0
)

func (d *Decoder) decodeJPEG(raw []byte, code pixfmt.FourCC, w, h, size int, bgr bool) ([]byte, error) {
	data, err := withHuffmanTables(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptFrame, code, err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptFrame, code, err)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return nil, fmt.Errorf("%w: %s decoded to %dx%d, expected %dx%d",
			ErrCorruptFrame, code, b.Dx(), b.Dy(), w, h)
	}

	out := make([]byte, size)
	switch m := img.(type) {
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				yi := m.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := m.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl := color.YCbCrToRGB(m.Y[yi], m.Cb[ci], m.Cr[ci])
				put(out, (y*w+x)*3, r, g, bl, bgr)
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := m.Pix[y*m.Stride : y*m.Stride+w]
			for x, v := range row {
				i := (y*w + x) * 3
				out[i], out[i+1], out[i+2] = v, v, v
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
				put(out, (y*w+x)*3, c.R, c.G, c.B, bgr)
			}
		}
	}
	return out, nil
}

// withHuffmanTables returns raw unchanged when it defines Huffman tables
// before the first scan. Otherwise it returns a copy with the standard
// tables inserted ahead of the scan header, as UVC cameras omit them from
// MJPEG frames.
func withHuffmanTables(raw []byte) ([]byte, error) {
	if len(raw) < 4 || raw[0] != 0xFF || raw[1] != markerSOI {
		return nil, fmt.Errorf("missing SOI marker")
	}

	i := 2
	for {
		if i+1 >= len(raw) {
			return nil, fmt.Errorf("no scan before end of data")
		}
		if raw[i] != 0xFF {
			return nil, fmt.Errorf("expected marker at offset %d", i)
		}
		marker := raw[i+1]
		switch {
		case marker == 0xFF:
			// fill byte
			i++
			continue
		case marker == markerDHT:
			return raw, nil
		case marker == markerSOS:
			out := make([]byte, 0, len(raw)+len(standardDHT))
			out = append(out, raw[:i]...)
			out = append(out, standardDHT...)
			return append(out, raw[i:]...), nil
		case marker == markerTEM, marker >= markerRST && marker <= markerSOI:
			i += 2
			continue
		}
		if i+3 >= len(raw) {
			return nil, fmt.Errorf("truncated segment at offset %d", i)
		}
		i += 2 + int(binary.BigEndian.Uint16(raw[i+2:]))
	}
}

type huffmanSpec struct {
	class, id uint8
	bits      [16]uint8
	values    []uint8
}

// Standard tables from ITU T.81 Annex K.3.
var huffmanSpecs = []huffmanSpec{
	{
		class: 0, id: 0,
		bits:   [16]uint8{0, 1, 5, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0},
		values: []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
	{
		class: 1, id: 0,
		bits: [16]uint8{0, 2, 1, 3, 3, 2, 4, 3, 5, 5, 4, 4, 0, 0, 1, 0x7d},
		values: []uint8{
			0x01, 0x02, 0x03, 0x00, 0x04, 0x11, 0x05, 0x12,
			0x21, 0x31, 0x41, 0x06, 0x13, 0x51, 0x61, 0x07,
			0x22, 0x71, 0x14, 0x32, 0x81, 0x91, 0xa1, 0x08,
			0x23, 0x42, 0xb1, 0xc1, 0x15, 0x52, 0xd1, 0xf0,
			0x24, 0x33, 0x62, 0x72, 0x82, 0x09, 0x0a, 0x16,
			0x17, 0x18, 0x19, 0x1a, 0x25, 0x26, 0x27, 0x28,
			0x29, 0x2a, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39,
			0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48, 0x49,
			0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58, 0x59,
			0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68, 0x69,
			0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78, 0x79,
			0x7a, 0x83, 0x84, 0x85, 0x86, 0x87, 0x88, 0x89,
			0x8a, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97, 0x98,
			0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5, 0xa6, 0xa7,
			0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4, 0xb5, 0xb6,
			0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3, 0xc4, 0xc5,
			0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2, 0xd3, 0xd4,
			0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda, 0xe1, 0xe2,
			0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9, 0xea,
			0xf1, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	},
	{
		class: 0, id: 1,
		bits:   [16]uint8{0, 3, 1, 1, 1, 1, 1, 1, 1, 1, 1, 0, 0, 0, 0, 0},
		values: []uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	},
	{
		class: 1, id: 1,
		bits: [16]uint8{0, 2, 1, 2, 4, 4, 3, 4, 7, 5, 4, 4, 0, 1, 2, 0x77},
		values: []uint8{
			0x00, 0x01, 0x02, 0x03, 0x11, 0x04, 0x05, 0x21,
			0x31, 0x06, 0x12, 0x41, 0x51, 0x07, 0x61, 0x71,
			0x13, 0x22, 0x32, 0x81, 0x08, 0x14, 0x42, 0x91,
			0xa1, 0xb1, 0xc1, 0x09, 0x23, 0x33, 0x52, 0xf0,
			0x15, 0x62, 0x72, 0xd1, 0x0a, 0x16, 0x24, 0x34,
			0xe1, 0x25, 0xf1, 0x17, 0x18, 0x19, 0x1a, 0x26,
			0x27, 0x28, 0x29, 0x2a, 0x35, 0x36, 0x37, 0x38,
			0x39, 0x3a, 0x43, 0x44, 0x45, 0x46, 0x47, 0x48,
			0x49, 0x4a, 0x53, 0x54, 0x55, 0x56, 0x57, 0x58,
			0x59, 0x5a, 0x63, 0x64, 0x65, 0x66, 0x67, 0x68,
			0x69, 0x6a, 0x73, 0x74, 0x75, 0x76, 0x77, 0x78,
			0x79, 0x7a, 0x82, 0x83, 0x84, 0x85, 0x86, 0x87,
			0x88, 0x89, 0x8a, 0x92, 0x93, 0x94, 0x95, 0x96,
			0x97, 0x98, 0x99, 0x9a, 0xa2, 0xa3, 0xa4, 0xa5,
			0xa6, 0xa7, 0xa8, 0xa9, 0xaa, 0xb2, 0xb3, 0xb4,
			0xb5, 0xb6, 0xb7, 0xb8, 0xb9, 0xba, 0xc2, 0xc3,
			0xc4, 0xc5, 0xc6, 0xc7, 0xc8, 0xc9, 0xca, 0xd2,
			0xd3, 0xd4, 0xd5, 0xd6, 0xd7, 0xd8, 0xd9, 0xda,
			0xe2, 0xe3, 0xe4, 0xe5, 0xe6, 0xe7, 0xe8, 0xe9,
			0xea, 0xf2, 0xf3, 0xf4, 0xf5, 0xf6, 0xf7, 0xf8,
			0xf9, 0xfa,
		},
	},
}

// standardDHT is one DHT segment carrying all four standard tables.
var standardDHT = buildDHT(huffmanSpecs)

func buildDHT(specs []huffmanSpec) []byte {
	length := 2
	for _, s := range specs {
		length += 1 + len(s.bits) + len(s.values)
	}
	seg := make([]byte, 0, 2+length)
	seg = append(seg, 0xFF, markerDHT, byte(length>>8), byte(length))
	for _, s := range specs {
		seg = append(seg, s.class<<4|s.id)
		seg = append(seg, s.bits[:]...)
		seg = append(seg, s.values...)
	}
	return seg
}
