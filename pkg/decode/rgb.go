package decode

import (
	"encoding/binary"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

func decodeRGB(out, raw []byte, info pixfmt.Info, w, h int, bgr bool) {
	n := w * h
	switch info.Order {
	case "RGB":
		if !bgr {
			copy(out, raw[:n*3])
			return
		}
		for i := 0; i < n; i++ {
			put(out, i*3, raw[i*3], raw[i*3+1], raw[i*3+2], true)
		}
	case "BGR":
		if bgr {
			copy(out, raw[:n*3])
			return
		}
		for i := 0; i < n; i++ {
			put(out, i*3, raw[i*3+2], raw[i*3+1], raw[i*3], false)
		}
	case "XRGB":
		for i := 0; i < n; i++ {
			p := raw[i*4:]
			put(out, i*3, p[1], p[2], p[3], bgr)
		}
	case "BGRX":
		for i := 0; i < n; i++ {
			p := raw[i*4:]
			put(out, i*3, p[2], p[1], p[0], bgr)
		}
	case pixfmt.OrderRGB565, pixfmt.OrderRGB565X:
		order := binary.ByteOrder(binary.LittleEndian)
		if info.Order == pixfmt.OrderRGB565X {
			order = binary.BigEndian
		}
		for i := 0; i < n; i++ {
			v := order.Uint16(raw[i*2:])
			put(out, i*3, expand5(uint8(v>>11)), expand6(uint8(v>>5)&0x3f), expand5(uint8(v)&0x1f), bgr)
		}
	case pixfmt.OrderRGB555:
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(raw[i*2:])
			put(out, i*3, expand5(uint8(v>>10)&0x1f), expand5(uint8(v>>5)&0x1f), expand5(uint8(v)&0x1f), bgr)
		}
	case pixfmt.OrderRGB332:
		for i := 0; i < n; i++ {
			v := raw[i]
			put(out, i*3, expand3(v>>5), expand3((v>>2)&0x7), (v&0x3)*0x55, bgr)
		}
	}
}

// Bit replication keeps full-scale values at 255.
func expand3(v uint8) uint8 { return v<<5 | v<<2 | v>>1 }
func expand5(v uint8) uint8 { return v<<3 | v>>2 }
func expand6(v uint8) uint8 { return v<<2 | v>>4 }

func decodeGrey(out, raw []byte, info pixfmt.Info, w, h int) {
	n := w * h
	if info.BitsPerSample <= 8 {
		for i := 0; i < n; i++ {
			v := raw[i]
			out[i*3], out[i*3+1], out[i*3+2] = v, v, v
		}
		return
	}
	shift := uint(info.BitsPerSample - 8)
	for i := 0; i < n; i++ {
		v := narrow(binary.LittleEndian.Uint16(raw[i*2:]), shift)
		out[i*3], out[i*3+1], out[i*3+2] = v, v, v
	}
}

// narrow reduces a wide sample to 8 bits, saturating stray high bits.
func narrow(v uint16, shift uint) uint8 {
	v >>= shift
	if v > 255 {
		return 255
	}
	return uint8(v)
}
