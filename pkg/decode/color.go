package decode

import "math"

type coefficients struct {
	rv, gu, gv, bu float64
}

var encodings = map[Encoding]coefficients{
	BT601: {rv: 1.402, gu: 0.344, gv: 0.714, bu: 1.772},
	BT709: {rv: 1.5748, gu: 0.1873, gv: 0.4681, bu: 1.8556},
}

// matrix holds YCbCr to RGB coefficients in 16.16 fixed point.
type matrix struct {
	y, rv, gu, gv, bu int32
	yOffset           int32
}

const (
	fixShift = 16
	fixHalf  = 1 << (fixShift - 1)
)

func fix(f float64) int32 {
	return int32(math.Round(f * (1 << fixShift)))
}

func newMatrix(e Encoding, q Quantization) matrix {
	c, ok := encodings[e]
	if !ok {
		c = encodings[BT601]
	}
	ys, cs := 1.0, 1.0
	var off int32
	if q == LimitedRange {
		ys = 255.0 / 219.0
		cs = 255.0 / 224.0
		off = 16
	}
	return matrix{
		y:       fix(ys),
		rv:      fix(c.rv * cs),
		gu:      fix(c.gu * cs),
		gv:      fix(c.gv * cs),
		bu:      fix(c.bu * cs),
		yOffset: off,
	}
}

// rgb converts one YCbCr sample. Adding half before the arithmetic shift
// rounds half up.
func (m *matrix) rgb(y, u, v uint8) (r, g, b uint8) {
	yy := (int32(y)-m.yOffset)*m.y + fixHalf
	cb := int32(u) - 128
	cr := int32(v) - 128
	r = clamp((yy + m.rv*cr) >> fixShift)
	g = clamp((yy - m.gu*cb - m.gv*cr) >> fixShift)
	b = clamp((yy + m.bu*cb) >> fixShift)
	return r, g, b
}

func clamp(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
