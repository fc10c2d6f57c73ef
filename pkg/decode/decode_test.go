package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"runtime"
	"testing"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

func within(a, b uint8, tol int) bool {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	return d <= tol
}

// fill returns n deterministic bytes.
func fill(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*37 + 11)
	}
	return b
}

func TestOutputLength(t *testing.T) {
	for _, info := range pixfmt.All() {
		if info.Layout == pixfmt.LayoutCompressed {
			continue
		}
		for _, dim := range [][2]uint32{{1, 1}, {3, 3}, {4, 2}, {17, 5}} {
			need, err := pixfmt.MinFrameSize(info.Code, dim[0], dim[1])
			if err != nil {
				t.Fatalf("MinFrameSize(%s) error: %v", info.Code, err)
			}
			out, err := Decode(fill(need), info.Code, dim[0], dim[1], false)
			if err != nil {
				t.Errorf("Decode(%s %dx%d) error: %v", info.Code, dim[0], dim[1], err)
				continue
			}
			if want := int(3 * dim[0] * dim[1]); len(out) != want {
				t.Errorf("Decode(%s %dx%d) len = %d, want %d", info.Code, dim[0], dim[1], len(out), want)
			}
		}
	}
}

func TestBGRSwap(t *testing.T) {
	decoders := map[string]*Decoder{
		"default":   New(),
		"nearest":   New(WithDemosaic(NearestNeighbor)),
		"bt709-lim": New(WithEncoding(BT709), WithQuantization(LimitedRange)),
	}
	for name, d := range decoders {
		for _, info := range pixfmt.All() {
			if info.Layout == pixfmt.LayoutCompressed {
				continue
			}
			need, _ := pixfmt.MinFrameSize(info.Code, 6, 4)
			raw := fill(need)
			rgb, err := d.Decode(raw, info.Code, 6, 4, false)
			if err != nil {
				t.Fatalf("%s: Decode(%s) error: %v", name, info.Code, err)
			}
			bgr, err := d.Decode(raw, info.Code, 6, 4, true)
			if err != nil {
				t.Fatalf("%s: Decode(%s, bgr) error: %v", name, info.Code, err)
			}
			for i := 0; i < len(rgb); i += 3 {
				if rgb[i] != bgr[i+2] || rgb[i+1] != bgr[i+1] || rgb[i+2] != bgr[i] {
					t.Errorf("%s: %s pixel %d: rgb %v, bgr %v", name, info.Code, i/3, rgb[i:i+3], bgr[i:i+3])
					break
				}
			}
		}
	}
}

func TestRGB24Identity(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	orig := append([]byte(nil), raw...)

	out, err := Decode(raw, pixfmt.RGB24, 2, 2, false)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if !bytes.Equal(out, orig) {
		t.Errorf("Decode() = %v, want %v", out, orig)
	}

	out, err = Decode(raw, pixfmt.RGB24, 2, 2, true)
	if err != nil {
		t.Fatalf("Decode(bgr) error: %v", err)
	}
	want := []byte{3, 2, 1, 6, 5, 4, 9, 8, 7, 12, 11, 10}
	if !bytes.Equal(out, want) {
		t.Errorf("Decode(bgr) = %v, want %v", out, want)
	}
	if !bytes.Equal(raw, orig) {
		t.Errorf("input modified: %v", raw)
	}

	out[0] = 0xEE
	if raw[0] != 1 {
		t.Error("output aliases input")
	}
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		code   pixfmt.FourCC
		w, h   uint32
		d      *Decoder
		target error
	}{
		{name: "truncated YUYV", raw: make([]byte, 7), code: pixfmt.YUYV, w: 2, h: 2, target: ErrTruncatedInput},
		{name: "truncated NV12", raw: make([]byte, 5), code: pixfmt.NV12, w: 2, h: 2, target: ErrTruncatedInput},
		{name: "truncated Bayer 10", raw: make([]byte, 4), code: pixfmt.SBGGR10, w: 2, h: 2, target: ErrTruncatedInput},
		{name: "empty MJPEG", raw: nil, code: pixfmt.MJPEG, w: 2, h: 2, target: ErrTruncatedInput},
		{name: "unknown code", raw: make([]byte, 64), code: pixfmt.New('Z', 'Z', 'Z', 'Z'), w: 2, h: 2, target: ErrUnsupportedFormat},
		{name: "H264", raw: make([]byte, 64), code: pixfmt.H264, w: 2, h: 2, target: ErrUnsupportedFormat},
		{name: "HEVC", raw: make([]byte, 64), code: pixfmt.HEVC, w: 2, h: 2, target: ErrUnsupportedFormat},
		{name: "zero width", raw: make([]byte, 64), code: pixfmt.RGB24, w: 0, h: 2, target: ErrInvalidSize},
		{name: "zero height", raw: make([]byte, 64), code: pixfmt.RGB24, w: 2, h: 0, target: ErrInvalidSize},
		{name: "over limit", raw: make([]byte, 64), code: pixfmt.GREY, w: 8, h: 8, d: New(WithMaxFrameBytes(100)), target: ErrAllocationFailure},
		{name: "overflow", raw: nil, code: pixfmt.GREY, w: 0xFFFFFFFF, h: 0xFFFFFFFF, target: ErrAllocationFailure},
		{name: "garbage MJPEG", raw: []byte{1, 2, 3, 4}, code: pixfmt.MJPEG, w: 2, h: 2, target: ErrCorruptFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.d
			if d == nil {
				d = New()
			}
			orig := append([]byte(nil), tt.raw...)
			out, err := d.Decode(tt.raw, tt.code, tt.w, tt.h, false)
			if !errors.Is(err, tt.target) {
				t.Errorf("Decode() error = %v, want %v", err, tt.target)
			}
			if out != nil {
				t.Errorf("Decode() returned %d bytes on error", len(out))
			}
			if !bytes.Equal(tt.raw, orig) {
				t.Error("input modified")
			}
		})
	}
}

func TestTruncatedAllocatesNothing(t *testing.T) {
	raw := make([]byte, 100)
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	for i := 0; i < 10; i++ {
		_, _ = Decode(raw, pixfmt.YUYV, 640, 480, false)
	}
	runtime.ReadMemStats(&after)
	// only the wrapped errors
	if n := after.TotalAlloc - before.TotalAlloc; n >= 640*480*3 {
		t.Errorf("truncated decodes allocated %d bytes", n)
	}
}

func TestYUYVMidGray(t *testing.T) {
	raw := []byte{128, 128, 128, 128, 128, 128, 128, 128}
	for _, d := range []*Decoder{New(), New(WithEncoding(BT709))} {
		out, err := d.Decode(raw, pixfmt.YUYV, 4, 1, false)
		if err != nil {
			t.Fatalf("Decode() error: %v", err)
		}
		for i, v := range out {
			if !within(v, 128, 1) {
				t.Errorf("%s: byte %d = %d, want 128±1", d.Encoding(), i, v)
			}
		}
	}
}

func TestYUYVBlack(t *testing.T) {
	raw := []byte{16, 128, 16, 128}
	d := New(WithQuantization(LimitedRange))
	out, err := d.Decode(raw, pixfmt.YUYV, 2, 1, false)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	for i, v := range out {
		if !within(v, 0, 2) {
			t.Errorf("byte %d = %d, want 0±2", i, v)
		}
	}

	// Full range keeps luma 16 as a dark grey.
	out, err = Decode(raw, pixfmt.YUYV, 2, 1, false)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	for i, v := range out {
		if v != 16 {
			t.Errorf("full range byte %d = %d, want 16", i, v)
		}
	}
}

func TestYUVFormula(t *testing.T) {
	// Y=100 U=90 V=200 under the BT.601 full-range formula:
	// R = 100 + 1.402*72 = 200.9
	// G = 100 + 0.344*38 - 0.714*72 = 61.68
	// B = 100 - 1.772*38 = 32.66
	tests := []struct {
		name string
		code pixfmt.FourCC
		raw  []byte
	}{
		{"YUYV", pixfmt.YUYV, []byte{100, 90, 100, 200}},
		{"YVYU", pixfmt.YVYU, []byte{100, 200, 100, 90}},
		{"UYVY", pixfmt.UYVY, []byte{90, 100, 200, 100}},
		{"VYUY", pixfmt.VYUY, []byte{200, 100, 90, 100}},
		{"NV12", pixfmt.NV12, []byte{100, 100, 100, 100, 90, 200}},
		{"NV21", pixfmt.NV21, []byte{100, 100, 100, 100, 200, 90}},
		{"YU12", pixfmt.YUV420, []byte{100, 100, 100, 100, 90, 200}},
		{"YV12", pixfmt.YVU420, []byte{100, 100, 100, 100, 200, 90}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := uint32(1)
			if pixfmt.LayoutOf(tt.code) != pixfmt.LayoutPackedYUV {
				h = 2
			}
			out, err := Decode(tt.raw, tt.code, 2, h, false)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			for i := 0; i < len(out); i += 3 {
				if out[i] != 201 || out[i+1] != 62 || out[i+2] != 33 {
					t.Errorf("pixel %d = %v, want [201 62 33]", i/3, out[i:i+3])
				}
			}
		})
	}
}

func TestYUYVOddWidth(t *testing.T) {
	raw := []byte{10, 128, 20, 128, 30, 128, 40, 128}
	out, err := Decode(raw, pixfmt.YUYV, 3, 1, false)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	want := []byte{10, 10, 10, 20, 20, 20, 30, 30, 30}
	if !bytes.Equal(out, want) {
		t.Errorf("Decode() = %v, want %v", out, want)
	}
}

func TestPackedRGB(t *testing.T) {
	tests := []struct {
		name string
		code pixfmt.FourCC
		raw  []byte
	}{
		{"BGR24", pixfmt.BGR24, []byte{30, 20, 10}},
		{"XRGB32", pixfmt.XRGB32, []byte{0xFF, 10, 20, 30}},
		{"ARGB32", pixfmt.ARGB32, []byte{0x80, 10, 20, 30}},
		{"RGB32", pixfmt.RGB32, []byte{0, 10, 20, 30}},
		{"XBGR32", pixfmt.XBGR32, []byte{30, 20, 10, 0}},
		{"ABGR32", pixfmt.ABGR32, []byte{30, 20, 10, 0xFF}},
		{"BGR32", pixfmt.BGR32, []byte{30, 20, 10, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Decode(tt.raw, tt.code, 1, 1, false)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if !bytes.Equal(out, []byte{10, 20, 30}) {
				t.Errorf("Decode() = %v, want [10 20 30]", out)
			}
		})
	}
}

func TestRGB565(t *testing.T) {
	// pure red, green, blue at full scale
	le := make([]byte, 6)
	binary.LittleEndian.PutUint16(le[0:], 0xF800)
	binary.LittleEndian.PutUint16(le[2:], 0x07E0)
	binary.LittleEndian.PutUint16(le[4:], 0x001F)
	be := make([]byte, 6)
	binary.BigEndian.PutUint16(be[0:], 0xF800)
	binary.BigEndian.PutUint16(be[2:], 0x07E0)
	binary.BigEndian.PutUint16(be[4:], 0x001F)

	want := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}
	for name, tc := range map[string]struct {
		code pixfmt.FourCC
		raw  []byte
	}{
		"RGBP": {pixfmt.RGB565, le},
		"RGBR": {pixfmt.RGB565X, be},
	} {
		out, err := Decode(tc.raw, tc.code, 3, 1, false)
		if err != nil {
			t.Fatalf("%s: Decode() error: %v", name, err)
		}
		if !bytes.Equal(out, want) {
			t.Errorf("%s: Decode() = %v, want %v", name, out, want)
		}
	}
}

func TestGreyWide(t *testing.T) {
	raw := make([]byte, 6)
	binary.LittleEndian.PutUint16(raw[0:], 1023) // Y10 max
	binary.LittleEndian.PutUint16(raw[2:], 512)
	binary.LittleEndian.PutUint16(raw[4:], 0)
	out, err := Decode(raw, pixfmt.Y10, 3, 1, false)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	want := []byte{255, 255, 255, 128, 128, 128, 0, 0, 0}
	if !bytes.Equal(out, want) {
		t.Errorf("Decode() = %v, want %v", out, want)
	}
}

func TestBayerUniform(t *testing.T) {
	codes := []pixfmt.FourCC{pixfmt.SBGGR8, pixfmt.SGBRG8, pixfmt.SGRBG8, pixfmt.SRGGB8}
	for _, code := range codes {
		for _, d := range []*Decoder{New(), New(WithDemosaic(NearestNeighbor))} {
			raw := bytes.Repeat([]byte{77}, 5*3)
			out, err := d.Decode(raw, code, 5, 3, false)
			if err != nil {
				t.Fatalf("Decode(%s) error: %v", code, err)
			}
			for i, v := range out {
				if v != 77 {
					t.Errorf("%s %s: byte %d = %d, want 77", code, d.demosaic, i, v)
					break
				}
			}
		}
	}
}

func TestBayerNearestCell(t *testing.T) {
	// RGGB cell: R=200, G=10 and 30, B=50
	raw := []byte{200, 10, 30, 50}
	d := New(WithDemosaic(NearestNeighbor))
	out, err := d.Decode(raw, pixfmt.SRGGB8, 2, 2, false)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	want := []byte{
		200, 20, 50, // R site
		200, 10, 50, // G site keeps its own sample
		200, 30, 50,
		200, 20, 50, // B site
	}
	if !bytes.Equal(out, want) {
		t.Errorf("Decode() = %v, want %v", out, want)
	}
}

func TestBayerBilinearRedSite(t *testing.T) {
	// 3x3 BGGR mosaic centred on a red site at (1,1)
	// B G B
	// G R G
	// B G B
	raw := []byte{
		10, 40, 30,
		60, 250, 80,
		50, 20, 70,
	}
	out, err := Decode(raw, pixfmt.SBGGR8, 3, 3, false)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	center := out[4*3 : 4*3+3]
	// G = (40+60+80+20)/4, B = (10+30+50+70)/4
	want := []byte{250, 50, 40}
	if !bytes.Equal(center, want) {
		t.Errorf("centre = %v, want %v", center, want)
	}
}

func TestBayer16(t *testing.T) {
	raw := make([]byte, 8)
	for i := 0; i < 4; i++ {
		binary.LittleEndian.PutUint16(raw[i*2:], 0x8000)
	}
	out, err := Decode(raw, pixfmt.SBGGR16, 2, 2, false)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	for i, v := range out {
		if v != 0x80 {
			t.Errorf("byte %d = %d, want 128", i, v)
		}
	}
}

func TestHuffmanSpecs(t *testing.T) {
	for _, s := range huffmanSpecs {
		sum := 0
		for _, b := range s.bits {
			sum += int(b)
		}
		if sum != len(s.values) {
			t.Errorf("table %d/%d: bits sum %d, values %d", s.class, s.id, sum, len(s.values))
		}
	}
	if got := int(standardDHT[2])<<8 | int(standardDHT[3]); got != len(standardDHT)-2 {
		t.Errorf("DHT length = %d, want %d", got, len(standardDHT)-2)
	}
}

func encodeTestJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode() error: %v", err)
	}
	return buf.Bytes()
}

// stripDHT removes every DHT segment, as UVC cameras do for MJPEG.
func stripDHT(t *testing.T, data []byte) []byte {
	t.Helper()
	out := append([]byte(nil), data[:2]...)
	i := 2
	for i+3 < len(data) {
		marker := data[i+1]
		if marker == markerSOS {
			break
		}
		n := 2 + int(binary.BigEndian.Uint16(data[i+2:]))
		if marker != markerDHT {
			out = append(out, data[i:i+n]...)
		}
		i += n
	}
	return append(out, data[i:]...)
}

func TestMJPEG(t *testing.T) {
	data := encodeTestJPEG(t, 16, 8)

	want, err := Decode(data, pixfmt.JPEG, 16, 8, false)
	if err != nil {
		t.Fatalf("Decode(JPEG) error: %v", err)
	}
	if len(want) != 16*8*3 {
		t.Fatalf("Decode(JPEG) len = %d", len(want))
	}

	stripped := stripDHT(t, data)
	if bytes.Contains(stripped, []byte{0xFF, markerDHT}) {
		t.Fatal("stripped frame still has DHT")
	}
	orig := append([]byte(nil), stripped...)
	got, err := Decode(stripped, pixfmt.MJPEG, 16, 8, false)
	if err != nil {
		t.Fatalf("Decode(MJPEG without DHT) error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("frame without DHT decoded differently")
	}
	if !bytes.Equal(stripped, orig) {
		t.Error("input modified")
	}
}

func TestMJPEGSizeMismatch(t *testing.T) {
	data := encodeTestJPEG(t, 16, 8)
	_, err := Decode(data, pixfmt.MJPEG, 8, 8, false)
	if !errors.Is(err, ErrCorruptFrame) {
		t.Errorf("Decode() error = %v, want ErrCorruptFrame", err)
	}
}

func TestDeterministic(t *testing.T) {
	raw := fill(8 * 8 * 2)
	a, _ := Decode(raw, pixfmt.YUYV, 8, 8, false)
	b, _ := Decode(raw, pixfmt.YUYV, 8, 8, false)
	if !bytes.Equal(a, b) {
		t.Error("decode is not deterministic")
	}
}
