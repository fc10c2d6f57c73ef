package capture

import (
	"bytes"
	"errors"
	"image/jpeg"
	"testing"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

func rgbFrame(bgr bool, data ...byte) *Frame {
	return &Frame{
		Data:    data,
		Format:  pixfmt.YUYV,
		Width:   uint32(len(data) / 3),
		Height:  1,
		Decoded: true,
		BGR:     bgr,
	}
}

func TestEncodePGM(t *testing.T) {
	frame := rgbFrame(false, 255, 255, 255, 0, 0, 0, 255, 0, 0)

	var buf bytes.Buffer
	if err := EncodePGM(&buf, frame); err != nil {
		t.Fatalf("EncodePGM() error = %v", err)
	}

	want := append([]byte("P5\n3 1\n255\n"), 255, 0, 54)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("EncodePGM() = %q, want %q", buf.Bytes(), want)
	}
}

func TestLuma(t *testing.T) {
	tests := []struct {
		name string
		rgb  []byte
		bgr  bool
		want byte
	}{
		{"white", []byte{255, 255, 255}, false, 255},
		{"black", []byte{0, 0, 0}, false, 0},
		{"red", []byte{255, 0, 0}, false, 54},
		{"green", []byte{0, 255, 0}, false, 182},
		{"blue", []byte{0, 0, 255}, false, 18},
		{"blue as bgr", []byte{255, 0, 0}, true, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Luma(tt.rgb, tt.bgr)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("Luma(%v) = %v, want [%d]", tt.rgb, got, tt.want)
			}
		})
	}
}

func TestEncodePPMSwapsBGR(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePPM(&buf, rgbFrame(true, 1, 2, 3)); err != nil {
		t.Fatalf("EncodePPM() error = %v", err)
	}
	want := append([]byte("P6\n1 1\n255\n"), 3, 2, 1)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("EncodePPM() = %v, want %v", buf.Bytes(), want)
	}
}

func TestFrameImage(t *testing.T) {
	img, err := rgbFrame(true, 10, 20, 30).Image()
	if err != nil {
		t.Fatalf("Image() error = %v", err)
	}
	if got := img.Pix[:4]; !bytes.Equal(got, []byte{30, 20, 10, 255}) {
		t.Errorf("Pix = %v, want [30 20 10 255]", got)
	}
}

func TestEncodeJPEG(t *testing.T) {
	data := make([]byte, 8*8*3)
	for i := range data {
		data[i] = 200
	}
	frame := &Frame{Data: data, Width: 8, Height: 8, Decoded: true}

	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, frame, 0); err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}
	cfg, err := jpeg.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("DecodeConfig() error = %v", err)
	}
	if cfg.Width != 8 || cfg.Height != 8 {
		t.Errorf("size = %dx%d, want 8x8", cfg.Width, cfg.Height)
	}
}

func TestEncodeRejectsRawFrames(t *testing.T) {
	raw := &Frame{Data: []byte{1, 2, 3, 4}, Format: pixfmt.YUYV, Width: 2, Height: 1}

	for _, format := range []ImageFormat{ImagePNG, ImageJPEG, ImagePGM, ImagePPM} {
		if err := Encode(&bytes.Buffer{}, raw, format, 0); !errors.Is(err, ErrNotDecoded) {
			t.Errorf("Encode(%s) error = %v, want ErrNotDecoded", format, err)
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, raw, ImageRaw, 0); err != nil || buf.Len() != 4 {
		t.Errorf("Encode(raw) = %d bytes, %v, want 4 bytes", buf.Len(), err)
	}
}

func TestEncodeSizeMismatch(t *testing.T) {
	frame := &Frame{Data: []byte{1, 2, 3}, Width: 2, Height: 1, Decoded: true}
	if err := EncodePNG(&bytes.Buffer{}, frame); err == nil {
		t.Error("EncodePNG() error = nil for a short frame")
	}
}

func TestParseImageFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ImageFormat
		mime    string
		wantErr bool
	}{
		{"png", ImagePNG, "image/png", false},
		{".JPG", ImageJPEG, "image/jpeg", false},
		{"jpeg", ImageJPEG, "image/jpeg", false},
		{"pgm", ImagePGM, "image/x-portable-graymap", false},
		{"ppm", ImagePPM, "image/x-portable-pixmap", false},
		{"raw", ImageRaw, "application/octet-stream", false},
		{"gif", "", "", true},
	}

	for _, tt := range tests {
		got, err := ParseImageFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseImageFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want || (!tt.wantErr && got.ContentType() != tt.mime) {
			t.Errorf("ParseImageFormat(%q) = %q (%s), want %q (%s)", tt.in, got, got.ContentType(), tt.want, tt.mime)
		}
	}
}
