package capture

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"
)

// ErrNotDecoded is returned when an image encoder gets a raw frame.
var ErrNotDecoded = errors.New("frame is not decoded")

// ImageFormat is an output file format for a frame.
type ImageFormat string

// Supported image formats.
const (
	ImagePNG  ImageFormat = "png"
	ImageJPEG ImageFormat = "jpeg"
	ImagePGM  ImageFormat = "pgm"
	ImagePPM  ImageFormat = "ppm"
	ImageRaw  ImageFormat = "raw"
)

// DefaultJPEGQuality is used when a quality of 0 is requested.
const DefaultJPEGQuality = 90

// ParseImageFormat accepts a format name or file extension.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return ImagePNG, nil
	case "jpeg", "jpg":
		return ImageJPEG, nil
	case "pgm":
		return ImagePGM, nil
	case "ppm":
		return ImagePPM, nil
	case "raw", "rgb":
		return ImageRaw, nil
	}
	return "", fmt.Errorf("unknown image format %q", s)
}

// ContentType returns the MIME type for HTTP responses.
func (f ImageFormat) ContentType() string {
	switch f {
	case ImagePNG:
		return "image/png"
	case ImageJPEG:
		return "image/jpeg"
	case ImagePGM:
		return "image/x-portable-graymap"
	case ImagePPM:
		return "image/x-portable-pixmap"
	default:
		return "application/octet-stream"
	}
}

// Encode writes frame in the given format. Raw writes Data as is; the other
// formats need a decoded frame.
func Encode(w io.Writer, frame *Frame, format ImageFormat, quality int) error {
	switch format {
	case ImagePNG:
		return EncodePNG(w, frame)
	case ImageJPEG:
		return EncodeJPEG(w, frame, quality)
	case ImagePGM:
		return EncodePGM(w, frame)
	case ImagePPM:
		return EncodePPM(w, frame)
	case ImageRaw:
		_, err := w.Write(frame.Data)
		return err
	}
	return fmt.Errorf("unknown image format %q", format)
}

// Image converts a decoded frame to an RGBA image.
func (f *Frame) Image() (*image.RGBA, error) {
	if err := f.checkDecoded(); err != nil {
		return nil, err
	}

	w, h := int(f.Width), int(f.Height)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	r, b := 0, 2
	if f.BGR {
		r, b = 2, 0
	}
	for i, j := 0, 0; i < w*h*3; i, j = i+3, j+4 {
		img.Pix[j] = f.Data[i+r]
		img.Pix[j+1] = f.Data[i+1]
		img.Pix[j+2] = f.Data[i+b]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

func (f *Frame) checkDecoded() error {
	if !f.Decoded {
		return fmt.Errorf("%w: %s", ErrNotDecoded, f.Format)
	}
	if want := int(f.Width) * int(f.Height) * 3; len(f.Data) != want {
		return fmt.Errorf("decoded frame is %d bytes, want %d", len(f.Data), want)
	}
	return nil
}

// EncodePNG writes a decoded frame as PNG.
func EncodePNG(w io.Writer, frame *Frame) error {
	img, err := frame.Image()
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

// EncodeJPEG writes a decoded frame as JPEG. Quality 0 selects
// DefaultJPEGQuality.
func EncodeJPEG(w io.Writer, frame *Frame, quality int) error {
	img, err := frame.Image()
	if err != nil {
		return err
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: min(quality, 100)})
}

// EncodePGM writes a decoded frame as a binary 8-bit greymap using BT.709
// luma weights.
func EncodePGM(w io.Writer, frame *Frame) error {
	if err := frame.checkDecoded(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P5\n%d %d\n255\n", frame.Width, frame.Height)
	if _, err := bw.Write(Luma(frame.Data, frame.BGR)); err != nil {
		return err
	}
	return bw.Flush()
}

// EncodePPM writes a decoded frame as a binary 8-bit pixmap.
func EncodePPM(w io.Writer, frame *Frame) error {
	if err := frame.checkDecoded(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "P6\n%d %d\n255\n", frame.Width, frame.Height)
	data := frame.Data
	if frame.BGR {
		data = make([]byte, len(frame.Data))
		for i := 0; i+2 < len(data); i += 3 {
			data[i], data[i+1], data[i+2] = frame.Data[i+2], frame.Data[i+1], frame.Data[i]
		}
	}
	if _, err := bw.Write(data); err != nil {
		return err
	}
	return bw.Flush()
}

// Luma converts packed RGB24 (BGR24 when bgr is set) to 8-bit luma with
// the BT.709 weights 0.2126, 0.7152 and 0.0722, truncating.
func Luma(rgb []byte, bgr bool) []byte {
	out := make([]byte, len(rgb)/3)
	r, b := 0, 2
	if bgr {
		r, b = 2, 0
	}
	for i := range out {
		p := rgb[i*3 : i*3+3]
		out[i] = uint8((2126*uint32(p[r]) + 7152*uint32(p[1]) + 722*uint32(p[b])) / 10000)
	}
	return out
}
