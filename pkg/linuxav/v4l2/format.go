//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

// enumFormats returns all supported pixel formats of an open device,
// including the frame sizes of each.
func enumFormats(fd int, path string) ([]FormatInfo, error) {
	var formats []FormatInfo

	for i := uint32(0); ; i++ {
		fmtdesc := v4l2Fmtdesc{
			index: i,
			typ:   v4l2BufTypeVideoCapture,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFmt, unsafe.Pointer(&fmtdesc)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			return nil, deviceError(fmt.Sprintf("VIDIOC_ENUM_FMT %d", i), path, ioctlErr)
		}

		sizes, err := enumSizes(fd, path, fmtdesc.pixelformat)
		if err != nil {
			return nil, err
		}

		formats = append(formats, FormatInfo{
			PixelFormat: pixfmt.FourCC(fmtdesc.pixelformat),
			FormatName:  cstr(fmtdesc.description[:]),
			Emulated:    fmtdesc.flags&v4l2FmtFlagEmulated != 0,
			Compressed:  fmtdesc.flags&v4l2FmtFlagCompressed != 0,
			Sizes:       sizes,
		})
	}

	return formats, nil
}

// enumSizes returns all supported frame sizes for a pixel format.
func enumSizes(fd int, path string, pixelFormat uint32) ([]Size, error) {
	var sizes []Size

	for i := uint32(0); ; i++ {
		frmsize := v4l2Frmsizeenum{
			index:       i,
			pixelFormat: pixelFormat,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFramesizes, unsafe.Pointer(&frmsize)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			// ENOTTY means device doesn't support frame size enumeration
			if errors.Is(ioctlErr, syscall.ENOTTY) {
				return []Size{}, nil
			}
			return nil, deviceError(fmt.Sprintf("VIDIOC_ENUM_FRAMESIZES %d", i), path, ioctlErr)
		}

		switch frmsize.typ {
		case v4l2FrmsizeTypeDiscrete:
			sizes = append(sizes, Size{
				Width:  frmsize.discrete.width,
				Height: frmsize.discrete.height,
			})
		case v4l2FrmsizeTypeContinuous, v4l2FrmsizeTypeStepwise:
			// For stepwise/continuous, return common sizes within the range
			sizes = append(sizes, stepwiseSizes(&frmsize)...)
			return sizes, nil // Only one stepwise entry
		}
	}

	return sizes, nil
}

// enumFramerates returns all supported framerates for a format and size.
func enumFramerates(fd int, path string, pixelFormat, width, height uint32) ([]Framerate, error) {
	var framerates []Framerate

	for i := uint32(0); ; i++ {
		frmival := v4l2Frmivalenum{
			index:       i,
			pixelFormat: pixelFormat,
			width:       width,
			height:      height,
		}

		if ioctlErr := ioctl(fd, vidiocEnumFrameintervals, unsafe.Pointer(&frmival)); ioctlErr != nil {
			if errors.Is(ioctlErr, syscall.EINVAL) {
				break // End of enumeration
			}
			if errors.Is(ioctlErr, syscall.ENOTTY) {
				return []Framerate{}, nil
			}
			return nil, deviceError(fmt.Sprintf("VIDIOC_ENUM_FRAMEINTERVALS %d", i), path, ioctlErr)
		}

		switch frmival.typ {
		case v4l2FrmivalTypeDiscrete:
			framerates = append(framerates, Framerate{
				Numerator:   frmival.discrete.numerator,
				Denominator: frmival.discrete.denominator,
			})
		case v4l2FrmivalTypeContinuous, v4l2FrmivalTypeStepwise:
			// min and max intervals follow discrete in the union
			stepwise := (*[3]v4l2Fract)(unsafe.Pointer(&frmival.discrete))
			framerates = append(framerates, commonFramerates(stepwise[0], stepwise[1])...)
			return framerates, nil
		}
	}

	return framerates, nil
}

// stepwiseSizes returns common sizes within a stepwise range.
func stepwiseSizes(frmsize *v4l2Frmsizeenum) []Size {
	commonSizes := [][2]uint32{
		{320, 240},  // QVGA
		{640, 480},  // VGA
		{800, 600},  // SVGA
		{1024, 768}, // XGA
		{1280, 720}, // HD
		{1280, 960},
		{1280, 1024}, // SXGA
		{1920, 1080}, // Full HD
		{1920, 1200}, // WUXGA
		{2560, 1440}, // QHD
		{3840, 2160}, // 4K UHD
		{4096, 2160}, // 4K DCI
	}

	// Extract stepwise params from union (stepwise overlays discrete in memory)
	stepwise := (*v4l2FrmsizeStepwise)(unsafe.Pointer(&frmsize.discrete))

	var sizes []Size
	for _, res := range commonSizes {
		w, h := res[0], res[1]
		if w >= stepwise.minWidth && w <= stepwise.maxWidth &&
			h >= stepwise.minHeight && h <= stepwise.maxHeight {
			sizes = append(sizes, Size{Width: w, Height: h})
		}
	}

	return sizes
}

// commonFramerates returns the common framerates whose frame interval lies
// within [minInterval, maxInterval].
func commonFramerates(minInterval, maxInterval v4l2Fract) []Framerate {
	common := []Framerate{
		{1, 60}, // 60 fps
		{1, 50}, // 50 fps
		{1, 30}, // 30 fps
		{1, 25}, // 25 fps
		{1, 20}, // 20 fps
		{1, 15}, // 15 fps
		{1, 10}, // 10 fps
		{1, 5},  // 5 fps
	}

	var out []Framerate
	for _, fr := range common {
		if intervalLess(fr, fract(minInterval)) || intervalLess(fract(maxInterval), fr) {
			continue
		}
		out = append(out, fr)
	}
	return out
}

func fract(f v4l2Fract) Framerate {
	return Framerate{Numerator: f.numerator, Denominator: f.denominator}
}

// intervalLess reports whether frame interval a is shorter than b.
func intervalLess(a, b Framerate) bool {
	if a.Denominator == 0 || b.Denominator == 0 {
		return false
	}
	return uint64(a.Numerator)*uint64(b.Denominator) < uint64(b.Numerator)*uint64(a.Denominator)
}

func getFormat(fd int, path string) (Format, error) {
	f := v4l2Format{typ: v4l2BufTypeVideoCapture}
	if err := ioctl(fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, deviceError("VIDIOC_G_FMT", path, err)
	}
	return formatFromPix(&f.pix), nil
}

func setFormat(fd int, path string, want Format) (Format, error) {
	f := v4l2Format{
		typ: v4l2BufTypeVideoCapture,
		pix: v4l2PixFormat{
			width:       want.Width,
			height:      want.Height,
			pixelformat: uint32(want.PixelFormat),
			field:       v4l2FieldNone,
		},
	}
	if err := ioctl(fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, deviceError("VIDIOC_S_FMT "+want.String(), path, err)
	}
	return formatFromPix(&f.pix), nil
}

func formatFromPix(p *v4l2PixFormat) Format {
	return Format{
		PixelFormat:  pixfmt.FourCC(p.pixelformat),
		Width:        p.width,
		Height:       p.height,
		BytesPerLine: p.bytesperline,
		SizeImage:    p.sizeimage,
		Colorspace:   Colorspace(p.colorspace),
		YCbCrEnc:     YCbCrEncoding(p.ycbcrEnc),
		Quantization: Quantization(p.quantization),
	}
}

func getParm(fd int, path string) (v4l2Streamparm, error) {
	p := v4l2Streamparm{typ: v4l2BufTypeVideoCapture}
	if err := ioctl(fd, vidiocGParm, unsafe.Pointer(&p)); err != nil {
		return p, deviceError("VIDIOC_G_PARM", path, err)
	}
	return p, nil
}

func setFrameInterval(fd int, path string, fr Framerate) (Framerate, error) {
	p := v4l2Streamparm{
		typ: v4l2BufTypeVideoCapture,
		capture: v4l2Captureparm{
			timeperframe: v4l2Fract{numerator: fr.Numerator, denominator: fr.Denominator},
		},
	}
	if err := ioctl(fd, vidiocSParm, unsafe.Pointer(&p)); err != nil {
		return Framerate{}, deviceError("VIDIOC_S_PARM "+fr.String(), path, err)
	}
	return fract(p.capture.timeperframe), nil
}
