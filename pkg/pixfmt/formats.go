package pixfmt

// RGB formats.
const (
	RGB332  FourCC = 'R' | 'G'<<8 | 'B'<<16 | '1'<<24 // 8  RGB-3-3-2
	RGB555  FourCC = 'R' | 'G'<<8 | 'B'<<16 | 'O'<<24 // 16 RGB-5-5-5 LE
	RGB565  FourCC = 'R' | 'G'<<8 | 'B'<<16 | 'P'<<24 // 16 RGB-5-6-5 LE
	RGB565X FourCC = 'R' | 'G'<<8 | 'B'<<16 | 'R'<<24 // 16 RGB-5-6-5 BE
	BGR24   FourCC = 'B' | 'G'<<8 | 'R'<<16 | '3'<<24 // 24 BGR-8-8-8
	RGB24   FourCC = 'R' | 'G'<<8 | 'B'<<16 | '3'<<24 // 24 RGB-8-8-8
	BGR32   FourCC = 'B' | 'G'<<8 | 'R'<<16 | '4'<<24 // 32 BGR-8-8-8-8
	RGB32   FourCC = 'R' | 'G'<<8 | 'B'<<16 | '4'<<24 // 32 RGB-8-8-8-8
	ABGR32  FourCC = 'A' | 'R'<<8 | '2'<<16 | '4'<<24 // 32 BGRA-8-8-8-8
	XBGR32  FourCC = 'X' | 'R'<<8 | '2'<<16 | '4'<<24 // 32 BGRX-8-8-8-8
	ARGB32  FourCC = 'B' | 'A'<<8 | '2'<<16 | '4'<<24 // 32 ARGB-8-8-8-8
	XRGB32  FourCC = 'B' | 'X'<<8 | '2'<<16 | '4'<<24 // 32 XRGB-8-8-8-8
)

// Greyscale formats.
const (
	GREY FourCC = 'G' | 'R'<<8 | 'E'<<16 | 'Y'<<24
	Y10  FourCC = 'Y' | '1'<<8 | '0'<<16 | ' '<<24
	Y12  FourCC = 'Y' | '1'<<8 | '2'<<16 | ' '<<24
	Y16  FourCC = 'Y' | '1'<<8 | '6'<<16 | ' '<<24
)

// Packed 4:2:2 YUV formats.
const (
	YUYV FourCC = 'Y' | 'U'<<8 | 'Y'<<16 | 'V'<<24
	YVYU FourCC = 'Y' | 'V'<<8 | 'Y'<<16 | 'U'<<24
	UYVY FourCC = 'U' | 'Y'<<8 | 'V'<<16 | 'Y'<<24
	VYUY FourCC = 'V' | 'Y'<<8 | 'U'<<16 | 'Y'<<24
)

// Planar and semi-planar YUV formats.
const (
	YUV420  FourCC = 'Y' | 'U'<<8 | '1'<<16 | '2'<<24
	YVU420  FourCC = 'Y' | 'V'<<8 | '1'<<16 | '2'<<24
	YUV422P FourCC = '4' | '2'<<8 | '2'<<16 | 'P'<<24
	YUV444P FourCC = '4' | '4'<<8 | '4'<<16 | 'P'<<24
	NV12    FourCC = 'N' | 'V'<<8 | '1'<<16 | '2'<<24
	NV21    FourCC = 'N' | 'V'<<8 | '2'<<16 | '1'<<24
	NV16    FourCC = 'N' | 'V'<<8 | '1'<<16 | '6'<<24
	NV61    FourCC = 'N' | 'V'<<8 | '6'<<16 | '1'<<24
	NV24    FourCC = 'N' | 'V'<<8 | '2'<<16 | '4'<<24
	NV42    FourCC = 'N' | 'V'<<8 | '4'<<16 | '2'<<24
)

// Bayer formats. 10, 12 and 16-bit variants use one little-endian 16-bit
// word per sample.
const (
	SBGGR8  FourCC = 'B' | 'A'<<8 | '8'<<16 | '1'<<24
	SGBRG8  FourCC = 'G' | 'B'<<8 | 'R'<<16 | 'G'<<24
	SGRBG8  FourCC = 'G' | 'R'<<8 | 'B'<<16 | 'G'<<24
	SRGGB8  FourCC = 'R' | 'G'<<8 | 'G'<<16 | 'B'<<24
	SBGGR10 FourCC = 'B' | 'G'<<8 | '1'<<16 | '0'<<24
	SGBRG10 FourCC = 'G' | 'B'<<8 | '1'<<16 | '0'<<24
	SGRBG10 FourCC = 'B' | 'A'<<8 | '1'<<16 | '0'<<24
	SRGGB10 FourCC = 'R' | 'G'<<8 | '1'<<16 | '0'<<24
	SBGGR12 FourCC = 'B' | 'G'<<8 | '1'<<16 | '2'<<24
	SGBRG12 FourCC = 'G' | 'B'<<8 | '1'<<16 | '2'<<24
	SGRBG12 FourCC = 'B' | 'A'<<8 | '1'<<16 | '2'<<24
	SRGGB12 FourCC = 'R' | 'G'<<8 | '1'<<16 | '2'<<24
	SBGGR16 FourCC = 'B' | 'Y'<<8 | 'R'<<16 | '2'<<24
	SGBRG16 FourCC = 'G' | 'B'<<8 | '1'<<16 | '6'<<24
	SGRBG16 FourCC = 'G' | 'R'<<8 | '1'<<16 | '6'<<24
	SRGGB16 FourCC = 'R' | 'G'<<8 | '1'<<16 | '6'<<24
)

// Compressed formats.
const (
	MJPEG FourCC = 'M' | 'J'<<8 | 'P'<<16 | 'G'<<24
	JPEG  FourCC = 'J' | 'P'<<8 | 'E'<<16 | 'G'<<24
	H264  FourCC = 'H' | '2'<<8 | '6'<<16 | '4'<<24
	HEVC  FourCC = 'H' | 'E'<<8 | 'V'<<16 | 'C'<<24
	VP8   FourCC = 'V' | 'P'<<8 | '8'<<16 | '0'<<24
	VP9   FourCC = 'V' | 'P'<<8 | '9'<<16 | '0'<<24
	MPEG4 FourCC = 'M' | 'P'<<8 | 'G'<<16 | '4'<<24
)

func rgb(code FourCC, desc string, bpp int, order Order) Info {
	return Info{Code: code, Description: desc, Layout: LayoutRGB, BitsPerSample: 8, BytesPerPixel: bpp, Order: order}
}

func grey(code FourCC, desc string, bits int) Info {
	bpp := 1
	if bits > 8 {
		bpp = 2
	}
	return Info{Code: code, Description: desc, Layout: LayoutGrey, BitsPerSample: bits, BytesPerPixel: bpp}
}

func packed(code FourCC, desc string, order Order) Info {
	return Info{Code: code, Description: desc, Layout: LayoutPackedYUV, BitsPerSample: 8, ChromaShiftX: 1, Order: order}
}

func planar(code FourCC, desc string, layout Layout, sx, sy int, order Order) Info {
	return Info{Code: code, Description: desc, Layout: layout, BitsPerSample: 8, ChromaShiftX: sx, ChromaShiftY: sy, Order: order}
}

func bayer(code FourCC, desc string, bits int, tile Order) Info {
	return Info{Code: code, Description: desc, Layout: LayoutBayer, BitsPerSample: bits, Order: tile}
}

func compressed(code FourCC, desc string) Info {
	return Info{Code: code, Description: desc, Layout: LayoutCompressed}
}

// Component orders with special packing.
const (
	OrderRGB332  Order = "RGB332"
	OrderRGB555  Order = "RGB555"
	OrderRGB565  Order = "RGB565"
	OrderRGB565X Order = "RGB565X"
)

var registry = []Info{
	rgb(RGB332, "8-bit RGB 3-3-2", 1, OrderRGB332),
	rgb(RGB555, "16-bit RGB 5-5-5", 2, OrderRGB555),
	rgb(RGB565, "16-bit RGB 5-6-5", 2, OrderRGB565),
	rgb(RGB565X, "16-bit RGB 5-6-5 BE", 2, OrderRGB565X),
	rgb(BGR24, "24-bit BGR 8-8-8", 3, "BGR"),
	rgb(RGB24, "24-bit RGB 8-8-8", 3, "RGB"),
	rgb(BGR32, "32-bit BGRA/X 8-8-8-8", 4, "BGRX"),
	rgb(RGB32, "32-bit A/XRGB 8-8-8-8", 4, "XRGB"),
	rgb(ABGR32, "32-bit BGRA 8-8-8-8", 4, "BGRX"),
	rgb(XBGR32, "32-bit BGRX 8-8-8-8", 4, "BGRX"),
	rgb(ARGB32, "32-bit ARGB 8-8-8-8", 4, "XRGB"),
	rgb(XRGB32, "32-bit XRGB 8-8-8-8", 4, "XRGB"),

	grey(GREY, "8-bit Greyscale", 8),
	grey(Y10, "10-bit Greyscale", 10),
	grey(Y12, "12-bit Greyscale", 12),
	grey(Y16, "16-bit Greyscale", 16),

	packed(YUYV, "YUYV 4:2:2", "YUYV"),
	packed(YVYU, "YVYU 4:2:2", "YVYU"),
	packed(UYVY, "UYVY 4:2:2", "UYVY"),
	packed(VYUY, "VYUY 4:2:2", "VYUY"),

	planar(YUV420, "Planar YUV 4:2:0", LayoutPlanarYUV, 1, 1, "UV"),
	planar(YVU420, "Planar YVU 4:2:0", LayoutPlanarYUV, 1, 1, "VU"),
	planar(YUV422P, "Planar YUV 4:2:2", LayoutPlanarYUV, 1, 0, "UV"),
	planar(YUV444P, "Planar YUV 4:4:4", LayoutPlanarYUV, 0, 0, "UV"),
	planar(NV12, "Y/UV 4:2:0", LayoutSemiPlanarYUV, 1, 1, "UV"),
	planar(NV21, "Y/VU 4:2:0", LayoutSemiPlanarYUV, 1, 1, "VU"),
	planar(NV16, "Y/UV 4:2:2", LayoutSemiPlanarYUV, 1, 0, "UV"),
	planar(NV61, "Y/VU 4:2:2", LayoutSemiPlanarYUV, 1, 0, "VU"),
	planar(NV24, "Y/UV 4:4:4", LayoutSemiPlanarYUV, 0, 0, "UV"),
	planar(NV42, "Y/VU 4:4:4", LayoutSemiPlanarYUV, 0, 0, "VU"),

	bayer(SBGGR8, "8-bit Bayer BGBG/GRGR", 8, "BGGR"),
	bayer(SGBRG8, "8-bit Bayer GBGB/RGRG", 8, "GBRG"),
	bayer(SGRBG8, "8-bit Bayer GRGR/BGBG", 8, "GRBG"),
	bayer(SRGGB8, "8-bit Bayer RGRG/GBGB", 8, "RGGB"),
	bayer(SBGGR10, "10-bit Bayer BGBG/GRGR", 10, "BGGR"),
	bayer(SGBRG10, "10-bit Bayer GBGB/RGRG", 10, "GBRG"),
	bayer(SGRBG10, "10-bit Bayer GRGR/BGBG", 10, "GRBG"),
	bayer(SRGGB10, "10-bit Bayer RGRG/GBGB", 10, "RGGB"),
	bayer(SBGGR12, "12-bit Bayer BGBG/GRGR", 12, "BGGR"),
	bayer(SGBRG12, "12-bit Bayer GBGB/RGRG", 12, "GBRG"),
	bayer(SGRBG12, "12-bit Bayer GRGR/BGBG", 12, "GRBG"),
	bayer(SRGGB12, "12-bit Bayer RGRG/GBGB", 12, "RGGB"),
	bayer(SBGGR16, "16-bit Bayer BGBG/GRGR", 16, "BGGR"),
	bayer(SGBRG16, "16-bit Bayer GBGB/RGRG", 16, "GBRG"),
	bayer(SGRBG16, "16-bit Bayer GRGR/BGBG", 16, "GRBG"),
	bayer(SRGGB16, "16-bit Bayer RGRG/GBGB", 16, "RGGB"),

	compressed(MJPEG, "Motion-JPEG"),
	compressed(JPEG, "JFIF JPEG"),
	compressed(H264, "H.264"),
	compressed(HEVC, "HEVC"),
	compressed(VP8, "VP8"),
	compressed(VP9, "VP9"),
	compressed(MPEG4, "MPEG-4 part 2 ES"),
}

var index = func() map[FourCC]int {
	m := make(map[FourCC]int, len(registry))
	for i, info := range registry {
		m[info.Code] = i
	}
	return m
}()
