package decode

import (
	"strings"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

// macropixel holds the byte offsets of Y0, U, Y1 and V in a packed 4:2:2 group.
type macropixel struct {
	y0, u, y1, v int
}

func parseMacropixel(order pixfmt.Order) macropixel {
	mp := macropixel{y0: -1}
	for i, c := range string(order) {
		switch c {
		case 'Y':
			if mp.y0 < 0 {
				mp.y0 = i
			} else {
				mp.y1 = i
			}
		case 'U':
			mp.u = i
		case 'V':
			mp.v = i
		}
	}
	return mp
}

func (d *Decoder) decodePacked(out, raw []byte, info pixfmt.Info, w, h int, bgr bool) {
	mp := parseMacropixel(info.Order)
	stride := (w + 1) / 2 * 4
	for y := 0; y < h; y++ {
		row := raw[y*stride:]
		o := y * w * 3
		for x := 0; x < w; x += 2 {
			g := row[x*2 : x*2+4]
			u, v := g[mp.u], g[mp.v]
			r0, g0, b0 := d.m.rgb(g[mp.y0], u, v)
			put(out, o+x*3, r0, g0, b0, bgr)
			if x+1 < w {
				r1, g1, b1 := d.m.rgb(g[mp.y1], u, v)
				put(out, o+(x+1)*3, r1, g1, b1, bgr)
			}
		}
	}
}

func chromaSize(info pixfmt.Info, w, h int) (cw, ch int) {
	cw = (w + (1 << info.ChromaShiftX) - 1) >> info.ChromaShiftX
	ch = (h + (1 << info.ChromaShiftY) - 1) >> info.ChromaShiftY
	return cw, ch
}

func (d *Decoder) decodePlanar(out, raw []byte, info pixfmt.Info, w, h int, bgr bool) {
	cw, ch := chromaSize(info, w, h)
	lumaSize := w * h
	first := raw[lumaSize : lumaSize+cw*ch]
	second := raw[lumaSize+cw*ch : lumaSize+2*cw*ch]
	uPlane, vPlane := first, second
	if strings.HasPrefix(string(info.Order), "V") {
		uPlane, vPlane = second, first
	}

	sx, sy := info.ChromaShiftX, info.ChromaShiftY
	for y := 0; y < h; y++ {
		crow := (y >> sy) * cw
		for x := 0; x < w; x++ {
			ci := crow + x>>sx
			r, g, b := d.m.rgb(raw[y*w+x], uPlane[ci], vPlane[ci])
			put(out, (y*w+x)*3, r, g, b, bgr)
		}
	}
}

func (d *Decoder) decodeSemiPlanar(out, raw []byte, info pixfmt.Info, w, h int, bgr bool) {
	cw, _ := chromaSize(info, w, h)
	chroma := raw[w*h:]
	uOff, vOff := 0, 1
	if strings.HasPrefix(string(info.Order), "V") {
		uOff, vOff = 1, 0
	}

	sx, sy := info.ChromaShiftX, info.ChromaShiftY
	for y := 0; y < h; y++ {
		crow := (y >> sy) * cw * 2
		for x := 0; x < w; x++ {
			ci := crow + (x>>sx)*2
			r, g, b := d.m.rgb(raw[y*w+x], chroma[ci+uOff], chroma[ci+vOff])
			put(out, (y*w+x)*3, r, g, b, bgr)
		}
	}
}
