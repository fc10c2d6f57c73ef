package decode

import (
	"encoding/binary"

	"github.com/smazurov/vcap/pkg/pixfmt"
)

const (
	red = iota
	green
	blue
)

// tile maps (y&1)*2 + (x&1) to the colour sampled at that site.
type tile [4]int

func parseTile(order pixfmt.Order) tile {
	var t tile
	for i, c := range string(order) {
		if i >= len(t) {
			break
		}
		switch c {
		case 'R':
			t[i] = red
		case 'G':
			t[i] = green
		case 'B':
			t[i] = blue
		}
	}
	return t
}

func (t tile) at(x, y int) int {
	return t[(y&1)*2+(x&1)]
}

func (d *Decoder) decodeBayer(out, raw []byte, info pixfmt.Info, w, h int, bgr bool) {
	plane := raw[:w*h]
	if info.BitsPerSample > 8 {
		plane = make([]byte, w*h)
		shift := uint(info.BitsPerSample - 8)
		for i := range plane {
			plane[i] = narrow(binary.LittleEndian.Uint16(raw[i*2:]), shift)
		}
	}

	t := parseTile(info.Order)
	if d.demosaic == NearestNeighbor {
		demosaicNearest(out, plane, t, w, h, bgr)
		return
	}
	demosaicBilinear(out, plane, t, w, h, bgr)
}

// demosaicBilinear keeps each site's own sample and averages the other two
// colours over the in-bounds 3x3 neighbourhood.
func demosaicBilinear(out, plane []byte, t tile, w, h int, bgr bool) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum, cnt [3]int
			for yy := y - 1; yy <= y+1; yy++ {
				if yy < 0 || yy >= h {
					continue
				}
				for xx := x - 1; xx <= x+1; xx++ {
					if xx < 0 || xx >= w {
						continue
					}
					c := t.at(xx, yy)
					sum[c] += int(plane[yy*w+xx])
					cnt[c]++
				}
			}
			px := resolve(sum, cnt, t.at(x, y), plane[y*w+x])
			put(out, (y*w+x)*3, px[red], px[green], px[blue], bgr)
		}
	}
}

// demosaicNearest fills every pixel of a 2x2 cell from the samples of that
// cell. Cells on an odd trailing edge overlap their neighbour.
func demosaicNearest(out, plane []byte, t tile, w, h int, bgr bool) {
	for y := 0; y < h; y++ {
		by := cellOrigin(y, h)
		for x := 0; x < w; x++ {
			bx := cellOrigin(x, w)
			var sum, cnt [3]int
			for yy := by; yy < by+2 && yy < h; yy++ {
				for xx := bx; xx < bx+2 && xx < w; xx++ {
					c := t.at(xx, yy)
					sum[c] += int(plane[yy*w+xx])
					cnt[c]++
				}
			}
			px := resolve(sum, cnt, t.at(x, y), plane[y*w+x])
			put(out, (y*w+x)*3, px[red], px[green], px[blue], bgr)
		}
	}
}

func cellOrigin(v, limit int) int {
	o := v &^ 1
	if o+1 >= limit && o > 0 {
		o--
	}
	return o
}

func resolve(sum, cnt [3]int, own int, sample byte) [3]uint8 {
	var px [3]uint8
	for c := range px {
		switch {
		case c == own:
			px[c] = sample
		case cnt[c] > 0:
			px[c] = uint8((sum[c] + cnt[c]/2) / cnt[c])
		}
	}
	return px
}
