package raster

import (
	"math"
	"math/rand"

	"github.com/inkframe/firmware/bezier"
)

// PixelFunc computes one pixel's gray4 level from its coordinates and the
// scene seed, per §4.J's f(x, y, seed) -> gray4 model.
type PixelFunc func(x, y, seed int) byte

// RenderScene samples fn over every pixel of buf, processing ChunkRows
// scanlines at a time and invoking yield after each chunk so a cooperative
// scheduler can service other tasks between chunks. yield may be nil.
func RenderScene(buf *Gray4, fn PixelFunc, seed int, yield func()) {
	for y0 := 0; y0 < buf.H; y0 += ChunkRows {
		y1 := min(y0+ChunkRows, buf.H)
		for y := y0; y < y1; y++ {
			for x := 0; x < buf.W; x++ {
				buf.Set(x, y, fn(x, y, seed))
			}
		}
		if yield != nil {
			yield()
		}
	}
}

// veinSet is a handful of bezier curves radiating across the frame, used
// as a distance field by MarblePixel.
func veinSet(seed, w, h, n int) []bezier.Cubic {
	r := rand.New(rand.NewSource(int64(seed)))
	veins := make([]bezier.Cubic, n)
	for i := range veins {
		veins[i] = bezier.Cubic{
			C0: bezier.Pt(r.Intn(w), r.Intn(h)),
			C1: bezier.Pt(r.Intn(w), r.Intn(h)),
			C2: bezier.Pt(r.Intn(w), r.Intn(h)),
			C3: bezier.Pt(r.Intn(w), r.Intn(h)),
		}
	}
	return veins
}

// sampledVeins renders veins into a coarse sample grid once so MarblePixel
// can afford a nearest-point lookup per pixel instead of re-evaluating a
// bezier interpolator in the inner loop.
func sampledVeins(veins []bezier.Cubic, spacing int) []bezier.Point {
	var pts []bezier.Point
	for _, c := range veins {
		pts = append(pts, bezier.Sample(nil, c, spacing)...)
	}
	return pts
}

// MarblePixel returns a pixel function rendering veined marble: gray level
// rises near a small set of seed-derived bezier veins and fades with
// distance, mimicking polished stone.
func MarblePixel(seed int) PixelFunc {
	veins := veinSet(seed, Width, Height, 4)
	pts := sampledVeins(veins, 6)
	return func(x, y, _ int) byte {
		best := 1 << 30
		p := bezier.Pt(x, y)
		for _, v := range pts {
			if d := sqDist(p, v); d < best {
				best = d
			}
		}
		switch {
		case best < 4:
			return 14
		case best < 64:
			return 9
		case best < 400:
			return 4
		default:
			return 1
		}
	}
}

func sqDist(a, b bezier.Point) int {
	dx, dy := a.X-b.X, a.Y-b.Y
	return dx*dx + dy*dy
}

// ShanshuiPixel returns a pixel function rendering layered mountain
// silhouettes (ink-wash landscape), each layer a seeded random walk over
// the horizon height, closer layers drawn darker.
func ShanshuiPixel(seed int) PixelFunc {
	const layers = 4
	ridgelines := make([][]int, layers)
	r := rand.New(rand.NewSource(int64(seed)))
	for l := 0; l < layers; l++ {
		base := Height/3 + l*Height/8
		line := make([]int, Width)
		h := base
		for x := range line {
			h += r.Intn(5) - 2
			h = clampInt(h, base-Height/6, base+Height/6)
			line[x] = h
		}
		ridgelines[l] = line
	}
	shades := [layers]byte{3, 6, 9, 12}
	return func(x, y, _ int) byte {
		if x < 0 || x >= Width {
			return 0
		}
		for l := layers - 1; l >= 0; l-- {
			if y >= ridgelines[l][x] {
				return shades[l]
			}
		}
		return 0
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SumiSunPixel returns a pixel function rendering a sumi-e style ink sun:
// a solid disc with a ring of seeded brush-stroke rays.
func SumiSunPixel(seed int) PixelFunc {
	cx, cy := Width/2, Height/2
	radius := Height / 5
	r := rand.New(rand.NewSource(int64(seed)))
	const rays = 12
	angles := make([]float64, rays)
	for i := range angles {
		angles[i] = float64(i) * (2 * 3.14159265 / rays)
		angles[i] += (r.Float64() - 0.5) * 0.2
	}
	return func(x, y, _ int) byte {
		dx, dy := x-cx, y-cy
		d2 := dx*dx + dy*dy
		if d2 <= radius*radius {
			return 15
		}
		for _, a := range angles {
			rx := float64(dx)
			ry := float64(dy)
			sa, ca := math.Sincos(a)
			proj := rx*ca + ry*sa
			perp := -rx*sa + ry*ca
			if proj > float64(radius) && proj < float64(radius*3) && perp > -3 && perp < 3 {
				return 7
			}
		}
		return 0
	}
}
