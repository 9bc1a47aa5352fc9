package raster

import (
	"fmt"

	"github.com/inkframe/firmware/font/bitmap"
	"github.com/inkframe/firmware/image/alpha4"
	"golang.org/x/image/math/fixed"
)

// DrawText blits s into buf at (x, y) using face, treating each glyph's
// alpha4 coverage as a direct gray4 ink level. It returns the horizontal
// advance consumed.
func DrawText(buf *Gray4, face *bitmap.Face, x, y int, s string) int {
	dot := fixed.I(x)
	for _, r := range s {
		img, advance, ok := face.Glyph(r)
		if ok {
			blitGlyph(buf, &img, dot.Round(), y)
		} else if adv, ok := face.GlyphAdvance(r); ok {
			advance = adv
		}
		dot += advance
	}
	return dot.Round() - x
}

// blitGlyph copies a glyph's alpha4 coverage into buf at (originX, baseY),
// offset by the glyph's own bounds.
func blitGlyph(buf *Gray4, img *alpha4.Image, originX, baseY int) {
	r := img.Rect.Rect()
	for gy := r.Min.Y; gy < r.Max.Y; gy++ {
		for gx := r.Min.X; gx < r.Max.X; gx++ {
			a := img.AlphaAt(gx, gy)
			if a.A == 0 {
				continue
			}
			buf.Set(originX+gx, baseY+gy, a.A>>4)
		}
	}
}

// DrawClock renders "HH:MM" at (x, y) using face, the clock/UI layout path
// of §4.J. Minutes and hours are zero-padded.
func DrawClock(buf *Gray4, face *bitmap.Face, x, y, hour, minute int) int {
	return DrawText(buf, face, x, y, fmt.Sprintf("%02d:%02d", hour, minute))
}
