package fingerprint

import (
	"image"
	"image/color"
)

// namedColors are the reference colors used to describe an image background.
var namedColors = map[string][3]int{
	"Black":       {0, 0, 0},
	"White":       {255, 255, 255},
	"Light Gray":  {32, 32, 32},
	"Medium Gray": {128, 128, 128},
	"Dark Gray":   {224, 224, 224},
	"Red":         {255, 0, 0},
	"Green":       {0, 128, 0},
	"Lime Green":  {0, 255, 0},
	"Blue":        {0, 0, 255},
	"Yellow":      {255, 255, 0},
	"Orange":      {255, 165, 0},
	"Brown":       {139, 69, 19},
	"Pink":        {255, 192, 203},
	"Indigo":      {75, 0, 130},
	"Purple":      {128, 0, 128},
	"Violet":      {238, 130, 238},
}

// ClosestColor names the reference color nearest to c by squared RGB distance.
func ClosestColor(c color.Color) string {
	r, g, b, _ := c.RGBA()
	cr, cg, cb := int(r>>8), int(g>>8), int(b>>8)

	best := ""
	bestDist := 1 << 30
	for name, ref := range namedColors {
		rd := ref[0] - cr
		gd := ref[1] - cg
		bd := ref[2] - cb
		d := rd*rd + gd*gd + bd*bd
		// Ties broken by name so the result is deterministic.
		if d < bestDist || (d == bestDist && (best == "" || name < best)) {
			best = name
			bestDist = d
		}
	}
	return best
}

// BackgroundColor samples a 2x2 block from each corner and returns the
// most common color, ties broken by sample order. This is the background
// the trimming step strips, whatever the viewer was set to.
func BackgroundColor(img image.Image) color.RGBA {
	bounds := img.Bounds()
	x0, x1 := bounds.Min.X, bounds.Max.X-1
	y0, y1 := bounds.Min.Y, bounds.Max.Y-1
	clampX := func(x int) int {
		if x < x0 {
			return x0
		}
		if x > x1 {
			return x1
		}
		return x
	}
	clampY := func(y int) int {
		if y < y0 {
			return y0
		}
		if y > y1 {
			return y1
		}
		return y
	}

	points := []image.Point{
		{x0, y0}, {clampX(x0 + 1), y0}, {x0, clampY(y0 + 1)}, {clampX(x0 + 1), clampY(y0 + 1)},
		{x1, y0}, {clampX(x1 - 1), y0}, {x1, clampY(y0 + 1)}, {clampX(x1 - 1), clampY(y0 + 1)},
		{x0, y1}, {clampX(x0 + 1), y1}, {x0, clampY(y1 - 1)}, {clampX(x0 + 1), clampY(y1 - 1)},
		{x1, y1}, {clampX(x1 - 1), y1}, {x1, clampY(y1 - 1)}, {clampX(x1 - 1), clampY(y1 - 1)},
	}

	counts := make(map[color.RGBA]int, len(points))
	var order []color.RGBA
	for _, p := range points {
		r, g, b, a := img.At(p.X, p.Y).RGBA()
		c := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
		if counts[c] == 0 {
			order = append(order, c)
		}
		counts[c]++
	}
	best := order[0]
	for _, c := range order {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// Corners names the colors of the four corner pixels.
func Corners(img image.Image) map[string]string {
	bounds := img.Bounds()
	return map[string]string{
		"top-left":     ClosestColor(img.At(bounds.Min.X, bounds.Min.Y)),
		"top-right":    ClosestColor(img.At(bounds.Max.X-1, bounds.Min.Y)),
		"bottom-left":  ClosestColor(img.At(bounds.Min.X, bounds.Max.Y-1)),
		"bottom-right": ClosestColor(img.At(bounds.Max.X-1, bounds.Max.Y-1)),
	}
}

// Consensus returns the majority corner color, or "" when the four corners
// disagree. Protein renders normally have a uniform background, so a split
// vote usually means the image was cropped or composited.
func Consensus(corners map[string]string) string {
	counts := make(map[string]int, len(corners))
	for _, name := range corners {
		counts[name]++
	}
	for name, n := range counts {
		if n > len(corners)/2 {
			return name
		}
	}
	return ""
}
