package fingerprint

import (
	"image"
	"image/color"
)

// trimTolerance is the per-channel difference below which a pixel still
// counts as background while trimming.
const trimTolerance = 3

// Trim normalizes an image for hashing: borders matching the corner
// background color are cropped and portrait images are rotated to
// landscape, repeatedly until the size is stable. Incidental padding from
// a screenshot or re-export and 90-degree re-orientations then leave both
// hashes unchanged. Renders use whatever background the viewer was set
// to, so the background is sampled from the corners, not assumed black.
func Trim(img image.Image) image.Image {
	for {
		before := img.Bounds()
		img = rotateIfTall(trimOnce(img))
		after := img.Bounds()
		if after.Dx() == before.Dx() && after.Dy() == before.Dy() {
			return img
		}
	}
}

func trimOnce(img image.Image) image.Image {
	bg := BackgroundColor(img)
	bbox, ok := contentBox(img, bg)
	if !ok || bbox == img.Bounds() {
		return img
	}
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	si, ok := img.(subImager)
	if !ok {
		return img
	}
	return si.SubImage(bbox)
}

// contentBox finds the bounding box of pixels whose color differs from
// the background by more than the tolerance in any channel.
func contentBox(img image.Image, bg color.RGBA) (image.Rectangle, bool) {
	bounds := img.Bounds()
	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X, bounds.Min.Y
	found := false
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			if near(int(r>>8), int(bg.R)) && near(int(g>>8), int(bg.G)) && near(int(b>>8), int(bg.B)) {
				continue
			}
			found = true
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if !found {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

func near(c, bg int) bool {
	d := c - bg
	if d < 0 {
		d = -d
	}
	return d <= trimTolerance
}

// rotateIfTall rotates a portrait image 90 degrees counterclockwise so
// the same render exported in either orientation hashes identically.
func rotateIfTall(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if h <= w {
		return img
	}
	out := image.NewRGBA(image.Rect(0, 0, h, w))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			out.Set(x, y, img.At(bounds.Min.X+w-1-y, bounds.Min.Y+x))
		}
	}
	return out
}
