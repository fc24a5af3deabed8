package img

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Rotate turns g counter-clockwise by deg degrees. The canvas grows to fit
// the rotated content, exposed corners are filled with white, and the
// interpolated result is thresholded back to two levels.
func Rotate(g *image.Gray, deg float64) *image.Gray {
	if deg == 0 {
		return cloneGray(g)
	}
	return binarize(imaging.Rotate(g, deg, color.White), 128)
}

func cloneGray(g *image.Gray) *image.Gray {
	b := g.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return dst
}
