package img

import (
	"image"
	"math"

	"gonum.org/v1/gonum/mat"
)

// SkewAngle estimates the tilt of g from the principal axis of its
// foreground, i.e. every pixel with a value above zero. The result is in
// degrees, counter-clockwise from the horizontal, in (-45, 45]: an axis
// closer to vertical than horizontal counts as upright, whole quarter
// turns are left to orientation detection.
//
// ok is false when fewer than two foreground pixels exist and no axis can
// be derived. The estimate assumes one dense block of text; sparse or
// multi-column pages can produce large or wrong-sign angles and nothing
// here tries to correct that.
func SkewAngle(g *image.Gray) (angle float64, ok bool) {
	b := g.Bounds()

	// streaming (row, col) moments; a full coordinate matrix for a 300 DPI
	// page would hold millions of points
	var n, meanR, meanC, m2R, m2C, coRC float64
	for y := 0; y < b.Dy(); y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		for x, v := range g.Pix[off : off+b.Dx()] {
			if v == 0 {
				continue
			}
			r, c := float64(y), float64(x)
			n++
			dr := r - meanR
			meanR += dr / n
			dc := c - meanC
			meanC += dc / n
			m2R += dr * (r - meanR)
			m2C += dc * (c - meanC)
			coRC += dr * (c - meanC)
		}
	}
	if n < 2 {
		return 0, false
	}

	cov := mat.NewSymDense(2, []float64{
		m2R / (n - 1), coRC / (n - 1),
		coRC / (n - 1), m2C / (n - 1),
	})
	var es mat.EigenSym
	if !es.Factorize(cov, true) {
		return 0, false
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	k := 0
	if vals[1] > vals[0] {
		k = 1
	}
	vr, vc := vecs.At(0, k), vecs.At(1, k)

	// rows grow downwards, so an axis rising to the right has vr < 0
	angle = math.Atan2(-vr, vc) * 180 / math.Pi
	return foldAngle(angle), true
}

// Deskew rotates g by the negative of its skew angle. An image without
// foreground is returned as is.
func Deskew(g *image.Gray) (*image.Gray, float64) {
	angle, ok := SkewAngle(g)
	if !ok {
		return g, 0
	}
	return Rotate(g, -angle), angle
}

// foldAngle reduces a to the nearest quarter-turn residue in (-45, 45].
// v and -v describe the same axis, and so do a portrait page's long side
// and the text lines across it.
func foldAngle(a float64) float64 {
	for a > 45 {
		a -= 90
	}
	for a <= -45 {
		a += 90
	}
	return a
}
