package img

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"image"

	"github.com/disintegration/imaging"
)

// Thumbnail shrinks im to fit a max×max box, keeping the aspect ratio.
// Images already inside the box are only copied.
func Thumbnail(im image.Image, max int) image.Image {
	if max <= 0 {
		return imaging.Clone(im)
	}
	return imaging.Fit(im, max, max, imaging.Lanczos)
}

// Hash fingerprints a processed page; identical pixels give identical keys.
func Hash(g *image.Gray) string {
	b := g.Bounds()
	h := sha256.New()
	var dims [8]byte
	binary.BigEndian.PutUint32(dims[:4], uint32(b.Dx()))
	binary.BigEndian.PutUint32(dims[4:], uint32(b.Dy()))
	h.Write(dims[:])
	for y := 0; y < b.Dy(); y++ {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		h.Write(g.Pix[off : off+b.Dx()])
	}
	return hex.EncodeToString(h.Sum(nil))
}
