package img

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// Open decodes a scan from disk, applies EXIF orientation and flattens any
// alpha channel onto white.
func Open(path string) (image.Image, error) {
	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	return forceOpaque(src), nil
}

// EncodePNG is the lossless form handed to the OCR engine.
func EncodePNG(im image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, im, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// convert alpha to white (transparent scans would otherwise read as black ink)
func forceOpaque(im image.Image) image.Image {
	if isOpaque(im) {
		return im
	}
	b := im.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), im, b.Min, draw.Over)
	return dst
}

func isOpaque(im image.Image) bool {
	if o, ok := im.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
