package img

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const (
	// ContrastFactor stretches luminance around the image mean.
	ContrastFactor = 2.0
	// Threshold splits the stretched luminance into ink (0) and paper (255).
	Threshold = 140
)

// 3x3 edge enhancement, normalised by the kernel sum (16)
var sharpenKernel = [9]float64{
	-2, -2, -2,
	-2, 32, -2,
	-2, -2, -2,
}

// Normalize turns any scan into a strictly two-level *image.Gray ready for
// deskewing: luminance, contrast stretch, binarization, then sharpening.
// The steps run in that order even though sharpening a two-level image
// only pushes values further towards 0 and 255.
func Normalize(src image.Image) *image.Gray {
	gray := imaging.Grayscale(src)
	mean := meanLuma(gray)

	stretched := imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		v := clampByte(mean + ContrastFactor*(float64(c.R)-mean))
		return color.NRGBA{R: v, G: v, B: v, A: 0xff}
	})

	binary := imaging.AdjustFunc(stretched, func(c color.NRGBA) color.NRGBA {
		v := level(c.R, Threshold)
		return color.NRGBA{R: v, G: v, B: v, A: 0xff}
	})

	sharp := imaging.Convolve3x3(binary, sharpenKernel, &imaging.ConvolveOptions{Normalize: true})
	return binarize(sharp, 128)
}

// meanLuma is rounded to a whole gray level.
func meanLuma(im *image.NRGBA) float64 {
	b := im.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum uint64
	for y := 0; y < b.Dy(); y++ {
		row := im.Pix[y*im.Stride : y*im.Stride+b.Dx()*4]
		for i := 0; i < len(row); i += 4 {
			sum += uint64(row[i])
		}
	}
	return float64(int(float64(sum)/float64(n) + 0.5))
}

// binarize maps an NRGBA image onto {0,255} using its red channel, which
// equals luminance for every image produced in this package.
func binarize(im *image.NRGBA, t uint8) *image.Gray {
	b := im.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := im.Pix[y*im.Stride : y*im.Stride+b.Dx()*4]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+b.Dx()]
		for x := range out {
			out[x] = level(src[x*4], t)
		}
	}
	return dst
}

func level(v, t uint8) uint8 {
	if v < t {
		return 0
	}
	return 255
}

func clampByte(f float64) uint8 {
	switch {
	case f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f)
}
