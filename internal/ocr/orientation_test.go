package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const osdReport = `Page number: 0
Orientation in degrees: 270
Rotate: 90
Orientation confidence: 4.21
Script: Latin
Script confidence: 1.85
`

func TestParseOSD(t *testing.T) {
	tests := []struct {
		name    string
		report  string
		want    Orientation
		wantErr error
	}{
		{"rotate 90", osdReport, 90, nil},
		{"upright", "Rotate: 0\n", 0, nil},
		{"padded", "  Rotate :  180  \r\n", 180, nil},
		{"empty", "", 0, ErrMalformedOSD},
		{"no rotate line", "Script: Arabic\n", 0, ErrMalformedOSD},
		{"garbage value", "Rotate: ninety\n", 0, ErrMalformedOSD},
		{"not a quadrant", "Rotate: 45\n", 0, ErrUnsupportedRotation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOSD(tt.report)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type detectorFunc func() (Orientation, error)

func (f detectorFunc) Orientation(context.Context, image.Image) (Orientation, error) { return f() }

func TestCorrectFallsBackToUpright(t *testing.T) {
	page := image.NewGray(image.Rect(0, 0, 30, 10))

	out, rot := Correct(context.Background(), detectorFunc(func() (Orientation, error) {
		return 0, errors.New("tesseract: osd.traineddata missing")
	}), page)

	assert.Equal(t, Orientation(0), rot)
	assert.Same(t, page, out)
}

func TestCorrectRotatesQuadrants(t *testing.T) {
	page := image.NewGray(image.Rect(0, 0, 30, 10))
	page.Pix[0] = 255 // top-left marker

	out, rot := Correct(context.Background(), detectorFunc(func() (Orientation, error) {
		return 90, nil
	}), page)

	assert.Equal(t, Orientation(90), rot)
	assert.Equal(t, 10, out.Bounds().Dx())
	assert.Equal(t, 30, out.Bounds().Dy())
	// a clockwise quarter turn moves the top-left corner to the top-right
	assert.Equal(t, uint8(255), out.GrayAt(9, 0).Y)
	assert.Equal(t, uint8(0), out.GrayAt(0, 0).Y)

	upside, _ := Correct(context.Background(), detectorFunc(func() (Orientation, error) {
		return 180, nil
	}), page)
	assert.Equal(t, uint8(255), upside.GrayAt(29, 9).Y)
}
