package ocr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/emandor/textconv/internal/img"
	"github.com/emandor/textconv/internal/telemetry"
)

var (
	ErrMalformedOSD        = errors.New("osd report has no Rotate line")
	ErrUnsupportedRotation = errors.New("osd rotation is not a quadrant")
)

// ParseOSD extracts the "Rotate: <deg>" value from a tesseract OSD report.
// When several Rotate lines are present the last one wins.
func ParseOSD(report string) (Orientation, error) {
	var (
		found bool
		deg   int
	)
	sc := bufio.NewScanner(strings.NewReader(report))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok || strings.TrimSpace(key) != "Rotate" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedOSD, sc.Text())
		}
		deg, found = v, true
	}
	if !found {
		return 0, ErrMalformedOSD
	}
	switch deg {
	case 0, 90, 180, 270:
		return Orientation(deg), nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnsupportedRotation, deg)
}

// Correct asks d for the page orientation and turns page upright. Detection
// is best effort: any failure is logged and treated as 0 so the page still
// reaches recognition.
func Correct(ctx context.Context, d Detector, page *image.Gray) (*image.Gray, Orientation) {
	rot, err := d.Orientation(ctx, page)
	if err != nil {
		log := telemetry.L()
		log.Debug().Err(err).Msg("osd_fallback")
		rot = 0
	}
	if rot == 0 {
		return page, 0
	}
	return img.Rotate(page, -float64(rot)), rot
}
