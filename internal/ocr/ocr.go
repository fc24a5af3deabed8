// Package ocr defines the text-recognition boundary of the pipeline and the
// orientation correction that runs right before recognition.
package ocr

import (
	"context"
	"image"
)

// Orientation is a coarse page rotation reported by orientation-and-script
// detection: one of 0, 90, 180 or 270 degrees (clockwise).
type Orientation int

// Recognizer turns a prepared page into UTF-8 text.
type Recognizer interface {
	Text(ctx context.Context, page image.Image) (string, error)
}

// Detector reports how far a page is turned away from upright.
type Detector interface {
	Orientation(ctx context.Context, page image.Image) (Orientation, error)
}

// Engine is what the extraction pipeline needs from an OCR backend.
type Engine interface {
	Recognizer
	Detector
}
