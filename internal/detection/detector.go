// Package detection defines the face-detection capability the pipeline
// consumes and a gocv DNN implementation of it.
package detection

import (
	"facestream/internal/dto"

	"gocv.io/x/gocv"
)

// Model names accepted by SetOptions.
const (
	ModelShortRange = "short"
	ModelFullRange  = "full"
)

type Options struct {
	Model                  string
	MinDetectionConfidence float64
}

// Detection is one face with its box normalized to [0,1] of the frame size.
type Detection struct {
	BoundingBox dto.BoundingBox
	Score       float64
}

// Result is what a detector hands to its results callback for one frame.
// Image is only valid for the duration of the callback.
type Result struct {
	Image      gocv.Mat
	Detections []Detection
}

// Detector runs on frames pushed with Send and reports each outcome,
// synchronously and one at a time, to the callback registered with OnResults.
type Detector interface {
	SetOptions(opts Options) error
	OnResults(fn func(Result))
	Send(frame gocv.Mat) error
	Close() error
}
