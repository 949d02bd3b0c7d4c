// Package region turns a detection into a clamped pixel rectangle and a JPEG
// snapshot of it. "No region" is a normal outcome, reported through Skip.
package region

import (
	"facestream/internal/dto"
	"image"
	"math"
)

// Rect is a pixel rectangle inside the frame: X,Y >= 0, W,H >= 1,
// X+W <= frame width and Y+H <= frame height.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Skip says why a cycle produced no region. SkipNone means a region was produced.
type Skip int

const (
	SkipNone Skip = iota
	SkipNoDetections
	SkipNoFrame
	SkipNonFinite
	SkipDegenerate
	SkipEncodeFailed
)

func (s Skip) String() string {
	switch s {
	case SkipNone:
		return "none"
	case SkipNoDetections:
		return "no detections"
	case SkipNoFrame:
		return "no frame"
	case SkipNonFinite:
		return "non-finite geometry"
	case SkipDegenerate:
		return "degenerate geometry"
	case SkipEncodeFailed:
		return "encode failed"
	default:
		return "unknown"
	}
}

// Clamp scales a normalized box to the frame and clamps it into bounds.
// The origin comes from XMin/YMin.
func Clamp(box dto.BoundingBox, frameWidth, frameHeight int) (Rect, Skip) {
	return ClampPixels(
		box.XMin*float64(frameWidth),
		box.YMin*float64(frameHeight),
		box.Width*float64(frameWidth),
		box.Height*float64(frameHeight),
		frameWidth, frameHeight,
	)
}

// ClampPixels clamps a raw pixel rectangle into a frameWidth x frameHeight frame.
func ClampPixels(rawX, rawY, rawW, rawH float64, frameWidth, frameHeight int) (Rect, Skip) {
	for _, v := range []float64{rawX, rawY, rawW, rawH} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Rect{}, SkipNonFinite
		}
	}
	if frameWidth <= 0 || frameHeight <= 0 || rawW <= 0 || rawH <= 0 {
		return Rect{}, SkipDegenerate
	}

	x := floorInt(rawX, frameWidth)
	y := floorInt(rawY, frameHeight)

	// Origin past the far edge: the clamp would force a zero-sized region.
	availW, availH := frameWidth-x, frameHeight-y
	if availW <= 0 || availH <= 0 {
		return Rect{}, SkipDegenerate
	}

	w := max(1, floorInt(rawW, availW))
	h := max(1, floorInt(rawH, availH))
	return Rect{X: x, Y: y, W: w, H: h}, SkipNone
}

// floorInt floors v into [0, limit] so extreme values cannot overflow int.
func floorInt(v float64, limit int) int {
	f := math.Floor(v)
	switch {
	case f <= 0:
		return 0
	case f >= float64(limit):
		return limit
	default:
		return int(f)
	}
}
