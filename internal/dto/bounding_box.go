package dto

// BoundingBox is a detection box in coordinates normalized to the frame size.
type BoundingBox struct {
	XMin   float64 `json:"xMin"`
	YMin   float64 `json:"yMin"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
