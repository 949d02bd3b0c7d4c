// Package render draws the annotated frame and hands it to display sinks.
package render

import (
	"facestream/internal/logger"
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"
)

// Surface is the per-cycle drawing target of the dispatch loop.
type Surface interface {
	DrawImage(frame gocv.Mat)
	DrawText(text string)
	Present()
}

// Sink receives the finished frame. The Mat is only valid during the call.
type Sink interface {
	Show(frame gocv.Mat)
}

var (
	labelColor      = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	labelBackground = color.RGBA{R: 0, G: 0, B: 0, A: 0}
)

const (
	labelFont      = gocv.FontHersheySimplex
	labelScale     = 0.8
	labelThickness = 2
	labelMargin    = 10
)

// Canvas keeps its own copy of the frame so overlays never touch the
// detector's image.
type Canvas struct {
	mu     sync.Mutex
	mat    gocv.Mat
	sinks  []Sink
	logger *logger.Logger
}

func NewCanvas(logger *logger.Logger, sinks ...Sink) *Canvas {
	return &Canvas{
		mat:    gocv.NewMat(),
		sinks:  sinks,
		logger: logger,
	}
}

func (c *Canvas) DrawImage(frame gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frame.Empty() {
		return
	}
	frame.CopyTo(&c.mat)
}

// DrawText writes text in the top-left corner on a filled box.
func (c *Canvas) DrawText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mat.Empty() || text == "" {
		return
	}
	if err := c.putLabel(text); err != nil {
		c.logger.Warning("Failed to draw label: %v", err)
	}
}

func (c *Canvas) putLabel(text string) error {
	size := gocv.GetTextSize(text, labelFont, labelScale, labelThickness)
	origin := image.Pt(labelMargin, labelMargin+size.Y)
	box := image.Rect(0, 0, size.X+2*labelMargin, size.Y+2*labelMargin)

	if err := gocv.Rectangle(&c.mat, box, labelBackground, -1); err != nil {
		return fmt.Errorf("draw label background: %w", err)
	}
	if err := gocv.PutText(&c.mat, text, origin, labelFont, labelScale, labelColor, labelThickness); err != nil {
		return fmt.Errorf("draw label text: %w", err)
	}
	return nil
}

// Present hands the current canvas to every sink in order.
func (c *Canvas) Present() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mat.Empty() {
		return
	}
	for _, sink := range c.sinks {
		sink.Show(c.mat)
	}
}

func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mat.Close()
}
