package render

import "gocv.io/x/gocv"

// WindowSink shows frames in a local OpenCV window. gocv requires windows to
// be driven from the goroutine locked to the main OS thread.
type WindowSink struct {
	window *gocv.Window
}

func NewWindowSink(title string) *WindowSink {
	return &WindowSink{window: gocv.NewWindow(title)}
}

func (w *WindowSink) Show(frame gocv.Mat) {
	w.window.IMShow(frame)
	w.window.WaitKey(1)
}

func (w *WindowSink) Close() error {
	return w.window.Close()
}
