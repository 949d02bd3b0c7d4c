package detection

import (
	"errors"
	"facestream/internal/dto"
	"facestream/internal/logger"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// blobSizes maps a model name to the square network input size.
var blobSizes = map[string]int{
	ModelShortRange: 300,
	ModelFullRange:  600,
}

// DNNDetector runs the OpenCV res10 SSD face model through gocv.
type DNNDetector struct {
	net    gocv.Net
	logger *logger.Logger

	mu       sync.Mutex
	opts     Options
	callback func(Result)
}

// ErrModelUnavailable means the face network could not be loaded.
var ErrModelUnavailable = errors.New("face model unavailable")

// NewDNNDetector loads the network from a caffemodel and its prototxt and
// pins it to the CPU backend.
func NewDNNDetector(modelPath, configPath string, logger *logger.Logger) (*DNNDetector, error) {
	for _, path := range []string{modelPath, configPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s did not load", ErrModelUnavailable, modelPath)
	}
	if err := errors.Join(
		net.SetPreferableBackend(gocv.NetBackendDefault),
		net.SetPreferableTarget(gocv.NetTargetCPU),
	); err != nil {
		net.Close()
		return nil, fmt.Errorf("%w: select CPU backend: %v", ErrModelUnavailable, err)
	}

	logger.Info("Face detection network loaded from %s", modelPath)
	return &DNNDetector{
		net:    net,
		logger: logger,
		opts:   Options{Model: ModelShortRange, MinDetectionConfidence: 0.5},
	}, nil
}

func (d *DNNDetector) SetOptions(opts Options) error {
	if _, ok := blobSizes[opts.Model]; !ok {
		return fmt.Errorf("unknown detector model %q", opts.Model)
	}
	if opts.MinDetectionConfidence < 0 || opts.MinDetectionConfidence > 1 {
		return fmt.Errorf("minDetectionConfidence %.2f outside [0,1]", opts.MinDetectionConfidence)
	}

	d.mu.Lock()
	d.opts = opts
	d.mu.Unlock()
	return nil
}

func (d *DNNDetector) OnResults(fn func(Result)) {
	d.mu.Lock()
	d.callback = fn
	d.mu.Unlock()
}

// Send runs detection on one frame and invokes the results callback before returning.
func (d *DNNDetector) Send(frame gocv.Mat) error {
	if frame.Empty() {
		return errors.New("empty frame")
	}

	d.mu.Lock()
	opts := d.opts
	callback := d.callback
	d.mu.Unlock()

	size := blobSizes[opts.Model]
	blob := gocv.BlobFromImage(frame, 1.0, image.Pt(size, size), gocv.NewScalar(104, 177, 123, 0), false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	// Output rows: [batch_id, class_id, confidence, x1, y1, x2, y2], coordinates normalized.
	reshaped := output.Reshape(1, output.Total()/7)
	defer reshaped.Close()

	rows := make([][7]float32, reshaped.Rows())
	for i := range rows {
		for j := 0; j < 7; j++ {
			rows[i][j] = reshaped.GetFloatAt(i, j)
		}
	}

	detections := parseDetections(rows, opts.MinDetectionConfidence)
	d.logger.Trace("Detected %d face(s)", len(detections))

	if callback != nil {
		callback(Result{Image: frame, Detections: detections})
	}
	return nil
}

func (d *DNNDetector) Close() error {
	return d.net.Close()
}

// parseDetections converts SSD output rows into normalized boxes above the
// confidence floor, in network order.
func parseDetections(rows [][7]float32, minConfidence float64) []Detection {
	var detections []Detection
	for _, row := range rows {
		confidence := float64(row[2])
		if confidence < minConfidence {
			continue
		}
		x1, y1, x2, y2 := float64(row[3]), float64(row[4]), float64(row[5]), float64(row[6])
		detections = append(detections, Detection{
			BoundingBox: dto.BoundingBox{
				XMin:   x1,
				YMin:   y1,
				Width:  x2 - x1,
				Height: y2 - y1,
			},
			Score: confidence,
		})
	}
	return detections
}
