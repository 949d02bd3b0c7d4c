package region

import (
	"facestream/internal/detection"
	"facestream/internal/logger"
	"facestream/internal/metrics"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// DefaultJPEGQuality matches what browsers use for canvas JPEG snapshots.
const DefaultJPEGQuality = 92

// Extraction is the outcome of one cycle: a region and its JPEG bytes, or a Skip reason.
type Extraction struct {
	Region Rect
	JPEG   []byte
	Skip   Skip
}

func (e Extraction) Found() bool {
	return e.Skip == SkipNone
}

type Extractor struct {
	quality int
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewExtractor(quality int, logger *logger.Logger, metrics *metrics.Metrics) *Extractor {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Extractor{quality: quality, logger: logger, metrics: metrics}
}

// Extract crops the first detection out of the result's frame. It never
// panics and never returns an error: every failure is a Skip.
func (e *Extractor) Extract(result detection.Result) Extraction {
	if len(result.Detections) == 0 {
		return Extraction{Skip: SkipNoDetections}
	}
	if result.Image.Empty() {
		return Extraction{Skip: SkipNoFrame}
	}

	// First detection wins; there is no ranking by score or size.
	rect, skip := Clamp(result.Detections[0].BoundingBox, result.Image.Cols(), result.Image.Rows())
	if skip != SkipNone {
		return Extraction{Skip: skip}
	}

	start := time.Now()
	jpeg, err := e.encode(result.Image, rect)
	e.metrics.ObserveExtract(time.Since(start).Seconds())
	if err != nil {
		e.logger.Trace("Region %+v not encoded: %v", rect, err)
		return Extraction{Skip: SkipEncodeFailed}
	}
	return Extraction{Region: rect, JPEG: jpeg}
}

func (e *Extractor) encode(frame gocv.Mat, rect Rect) (jpeg []byte, err error) {
	// OpenCV can still reject a region the clamp accepted; treat that like any
	// other encode failure.
	defer func() {
		if r := recover(); r != nil {
			jpeg, err = nil, fmt.Errorf("crop %+v: %v", rect, r)
		}
	}()

	crop := frame.Region(rect.Image())
	defer crop.Close()

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, crop, []int{int(gocv.IMWriteJpegQuality), e.quality})
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
