// Package capture opens the local camera and feeds its frames to the detector.
package capture

import (
	"context"
	"errors"
	"facestream/internal/logger"
	"fmt"
	"strconv"
	"time"

	"gocv.io/x/gocv"
)

var (
	ErrCaptureUnavailable = errors.New("camera unavailable")
	ErrCaptureLost        = errors.New("camera stopped delivering frames")
)

// A camera that fails maxReadFailures reads in a row, readRetryDelay apart,
// ends the session.
const (
	maxReadFailures = 30
	readRetryDelay  = 100 * time.Millisecond
)

type Constraints struct {
	Width  int
	Height int
	Audio  bool
}

var DefaultConstraints = Constraints{Width: 640, Height: 480, Audio: false}

// FrameSink consumes captured frames. detection.Detector satisfies it.
type FrameSink interface {
	Send(frame gocv.Mat) error
}

type reader interface {
	Read(m *gocv.Mat) bool
	Close() error
}

type Source struct {
	reader     reader
	logger     *logger.Logger
	retryDelay time.Duration
}

// Acquire opens device, which is either a camera index ("0") or a file or
// stream URL, and requests the constrained frame size.
func Acquire(ctx context.Context, device string, c Constraints, logger *logger.Logger) (*Source, error) {
	if c.Audio {
		return nil, fmt.Errorf("%w: audio capture is not supported", ErrCaptureUnavailable)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return nil, fmt.Errorf("%w: invalid frame size %dx%d", ErrCaptureUnavailable, c.Width, c.Height)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var target interface{} = device
	if index, err := strconv.Atoi(device); err == nil {
		target = index
	}

	vc, err := gocv.OpenVideoCapture(target)
	if err != nil {
		return nil, fmt.Errorf("%w: open %q: %v", ErrCaptureUnavailable, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %q did not open", ErrCaptureUnavailable, device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	logger.Info("📷 Camera %s opened at %.0fx%.0f", device, vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))

	return newSource(vc, logger), nil
}

func newSource(r reader, logger *logger.Logger) *Source {
	return &Source{reader: r, logger: logger, retryDelay: readRetryDelay}
}

// Run reads frames until ctx is done or the camera keeps failing. Each frame
// is handed to sink synchronously, so the sink's callbacks run here too.
func (s *Source) Run(ctx context.Context, sink FrameSink) error {
	img := gocv.NewMat()
	defer img.Close()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Frame capture stopped")
			return nil
		default:
		}

		if !s.reader.Read(&img) || img.Empty() {
			failures++
			if failures >= maxReadFailures {
				return fmt.Errorf("%w after %d consecutive failed reads", ErrCaptureLost, failures)
			}
			select {
			case <-ctx.Done():
				s.logger.Info("Frame capture stopped")
				return nil
			case <-time.After(s.retryDelay):
			}
			continue
		}
		failures = 0

		if err := sink.Send(img); err != nil {
			s.logger.Warning("Detector rejected frame: %v", err)
		}
	}
}

func (s *Source) Close() error {
	return s.reader.Close()
}
