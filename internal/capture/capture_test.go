package capture

import (
	"context"
	"errors"
	"facestream/internal/logger"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type scriptedReader struct {
	frames int
	reads  int
	closed bool
}

func (r *scriptedReader) Read(m *gocv.Mat) bool {
	r.reads++
	if r.reads > r.frames {
		return false
	}
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer blank.Close()
	blank.CopyTo(m)
	return true
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

type countingSink struct {
	frames int
	err    error
	cancel context.CancelFunc
	stopAt int
}

func (s *countingSink) Send(frame gocv.Mat) error {
	s.frames++
	if s.cancel != nil && s.frames == s.stopAt {
		s.cancel()
	}
	return s.err
}

func TestAcquire_RejectsAudio(t *testing.T) {
	_, err := Acquire(context.Background(), "0", Constraints{Width: 640, Height: 480, Audio: true}, logger.Discard())

	assert.ErrorIs(t, err, ErrCaptureUnavailable)
}

func TestAcquire_RejectsInvalidSize(t *testing.T) {
	_, err := Acquire(context.Background(), "0", Constraints{}, logger.Discard())

	assert.ErrorIs(t, err, ErrCaptureUnavailable)
}

func TestAcquire_MissingDevice(t *testing.T) {
	_, err := Acquire(context.Background(), "/nonexistent/camera.mp4", DefaultConstraints, logger.Discard())

	assert.ErrorIs(t, err, ErrCaptureUnavailable)
}

func TestAcquire_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Acquire(ctx, "0", DefaultConstraints, logger.Discard())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSource_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := newSource(&scriptedReader{frames: 1000}, logger.Discard())
	sink := &countingSink{cancel: cancel, stopAt: 5}

	err := src.Run(ctx, sink)

	require.NoError(t, err)
	assert.Equal(t, 5, sink.frames)
}

func TestSource_RunEndsWhenCameraStops(t *testing.T) {
	reader := &scriptedReader{frames: 3}
	src := newSource(reader, logger.Discard())
	src.retryDelay = time.Millisecond
	sink := &countingSink{err: errors.New("busy")}

	err := src.Run(context.Background(), sink)

	assert.ErrorIs(t, err, ErrCaptureLost)
	assert.Equal(t, 3, sink.frames)
	assert.Equal(t, 3+maxReadFailures, reader.reads)

	require.NoError(t, src.Close())
	assert.True(t, reader.closed)
}

func TestSource_BriefOutageDoesNotEndSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reader := &flakyReader{failFor: 2 * maxReadFailures * time.Millisecond}
	src := newSource(reader, logger.Discard())
	src.retryDelay = 5 * time.Millisecond
	sink := &countingSink{cancel: cancel, stopAt: 1}

	start := time.Now()
	err := src.Run(ctx, sink)

	require.NoError(t, err)
	assert.Equal(t, 1, sink.frames)
	assert.GreaterOrEqual(t, time.Since(start), reader.failFor)
}

func TestSource_CancelDuringRetryPause(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := newSource(&scriptedReader{}, logger.Discard())
	src.retryDelay = time.Hour

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, &countingSink{}) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run ignored cancellation while waiting to retry")
	}
}

// flakyReader fails every read until failFor has elapsed since its first read.
type flakyReader struct {
	failFor time.Duration
	started time.Time
}

func (r *flakyReader) Read(m *gocv.Mat) bool {
	if r.started.IsZero() {
		r.started = time.Now()
	}
	if time.Since(r.started) < r.failFor {
		return false
	}
	blank := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer blank.Close()
	blank.CopyTo(m)
	return true
}

func (r *flakyReader) Close() error { return nil }
