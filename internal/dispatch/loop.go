// Package dispatch couples detection callbacks to the classifier link.
package dispatch

import (
	"facestream/internal/detection"
	"facestream/internal/display"
	"facestream/internal/dto"
	"facestream/internal/gate"
	"facestream/internal/link"
	"facestream/internal/logger"
	"facestream/internal/metrics"
	"facestream/internal/region"
	"facestream/internal/render"
	"time"
)

type Extractor interface {
	Extract(result detection.Result) region.Extraction
}

// Link is the part of link.Machine the loop drives.
type Link interface {
	State() link.State
	Connect()
	Send(payload []byte) link.SendResult
}

type Options struct {
	Surface   render.Surface
	Display   *display.State
	Extractor Extractor
	Link      Link
	Gate      *gate.Gate
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	// Now defaults to time.Now.
	Now func() time.Time
}

// Loop runs one cycle per detection callback: draw, overlay, extract, gate, send.
// Nothing in a cycle waits on the network.
type Loop struct {
	surface   render.Surface
	display   *display.State
	extractor Extractor
	link      Link
	gate      *gate.Gate
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewLoop(opts Options) *Loop {
	l := &Loop{
		surface:   opts.Surface,
		display:   opts.Display,
		extractor: opts.Extractor,
		link:      opts.Link,
		gate:      opts.Gate,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Now,
	}
	if l.gate == nil {
		l.gate = gate.New(gate.DefaultInterval)
	}
	if l.logger == nil {
		l.logger = logger.Discard()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// HandleResults is registered as the detector's OnResults callback.
func (l *Loop) HandleResults(result detection.Result) {
	l.render(result)

	extraction := l.extractor.Extract(result)
	if !extraction.Found() {
		l.drop(dropReason(extraction.Skip), "no region: %s", extraction.Skip)
		return
	}

	state := l.link.State()
	if state != link.StateOpen {
		if state == link.StateIdle || state == link.StateClosed {
			l.link.Connect()
		}
		l.drop(metrics.DropLinkNotOpen, "link %s", state)
		return
	}

	// The gate is consulted only once a send is actually possible, so a
	// closed link never burns the interval.
	if !l.gate.TryAdmit(l.now()) {
		l.drop(metrics.DropRateLimited, "rate limited")
		return
	}

	payload, err := dto.NewOutboundMessage(extraction.JPEG).Marshal()
	if err != nil {
		l.logger.Error("Failed to marshal snapshot: %v", err)
		l.metrics.IncDropped(metrics.DropEncode)
		return
	}

	switch res := l.link.Send(payload); res {
	case link.SendAccepted:
		l.metrics.IncSent()
	case link.SendReplaced:
		l.metrics.IncSent()
		l.drop(metrics.DropSuperseded, "unsent snapshot replaced")
	default:
		l.drop(metrics.DropLinkNotOpen, "send %s", res)
	}
}

func (l *Loop) render(result detection.Result) {
	if l.surface == nil {
		return
	}
	l.surface.DrawImage(result.Image)
	if l.display != nil {
		if label, ok := l.display.Label(); ok {
			l.surface.DrawText(label)
		}
	}
	l.surface.Present()
}

func (l *Loop) drop(reason, format string, v ...interface{}) {
	l.metrics.IncDropped(reason)
	l.logger.Trace(format, v...)
}

func dropReason(skip region.Skip) string {
	if skip == region.SkipEncodeFailed {
		return metrics.DropEncode
	}
	return metrics.DropNoRegion
}
