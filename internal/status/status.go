// Package status carries user-facing connection and session notices.
package status

import (
	"facestream/internal/logger"
	"fmt"
	"time"
)

type Kind int

const (
	KindConnecting Kind = iota
	KindConnected
	KindError
	KindReconnecting
	KindFatal
	KindRemoteError
	KindDisconnected
)

func (k Kind) String() string {
	switch k {
	case KindConnecting:
		return "connecting"
	case KindConnected:
		return "connected"
	case KindError:
		return "error"
	case KindReconnecting:
		return "reconnecting"
	case KindFatal:
		return "fatal"
	case KindRemoteError:
		return "remote_error"
	case KindDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Status is one notice for the status surface.
type Status struct {
	Kind        Kind
	Message     string
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
	Time        time.Time
}

// Text renders the notice the way it is shown to the user.
func (s Status) Text() string {
	switch s.Kind {
	case KindConnecting:
		return "Connecting to classifier..."
	case KindConnected:
		return "Connected"
	case KindReconnecting:
		return fmt.Sprintf("Connection lost, retrying in %.1fs (attempt %d/%d)", s.Delay.Seconds(), s.Attempt, s.MaxAttempts)
	case KindFatal:
		return "Fatal: " + s.Message
	case KindRemoteError:
		return "Classifier error: " + s.Message
	case KindDisconnected:
		return "Disconnected"
	default:
		return "Connection error: " + s.Message
	}
}

// Fatal reports whether the notice ends the session's automatic recovery.
func (s Status) Fatal() bool {
	return s.Kind == KindFatal
}

// Reporter receives every status notice. Implementations must not block.
type Reporter interface {
	Report(Status)
}

type ReporterFunc func(Status)

func (f ReporterFunc) Report(s Status) { f(s) }

// Multi fans a notice out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(s Status) {
	for _, r := range m {
		if r != nil {
			r.Report(s)
		}
	}
}

// LogReporter writes notices to the logger at a level matching their kind.
type LogReporter struct {
	logger *logger.Logger
}

func NewLogReporter(logger *logger.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(s Status) {
	switch s.Kind {
	case KindFatal:
		r.logger.Error("🛑 %s", s.Text())
	case KindError, KindRemoteError, KindReconnecting:
		r.logger.Warning("%s", s.Text())
	default:
		r.logger.Info("%s", s.Text())
	}
}
