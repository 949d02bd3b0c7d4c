package link

import "errors"

var (
	ErrRetriesExhausted = errors.New("reconnect attempts exhausted")
	ErrShutdown         = errors.New("link shut down")
	ErrForcedClose      = errors.New("link closed locally")
)
