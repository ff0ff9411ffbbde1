package sim

import (
	"errors"

	"github.com/milk9111/boxfall/protocol"
)

// ErrSinkFull is returned by sinks that drop frames instead of blocking.
var ErrSinkFull = errors.New("sim: sink full, frame dropped")

// Sink receives every frame the loop emits. Send must not block the tick.
type Sink interface {
	Send(f protocol.Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(f protocol.Frame) error

func (fn SinkFunc) Send(f protocol.Frame) error {
	return fn(f)
}

// Discard drops every frame.
var Discard Sink = SinkFunc(func(protocol.Frame) error { return nil })

// ChanSink hands frames to a buffered channel and drops them when the
// reader falls behind.
type ChanSink struct {
	C chan protocol.Frame
}

// NewChanSink creates a sink with room for size pending frames.
func NewChanSink(size int) *ChanSink {
	if size < 1 {
		size = 1
	}
	return &ChanSink{C: make(chan protocol.Frame, size)}
}

func (s *ChanSink) Send(f protocol.Frame) error {
	select {
	case s.C <- f:
		return nil
	default:
		return ErrSinkFull
	}
}

// MultiSink sends every frame to each sink in order and joins their errors.
type MultiSink []Sink

func (m MultiSink) Send(f protocol.Frame) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
