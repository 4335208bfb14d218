// Package device implements the backend-agnostic part of audio devices:
// the buffer ring management of synchronous poll devices and asynchronous
// callback devices, and the locking policies devices are shared with.
// Platform packages only provide the hardware access.
package device

import (
	"time"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/log"
	"github.com/pipelined/rtio/ring"
)

// Throttle bounds the latency of poll devices whose hardware buffer is much
// larger than requested.
type Throttle struct {
	// Ratio is how many times the hardware buffer must exceed the latency
	// target to be treated as oversized. Zero disables throttling.
	Ratio int
	// Latency is the target amount of audio queued in hardware. Zero
	// means the span of the whole buffer ring.
	Latency time.Duration
	// Sleep is how long Update sleeps before returning Busy when the
	// hardware already holds the latency target.
	Sleep time.Duration
}

// DefaultThrottle returns the throttle used when none is configured.
func DefaultThrottle() Throttle {
	return Throttle{
		Ratio: 4,
		Sleep: time.Millisecond,
	}
}

// Option configures a device.
type Option func(*options)

type options struct {
	log         log.Logger
	throttle    Throttle
	handoffSize int
	enumerate   func() (*rtio.Devices, error)
}

func newOptions(opts []Option) options {
	o := options{
		throttle:    DefaultThrottle(),
		handoffSize: ring.DefaultHandoffSize,
	}
	for _, option := range opts {
		option(&o)
	}
	o.log = log.OrNop(o.log)
	return o
}

// WithLogger sets the logger diagnostics are reported to.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithThrottle sets the oversized hardware buffer throttle of poll devices.
func WithThrottle(t Throttle) Option {
	return func(o *options) {
		o.throttle = t
	}
}

// WithHandoffSize sets the size in bytes of the capture handoff buffer of
// callback devices. The playback handoff always holds the span of the
// buffer ring, so playback latency is set by the sink buffers.
func WithHandoffSize(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.handoffSize = size
		}
	}
}

// WithEnumerator sets the function Devices delegates to.
func WithEnumerator(fn func() (*rtio.Devices, error)) Option {
	return func(o *options) {
		o.enumerate = fn
	}
}

func (o *options) devices() (*rtio.Devices, error) {
	if o.enumerate == nil {
		return nil, rtio.Unsupported
	}
	return o.enumerate()
}
