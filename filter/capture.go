package filter

import (
	"errors"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/log"
)

// Capture is a source stage reading from a capture device.
type Capture struct {
	dev    rtio.Device
	log    log.Logger
	xruns  int
	closed bool
}

// NewCapture starts capture on dev. The stage owns dev and closes it.
func NewCapture(dev rtio.Device, l log.Logger) (*Capture, error) {
	if err := dev.StartCapture(); err != nil {
		return nil, err
	}
	return &Capture{
		dev: dev,
		log: log.OrNop(l),
	}, nil
}

// Apply reads what the device has and never waits. No data is not an
// error: b.Valid is set to zero and pacing is left to the caller.
func (c *Capture) Apply(b *rtio.Buffer) error {
	n, err := c.dev.Capture(b.Data)
	switch {
	case err == nil:
	case errors.Is(err, rtio.Xrun):
		c.xruns++
		c.log.WithField("xruns", c.xruns).Info("capture overrun, data lost")
	case errors.Is(err, rtio.BufferEmpty):
		n = 0
	default:
		b.Valid = 0
		return err
	}
	b.Valid = n
	b.Empty = n == 0
	return nil
}

// Params returns params of the device.
func (c *Capture) Params() rtio.Params {
	return c.dev.Params()
}

// Xruns returns how many overruns were reported.
func (c *Capture) Xruns() int {
	return c.xruns
}

// Close closes the device.
func (c *Capture) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.dev.Close()
}
