package device

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/ring"
	"github.com/pipelined/rtio/signal"
)

// Driver is the hardware of a callback device. The OS calls fn from its own
// thread: out must be filled with playback bytes, in carries captured bytes.
// Either of them is empty when the stream has no such direction. Bytes are
// little-endian interleaved s16 frames.
type Driver interface {
	Start(fn func(out, in []byte)) error
	Stop() error
	Close() error
}

// Callback is a device driven by the OS. Data crosses between the OS
// thread and the application thread through a handoff buffer; the OS
// callback never waits for the application.
type Callback struct {
	action  rtio.Action
	driver  Driver
	params  rtio.Params
	ring    *ring.Ring
	handoff *ring.Handoff
	scratch []byte
	started bool

	overflow  atomic.Bool
	underruns atomic.Uint64
	reported  uint64
	notify    chan struct{}
	stopOnce  sync.Once
	options
}

// NewCallback returns a callback device for driver.
func NewCallback(action rtio.Action, driver Driver, p rtio.Params, opts ...Option) (*Callback, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	d := &Callback{
		action:  action,
		driver:  driver,
		params:  p,
		notify:  make(chan struct{}, 1),
		options: newOptions(opts),
	}
	if action == rtio.Capture {
		d.handoff = ring.NewHandoff(d.handoffSize, p.FrameSize())
	}
	return d, nil
}

func (d *Callback) require(a rtio.Action, op string) error {
	if d.action == a {
		return nil
	}
	if a == rtio.Playback {
		return rtio.Errorf(rtio.Unsupported, op, errCaptureOnly)
	}
	return rtio.Errorf(rtio.Unsupported, op, errPlaybackOnly)
}

// StartCapture starts the OS stream.
func (d *Callback) StartCapture() error {
	if err := d.require(rtio.Capture, "start capture"); err != nil {
		return err
	}
	if d.started {
		return rtio.Errorf(rtio.Invalid, "start capture", errors.New("already started"))
	}
	if err := d.driver.Start(d.capture); err != nil {
		return rtio.Errorf(rtio.Failed, "start capture", err)
	}
	d.started = true
	d.log.WithField("params", d.params).Debug("capture started")
	return nil
}

// capture runs on the OS thread.
func (d *Callback) capture(_, in []byte) {
	if len(in) == 0 {
		return
	}
	if d.handoff.Write(in) {
		d.overflow.Store(true)
	}
}

// Capture decodes frames delivered by the OS callback. An overflow of the
// handoff is reported once as Xrun.
func (d *Callback) Capture(dst []rtio.Sample) (int, error) {
	if err := d.require(rtio.Capture, "capture"); err != nil {
		return 0, err
	}
	if !d.started {
		return 0, rtio.Errorf(rtio.Invalid, "capture", errors.New("not started"))
	}
	if d.overflow.Swap(false) {
		d.log.WithField("action", d.action).Info("capture: xrun, handoff overflow")
		return 0, rtio.Xrun
	}
	if len(d.scratch) < len(dst)*signal.FrameSize {
		d.scratch = make([]byte, len(dst)*signal.FrameSize)
	}
	n := d.handoff.Read(d.scratch[:len(dst)*signal.FrameSize])
	if n == 0 {
		return 0, rtio.BufferEmpty
	}
	return signal.DecodeBytes(dst, d.scratch[:n]), nil
}

// SetBuffers allocates the ring and a playback handoff holding the same
// amount of audio. The handoff size option does not apply to playback.
func (d *Callback) SetBuffers(count, samples int) error {
	if err := d.require(rtio.Playback, "set buffers"); err != nil {
		return err
	}
	if d.started {
		return rtio.Errorf(rtio.Invalid, "set buffers", errors.New("device is streaming"))
	}
	r, err := ring.New(count, samples, d.params)
	if err != nil {
		return err
	}
	d.ring = r
	d.handoff = ring.NewHandoff(count*samples*d.params.FrameSize(), d.params.FrameSize())
	d.scratch = make([]byte, samples*d.params.FrameSize())
	return nil
}

// Fill enqueues data into the ring.
func (d *Callback) Fill(data []rtio.Sample) error {
	if err := d.require(rtio.Playback, "fill"); err != nil {
		return err
	}
	if d.ring == nil {
		return rtio.Errorf(rtio.Invalid, "fill", errors.New("buffers are not set"))
	}
	return d.ring.Fill(data)
}

// StartPlayback starts the OS stream.
func (d *Callback) StartPlayback() error {
	if err := d.require(rtio.Playback, "start playback"); err != nil {
		return err
	}
	if d.ring == nil {
		return rtio.Errorf(rtio.Invalid, "start playback", errors.New("buffers are not set"))
	}
	if d.started {
		return rtio.Errorf(rtio.Invalid, "start playback", errors.New("already started"))
	}
	// prime the handoff so the first callbacks have data
	d.transfer()
	if err := d.driver.Start(d.playback); err != nil {
		return rtio.Errorf(rtio.Failed, "start playback", err)
	}
	d.started = true
	d.log.WithFields(map[string]interface{}{
		"params":  d.params,
		"buffers": d.ring.Len(),
		"size":    d.ring.Size(),
	}).Debug("playback started")
	return nil
}

// playback runs on the OS thread.
func (d *Callback) playback(out, _ []byte) {
	if len(out) == 0 {
		return
	}
	n := d.handoff.Read(out)
	if n < len(out) {
		clear(out[n:])
		d.underruns.Add(1)
	}
	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// transfer moves pending samples of queued buffers into the handoff and
// reports whether anything was moved.
func (d *Callback) transfer() bool {
	moved := false
	for {
		front, ok := d.ring.Front()
		if !ok {
			return moved
		}
		pending := front.Pending()
		free := d.handoff.Free() / signal.FrameSize
		if free == 0 {
			return moved
		}
		n := min(free, len(pending), len(d.scratch)/signal.FrameSize)
		signal.EncodeBytes(d.scratch, pending[:n])
		written := d.handoff.WriteAvailable(d.scratch[:n*signal.FrameSize]) / signal.FrameSize
		front.Cursor += written
		if written > 0 {
			moved = true
		}
		if front.Cursor >= front.Valid {
			d.ring.Retire()
			continue
		}
		if written < len(pending) {
			return moved
		}
	}
}

// Update encodes queued buffers into the handoff. When the handoff is full
// it waits up to delay for the OS callback to consume data. When only the
// handoff holds audio it waits the same way and returns nil. BufferEmpty is
// returned only when the OS callback consumed everything.
func (d *Callback) Update(delay time.Duration) error {
	if err := d.require(rtio.Playback, "update"); err != nil {
		return err
	}
	if !d.started {
		return rtio.Errorf(rtio.Invalid, "update", errors.New("not started"))
	}
	if n := d.underruns.Load(); n != d.reported {
		d.log.WithField("underruns", n-d.reported).Info("playback: underrun, silence inserted")
		d.reported = n
	}
	if d.ring.Empty() {
		if d.handoff.Len() == 0 {
			return rtio.BufferEmpty
		}
		// the ring has room, but queued audio is still being played
		d.wait(delay)
		return nil
	}
	if d.transfer() {
		return nil
	}
	d.wait(delay)
	return rtio.Busy
}

// wait waits up to delay for the OS callback to consume data.
func (d *Callback) wait(delay time.Duration) {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-d.notify:
	case <-t.C:
	}
}

// Buffered returns frames moved out of the ring which the OS callback did
// not consume yet.
func (d *Callback) Buffered() int {
	if d.handoff == nil {
		return 0
	}
	return d.handoff.Len() / d.params.FrameSize()
}

// Underruns returns how many times the OS callback ran out of data.
func (d *Callback) Underruns() uint64 {
	return d.underruns.Load()
}

// Discard drops queued buffers that did not start a transfer.
func (d *Callback) Discard() error {
	if err := d.require(rtio.Playback, "discard"); err != nil {
		return err
	}
	if d.ring == nil {
		return rtio.Errorf(rtio.Invalid, "discard", errors.New("buffers are not set"))
	}
	d.ring.Discard()
	return nil
}

// Params returns stream params.
func (d *Callback) Params() rtio.Params {
	return d.params
}

// Devices enumerates devices of the backend.
func (d *Callback) Devices() (*rtio.Devices, error) {
	return d.devices()
}

// Ring returns the buffer ring, nil before SetBuffers.
func (d *Callback) Ring() *ring.Ring {
	return d.ring
}

// Close stops the OS stream and releases the driver.
func (d *Callback) Close() error {
	var err error
	d.stopOnce.Do(func() {
		if d.started {
			err = d.driver.Stop()
		}
	})
	if cerr := d.driver.Close(); err == nil {
		err = cerr
	}
	return err
}
