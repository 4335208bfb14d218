package device

import (
	"errors"
	"time"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/ring"
)

// PCM is the hardware of a poll device. It follows ALSA's interleaved
// read/write interface used without blocking: Wait is the only call
// allowed to block and it is bounded by its timeout.
//
// Errors that mean the hardware underran or overran must match rtio.Xrun
// with errors.Is; Prepare is then called once to recover the stream.
type PCM interface {
	// Prepare puts the stream into a state ready to start.
	Prepare() error
	Start() error
	// Wait blocks until the stream is ready or timeout passes.
	Wait(timeout time.Duration) (bool, error)
	// Avail returns how many frames can be written or read right now.
	Avail() (int, error)
	Write(samples []rtio.Sample) (int, error)
	Read(samples []rtio.Sample) (int, error)
	// BufferFrames returns the size of the hardware buffer in frames.
	BufferFrames() int
	Close() error
}

// Poll is a device whose transfers are initiated by the application: every
// Update moves data from the buffer ring to the hardware.
type Poll struct {
	action    rtio.Action
	pcm       PCM
	params    rtio.Params
	ring      *ring.Ring
	started   bool
	oversized bool
	latency   int // frames
	options
}

// NewPoll returns a poll device for pcm. Params are validated here, so an
// unsupported stream never reaches the run loop.
func NewPoll(action rtio.Action, pcm PCM, p rtio.Params, opts ...Option) (*Poll, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Poll{
		action:  action,
		pcm:     pcm,
		params:  p,
		options: newOptions(opts),
	}, nil
}

var (
	errCaptureOnly  = errors.New("device is opened for capture")
	errPlaybackOnly = errors.New("device is opened for playback")
)

func (d *Poll) require(a rtio.Action, op string) error {
	if d.action == a {
		return nil
	}
	if a == rtio.Playback {
		return rtio.Errorf(rtio.Unsupported, op, errCaptureOnly)
	}
	return rtio.Errorf(rtio.Unsupported, op, errPlaybackOnly)
}

// StartCapture prepares and starts the capture stream.
func (d *Poll) StartCapture() error {
	if err := d.require(rtio.Capture, "start capture"); err != nil {
		return err
	}
	if d.started {
		return rtio.Errorf(rtio.Invalid, "start capture", errors.New("already started"))
	}
	if err := d.start(); err != nil {
		return err
	}
	d.log.WithField("params", d.params).Debug("capture started")
	return nil
}

// Capture reads frames the hardware has ready.
func (d *Poll) Capture(dst []rtio.Sample) (int, error) {
	if err := d.require(rtio.Capture, "capture"); err != nil {
		return 0, err
	}
	if !d.started {
		return 0, rtio.Errorf(rtio.Invalid, "capture", errors.New("not started"))
	}
	avail, err := d.pcm.Avail()
	if err != nil {
		if err := d.recover("capture", err); err != nil {
			return 0, err
		}
		return 0, rtio.Xrun
	}
	if avail <= 0 || len(dst) == 0 {
		return 0, rtio.BufferEmpty
	}
	n, err := d.pcm.Read(dst[:min(avail, len(dst))])
	if err != nil {
		if err := d.recover("capture", err); err != nil {
			return n, err
		}
		return n, rtio.Xrun
	}
	return n, nil
}

// SetBuffers allocates the playback ring.
func (d *Poll) SetBuffers(count, samples int) error {
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
	return nil
}

// Fill enqueues data into the ring.
func (d *Poll) Fill(data []rtio.Sample) error {
	if err := d.require(rtio.Playback, "fill"); err != nil {
		return err
	}
	if d.ring == nil {
		return rtio.Errorf(rtio.Invalid, "fill", errors.New("buffers are not set"))
	}
	return d.ring.Fill(data)
}

// StartPlayback prepares the stream and starts consuming the ring.
func (d *Poll) StartPlayback() error {
	if err := d.require(rtio.Playback, "start playback"); err != nil {
		return err
	}
	if d.ring == nil {
		return rtio.Errorf(rtio.Invalid, "start playback", errors.New("buffers are not set"))
	}
	if d.started {
		return rtio.Errorf(rtio.Invalid, "start playback", errors.New("already started"))
	}
	d.latency = d.ring.Len() * d.ring.Size()
	if d.throttle.Latency > 0 {
		d.latency = d.params.Frames(d.throttle.Latency)
	}
	hw := d.pcm.BufferFrames()
	d.oversized = d.throttle.Ratio > 0 && hw > d.throttle.Ratio*d.latency
	if err := d.start(); err != nil {
		return err
	}
	d.log.WithFields(map[string]interface{}{
		"params":    d.params,
		"buffers":   d.ring.Len(),
		"size":      d.ring.Size(),
		"hw_frames": hw,
		"oversized": d.oversized,
	}).Debug("playback started")
	return nil
}

func (d *Poll) start() error {
	if err := d.pcm.Prepare(); err != nil {
		return rtio.Errorf(rtio.Failed, "prepare", err)
	}
	if err := d.pcm.Start(); err != nil {
		return rtio.Errorf(rtio.Failed, "start", err)
	}
	d.started = true
	return nil
}

// Update writes the front buffer to the hardware as far as it accepts.
func (d *Poll) Update(delay time.Duration) error {
	if err := d.require(rtio.Playback, "update"); err != nil {
		return err
	}
	if !d.started {
		return rtio.Errorf(rtio.Invalid, "update", errors.New("not started"))
	}
	front, ok := d.ring.Front()
	if !ok {
		return rtio.BufferEmpty
	}
	ready, err := d.pcm.Wait(delay)
	if err != nil {
		return d.recoverBusy(err)
	}
	if !ready {
		return rtio.Busy
	}
	avail, err := d.pcm.Avail()
	if err != nil {
		return d.recoverBusy(err)
	}
	if avail <= 0 {
		return rtio.Busy
	}
	pending := front.Pending()
	n := min(avail, len(pending))
	if d.oversized {
		if queued := d.pcm.BufferFrames() - avail; queued >= d.latency {
			time.Sleep(d.throttle.Sleep)
			return rtio.Busy
		}
		n = min(n, max(d.params.Frames(delay), 1))
	}
	written, err := d.pcm.Write(pending[:n])
	front.Cursor += written
	if front.Cursor >= front.Valid {
		d.ring.Retire()
	}
	if err != nil {
		return d.recoverBusy(err)
	}
	return nil
}

// recover handles xruns by re-preparing the stream once. Other errors are
// returned as Failed.
func (d *Poll) recover(op string, err error) error {
	if !errors.Is(err, rtio.Xrun) {
		return rtio.Errorf(rtio.Failed, op, err)
	}
	d.log.WithField("action", d.action).Infof("%s: xrun, recovering: %v", op, err)
	if err := d.pcm.Prepare(); err != nil {
		return rtio.Errorf(rtio.Failed, "recover", err)
	}
	if err := d.pcm.Start(); err != nil {
		return rtio.Errorf(rtio.Failed, "recover", err)
	}
	return nil
}

func (d *Poll) recoverBusy(err error) error {
	if err := d.recover("update", err); err != nil {
		return err
	}
	return rtio.Busy
}

// Discard drops queued buffers that did not start a transfer.
func (d *Poll) Discard() error {
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
func (d *Poll) Params() rtio.Params {
	return d.params
}

// Devices enumerates devices of the backend.
func (d *Poll) Devices() (*rtio.Devices, error) {
	return d.devices()
}

// Ring returns the buffer ring, nil before SetBuffers.
func (d *Poll) Ring() *ring.Ring {
	return d.ring
}

// Close closes the hardware.
func (d *Poll) Close() error {
	return d.pcm.Close()
}
