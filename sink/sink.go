// Package sink drives a filter chain into a playback device.
package sink

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/filter"
	"github.com/pipelined/rtio/log"
	"github.com/pipelined/rtio/metric"
)

// State of the sink.
type State int32

// States of the sink. Sink goes through them in order, any of them can be
// skipped.
const (
	Idle State = iota
	Priming
	Streaming
	Draining
	Stopped
)

var stateNames = [...]string{
	Idle:      "idle",
	Priming:   "priming",
	Streaming: "streaming",
	Draining:  "draining",
	Stopped:   "stopped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

const (
	// DefaultBuffers is the number of ring buffers.
	DefaultBuffers = 4
	// DefaultBufferSize is the size of a ring buffer in samples.
	DefaultBufferSize = 512
	// DefaultDelay is how long a single Update waits for the device.
	DefaultDelay = 10 * time.Millisecond
	// DefaultDrainTimeout bounds the Draining state.
	DefaultDrainTimeout = 5 * time.Second
)

// ErrAlreadyRun is returned when Run is called more than once.
var ErrAlreadyRun = errors.New("sink already ran")

// Option configures a sink.
type Option func(*Sink)

// WithBuffers sets the number and size of ring buffers.
func WithBuffers(count, size int) Option {
	return func(s *Sink) {
		s.count = count
		s.size = size
	}
}

// WithDelay sets how long a single Update waits for the device.
func WithDelay(d time.Duration) Option {
	return func(s *Sink) {
		s.delay = d
	}
}

// WithDrainTimeout bounds how long queued buffers are played after the
// end of data.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Sink) {
		s.drainTimeout = d
	}
}

// WithDrainOnStop makes Stop keep queued buffers: they are written to the
// device before Run returns. Sinks writing captured audio to files use it,
// so nothing captured is lost.
func WithDrainOnStop() Option {
	return func(s *Sink) {
		s.drainOnStop = true
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Sink) {
		s.log = l
	}
}

// WithMeter sets the meter sink activity is measured with.
func WithMeter(m *metric.Meter) Option {
	return func(s *Sink) {
		s.meter = m
	}
}

// Sink is the terminal node of a chain. It owns the device and runs the
// loop moving buffers from the chain into it.
type Sink struct {
	rtio.UID
	child  filter.Filter
	dev    rtio.Device
	params rtio.Params

	count        int
	size         int
	delay        time.Duration
	drainTimeout time.Duration
	drainOnStop  bool
	log          log.Logger
	meter        *metric.Meter

	state atomic.Int32
	stop  atomic.Bool

	buf     rtio.Buffer
	pending bool
}

// New returns a sink pulling from child into dev. Buffers are allocated
// here, so an unsupported configuration fails before Run.
func New(child filter.Filter, dev rtio.Device, opts ...Option) (*Sink, error) {
	s := &Sink{
		UID:          rtio.NewUID(),
		child:        child,
		dev:          dev,
		params:       dev.Params(),
		count:        DefaultBuffers,
		size:         DefaultBufferSize,
		delay:        DefaultDelay,
		drainTimeout: DefaultDrainTimeout,
	}
	for _, option := range opts {
		option(s)
	}
	s.log = log.OrNop(s.log).WithField("sink", s.ID())
	if cp := child.Params(); cp.Rate != s.params.Rate {
		return nil, rtio.Errorf(rtio.Unsupported, "new sink", fmt.Errorf("chain rate %v, device rate %v", cp.Rate, s.params.Rate))
	}
	if err := dev.SetBuffers(s.count, s.size); err != nil {
		return nil, err
	}
	s.buf = rtio.NewBuffer(s.size, s.params)
	return s, nil
}

// State returns the current state.
func (s *Sink) State() State {
	return State(s.state.Load())
}

func (s *Sink) setState(state State) {
	s.state.Store(int32(state))
	s.meter.State(int(state))
	s.log.WithField("state", state).Debug("state changed")
}

// Stop asks the loop to finish. Buffers which did not start playing are
// dropped, the one in flight finishes. Stop does not wait.
func (s *Sink) Stop() {
	s.stop.Store(true)
}

// Run moves buffers until the chain ends, Stop is called or the device
// fails. Flow control statuses are handled here, only terminal errors and
// chain errors are returned. Run occupies its OS thread until it returns.
func (s *Sink) Run() error {
	if !s.state.CompareAndSwap(int32(Idle), int32(Priming)) {
		return rtio.Errorf(rtio.Invalid, "run", ErrAlreadyRun)
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := raisePriority(); err != nil {
		s.log.WithError(err).Debug("priority not raised")
	}
	s.setState(Priming)
	err := s.run()
	s.setState(Stopped)
	return err
}

// outcome of a chain pull.
type outcome int

const (
	more outcome = iota
	end
	fail
)

// pull reads the next buffer from the chain unless a pulled buffer is
// still waiting for room in the device.
func (s *Sink) pull() (outcome, error) {
	if s.pending {
		return more, nil
	}
	s.buf.Reset()
	s.buf.Params = s.params
	err := s.child.Process(&s.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return end, nil
	default:
		switch st := rtio.StatusOf(err); {
		case st == rtio.Xrun:
			s.xrun("pull", err)
		case st.Transient():
		default:
			return fail, err
		}
	}
	s.pending = s.buf.Valid > 0
	return more, nil
}

// push enqueues the pending buffer. BufferFull keeps it pending.
func (s *Sink) push() error {
	if !s.pending {
		return nil
	}
	err := s.dev.Fill(s.buf.Samples())
	if err != nil {
		s.meter.Status(rtio.StatusOf(err))
		if errors.Is(err, rtio.BufferFull) {
			return nil
		}
		return err
	}
	s.pending = false
	s.meter.Buffer(s.buf.Valid)
	return nil
}

func (s *Sink) xrun(op string, err error) {
	s.meter.Status(rtio.Xrun)
	s.log.WithField("op", op).Infof("xrun: %v", err)
}

func (s *Sink) run() error {
	var (
		queued int
		ended  bool
	)
	for queued < s.count && !s.stop.Load() {
		o, err := s.pull()
		if o == fail {
			return err
		}
		if o == end {
			ended = true
			break
		}
		if !s.pending {
			s.idle()
			continue
		}
		if err := s.push(); err != nil {
			return err
		}
		if s.pending {
			break
		}
		queued++
	}
	if queued == 0 || s.stop.Load() && !s.drainOnStop {
		return s.dev.Discard()
	}
	if err := s.dev.StartPlayback(); err != nil {
		return err
	}

	var failure error
	if !ended {
		s.setState(Streaming)
		failure = s.stream()
	}
	s.setState(Draining)
	if err := s.drain(); failure == nil {
		failure = err
	}
	return failure
}

// stream runs until end of data, Stop or a terminal error.
func (s *Sink) stream() error {
	for {
		if s.stop.Load() {
			return nil
		}
		err := s.dev.Update(s.delay)
		st := rtio.StatusOf(err)
		if err != nil {
			s.meter.Status(st)
		}
		switch {
		case st == rtio.Busy:
			continue
		case st == rtio.Xrun:
			s.xrun("update", err)
			continue
		case st == rtio.Ok || st == rtio.BufferEmpty:
		case st.Terminal():
			return err
		default:
			continue
		}

		o, err := s.pull()
		switch o {
		case end:
			return nil
		case fail:
			return err
		}
		if !s.pending {
			s.idle()
			continue
		}
		if err := s.push(); err != nil {
			return err
		}
	}
}

// idle waits after a pull which produced no samples, so a source without
// data does not make the loop spin.
func (s *Sink) idle() {
	time.Sleep(s.delay)
}

// drain plays queued buffers. After Stop only a buffer already in flight
// is played, unless the sink drains on stop.
func (s *Sink) drain() error {
	discarded := false
	deadline := time.Now().Add(s.drainTimeout)
	for time.Now().Before(deadline) {
		if s.stop.Load() && !s.drainOnStop && !discarded {
			if err := s.dev.Discard(); err != nil {
				return err
			}
			discarded = true
		}
		if s.drainOnStop {
			if err := s.push(); err != nil {
				return err
			}
		}
		err := s.dev.Update(s.delay)
		switch st := rtio.StatusOf(err); {
		case st == rtio.BufferEmpty && !(s.drainOnStop && s.pending):
			return nil
		case st == rtio.Xrun:
			s.xrun("drain", err)
		case st.Terminal():
			return err
		}
	}
	s.log.WithField("timeout", s.drainTimeout).Warn("drain timed out")
	return nil
}

// Process pushes a single buffer from the chain into the device without
// running the loop. BufferFull is returned if the device has no room.
func (s *Sink) Process(b *rtio.Buffer) error {
	if err := s.child.Process(b); err != nil {
		return err
	}
	if b.Valid == 0 {
		return nil
	}
	return s.dev.Fill(b.Samples())
}

// Params returns params of the device.
func (s *Sink) Params() rtio.Params {
	return s.params
}

// Child implements filter.Filter.
func (s *Sink) Child() filter.Filter {
	return s.child
}

// Close releases the device. The sink must not be running.
func (s *Sink) Close() error {
	if st := s.State(); st != Idle && st != Stopped {
		return rtio.Errorf(rtio.Invalid, "close", fmt.Errorf("sink is %v", st))
	}
	s.setState(Stopped)
	return s.dev.Close()
}
