// Package mock provides simulated hardware and chain stages for tests.
package mock

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pipelined/rtio"
)

// ErrXrun is returned by PCM calls configured to fail with an xrun.
var ErrXrun = rtio.Errorf(rtio.Xrun, "mock", errors.New("broken pipe"))

// Ramp returns n samples starting at value from. Left channel counts up
// and right channel counts down, so channel swaps and reordering show up
// in comparisons.
func Ramp(from, n int) []rtio.Sample {
	s := make([]rtio.Sample, n)
	for i := range s {
		s[i] = rampAt(from + i)
	}
	return s
}

func rampAt(i int) rtio.Sample {
	return rtio.Sample{Left: int16(i), Right: int16(-i)}
}

// Counter counts messages and samples. It is safe to read while the
// component is running.
type Counter struct {
	m        sync.Mutex
	messages int
	samples  int
}

func (c *Counter) advance(size int) {
	c.m.Lock()
	c.messages++
	c.samples += size
	c.m.Unlock()
}

// Count returns messages and samples metrics.
func (c *Counter) Count() (messages, samples int) {
	c.m.Lock()
	defer c.m.Unlock()
	return c.messages, c.samples
}

// Source mocks a finite source stage. It produces a ramp of Limit samples
// and then io.EOF.
type Source struct {
	Counter
	Limit       int
	Interval    time.Duration
	ErrorOnCall error
	// ErrorAfter makes ErrorOnCall returned only after that many calls.
	ErrorAfter int
	// SourceParams is returned by Params when set.
	SourceParams rtio.Params
	calls        int
}

// Apply fills b with the next part of the ramp.
func (m *Source) Apply(b *rtio.Buffer) error {
	m.calls++
	if m.ErrorOnCall != nil && m.calls > m.ErrorAfter {
		return m.ErrorOnCall
	}
	_, produced := m.Count()
	if produced >= m.Limit {
		return io.EOF
	}
	time.Sleep(m.Interval)
	n := min(len(b.Data), m.Limit-produced)
	for i := range b.Data[:n] {
		b.Data[i] = rampAt(produced + i)
	}
	b.Valid = n
	b.Empty = false
	m.advance(n)
	return nil
}

// Params returns SourceParams or defaults.
func (m *Source) Params() rtio.Params {
	if m.SourceParams == (rtio.Params{}) {
		return rtio.DefaultParams()
	}
	return m.SourceParams
}

// Order records the order in which stages were called.
type Order struct {
	m     sync.Mutex
	calls []string
}

func (o *Order) add(name string) {
	if o == nil {
		return
	}
	o.m.Lock()
	o.calls = append(o.calls, name)
	o.m.Unlock()
}

// Calls returns names of called stages.
func (o *Order) Calls() []string {
	o.m.Lock()
	defer o.m.Unlock()
	return append([]string(nil), o.calls...)
}

// Recorder mocks a transform stage. It records samples it receives and
// then applies Fn to each of them in place.
type Recorder struct {
	Counter
	Name        string
	Order       *Order
	Fn          func(rtio.Sample) rtio.Sample
	ErrorOnCall error
	m           sync.Mutex
	samples     []rtio.Sample
}

// Apply records and transforms b.
func (m *Recorder) Apply(b *rtio.Buffer) error {
	m.Order.add(m.Name)
	if m.ErrorOnCall != nil {
		return m.ErrorOnCall
	}
	m.m.Lock()
	m.samples = append(m.samples, b.Samples()...)
	m.m.Unlock()
	if m.Fn != nil {
		for i, s := range b.Samples() {
			b.Data[i] = m.Fn(s)
		}
	}
	m.advance(b.Valid)
	return nil
}

// Samples returns a copy of recorded samples.
func (m *Recorder) Samples() []rtio.Sample {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]rtio.Sample(nil), m.samples...)
}

// PCM simulates poll hardware. Zero value is playback hardware with an
// unlimited buffer that plays everything instantly.
type PCM struct {
	m sync.Mutex
	// Frames is the hardware buffer size. Zero means unlimited.
	Frames int
	// Accept limits frames taken by a single Write. Zero means no limit.
	Accept int
	// Consume is how many queued frames are played on every Wait. Zero
	// plays everything.
	Consume int
	// NotReady is the number of Wait calls that time out.
	NotReady int
	// XrunOnWrite is the number of Write calls failing with ErrXrun.
	XrunOnWrite int
	// XrunOnRead is the number of Read calls failing with ErrXrun.
	XrunOnRead int
	// ErrorOnWrite fails every Write.
	ErrorOnWrite error
	// ErrorOnPrepare fails Prepare after the first successful call.
	ErrorOnPrepare error
	// Input is the data captured by Read.
	Input []rtio.Sample
	// Enumeration is returned by Enumerate.
	Enumeration *rtio.Devices

	queued   int
	read     int
	written  []rtio.Sample
	writes   []int
	prepares int
	starts   int
	closed   bool
}

const unlimited = 1 << 20

// Prepare implements device.PCM.
func (m *PCM) Prepare() error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.prepares > 0 && m.ErrorOnPrepare != nil {
		return m.ErrorOnPrepare
	}
	m.prepares++
	m.queued = 0
	return nil
}

// Start implements device.PCM.
func (m *PCM) Start() error {
	m.m.Lock()
	m.starts++
	m.m.Unlock()
	return nil
}

// Wait implements device.PCM. Queued frames are played here.
func (m *PCM) Wait(time.Duration) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.NotReady > 0 {
		m.NotReady--
		return false, nil
	}
	if m.Consume == 0 {
		m.queued = 0
	} else {
		m.queued = max(m.queued-m.Consume, 0)
	}
	return true, nil
}

// Avail implements device.PCM.
func (m *PCM) Avail() (int, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.Input != nil {
		return len(m.Input) - m.read, nil
	}
	if m.Frames == 0 {
		return unlimited, nil
	}
	return m.Frames - m.queued, nil
}

// Write implements device.PCM.
func (m *PCM) Write(samples []rtio.Sample) (int, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.ErrorOnWrite != nil {
		return 0, m.ErrorOnWrite
	}
	if m.XrunOnWrite > 0 {
		m.XrunOnWrite--
		return 0, ErrXrun
	}
	n := len(samples)
	if m.Accept > 0 {
		n = min(n, m.Accept)
	}
	m.written = append(m.written, samples[:n]...)
	m.writes = append(m.writes, n)
	m.queued += n
	return n, nil
}

// Read implements device.PCM.
func (m *PCM) Read(samples []rtio.Sample) (int, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.XrunOnRead > 0 {
		m.XrunOnRead--
		return 0, ErrXrun
	}
	n := copy(samples, m.Input[m.read:])
	m.read += n
	return n, nil
}

// BufferFrames implements device.PCM.
func (m *PCM) BufferFrames() int {
	return m.Frames
}

// Close implements device.PCM.
func (m *PCM) Close() error {
	m.m.Lock()
	m.closed = true
	m.m.Unlock()
	return nil
}

// Enumerate returns Enumeration or a single default mock device.
func (m *PCM) Enumerate() (*rtio.Devices, error) {
	if m.Enumeration != nil {
		return m.Enumeration, nil
	}
	d := rtio.NewDevices()
	d.Set("mock", rtio.DeviceInfo{Name: "Mock PCM", Default: true, Rates: rtio.Rates()})
	return d, nil
}

// Written returns a copy of all written samples.
func (m *PCM) Written() []rtio.Sample {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]rtio.Sample(nil), m.written...)
}

// Writes returns the sizes of successful writes.
func (m *PCM) Writes() []int {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]int(nil), m.writes...)
}

// Prepares returns how many times Prepare succeeded.
func (m *PCM) Prepares() int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.prepares
}

// Closed reports whether Close was called.
func (m *PCM) Closed() bool {
	m.m.Lock()
	defer m.m.Unlock()
	return m.closed
}

// Driver simulates callback hardware. Tests call Tick in place of the OS.
type Driver struct {
	m            sync.Mutex
	fn           func(out, in []byte)
	ErrorOnStart error
	stopped      bool
	closed       bool
}

// Start implements device.Driver.
func (m *Driver) Start(fn func(out, in []byte)) error {
	if m.ErrorOnStart != nil {
		return m.ErrorOnStart
	}
	m.m.Lock()
	m.fn = fn
	m.m.Unlock()
	return nil
}

// Stop implements device.Driver.
func (m *Driver) Stop() error {
	m.m.Lock()
	m.stopped = true
	m.m.Unlock()
	return nil
}

// Close implements device.Driver.
func (m *Driver) Close() error {
	m.m.Lock()
	m.closed = true
	m.m.Unlock()
	return nil
}

// Tick runs the callback once and reports whether the stream is running.
func (m *Driver) Tick(out, in []byte) bool {
	m.m.Lock()
	fn := m.fn
	running := fn != nil && !m.stopped
	m.m.Unlock()
	if !running {
		return false
	}
	fn(out, in)
	return true
}

// Stopped reports whether Stop was called.
func (m *Driver) Stopped() bool {
	m.m.Lock()
	defer m.m.Unlock()
	return m.stopped
}

// Closed reports whether Close was called.
func (m *Driver) Closed() bool {
	m.m.Lock()
	defer m.m.Unlock()
	return m.closed
}
