package filter

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/pipelined/rtio"
)

var errNoRate = errors.New("stream has no sample rate")

func checkFormat(op string, p rtio.Params) error {
	if p.Layout != rtio.InterleavedS16 {
		return rtio.Errorf(rtio.Unsupported, op, fmt.Errorf("layout %v", p.Layout))
	}
	if p.Rate.Hz() == 0 {
		return rtio.Errorf(rtio.Unsupported, op, errNoRate)
	}
	return nil
}

// Echo mixes the stream with its own output delayed by a fixed time.
type Echo struct {
	Switch
	delay float64
	decay float64
	line  []rtio.Sample
	pos   int
}

// NewEcho returns an echo with delay in seconds. Decay is the weight of
// the delayed signal, in [0, 1].
func NewEcho(delay, decay float64) *Echo {
	return &Echo{
		delay: delay,
		decay: math.Max(0, math.Min(decay, 1)),
	}
}

// Apply implements Stage.
func (e *Echo) Apply(b *rtio.Buffer) error {
	if err := checkFormat("echo", b.Params); err != nil {
		return err
	}
	frames := int(e.delay * float64(b.Params.Rate.Hz()))
	if frames <= 0 {
		return nil
	}
	if len(e.line) != frames {
		e.line = make([]rtio.Sample, frames)
		e.pos = 0
	}
	enabled := e.Enabled()
	for i, s := range b.Samples() {
		if enabled {
			s = e.line[e.pos].Scale(e.decay).Add(s.Scale(1 - e.decay))
			b.Data[i] = s
		}
		e.line[e.pos] = s
		e.pos = (e.pos + 1) % frames
	}
	return nil
}

// Gain scales samples by a factor. The factor can be changed while the
// chain is running.
type Gain struct {
	bits atomic.Uint64
}

// NewGain returns a gain stage.
func NewGain(factor float64) *Gain {
	g := &Gain{}
	g.Set(factor)
	return g
}

// Set changes the factor.
func (g *Gain) Set(factor float64) {
	g.bits.Store(math.Float64bits(factor))
}

// Factor returns the current factor.
func (g *Gain) Factor() float64 {
	return math.Float64frombits(g.bits.Load())
}

// Apply implements Stage.
func (g *Gain) Apply(b *rtio.Buffer) error {
	f := g.Factor()
	if f == 1 {
		return nil
	}
	for i, s := range b.Samples() {
		b.Data[i] = s.Scale(f)
	}
	return nil
}

// SineMultiply modulates the stream with a sine of a fixed frequency.
type SineMultiply struct {
	freq float64
	pos  int
}

// NewSineMultiply returns a ring modulator of freq Hz.
func NewSineMultiply(freq float64) *SineMultiply {
	return &SineMultiply{freq: freq}
}

// Apply implements Stage.
func (m *SineMultiply) Apply(b *rtio.Buffer) error {
	if err := checkFormat("sine multiply", b.Params); err != nil {
		return err
	}
	hz := float64(b.Params.Rate.Hz())
	for i, s := range b.Samples() {
		b.Data[i] = s.Scale(math.Sin(2 * math.Pi * m.freq * float64(m.pos) / hz))
		m.pos++
	}
	return nil
}

// Null passes data through unchanged.
type Null struct{}

// Apply implements Stage.
func (Null) Apply(*rtio.Buffer) error {
	return nil
}

// Observer passes every buffer to a function, typically a visualization.
// The function receives a copy and may keep it.
type Observer struct {
	fn func([]rtio.Sample, rtio.Params)
}

// NewObserver returns an observer calling fn.
func NewObserver(fn func([]rtio.Sample, rtio.Params)) *Observer {
	return &Observer{fn: fn}
}

// Apply implements Stage.
func (o *Observer) Apply(b *rtio.Buffer) error {
	if b.Valid == 0 {
		return nil
	}
	o.fn(append([]rtio.Sample(nil), b.Samples()...), b.Params)
	return nil
}
