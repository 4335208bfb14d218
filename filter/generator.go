package filter

import (
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/pipelined/rtio"
)

// Switch enables and disables a stage from any goroutine. Zero value is
// enabled.
type Switch struct {
	off atomic.Bool
}

// Enable turns the stage on.
func (s *Switch) Enable() {
	s.off.Store(false)
}

// Disable turns the stage off.
func (s *Switch) Disable() {
	s.off.Store(true)
}

// Toggle flips the state and returns whether the stage is now enabled.
func (s *Switch) Toggle() bool {
	for {
		off := s.off.Load()
		if s.off.CompareAndSwap(off, !off) {
			return off
		}
	}
}

// Enabled reports whether the stage is on.
func (s *Switch) Enabled() bool {
	return !s.off.Load()
}

// Generator is a source stage producing a function of time. A disabled
// generator produces silence.
type Generator struct {
	Switch
	fn     func(t time.Duration) rtio.Sample
	params rtio.Params
	// Limit is the number of samples to produce, zero means infinite.
	Limit int
	pos   int
}

// NewGenerator returns a source producing fn(t) for every sample.
func NewGenerator(fn func(t time.Duration) rtio.Sample, p rtio.Params) *Generator {
	return &Generator{
		fn:     fn,
		params: p,
	}
}

// NewSine returns a source producing a sine of freq Hz. Amplitude is
// relative to full scale.
func NewSine(freq, amplitude float64, p rtio.Params) *Generator {
	return NewGenerator(func(t time.Duration) rtio.Sample {
		return rtio.Mono(math.MaxInt16).Scale(amplitude * math.Sin(2*math.Pi*freq*t.Seconds()))
	}, p)
}

// Apply fills b with the next samples.
func (g *Generator) Apply(b *rtio.Buffer) error {
	n := len(b.Data)
	if g.Limit > 0 {
		if g.pos >= g.Limit {
			b.Valid = 0
			return io.EOF
		}
		n = min(n, g.Limit-g.pos)
	}
	if g.Enabled() {
		for i := range b.Data[:n] {
			b.Data[i] = g.fn(g.params.Duration(g.pos + i))
		}
	} else {
		clear(b.Data[:n])
	}
	g.pos += n
	b.Valid = n
	b.Empty = false
	return nil
}

// Params implements ParamsProvider.
func (g *Generator) Params() rtio.Params {
	return g.params
}

// Position returns the number of samples produced.
func (g *Generator) Position() int {
	return g.pos
}
