package rtio

import (
	"fmt"
	"strconv"
	"time"
)

// SampleRate is one of the supported sampling rates.
type SampleRate uint8

// Supported sample rates.
const (
	RateUnknown SampleRate = iota
	Rate8kHz
	Rate11kHz
	Rate22kHz
	Rate44kHz
	Rate48kHz
	Rate96kHz
	Rate192kHz
)

var rates = [...]int{
	RateUnknown: 0,
	Rate8kHz:    8000,
	Rate11kHz:   11025,
	Rate22kHz:   22050,
	Rate44kHz:   44100,
	Rate48kHz:   48000,
	Rate96kHz:   96000,
	Rate192kHz:  192000,
}

// Rates lists all known sample rates in ascending order.
func Rates() []SampleRate {
	return []SampleRate{Rate8kHz, Rate11kHz, Rate22kHz, Rate44kHz, Rate48kHz, Rate96kHz, Rate192kHz}
}

// Hz returns the rate in Hz, zero if the rate is unknown.
func (r SampleRate) Hz() int {
	if int(r) < len(rates) {
		return rates[r]
	}
	return 0
}

// RateOf returns the sample rate for hz or RateUnknown.
func RateOf(hz int) SampleRate {
	for i, v := range rates {
		if v == hz && hz != 0 {
			return SampleRate(i)
		}
	}
	return RateUnknown
}

func (r SampleRate) String() string {
	if hz := r.Hz(); hz != 0 {
		return fmt.Sprintf("%d Hz", hz)
	}
	return "unknown rate"
}

// MarshalText encodes the rate as decimal Hz.
func (r SampleRate) MarshalText() ([]byte, error) {
	return []byte(strconv.Itoa(r.Hz())), nil
}

// UnmarshalText decodes decimal Hz. Unknown rates are rejected.
func (r *SampleRate) UnmarshalText(text []byte) error {
	hz, err := strconv.Atoi(string(text))
	if err != nil {
		return fmt.Errorf("sample rate %q: %w", text, err)
	}
	rate := RateOf(hz)
	if rate == RateUnknown {
		return Errorf(Unsupported, "sample rate", fmt.Errorf("%d Hz", hz))
	}
	*r = rate
	return nil
}

// Layout describes how samples are laid out in memory.
type Layout uint8

// Layouts. Only interleaved signed 16-bit is supported.
const (
	LayoutUnknown Layout = iota
	InterleavedS16
)

func (l Layout) String() string {
	if l == InterleavedS16 {
		return "interleaved s16"
	}
	return "unknown layout"
}

const (
	// NumChannels is the only supported channel count.
	NumChannels = 2
	// BytesPerSample is the size of one channel value.
	BytesPerSample = 2
)

// Params describe the shape of a stream.
type Params struct {
	Rate     SampleRate
	Channels int
	Layout   Layout
}

// DefaultParams returns 44.1 kHz interleaved stereo.
func DefaultParams() Params {
	return Params{Rate: Rate44kHz, Channels: NumChannels, Layout: InterleavedS16}
}

// NewParams returns stereo params for hz. Unsupported rates fail.
func NewParams(hz int) (Params, error) {
	p := DefaultParams()
	p.Rate = RateOf(hz)
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that p can be opened by a device.
func (p Params) Validate() error {
	if p.Rate.Hz() == 0 {
		return Errorf(Unsupported, "params", fmt.Errorf("rate %d", p.Rate))
	}
	if p.Channels != NumChannels {
		return Errorf(Unsupported, "params", fmt.Errorf("%d channels", p.Channels))
	}
	if p.Layout != InterleavedS16 {
		return Errorf(Unsupported, "params", fmt.Errorf("layout %v", p.Layout))
	}
	return nil
}

// FrameSize returns the size of one frame in bytes.
func (p Params) FrameSize() int {
	return p.Channels * BytesPerSample
}

// Frames returns how many frames fit into d.
func (p Params) Frames(d time.Duration) int {
	return int(int64(d) * int64(p.Rate.Hz()) / int64(time.Second))
}

// Duration returns the play time of n frames.
func (p Params) Duration(n int) time.Duration {
	hz := p.Rate.Hz()
	if hz == 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(hz))
}

func (p Params) String() string {
	return fmt.Sprintf("%v, %d channels, %v", p.Rate, p.Channels, p.Layout)
}
