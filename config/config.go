// Package config reads rtio configuration files.
//
// Files are TOML. Every key is optional, missing keys keep their default:
//
//	backend = "portaudio"
//	device = "default"
//	rate = 48000
//	buffers = 4
//	buffer_size = 512
//	delay = "10ms"
//	drain_timeout = "5s"
//	exclusive = true
//
//	[throttle]
//	ratio = 4
//	latency = "20ms"
//	sleep = "1ms"
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	strduration "github.com/xhit/go-str2duration/v2"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/device"
	"github.com/pipelined/rtio/log"
	"github.com/pipelined/rtio/ring"
	"github.com/pipelined/rtio/sink"
)

// Backends.
const (
	PortAudio = "portaudio"
	Malgo     = "malgo"
)

// ErrUnknownBackend is returned for backends other than PortAudio and Malgo.
var ErrUnknownBackend = errors.New("unknown backend")

// Duration is a time.Duration decoded from strings like "10ms" or "1d".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := strduration.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Throttle configures poll devices with oversized hardware buffers.
type Throttle struct {
	Ratio   int      `toml:"ratio"`
	Latency Duration `toml:"latency"`
	Sleep   Duration `toml:"sleep"`
}

// Config of a device and the sink driving it.
type Config struct {
	Backend      string          `toml:"backend"`
	Device       rtio.DeviceID   `toml:"device"`
	Rate         rtio.SampleRate `toml:"rate"`
	Buffers      int             `toml:"buffers"`
	BufferSize   int             `toml:"buffer_size"`
	Delay        Duration        `toml:"delay"`
	DrainTimeout Duration        `toml:"drain_timeout"`
	// Exclusive selects the mutex locking policy. Otherwise the device is
	// expected to be used from a single goroutine.
	Exclusive    bool     `toml:"exclusive"`
	// HandoffBytes sizes the capture handoff of callback devices. Playback
	// latency is set by Buffers and BufferSize.
	HandoffBytes int      `toml:"handoff_bytes"`
	Throttle     Throttle `toml:"throttle"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	t := device.DefaultThrottle()
	return Config{
		Backend:      PortAudio,
		Rate:         rtio.Rate44kHz,
		Buffers:      sink.DefaultBuffers,
		BufferSize:   sink.DefaultBufferSize,
		Delay:        Duration(sink.DefaultDelay),
		DrainTimeout: Duration(sink.DefaultDrainTimeout),
		Exclusive:    true,
		HandoffBytes: ring.DefaultHandoffSize,
		Throttle: Throttle{
			Ratio:   t.Ratio,
			Latency: Duration(t.Latency),
			Sleep:   Duration(t.Sleep),
		},
	}
}

// Load reads the file at path on top of defaults. Unknown keys are
// rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	c, err := Decode(string(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Decode parses TOML data on top of defaults.
func Decode(data string) (Config, error) {
	c := Default()
	md, err := toml.Decode(data, &c)
	if err != nil {
		return Config{}, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values which can not be checked by the decoder.
func (c Config) Validate() error {
	switch c.Backend {
	case PortAudio, Malgo:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if err := c.Params().Validate(); err != nil {
		return err
	}
	if c.Buffers < 1 || c.BufferSize < 1 {
		return rtio.Errorf(rtio.Invalid, "config", fmt.Errorf("%d buffers of %d samples", c.Buffers, c.BufferSize))
	}
	if c.Delay <= 0 {
		return rtio.Errorf(rtio.Invalid, "config", errors.New("delay must be positive"))
	}
	if c.Throttle.Ratio < 0 {
		return rtio.Errorf(rtio.Invalid, "config", errors.New("throttle ratio must not be negative"))
	}
	return nil
}

// Params returns stream params.
func (c Config) Params() rtio.Params {
	p := rtio.DefaultParams()
	p.Rate = c.Rate
	return p
}

// DeviceOptions returns options for device constructors.
func (c Config) DeviceOptions(l log.Logger) []device.Option {
	return []device.Option{
		device.WithLogger(l),
		device.WithHandoffSize(c.HandoffBytes),
		device.WithThrottle(device.Throttle{
			Ratio:   c.Throttle.Ratio,
			Latency: time.Duration(c.Throttle.Latency),
			Sleep:   time.Duration(c.Throttle.Sleep),
		}),
	}
}

// SinkOptions returns options for sink.New.
func (c Config) SinkOptions(l log.Logger) []sink.Option {
	return []sink.Option{
		sink.WithLogger(l),
		sink.WithBuffers(c.Buffers, c.BufferSize),
		sink.WithDelay(time.Duration(c.Delay)),
		sink.WithDrainTimeout(time.Duration(c.DrainTimeout)),
	}
}

// Lock wraps dev with the configured locking policy.
func (c Config) Lock(dev rtio.Device) rtio.Device {
	if c.Exclusive {
		return device.NewExclusive(dev)
	}
	return device.NewUnshared(dev)
}
