// Package malgo provides callback devices on top of miniaudio.
package malgo

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	ma "github.com/gen2brain/malgo"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/device"
)

// DefaultDevice opens the default device of the host.
const DefaultDevice rtio.DeviceID = "default"

// PeriodSize is the duration of a single OS callback in milliseconds.
const PeriodSize = 10

// ErrInvalidID is returned when a device id is not a hex string.
var ErrInvalidID = errors.New("invalid device id")

const rawFormat = ma.FormatS16

// Driver is a miniaudio device. The device is initialized on the first
// Start, when the callback is known.
type Driver struct {
	ctx    *ma.AllocatedContext
	config ma.DeviceConfig
	id     ma.DeviceID

	mu     sync.Mutex
	fn     func(out, in []byte)
	device *ma.Device
}

// Open opens a callback device on the miniaudio device id.
func Open(action rtio.Action, id rtio.DeviceID, p rtio.Params, opts ...device.Option) (*device.Callback, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if size := ma.SampleSizeInBytes(rawFormat); size*rtio.NumChannels != p.FrameSize() {
		return nil, rtio.Errorf(rtio.Unsupported, "open", fmt.Errorf("sample size %d", size))
	}
	d, err := NewDriver(action, id, p)
	if err != nil {
		return nil, err
	}
	opts = append([]device.Option{device.WithEnumerator(Enumerate)}, opts...)
	cb, err := device.NewCallback(action, d, p, opts...)
	if err != nil {
		d.Close()
		return nil, err
	}
	return cb, nil
}

// NewDriver initializes a miniaudio context for the device id.
func NewDriver(action rtio.Action, id rtio.DeviceID, p rtio.Params) (*Driver, error) {
	ctx, err := ma.InitContext(nil, ma.ContextConfig{}, nil)
	if err != nil {
		return nil, rtio.Errorf(rtio.Failed, "init context", err)
	}
	d := &Driver{ctx: ctx}
	if id != DefaultDevice && id != "" {
		if d.id, err = parseID(id); err != nil {
			d.free()
			return nil, err
		}
	}

	if action == rtio.Playback {
		d.config = ma.DefaultDeviceConfig(ma.Playback)
		d.config.Playback.Format = rawFormat
		d.config.Playback.Channels = rtio.NumChannels
	} else {
		d.config = ma.DefaultDeviceConfig(ma.Capture)
		d.config.Capture.Format = rawFormat
		d.config.Capture.Channels = rtio.NumChannels
	}
	d.config.SampleRate = uint32(p.Rate.Hz())
	d.config.PeriodSizeInMilliseconds = PeriodSize
	d.config.Alsa.NoMMap = 1
	return d, nil
}

func parseID(id rtio.DeviceID) (ma.DeviceID, error) {
	var res ma.DeviceID
	b, err := hex.DecodeString(string(id))
	if err != nil || len(b) > len(res) {
		return res, rtio.Errorf(rtio.Invalid, "open", fmt.Errorf("%w: %s", ErrInvalidID, id))
	}
	copy(res[:], b)
	return res, nil
}

func (d *Driver) data(out, in []byte, _ uint32) {
	d.fn(out, in)
}

// Start initializes the device with fn as the data callback and starts it.
func (d *Driver) Start(fn func(out, in []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		var empty ma.DeviceID
		if d.id != empty {
			if d.config.DeviceType == ma.Playback {
				d.config.Playback.DeviceID = d.id.Pointer()
			} else {
				d.config.Capture.DeviceID = d.id.Pointer()
			}
		}
		d.fn = fn
		dev, err := ma.InitDevice(d.ctx.Context, d.config, ma.DeviceCallbacks{
			Data: d.data,
		})
		if err != nil {
			return err
		}
		d.device = dev
	}
	return d.device.Start()
}

// Stop stops the device. The callback is not called after Stop returns.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device == nil {
		return nil
	}
	return d.device.Stop()
}

// Close releases the device and the context.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	return d.free()
}

func (d *Driver) free() error {
	if d.ctx == nil {
		return nil
	}
	err := d.ctx.Uninit()
	d.ctx.Free()
	d.ctx = nil
	return err
}

// Enumerate lists miniaudio playback and capture devices. Ids are hex
// encoded miniaudio ids without trailing zeros.
func Enumerate() (*rtio.Devices, error) {
	ctx, err := ma.InitContext(nil, ma.ContextConfig{}, nil)
	if err != nil {
		return nil, rtio.Errorf(rtio.Failed, "init context", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	devices := rtio.NewDevices()
	for _, typ := range []ma.DeviceType{ma.Playback, ma.Capture} {
		infos, err := ctx.Devices(typ)
		if err != nil {
			return nil, rtio.Errorf(rtio.Failed, "devices", err)
		}
		for _, info := range infos {
			id := rtio.DeviceID(hex.EncodeToString(bytes.TrimRight(info.ID[:], "\x00")))
			if _, ok := devices.Get(id); ok {
				continue
			}
			devices.Set(id, rtio.DeviceInfo{
				Name:    info.Name(),
				Default: typ == ma.Playback && info.IsDefault == 1,
				// miniaudio resamples to any rate
				Rates: rtio.Rates(),
			})
		}
	}
	return devices, nil
}
