package rtio

import (
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Action is the direction a device is opened for.
type Action uint8

// Actions.
const (
	Capture Action = iota
	Playback
)

func (a Action) String() string {
	if a == Playback {
		return "playback"
	}
	return "capture"
}

// Device is the contract every backend driver implements. Unsupported
// operations return Unsupported; none of them is allowed to silently do
// nothing.
type Device interface {
	// StartCapture prepares the hardware for capture. Only the first call
	// succeeds.
	StartCapture() error
	// Capture fills at most len(dst) samples and returns how many were
	// captured. BufferEmpty means nothing is available right now, Xrun
	// means an overrun happened and n may still be positive.
	Capture(dst []Sample) (int, error)
	// SetBuffers allocates count buffers of samples each. Invalid while
	// streaming.
	SetBuffers(count, samples int) error
	// Fill enqueues data for playback. BufferFull means the ring has no
	// free slot and the ring is left unchanged.
	Fill(data []Sample) error
	// StartPlayback starts consuming enqueued buffers.
	StartPlayback() error
	// Update waits up to delay for the hardware and transfers as much of
	// the oldest buffer as it accepts. It returns Busy when nothing could
	// be transferred yet and BufferEmpty when no buffer is enqueued.
	Update(delay time.Duration) error
	// Discard drops enqueued buffers which have not started a transfer.
	Discard() error
	// Params returns the parameters the device was opened with.
	Params() Params
	// Devices lists the devices available to this backend.
	Devices() (*Devices, error)
	// Close releases the hardware.
	Close() error
}

// DeviceID is an opaque platform device identifier.
type DeviceID string

// DeviceInfo describes an enumerated device.
type DeviceInfo struct {
	Name    string
	Default bool
	Rates   []SampleRate
}

// Devices maps device ids to their info in enumeration order.
type Devices = orderedmap.OrderedMap[DeviceID, DeviceInfo]

// NewDevices returns an empty device map.
func NewDevices() *Devices {
	return orderedmap.New[DeviceID, DeviceInfo]()
}

// DefaultDevice returns the id of the device flagged as default.
func DefaultDevice(devices *Devices) (DeviceID, bool) {
	for pair := devices.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.Default {
			return pair.Key, true
		}
	}
	return "", false
}
