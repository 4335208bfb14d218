package device

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pipelined/rtio"
)

// ErrConcurrentAccess is the panic value of an Unshared device entered from
// two goroutines at once.
var ErrConcurrentAccess = errors.New("unshared device accessed concurrently")

// Locked serializes every operation of a device with a locking policy L.
// The policy is part of the type and cannot be changed after construction.
type Locked[L sync.Locker] struct {
	lock L
	dev  rtio.Device
}

// NewExclusive wraps dev with a mutex. Use it when control and streaming
// calls come from different goroutines.
func NewExclusive(dev rtio.Device) *Locked[*sync.Mutex] {
	return &Locked[*sync.Mutex]{lock: &sync.Mutex{}, dev: dev}
}

// NewUnshared wraps dev for use from a single goroutine.
func NewUnshared(dev rtio.Device) *Locked[*Unshared] {
	return &Locked[*Unshared]{lock: &Unshared{}, dev: dev}
}

// Unshared is the policy of devices driven from one goroutine. It does not
// block; overlapping entry panics with ErrConcurrentAccess.
type Unshared struct {
	busy atomic.Bool
}

// Lock marks the device busy.
func (u *Unshared) Lock() {
	if !u.busy.CompareAndSwap(false, true) {
		panic(ErrConcurrentAccess)
	}
}

// Unlock marks the device free.
func (u *Unshared) Unlock() {
	u.busy.Store(false)
}

// Device returns the wrapped device.
func (d *Locked[L]) Device() rtio.Device {
	return d.dev
}

func (d *Locked[L]) StartCapture() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.StartCapture()
}

func (d *Locked[L]) Capture(dst []rtio.Sample) (int, error) {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.Capture(dst)
}

func (d *Locked[L]) SetBuffers(count, samples int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.SetBuffers(count, samples)
}

func (d *Locked[L]) Fill(data []rtio.Sample) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.Fill(data)
}

func (d *Locked[L]) StartPlayback() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.StartPlayback()
}

func (d *Locked[L]) Update(delay time.Duration) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.Update(delay)
}

func (d *Locked[L]) Discard() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.Discard()
}

func (d *Locked[L]) Params() rtio.Params {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.Params()
}

// Devices is not serialized, enumeration does not touch device state.
func (d *Locked[L]) Devices() (*rtio.Devices, error) {
	return d.dev.Devices()
}

func (d *Locked[L]) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dev.Close()
}
