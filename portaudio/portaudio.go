// Package portaudio provides poll devices on top of PortAudio blocking
// streams.
package portaudio

import (
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/device"
)

// DefaultDevice opens the default device of the host.
const DefaultDevice rtio.DeviceID = "default"

// ErrDeviceNotFound is returned when no device has the requested id.
var ErrDeviceNotFound = errors.New("device not found")

// pollInterval is the granularity of Wait. PortAudio blocking streams do
// not provide a way to wait for readiness.
const pollInterval = 500 * time.Microsecond

// PCM is a PortAudio blocking stream. It is used through device.Poll.
type PCM struct {
	action  rtio.Action
	stream  *portaudio.Stream
	buf     []int16
	rate    int
	running bool
}

// Open opens a poll device on the PortAudio device id.
func Open(action rtio.Action, id rtio.DeviceID, p rtio.Params, opts ...device.Option) (*device.Poll, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, rtio.Errorf(rtio.Failed, "initialize portaudio", err)
	}
	pcm, err := openPCM(action, id, p)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	opts = append([]device.Option{device.WithEnumerator(Enumerate)}, opts...)
	d, err := device.NewPoll(action, pcm, p, opts...)
	if err != nil {
		pcm.Close()
		return nil, err
	}
	return d, nil
}

func openPCM(action rtio.Action, id rtio.DeviceID, p rtio.Params) (*PCM, error) {
	info, err := find(action, id)
	if err != nil {
		return nil, err
	}
	var sp portaudio.StreamParameters
	if action == rtio.Playback {
		sp = portaudio.HighLatencyParameters(nil, info)
		sp.Output.Channels = rtio.NumChannels
	} else {
		sp = portaudio.HighLatencyParameters(info, nil)
		sp.Input.Channels = rtio.NumChannels
	}
	sp.SampleRate = float64(p.Rate.Hz())
	sp.FramesPerBuffer = portaudio.FramesPerBufferUnspecified

	pcm := &PCM{
		action: action,
		rate:   p.Rate.Hz(),
	}
	// the stream keeps a pointer to buf, so it can be resized per call
	pcm.stream, err = portaudio.OpenStream(sp, &pcm.buf)
	if err != nil {
		return nil, rtio.Errorf(rtio.Unsupported, "open stream", err)
	}
	return pcm, nil
}

func find(action rtio.Action, id rtio.DeviceID) (*portaudio.DeviceInfo, error) {
	if id == DefaultDevice || id == "" {
		var (
			info *portaudio.DeviceInfo
			err  error
		)
		if action == rtio.Playback {
			info, err = portaudio.DefaultOutputDevice()
		} else {
			info, err = portaudio.DefaultInputDevice()
		}
		if err != nil {
			return nil, rtio.Errorf(rtio.Failed, "default device", err)
		}
		return info, nil
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, rtio.Errorf(rtio.Failed, "devices", err)
	}
	for _, info := range devices {
		if deviceID(info) == id {
			return info, nil
		}
	}
	return nil, rtio.Errorf(rtio.Failed, "open", fmt.Errorf("%w: %s", ErrDeviceNotFound, id))
}

func deviceID(info *portaudio.DeviceInfo) rtio.DeviceID {
	if info.HostApi == nil {
		return rtio.DeviceID(info.Name)
	}
	return rtio.DeviceID(info.HostApi.Name + "/" + info.Name)
}

// Prepare stops the stream if it runs, so it can be started again.
func (p *PCM) Prepare() error {
	if !p.running {
		return nil
	}
	p.running = false
	return p.stream.Stop()
}

// Start starts the stream.
func (p *PCM) Start() error {
	if err := p.stream.Start(); err != nil {
		return err
	}
	p.running = true
	return nil
}

// Wait polls the stream until it can transfer at least one frame.
func (p *PCM) Wait(timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		n, err := p.Avail()
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}
		time.Sleep(min(remaining, pollInterval))
	}
}

// Avail returns frames which can be transferred without blocking.
func (p *PCM) Avail() (int, error) {
	if p.action == rtio.Playback {
		return p.stream.AvailableToWrite()
	}
	return p.stream.AvailableToRead()
}

func (p *PCM) resize(frames int) {
	size := frames * rtio.NumChannels
	if cap(p.buf) < size {
		p.buf = make([]int16, size)
	}
	p.buf = p.buf[:size]
}

// Write writes samples to the stream. Underflow is reported as Xrun after
// the data is written.
func (p *PCM) Write(samples []rtio.Sample) (int, error) {
	p.resize(len(samples))
	for i, s := range samples {
		p.buf[2*i] = s.Left
		p.buf[2*i+1] = s.Right
	}
	if err := p.stream.Write(); err != nil {
		if errors.Is(err, portaudio.OutputUnderflowed) {
			return len(samples), rtio.Errorf(rtio.Xrun, "write", err)
		}
		return 0, err
	}
	return len(samples), nil
}

// Read reads samples from the stream. Overflow is reported as Xrun.
func (p *PCM) Read(samples []rtio.Sample) (int, error) {
	p.resize(len(samples))
	if err := p.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return 0, rtio.Errorf(rtio.Xrun, "read", err)
		}
		return 0, err
	}
	for i := range samples {
		samples[i] = rtio.Sample{Left: p.buf[2*i], Right: p.buf[2*i+1]}
	}
	return len(samples), nil
}

// BufferFrames returns the latency of the stream in frames.
func (p *PCM) BufferFrames() int {
	info := p.stream.Info()
	if info == nil {
		return 0
	}
	latency := info.OutputLatency
	if p.action == rtio.Capture {
		latency = info.InputLatency
	}
	return int(latency.Seconds() * float64(p.rate))
}

// Close closes the stream and releases PortAudio.
func (p *PCM) Close() error {
	if p.running {
		p.stream.Stop()
	}
	err := p.stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// Enumerate lists PortAudio devices.
func Enumerate() (*rtio.Devices, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, rtio.Errorf(rtio.Failed, "initialize portaudio", err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, rtio.Errorf(rtio.Failed, "devices", err)
	}
	defaultOut, _ := portaudio.DefaultOutputDevice()
	devices := rtio.NewDevices()
	for _, info := range infos {
		devices.Set(deviceID(info), rtio.DeviceInfo{
			Name:    info.Name,
			Default: defaultOut != nil && info.Name == defaultOut.Name && info.HostApi == defaultOut.HostApi,
			Rates:   supportedRates(info),
		})
	}
	return devices, nil
}

func supportedRates(info *portaudio.DeviceInfo) []rtio.SampleRate {
	var rates []rtio.SampleRate
	for _, r := range rtio.Rates() {
		var sp portaudio.StreamParameters
		switch {
		case info.MaxOutputChannels >= rtio.NumChannels:
			sp = portaudio.HighLatencyParameters(nil, info)
			sp.Output.Channels = rtio.NumChannels
		case info.MaxInputChannels >= rtio.NumChannels:
			sp = portaudio.HighLatencyParameters(info, nil)
			sp.Input.Channels = rtio.NumChannels
		default:
			return nil
		}
		sp.SampleRate = float64(r.Hz())
		if portaudio.IsFormatSupported(sp, []int16(nil)) == nil {
			rates = append(rates, r)
		}
	}
	return rates
}
