// Package wav reads and writes WAV files in place of audio hardware.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/ring"
	"github.com/pipelined/rtio/signal"
)

const pcmFormat = 1

var (
	// ErrUnsupportedBitDepth is returned when a file is not 16 bit.
	ErrUnsupportedBitDepth = errors.New("only 16 bit depth is supported")
	// ErrUnsupportedChannels is returned when a file is not stereo.
	ErrUnsupportedChannels = errors.New("only stereo files are supported")
	// ErrInvalidFile is returned when a file is not a WAV file.
	ErrInvalidFile = errors.New("wav is not valid")
)

// Source is a source stage reading a WAV file. It returns io.EOF at the
// end of the file.
type Source struct {
	path    string
	file    *os.File
	decoder *wav.Decoder
	ib      *audio.IntBuffer
	params  rtio.Params
}

// Open opens the file at path for reading.
func Open(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		if err := file.Close(); err != nil {
			return nil, fmt.Errorf("%w, failed to close the file %v: %v", ErrInvalidFile, path, err)
		}
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidFile)
	}
	s := &Source{
		path:    path,
		file:    file,
		decoder: decoder,
	}
	if err := s.init(); err != nil {
		file.Close()
		return nil, err
	}
	return s, nil
}

func (s *Source) init() error {
	if signal.BitDepth(s.decoder.BitDepth) != signal.BitDepth16 {
		return rtio.Errorf(rtio.Unsupported, "open wav", fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, s.decoder.BitDepth))
	}
	format := s.decoder.Format()
	if format.NumChannels != rtio.NumChannels {
		return rtio.Errorf(rtio.Unsupported, "open wav", fmt.Errorf("%w: %d", ErrUnsupportedChannels, format.NumChannels))
	}
	p, err := rtio.NewParams(int(s.decoder.SampleRate))
	if err != nil {
		return err
	}
	s.params = p
	s.ib = &audio.IntBuffer{
		Format:         format,
		SourceBitDepth: int(s.decoder.BitDepth),
	}
	return nil
}

// Apply reads the next part of the file into b.
func (s *Source) Apply(b *rtio.Buffer) error {
	size := len(b.Data) * rtio.NumChannels
	if cap(s.ib.Data) < size {
		s.ib.Data = make([]int, size)
	}
	s.ib.Data = s.ib.Data[:size]
	n, err := s.decoder.PCMBuffer(s.ib)
	if err != nil {
		return rtio.Errorf(rtio.Failed, "read wav", err)
	}
	if n == 0 {
		b.Valid = 0
		return io.EOF
	}
	b.Valid = signal.DecodeInts(b.Data, s.ib.Data[:n])
	b.Empty = false
	return nil
}

// Params returns params of the file.
func (s *Source) Params() rtio.Params {
	return s.params
}

// Duration returns the play time of the file.
func (s *Source) Duration() (time.Duration, error) {
	return s.decoder.Duration()
}

// Close closes the file.
func (s *Source) Close() error {
	return s.file.Close()
}

// Device is a playback device writing to a WAV file. Every Update writes
// a whole buffer, so playback runs as fast as the chain produces data.
type Device struct {
	path    string
	params  rtio.Params
	file    *os.File
	encoder *wav.Encoder
	ring    *ring.Ring
	ib      *audio.IntBuffer
	started bool
	frames  int
}

// Create creates the file at path for writing.
func Create(path string, p rtio.Params) (*Device, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Device{
		path:    path,
		params:  p,
		file:    f,
		encoder: wav.NewEncoder(f, p.Rate.Hz(), int(signal.BitDepth16), rtio.NumChannels, pcmFormat),
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: rtio.NumChannels,
				SampleRate:  p.Rate.Hz(),
			},
			SourceBitDepth: int(signal.BitDepth16),
		},
	}, nil
}

var errNoCapture = errors.New("wav device only writes")

// StartCapture is not supported.
func (d *Device) StartCapture() error {
	return rtio.Errorf(rtio.Unsupported, "start capture", errNoCapture)
}

// Capture is not supported.
func (d *Device) Capture([]rtio.Sample) (int, error) {
	return 0, rtio.Errorf(rtio.Unsupported, "capture", errNoCapture)
}

// SetBuffers allocates the ring.
func (d *Device) SetBuffers(count, samples int) error {
	if d.started {
		return rtio.Errorf(rtio.Invalid, "set buffers", errors.New("device is streaming"))
	}
	r, err := ring.New(count, samples, d.params)
	if err != nil {
		return err
	}
	d.ring = r
	return nil
}

// Fill enqueues data.
func (d *Device) Fill(data []rtio.Sample) error {
	if d.ring == nil {
		return rtio.Errorf(rtio.Invalid, "fill", errors.New("buffers are not set"))
	}
	return d.ring.Fill(data)
}

// StartPlayback starts writing.
func (d *Device) StartPlayback() error {
	if d.ring == nil {
		return rtio.Errorf(rtio.Invalid, "start playback", errors.New("buffers are not set"))
	}
	d.started = true
	return nil
}

// Update writes the front buffer to the file.
func (d *Device) Update(time.Duration) error {
	if !d.started {
		return rtio.Errorf(rtio.Invalid, "update", errors.New("not started"))
	}
	front, ok := d.ring.Front()
	if !ok {
		return rtio.BufferEmpty
	}
	pending := front.Pending()
	d.ib.Data = signal.EncodeInts(d.ib.Data[:0], pending)
	if err := d.encoder.Write(d.ib); err != nil {
		return rtio.Errorf(rtio.Failed, "write wav", err)
	}
	d.frames += len(pending)
	front.Cursor = front.Valid
	d.ring.Retire()
	return nil
}

// Discard drops queued buffers.
func (d *Device) Discard() error {
	if d.ring == nil {
		return rtio.Errorf(rtio.Invalid, "discard", errors.New("buffers are not set"))
	}
	d.ring.Discard()
	return nil
}

// Params returns params of the file.
func (d *Device) Params() rtio.Params {
	return d.params
}

// Devices returns the file as the only device.
func (d *Device) Devices() (*rtio.Devices, error) {
	devices := rtio.NewDevices()
	devices.Set(rtio.DeviceID(d.path), rtio.DeviceInfo{
		Name:    "WAV file " + d.path,
		Default: true,
		Rates:   []rtio.SampleRate{d.params.Rate},
	})
	return devices, nil
}

// Frames returns the number of frames written.
func (d *Device) Frames() int {
	return d.frames
}

// Close finalizes the header and closes the file.
func (d *Device) Close() error {
	if err := d.encoder.Close(); err != nil {
		d.file.Close()
		return err
	}
	return d.file.Close()
}
