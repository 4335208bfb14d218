package wav_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/filter"
	"github.com/pipelined/rtio/mock"
	"github.com/pipelined/rtio/sink"
	"github.com/pipelined/rtio/wav"
)

func read(t *testing.T, path string, bufferSize int) ([]rtio.Sample, int) {
	t.Helper()
	source, err := wav.Open(path)
	require.NoError(t, err)
	defer source.Close()

	var (
		got   []rtio.Sample
		calls int
	)
	b := rtio.NewBuffer(bufferSize, source.Params())
	for {
		b.Reset()
		err := source.Apply(&b)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		calls++
		got = append(got, b.Samples()...)
	}
	assert.Equal(t, 0, b.Valid)
	return got, calls
}

func TestDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	p := rtio.DefaultParams()
	p.Rate = rtio.Rate48kHz
	d, err := wav.Create(path, p)
	require.NoError(t, err)
	require.NoError(t, d.SetBuffers(2, 100))

	assert.True(t, errors.Is(d.StartCapture(), rtio.Unsupported))
	_, err = d.Capture(make([]rtio.Sample, 1))
	assert.True(t, errors.Is(err, rtio.Unsupported))
	assert.True(t, errors.Is(d.Update(time.Millisecond), rtio.Invalid))

	require.NoError(t, d.Fill(mock.Ramp(0, 100)))
	require.NoError(t, d.Fill(mock.Ramp(100, 50)))
	assert.Equal(t, rtio.BufferFull, d.Fill(mock.Ramp(0, 1)))
	require.NoError(t, d.StartPlayback())
	assert.True(t, errors.Is(d.SetBuffers(2, 100), rtio.Invalid))
	require.NoError(t, d.Update(time.Millisecond))
	require.NoError(t, d.Update(time.Millisecond))
	assert.Equal(t, rtio.BufferEmpty, d.Update(time.Millisecond))
	assert.Equal(t, 150, d.Frames())

	devices, err := d.Devices()
	require.NoError(t, err)
	id, ok := rtio.DefaultDevice(devices)
	assert.True(t, ok)
	assert.Equal(t, rtio.DeviceID(path), id)
	require.NoError(t, d.Close())

	got, calls := read(t, path, 64)
	assert.Equal(t, mock.Ramp(0, 150), got)
	assert.Equal(t, 3, calls)

	source, err := wav.Open(path)
	require.NoError(t, err)
	assert.Equal(t, p, source.Params())
	require.NoError(t, source.Close())
}

func TestSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.wav")
	d, err := wav.Create(path, rtio.DefaultParams())
	require.NoError(t, err)
	s, err := sink.New(filter.New(nil, &mock.Source{Limit: 1000}), d, sink.WithBuffers(4, 256))
	require.NoError(t, err)
	require.NoError(t, s.Run())
	require.NoError(t, s.Close())

	source, err := wav.Open(path)
	require.NoError(t, err)
	chain := filter.New(nil, source)
	copyPath := filepath.Join(t.TempDir(), "copy.wav")
	out, err := wav.Create(copyPath, chain.Params())
	require.NoError(t, err)
	s, err = sink.New(chain, out, sink.WithBuffers(2, 100))
	require.NoError(t, err)
	require.NoError(t, s.Run())
	require.NoError(t, filter.Close(s))

	got, _ := read(t, copyPath, 512)
	assert.Equal(t, mock.Ramp(0, 1000), got)
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := wav.Open(filepath.Join(dir, "missing.wav"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a wav file"), 0o600))
	_, err = wav.Open(garbage)
	assert.True(t, errors.Is(err, wav.ErrInvalidFile))

	write := func(name string, bitDepth, channels int) string {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		require.NoError(t, err)
		e := gowav.NewEncoder(f, 44100, bitDepth, channels, 1)
		require.NoError(t, e.Write(&audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: 44100},
			Data:           make([]int, 4*channels),
			SourceBitDepth: bitDepth,
		}))
		require.NoError(t, e.Close())
		require.NoError(t, f.Close())
		return path
	}

	_, err = wav.Open(write("8bit.wav", 8, 2))
	assert.True(t, errors.Is(err, wav.ErrUnsupportedBitDepth))
	assert.True(t, errors.Is(err, rtio.Unsupported))

	_, err = wav.Open(write("mono.wav", 16, 1))
	assert.True(t, errors.Is(err, wav.ErrUnsupportedChannels))
	assert.True(t, errors.Is(err, rtio.Unsupported))

	_, err = wav.Create(filepath.Join(dir, "mono-out.wav"), rtio.Params{Rate: rtio.Rate44kHz, Channels: 1, Layout: rtio.InterleavedS16})
	assert.True(t, errors.Is(err, rtio.Unsupported))
}

// stopping stops the sink once limit samples were filled.
type stopping struct {
	*wav.Device
	limit  int
	filled int
	stop   func()
}

func (d *stopping) Fill(data []rtio.Sample) error {
	err := d.Device.Fill(data)
	if err == nil {
		d.filled += len(data)
		if d.filled >= d.limit {
			d.stop()
		}
	}
	return err
}

func TestSinkStop(t *testing.T) {
	tests := []struct {
		description string
		opts        []sink.Option
		discarded   int
	}{
		{
			description: "discard",
			discarded:   400,
		},
		{
			description: "drain on stop",
			opts:        []sink.Option{sink.WithDrainOnStop()},
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stop.wav")
			d, err := wav.Create(path, rtio.DefaultParams())
			require.NoError(t, err)
			dev := &stopping{Device: d, limit: 1000}
			s, err := sink.New(filter.New(nil, &mock.Source{Limit: 1 << 30}), dev,
				append([]sink.Option{sink.WithBuffers(4, 100)}, test.opts...)...)
			require.NoError(t, err)
			dev.stop = s.Stop
			require.NoError(t, s.Run())
			require.NoError(t, s.Close())

			assert.Equal(t, 1000, dev.filled)
			assert.Equal(t, dev.filled-test.discarded, d.Frames())
			got, _ := read(t, path, 256)
			assert.Equal(t, mock.Ramp(0, d.Frames()), got)
		})
	}
}
