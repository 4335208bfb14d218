package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/config"
	"github.com/pipelined/rtio/device"
	"github.com/pipelined/rtio/mock"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		description string
		data        string
		check       func(*testing.T, config.Config)
		err         error
	}{
		{
			description: "empty",
			data:        "",
			check: func(t *testing.T, c config.Config) {
				assert.Equal(t, config.Default(), c)
			},
		},
		{
			description: "full",
			data: `
backend = "malgo"
device = "hw:1"
rate = 48000
buffers = 8
buffer_size = 256
delay = "5ms"
drain_timeout = "1m"
exclusive = false
handoff_bytes = 4096

[throttle]
ratio = 2
latency = "20ms"
sleep = "2ms"
`,
			check: func(t *testing.T, c config.Config) {
				assert.Equal(t, config.Malgo, c.Backend)
				assert.Equal(t, rtio.DeviceID("hw:1"), c.Device)
				assert.Equal(t, rtio.Rate48kHz, c.Rate)
				assert.Equal(t, 8, c.Buffers)
				assert.Equal(t, 256, c.BufferSize)
				assert.Equal(t, config.Duration(5*time.Millisecond), c.Delay)
				assert.Equal(t, config.Duration(time.Minute), c.DrainTimeout)
				assert.False(t, c.Exclusive)
				assert.Equal(t, 4096, c.HandoffBytes)
				assert.Equal(t, 2, c.Throttle.Ratio)
				assert.Equal(t, config.Duration(20*time.Millisecond), c.Throttle.Latency)
				assert.Equal(t, config.Duration(2*time.Millisecond), c.Throttle.Sleep)
				assert.Equal(t, 48000, c.Params().Rate.Hz())
			},
		},
		{
			description: "days",
			data:        `drain_timeout = "1d2h"`,
			check: func(t *testing.T, c config.Config) {
				assert.Equal(t, config.Duration(26*time.Hour), c.DrainTimeout)
			},
		},
		{
			description: "unsupported rate",
			data:        "rate = 12345",
			err:         rtio.Unsupported,
		},
		{
			description: "unknown backend",
			data:        `backend = "jack"`,
			err:         config.ErrUnknownBackend,
		},
		{
			description: "no buffers",
			data:        "buffers = 0",
			err:         rtio.Invalid,
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			c, err := config.Decode(test.data)
			if test.err != nil {
				assert.True(t, errors.Is(err, test.err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			test.check(t, c)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := config.Decode(`unknown = 1`)
	assert.Error(t, err)
	_, err = config.Decode(`delay = "soon"`)
	assert.Error(t, err)
	_, err = config.Decode(`rate = `)
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtio.toml")
	require.NoError(t, os.WriteFile(path, []byte("buffers = 2\n"), 0o600))
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Buffers)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLock(t *testing.T) {
	dev, err := device.NewPoll(rtio.Playback, &mock.PCM{}, rtio.DefaultParams())
	require.NoError(t, err)
	c := config.Default()
	assert.IsType(t, device.NewExclusive(dev), c.Lock(dev))
	c.Exclusive = false
	assert.IsType(t, device.NewUnshared(dev), c.Lock(dev))
	assert.Len(t, c.DeviceOptions(nil), 3)
	assert.Len(t, c.SinkOptions(nil), 4)
}
