//go:build portaudio

package portaudio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/device"
	"github.com/pipelined/rtio/filter"
	"github.com/pipelined/rtio/portaudio"
	"github.com/pipelined/rtio/sink"
)

func TestEnumerate(t *testing.T) {
	devices, err := portaudio.Enumerate()
	require.NoError(t, err)
	assert.NotZero(t, devices.Len())
}

func TestPlayback(t *testing.T) {
	p := rtio.DefaultParams()
	gen := filter.NewSine(440, 0.2, p)
	gen.Limit = p.Frames(500 * 1e6)
	dev, err := portaudio.Open(rtio.Playback, portaudio.DefaultDevice, p)
	require.NoError(t, err)
	s, err := sink.New(filter.New(filter.New(nil, gen), filter.NewEcho(0.1, 0.3)), device.NewExclusive(dev))
	require.NoError(t, err)
	require.NoError(t, s.Run())
	require.NoError(t, s.Close())
}
