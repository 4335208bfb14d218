package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/config"
	"github.com/pipelined/rtio/filter"
	"github.com/pipelined/rtio/mock"
	"github.com/pipelined/rtio/sink"
	"github.com/pipelined/rtio/wav"
)

func TestLoadConfig(t *testing.T) {
	opts = options{}
	c, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.Default(), c)

	path := filepath.Join(t.TempDir(), "rtio.toml")
	require.NoError(t, os.WriteFile(path, []byte(`backend = "malgo"`), 0o600))
	opts = options{Config: path}
	defer func() { opts = options{} }()
	c, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.Malgo, c.Backend)
}

func TestPlayChain(t *testing.T) {
	c := config.Default()
	cmd := &playCommand{Freq: 440, Gain: 0.5, Echo: true}
	chain, err := cmd.chain(&c)
	require.NoError(t, err)
	_, ok := filter.StageAt[*filter.Gain](chain, 0)
	assert.True(t, ok)
	_, ok = filter.StageAt[*filter.Echo](chain, 1)
	assert.True(t, ok)
	_, ok = filter.StageAt[*filter.Generator](chain, 2)
	assert.True(t, ok)

	path := filepath.Join(t.TempDir(), "in.wav")
	p := rtio.DefaultParams()
	p.Rate = rtio.Rate48kHz
	out, err := wav.Create(path, p)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	cmd = &playCommand{Gain: 1, Wav: path}
	chain, err = cmd.chain(&c)
	require.NoError(t, err)
	assert.Equal(t, rtio.Rate48kHz, c.Rate)
	assert.Equal(t, rtio.Rate48kHz, chain.Params().Rate)
	require.NoError(t, filter.Close(chain))

	_, err = (&playCommand{Wav: filepath.Join(t.TempDir(), "missing.wav")}).chain(&c)
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	newSink := func(t *testing.T, source *mock.Source) (*sink.Sink, *wav.Device) {
		t.Helper()
		out, err := wav.Create(filepath.Join(t.TempDir(), "out.wav"), rtio.DefaultParams())
		require.NoError(t, err)
		s, err := sink.New(filter.New(nil, source), out, sink.WithBuffers(2, 64))
		require.NoError(t, err)
		return s, out
	}

	t.Run("end of data", func(t *testing.T) {
		s, out := newSink(t, &mock.Source{Limit: 1000})
		require.NoError(t, run(context.Background(), s, 0))
		assert.Equal(t, 1000, out.Frames())
		require.NoError(t, s.Close())
	})
	t.Run("limit", func(t *testing.T) {
		s, out := newSink(t, &mock.Source{Limit: 1 << 30, Interval: time.Millisecond})
		require.NoError(t, run(context.Background(), s, 20*time.Millisecond))
		assert.Equal(t, sink.Stopped, s.State())
		assert.NotZero(t, out.Frames())
		require.NoError(t, s.Close())
	})
	t.Run("cancel", func(t *testing.T) {
		s, _ := newSink(t, &mock.Source{Limit: 1 << 30, Interval: time.Millisecond})
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)
		require.NoError(t, run(ctx, s, 0))
		assert.Equal(t, sink.Stopped, s.State())
		require.NoError(t, s.Close())
	})
	t.Run("error", func(t *testing.T) {
		s, _ := newSink(t, &mock.Source{Limit: 1 << 30, ErrorOnCall: errors.New("source failed"), ErrorAfter: 3})
		assert.Error(t, run(context.Background(), s, 0))
		require.NoError(t, s.Close())
	})
}
