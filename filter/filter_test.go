package filter_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/device"
	"github.com/pipelined/rtio/filter"
	"github.com/pipelined/rtio/mock"
)

var errTest = errors.New("test error")

func increment(s rtio.Sample) rtio.Sample {
	return rtio.Sample{Left: s.Left + 1, Right: s.Right}
}

func TestProcess(t *testing.T) {
	order := &mock.Order{}
	source := &mock.Source{Limit: 10}
	pass := &mock.Recorder{Name: "pass", Order: order, Fn: increment}
	last := &mock.Recorder{Name: "last", Order: order}
	chain := filter.New(filter.New(filter.New(nil, source), pass), last)

	b := rtio.NewBuffer(16, rtio.DefaultParams())
	require.NoError(t, chain.Process(&b))
	assert.Equal(t, 10, b.Valid)
	assert.Equal(t, []string{"pass", "last"}, order.Calls())
	// transformed once, after the source
	assert.Equal(t, mock.Ramp(0, 10), pass.Samples())
	expected := mock.Ramp(0, 10)
	for i := range expected {
		expected[i] = increment(expected[i])
	}
	assert.Equal(t, expected, last.Samples())
	assert.Equal(t, expected, b.Samples())

	b.Reset()
	assert.Equal(t, io.EOF, chain.Process(&b))
	assert.Equal(t, 0, b.Valid)
	assert.Equal(t, []string{"pass", "last"}, order.Calls())
}

func TestProcessChildError(t *testing.T) {
	order := &mock.Order{}
	source := &mock.Source{Limit: 10, ErrorOnCall: errTest}
	chain := filter.New(filter.New(nil, source), &mock.Recorder{Name: "pass", Order: order})
	b := rtio.NewBuffer(16, rtio.DefaultParams())
	assert.Equal(t, errTest, chain.Process(&b))
	assert.Empty(t, order.Calls())
}

func TestParams(t *testing.T) {
	p48 := rtio.DefaultParams()
	p48.Rate = rtio.Rate48kHz
	source := filter.New(nil, &mock.Source{SourceParams: p48})
	chain := filter.New(filter.New(source, filter.Null{}), filter.NewGain(1))
	assert.Equal(t, p48, chain.Params())
	assert.Equal(t, rtio.DefaultParams(), filter.New(nil, filter.Null{}).Params())
}

func TestAncestor(t *testing.T) {
	gen := filter.NewSine(440, 1, rtio.DefaultParams())
	echo := filter.NewEcho(0.1, 0.5)
	source := filter.New(nil, gen)
	chain := filter.New(filter.New(source, echo), filter.Null{})

	assert.Equal(t, filter.Filter(chain), filter.Ancestor(chain, 0))
	assert.Equal(t, filter.Filter(source), filter.Ancestor(chain, 2))
	assert.Nil(t, filter.Ancestor(chain, 3))
	assert.Nil(t, filter.Ancestor(chain, 10))

	g, ok := filter.StageAt[*filter.Generator](chain, 2)
	require.True(t, ok)
	assert.Same(t, gen, g)
	e, ok := filter.StageAt[*filter.Echo](chain, 1)
	require.True(t, ok)
	assert.Same(t, echo, e)
	_, ok = filter.StageAt[*filter.Echo](chain, 2)
	assert.False(t, ok)
	_, ok = filter.StageAt[*filter.Echo](chain, 5)
	assert.False(t, ok)
}

type closer struct {
	filter.Null
	closed bool
	err    error
}

func (c *closer) Close() error {
	c.closed = true
	return c.err
}

func TestClose(t *testing.T) {
	first := &closer{err: errTest}
	second := &closer{}
	chain := filter.New(filter.New(filter.New(nil, first), filter.Null{}), second)
	err := filter.Close(chain)
	assert.True(t, errors.Is(err, errTest))
	assert.True(t, first.closed)
	assert.True(t, second.closed)

	assert.NoError(t, filter.Close(filter.New(nil, filter.Null{})))
}

func TestGenerator(t *testing.T) {
	gen := filter.NewSine(440, 0.5, rtio.DefaultParams())
	gen.Limit = 1000
	b := rtio.NewBuffer(256, rtio.DefaultParams())
	var valid []int
	for {
		b.Reset()
		err := gen.Apply(&b)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		valid = append(valid, b.Valid)
		for _, s := range b.Samples() {
			assert.LessOrEqual(t, s.Left, int16(16384))
			assert.GreaterOrEqual(t, s.Left, int16(-16384))
			assert.Equal(t, s.Left, s.Right)
		}
	}
	assert.Equal(t, []int{256, 256, 256, 232}, valid)
	assert.Equal(t, 0, b.Valid)
	assert.Equal(t, 1000, gen.Position())

	t.Run("disabled", func(t *testing.T) {
		gen := filter.NewGenerator(func(time.Duration) rtio.Sample { return rtio.Mono(7) }, rtio.DefaultParams())
		b := rtio.NewBuffer(4, rtio.DefaultParams())
		require.NoError(t, gen.Apply(&b))
		assert.Equal(t, []rtio.Sample{rtio.Mono(7), rtio.Mono(7), rtio.Mono(7), rtio.Mono(7)}, b.Samples())
		assert.False(t, gen.Toggle())
		require.NoError(t, gen.Apply(&b))
		assert.Equal(t, make([]rtio.Sample, 4), b.Samples())
		assert.Equal(t, 8, gen.Position())
		assert.True(t, gen.Toggle())
		assert.True(t, gen.Enabled())
	})
}

func TestEcho(t *testing.T) {
	p := rtio.DefaultParams()
	p.Rate = rtio.Rate8kHz
	// 4 frames of delay
	echo := filter.NewEcho(0.0005, 0.5)
	b := rtio.NewBuffer(6, p)
	b.Valid = 6
	b.Data[0] = rtio.Mono(1000)
	require.NoError(t, echo.Apply(&b))
	assert.Equal(t, rtio.Mono(500), b.Data[0])
	assert.Equal(t, rtio.Mono(250), b.Data[4])

	b.Reset()
	clear(b.Data)
	b.Valid = 6
	require.NoError(t, echo.Apply(&b))
	assert.Equal(t, rtio.Mono(125), b.Data[2])

	b.Params.Layout = rtio.LayoutUnknown
	assert.True(t, errors.Is(echo.Apply(&b), rtio.Unsupported))
}

func TestGain(t *testing.T) {
	g := filter.NewGain(0.5)
	b := rtio.NewBuffer(2, rtio.DefaultParams())
	copy(b.Data, []rtio.Sample{{Left: 100, Right: -100}, {Left: 30000, Right: 1}})
	b.Valid = 2
	require.NoError(t, g.Apply(&b))
	assert.Equal(t, []rtio.Sample{{Left: 50, Right: -50}, {Left: 15000, Right: 0}}, b.Samples())

	g.Set(4)
	assert.Equal(t, float64(4), g.Factor())
	require.NoError(t, g.Apply(&b))
	assert.Equal(t, rtio.Sample{Left: 32767, Right: 0}, b.Data[1])
}

func TestSineMultiply(t *testing.T) {
	m := filter.NewSineMultiply(1000)
	b := rtio.NewBuffer(3, rtio.DefaultParams())
	copy(b.Data, []rtio.Sample{rtio.Mono(1000), rtio.Mono(1000), rtio.Mono(1000)})
	b.Valid = 3
	require.NoError(t, m.Apply(&b))
	assert.Equal(t, rtio.Mono(0), b.Data[0])
	assert.NotEqual(t, rtio.Mono(1000), b.Data[1])
}

func TestObserver(t *testing.T) {
	var seen []rtio.Sample
	o := filter.NewObserver(func(s []rtio.Sample, p rtio.Params) {
		assert.Equal(t, rtio.DefaultParams(), p)
		seen = s
		s[0] = rtio.Mono(99)
	})
	b := rtio.NewBuffer(4, rtio.DefaultParams())
	copy(b.Data, mock.Ramp(1, 2))
	b.Valid = 2
	require.NoError(t, o.Apply(&b))
	assert.Len(t, seen, 2)
	assert.Equal(t, mock.Ramp(1, 2), b.Samples())
}

func TestCapture(t *testing.T) {
	logger, hook := test.NewNullLogger()
	pcm := &mock.PCM{Input: mock.Ramp(0, 10)}
	dev, err := device.NewPoll(rtio.Capture, pcm, rtio.DefaultParams())
	require.NoError(t, err)
	c, err := filter.NewCapture(dev, logger)
	require.NoError(t, err)
	source := filter.New(nil, c)
	assert.Equal(t, rtio.DefaultParams(), source.Params())

	b := rtio.NewBuffer(8, rtio.DefaultParams())
	require.NoError(t, source.Process(&b))
	assert.Equal(t, mock.Ramp(0, 8), b.Samples())
	require.NoError(t, source.Process(&b))
	assert.Equal(t, mock.Ramp(8, 2), b.Samples())
	// nothing available is zero samples, returned without waiting
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, source.Process(&b))
		assert.Equal(t, 0, b.Valid)
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	pcm.Input = append(pcm.Input, mock.Ramp(10, 1)...)
	pcm.XrunOnRead = 1
	require.NoError(t, source.Process(&b))
	assert.Equal(t, 1, c.Xruns())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)

	require.NoError(t, filter.Close(source))
	assert.True(t, pcm.Closed())
	require.NoError(t, c.Close())

	_, err = filter.NewCapture(dev, nil)
	assert.True(t, errors.Is(err, rtio.Invalid))
}
