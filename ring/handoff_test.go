package ring_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/rtio/ring"
)

func seq(from, n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(from + i)
	}
	return b
}

func TestHandoff(t *testing.T) {
	h := ring.NewHandoff(16, 4)
	assert.Equal(t, 16, h.Cap())
	assert.Equal(t, 0, h.Read(make([]byte, 8)))

	assert.False(t, h.Write(seq(0, 12)))
	assert.Equal(t, 12, h.Len())
	assert.Equal(t, 4, h.Free())

	out := make([]byte, 8)
	assert.Equal(t, 8, h.Read(out))
	assert.Equal(t, seq(0, 8), out)

	// wraps around the end
	assert.False(t, h.Write(seq(12, 8)))
	out = make([]byte, 16)
	n := h.Read(out)
	assert.Equal(t, 12, n)
	assert.Equal(t, seq(8, 12), out[:n])
	assert.Equal(t, 0, h.Len())
}

func TestHandoffReadsWholeFrames(t *testing.T) {
	h := ring.NewHandoff(16, 4)
	h.Write(seq(0, 8))
	out := make([]byte, 6)
	assert.Equal(t, 4, h.Read(out))
	assert.Equal(t, 4, h.Len())
	// partial frames are not stored
	h.Write(seq(0, 3))
	assert.Equal(t, 4, h.Len())
}

func TestHandoffOverflow(t *testing.T) {
	tests := []struct {
		description string
		writes      [][]byte
		expected    []byte
	}{
		{
			description: "oldest frames dropped",
			writes:      [][]byte{seq(0, 12), seq(12, 8)},
			expected:    seq(4, 16),
		},
		{
			description: "write larger than capacity",
			writes:      [][]byte{seq(0, 4), seq(100, 24)},
			expected:    seq(108, 16),
		},
		{
			description: "many small writes",
			writes:      [][]byte{seq(0, 8), seq(8, 8), seq(16, 8), seq(24, 8)},
			expected:    seq(16, 16),
		},
	}
	for _, test := range tests {
		t.Run(test.description, func(t *testing.T) {
			h := ring.NewHandoff(16, 4)
			overflow := false
			for _, w := range test.writes {
				overflow = h.Write(w) || overflow
			}
			assert.True(t, overflow)
			out := make([]byte, 32)
			n := h.Read(out)
			assert.Equal(t, test.expected, out[:n])
		})
	}
}

func TestHandoffWriteAvailable(t *testing.T) {
	h := ring.NewHandoff(16, 4)
	assert.Equal(t, 12, h.WriteAvailable(seq(0, 12)))
	assert.Equal(t, 4, h.WriteAvailable(seq(12, 10)))
	assert.Equal(t, 0, h.WriteAvailable(seq(16, 4)))
	out := make([]byte, 16)
	assert.Equal(t, 16, h.Read(out))
	assert.Equal(t, seq(0, 16), out)
	h.Write(seq(0, 8))
	h.Reset()
	assert.Equal(t, 0, h.Len())
}

func TestHandoffConcurrent(t *testing.T) {
	h := ring.NewHandoff(64, 4)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			h.Write(seq(i, 12))
		}
	}()
	go func() {
		defer wg.Done()
		out := make([]byte, 20)
		for i := 0; i < 1000; i++ {
			n := h.Read(out)
			assert.Equal(t, 0, n%4)
		}
	}()
	wg.Wait()
	assert.True(t, h.Len() <= h.Cap())
}
