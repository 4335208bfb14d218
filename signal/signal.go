// Package signal converts rtio samples to and from other layouts:
//	- little-endian interleaved bytes used by drivers
//	- interleaved int slices used by go-audio buffers
//	- non-interleaved float64 used by analysis consumers
package signal

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pipelined/rtio"
)

const (
	// BitDepth16 is the only bit depth samples are stored with.
	BitDepth16 = BitDepth(16)
)

// BitDepth of int signals.
type BitDepth int

// devider is used when int to float conversion is done.
func (bitDepth BitDepth) devider() float64 {
	if bitDepth == BitDepth16 {
		return math.MaxInt16
	}
	return 1
}

// FrameSize is the size of an encoded sample in bytes.
const FrameSize = rtio.NumChannels * rtio.BytesPerSample

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// EncodeBytes writes samples into dst as little-endian interleaved s16
// and returns the number of samples encoded. Encoding stops when dst has
// no room for a whole frame.
func EncodeBytes(dst []byte, samples []rtio.Sample) int {
	n := min(len(samples), len(dst)/FrameSize)
	for i, s := range samples[:n] {
		binary.LittleEndian.PutUint16(dst[i*FrameSize:], uint16(s.Left))
		binary.LittleEndian.PutUint16(dst[i*FrameSize+2:], uint16(s.Right))
	}
	return n
}

// DecodeBytes reads whole frames from src into dst and returns the number
// of samples decoded.
func DecodeBytes(dst []rtio.Sample, src []byte) int {
	n := min(len(dst), len(src)/FrameSize)
	for i := range dst[:n] {
		dst[i] = rtio.Sample{
			Left:  int16(binary.LittleEndian.Uint16(src[i*FrameSize:])),
			Right: int16(binary.LittleEndian.Uint16(src[i*FrameSize+2:])),
		}
	}
	return n
}

// EncodeInts appends samples to dst as interleaved ints.
func EncodeInts(dst []int, samples []rtio.Sample) []int {
	for _, s := range samples {
		dst = append(dst, int(s.Left), int(s.Right))
	}
	return dst
}

// DecodeInts reads interleaved stereo ints into dst and returns the number
// of samples decoded. A trailing odd value is ignored.
func DecodeInts(dst []rtio.Sample, src []int) int {
	n := min(len(dst), len(src)/rtio.NumChannels)
	for i := range dst[:n] {
		dst[i] = rtio.Sample{Left: int16(src[2*i]), Right: int16(src[2*i+1])}
	}
	return n
}

// Float64 is a non-interleaved float64 signal.
type Float64 [][]float64

// AsFloat64 converts samples to a non-interleaved signal in [-1, 1].
func AsFloat64(samples []rtio.Sample) Float64 {
	devider := BitDepth16.devider()
	floats := Float64{make([]float64, len(samples)), make([]float64, len(samples))}
	for i, s := range samples {
		floats[0][i] = float64(s.Left) / devider
		floats[1][i] = float64(s.Right) / devider
	}
	return floats
}

// NumChannels returns number of channels in this signal.
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of samples in single channel.
func (floats Float64) Size() int {
	if floats.NumChannels() == 0 {
		return 0
	}
	return len(floats[0])
}
