/*
Package rtio is a real-time audio I/O engine. It moves fixed-size buffers
between a hardware audio device and a chain of processing stages.

A chain is built bottom-up: a source stage first, then transforms, and a sink
which owns the device and drives the loop:

	gen := filter.New(nil, filter.NewSine(440, 0.5, params))
	echo := filter.New(gen, filter.NewEcho(0.25, 0.4))
	dev, err := portaudio.Open(rtio.Playback, portaudio.DefaultDevice, params)
	if err != nil {
		return err
	}
	s, err := sink.New(echo, device.NewExclusive(dev))
	if err != nil {
		return err
	}
	err = s.Run()

Each iteration the sink pulls one buffer through the chain: every node asks
its child first and then applies its own stage in place. Samples are always
interleaved stereo signed 16-bit.

Device operations report flow control with Status values: BufferFull,
BufferEmpty and Busy mean "try again", Xrun means the hardware lost data but
recovered, and Failed, Invalid or Unsupported end the run.
*/
package rtio
