package main

import (
	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/filter"
	"github.com/pipelined/rtio/sink"
	"github.com/pipelined/rtio/wav"
)

type recordCommand struct {
	Out     string  `short:"o" long:"out" required:"true" description:"WAV file to record to"`
	Seconds float64 `long:"seconds" default:"0" description:"Stop after seconds, zero records until interrupted"`
}

func (cmd *recordCommand) Execute([]string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	l := newLogger()
	dev, err := open(c, rtio.Capture, l)
	if err != nil {
		return err
	}
	capture, err := filter.NewCapture(dev, l)
	if err != nil {
		dev.Close()
		return err
	}
	chain := filter.New(nil, capture)
	defer filter.Close(chain)

	out, err := wav.Create(cmd.Out, c.Params())
	if err != nil {
		return err
	}
	m, stop := serveMetrics(l)
	defer stop()
	s, err := sink.New(chain, out, append(c.SinkOptions(l),
		sink.WithMeter(meter(m, "record", c)),
		sink.WithDrainOnStop(),
	)...)
	if err != nil {
		out.Close()
		return err
	}
	defer s.Close()

	ctx, cancel := interruptible()
	defer cancel()
	if err := run(ctx, s, seconds(cmd.Seconds)); err != nil {
		return err
	}
	l.WithField("xruns", capture.Xruns()).Infof("recorded %v to %s", c.Params().Duration(out.Frames()), cmd.Out)
	return nil
}
