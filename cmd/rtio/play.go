package main

import (
	"time"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/config"
	"github.com/pipelined/rtio/filter"
	"github.com/pipelined/rtio/metric"
	"github.com/pipelined/rtio/sink"
	"github.com/pipelined/rtio/wav"
)

// echo parameters of the --echo flag.
const (
	echoDelay = 0.25
	echoDecay = 0.4
)

type playCommand struct {
	Freq    float64 `long:"freq" default:"440" description:"Sine frequency in Hz"`
	Echo    bool    `long:"echo" description:"Add echo"`
	Gain    float64 `long:"gain" default:"0.5" description:"Gain factor"`
	Seconds float64 `long:"seconds" default:"0" description:"Stop after seconds, zero plays the sine until interrupted and files to the end"`
	Wav     string  `long:"wav" description:"WAV file to play instead of the sine"`
}

// chain builds the chain of the command. The configured rate is replaced
// by the file rate when a file is played.
func (cmd *playCommand) chain(c *config.Config) (filter.Filter, error) {
	var chain filter.Filter
	if cmd.Wav != "" {
		source, err := wav.Open(cmd.Wav)
		if err != nil {
			return nil, err
		}
		c.Rate = source.Params().Rate
		chain = filter.New(nil, source)
	} else {
		chain = filter.New(nil, filter.NewSine(cmd.Freq, 1, c.Params()))
	}
	if cmd.Echo {
		chain = filter.New(chain, filter.NewEcho(echoDelay, echoDecay))
	}
	return filter.New(chain, filter.NewGain(cmd.Gain)), nil
}

func (cmd *playCommand) Execute([]string) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	l := newLogger()
	chain, err := cmd.chain(&c)
	if err != nil {
		return err
	}
	defer filter.Close(chain)

	dev, err := open(c, rtio.Playback, l)
	if err != nil {
		return err
	}
	m, stop := serveMetrics(l)
	defer stop()
	s, err := sink.New(chain, dev, append(c.SinkOptions(l), sink.WithMeter(meter(m, "play", c)))...)
	if err != nil {
		dev.Close()
		return err
	}
	defer s.Close()

	ctx, cancel := interruptible()
	defer cancel()
	return run(ctx, s, seconds(cmd.Seconds))
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func meter(m *metric.Metric, component string, c config.Config) *metric.Meter {
	return m.Meter(component, c.Params().Rate.Hz())
}
