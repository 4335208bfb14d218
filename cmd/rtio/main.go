// Command rtio plays and records audio through the rtio engine.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/config"
	"github.com/pipelined/rtio/log"
	"github.com/pipelined/rtio/malgo"
	"github.com/pipelined/rtio/metric"
	"github.com/pipelined/rtio/portaudio"
	"github.com/pipelined/rtio/sink"
)

var (
	successExitCode = 0
	errorExitCode   = 1
)

type options struct {
	Config  string `short:"c" long:"config" description:"TOML configuration file"`
	Verbose bool   `short:"v" long:"verbose" description:"Log debug messages"`
	Metrics string `long:"metrics" description:"Address to serve prometheus metrics on"`
}

var opts options

func main() {
	parser := flags.NewParser(&opts, flags.Default)
	parser.AddCommand("devices", "List devices", "List devices of the configured backend.", &devicesCommand{})
	parser.AddCommand("play", "Play a sine or a WAV file", "Play a sine or a WAV file through optional echo and gain.", &playCommand{})
	parser.AddCommand("record", "Record to a WAV file", "Record from the configured device to a WAV file.", &recordCommand{})
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(successExitCode)
		}
		os.Exit(errorExitCode)
	}
}

func newLogger() *logrus.Logger {
	l := log.New()
	if opts.Verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

func loadConfig() (config.Config, error) {
	if opts.Config == "" {
		return config.Default(), nil
	}
	return config.Load(opts.Config)
}

// serveMetrics starts the metrics endpoint if configured. The returned
// function shuts it down.
func serveMetrics(l log.Logger) (*metric.Metric, func()) {
	if opts.Metrics == "" {
		return nil, func() {}
	}
	reg := prometheus.NewRegistry()
	m := metric.New(reg)
	srv := &http.Server{
		Addr:              opts.Metrics,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.WithError(err).Warn("metrics server stopped")
		}
	}()
	return m, func() { srv.Close() }
}

// open opens a device of the configured backend, wrapped with the
// configured locking policy.
func open(c config.Config, action rtio.Action, l log.Logger) (rtio.Device, error) {
	var (
		dev rtio.Device
		err error
	)
	switch c.Backend {
	case config.Malgo:
		dev, err = malgo.Open(action, c.Device, c.Params(), c.DeviceOptions(l)...)
	default:
		dev, err = portaudio.Open(action, c.Device, c.Params(), c.DeviceOptions(l)...)
	}
	if err != nil {
		return nil, err
	}
	return c.Lock(dev), nil
}

// run runs s until it ends, limit passes or ctx is done. Limit zero
// means no limit.
func run(ctx context.Context, s *sink.Sink, limit time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return s.Run()
	})
	g.Go(func() error {
		var timeout <-chan time.Time
		if limit > 0 {
			t := time.NewTimer(limit)
			defer t.Stop()
			timeout = t.C
		}
		select {
		case <-gctx.Done():
		case <-timeout:
		}
		s.Stop()
		return nil
	})
	return g.Wait()
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
