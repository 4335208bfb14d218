// Package metric exposes rtio activity as prometheus metrics.
package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pipelined/rtio"
	"github.com/pipelined/rtio/signal"
)

const componentLabel = "component"

// Metric holds collectors shared by all meters.
type Metric struct {
	buffers  *prometheus.CounterVec
	samples  *prometheus.CounterVec
	duration *prometheus.CounterVec
	statuses *prometheus.CounterVec
	xruns    *prometheus.CounterVec
	latency  *prometheus.GaugeVec
	state    *prometheus.GaugeVec
}

// New registers rtio collectors with reg.
func New(reg prometheus.Registerer) *Metric {
	f := promauto.With(reg)
	return &Metric{
		buffers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtio_buffers_total",
			Help: "Total number of buffers passed to devices",
		}, []string{componentLabel}),
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtio_samples_total",
			Help: "Total number of samples passed to devices",
		}, []string{componentLabel}),
		duration: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtio_signal_seconds_total",
			Help: "Total duration of signal passed to devices",
		}, []string{componentLabel}),
		statuses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtio_statuses_total",
			Help: "Statuses returned by device operations",
		}, []string{componentLabel, "status"}),
		xruns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rtio_xruns_total",
			Help: "Hardware underruns and overruns",
		}, []string{componentLabel}),
		latency: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtio_buffer_latency_seconds",
			Help: "Time between the last two buffers",
		}, []string{componentLabel}),
		state: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rtio_state",
			Help: "Current state of the component",
		}, []string{componentLabel}),
	}
}

// Meter returns a meter for a single component. Sample rate is used to
// compute signal duration. A nil Metric returns a nil Meter.
func (m *Metric) Meter(component string, sampleRate int) *Meter {
	if m == nil {
		return nil
	}
	return &Meter{
		buffers:    m.buffers.WithLabelValues(component),
		samples:    m.samples.WithLabelValues(component),
		duration:   m.duration.WithLabelValues(component),
		statuses:   m.statuses.MustCurryWith(prometheus.Labels{componentLabel: component}),
		xruns:      m.xruns.WithLabelValues(component),
		latency:    m.latency.WithLabelValues(component),
		state:      m.state.WithLabelValues(component),
		sampleRate: sampleRate,
	}
}

// Meter captures metrics of a single component. A nil meter discards
// everything. Meter is not safe for concurrent use.
type Meter struct {
	buffers  prometheus.Counter
	samples  prometheus.Counter
	duration prometheus.Counter
	statuses *prometheus.CounterVec
	xruns    prometheus.Counter
	latency  prometheus.Gauge
	state    prometheus.Gauge

	sampleRate     int
	calledAt       time.Time
	bufferSize     int
	bufferDuration time.Duration
}

// Buffer measures a buffer of size samples.
func (m *Meter) Buffer(size int) {
	if m == nil {
		return
	}
	now := time.Now()
	if !m.calledAt.IsZero() {
		m.latency.Set(now.Sub(m.calledAt).Seconds())
	}
	m.calledAt = now
	m.buffers.Inc()
	m.samples.Add(float64(size))
	// recalculate buffer duration only when buffer size has changed
	if m.bufferSize != size {
		m.bufferSize = size
		m.bufferDuration = signal.DurationOf(m.sampleRate, int64(size))
	}
	m.duration.Add(m.bufferDuration.Seconds())
}

// Status counts a status returned by a device.
func (m *Meter) Status(s rtio.Status) {
	if m == nil {
		return
	}
	m.statuses.WithLabelValues(s.String()).Inc()
	if s == rtio.Xrun {
		m.xruns.Inc()
	}
}

// State sets the state gauge.
func (m *Meter) State(v int) {
	if m == nil {
		return
	}
	m.state.Set(float64(v))
}
