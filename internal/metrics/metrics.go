// Package metrics exposes session counters for Prometheus scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ptyhost/ptyhost/internal/pty"
)

// ActiveCounter reports the number of running sessions at scrape time.
type ActiveCounter interface {
	ActiveCount() int
}

// Metrics holds the service's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	spawned       prometheus.Counter
	spawnFailures *prometheus.CounterVec
	exits         *prometheus.CounterVec
	bytesRead     prometheus.Counter
	bytesWritten  prometheus.Counter
	shortWrites   prometheus.Counter
}

// New creates the collectors and registers them with Go runtime metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		spawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ptyhost_sessions_spawned_total",
			Help: "Sessions whose process started successfully",
		}),
		spawnFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ptyhost_spawn_failures_total",
			Help: "Failed spawns by error kind",
		}, []string{"kind"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ptyhost_session_exits_total",
			Help: "Session exits, by whether the process exited with a code or a signal",
		}, []string{"kind"}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ptyhost_bytes_read_total",
			Help: "Bytes read from session terminals",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ptyhost_bytes_written_total",
			Help: "Bytes written to session terminals",
		}),
		shortWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ptyhost_short_writes_total",
			Help: "Writes that ran out of retries before all bytes were accepted",
		}),
	}
	m.registry.MustRegister(
		m.spawned,
		m.spawnFailures,
		m.exits,
		m.bytesRead,
		m.bytesWritten,
		m.shortWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// activeCollector reads the running session count at scrape time.
type activeCollector struct {
	source ActiveCounter
	desc   *prometheus.Desc
}

func (c *activeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *activeCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(c.source.ActiveCount()))
}

// TrackActive publishes ptyhost_sessions_active from src.
func (m *Metrics) TrackActive(src ActiveCounter) {
	if m == nil {
		return
	}
	m.registry.MustRegister(&activeCollector{
		source: src,
		desc: prometheus.NewDesc(
			"ptyhost_sessions_active",
			"Sessions whose process is still running",
			nil, nil,
		),
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) SpawnSucceeded() {
	if m == nil {
		return
	}
	m.spawned.Inc()
}

// SpawnFailed counts a failed spawn under the error's pty kind.
func (m *Metrics) SpawnFailed(err error) {
	if m == nil {
		return
	}
	kind := string(pty.KindOf(err))
	if kind == "" {
		kind = "other"
	}
	m.spawnFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) Exited(st pty.ExitStatus) {
	if m == nil {
		return
	}
	kind := "code"
	if st.Signaled() {
		kind = "signal"
	}
	m.exits.WithLabelValues(kind).Inc()
}

func (m *Metrics) BytesRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesRead.Add(float64(n))
}

func (m *Metrics) BytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.bytesWritten.Add(float64(n))
}

func (m *Metrics) ShortWrite() {
	if m == nil {
		return
	}
	m.shortWrites.Inc()
}
