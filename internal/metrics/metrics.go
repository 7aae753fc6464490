// Package metrics instruments the acquisition pipeline with Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	linesRead        prometheus.Counter
	samplesAccepted  prometheus.Counter
	linesRejected    prometheus.Counter
	transcriptDrops  prometheus.Counter
	bytesSent        prometheus.Counter
	sessions         prometheus.Counter
	channelFailures  prometheus.Counter
	exports          *prometheus.CounterVec
	renders          prometheus.Counter
	windowLength     prometheus.Gauge
	logLength        prometheus.Gauge
	acquisitionState prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		linesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_lines_read_total",
			Help: "Complete lines read from the channel.",
		}),
		samplesAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_samples_accepted_total",
			Help: "Lines parsed into samples and recorded.",
		}),
		linesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_lines_rejected_total",
			Help: "Malformed lines dropped by the parser.",
		}),
		transcriptDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_transcript_dropped_total",
			Help: "Transcript lines dropped because the host was not keeping up.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_sent_bytes_total",
			Help: "Bytes written to the channel.",
		}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_sessions_total",
			Help: "Acquisition sessions started.",
		}),
		channelFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_channel_failures_total",
			Help: "Sessions ended by a channel error rather than an explicit stop.",
		}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plotter_exports_total",
			Help: "CSV export attempts by result.",
		}, []string{"result"}),
		renders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plotter_renders_total",
			Help: "Drawing instructions emitted.",
		}),
		windowLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plotter_window_length",
			Help: "Samples currently in the sliding window.",
		}),
		logLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plotter_log_length",
			Help: "Samples currently in the capture log.",
		}),
		acquisitionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plotter_acquisition_running",
			Help: "1 while the acquisition worker is running.",
		}),
	}
	reg.MustRegister(
		m.linesRead, m.samplesAccepted, m.linesRejected, m.transcriptDrops,
		m.bytesSent, m.sessions, m.channelFailures, m.exports, m.renders,
		m.windowLength, m.logLength, m.acquisitionState,
	)
	return m
}

func (m *Metrics) LineRead() {
	if m != nil {
		m.linesRead.Inc()
	}
}

func (m *Metrics) SampleAccepted() {
	if m != nil {
		m.samplesAccepted.Inc()
	}
}

func (m *Metrics) LineRejected() {
	if m != nil {
		m.linesRejected.Inc()
	}
}

func (m *Metrics) TranscriptDropped() {
	if m != nil {
		m.transcriptDrops.Inc()
	}
}

func (m *Metrics) Sent(n int) {
	if m != nil {
		m.bytesSent.Add(float64(n))
	}
}

func (m *Metrics) SessionStarted() {
	if m != nil {
		m.sessions.Inc()
		m.acquisitionState.Set(1)
	}
}

// SessionEnded records the end of a session; failed marks a channel error.
func (m *Metrics) SessionEnded(failed bool) {
	if m == nil {
		return
	}
	m.acquisitionState.Set(0)
	if failed {
		m.channelFailures.Inc()
	}
}

// Exported records an export attempt with result "ok", "no_data" or "error".
func (m *Metrics) Exported(result string) {
	if m != nil {
		m.exports.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Rendered() {
	if m != nil {
		m.renders.Inc()
	}
}

// StoreLengths sets the window and log gauges.
func (m *Metrics) StoreLengths(window, log int) {
	if m == nil {
		return
	}
	m.windowLength.Set(float64(window))
	m.logLength.Set(float64(log))
}

// Serve exposes gatherer on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *logrus.Entry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
