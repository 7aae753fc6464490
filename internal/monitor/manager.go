// Package monitor is the control surface a host uses to drive acquisition,
// sending, rendering and export.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"serial-plotter/internal/acquire"
	"serial-plotter/internal/capture"
	"serial-plotter/internal/channel"
	"serial-plotter/internal/export"
	"serial-plotter/internal/metrics"
	"serial-plotter/internal/render"
	"serial-plotter/internal/transcript"
)

type Options struct {
	Dial             channel.Dialer
	WindowSize       int
	ResetOnStart     bool
	TranscriptBuffer int
	RenderPeriod     time.Duration
	Margin           float64
	Export           export.Options
	Metrics          *metrics.Metrics
	Logger           *logrus.Entry

	// OnStopped is called when a session ends; see acquire.Options. Hosts
	// should ignore sessions for which Superseded reports true.
	OnStopped func(s acquire.Session, err error)
}

// Manager owns the capture store and the acquisition worker.
type Manager struct {
	opts   Options
	log    *logrus.Entry
	store  *capture.Store
	feed   *transcript.Feed
	worker *acquire.Worker

	mu        sync.Mutex
	scheduler *render.Scheduler
}

func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Manager{
		opts:  opts,
		log:   opts.Logger.WithField("component", "monitor"),
		store: capture.NewStore(opts.WindowSize),
		feed:  transcript.NewFeed(opts.TranscriptBuffer, opts.Metrics.TranscriptDropped),
	}
	m.worker = acquire.New(acquire.Options{
		Dial:         opts.Dial,
		Store:        m.store,
		Transcript:   m.feed,
		Metrics:      opts.Metrics,
		Logger:       opts.Logger,
		ResetOnStart: opts.ResetOnStart,
		OnStopped:    m.sessionStopped,
	})
	return m
}

// StartAcquisition opens cfg and starts recording. It returns
// acquire.ErrAlreadyRunning if a session is active and an error wrapping
// channel.ErrUnavailable if the port cannot be opened.
func (m *Manager) StartAcquisition(cfg channel.Config) error {
	err := m.worker.Start(cfg)
	if errors.Is(err, channel.ErrUnavailable) {
		m.feed.Offer(fmt.Sprintf("Error: Could not open port %s.", cfg.Port))
	}
	return err
}

// StopAcquisition closes the channel and waits for the worker to stop.
func (m *Manager) StopAcquisition() {
	m.worker.Stop()
}

// SendRaw writes p to the channel and echoes it to the transcript.
func (m *Manager) SendRaw(p []byte) error {
	if err := m.worker.Send(p); err != nil {
		return err
	}
	m.feed.Offer("Sent: " + string(p))

	m.mu.Lock()
	s := m.scheduler
	m.mu.Unlock()
	if s != nil {
		s.Fire()
	}
	return nil
}

// ExportCSV writes the capture log to path. It returns export.ErrNoData for
// an empty log and an *export.WriteError on I/O failure.
func (m *Manager) ExportCSV(path string) error {
	samples := m.store.SnapshotLog()
	err := export.ExportCSV(path, samples, m.opts.Export)
	log := m.log.WithField("path", path)
	switch {
	case err == nil:
		m.opts.Metrics.Exported("ok")
		log.WithField("samples", len(samples)).Info("exported capture log")
	case errors.Is(err, export.ErrNoData):
		m.opts.Metrics.Exported("no_data")
		log.Info("nothing to export")
	default:
		m.opts.Metrics.Exported("error")
		log.WithError(err).Error("export failed")
	}
	return err
}

// RunRenderer fires drawing instructions at surface every render period until
// ctx is done.
func (m *Manager) RunRenderer(ctx context.Context, surface render.Surface) error {
	s := render.NewScheduler(m.store, surface, render.Options{
		Period:  m.opts.RenderPeriod,
		Margin:  m.opts.Margin,
		Metrics: m.opts.Metrics,
	})
	m.log.WithField("period", m.opts.RenderPeriod).Debug("render scheduler started")
	m.mu.Lock()
	m.scheduler = s
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.scheduler == s {
			m.scheduler = nil
		}
		m.mu.Unlock()
	}()
	return s.Run(ctx)
}

// Transcript returns accepted sample text and sent payloads for display.
func (m *Manager) Transcript() <-chan string {
	return m.feed.Lines()
}

// Running reports whether a session is active.
func (m *Manager) Running() bool {
	return m.worker.State() == acquire.Running
}

// Superseded reports whether a newer session than s is running.
func (m *Manager) Superseded(s acquire.Session) bool {
	return m.worker.Superseded(s)
}

// Stats returns the capture store's current lengths.
func (m *Manager) Stats() capture.Stats {
	return m.store.Stats()
}

// Close stops any running session.
func (m *Manager) Close() {
	m.worker.Stop()
}

func (m *Manager) sessionStopped(s acquire.Session, err error) {
	if err != nil {
		m.feed.Offer(fmt.Sprintf("Error: %s: %v", s.Config.Port, err))
	}
	if m.opts.OnStopped != nil {
		m.opts.OnStopped(s, err)
	}
}
