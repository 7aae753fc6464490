// Package acquire runs the goroutine that reads lines from the channel,
// parses them and records accepted samples.
package acquire

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"serial-plotter/internal/capture"
	"serial-plotter/internal/channel"
	"serial-plotter/internal/metrics"
	"serial-plotter/internal/parse"
	"serial-plotter/internal/transcript"
)

// ErrAlreadyRunning is returned by Start while a session is active.
var ErrAlreadyRunning = errors.New("acquisition already running")

// State is the worker's lifecycle state.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Session identifies one Stopped→Running→Stopped cycle. IDs increase with
// every successful Start.
type Session struct {
	ID     uint64
	Config channel.Config
}

// Options configures a Worker. Store is required.
type Options struct {
	Dial       channel.Dialer
	Store      *capture.Store
	Transcript *transcript.Feed
	Metrics    *metrics.Metrics
	Logger     *logrus.Entry

	// ResetOnStart clears the store whenever a session opens successfully.
	ResetOnStart bool

	// OnStopped is called once per session after the worker has released the
	// session. err is nil for an explicit Stop and the read error when the
	// channel failed. A newer session may already be running when it is
	// called; compare s against Current.
	OnStopped func(s Session, err error)
}

// Worker owns the channel for the lifetime of one session. At most one
// session runs at a time.
type Worker struct {
	opts Options

	mu      sync.Mutex
	handle  *channel.Handle
	session Session
	lastID  uint64
	done    chan struct{}
}

func New(opts Options) *Worker {
	if opts.Logger == nil {
		opts.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
	opts.Logger = opts.Logger.WithField("component", "acquire")
	return &Worker{opts: opts}
}

// Start opens the channel and launches the read loop. If the channel cannot
// be opened the worker stays Stopped and the channel.ErrUnavailable error is
// returned.
func (w *Worker) Start(cfg channel.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handle != nil {
		return ErrAlreadyRunning
	}

	log := w.opts.Logger.WithField("port", cfg.String())
	h, err := channel.Open(w.opts.Dial, cfg)
	if err != nil {
		log.WithError(err).Warn("open failed")
		return err
	}
	if w.opts.ResetOnStart {
		w.opts.Store.Reset()
		w.observeStore()
	}

	w.lastID++
	w.handle = h
	w.session = Session{ID: w.lastID, Config: cfg}
	w.done = make(chan struct{})
	w.opts.Metrics.SessionStarted()
	log = log.WithField("session", w.session.ID)
	log.Info("acquisition started")

	go w.run(h, w.session, w.done, log)
	return nil
}

// Stop closes the channel and waits for the read loop to exit. It is a no-op
// when the worker is already stopped.
func (w *Worker) Stop() {
	w.mu.Lock()
	h, done := w.handle, w.done
	w.mu.Unlock()

	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		w.opts.Logger.WithError(err).Warn("close channel")
	}
	<-done
}

// Send writes p to the open channel, or returns channel.ErrClosed.
func (w *Worker) Send(p []byte) error {
	w.mu.Lock()
	h := w.handle
	w.mu.Unlock()

	if h == nil {
		return channel.ErrClosed
	}
	if err := h.Write(p); err != nil {
		return err
	}
	w.opts.Metrics.Sent(len(p))
	return nil
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.handle != nil {
		return Running
	}
	return Stopped
}

// Current returns the running session.
func (w *Worker) Current() (Session, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.handle == nil {
		return Session{}, false
	}
	return w.session, true
}

// Superseded reports whether a session other than s is running, which
// makes a late OnStopped for s stale.
func (w *Worker) Superseded(s Session) bool {
	cur, ok := w.Current()
	return ok && cur.ID != s.ID
}

func (w *Worker) run(h *channel.Handle, session Session, done chan struct{}, log *logrus.Entry) {
	defer close(done)

	var failure error
	for {
		line, err := h.ReadLine()
		if err != nil {
			if !errors.Is(err, channel.ErrClosed) {
				failure = err
			}
			break
		}
		w.opts.Metrics.LineRead()

		value, ok := parse.Parse(line)
		if !ok {
			w.opts.Metrics.LineRejected()
			log.WithField("line", string(line)).Debug("dropped malformed line")
			continue
		}
		w.opts.Store.Record(value)
		w.opts.Metrics.SampleAccepted()
		w.observeStore()
		w.opts.Transcript.Offer(parse.Text(line))
	}

	_ = h.Close()
	w.mu.Lock()
	if w.handle == h {
		w.handle = nil
		w.session = Session{}
	}
	w.mu.Unlock()

	w.opts.Metrics.SessionEnded(failure != nil)
	if failure != nil {
		log.WithError(failure).Warn("acquisition stopped by channel failure")
	} else {
		log.Info("acquisition stopped")
	}
	if w.opts.OnStopped != nil {
		w.opts.OnStopped(session, failure)
	}
}

func (w *Worker) observeStore() {
	if w.opts.Metrics == nil {
		return
	}
	st := w.opts.Store.Stats()
	w.opts.Metrics.StoreLengths(st.WindowLen, st.LogLen)
}
