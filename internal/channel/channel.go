// Package channel wraps a serial port as a line-oriented communication
// channel: blocking line reads, best-effort writes, and a Close that is safe
// to call while another goroutine is blocked in ReadLine.
package channel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"
)

var (
	// ErrUnavailable is returned by Open when the port cannot be opened.
	ErrUnavailable = errors.New("channel unavailable")
	// ErrClosed is returned by ReadLine and Write once the channel is closed.
	ErrClosed = errors.New("channel closed")
)

// Config selects the port and baud rate for one acquisition session.
type Config struct {
	Port     string
	BaudRate int
}

func (c Config) String() string {
	return fmt.Sprintf("%s@%d", c.Port, c.BaudRate)
}

// Dialer opens the underlying byte stream for a Config.
type Dialer func(cfg Config) (io.ReadWriteCloser, error)

// SerialDialer opens a real serial port with 8N1 framing.
func SerialDialer(cfg Config) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	// No read timeout: ReadLine blocks until data arrives or Close is called.
	return serial.Open(cfg.Port, mode)
}

// Handle is an open channel.
type Handle struct {
	cfg    Config
	port   io.ReadWriteCloser
	reader *bufio.Reader

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens the channel described by cfg using dial.
func Open(dial Dialer, cfg Config) (*Handle, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("%w: no port selected", ErrUnavailable)
	}
	if cfg.BaudRate <= 0 {
		return nil, fmt.Errorf("%w: invalid baud rate %d", ErrUnavailable, cfg.BaudRate)
	}
	if dial == nil {
		dial = SerialDialer
	}
	port, err := dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrUnavailable, cfg, err)
	}
	return &Handle{
		cfg:    cfg,
		port:   port,
		reader: bufio.NewReader(port),
	}, nil
}

// Config returns the configuration the handle was opened with.
func (h *Handle) Config() Config {
	return h.cfg
}

// ReadLine blocks until a full '\n' terminated line is available and returns
// it without the terminator. An unterminated fragment pending when the
// channel closes is discarded.
//
// ErrClosed is returned only after Close. Any other read error, including
// EOF or a port reported closed by the driver (device unplugged), is a
// channel failure and is returned wrapped.
//
// ReadLine must only be called from a single goroutine.
func (h *Handle) ReadLine() ([]byte, error) {
	line, err := h.reader.ReadBytes('\n')
	if err != nil {
		if h.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("read %s: %w", h.cfg, err)
	}
	return line[:len(line)-1], nil
}

// Write sends p on the channel.
func (h *Handle) Write(p []byte) error {
	if h.closed.Load() {
		return ErrClosed
	}
	if _, err := h.port.Write(p); err != nil {
		if h.closed.Load() {
			return ErrClosed
		}
		return fmt.Errorf("write %s: %w", h.cfg, err)
	}
	return nil
}

// Close releases the port. It is idempotent; a goroutine blocked in ReadLine
// observes ErrClosed.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeErr = h.port.Close()
	})
	return h.closeErr
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}
