// Package channeltest provides an in-memory stand-in for a serial device.
package channeltest

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"serial-plotter/internal/channel"
)

// Device is a fake serial device. Lines fed by the test arrive at the
// channel's ReadLine; bytes written by the channel are captured.
type Device struct {
	mu      sync.Mutex
	openErr error
	opens   int
	conn    *conn
	written bytes.Buffer
}

// NewDevice returns a device that opens successfully.
func NewDevice() *Device {
	return &Device{}
}

// FailOpen makes subsequent opens fail with err.
func (d *Device) FailOpen(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr = err
}

// Dial implements channel.Dialer.
func (d *Device) Dial(cfg channel.Config) (io.ReadWriteCloser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	pr, pw := io.Pipe()
	d.conn = &conn{dev: d, pr: pr, pw: pw}
	return d.conn, nil
}

// Opens reports how many times the device has been opened.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Feed writes raw bytes to the most recently opened connection. It blocks
// until the reader has consumed them and fails once the connection is closed.
func (d *Device) Feed(s string) error {
	c := d.current()
	if c == nil {
		return errors.New("channeltest: device not open")
	}
	_, err := c.pw.Write([]byte(s))
	return err
}

// Fail breaks the current connection so that reads return err.
func (d *Device) Fail(err error) {
	if c := d.current(); c != nil {
		_ = c.pw.CloseWithError(err)
	}
}

// Written returns everything the channel has written to the device.
func (d *Device) Written() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written.String()
}

// Closed reports whether the current connection has been closed.
func (d *Device) Closed() bool {
	c := d.current()
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (d *Device) current() *conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn
}

type conn struct {
	dev    *Device
	pr     *io.PipeReader
	pw     *io.PipeWriter
	mu     sync.Mutex
	closed bool
}

func (c *conn) Read(p []byte) (int, error) {
	return c.pr.Read(p)
}

func (c *conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, io.ErrClosedPipe
	}
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.dev.written.Write(p)
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.pw.Close()
	return c.pr.Close()
}
