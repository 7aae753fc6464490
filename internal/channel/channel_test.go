package channel_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-plotter/internal/channel"
	"serial-plotter/internal/channel/channeltest"
)

var testCfg = channel.Config{Port: "/dev/ttyTEST0", BaudRate: 115200}

func TestOpenUnavailable(t *testing.T) {
	dev := channeltest.NewDevice()
	dev.FailOpen(errors.New("permission denied"))

	_, err := channel.Open(dev.Dial, testCfg)
	require.ErrorIs(t, err, channel.ErrUnavailable)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestOpenRejectsEmptyConfig(t *testing.T) {
	dev := channeltest.NewDevice()

	_, err := channel.Open(dev.Dial, channel.Config{BaudRate: 9600})
	require.ErrorIs(t, err, channel.ErrUnavailable)

	_, err = channel.Open(dev.Dial, channel.Config{Port: "COM3"})
	require.ErrorIs(t, err, channel.ErrUnavailable)
	assert.Equal(t, 0, dev.Opens())
}

func TestReadLineSplitsOnNewline(t *testing.T) {
	dev := channeltest.NewDevice()
	h, err := channel.Open(dev.Dial, testCfg)
	require.NoError(t, err)
	defer h.Close()

	go func() { _ = dev.Feed("1.5\r\n2.25\n-3") }()

	line, err := h.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "1.5\r", string(line))

	line, err = h.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "2.25", string(line))
}

func TestCloseUnblocksReadLine(t *testing.T) {
	dev := channeltest.NewDevice()
	h, err := channel.Open(dev.Dial, testCfg)
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := h.ReadLine()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, h.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, channel.ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("ReadLine did not return after Close")
	}
	assert.True(t, h.Closed())
	assert.True(t, dev.Closed())
}

func TestCloseIsIdempotent(t *testing.T) {
	dev := channeltest.NewDevice()
	h, err := channel.Open(dev.Dial, testCfg)
	require.NoError(t, err)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
}

func TestWrite(t *testing.T) {
	dev := channeltest.NewDevice()
	h, err := channel.Open(dev.Dial, testCfg)
	require.NoError(t, err)

	require.NoError(t, h.Write([]byte("ping")))
	assert.Equal(t, "ping", dev.Written())

	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.Write([]byte("pong")), channel.ErrClosed)
	assert.Equal(t, "ping", dev.Written())
}

func TestReadFailureIsNotClosed(t *testing.T) {
	dev := channeltest.NewDevice()
	h, err := channel.Open(dev.Dial, testCfg)
	require.NoError(t, err)
	defer h.Close()

	ioErr := errors.New("device unplugged")
	dev.Fail(ioErr)

	_, err = h.ReadLine()
	require.ErrorIs(t, err, ioErr)
	assert.NotErrorIs(t, err, channel.ErrClosed)
}

func TestDeviceEOFIsFailure(t *testing.T) {
	dev := channeltest.NewDevice()
	h, err := channel.Open(dev.Dial, testCfg)
	require.NoError(t, err)
	defer h.Close()

	go func() { _ = dev.Feed("5\n") }()
	line, err := h.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "5", string(line))

	dev.Fail(io.EOF)

	_, err = h.ReadLine()
	require.ErrorIs(t, err, io.EOF)
	assert.NotErrorIs(t, err, channel.ErrClosed)
	assert.False(t, h.Closed())
}

func TestStandardBaudRatesIncludeDefault(t *testing.T) {
	assert.Contains(t, channel.StandardBaudRates, channel.DefaultBaudRate)
	assert.NotEmpty(t, channel.ListPorts())
}
