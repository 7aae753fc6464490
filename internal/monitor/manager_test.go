package monitor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-plotter/internal/acquire"
	"serial-plotter/internal/channel"
	"serial-plotter/internal/channel/channeltest"
	"serial-plotter/internal/export"
	"serial-plotter/internal/metrics"
	"serial-plotter/internal/render"
)

var testCfg = channel.Config{Port: "COM4", BaudRate: 1000000}

func newManager(t *testing.T, dev *channeltest.Device) *Manager {
	t.Helper()
	logger, _ := test.NewNullLogger()
	m := New(Options{
		Dial:         dev.Dial,
		WindowSize:   200,
		ResetOnStart: true,
		RenderPeriod: 5 * time.Millisecond,
		Margin:       10,
		Metrics:      metrics.New(prometheus.NewRegistry()),
		Logger:       logrus.NewEntry(logger),
	})
	t.Cleanup(m.Close)
	return m
}

func nextLine(t *testing.T, m *Manager) string {
	t.Helper()
	select {
	case line := <-m.Transcript():
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("no transcript line")
		return ""
	}
}

func TestAcquireAndExport(t *testing.T) {
	dev := channeltest.NewDevice()
	m := newManager(t, dev)

	require.NoError(t, m.StartAcquisition(testCfg))
	assert.True(t, m.Running())

	require.NoError(t, dev.Feed("1.5\n???\n2.25\n-3.0\n"))
	require.Eventually(t, func() bool { return m.Stats().LogLen == 3 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, "1.5", nextLine(t, m))
	assert.Equal(t, "2.25", nextLine(t, m))
	assert.Equal(t, "-3.0", nextLine(t, m))

	m.StopAcquisition()
	assert.False(t, m.Running())

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, m.ExportCSV(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.5\n2.25\n-3.0\n", string(data))
}

func TestStartTwiceRejected(t *testing.T) {
	dev := channeltest.NewDevice()
	m := newManager(t, dev)

	require.NoError(t, m.StartAcquisition(testCfg))
	require.ErrorIs(t, m.StartAcquisition(testCfg), acquire.ErrAlreadyRunning)
	assert.Equal(t, 1, dev.Opens())
}

func TestStartUnavailableReportsToTranscript(t *testing.T) {
	dev := channeltest.NewDevice()
	dev.FailOpen(errors.New("busy"))
	m := newManager(t, dev)

	require.ErrorIs(t, m.StartAcquisition(testCfg), channel.ErrUnavailable)
	assert.False(t, m.Running())
	assert.Equal(t, "Error: Could not open port COM4.", nextLine(t, m))
}

func TestExportEmpty(t *testing.T) {
	m := newManager(t, channeltest.NewDevice())
	err := m.ExportCSV(filepath.Join(t.TempDir(), "out.csv"))
	assert.ErrorIs(t, err, export.ErrNoData)
}

func TestExportWriteError(t *testing.T) {
	dev := channeltest.NewDevice()
	m := newManager(t, dev)
	require.NoError(t, m.StartAcquisition(testCfg))
	require.NoError(t, dev.Feed("1\n"))
	require.Eventually(t, func() bool { return m.Stats().LogLen == 1 }, 2*time.Second, 5*time.Millisecond)

	err := m.ExportCSV(filepath.Join(t.TempDir(), "nope", "out.csv"))
	var we *export.WriteError
	assert.ErrorAs(t, err, &we)
}

func TestSendRaw(t *testing.T) {
	dev := channeltest.NewDevice()
	m := newManager(t, dev)

	assert.ErrorIs(t, m.SendRaw([]byte("x")), channel.ErrClosed)

	require.NoError(t, m.StartAcquisition(testCfg))
	require.NoError(t, m.SendRaw([]byte("LED ON")))
	assert.Equal(t, "LED ON", dev.Written())
	assert.Equal(t, "Sent: LED ON", nextLine(t, m))
}

func TestSendRawRedraws(t *testing.T) {
	dev := channeltest.NewDevice()
	m := newManager(t, dev)
	require.NoError(t, m.StartAcquisition(testCfg))
	require.NoError(t, dev.Feed("4\n"))
	require.Eventually(t, func() bool { return m.Stats().LogLen == 1 }, 2*time.Second, 5*time.Millisecond)

	var mu sync.Mutex
	var frames []render.Instruction
	surface := render.SurfaceFunc(func(in render.Instruction) {
		mu.Lock()
		frames = append(frames, in)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.RunRenderer(ctx, surface) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) > 0
	}, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	first := frames[0]
	mu.Unlock()
	assert.Equal(t, render.Range{Min: -6, Max: 14}, first.Y)
	assert.Equal(t, []render.Point{{X: 0, Y: 4}}, first.Points)

	require.NoError(t, m.SendRaw([]byte("?")))
}

func TestChannelFailureNotifiesHost(t *testing.T) {
	dev := channeltest.NewDevice()
	logger, _ := test.NewNullLogger()
	stopped := make(chan error, 1)
	m := New(Options{
		Dial:   dev.Dial,
		Logger: logrus.NewEntry(logger),
		OnStopped: func(s acquire.Session, err error) {
			stopped <- err
		},
	})
	t.Cleanup(m.Close)

	require.NoError(t, m.StartAcquisition(testCfg))
	dev.Fail(errors.New("unplugged"))

	select {
	case err := <-stopped:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("host was not notified")
	}
	assert.False(t, m.Running())
	assert.Contains(t, nextLine(t, m), "unplugged")
}

func TestLateStopReportIsSuperseded(t *testing.T) {
	dev := channeltest.NewDevice()
	logger, _ := test.NewNullLogger()
	stopped := make(chan acquire.Session, 1)
	m := New(Options{
		Dial:   dev.Dial,
		Logger: logrus.NewEntry(logger),
		OnStopped: func(s acquire.Session, err error) {
			stopped <- s
		},
	})
	t.Cleanup(m.Close)

	require.NoError(t, m.StartAcquisition(testCfg))
	dev.Fail(errors.New("unplugged"))

	var old acquire.Session
	select {
	case old = <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("host was not notified")
	}
	assert.False(t, m.Superseded(old))

	// A restart before the host handles the report makes it stale.
	require.NoError(t, m.StartAcquisition(testCfg))
	assert.True(t, m.Superseded(old))
	assert.True(t, m.Running())
}
