package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"serial-plotter/internal/capture"
)

func samples(values ...float64) []capture.Sample {
	out := make([]capture.Sample, len(values))
	for i, v := range values {
		out[i] = capture.Sample{Seq: uint64(i), Value: v}
	}
	return out
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv")

	require.NoError(t, ExportCSV(path, samples(1.5, 2.25, -3.0), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1.5\n2.25\n-3.0\n", string(data))
}

func TestWriteCSVCRLF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samples(1, 2), Options{UseCRLF: true}))
	assert.Equal(t, "1.0\r\n2.0\r\n", buf.String())
}

func TestExportNoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	err := ExportCSV(path, nil, DefaultOptions())
	require.ErrorIs(t, err, ErrNoData)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportWriteError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "out.csv")

	err := ExportCSV(path, samples(1), Options{})
	var we *WriteError
	require.True(t, errors.As(err, &we))
	assert.Equal(t, path, we.Path)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestExportReplacesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.csv")

	require.NoError(t, ExportCSV(path, samples(1, 2, 3), Options{}))
	require.NoError(t, ExportCSV(path, samples(4), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "4.0\n", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSVPropagatesErrors(t *testing.T) {
	err := WriteCSV(failingWriter{}, samples(1), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{
		1.5:     "1.5",
		2.25:    "2.25",
		-3:      "-3.0",
		0:       "0.0",
		100:     "100.0",
		0.1:     "0.1",
		1e16:    "1e+16",
		1.5e-05: "1.5e-05",
		0.0001:  "0.0001",
	}
	for v, want := range tests {
		assert.Equal(t, want, FormatValue(v), "value %v", v)
	}
}
