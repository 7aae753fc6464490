// Package export writes the capture log to CSV.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"serial-plotter/internal/capture"
)

// ErrNoData is returned when there is nothing to export.
var ErrNoData = errors.New("no data to export")

// WriteError reports an I/O failure while exporting to Path.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Options controls the CSV layout.
type Options struct {
	// UseCRLF terminates rows with \r\n. DefaultOptions sets it on Windows.
	UseCRLF bool
}

// DefaultOptions uses the platform's line terminator.
func DefaultOptions() Options {
	return Options{UseCRLF: runtime.GOOS == "windows"}
}

// WriteCSV writes one unlabeled value per row, in capture order, with no
// header row.
func WriteCSV(w io.Writer, samples []capture.Sample, opts Options) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = opts.UseCRLF

	record := make([]string, 1)
	for _, s := range samples {
		record[0] = FormatValue(s.Value)
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv writer: %w", err)
	}
	return nil
}

// ExportCSV writes samples to path. The data goes to a temporary file in the
// same directory which is renamed over path only once fully written, so a
// failed export never replaces an earlier file.
func ExportCSV(path string, samples []capture.Sample, opts Options) error {
	if len(samples) == 0 {
		return ErrNoData
	}
	if path == "" {
		return &WriteError{Path: path, Err: errors.New("empty destination path")}
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	tmp := f.Name()
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(tmp)
		return &WriteError{Path: path, Err: err}
	}

	if err := WriteCSV(f, samples, opts); err != nil {
		return fail(err)
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync file: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return &WriteError{Path: path, Err: fmt.Errorf("failed to close file: %w", err)}
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		_ = os.Remove(tmp)
		return &WriteError{Path: path, Err: fmt.Errorf("failed to set permissions: %w", err)}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &WriteError{Path: path, Err: fmt.Errorf("failed to replace file: %w", err)}
	}
	return nil
}

// FormatValue renders v in its shortest round-trip form, keeping a ".0" on
// integral values and switching to exponent form for very large or very small
// magnitudes (1.5, -3.0, 1e+16, 1.5e-05).
func FormatValue(v float64) string {
	abs := math.Abs(v)
	if abs >= 1e16 || (abs != 0 && abs < 1e-4) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
