// Package transcript carries human-readable lines from the core to the host's
// live log view. Offers never block: when the host falls behind, lines are
// dropped.
package transcript

import "sync/atomic"

// DefaultBuffer is the number of lines held for the host.
const DefaultBuffer = 256

// Feed is a bounded, non-blocking line queue.
type Feed struct {
	lines   chan string
	dropped atomic.Uint64
	onDrop  func()
}

// NewFeed returns a feed holding up to size lines. onDrop, if set, is called
// for every dropped line.
func NewFeed(size int, onDrop func()) *Feed {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Feed{lines: make(chan string, size), onDrop: onDrop}
}

// Offer queues line, reporting false if it was dropped.
func (f *Feed) Offer(line string) bool {
	if f == nil {
		return false
	}
	select {
	case f.lines <- line:
		return true
	default:
		f.dropped.Add(1)
		if f.onDrop != nil {
			f.onDrop()
		}
		return false
	}
}

// Lines returns the receive side. It is never closed.
func (f *Feed) Lines() <-chan string {
	return f.lines
}

// Dropped returns the number of lines dropped so far.
func (f *Feed) Dropped() uint64 {
	return f.dropped.Load()
}
