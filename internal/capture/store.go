// Package capture holds accepted samples: a bounded sliding window for live
// display and an unbounded log of the session for export.
package capture

import "sync"

// DefaultWindowSize is the number of samples kept for display.
const DefaultWindowSize = 200

// Sample is one accepted value and its ordinal position in the stream.
type Sample struct {
	Seq   uint64
	Value float64
}

// Stats summarises the store for metrics and status lines.
type Stats struct {
	WindowLen int
	LogLen    int
	NextSeq   uint64
}

// Store is safe for concurrent use. Every operation takes the same lock, so
// snapshots never observe a window mid-eviction.
type Store struct {
	mu sync.Mutex

	// window is a ring of at most len(window) samples; head indexes the oldest.
	window []Sample
	head   int
	count  int

	log  []Sample
	next uint64
}

// NewStore returns a store whose window holds at most windowSize samples.
// A non-positive size selects DefaultWindowSize.
func NewStore(windowSize int) *Store {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &Store{window: make([]Sample, windowSize)}
}

// WindowSize returns the window capacity.
func (s *Store) WindowSize() int {
	return len(s.window)
}

// Record assigns the next ordinal to value and appends the sample to both
// the window and the log, evicting the oldest window entry when full.
func (s *Store) Record(value float64) Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := Sample{Seq: s.next, Value: value}
	s.next++

	size := len(s.window)
	if s.count < size {
		s.window[(s.head+s.count)%size] = sample
		s.count++
	} else {
		s.window[s.head] = sample
		s.head = (s.head + 1) % size
	}
	s.log = append(s.log, sample)
	return sample
}

// SnapshotWindow returns a copy of the window, oldest first.
func (s *Store) SnapshotWindow() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Sample, s.count)
	size := len(s.window)
	for i := 0; i < s.count; i++ {
		out[i] = s.window[(s.head+i)%size]
	}
	return out
}

// SnapshotLog returns a copy of the full log in capture order.
func (s *Store) SnapshotLog() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Sample, len(s.log))
	copy(out, s.log)
	return out
}

// Reset clears the window and the log and restarts ordinals at zero.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.window)
	s.head = 0
	s.count = 0
	s.log = nil
	s.next = 0
}

// Stats returns the current lengths.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{WindowLen: s.count, LogLen: len(s.log), NextSeq: s.next}
}
