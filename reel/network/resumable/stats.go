package resumable

import (
	"sync"
	"time"
)

// Stats tracks the chunk transfers of a session for reporting.
type Stats struct {
	sum            time.Duration
	finishedChunks int64
	bytes          int64
	retries        int64
	resyncs        int64
	mu             sync.Mutex
}

// NewStats creates a new Stats instance.
func NewStats() *Stats {
	return &Stats{}
}

// Update records a successful chunk transfer.
func (s *Stats) Update(d time.Duration, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sum += d
	s.bytes += n
	s.finishedChunks++
}

// Retry records a failed chunk attempt.
func (s *Stats) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries++
}

// Resync records a cursor move to the server offset.
func (s *Stats) Resync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resyncs++
}

// Average returns the average transfer duration of completed chunks.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedChunks == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finishedChunks)
}

// FinishedCount returns the number of completed chunk transfers.
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedChunks
}

// Bytes returns the number of bytes accepted by the server, resent bytes included.
func (s *Stats) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytes
}

// Retries ...
func (s *Stats) Retries() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// Resyncs ...
func (s *Stats) Resyncs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resyncs
}

// TotalDuration returns the sum of all transfer durations.
func (s *Stats) TotalDuration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sum
}
