// Package resumable implements the chunked, offset-synchronized binary upload protocol of the
// upload host: one container per session, chunks strictly in offset order, bounded retries per chunk.
package resumable

import (
	"fmt"
	"time"

	"github.com/reelpost/go-reelpost/reel/graph"
)

// Params describes one binary upload.
type Params struct {
	Target  graph.UploadTarget
	Caption string
	// CoverURL is sent with the init request when it is publicly reachable.
	CoverURL string
}

// TransferCursor tracks how much of the file the server has accepted.
// Invariant: 0 <= Offset <= FileSize.
type TransferCursor struct {
	Offset    int64
	FileSize  int64
	ChunkSize int64
}

// NewTransferCursor ...
func NewTransferCursor(fileSize, chunkSize int64) TransferCursor {
	return TransferCursor{
		FileSize:  fileSize,
		ChunkSize: chunkSize,
	}
}

// Done reports whether every byte was accepted.
func (c TransferCursor) Done() bool {
	return c.Offset >= c.FileSize
}

// NextLength is the length of the chunk starting at the current offset; the last chunk is shorter.
func (c TransferCursor) NextLength() int64 {
	remaining := c.FileSize - c.Offset
	if remaining < c.ChunkSize {
		return remaining
	}
	return c.ChunkSize
}

// Advance moves the cursor forward by n accepted bytes.
func (c *TransferCursor) Advance(n int64) {
	c.Offset = clamp(c.Offset+n, 0, c.FileSize)
}

// Reconcile moves the cursor to the offset reported by the server, which may be behind the local one.
// It returns true when the cursor moved.
func (c *TransferCursor) Reconcile(serverOffset int64) bool {
	next := clamp(serverOffset, 0, c.FileSize)
	if next == c.Offset {
		return false
	}
	c.Offset = next
	return true
}

// Percent ...
func (c TransferCursor) Percent() float64 {
	if c.FileSize == 0 {
		return 100
	}
	return float64(c.Offset) / float64(c.FileSize) * 100
}

func clamp(v, min, max int64) int64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// RetryState counts failed attempts of the current chunk. It starts over for every new chunk.
type RetryState struct {
	Attempt int
	Max     int
}

// Fail records a failed attempt.
func (r *RetryState) Fail() {
	r.Attempt++
}

// Exhausted reports whether no attempt is left.
func (r RetryState) Exhausted() bool {
	return r.Attempt >= r.Max
}

// Backoff is 1s after the first failure, 2s after the second and so on.
func (r RetryState) Backoff() time.Duration {
	if r.Attempt <= 0 {
		return 0
	}
	return graph.ExponentialBackoff(r.Attempt - 1)
}

// ChunkError is returned when a chunk could not be delivered. Err is the last classified failure.
type ChunkError struct {
	ContainerID string
	Offset      int64
	Attempts    int
	Err         error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("upload chunk at offset %d of container %s failed after %d attempt(s): %s", e.Offset, e.ContainerID, e.Attempts, e.Err)
}

// Unwrap ...
func (e *ChunkError) Unwrap() error {
	return e.Err
}
