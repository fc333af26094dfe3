package resumable

import (
	"github.com/reelpost/go-reelpost/reel/graph"
)

// DefaultChunkSize is the size of every chunk except the last one.
const DefaultChunkSize int64 = 4 * 1024 * 1024

// Config holds configuration for the resumable upload session.
type Config struct {
	// ChunkSize is the number of bytes sent per request.
	// Default: 4 MiB
	ChunkSize int64

	// MaxRetryPerChunk is the maximum number of attempts per chunk.
	// Default: 3
	MaxRetryPerChunk int

	// Sleeper waits between attempts of the same chunk.
	// Default: graph.RealSleeper
	Sleeper graph.Sleeper

	// Observer receives progress, retry and resync events.
	// Default: graph.NopObserver
	Observer graph.Observer
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:        DefaultChunkSize,
		MaxRetryPerChunk: 3,
		Sleeper:          graph.RealSleeper{},
		Observer:         graph.NopObserver{},
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.ChunkSize <= 0 {
		c.ChunkSize = defaults.ChunkSize
	}
	if c.MaxRetryPerChunk <= 0 {
		c.MaxRetryPerChunk = defaults.MaxRetryPerChunk
	}
	if c.Sleeper == nil {
		c.Sleeper = defaults.Sleeper
	}
	if c.Observer == nil {
		c.Observer = defaults.Observer
	}
	return c
}
