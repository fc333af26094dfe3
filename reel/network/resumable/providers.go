package resumable

import (
	"fmt"
	"io"
	"os"
)

// ChunkReader reads the bytes of a chunk at an arbitrary offset. The same range may be read
// several times when a chunk is retried or the cursor is moved back.
type ChunkReader interface {
	ReadChunk(offset, length int64) ([]byte, error)
	Close() error
}

// FileChunkReader reads chunks from a file on disk.
type FileChunkReader struct {
	file *os.File
}

// NewFileChunkReader opens the file at path. The caller must Close it.
func NewFileChunkReader(path string) (*FileChunkReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return &FileChunkReader{file: file}, nil
}

// ReadChunk reads at most length bytes starting at offset.
func (p *FileChunkReader) ReadChunk(offset, length int64) ([]byte, error) {
	if _, err := p.file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to position %d: %w", offset, err)
	}

	chunk := make([]byte, length)
	n, err := io.ReadFull(p.file, chunk)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("read chunk at %d: %w", offset, err)
	}

	if n == 0 {
		return nil, fmt.Errorf("unexpected end of file at offset %d", offset)
	}

	return chunk[:n], nil
}

// Close closes the underlying file.
func (p *FileChunkReader) Close() error {
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
