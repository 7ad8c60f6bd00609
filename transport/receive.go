package transport

import (
	"io"

	"github.com/cockroachdb/errors"
)

const DefaultChunkSize = 1024

// ReadAll reads r in chunkSize pieces until EOF and returns the accumulated bytes.
// onChunk, if set, is called with the size of every non-empty read.
// A zero-byte payload (immediate EOF) is returned as an empty, non-nil slice.
func ReadAll(r io.Reader, chunkSize int, onChunk func(n int)) ([]byte, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunk := make([]byte, chunkSize)
	acc := make([]byte, 0, chunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			acc = append(acc, chunk[:n]...)
			if onChunk != nil {
				onChunk(n)
			}
		}
		if err == io.EOF {
			return acc, nil
		}
		if err != nil {
			return acc, errors.Wrapf(ErrIOFailure, "read after %d bytes: %v", len(acc), err)
		}
	}
}
