// Package bytestream provides sized, scoped sequential/random access over a
// file with big-endian integer reads and writes. It is the lowest-level
// collaborator the box and track packages build on.
package bytestream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Stream wraps an *os.File with buffered writes and big-endian integer
// helpers. The zero value is not usable; construct with Open or Create.
//
// Resource is scoped: Close flushes any pending buffered writes and closes
// the underlying handle. Using a Stream after Close returns ErrNotOpen.
type Stream struct {
	file   *os.File
	writer *bufio.Writer
	size   int64
	open   bool
}

// Open opens path for reading and random-access seeking.
func Open(path string) (*Stream, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied, same as the teacher's CLI
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()

		return nil, fmt.Errorf("stating %s: %w", path, err)
	}

	return &Stream{file: f, size: info.Size(), open: true}, nil
}

// Create creates (or truncates) path for writing.
func Create(path string) (*Stream, error) {
	f, err := os.Create(path) //nolint:gosec // path is operator-supplied, same as the teacher's CLI
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	return &Stream{file: f, writer: bufio.NewWriterSize(f, 1<<20), open: true}, nil
}

// Close flushes any pending buffered writes and closes the underlying file.
// Close is idempotent; calling it twice is safe.
func (s *Stream) Close() error {
	if !s.open {
		return nil
	}

	s.open = false

	var flushErr error
	if s.writer != nil {
		flushErr = s.writer.Flush()
	}

	closeErr := s.file.Close()

	if flushErr != nil {
		return fmt.Errorf("flushing: %w", flushErr)
	}

	if closeErr != nil {
		return fmt.Errorf("closing: %w", closeErr)
	}

	return nil
}

// Size returns the file size in bytes as observed at Open time.
func (s *Stream) Size() int64 {
	return s.size
}

// Position returns the current seek offset.
func (s *Stream) Position() (int64, error) {
	if !s.open {
		return 0, ErrNotOpen
	}

	pos, err := s.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("getting position: %w", err)
	}

	return pos, nil
}

// Seek moves the read/write position to an absolute offset.
func (s *Stream) Seek(offset int64) error {
	if !s.open {
		return ErrNotOpen
	}

	if _, err := s.file.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking to %d: %w", offset, err)
	}

	return nil
}

// ReadExact reads exactly n bytes at the current position.
func (s *Stream) ReadExact(n int) ([]byte, error) {
	if !s.open {
		return nil, ErrNotOpen
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(s.file, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("reading %d bytes: %w", n, ErrUnexpectedEOF)
		}

		return nil, fmt.Errorf("reading %d bytes: %w", n, err)
	}

	return buf, nil
}

// ReadAt reads exactly len(buf) bytes at the given absolute offset without
// disturbing the stream's sequential position on success.
func (s *Stream) ReadAt(buf []byte, offset int64) error {
	if !s.open {
		return ErrNotOpen
	}

	if _, err := s.file.ReadAt(buf, offset); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return fmt.Errorf("reading at %d: %w", offset, ErrUnexpectedEOF)
		}

		return fmt.Errorf("reading at %d: %w", offset, err)
	}

	return nil
}

// ReadU32BE reads a big-endian uint32 at the current position.
func (s *Stream) ReadU32BE() (uint32, error) {
	b, err := s.ReadExact(4)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint32(b), nil
}

// ReadU64BE reads a big-endian uint64 at the current position.
func (s *Stream) ReadU64BE() (uint64, error) {
	b, err := s.ReadExact(8)
	if err != nil {
		return 0, err
	}

	return binary.BigEndian.Uint64(b), nil
}

// WriteAll appends raw bytes to the output stream's buffered writer.
func (s *Stream) WriteAll(b []byte) error {
	if !s.open {
		return ErrNotOpen
	}

	if s.writer == nil {
		return fmt.Errorf("writing %d bytes: stream not opened for writing", len(b))
	}

	if _, err := s.writer.Write(b); err != nil {
		return fmt.Errorf("writing %d bytes: %w", len(b), err)
	}

	return nil
}

// WriteU32BE appends a big-endian uint32.
func (s *Stream) WriteU32BE(v uint32) error {
	var b [4]byte

	binary.BigEndian.PutUint32(b[:], v)

	return s.WriteAll(b[:])
}

// WriteU64BE appends a big-endian uint64.
func (s *Stream) WriteU64BE(v uint64) error {
	var b [8]byte

	binary.BigEndian.PutUint64(b[:], v)

	return s.WriteAll(b[:])
}

// File exposes the underlying *os.File for collaborators (e.g. LargeBox's
// windowed reads) that need direct ReaderAt access.
func (s *Stream) File() *os.File {
	return s.file
}
