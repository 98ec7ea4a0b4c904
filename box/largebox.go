package box

import (
	"fmt"
	"io"
	"os"

	"github.com/mycophonic/untrunc/bytestream"
)

// windowSize is the sliding-window buffer size used when copying an mdat's
// payload without holding the whole (often multi-gigabyte) blob in memory.
const windowSize = 4 << 20

// LargeBox is the file-backed representation of an mdat payload (spec
// §3.3/§9): rather than reading potentially gigabytes of sample data into
// a Box's Data field, it keeps a *os.File handle and an offset/size window
// and streams content on demand.
//
// Byte ranges queried against the window use the inclusive-begin,
// inclusive-end comparison `begin <= offset && offset+size <= end`; the
// original project instead compared against a window advanced by a fixed
// stride, which could reject a range that started exactly at the new
// buffer's first byte. This implementation recomputes the comparison from
// the actual window bounds every time, so no such edge exists.
type LargeBox struct {
	file       *os.File
	fileOffset int64 // absolute offset of the payload's first byte in the source file
	size       int64 // payload size, independent of any header field
	headerSize int64

	bufBegin int64
	bufEnd   int64
	buf      []byte
}

func newLargeBox(s *bytestream.Stream, h Header) (*LargeBox, error) {
	return &LargeBox{
		file:       s.File(),
		fileOffset: h.PayloadOffset(),
		size:       h.PayloadSize(),
		headerSize: h.HeaderSize,
	}, nil
}

// NewMdat builds a file-backed mdat Box anchored at payloadOffset for
// size bytes, using the given header size for length accounting. This is
// the same representation Parse installs for a well-formed mdat, exposed
// so a caller that locates mdat with its own lenient scan (spec §4.7
// stage 1: a declared length that runs past actual EOF gets clamped
// rather than rejected) can build one without going through Parse.
func NewMdat(s *bytestream.Stream, headerSize, payloadOffset, size int64) *Box {
	return &Box{
		Header: Header{
			Start:      payloadOffset - headerSize,
			Length:     headerSize + size,
			HeaderSize: headerSize,
			Type:       fourCC("mdat"),
		},
		Large: &LargeBox{
			file:       s.File(),
			fileOffset: payloadOffset,
			size:       size,
			headerSize: headerSize,
		},
	}
}

// HeaderSize returns the box header size (8 or 16 bytes) this mdat needs
// for its current payload size: 16 when the parsed header size plus the
// payload size exceeds 32 bits, 8 otherwise, whichever size it was
// parsed with.
func (lb *LargeBox) HeaderSize() int64 {
	if lb.headerSize+lb.size > 0xffffffff {
		return largeHeaderSize
	}

	return smallHeaderSize
}

// Size returns the current payload size.
func (lb *LargeBox) Size() int64 {
	return lb.size
}

// Resize changes the logical payload size. Growing past the bytes backing
// the original file is not supported: the repair engine only ever shrinks
// or preserves mdat (samples it can't account for are truncated away, not
// invented), so a caller asking to grow gets ErrUnsupported.
func (lb *LargeBox) Resize(newSize int64) error {
	if newSize > lb.size {
		return fmt.Errorf("mdat grow %d -> %d: %w", lb.size, newSize, ErrUnsupported)
	}

	lb.size = newSize

	return nil
}

// ReadAt reads len(p) bytes of payload starting at the given offset
// relative to the start of the payload, refilling the sliding window from
// the source file when the request falls outside it.
func (lb *LargeBox) ReadAt(p []byte, offset int64) error {
	if offset < 0 || offset+int64(len(p)) > lb.size {
		return fmt.Errorf("mdat read [%d,%d) of %d: %w", offset, offset+int64(len(p)), lb.size, ErrTruncated)
	}

	if !lb.covers(offset, int64(len(p))) {
		if err := lb.fill(offset); err != nil {
			return err
		}
	}

	start := offset - lb.bufBegin
	copy(p, lb.buf[start:start+int64(len(p))])

	return nil
}

func (lb *LargeBox) covers(offset, n int64) bool {
	return lb.buf != nil && lb.bufBegin <= offset && offset+n <= lb.bufEnd
}

func (lb *LargeBox) fill(offset int64) error {
	n := windowSize
	if offset+int64(n) > lb.size {
		n = int(lb.size - offset)
	}

	if cap(lb.buf) < n {
		lb.buf = make([]byte, n)
	} else {
		lb.buf = lb.buf[:n]
	}

	if _, err := lb.file.ReadAt(lb.buf, lb.fileOffset+offset); err != nil {
		return fmt.Errorf("refilling mdat window at %d: %w", offset, err)
	}

	lb.bufBegin = offset
	lb.bufEnd = offset + int64(n)

	return nil
}

// WriteTo streams the (possibly resized) payload to s in windowSize
// chunks, starting from the original source file offset so a shrunk mdat
// simply stops early rather than copying trailing bytes it no longer owns.
func (lb *LargeBox) WriteTo(s *bytestream.Stream) error {
	remaining := lb.size
	off := lb.fileOffset

	buf := make([]byte, windowSize)

	for remaining > 0 {
		n := int64(len(buf))
		if n > remaining {
			n = remaining
		}

		chunk := buf[:n]
		if _, err := lb.file.ReadAt(chunk, off); err != nil && err != io.EOF {
			return fmt.Errorf("streaming mdat at %d: %w", off, err)
		}

		if err := s.WriteAll(chunk); err != nil {
			return err
		}

		off += n
		remaining -= n
	}

	return nil
}
