package box

import (
	"fmt"

	"github.com/mycophonic/untrunc/bytestream"
)

// Header is the parsed form of a box's first 8 (or 16, extended) bytes.
// Start is the absolute file offset of the first length byte; Length
// includes the header itself, per spec §3.
type Header struct {
	Start      int64
	Length     int64
	HeaderSize int64
	Type       [4]byte
}

const (
	smallHeaderSize = 8
	largeHeaderSize = 16
)

// ParseHeader consumes 8 or 16 bytes from the stream's current position and
// returns the decoded header. A declared 64-bit size follows when the
// 32-bit length field is 1; a 32-bit length of 0 means "extends to end of
// file" and is resolved against fileSize.
func ParseHeader(s *bytestream.Stream, fileSize int64) (Header, error) {
	start, err := s.Position()
	if err != nil {
		return Header{}, err
	}

	if fileSize-start < smallHeaderSize {
		return Header{}, fmt.Errorf("header at %d: %w", start, ErrTruncated)
	}

	rawLen, err := s.ReadU32BE()
	if err != nil {
		return Header{}, fmt.Errorf("reading length at %d: %w", start, err)
	}

	typeBytes, err := s.ReadExact(4)
	if err != nil {
		return Header{}, fmt.Errorf("reading type at %d: %w", start, err)
	}

	if !isPrintableASCII(typeBytes) {
		return Header{}, fmt.Errorf("type %q at %d: %w", typeBytes, start, ErrBadBox)
	}

	h := Header{Start: start, HeaderSize: smallHeaderSize}
	copy(h.Type[:], typeBytes)

	switch rawLen {
	case 0:
		h.Length = fileSize - start
	case 1:
		ext, err := s.ReadU64BE()
		if err != nil {
			return Header{}, fmt.Errorf("reading extended length at %d: %w", start, err)
		}

		h.HeaderSize = largeHeaderSize
		h.Length = int64(ext) //nolint:gosec // ISO BMFF lengths never approach int64 overflow in practice

	default:
		h.Length = int64(rawLen)
	}

	if h.Length < h.HeaderSize {
		return Header{}, fmt.Errorf("length %d < header size %d at %d: %w", h.Length, h.HeaderSize, start, ErrBadBox)
	}

	if start+h.Length > fileSize {
		return Header{}, fmt.Errorf("length %d at %d exceeds file size %d: %w", h.Length, start, fileSize, ErrTruncated)
	}

	return h, nil
}

// PayloadOffset returns the absolute file offset where this box's payload begins.
func (h Header) PayloadOffset() int64 {
	return h.Start + h.HeaderSize
}

// PayloadSize returns the number of payload bytes (Length minus header).
func (h Header) PayloadSize() int64 {
	return h.Length - h.HeaderSize
}

// End returns the absolute offset just past this box.
func (h Header) End() int64 {
	return h.Start + h.Length
}

func isPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}

	return true
}
