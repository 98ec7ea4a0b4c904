package bytestream

import "errors"

var (
	// ErrNotOpen is returned when an operation is attempted on a Stream that
	// has already been closed.
	ErrNotOpen = errors.New("bytestream: not open")

	// ErrUnexpectedEOF is returned when a read consumes fewer bytes than requested.
	ErrUnexpectedEOF = errors.New("bytestream: unexpected eof")
)
