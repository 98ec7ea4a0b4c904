package box

import "errors"

var (
	// ErrTruncated is returned when a declared box length exceeds the bytes
	// actually available while parsing.
	ErrTruncated = errors.New("box: truncated")

	// ErrBadBox is returned when a header's declared length is too small or
	// its four-character type is not printable ASCII.
	ErrBadBox = errors.New("box: malformed header")

	// ErrNotFound is returned by Replace when the box to replace isn't a
	// child of the tree it's called on.
	ErrNotFound = errors.New("box: not found")

	// ErrTooDeep guards against pathological/adversarial nesting.
	ErrTooDeep = errors.New("box: nesting too deep")

	// ErrUnsupported is returned by LargeBox.Resize when asked to grow past
	// the file-backed window it was anchored to.
	ErrUnsupported = errors.New("box: unsupported resize")
)
