package track

import "errors"

var (
	// ErrMissingHeader is returned when a trak subtree is missing a box the
	// model cannot be built without (tkhd, mdia, mdhd, hdlr, minf, stbl,
	// stsd, stts, stsc, one of stco/co64, or one of stsz/stz2).
	ErrMissingHeader = errors.New("track: missing required header box")

	// ErrBadSampleTable is returned when a stz2 box declares a field size
	// other than 4, 8 or 16 bits.
	ErrBadSampleTable = errors.New("track: malformed sample table")
)
