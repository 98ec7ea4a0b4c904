package repair

import (
	"github.com/rs/zerolog"

	"github.com/mycophonic/untrunc/codec"
)

// DefaultMaxFrame bounds how many bytes a single sample probe may
// consume at one offset (spec §4.7 stage 2, "MAX_FRAME=1.6e6"): without
// it a codec matcher that never rejects could walk arbitrarily far into
// mdat on garbage bytes before giving up.
const DefaultMaxFrame = 1_600_000

// DefaultZeroSkipBytes is the stride the zero-run skip advances by when
// it meets a run of zero bytes inside mdat. The original project also
// had a disabled 0x1000-aligned variant intended for long zero runs;
// spec §9 leaves the right choice unspecified and asks for a knob rather
// than a silent pick, hence ZeroSkipBytes below.
const DefaultZeroSkipBytes = 4

// Options controls the stage 2 heuristics spec §9 flags as
// underspecified or device-specific, instead of baking in one answer.
type Options struct {
	// MaxFrame bounds the window handed to a codec recognizer at a
	// single offset. Zero means DefaultMaxFrame.
	MaxFrame int64

	// ZeroSkipBytes is the stride advanced over a run of zero bytes.
	// Zero means DefaultZeroSkipBytes; the original source's disabled
	// alternative used 0x1000.
	ZeroSkipBytes int64

	// AVC1 carries the strictness knobs the original project guarded out
	// with preprocessor flags (spec §9): all default to false, matching
	// its "in practice" laxness.
	AVC1 codec.AVC1Options

	// ExhaustiveScan restores the original project's "-c" brute-force
	// mode (spec §9): instead of giving up the moment no track claims an
	// offset, keep advancing one byte at a time, up to
	// ExhaustiveScanBudget attempts, looking for the next offset any
	// track recognizes. Severely corrupt files sometimes have a short
	// garbage run between two otherwise-recoverable samples that the
	// ordinary zero-run/stray-moov skips don't account for.
	ExhaustiveScan bool

	// ExhaustiveScanBudget bounds how many single-byte steps
	// ExhaustiveScan takes before giving up for good. Zero means
	// DefaultExhaustiveScanBudget.
	ExhaustiveScanBudget int64

	// Logger receives structured progress/diagnostic events. Nil means
	// no logging (zerolog.Nop()).
	Logger *zerolog.Logger
}

// DefaultExhaustiveScanBudget bounds the brute-force byte-by-byte search
// ExhaustiveScan falls back to.
const DefaultExhaustiveScanBudget = 1 << 20

func (o Options) exhaustiveScanBudget() int64 {
	if o.ExhaustiveScanBudget > 0 {
		return o.ExhaustiveScanBudget
	}

	return DefaultExhaustiveScanBudget
}

func (o Options) logger() zerolog.Logger {
	if o.Logger != nil {
		return *o.Logger
	}

	return zerolog.Nop()
}

func (o Options) maxFrame() int64 {
	if o.MaxFrame > 0 {
		return o.MaxFrame
	}

	return DefaultMaxFrame
}

func (o Options) zeroSkip() int64 {
	if o.ZeroSkipBytes > 0 {
		return o.ZeroSkipBytes
	}

	return DefaultZeroSkipBytes
}
