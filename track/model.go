// Package track builds an in-memory sample-table model out of a trak box
// (and writes one back), independent of any particular codec: the model
// captures sample sizes, chunk offsets, decode times, and keyframe flags,
// leaving codec-specific boundary detection to the codec package.
package track

import (
	"fmt"

	"github.com/mycophonic/untrunc/box"
)

// Model is the sample-table state extracted from (or to be written into)
// one trak subtree.
type Model struct {
	TrackID   uint32
	Handler   [4]byte // "vide", "soun", "hint", "meta", ...
	Codec     [4]byte // first sample-description entry's four-char type
	Timescale uint32
	Duration  uint64

	SampleSizes     []uint32
	ChunkOffsets    []uint64
	SamplesPerChunk []uint32     // expanded 1:1 with ChunkOffsets
	SampleOffsets   []uint64     // absolute file offset of each sample, derived
	SampleTimes     []uint64     // decode-time delta of each sample
	Keyframes       map[int]bool // sample index -> is sync sample; nil means "every sample is a keyframe" (no stss present)

	DefaultSampleSize uint32 // stsz field: nonzero means every sample has this size
	DefaultSampleTime uint32 // set to 160 by FixTimes for samr tracks

	// HintedTrackID restores the original project's hint-track modeling
	// (original_source/track.cpp): a hint track's "hint" reference atom
	// names the track it describes timing for. Zero means not a hint track.
	HintedTrackID uint32

	Use64BitOffsets bool

	timesSizeMismatch bool

	trak    *box.Box
	stbl    *box.Box
	stsdBox *box.Box
	sttsBox *box.Box
	stssBox *box.Box
	stszBox *box.Box
	stscBox *box.Box
	stcoBox *box.Box
}

var (
	fcTrak = fourCC("trak")
	fcMdia = fourCC("mdia")
	fcMinf = fourCC("minf")
	fcStbl = fourCC("stbl")
	fcTkhd = fourCC("tkhd")
	fcMdhd = fourCC("mdhd")
	fcHdlr = fourCC("hdlr")
	fcStsd = fourCC("stsd")
	fcStts = fourCC("stts")
	fcStss = fourCC("stss")
	fcStsz = fourCC("stsz")
	fcStz2 = fourCC("stz2")
	fcStsc = fourCC("stsc")
	fcStco = fourCC("stco")
	fcCo64 = fourCC("co64")
	fcTref = fourCC("tref")
	fcHint = fourCC("hint")
)

func fourCC(s string) [4]byte {
	var t [4]byte
	copy(t[:], s)

	return t
}

func need(trak *box.Box, typ [4]byte) (*box.Box, error) {
	b := trak.FindFirst(typ)
	if b == nil {
		return nil, fmt.Errorf("%q: %w", typ, ErrMissingHeader)
	}

	return b, nil
}
