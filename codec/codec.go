// Package codec implements per-codec sample-boundary recognition (spec
// §4.5): given the bytes starting at a candidate sample offset inside
// mdat, each matcher decides whether a sample of this codec could start
// there and, if so, how many bytes it consumes.
package codec

import (
	"github.com/mycophonic/untrunc/oracle"
	"github.com/mycophonic/untrunc/stats"
)

// Match is the result of a recognition attempt. Chances is an unbounded,
// unnormalized confidence score: callers compare Matches for the same
// offset across tracks and pick the highest, never an absolute
// threshold, mirroring the original project's unitless "chances" field.
type Match struct {
	Length        int     // bytes this sample consumes, 0 means "no sample here"
	Chances       float64 // confidence; 0 means reject
	Keyframe      bool
	DurationUnits uint64 // nonzero when the oracle reported a sample duration
	HasDuration   bool
}

// Reject is the zero-confidence Match returned by every matcher that
// doesn't recognize the bytes at this offset.
var Reject = Match{}

// four is a convenience four-character-code comparator against raw bytes.
func four(b []byte, s string) bool {
	return len(b) >= 4 && b[0] == s[0] && b[1] == s[1] && b[2] == s[2] && b[3] == s[3]
}

func readU32(b []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}

	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3]), true
}

func readU16(b []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(b) {
		return 0, false
	}

	return uint16(b[off])<<8 | uint16(b[off+1]), true
}

// Recognize dispatches to the matcher for codecTag (a four-character
// code taken from stsd), per the table in spec §4.5. An unrecognized
// codec falls through to the generic unknown matcher. avc1Opts only
// matters for the "avc1" case; every other matcher ignores it.
func Recognize(codecTag [4]byte, st *stats.Stats, start []byte, maxLen int, o oracle.Oracle, avc1Opts AVC1Options) Match {
	tag := string(codecTag[:])

	switch tag {
	case "avc1":
		return MatchAVC1(st, start, maxLen, o, avc1Opts)
	case "hev1", "hvc1":
		return MatchHEVC(st, start, maxLen)
	case "mp4a":
		return MatchMP4A(st, start, maxLen, o)
	case "mp4v":
		return MatchMP4V(st, start, maxLen, o)
	case "alac":
		return MatchALAC(st, start, maxLen, o)
	case "apcn", "apch":
		return MatchAPCH(st, start, maxLen)
	case "samr":
		return MatchSAMR(st, start, maxLen)
	case "lpcm", "in24", "sowt", "twos", "raw ", "NONE":
		return MatchFixedSize(st, start, maxLen)
	case "tmcd":
		return MatchTMCD(st, start, maxLen)
	case "text":
		return MatchText(st, start, maxLen)
	case "gpmd":
		return MatchGPMD(st, start, maxLen)
	case "fdsc":
		return MatchFDSC(st, start, maxLen)
	case "camm":
		return MatchCAMM(st, start, maxLen)
	case "mijd":
		return MatchMIJD(st, start, maxLen)
	case "mbex":
		return MatchMBEX(st, start, maxLen)
	case "rtp ":
		return MatchRTP(st, start, maxLen)
	default:
		return MatchUnknown(tag, st, start, maxLen)
	}
}
