package codec

import "github.com/mycophonic/untrunc/stats"

// amrnbPackedSize is the AMR-NB mode-to-frame-size lookup table (spec
// §4.5: "16-entry mode-to-packed-size lookup on mode bits").
var amrnbPackedSize = [16]int{13, 14, 16, 18, 20, 21, 27, 32, 6, 1, 1, 1, 1, 1, 1, 1}

// MatchSAMR decodes the AMR-NB frame-type octet's mode bits (3-6) and
// framing bit, rejecting mode > 9 or a missing framing bit.
func MatchSAMR(st *stats.Stats, start []byte, maxLen int) Match {
	if len(start) < 1 {
		return Reject
	}

	mode := (start[0] >> 3) & 0xf
	if mode > 9 || start[0]&0x4 != 0x4 {
		return Reject
	}

	length := amrnbPackedSize[mode]
	if length > maxLen {
		return Reject
	}

	return Match{Length: length, Chances: 4}
}
