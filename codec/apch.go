package codec

import "github.com/mycophonic/untrunc/stats"

// MatchAPCH implements the Apple ProRes (apcn/apch) strategy from spec
// §4.5: the first 4 bytes are the sample length, and the next 4 must be
// the ASCII marker "icpf".
func MatchAPCH(st *stats.Stats, start []byte, maxLen int) Match {
	if len(start) < 8 {
		return Reject
	}

	length, ok := readU32(start, 0)
	if !ok {
		return Reject
	}

	if !four(start[4:8], "icpf") {
		return Reject
	}

	if int(length) > maxLen || length == 0 {
		return Reject
	}

	return Match{Length: int(length), Chances: 1 << 30}
}
