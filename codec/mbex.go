package codec

import "github.com/mycophonic/untrunc/stats"

// MatchMBEX implements the proprietary editing-metadata matcher from
// spec §4.5: a leading packet-length word bounded at 200, with a
// confidence boost when "crec" immediately follows the header.
func MatchMBEX(st *stats.Stats, start []byte, maxLen int) Match {
	length, ok := readU32(start, 0)
	if !ok || length > 200 {
		return Reject
	}

	if int(length) > maxLen {
		return Reject
	}

	chances := 1e10 / 200.0

	if len(start) >= 12 && four(start[8:], "crec") {
		chances *= 1e10
	}

	return Match{Length: int(length), Chances: chances}
}
