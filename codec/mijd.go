package codec

import "github.com/mycophonic/untrunc/stats"

// MatchMIJD implements the proprietary MIJD matcher from spec §4.5: a
// packet starting with ASCII "mijd" carries its trailing image's
// relative offset at byte 44 and length at byte 48; a packet starting
// with the marker word 0x3030f800 is taken as a fixed 250 bytes.
func MatchMIJD(st *stats.Stats, start []byte, maxLen int) Match {
	if len(start) >= 52 && four(start, "mijd") {
		off, _ := readU32(start, 44)
		length, _ := readU32(start, 48)

		total := int(off) + int(length)
		if total > maxLen || total <= 0 {
			return Reject
		}

		return Match{Length: total, Chances: 1e30}
	}

	word, ok := readU32(start, 0)
	if ok && word == 0x3030f800 {
		if 250 > maxLen {
			return Reject
		}

		return Match{Length: 250, Chances: 1e30}
	}

	return Reject
}
