package codec

import "github.com/mycophonic/untrunc/stats"

// MatchTMCD implements the QuickTime timecode sample description check
// from spec §4.5: an 18-byte fixed header (reserved u32, flags u32 ≤ 15,
// timescale u32, frame duration u32, frame count u8, reserved u8 = 0)
// followed by a u32 trailing count at offset 18; the sample length is
// that count plus the 22 bytes of header and count.
func MatchTMCD(st *stats.Stats, start []byte, maxLen int) Match {
	if len(start) < 22 {
		return Reject
	}

	reserved, _ := readU32(start, 0)
	if reserved != 0 {
		return Reject
	}

	flags, _ := readU32(start, 4)
	if flags > 15 {
		return Reject
	}

	trailingReserved := start[17]
	if trailingReserved != 0 {
		return Reject
	}

	tail, _ := readU32(start, 18)
	length := int(tail) + 22

	if length > maxLen {
		return Reject
	}

	return Match{Length: length, Chances: 1 << 20}
}
