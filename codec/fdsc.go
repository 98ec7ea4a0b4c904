package codec

import "github.com/mycophonic/untrunc/stats"

// MatchFDSC implements the GoPro firmware-descriptor matcher from spec
// §4.5: every packet starts with ASCII "GP"; the length is decided by a
// type byte whose known values are 16, 152, and 220, ported 1:1 from
// original_source/codec_fdsc.cpp's guesswork.
func MatchFDSC(st *stats.Stats, start []byte, maxLen int) Match {
	if len(start) < 4 || start[0] != 'G' || start[1] != 'P' {
		return Reject
	}

	if start[2] == 'R' && start[3] == 'O' {
		if len(start) < 6 {
			return Reject
		}

		size, _ := readU16(start, 4)
		if int(size) > maxLen {
			return Reject
		}

		return Match{Length: int(size), Chances: 1 << 16}
	}

	length := 16

	switch start[2] {
	case 3:
		length = 152
	case 15:
		length = 220
	}

	if length > maxLen {
		return Reject
	}

	return Match{Length: length, Chances: 1 << 16}
}
