package codec

import "github.com/mycophonic/untrunc/stats"

// gpmdFourCCs is the set of GoPro metadata record tags spec §4.5 lists.
var gpmdFourCCs = map[string]bool{
	"DEVC": true, "DVID": true, "DVNM": true, "STRM": true, "STNM": true,
	"RMRK": true, "SCAL": true, "SIUN": true, "UNIT": true, "TYPE": true,
	"TSMP": true, "TIMO": true, "EMPT": true,
}

// MatchGPMD implements the GoPro metadata matcher from spec §4.5: the
// first 4 bytes name a known record type, and the length is the 16-bit
// payload size (low half of the following u32) plus an 8-byte header.
func MatchGPMD(st *stats.Stats, start []byte, maxLen int) Match {
	if len(start) < 8 {
		return Reject
	}

	if !gpmdFourCCs[string(start[:4])] {
		return Reject
	}

	word, _ := readU32(start, 4)
	length := int(word&0xffff) + 8

	if length > maxLen {
		return Reject
	}

	return Match{Length: length, Chances: 1 << 20}
}
