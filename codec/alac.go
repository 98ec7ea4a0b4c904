package codec

import (
	"github.com/mycophonic/untrunc/oracle"
	"github.com/mycophonic/untrunc/stats"
)

// MatchALAC hands the candidate bytes to the decoder oracle, which
// decodes a single ALAC frame and reports how many bytes it consumed;
// spec §4.5 requires rejecting a frame shorter than 12 bytes.
func MatchALAC(st *stats.Stats, start []byte, maxLen int, o oracle.Oracle) Match {
	if o == nil {
		return Reject
	}

	res, err := o.Probe("alac", start, maxLen)
	if err != nil || res.Consumed < 12 {
		return Reject
	}

	chances := float64(1 << 16)

	if prefix, ok := readU32(start, 0); ok {
		chances += st.Beginnings32[prefix]
	}

	return Match{Length: res.Consumed, Chances: chances, DurationUnits: res.DurationUnits, HasDuration: res.HasDuration}
}
