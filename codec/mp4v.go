package codec

import (
	"github.com/mycophonic/untrunc/oracle"
	"github.com/mycophonic/untrunc/stats"
)

// MatchMP4V implements the MPEG-4 Part 2 start-code strategy from spec
// §4.5: a sample starts with a VOP start code, either I-frame (0xB3) or
// P/B-frame (0xB6); its length comes from the oracle since there's no
// structural end-of-sample marker to walk to.
func MatchMP4V(st *stats.Stats, start []byte, maxLen int, o oracle.Oracle) Match {
	if len(start) < 4 || start[0] != 0 || start[1] != 0 || start[2] != 1 {
		return Reject
	}

	keyframe := start[3] == 0xB3

	if !keyframe && start[3] != 0xB6 {
		return Reject
	}

	if o == nil {
		return Reject
	}

	res, err := o.Probe("mp4v", start, maxLen)
	if err != nil || res.Consumed <= 0 {
		return Reject
	}

	chances := float64(1 << 14)

	if prefix, ok := readU32(start, 0); ok {
		chances += st.Beginnings32[prefix]
	}

	return Match{Length: res.Consumed, Chances: chances, Keyframe: keyframe}
}
