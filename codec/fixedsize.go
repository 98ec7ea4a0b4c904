package codec

import "github.com/mycophonic/untrunc/stats"

// MatchFixedSize handles the raw PCM family (lpcm, in24, sowt, twos):
// spec §4.5 says simply "use stats.fixed_size verbatim".
func MatchFixedSize(st *stats.Stats, start []byte, maxLen int) Match {
	if st.FixedSize == 0 || int(st.FixedSize) > maxLen {
		return Reject
	}

	return Match{Length: int(st.FixedSize), Chances: 1 << 10}
}
