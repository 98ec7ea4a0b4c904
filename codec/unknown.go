package codec

import "github.com/mycophonic/untrunc/stats"

// MatchUnknown is the fallback for any codec tag not in the dispatch
// table (spec §4.5): it special-cases the "rtmd" metadata tag with a
// fixed 1024-byte guess, and otherwise uses stats.fixed_size as the
// sample length, scored by the empirical beginnings fingerprint (the
// 8-byte prefix weight wins over the 4-byte one when both are known). A
// prefix the fingerprint has never seen leaves a zero-confidence match
// of the fixed size. Without a fixed size the beginnings fingerprint is
// not consulted and the candidate is rejected.
func MatchUnknown(name string, st *stats.Stats, start []byte, maxLen int) Match {
	if name == "rtmd" {
		begin32, ok := readU32(start, 0)

		chances := 0.0
		if ok {
			chances = 10 * st.Beginnings32[begin32]
		}

		length := 1024
		if length > maxLen {
			return Reject
		}

		return Match{Length: length, Chances: chances}
	}

	if st.FixedSize == 0 {
		return Reject
	}

	length := int(st.FixedSize)
	if length > maxLen {
		return Reject
	}

	m := Match{Length: length}

	begin32, ok32 := readU32(start, 0)
	if ok32 {
		if w, known := st.Beginnings32[begin32]; known {
			m.Chances = w
		}
	}

	if len(start) >= 8 {
		begin64 := uint64(0)

		if hi, ok := readU32(start, 0); ok {
			if lo, ok2 := readU32(start, 4); ok2 {
				begin64 = uint64(hi)<<32 | uint64(lo)
			}
		}

		if w, known := st.Beginnings64[begin64]; known {
			m.Chances = w
		}
	}

	return m
}
