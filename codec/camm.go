package codec

import "github.com/mycophonic/untrunc/stats"

// cammRecordLengths is the Google CAMM per-record-type length table
// (https://developers.google.com/streetview/publish/camm-spec), per spec
// §4.5: "[12,8,12,12,12,24,56,12]".
var cammRecordLengths = [8]int{12, 8, 12, 12, 12, 24, 56, 12}

// MatchCAMM sums successive CAMM records (each a 4-byte header plus a
// type-dependent payload) until a record does not look like one or
// adding it would take the total past maxLen minus 60 bytes; the first
// record is always taken if it fits the window.
func MatchCAMM(st *stats.Stats, start []byte, maxLen int) Match {
	total := 0

	for {
		if total+4 > len(start) || total+4 > maxLen {
			break
		}

		b := start[total:]

		looksLikeRecord := (b[0] == 0 && b[1] == 0) || (b[3] == 0 && b[2] < 7)
		if !looksLikeRecord {
			break
		}

		recordType := int(b[2])
		if recordType >= len(cammRecordLengths) {
			break
		}

		recLen := cammRecordLengths[recordType] + 4
		if total+recLen > maxLen-15*4 && total > 0 {
			break
		}

		total += recLen
	}

	if total == 0 {
		return Reject
	}

	return Match{Length: total, Chances: 1 << 20}
}
