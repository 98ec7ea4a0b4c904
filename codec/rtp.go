package codec

import "github.com/mycophonic/untrunc/stats"

// MatchRTP is the QuickTime RTP hint-track matcher. The original
// project's hint-packet walker computed a sample length as
// `begin - start`, two pointers into the same buffer where `begin` could
// legitimately precede `start`, yielding a negative length it then
// silently truncated to a huge unsigned value (spec §9). Hint tracks
// carry no decodable media of their own -- they only describe how a
// media track should be packetized for RTP -- so instead of walking that
// packet structure and risking the same corruption, this implementation
// always declines with zero confidence: hint-track recovery is
// best-effort, and a caller that needs one back should rebuild it from
// the track it hints once the hinted media track itself is repaired.
func MatchRTP(st *stats.Stats, start []byte, maxLen int) Match {
	return Reject
}
