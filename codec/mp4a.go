package codec

import (
	"github.com/mycophonic/untrunc/oracle"
	"github.com/mycophonic/untrunc/stats"
)

// mpegBitrateTableV1L3 (kbit/s) and mpegSampleRateTableV1 (Hz) are the
// MPEG-1 Layer III tables tryMPEGHeader indexes with the frame header's
// bitrate and sample-rate indices; it also checks the 11-bit sync,
// version and layer fields and adds the padding bit.
var mpegBitrateTableV1L3 = [16]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0}

var mpegSampleRateTableV1 = [4]int{44100, 48000, 32000, 0}

// horrible-hack prefixes (spec §4.5.3 step 2): on certain devices these
// two-byte prefixes are near-deterministic AAC frame starts, so once the
// oracle accepts a frame there (more than 6 bytes consumed) it gets a
// fixed 1<<18 confidence. With a nil oracle the prefixes are not used.
var mp4aHackPrefixes = [][2]byte{{0xEE, 0x1B}, {0x3E, 0x64}}

// MatchMP4A implements the three MP4A sub-paths from spec §4.5.3.
func MatchMP4A(st *stats.Stats, start []byte, maxLen int, o oracle.Oracle) Match {
	if size, ok := tryMPEGHeader(start); ok && size <= maxLen {
		return Match{Length: size, Chances: 1 << 16}
	}

	for _, prefix := range mp4aHackPrefixes {
		if len(start) >= 2 && start[0] == prefix[0] && start[1] == prefix[1] {
			if o == nil {
				continue
			}

			res, err := o.Probe("mp4a", start, maxLen)
			if err == nil && res.Consumed > 6 {
				return Match{Length: res.Consumed, Chances: 1 << 18, DurationUnits: res.DurationUnits, HasDuration: res.HasDuration}
			}
		}
	}

	if o == nil {
		return Reject
	}

	res, err := o.Probe("mp4a", start, maxLen)
	if err != nil || res.Consumed <= 6 {
		return Reject
	}

	chances := 1.0

	switch {
	case res.Consumed == 6:
		chances = 1 << 20
	case res.Consumed >= 400:
		chances = 1 << 18
	default:
		chances = 1 << 10
	}

	if prefix, ok := readU32(start, 0); ok {
		chances += st.Beginnings32[prefix]
	}

	return Match{Length: res.Consumed, Chances: chances, DurationUnits: res.DurationUnits, HasDuration: res.HasDuration}
}

// tryMPEGHeader parses an MPEG-1 Layer III frame header (the common case
// when an MP4A track actually carries framed MP3, per the teacher's
// mp3/decode.go) and derives its frame size.
func tryMPEGHeader(b []byte) (int, bool) {
	if len(b) < 4 {
		return 0, false
	}

	if b[0] != 0xff || b[1]&0xe0 != 0xe0 {
		return 0, false
	}

	version := (b[1] >> 3) & 0x3
	layer := (b[1] >> 1) & 0x3

	if version != 0x3 || layer != 0x1 { // MPEG-1, Layer III
		return 0, false
	}

	bitrateIdx := (b[2] >> 4) & 0xf
	sampleRateIdx := (b[2] >> 2) & 0x3
	padding := (b[2] >> 1) & 0x1

	bitrate := mpegBitrateTableV1L3[bitrateIdx]
	sampleRate := mpegSampleRateTableV1[sampleRateIdx]

	if bitrate == 0 || sampleRate == 0 {
		return 0, false
	}

	frameSize := 144*bitrate*1000/sampleRate + int(padding)

	return frameSize, true
}
