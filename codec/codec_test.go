package codec_test

import (
	"testing"

	"github.com/mycophonic/untrunc/codec"
	"github.com/mycophonic/untrunc/stats"
)

func emptyStats() *stats.Stats {
	return &stats.Stats{
		Beginnings32: map[uint32]float64{},
		Beginnings64: map[uint64]float64{},
	}
}

func TestMatchAPCHRequiresIcpfMarker(t *testing.T) {
	data := []byte{0, 0, 0, 20, 'i', 'c', 'p', 'f', 1, 2, 3, 4}

	m := codec.MatchAPCH(emptyStats(), data, 1<<20)
	if m.Length != 20 {
		t.Fatalf("Length = %d, want 20", m.Length)
	}

	bad := []byte{0, 0, 0, 20, 'x', 'x', 'x', 'x'}
	if m := codec.MatchAPCH(emptyStats(), bad, 1<<20); m.Chances != 0 {
		t.Fatalf("expected reject without icpf marker, got %+v", m)
	}
}

func TestMatchSAMRRejectsBadMode(t *testing.T) {
	// mode 2, framing bit set (0x4) -> byte = (2<<3)|0x4 = 0x14
	good := []byte{0x14}

	m := codec.MatchSAMR(emptyStats(), good, 100)
	if m.Length != amrnbExpectedSize(2) {
		t.Fatalf("Length = %d, want %d", m.Length, amrnbExpectedSize(2))
	}

	badMode := []byte{(12 << 3) | 0x4}
	if m := codec.MatchSAMR(emptyStats(), badMode, 100); m.Chances != 0 {
		t.Fatalf("expected reject for mode > 9, got %+v", m)
	}

	noFraming := []byte{(2 << 3)}
	if m := codec.MatchSAMR(emptyStats(), noFraming, 100); m.Chances != 0 {
		t.Fatalf("expected reject without framing bit, got %+v", m)
	}
}

func amrnbExpectedSize(mode int) int {
	sizes := [16]int{13, 14, 16, 18, 20, 21, 27, 32, 6, 1, 1, 1, 1, 1, 1, 1}

	return sizes[mode]
}

func TestMatchFixedSizeUsesStatsVerbatim(t *testing.T) {
	s := emptyStats()
	s.FixedSize = 4

	m := codec.MatchFixedSize(s, make([]byte, 10), 10)
	if m.Length != 4 {
		t.Fatalf("Length = %d, want 4", m.Length)
	}

	s.FixedSize = 0

	if m := codec.MatchFixedSize(s, make([]byte, 10), 10); m.Chances != 0 {
		t.Fatalf("expected reject with no fixed size, got %+v", m)
	}
}

func TestMatchTMCDParsesHeader(t *testing.T) {
	data := make([]byte, 22)
	// reserved = 0, flags = 1 at offset 4
	data[7] = 1
	// trailing reserved (offset 17) already 0
	// tail count at offset 18 = 3
	data[21] = 3

	m := codec.MatchTMCD(emptyStats(), data, 100)
	if m.Length != 25 {
		t.Fatalf("Length = %d, want 25", m.Length)
	}
}

func TestMatchGPMDRecognizesKnownFourCC(t *testing.T) {
	data := []byte{'D', 'E', 'V', 'C', 0, 0, 0, 10}

	m := codec.MatchGPMD(emptyStats(), data, 100)
	if m.Length != 18 {
		t.Fatalf("Length = %d, want 18", m.Length)
	}

	unknown := []byte{'X', 'X', 'X', 'X', 0, 0, 0, 10}
	if m := codec.MatchGPMD(emptyStats(), unknown, 100); m.Chances != 0 {
		t.Fatalf("expected reject for unknown fourCC, got %+v", m)
	}
}

func TestMatchRTPAlwaysDeclines(t *testing.T) {
	if m := codec.MatchRTP(emptyStats(), make([]byte, 32), 32); m.Chances != 0 || m.Length != 0 {
		t.Fatalf("MatchRTP should always decline, got %+v", m)
	}
}

func TestRecognizeDispatchesByTag(t *testing.T) {
	data := []byte{0, 0, 0, 20, 'i', 'c', 'p', 'f', 1, 2, 3, 4}

	m := codec.Recognize(fourCC("apch"), emptyStats(), data, 1<<20, nil, codec.AVC1Options{})
	if m.Length != 20 {
		t.Fatalf("Length = %d, want 20", m.Length)
	}

	if m := codec.Recognize(fourCC("zzzz"), emptyStats(), make([]byte, 4), 4, nil, codec.AVC1Options{}); m.Chances != 0 {
		t.Fatalf("expected unrecognized tag to fall through to MatchUnknown and reject, got %+v", m)
	}
}

func TestDecodeChapterTextConvertsMacRoman(t *testing.T) {
	// MacRoman 0x8E is e-acute (U+00E9).
	payload := []byte{0, 3, 'H', 'i', 0x8E}

	got, err := codec.DecodeChapterText(payload)
	if err != nil {
		t.Fatalf("DecodeChapterText: %v", err)
	}

	if want := "Hié"; got != want {
		t.Fatalf("DecodeChapterText() = %q, want %q", got, want)
	}
}

func fourCC(s string) [4]byte {
	var t [4]byte
	copy(t[:], s)

	return t
}
