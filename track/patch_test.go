package track_test

import (
	"bytes"
	"testing"

	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/track"
)

// buildTrakWithFullTkhd is buildTrak's structure, except tkhd carries a
// full version-0 payload (24 bytes: creation/modification time, track
// ID, reserved, duration) instead of the 16-byte stub the other tests
// use, since PatchDuration writes into tkhd.Data[20:24].
func buildTrakWithFullTkhd(t *testing.T) *box.Box {
	t.Helper()

	tkhdPayload := make([]byte, 24)
	copy(tkhdPayload[12:16], u32(7)) // track_ID
	tkhd := frame("tkhd", tkhdPayload)

	mdhd := append(make([]byte, 12), u32(1000)...)
	mdhd = append(mdhd, u32(3000)...)
	mdhdFrame := frame("mdhd", mdhd)

	hdlr := append(make([]byte, 8), []byte("vide")...)
	hdlrFrame := frame("hdlr", hdlr)

	stsd := append(make([]byte, 4), u32(1)...)
	stsd = append(stsd, u32(16)...)
	stsd = append(stsd, []byte("avc1")...)
	stsd = append(stsd, make([]byte, 4)...)
	stsdFrame := frame("stsd", stsd)

	stsz := append(make([]byte, 4), u32(0)...)
	stsz = append(stsz, u32(3)...)
	stsz = append(stsz, u32(10)...)
	stsz = append(stsz, u32(20)...)
	stsz = append(stsz, u32(30)...)
	stszFrame := frame("stsz", stsz)

	stco := append(make([]byte, 4), u32(3)...)
	stco = append(stco, u32(1000)...)
	stco = append(stco, u32(1010)...)
	stco = append(stco, u32(1030)...)
	stcoFrame := frame("stco", stco)

	stsc := append(make([]byte, 4), u32(1)...)
	stsc = append(stsc, u32(1)...)
	stsc = append(stsc, u32(1)...)
	stscFrame := frame("stsc", stsc)

	stts := append(make([]byte, 4), u32(1)...)
	stts = append(stts, u32(3)...)
	stts = append(stts, u32(1000)...)
	sttsFrame := frame("stts", stts)

	var stbl bytes.Buffer
	stbl.Write(stsdFrame)
	stbl.Write(sttsFrame)
	stbl.Write(stszFrame)
	stbl.Write(stscFrame)
	stbl.Write(stcoFrame)
	stblFrame := frame("stbl", stbl.Bytes())

	minfFrame := frame("minf", stblFrame)

	var mdia bytes.Buffer
	mdia.Write(mdhdFrame)
	mdia.Write(hdlrFrame)
	mdia.Write(minfFrame)
	mdiaFrame := frame("mdia", mdia.Bytes())

	var trak bytes.Buffer
	trak.Write(tkhd)
	trak.Write(mdiaFrame)
	trakFrame := frame("trak", trak.Bytes())

	return parseBytes(t, trakFrame)
}

func TestStsdPayloadReturnsRawSampleEntry(t *testing.T) {
	trak := buildTrak(t)

	m, err := track.Build(trak)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	payload := m.StsdPayload()
	if len(payload) < 16 {
		t.Fatalf("StsdPayload() too short: %d bytes", len(payload))
	}

	// buildTrak's stsd has one "avc1" entry starting right after the
	// version/flags (4 bytes) and entry count (4 bytes).
	if got := string(payload[12:16]); got != "avc1" {
		t.Fatalf("sample entry type = %q, want avc1", got)
	}
}

func TestPatchDurationConvertsTimescale(t *testing.T) {
	trak := buildTrakWithFullTkhd(t)

	m, err := track.Build(trak)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// buildTrak's mdhd timescale is 1000; Duration defaults to the mdhd
	// duration field (3000) until overwritten.
	m.Duration = 3000

	got := m.PatchDuration(600)
	want := uint64(3000) * 600 / 1000

	if got != want {
		t.Fatalf("PatchDuration(600) = %d, want %d", got, want)
	}

	tkhd := trak.FindFirst([4]byte{'t', 'k', 'h', 'd'})
	if tkhd == nil {
		t.Fatalf("trak has no tkhd")
	}

	if !tkhd.Dirty {
		t.Fatalf("PatchDuration should mark tkhd dirty")
	}
}
