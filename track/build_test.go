package track_test

import (
	"bytes"
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/bytestream"
	"github.com/mycophonic/untrunc/track"
)

func writeTempFile(t *testing.T, data []byte) *bytestream.Stream {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fixture.bin")

	out, err := bytestream.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := out.WriteAll(data); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	in, err := bytestream.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	t.Cleanup(func() { _ = in.Close() })

	return in
}

func u32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)

	return b[:]
}

func frame(typ string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Write(u32(uint32(8 + len(payload)))) //nolint:gosec // test fixture
	buf.WriteString(typ)
	buf.Write(payload)

	return buf.Bytes()
}

// buildTrak assembles a minimal but complete trak subtree with 3 samples
// of sizes {10, 20, 30}, one chunk per sample, a single stts run, and
// sample 1 marked as a sync sample.
func buildTrak(t *testing.T) *box.Box {
	t.Helper()

	tkhd := frame("tkhd", append(make([]byte, 12), u32(7)...))

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

	stss := append(make([]byte, 4), u32(1)...)
	stss = append(stss, u32(1)...)
	stssFrame := frame("stss", stss)

	var stbl bytes.Buffer
	stbl.Write(stsdFrame)
	stbl.Write(sttsFrame)
	stbl.Write(stssFrame)
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

	var fileBuf bytes.Buffer
	fileBuf.Write(trakFrame)

	return parseBytes(t, fileBuf.Bytes())
}

func parseBytes(t *testing.T, data []byte) *box.Box {
	t.Helper()

	tmp := writeTempFile(t, data)

	tree, err := box.Parse(tmp, int64(len(data)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(tree.Top) != 1 {
		t.Fatalf("parsed %d top-level boxes, want 1", len(tree.Top))
	}

	return tree.Top[0]
}

func TestBuildExtractsSampleTable(t *testing.T) {
	trak := buildTrak(t)

	m, err := track.Build(trak)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if m.TrackID != 7 {
		t.Fatalf("TrackID = %d, want 7", m.TrackID)
	}

	if m.Timescale != 1000 {
		t.Fatalf("Timescale = %d, want 1000", m.Timescale)
	}

	if m.NumSamples() != 3 {
		t.Fatalf("NumSamples() = %d, want 3", m.NumSamples())
	}

	wantSizes := []uint32{10, 20, 30}
	for i, sz := range wantSizes {
		if m.SampleSizes[i] != sz {
			t.Fatalf("SampleSizes[%d] = %d, want %d", i, m.SampleSizes[i], sz)
		}
	}

	wantOffsets := []uint64{1000, 1010, 1030}
	for i, off := range wantOffsets {
		if m.SampleOffsets[i] != off {
			t.Fatalf("SampleOffsets[%d] = %d, want %d", i, m.SampleOffsets[i], off)
		}
	}

	if !m.IsKeyframe(0) {
		t.Fatalf("sample 0 should be a keyframe")
	}

	if m.IsKeyframe(1) {
		t.Fatalf("sample 1 should not be a keyframe")
	}
}

func TestTruncateAndWriteBack(t *testing.T) {
	trak := buildTrak(t)

	m, err := track.Build(trak)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	m.Truncate(2)
	m.FixTimes(2)
	m.WriteBack()

	if m.NumSamples() != 2 {
		t.Fatalf("NumSamples() after truncate = %d, want 2", m.NumSamples())
	}

	if m.Duration != 2000 {
		t.Fatalf("Duration after FixTimes = %d, want 2000", m.Duration)
	}
}
