package repair_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/bytestream"
	"github.com/mycophonic/untrunc/repair"
)

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

// apchSample builds one ProRes-style sample: a 4-byte length prefix
// (covering the whole sample, header included), the "icpf" marker, and
// filler bytes out to length.
func apchSample(length int) []byte {
	sample := make([]byte, length)
	copy(sample[0:4], u32(uint32(length))) //nolint:gosec // test fixture
	copy(sample[4:8], "icpf")

	for i := 8; i < length; i++ {
		sample[i] = byte(i)
	}

	return sample
}

// buildFixture assembles a minimal single-track ftyp+moov+mdat file with
// three apch (structural, oracle-free) samples, one chunk per sample.
func buildFixture(t *testing.T, sampleLens []int) []byte {
	t.Helper()

	var mdat bytes.Buffer

	offsets := make([]uint32, len(sampleLens))
	sizes := make([]uint32, len(sampleLens))

	for i, l := range sampleLens {
		offsets[i] = uint32(mdat.Len()) //nolint:gosec // test fixture
		sizes[i] = uint32(l)            //nolint:gosec // test fixture
		mdat.Write(apchSample(l))
	}

	mdatFrame := frame("mdat", mdat.Bytes())
	mdatPayloadStart := int64(len(mdatFrame) - mdat.Len())

	tkhd := make([]byte, 24)
	copy(tkhd[12:16], u32(1))
	tkhdFrame := frame("tkhd", tkhd)

	mdhd := append(make([]byte, 12), u32(600)...)
	mdhd = append(mdhd, u32(0)...)
	mdhdFrame := frame("mdhd", mdhd)

	hdlr := append(make([]byte, 8), []byte("vide")...)
	hdlrFrame := frame("hdlr", hdlr)

	stsd := append(make([]byte, 4), u32(1)...)
	stsd = append(stsd, u32(16)...)
	stsd = append(stsd, []byte("apch")...)
	stsd = append(stsd, make([]byte, 4)...)
	stsdFrame := frame("stsd", stsd)

	stsz := append(make([]byte, 4), u32(0)...)
	stsz = append(stsz, u32(uint32(len(sizes)))...) //nolint:gosec // test fixture
	for _, sz := range sizes {
		stsz = append(stsz, u32(sz)...)
	}

	stszFrame := frame("stsz", stsz)

	// Real mdat payload offsets are absolute file offsets, which depend on
	// everything written before mdat; stco starts with placeholder zero
	// entries here and gets patched once the full file is assembled below.
	stco := append(make([]byte, 4), u32(uint32(len(offsets)))...) //nolint:gosec // test fixture
	for range offsets {
		stco = append(stco, u32(0)...)
	}

	stcoFrame := frame("stco", stco)

	stsc := append(make([]byte, 4), u32(1)...)
	stsc = append(stsc, u32(1)...)
	stsc = append(stsc, u32(1)...)
	stscFrame := frame("stsc", stsc)

	stts := append(make([]byte, 4), u32(1)...)
	stts = append(stts, u32(uint32(len(sampleLens)))...) //nolint:gosec // test fixture
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
	trak.Write(tkhdFrame)
	trak.Write(mdiaFrame)
	trakFrame := frame("trak", trak.Bytes())

	mvhd := append(make([]byte, 12), u32(600)...) // version/flags + ctime + mtime, then timescale
	mvhd = append(mvhd, u32(0)...)                // duration
	mvhdFrame := frame("mvhd", mvhd)

	var moov bytes.Buffer
	moov.Write(mvhdFrame)
	moov.Write(trakFrame)
	moovFrame := frame("moov", moov.Bytes())

	ftypFrame := frame("ftyp", append([]byte("isom"), make([]byte, 4)...))

	absoluteMdatStart := int64(len(ftypFrame)) + int64(len(moovFrame)) + mdatPayloadStart

	var fixed bytes.Buffer
	fixed.Write(ftypFrame)
	fixed.Write(moovFrame)
	fixed.Write(mdatFrame)

	out := fixed.Bytes()

	// moov.Write/frame assembly already copied stcoFrame's placeholder
	// zero entries into out; patch them in place by locating the stco
	// type marker rather than the now-disconnected stcoFrame slice.
	stcoTypeAt := bytes.Index(out, []byte("stco"))
	if stcoTypeAt < 0 {
		t.Fatalf("stco box not found in assembled fixture")
	}

	entriesStart := stcoTypeAt + 4 + 4 + 4 // type + version/flags + count

	for i, off := range offsets {
		binary.BigEndian.PutUint32(
			out[entriesStart+i*4:entriesStart+i*4+4],
			uint32(absoluteMdatStart)+off,
		)
	}

	return out
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	return path
}

func TestRunRepairsHealthyFile(t *testing.T) {
	dir := t.TempDir()

	data := buildFixture(t, []int{16, 20, 24})
	reference := writeFile(t, dir, "reference.mov", data)
	damaged := writeFile(t, dir, "damaged.mov", data)
	output := filepath.Join(dir, "out.mov")

	if err := repair.New(repair.Options{}).Run(reference, damaged, output); err != nil {
		t.Fatalf("Run: %v", err)
	}

	verifyOutputSampleCount(t, output, 3)
}

func TestRunRecoversTruncatedFile(t *testing.T) {
	dir := t.TempDir()

	data := buildFixture(t, []int{16, 20, 24})
	reference := writeFile(t, dir, "reference.mov", data)

	// Truncate the last sample entirely, leaving only the first two intact.
	damagedData := data[:len(data)-24]
	damaged := writeFile(t, dir, "damaged.mov", damagedData)
	output := filepath.Join(dir, "out.mov")

	if err := repair.New(repair.Options{}).Run(reference, damaged, output); err != nil {
		t.Fatalf("Run: %v", err)
	}

	verifyOutputSampleCount(t, output, 2)
}

func verifyOutputSampleCount(t *testing.T, path string, want int) {
	t.Helper()

	stream, err := bytestream.Open(path)
	if err != nil {
		t.Fatalf("Open output: %v", err)
	}
	defer stream.Close()

	tree, err := box.Parse(stream, stream.Size())
	if err != nil {
		t.Fatalf("Parse output: %v", err)
	}

	moov := tree.FindFirst([4]byte{'m', 'o', 'o', 'v'})
	if moov == nil {
		t.Fatalf("output has no moov")
	}

	trak := moov.FindFirst([4]byte{'t', 'r', 'a', 'k'})
	if trak == nil {
		t.Fatalf("output has no trak")
	}

	stsz := trak.FindFirst([4]byte{'s', 't', 's', 'z'})
	if stsz == nil {
		t.Fatalf("output trak has no stsz")
	}

	count := binary.BigEndian.Uint32(stsz.Data[4:8])
	if int(count) != want {
		t.Fatalf("sample count = %d, want %d", count, want)
	}
}
