package relocate_test

import (
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/bytestream"
	"github.com/mycophonic/untrunc/internal/relocate"
)

func writeBox(buf *[]byte, typ string, payload []byte) {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(8+len(payload))) //nolint:gosec // test fixture

	*buf = append(*buf, lenBytes[:]...)
	*buf = append(*buf, []byte(typ)...)
	*buf = append(*buf, payload...)
}

// buildFixture writes ftyp, then mdat, then moov (with a single stco chunk
// offset pointing at mdat's payload), the non-streamable layout a camera
// typically produces.
func buildFixture(t *testing.T) string {
	t.Helper()

	var file []byte

	ftypPayload := append([]byte("isom"), 0, 0, 0, 0)
	ftypPayload = append(ftypPayload, []byte("isom")...)
	writeBox(&file, "ftyp", ftypPayload)

	mdatPayload := []byte("somesampledatabytes")
	mdatPayloadOffset := int64(len(file)) + 8
	writeBox(&file, "mdat", mdatPayload)

	var stco []byte
	stco = append(stco, 0, 0, 0, 0) // version/flags
	stco = append(stco, 0, 0, 0, 1) // entry count

	var off [4]byte
	binary.BigEndian.PutUint32(off[:], uint32(mdatPayloadOffset)) //nolint:gosec // test fixture
	stco = append(stco, off[:]...)

	var moov []byte
	writeBox(&moov, "stco", stco)

	var framedMoov []byte
	writeBox(&framedMoov, "moov", moov)
	file = append(file, framedMoov...)

	path := filepath.Join(t.TempDir(), "fixture.mp4")

	out, err := bytestream.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := out.WriteAll(file); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	return path
}

func TestMakeStreamableMovesMoovAndShiftsOffsets(t *testing.T) {
	path := buildFixture(t)
	outPath := filepath.Join(t.TempDir(), "out.mp4")

	if err := relocate.MakeStreamable(path, outPath); err != nil {
		t.Fatalf("MakeStreamable: %v", err)
	}

	in, err := bytestream.Open(outPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer in.Close()

	tree, err := box.Parse(in, in.Size())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var fcMoov, fcMdat, fcStco [4]byte
	copy(fcMoov[:], "moov")
	copy(fcMdat[:], "mdat")
	copy(fcStco[:], "stco")

	moov := tree.FindFirst(fcMoov)
	mdat := tree.FindFirst(fcMdat)

	if moov == nil || mdat == nil {
		t.Fatalf("output missing moov or mdat")
	}

	if moov.Header.Start >= mdat.Header.Start {
		t.Fatalf("moov.Start = %d, want before mdat.Start = %d", moov.Header.Start, mdat.Header.Start)
	}

	stco := moov.FindFirst(fcStco)
	if stco == nil {
		t.Fatalf("output moov missing stco")
	}

	gotOffset := binary.BigEndian.Uint32(stco.Data[8:12])
	newMdatPayloadOffset := mdat.Header.Start + 8

	if gotOffset != uint32(newMdatPayloadOffset) { //nolint:gosec // test fixture
		t.Fatalf("stco offset = %d, want it to point at mdat's new payload start %d", gotOffset, newMdatPayloadOffset)
	}
}

func TestMakeStreamableAlreadyStreamableReturnsErr(t *testing.T) {
	var file []byte

	writeBox(&file, "ftyp", append([]byte("isom"), 0, 0, 0, 0))
	writeBox(&file, "moov", nil)
	writeBox(&file, "mdat", []byte("data"))

	path := filepath.Join(t.TempDir(), "already.mp4")

	out, err := bytestream.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := out.WriteAll(file); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	outPath := filepath.Join(t.TempDir(), "out.mp4")

	err = relocate.MakeStreamable(path, outPath)
	if !errors.Is(err, relocate.ErrAlreadyStreamable) {
		t.Fatalf("MakeStreamable() error = %v, want ErrAlreadyStreamable", err)
	}
}
