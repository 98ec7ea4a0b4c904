package box_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/bytestream"
)

// writeBox appends a small (non-64-bit) box with the given type and
// payload to buf.
func writeBox(buf *bytes.Buffer, typ string, payload []byte) {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(8+len(payload))) //nolint:gosec // test fixture

	buf.Write(lenBytes[:])
	buf.WriteString(typ)
	buf.Write(payload)
}

func buildFixture(t *testing.T) string {
	t.Helper()

	var ftypPayload bytes.Buffer
	ftypPayload.WriteString("isom")
	ftypPayload.Write([]byte{0, 0, 0, 0})
	ftypPayload.WriteString("isom")

	var mvhd bytes.Buffer
	mvhd.Write(make([]byte, 4)) // version/flags
	mvhd.Write(make([]byte, 16))

	var trak bytes.Buffer
	writeBox(&trak, "tkhd", make([]byte, 4))

	var moov bytes.Buffer
	writeBox(&moov, "mvhd", mvhd.Bytes())
	writeBoxRaw(&moov, "trak", trak.Bytes())

	var file bytes.Buffer
	writeBox(&file, "ftyp", ftypPayload.Bytes())
	writeBoxRaw(&file, "moov", moov.Bytes())
	writeBox(&file, "mdat", []byte("somesampledatabytes"))

	path := filepath.Join(t.TempDir(), "fixture.mp4")

	out, err := bytestream.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := out.WriteAll(file.Bytes()); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	return path
}

// writeBoxRaw appends a box whose already-framed children are supplied
// verbatim as childData (used for container boxes built bottom-up).
func writeBoxRaw(buf *bytes.Buffer, typ string, childData []byte) {
	writeBox(buf, typ, childData)
}

func TestParseWriteRoundTrip(t *testing.T) {
	path := buildFixture(t)

	in, err := bytestream.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer in.Close()

	tree, err := box.Parse(in, in.Size())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(tree.Top) != 3 {
		t.Fatalf("got %d top-level boxes, want 3", len(tree.Top))
	}

	moov := tree.Top[1]
	if moov.Header.Type != [4]byte{'m', 'o', 'o', 'v'} {
		t.Fatalf("second box type = %q, want moov", moov.Header.Type)
	}

	if len(moov.Children) != 2 {
		t.Fatalf("moov has %d children, want 2 (mvhd, trak)", len(moov.Children))
	}

	outPath := filepath.Join(t.TempDir(), "out.mp4")

	out, err := bytestream.Create(outPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := tree.Write(out); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reread, err := bytestream.Open(outPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reread.Close()

	roundTripped, err := box.Parse(reread, reread.Size())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}

	if len(roundTripped.Top) != len(tree.Top) {
		t.Fatalf("round-tripped top count = %d, want %d", len(roundTripped.Top), len(tree.Top))
	}

	for i, b := range roundTripped.Top {
		if b.Header.Type != tree.Top[i].Header.Type {
			t.Fatalf("box %d type = %q, want %q", i, b.Header.Type, tree.Top[i].Header.Type)
		}
	}
}

func TestLengthCoherenceAfterEdit(t *testing.T) {
	path := buildFixture(t)

	in, err := bytestream.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer in.Close()

	tree, err := box.Parse(in, in.Size())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	moov := tree.Top[1]
	mvhd := moov.Children[0]
	mvhd.SetData(append(append([]byte{}, mvhd.Data...), []byte("extra")...))

	if got, want := mvhd.Size(), int64(8+len(mvhd.Data)); got != want {
		t.Fatalf("mvhd.Size() = %d, want %d", got, want)
	}

	wantMoovSize := int64(8)
	for _, c := range moov.Children {
		wantMoovSize += c.Size()
	}

	if got := moov.Size(); got != wantMoovSize {
		t.Fatalf("moov.Size() = %d, want %d", got, wantMoovSize)
	}
}

func TestDeeplyNestedContainersReturnErrTooDeep(t *testing.T) {
	// moov containing only moov containing only moov... forces the parser
	// past maxDepth since moov is always treated as a container.
	var inner bytes.Buffer
	inner.Write([]byte{0, 0, 0, 8})
	inner.WriteString("moov")

	for i := 0; i < 100; i++ {
		var wrapped bytes.Buffer
		writeBoxRaw(&wrapped, "moov", inner.Bytes())
		inner = wrapped
	}

	path := filepath.Join(t.TempDir(), "deep.mp4")

	out, err := bytestream.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := out.WriteAll(inner.Bytes()); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	in, err := bytestream.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer in.Close()

	_, err = box.Parse(in, in.Size())
	if !errors.Is(err, box.ErrTooDeep) {
		t.Fatalf("Parse() error = %v, want ErrTooDeep", err)
	}
}
