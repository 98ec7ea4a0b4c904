package bytestream_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/mycophonic/untrunc/bytestream"
)

func TestCreateWriteReopenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.bin")

	out, err := bytestream.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := out.WriteU32BE(0xdeadbeef); err != nil {
		t.Fatalf("WriteU32BE: %v", err)
	}

	if err := out.WriteU64BE(0x1122334455667788); err != nil {
		t.Fatalf("WriteU64BE: %v", err)
	}

	if err := out.WriteAll([]byte("payload")); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Double close must be safe.
	if err := out.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	in, err := bytestream.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer in.Close()

	wantSize := int64(4 + 8 + len("payload"))
	if in.Size() != wantSize {
		t.Fatalf("Size() = %d, want %d", in.Size(), wantSize)
	}

	u32, err := in.ReadU32BE()
	if err != nil || u32 != 0xdeadbeef {
		t.Fatalf("ReadU32BE() = %#x, %v", u32, err)
	}

	u64, err := in.ReadU64BE()
	if err != nil || u64 != 0x1122334455667788 {
		t.Fatalf("ReadU64BE() = %#x, %v", u64, err)
	}

	rest, err := in.ReadExact(len("payload"))
	if err != nil || string(rest) != "payload" {
		t.Fatalf("ReadExact() = %q, %v", rest, err)
	}
}

func TestReadPastEOFIsUnexpectedEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")

	out, err := bytestream.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := out.WriteAll([]byte{1, 2, 3}); err != nil {
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

	if _, err := in.ReadExact(8); !errors.Is(err, bytestream.ErrUnexpectedEOF) {
		t.Fatalf("ReadExact() error = %v, want ErrUnexpectedEOF", err)
	}
}

func TestUseAfterCloseReturnsErrNotOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closed.bin")

	out, err := bytestream.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := out.WriteU32BE(1); !errors.Is(err, bytestream.ErrNotOpen) {
		t.Fatalf("WriteU32BE() error = %v, want ErrNotOpen", err)
	}
}
