// Package relocate implements a tiny moov-first rewrite: given a file
// whose mdat sits before moov (the common layout a camera or phone
// produces, since it finalizes moov only after capture ends), it moves
// moov ahead of mdat and patches every stco/co64 chunk offset by the
// resulting shift, so playback can start before the whole file has
// downloaded. Unrelated to repair: the input is assumed structurally
// sound, just ordered for local rather than streaming playback.
package relocate

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/bytestream"
)

// ErrAlreadyStreamable is returned when moov already precedes mdat.
var ErrAlreadyStreamable = errors.New("relocate: moov already precedes mdat")

var (
	fcFtyp = fourCC("ftyp")
	fcMoov = fourCC("moov")
	fcMdat = fourCC("mdat")
	fcStco = fourCC("stco")
	fcCo64 = fourCC("co64")
)

func fourCC(s string) [4]byte {
	var t [4]byte
	copy(t[:], s)

	return t
}

// MakeStreamable reads input, moves moov ahead of mdat, and writes the
// result to output.
func MakeStreamable(input, output string) error {
	in, err := bytestream.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	tree, err := box.Parse(in, in.Size())
	if err != nil {
		return fmt.Errorf("parsing %s: %w", input, err)
	}

	ftyp := tree.FindFirst(fcFtyp)
	moov := tree.FindFirst(fcMoov)
	mdat := tree.FindFirst(fcMdat)

	if moov == nil {
		return fmt.Errorf("%s: no moov box", input)
	}

	if mdat == nil {
		return fmt.Errorf("%s: no mdat box", input)
	}

	if moov.Header.Start < mdat.Header.Start {
		return ErrAlreadyStreamable
	}

	var newStart int64
	if ftyp != nil {
		newStart += ftyp.Size()
	}

	shift := newStart + moov.Size() - mdat.Header.Start

	shiftChunkOffsets(moov, shift)

	out, err := bytestream.Create(output)
	if err != nil {
		return err
	}
	defer out.Close()

	ordered := &box.Tree{Top: nonNil(ftyp, moov, mdat)}

	return ordered.Write(out)
}

func nonNil(ftyp, moov, mdat *box.Box) []*box.Box {
	out := make([]*box.Box, 0, 3)

	if ftyp != nil {
		out = append(out, ftyp)
	}

	return append(out, moov, mdat)
}

// shiftChunkOffsets adds shift to every absolute chunk offset stco/co64
// record, mirroring stco's layout (version+flags, entry count, then one
// u32 offset per entry) and co64's (same, but u64 offsets).
func shiftChunkOffsets(moov *box.Box, shift int64) {
	for _, stco := range moov.FindAll(fcStco) {
		shiftU32Entries(stco, shift)
	}

	for _, co64 := range moov.FindAll(fcCo64) {
		shiftU64Entries(co64, shift)
	}
}

func shiftU32Entries(b *box.Box, shift int64) {
	if len(b.Data) < 8 {
		return
	}

	count := binary.BigEndian.Uint32(b.Data[4:8])

	for i := range count {
		off := 8 + int(i)*4
		if off+4 > len(b.Data) {
			break
		}

		v := int64(binary.BigEndian.Uint32(b.Data[off : off+4]))
		binary.BigEndian.PutUint32(b.Data[off:off+4], uint32(v+shift)) //nolint:gosec // offsets fit uint32 for stco by construction
	}

	b.Dirty = true
}

func shiftU64Entries(b *box.Box, shift int64) {
	if len(b.Data) < 8 {
		return
	}

	count := binary.BigEndian.Uint32(b.Data[4:8])

	for i := range count {
		off := 8 + int(i)*8
		if off+8 > len(b.Data) {
			break
		}

		v := int64(binary.BigEndian.Uint64(b.Data[off : off+8])) //nolint:gosec // file offsets fit int64
		binary.BigEndian.PutUint64(b.Data[off:off+8], uint64(v+shift))
	}

	b.Dirty = true
}
