package box

import (
	"fmt"

	"github.com/mycophonic/untrunc/bytestream"
)

// maxDepth guards against adversarially or corruptly nested containers;
// legitimate ISO BMFF trees never approach it (stbl itself is 4 levels
// below moov).
const maxDepth = 64

// Box is one node of a parsed ISO BMFF tree. Container boxes carry their
// parsed Children; leaf boxes carry their payload directly in Data, except
// for mdat, whose payload is represented by Large instead of being read
// into memory (spec §3.3/§9).
type Box struct {
	Header   Header
	Children []*Box
	Data     []byte
	Large    *LargeBox
	Dirty    bool
}

// Tree is the ordered forest of top-level boxes in a file (ftyp, moov,
// mdat, free, ...), mirroring how the top level of an ISO BMFF file is
// itself not wrapped in any box.
type Tree struct {
	Top []*Box
}

// Parse reads the top-level box forest from s, whose total size is
// fileSize. Every container box (per BoxCatalog, with dual boxes sniffed
// by content) is parsed recursively; mdat's payload is left file-backed.
func Parse(s *bytestream.Stream, fileSize int64) (*Tree, error) {
	boxes, err := parseSiblings(s, fileSize, 0)
	if err != nil {
		return nil, err
	}

	return &Tree{Top: boxes}, nil
}

func parseSiblings(s *bytestream.Stream, end int64, depth int) ([]*Box, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}

	var out []*Box

	for {
		pos, err := s.Position()
		if err != nil {
			return nil, err
		}

		if pos >= end {
			break
		}

		b, err := parseOne(s, end, depth)
		if err != nil {
			return nil, err
		}

		out = append(out, b)

		if err := s.Seek(b.Header.End()); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func parseOne(s *bytestream.Stream, siblingEnd int64, depth int) (*Box, error) {
	h, err := ParseHeader(s, siblingEnd)
	if err != nil {
		return nil, err
	}

	b := &Box{Header: h}

	if h.Type == fourCC("mdat") {
		large, err := newLargeBox(s, h)
		if err != nil {
			return nil, err
		}

		b.Large = large

		return b, nil
	}

	isContainer := IsContainer(h.Type)
	if IsDual(h.Type) {
		isContainer, err = sniffDualContainer(s, h)
		if err != nil {
			return nil, err
		}
	}

	if !isContainer {
		data, err := s.ReadExact(int(h.PayloadSize()))
		if err != nil {
			return nil, fmt.Errorf("reading payload of %q at %d: %w", h.Type, h.Start, err)
		}

		b.Data = data

		return b, nil
	}

	childStart := h.PayloadOffset()
	if IsVersioned(h.Type) {
		childStart += 4 // skip meta's version/flags word before its child forest
	}

	if err := s.Seek(childStart); err != nil {
		return nil, err
	}

	children, err := parseSiblings(s, h.End(), depth+1)
	if err != nil {
		return nil, err
	}

	b.Children = children

	return b, nil
}

// sniffDualContainer decides, for a box type whose container-ness depends
// on content (meta is the practical case: ISO-family meta is a full box
// followed by child boxes, QuickTime meta is a raw key-value blob), whether
// the bytes immediately following the full-box header look like a valid
// child box header.
func sniffDualContainer(s *bytestream.Stream, h Header) (bool, error) {
	probeStart := h.PayloadOffset() + 4
	if probeStart+smallHeaderSize > h.End() {
		return false, nil
	}

	if err := s.Seek(probeStart); err != nil {
		return false, err
	}

	_, err := ParseHeader(s, h.End())

	if err := s.Seek(h.Start + h.HeaderSize); err != nil {
		return false, err
	}

	return err == nil, nil
}

// FindFirst returns the first descendant box of the given type in
// depth-first order, searching top's own forest.
func (t *Tree) FindFirst(typ [4]byte) *Box {
	for _, b := range t.Top {
		if found := b.FindFirst(typ); found != nil {
			return found
		}
	}

	return nil
}

// FindFirst returns the first descendant of b (including b itself) with
// the given type, in depth-first order.
func (b *Box) FindFirst(typ [4]byte) *Box {
	if b.Header.Type == typ {
		return b
	}

	for _, c := range b.Children {
		if found := c.FindFirst(typ); found != nil {
			return found
		}
	}

	return nil
}

// FindAll returns every descendant of b (including b itself) with the
// given type, in depth-first order.
func (b *Box) FindAll(typ [4]byte) []*Box {
	var out []*Box

	if b.Header.Type == typ {
		out = append(out, b)
	}

	for _, c := range b.Children {
		out = append(out, c.FindAll(typ)...)
	}

	return out
}

// Replace swaps old for replacement among b's direct children. It returns
// ErrNotFound if old is not a direct child of b.
func (b *Box) Replace(old, replacement *Box) error {
	for i, c := range b.Children {
		if c == old {
			b.Children[i] = replacement
			b.Dirty = true

			return nil
		}
	}

	return ErrNotFound
}

// Prune removes every direct child of b whose type matches typ.
func (b *Box) Prune(typ [4]byte) {
	kept := b.Children[:0]

	for _, c := range b.Children {
		if c.Header.Type != typ {
			kept = append(kept, c)
		}
	}

	if len(kept) != len(b.Children) {
		b.Dirty = true
	}

	b.Children = kept
}

// SetData replaces a leaf box's payload and marks it dirty so a later
// Write recomputes its header length.
func (b *Box) SetData(data []byte) {
	b.Data = data
	b.Dirty = true
}

// Size reports the box's current on-disk footprint, recomputed from
// children/payload rather than trusted from the stale parsed Header once
// the subtree has been edited.
func (b *Box) Size() int64 {
	if b.Large != nil {
		return b.Large.HeaderSize() + b.Large.Size()
	}

	headerSize := int64(smallHeaderSize)

	var payload int64
	if b.Children != nil {
		for _, c := range b.Children {
			payload += c.Size()
		}

		if IsVersioned(b.Header.Type) {
			payload += 4
		}
	} else {
		payload = int64(len(b.Data))
	}

	if headerSize+payload > 0xffffffff {
		headerSize = largeHeaderSize
	}

	return headerSize + payload
}

// Write serializes b (and its subtree) to s, recomputing every length
// field from current content so edited trees are always coherent on disk.
func (b *Box) Write(s *bytestream.Stream) error {
	size := b.Size()

	if size > 0xffffffff {
		if err := s.WriteU32BE(1); err != nil {
			return err
		}

		if err := s.WriteAll(b.Header.Type[:]); err != nil {
			return err
		}

		if err := s.WriteU64BE(uint64(size)); err != nil { //nolint:gosec // guarded by the size>0xffffffff branch
			return err
		}
	} else {
		if err := s.WriteU32BE(uint32(size)); err != nil { //nolint:gosec // guarded by the size<=0xffffffff branch
			return err
		}

		if err := s.WriteAll(b.Header.Type[:]); err != nil {
			return err
		}
	}

	if b.Large != nil {
		return b.Large.WriteTo(s)
	}

	if b.Children != nil {
		if IsVersioned(b.Header.Type) {
			if err := s.WriteAll(make([]byte, 4)); err != nil {
				return err
			}
		}

		for _, c := range b.Children {
			if err := c.Write(s); err != nil {
				return err
			}
		}

		return nil
	}

	return s.WriteAll(b.Data)
}

// Write serializes every top-level box in the tree, in order.
func (t *Tree) Write(s *bytestream.Stream) error {
	for _, b := range t.Top {
		if err := b.Write(s); err != nil {
			return err
		}
	}

	return nil
}

// ReadU32BE reads a big-endian uint32 from b's payload at the given offset
// relative to the first byte of b.Data; for a full box that first byte is
// the start of its version/flags word, so callers count those 4 bytes in
// the offset.
func (b *Box) ReadU32BE(off int) (uint32, error) {
	if off < 0 || off+4 > len(b.Data) {
		return 0, fmt.Errorf("offset %d: %w", off, ErrTruncated)
	}

	return uint32(b.Data[off])<<24 | uint32(b.Data[off+1])<<16 | uint32(b.Data[off+2])<<8 | uint32(b.Data[off+3]), nil
}

// ReadU64BE reads a big-endian uint64 from b's payload at the given offset.
func (b *Box) ReadU64BE(off int) (uint64, error) {
	if off < 0 || off+8 > len(b.Data) {
		return 0, fmt.Errorf("offset %d: %w", off, ErrTruncated)
	}

	hi, _ := b.ReadU32BE(off)
	lo, _ := b.ReadU32BE(off + 4)

	return uint64(hi)<<32 | uint64(lo), nil
}

// ReadChars reads n raw bytes from b's payload at the given offset, for
// four-character codes and similar fixed tags embedded in a payload.
func (b *Box) ReadChars(off, n int) ([]byte, error) {
	if off < 0 || off+n > len(b.Data) {
		return nil, fmt.Errorf("offset %d: %w", off, ErrTruncated)
	}

	return b.Data[off : off+n], nil
}
