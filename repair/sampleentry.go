package repair

// The constants and offsets below mirror the ISO BMFF sample-entry
// layout the alac package already walks in alac/decode.go's
// extractCookie, applied here directly against an in-memory stsd box
// payload instead of a stream-backed stbl lookup, since the box package
// already has the whole (small) stsd payload resident.
const (
	stsdPayloadHeader      = 8  // version(1)+flags(3)+entry_count(4)
	sampleEntryHeaderSize  = 8  // size(4)+type(4)
	sampleEntryBaseSize    = 28 // standard AudioSampleEntry fields
	sampleEntryV1Extra     = 16 // QuickTime version 1 extra audio fields
	visualSampleEntryFixed = 78 // VisualSampleEntry fixed fields after its own header
)

func read32(b []byte, off int) (uint32, bool) {
	if off < 0 || off+4 > len(b) {
		return 0, false
	}

	return uint32(b[off])<<24 | uint32(b[off+1])<<16 | uint32(b[off+2])<<8 | uint32(b[off+3]), true
}

func read16(b []byte, off int) (uint16, bool) {
	if off < 0 || off+2 > len(b) {
		return 0, false
	}

	return uint16(b[off])<<8 | uint16(b[off+1]), true
}

// firstSampleEntryBounds returns the [start, end) byte range of the
// first sample-description entry within an stsd box's payload. Like
// track.Build, which takes the codec tag from that first entry, it does
// not check stsd's entry count; any further entries are ignored.
func firstSampleEntryBounds(stsd []byte) (start, end int, ok bool) {
	size, sizeOK := read32(stsd, stsdPayloadHeader)
	if !sizeOK || int(size) < sampleEntryHeaderSize {
		return 0, 0, false
	}

	entryEnd := stsdPayloadHeader + int(size)
	if entryEnd > len(stsd) {
		return 0, 0, false
	}

	return stsdPayloadHeader, entryEnd, true
}

// avcCFromStsd extracts the avcC box's raw payload (the AVCDecoderConfigurationRecord,
// which oracle.NewAVC1SPS expects) from an avc1/avc3 stsd entry.
func avcCFromStsd(stsd []byte) ([]byte, bool) {
	start, end, ok := firstSampleEntryBounds(stsd)
	if !ok {
		return nil, false
	}

	childrenStart := start + sampleEntryHeaderSize + visualSampleEntryFixed
	if childrenStart > end {
		return nil, false
	}

	return findChildBox(stsd, childrenStart, end, "avcC")
}

// alacCookieFromStsd extracts the ALACSpecificConfig magic cookie from an
// alac stsd entry, following the same version-aware layout as
// alac/decode.go's extractCookie.
func alacCookieFromStsd(stsd []byte) ([]byte, bool) {
	start, end, ok := firstSampleEntryBounds(stsd)
	if !ok {
		return nil, false
	}

	version, vOK := read16(stsd, start+sampleEntryHeaderSize+8)
	if !vOK {
		return nil, false
	}

	skip := sampleEntryHeaderSize + sampleEntryBaseSize
	if version == 1 {
		skip += sampleEntryV1Extra
	}

	cookieStart := start + skip
	if cookieStart >= end {
		return nil, false
	}

	return stsd[cookieStart:end], true
}

// findChildBox linearly scans [start, end) of data as a sequence of
// length-prefixed child boxes (4-byte big-endian size, 4-byte type) and
// returns the payload of the first one matching typ.
func findChildBox(data []byte, start, end int, typ string) ([]byte, bool) {
	pos := start

	for pos+8 <= end {
		size, ok := read32(data, pos)
		if !ok || int(size) < 8 || pos+int(size) > end {
			return nil, false
		}

		if string(data[pos+4:pos+8]) == typ {
			return data[pos+8 : pos+int(size)], true
		}

		pos += int(size)
	}

	return nil, false
}
