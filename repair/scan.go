package repair

import (
	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/bytestream"
)

// locateDamagedMdat implements spec §4.7 stage 1: scan the damaged file
// from byte 0, skipping non-mdat boxes by their declared length, until an
// mdat header turns up. A truncated recording commonly declares an mdat
// length that runs past actual EOF (the length byte was only ever going
// to be patched up once recording finished normally); when that happens
// the payload window is clamped to the bytes actually present instead of
// being rejected as malformed. If no well-formed mdat header is found at
// all, the whole file is treated as raw mdat payload behind a zero-length
// synthetic header, per spec's documented fallback.
func locateDamagedMdat(s *bytestream.Stream) (*box.Box, error) {
	fileSize := s.Size()

	pos := int64(0)

	for pos+8 <= fileSize {
		h, err := readRawHeader(s, pos, fileSize)
		if err != nil {
			break
		}

		if h.typ == "mdat" {
			payloadStart := pos + h.headerSize
			payloadSize := fileSize - payloadStart

			if h.length > 0 {
				if declaredEnd := pos + h.length; declaredEnd <= fileSize {
					payloadSize = declaredEnd - payloadStart
				}
			}

			if payloadSize < 0 {
				payloadSize = 0
			}

			return box.NewMdat(s, h.headerSize, payloadStart, payloadSize), nil
		}

		if h.length <= 0 {
			break
		}

		pos += h.length
	}

	return box.NewMdat(s, 0, 0, fileSize), nil
}

type rawHeader struct {
	typ        string
	length     int64
	headerSize int64
}

// readRawHeader is a lenient box-header read: unlike box.ParseHeader it
// never rejects a declared length that runs past EOF, since that's
// exactly the shape a truncated recording's final (or only) box takes.
func readRawHeader(s *bytestream.Stream, pos, fileSize int64) (rawHeader, error) {
	buf := make([]byte, 8)
	if err := s.ReadAt(buf, pos); err != nil {
		return rawHeader{}, err
	}

	for _, c := range buf[4:8] {
		if c < 0x20 || c > 0x7e {
			return rawHeader{}, errBadHeaderType
		}
	}

	rawLen := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	typ := string(buf[4:8])

	switch rawLen {
	case 0:
		return rawHeader{typ: typ, length: fileSize - pos, headerSize: 8}, nil
	case 1:
		ext := make([]byte, 8)
		if err := s.ReadAt(ext, pos+8); err != nil {
			return rawHeader{}, err
		}

		var length int64
		for _, b := range ext {
			length = length<<8 | int64(b)
		}

		return rawHeader{typ: typ, length: length, headerSize: 16}, nil
	default:
		return rawHeader{typ: typ, length: int64(rawLen), headerSize: 8}, nil
	}
}
