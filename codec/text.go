package codec

import (
	"errors"

	"golang.org/x/text/encoding/charmap"

	"github.com/mycophonic/untrunc/stats"
)

var errTextTooShort = errors.New("codec: chapter text sample shorter than its length prefix")

// textSubAtoms is the set of QuickTime chapter-text trailing atoms spec
// §4.5 lists; once none of these follow, the walk stops.
var textSubAtoms = []string{"encd", "styl", "ftab", "hlit", "hclr", "drpo", "drpt", "imag", "metr"}

const maxTextLength = 4096

// MatchText implements the QuickTime chapter-text strategy from spec
// §4.5: a leading u16 length, optionally followed by a walk of known
// sub-atoms.
func MatchText(st *stats.Stats, start []byte, maxLen int) Match {
	begin, ok := readU32(start, 0)
	if !ok {
		return Reject
	}

	if st.FixedSize != 0 && len(st.Beginnings32) == 1 {
		if _, known := st.Beginnings32[begin]; known {
			return Match{Length: int(st.FixedSize), Chances: 1 << 20}
		}

		return Reject
	}

	size, ok := readU16(start, 0)
	if !ok || int(size) > maxTextLength || int(size) > maxLen {
		return Reject
	}

	offset := int(size) + 2

	chances := 1.0
	if int(offset) <= len(start) && start[offset-1] != 0 {
		chances = 256
	}

	if size < 128 {
		return Match{Length: offset, Chances: st.Beginnings32[begin]}
	}

	if _, known := st.Beginnings32[begin]; known {
		return Match{Length: offset, Chances: st.Beginnings32[begin]}
	}

	for offset < maxLen-10 {
		length, ok := readU32(start, offset)
		if !ok || int(length) > maxTextLength {
			return Match{Chances: chances}
		}

		if offset+4 > len(start) {
			return Match{Chances: chances}
		}

		atomFound := false

		for _, name := range textSubAtoms {
			if four(start[offset+4:], name) {
				atomFound = true

				break
			}
		}

		if !atomFound {
			break
		}

		if length == 0 {
			return Match{Chances: chances}
		}

		offset += int(length)
	}

	return Match{Length: offset, Chances: 1 << 20}
}

// DecodeChapterText reads one recovered chapter-text sample -- the u16
// length prefix MatchText keys on, followed by that many bytes of text --
// and converts it from MacRoman to a UTF-8 string. QuickTime chapter
// tracks predate UTF-8 and still show up encoded this way.
func DecodeChapterText(sample []byte) (string, error) {
	size, ok := readU16(sample, 0)
	if !ok {
		return "", errTextTooShort
	}

	end := 2 + int(size)
	if end > len(sample) {
		end = len(sample)
	}

	return charmap.Macintosh.NewDecoder().String(string(sample[2:end]))
}
