package codec

import (
	"github.com/mycophonic/untrunc/internal/bitreader"
	"github.com/mycophonic/untrunc/stats"
)

const (
	hevcNalIDRWRADL = 19
	hevcNalIDRNLP   = 20
	hevcNalEOB      = 37
	hevcNalFD       = 38
)

// MatchHEVC walks length-prefixed HEVC NAL units, per spec §4.5.2. A new
// picture starts when first_slice_segment_in_pic_flag is set on a slice,
// when nuh_layer_id changes, or when a non-slice/non-filler NAL appears.
func MatchHEVC(st *stats.Stats, start []byte, maxLen int) Match {
	var (
		totalLen     int
		keyframe     bool
		sawSlice     bool
		refLayerID   int
	)

	for {
		remaining := maxLen - totalLen
		if remaining < 6 {
			break
		}

		nal := start[totalLen:]
		if nal[0] != 0 {
			break
		}

		length, ok := readU32(nal, 0)
		if !ok || int(length)+4 > remaining {
			break
		}

		header0, header1 := nal[4], nal[5]
		if header0&0x80 != 0 {
			break // forbidden_zero_bit
		}

		nalType := int(header0>>1) & 0x3f
		layerID := int(header0&0x1)<<5 | int(header1>>3)
		temporalIDPlus1 := int(header1 & 0x7)

		if (nalType == hevcNalEOB) != (temporalIDPlus1 == 0) {
			break
		}

		isSlice := isHEVCSliceType(nalType)

		if !isSlice {
			if sawSlice && nalType != hevcNalFD {
				break
			}

			totalLen += 4 + int(length)

			continue
		}

		firstSliceFlag, ok := firstSliceSegmentFlag(nal[6 : 4+int(length)])
		if !ok {
			break
		}

		if sawSlice {
			if firstSliceFlag || layerID != refLayerID {
				break
			}
		} else {
			sawSlice = true
			refLayerID = layerID
		}

		if nalType == hevcNalIDRWRADL || nalType == hevcNalIDRNLP {
			keyframe = true
		}

		totalLen += 4 + int(length)
	}

	if !sawSlice || totalLen == 0 {
		return Reject
	}

	m := Match{Length: totalLen, Chances: 1 << 20, Keyframe: keyframe}

	if prefix, ok := readU32(start, 0); ok {
		m.Chances += st.Beginnings32[prefix]
	}

	return m
}

func isHEVCSliceType(nalType int) bool {
	switch nalType {
	case 0, 1, 8, 9, hevcNalIDRWRADL, hevcNalIDRNLP, 21:
		return true
	default:
		return false
	}
}

func firstSliceSegmentFlag(rbsp []byte) (bool, bool) {
	if len(rbsp) == 0 {
		return false, false
	}

	data := bitreader.StripEmulationPrevention(rbsp)
	r := bitreader.New(data)

	bit, err := r.ReadBit()
	if err != nil {
		return false, false
	}

	return bit != 0, true
}
