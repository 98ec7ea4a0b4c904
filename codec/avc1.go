package codec

import (
	"github.com/mycophonic/untrunc/internal/bitreader"
	"github.com/mycophonic/untrunc/oracle"
	"github.com/mycophonic/untrunc/stats"
)

const maxAVC1Length = 8 << 20

// AVC1Options controls the optional strictness checks the original
// project guarded out with preprocessor flags (spec §9:
// STRICT_NAL_INFO_CHECKING, STRICT_POC_TYPE_CHECKING,
// STRICT_PIC_IDR_CHECKING). They default to false, matching the
// original's "in practice" laxness; set any of them true to make the
// walker reject NAL units that field-level validation alone would allow
// through.
type AVC1Options struct {
	StrictNalInfoChecking bool
	StrictPOCTypeChecking bool
	StrictPicIDRChecking  bool
}

// MatchAVC1 walks length-prefixed NAL units starting at start, grouping
// consecutive slice NALs that share (frame_num, pps_id, nal_ref_idc,
// idr_pic_flag) into one access unit, per spec §4.5.1.
func MatchAVC1(st *stats.Stats, start []byte, maxLen int, o oracle.Oracle, opts AVC1Options) Match {
	sps, haveSPS := lookupSPS(o)

	var (
		totalLen  int
		keyframe  bool
		sawSlice  bool
		refFrame  int
		refPPS    int
		refIDC    int
		refIDR    int
	)

	for {
		remaining := maxLen - totalLen
		if remaining < 4 {
			break
		}

		nal := start[totalLen:]
		if len(nal) == 0 || nal[0] != 0 {
			break
		}

		length, ok := readU32(nal, 0)
		if !ok || length > maxAVC1Length || int(length)+4 > remaining {
			break
		}

		if len(nal) < 5 {
			break
		}

		header := nal[4]
		if header&0x80 != 0 {
			break // forbidden_zero_bit set
		}

		nalRefIDC := int(header>>5) & 0x3
		nalType := int(header & 0x1f)

		isSlice := nalType == 1 || nalType == 5

		if !isSlice {
			if sawSlice {
				break // a non-slice NAL after a slice ends the access unit
			}

			totalLen += 4 + int(length)

			continue
		}

		if !haveSPS {
			break
		}

		info, ok := parseSliceHeader(nal[5:5+int(length)-1], sps, nalType, opts)
		if !ok {
			break
		}

		if sawSlice {
			sameAU := info.frameNum == refFrame && info.ppsID == refPPS &&
				nalRefIDC == refIDC && info.idrFlag == refIDR

			if !sameAU {
				break
			}
		} else {
			sawSlice = true
			refFrame = info.frameNum
			refPPS = info.ppsID
			refIDC = nalRefIDC
			refIDR = info.idrFlag
		}

		if nalType == 5 {
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

type sliceInfo struct {
	frameNum int
	ppsID    int
	idrFlag  int
}

func parseSliceHeader(rbsp []byte, sps oracle.AVC1SPS, nalType int, opts AVC1Options) (sliceInfo, bool) {
	data := bitreader.StripEmulationPrevention(rbsp)
	r := bitreader.New(data)

	var info sliceInfo

	firstMB, err := r.Golomb()
	if err != nil || firstMB < 0 {
		return info, false
	}

	sliceType, err := r.Golomb()
	if err != nil || sliceType < 0 || sliceType > 9 {
		return info, false
	}

	ppsID, err := r.Golomb()
	if err != nil || ppsID < 0 {
		return info, false
	}

	info.ppsID = ppsID

	if opts.StrictNalInfoChecking && sps.Log2MaxFrameNum == 0 {
		return info, false
	}

	frameNum, err := r.ReadBits(max1(sps.Log2MaxFrameNum))
	if err != nil {
		return info, false
	}

	info.frameNum = int(frameNum)

	if sps.FrameMBSOnlyFlag {
		fieldFlag, err := r.ReadBit()
		if err != nil {
			return info, false
		}

		if fieldFlag != 0 {
			if _, err := r.ReadBit(); err != nil {
				return info, false
			}
		}
	}

	info.idrFlag = 0
	if nalType == 5 {
		info.idrFlag = 1

		if opts.StrictPicIDRChecking {
			idrPicID, err := r.Golomb()
			if err != nil || idrPicID < 0 {
				return info, false
			}
		} else {
			_, _ = r.Golomb()
		}
	}

	if sps.PicOrderCntType == 0 {
		if opts.StrictPOCTypeChecking && sps.Log2MaxPOCLsb == 0 {
			return info, false
		}

		if _, err := r.ReadBits(max1(sps.Log2MaxPOCLsb)); err != nil {
			return info, false
		}
	}

	return info, true
}

func max1(n int) int {
	if n <= 0 {
		return 1
	}

	return n
}

func lookupSPS(o oracle.Oracle) (oracle.AVC1SPS, bool) {
	src, ok := o.(oracle.AVC1SPSSource)
	if !ok {
		return oracle.AVC1SPS{}, false
	}

	sps, err := src.AVC1SPS(nil)
	if err != nil {
		return oracle.AVC1SPS{}, false
	}

	return sps, true
}
