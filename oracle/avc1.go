package oracle

import (
	"errors"

	"github.com/mycophonic/untrunc/internal/bitreader"
)

// errBadAVCC is returned when an avcC box's sequence parameter set can't
// be parsed, mirroring the original project's "Could not parse SPS!".
var errBadAVCC = errors.New("oracle: could not parse avcC sequence parameter set")

// avc1SPSCache extracts the handful of SPS fields the AVC1 slice-header
// walker needs (spec §4.5.1) from an avcC box's first sequence parameter
// set, grounded in the original project's H264sps::parseSPS: SPS count
// lives at data[5]&0x1f, the first NAL size prefix at data[6:8].
type avc1SPSCache struct {
	avcC []byte
}

// NewAVC1SPS wraps an avcC box payload so codec.MatchAVC1 can ask for the
// active sequence parameter set's fields; the returned Oracle also
// implements AVC1SPSSource.
func NewAVC1SPS(avcC []byte) Oracle {
	return avc1SPSCache{avcC: avcC}
}

func (c avc1SPSCache) AVC1SPS(_ []byte) (AVC1SPS, error) {
	return parseAVCCSPS(c.avcC)
}

// Probe is a stub: MatchAVC1 never calls Probe on the AVC1 oracle, only
// AVC1SPS (it determines sample length itself by walking the NAL length
// prefixes). It exists so avc1SPSCache also satisfies Oracle and can be
// registered directly with Multi.
func (avc1SPSCache) Probe(string, []byte, int) (ProbeResult, error) {
	return ProbeResult{}, errShortWindow
}

func parseAVCCSPS(data []byte) (AVC1SPS, error) {
	if len(data) < 8 {
		return AVC1SPS{}, errBadAVCC
	}

	count := int(data[5] & 0x1f)
	if count < 1 {
		return AVC1SPS{}, errBadAVCC
	}

	nalSize := int(data[6])<<8 | int(data[7])
	if 8+nalSize > len(data) {
		return AVC1SPS{}, errBadAVCC
	}

	nal := data[8 : 8+nalSize]
	if len(nal) < 2 {
		return AVC1SPS{}, errBadAVCC
	}

	// Skip the one-byte NAL header (forbidden_zero_bit + ref_idc + type).
	rbsp := bitreader.StripEmulationPrevention(nal[1:])

	return parseSPSRBSP(rbsp)
}

// profilesWithChromaInfo lists the profile_idc values whose SPS carries
// the High-profile chroma/bit-depth/scaling-list fields, per H.264 §7.3.2.1.1.
var profilesWithChromaInfo = map[int]bool{
	100: true, 110: true, 122: true, 244: true, 44: true,
	83: true, 86: true, 118: true, 128: true, 138: true,
	139: true, 134: true, 135: true,
}

func parseSPSRBSP(data []byte) (AVC1SPS, error) {
	r := bitreader.New(data)

	var sps AVC1SPS

	profileIDC, err := r.ReadBits(8)
	if err != nil {
		return sps, errBadAVCC
	}

	if _, err := r.ReadBits(8); err != nil { // constraint flags + reserved
		return sps, errBadAVCC
	}

	if _, err := r.ReadBits(8); err != nil { // level_idc
		return sps, errBadAVCC
	}

	if _, err := r.Golomb(); err != nil { // seq_parameter_set_id
		return sps, errBadAVCC
	}

	if profilesWithChromaInfo[int(profileIDC)] {
		chromaFormat, err := r.Golomb()
		if err != nil {
			return sps, errBadAVCC
		}

		if chromaFormat == 3 {
			if _, err := r.ReadBit(); err != nil { // separate_colour_plane_flag
				return sps, errBadAVCC
			}
		}

		if _, err := r.Golomb(); err != nil { // bit_depth_luma_minus8
			return sps, errBadAVCC
		}

		if _, err := r.Golomb(); err != nil { // bit_depth_chroma_minus8
			return sps, errBadAVCC
		}

		if _, err := r.ReadBit(); err != nil { // qpprime_y_zero_transform_bypass_flag
			return sps, errBadAVCC
		}

		scalingMatrixPresent, err := r.ReadBit()
		if err != nil {
			return sps, errBadAVCC
		}

		if scalingMatrixPresent != 0 {
			count := 8
			if chromaFormat == 3 {
				count = 12
			}

			for i := 0; i < count; i++ {
				present, err := r.ReadBit()
				if err != nil {
					return sps, errBadAVCC
				}

				if present == 0 {
					continue
				}

				size := 16
				if i >= 6 {
					size = 64
				}

				if err := skipScalingList(r, size); err != nil {
					return sps, errBadAVCC
				}
			}
		}
	}

	log2MaxFrameNumMinus4, err := r.Golomb()
	if err != nil {
		return sps, errBadAVCC
	}

	sps.Log2MaxFrameNum = log2MaxFrameNumMinus4 + 4

	pocType, err := r.Golomb()
	if err != nil {
		return sps, errBadAVCC
	}

	sps.PicOrderCntType = pocType

	switch pocType {
	case 0:
		log2MaxPOCLsbMinus4, err := r.Golomb()
		if err != nil {
			return sps, errBadAVCC
		}

		sps.Log2MaxPOCLsb = log2MaxPOCLsbMinus4 + 4
	case 1:
		if _, err := r.ReadBit(); err != nil { // delta_pic_order_always_zero_flag
			return sps, errBadAVCC
		}

		if _, err := r.Golomb(); err != nil { // offset_for_non_ref_pic (se(v))
			return sps, errBadAVCC
		}

		if _, err := r.Golomb(); err != nil { // offset_for_top_to_bottom_field (se(v))
			return sps, errBadAVCC
		}

		numRefFrames, err := r.Golomb()
		if err != nil {
			return sps, errBadAVCC
		}

		for i := 0; i < numRefFrames; i++ {
			if _, err := r.Golomb(); err != nil { // offset_for_ref_frame[i] (se(v))
				return sps, errBadAVCC
			}
		}
	}

	if _, err := r.Golomb(); err != nil { // max_num_ref_frames
		return sps, errBadAVCC
	}

	if _, err := r.ReadBit(); err != nil { // gaps_in_frame_num_value_allowed_flag
		return sps, errBadAVCC
	}

	if _, err := r.Golomb(); err != nil { // pic_width_in_mbs_minus1
		return sps, errBadAVCC
	}

	if _, err := r.Golomb(); err != nil { // pic_height_in_map_units_minus1
		return sps, errBadAVCC
	}

	frameMBSOnly, err := r.ReadBit()
	if err != nil {
		return sps, errBadAVCC
	}

	sps.FrameMBSOnlyFlag = frameMBSOnly != 0

	return sps, nil
}

// skipScalingList walks a scaling_list() element without retaining its
// values: only the bit positions of the fields that follow matter to the
// slice-header walker, per H.264 §7.3.2.1.1.1.
func skipScalingList(r *bitreader.Reader, size int) error {
	lastScale, nextScale := 8, 8

	for i := 0; i < size; i++ {
		if nextScale != 0 {
			delta, err := r.Golomb()
			if err != nil {
				return err
			}

			// se(v): map the unsigned Golomb value back to signed.
			deltaScale := ueToSe(delta)

			nextScale = (lastScale + deltaScale + 256) % 256
		}

		if nextScale != 0 {
			lastScale = nextScale
		}
	}

	return nil
}

// ueToSe maps an Exp-Golomb unsigned codeNum to its signed se(v) value,
// per H.264 Table 9-1.
func ueToSe(codeNum int) int {
	if codeNum%2 == 0 {
		return -(codeNum / 2)
	}

	return (codeNum + 1) / 2
}
