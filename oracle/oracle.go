// Package oracle provides the decoder-oracle collaborator spec §6
// requires: a narrow interface the codec package consults only for the
// codecs whose sample boundaries can't be determined from structure
// alone (AVC1, MP4V, MP4A, ALAC). It is deliberately not part of the
// core recognition logic (spec §1) -- callers inject an Oracle. With a
// nil Oracle the ALAC, MP4V and AVC1 matchers reject every candidate,
// and MP4A accepts only samples its MPEG-1 Layer III header check sizes.
package oracle

// AVC1SPS carries the subset of a Sequence Parameter Set the AVC1 NAL
// walker needs to parse slice headers (spec §4.5.1).
type AVC1SPS struct {
	Log2MaxFrameNum  int
	FrameMBSOnlyFlag bool
	PicOrderCntType  int
	Log2MaxPOCLsb    int
}

// ProbeResult is what a codec-specific oracle reports about a candidate
// sample.
type ProbeResult struct {
	Consumed       int
	DurationUnits  uint64
	HasDuration    bool
	Keyframe       bool
}

// Oracle is the decoder-backed probe collaborator. Probe is called with
// the bytes starting at a candidate sample and the maximum it's allowed
// to consume; codecID is the four-character stsd tag.
type Oracle interface {
	Probe(codecID string, start []byte, maxBytes int) (ProbeResult, error)
}

// AVC1SPSSource is implemented by oracles that can additionally surface
// the stream's SPS (spec §6: "For H.264 specifically, it must
// additionally surface the stream's first Sequence Parameter Set").
type AVC1SPSSource interface {
	AVC1SPS(avcC []byte) (AVC1SPS, error)
}
