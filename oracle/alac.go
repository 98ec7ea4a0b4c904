package oracle

import (
	"github.com/mycophonic/untrunc/alac"
)

// alacOracle decodes a single ALAC frame per candidate offset, reporting
// how many bytes the bitstream actually consumed (spec §4.5: "length =
// bit-index/8 rounded up"). It owns one Decoder per track, since the
// decoder carries per-packet scratch buffers sized to the track's frame
// length and channel count.
type alacOracle struct {
	dec *alac.Decoder
}

// NewALAC builds the ALAC probe oracle from a magic cookie (the sample
// description's ALACSpecificConfig), grounded in the teacher's
// alac.ParseConfig/alac.NewDecoder.
func NewALAC(cookie []byte) (Oracle, error) {
	cfg, err := alac.ParseConfig(cookie)
	if err != nil {
		return nil, err
	}

	dec, err := alac.NewDecoder(cfg)
	if err != nil {
		return nil, err
	}

	return &alacOracle{dec: dec}, nil
}

func (o *alacOracle) Probe(codecID string, start []byte, maxBytes int) (ProbeResult, error) {
	if maxBytes > len(start) {
		maxBytes = len(start)
	}

	_, consumed, err := o.dec.DecodePacketConsumed(start[:maxBytes])
	if err != nil {
		return ProbeResult{}, err
	}

	return ProbeResult{Consumed: consumed}, nil
}
