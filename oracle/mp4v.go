package oracle

// mp4vOracle reports an MPEG-4 Part 2 sample's length by scanning
// forward for the next 0x000001 start-code prefix of any kind (VOP, VOL,
// VOS or other), since Part 2 elementary
// streams have no NAL-style length prefix to read instead (unlike
// AVC1/HEVC). Grounded in the same 0x000001 start-code convention the
// codec package's MatchMP4V uses to find the sample's first byte.
type mp4vOracle struct{}

// NewMP4V returns the MP4V probe oracle.
func NewMP4V() Oracle {
	return mp4vOracle{}
}

func (mp4vOracle) Probe(codecID string, start []byte, maxBytes int) (ProbeResult, error) {
	if maxBytes > len(start) {
		maxBytes = len(start)
	}

	if maxBytes < 4 {
		return ProbeResult{}, errShortWindow
	}

	// The sample's own start code occupies [0:4); search from the next
	// byte so we don't immediately match it again.
	for i := 1; i+3 < maxBytes; i++ {
		if start[i] == 0 && start[i+1] == 0 && start[i+2] == 1 {
			return ProbeResult{Consumed: i}, nil
		}
	}

	return ProbeResult{Consumed: maxBytes}, nil
}
