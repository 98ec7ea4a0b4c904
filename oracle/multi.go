package oracle

// Multi dispatches Probe to a per-codec Oracle keyed by the stsd
// four-character tag, and answers AVC1SPS from whichever entry
// implements AVC1SPSSource. A track only ever needs one codec's oracle,
// but the repair driver builds one Multi per damaged file so codec
// recognition can hand a single oracle.Oracle to every track regardless
// of its codec.
type Multi struct {
	byCodec map[string]Oracle
}

// NewMulti builds an empty dispatcher; use Register to add codec
// oracles as tracks are identified.
func NewMulti() *Multi {
	return &Multi{byCodec: make(map[string]Oracle)}
}

// Register associates an Oracle with a codecID (e.g. "avc1", "mp4a").
func (m *Multi) Register(codecID string, o Oracle) {
	m.byCodec[codecID] = o
}

func (m *Multi) Probe(codecID string, start []byte, maxBytes int) (ProbeResult, error) {
	o, ok := m.byCodec[codecID]
	if !ok {
		return ProbeResult{}, errNoOracleForCodec
	}

	return o.Probe(codecID, start, maxBytes)
}

// AVC1SPS satisfies AVC1SPSSource by forwarding to the registered avc1
// oracle, if any.
func (m *Multi) AVC1SPS(avcC []byte) (AVC1SPS, error) {
	o, ok := m.byCodec["avc1"]
	if !ok {
		return AVC1SPS{}, errNoOracleForCodec
	}

	src, ok := o.(AVC1SPSSource)
	if !ok {
		return AVC1SPS{}, errNoOracleForCodec
	}

	return src.AVC1SPS(avcC)
}
