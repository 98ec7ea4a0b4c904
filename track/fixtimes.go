package track

// FixTimes recomputes Duration and, where necessary, SampleTimes to match
// a repaired sample count, after the repairer has decided how many
// samples actually survived (spec §4.4's fix_times, ported from
// original_source/track.cpp's Track::fixTimes).
//
// samr is a fixed-frame-duration codec (20ms AMR frames): the original
// discards whatever stts the damaged file carried and assumes a constant
// per-sample duration instead, since a truncated/corrupt AMR track's
// stts is usually the first casualty.
func (m *Model) FixTimes(nsamples int) {
	if m.Codec == fourCC("samr") {
		m.SampleTimes = nil
		m.DefaultSampleTime = 160
	}

	if m.DefaultSampleTime != 0 || len(m.SampleTimes) == 0 {
		m.Duration = uint64(m.DefaultSampleTime) * uint64(nsamples)

		return
	}

	for len(m.SampleTimes) < nsamples {
		m.SampleTimes = append(m.SampleTimes, m.SampleTimes...)
	}

	m.SampleTimes = m.SampleTimes[:nsamples]

	var duration uint64
	for _, t := range m.SampleTimes {
		duration += t
	}

	m.Duration = duration
}
