package track

import (
	"fmt"

	"github.com/mycophonic/untrunc/box"
)

// Build extracts a Model from trak, following these steps: track id
// (tkhd), timescale/duration (mdhd), handler type (hdlr), codec tag
// (stsd's first entry), sample sizes (stsz/stz2), chunk offsets
// (stco/co64), sample-to-chunk expansion (stsc), per-sample offsets
// derived from the two, decode times (stts), and sync samples (stss, or
// all-keyframe when absent).
func Build(trak *box.Box) (*Model, error) {
	m := &Model{trak: trak}

	tkhd, err := need(trak, fcTkhd)
	if err != nil {
		return nil, err
	}

	trackID, err := tkhd.ReadU32BE(12) // version/flags(4) + ctime(4) + mtime(4) + track_id
	if err != nil {
		return nil, fmt.Errorf("tkhd track id: %w", err)
	}

	m.TrackID = trackID

	mdia, err := need(trak, fcMdia)
	if err != nil {
		return nil, err
	}

	mdhd, err := need(mdia, fcMdhd)
	if err != nil {
		return nil, err
	}

	timescale, err := mdhd.ReadU32BE(12)
	if err != nil {
		return nil, fmt.Errorf("mdhd timescale: %w", err)
	}

	duration, err := mdhd.ReadU32BE(16)
	if err != nil {
		return nil, fmt.Errorf("mdhd duration: %w", err)
	}

	m.Timescale = timescale
	m.Duration = uint64(duration)

	hdlr, err := need(mdia, fcHdlr)
	if err != nil {
		return nil, err
	}

	handlerType, err := hdlr.ReadChars(8, 4)
	if err != nil {
		return nil, fmt.Errorf("hdlr handler type: %w", err)
	}

	copy(m.Handler[:], handlerType)

	minf, err := need(mdia, fcMinf)
	if err != nil {
		return nil, err
	}

	stbl, err := need(minf, fcStbl)
	if err != nil {
		return nil, err
	}

	m.stbl = stbl

	stsd, err := need(stbl, fcStsd)
	if err != nil {
		return nil, err
	}

	m.stsdBox = stsd

	codecTag, err := stsd.ReadChars(12, 4) // version/flags(4)+entry_count(4)+size(4)+codec(4)
	if err != nil {
		return nil, fmt.Errorf("stsd codec tag: %w", err)
	}

	copy(m.Codec[:], codecTag)

	if err := m.readSampleSizes(stbl); err != nil {
		return nil, err
	}

	if err := m.readChunkOffsets(stbl); err != nil {
		return nil, err
	}

	if err := m.readSampleToChunk(stbl); err != nil {
		return nil, err
	}

	m.computeSampleOffsets()

	if err := m.readSampleTimes(stbl); err != nil {
		return nil, err
	}

	if err := m.readSyncSamples(stbl); err != nil {
		return nil, err
	}

	m.readHintReference(trak)

	if len(m.SampleTimes) > 0 && len(m.SampleSizes) > 0 && len(m.SampleTimes) != len(m.SampleSizes) {
		// Restored from original_source/track.cpp: a times/sizes length
		// mismatch is logged, not fatal. The caller decides whether to
		// surface it; Build just doesn't fail on it.
		m.timesSizeMismatch = true
	}

	return m, nil
}

func (m *Model) readSampleSizes(stbl *box.Box) error {
	if stsz := stbl.FindFirst(fcStsz); stsz != nil {
		m.stszBox = stsz

		sampleSize, err := stsz.ReadU32BE(4)
		if err != nil {
			return fmt.Errorf("stsz default size: %w", err)
		}

		count, err := stsz.ReadU32BE(8)
		if err != nil {
			return fmt.Errorf("stsz count: %w", err)
		}

		if sampleSize != 0 {
			m.DefaultSampleSize = sampleSize
			m.SampleSizes = make([]uint32, count)

			for i := range m.SampleSizes {
				m.SampleSizes[i] = sampleSize
			}

			return nil
		}

		m.SampleSizes = make([]uint32, count)

		for i := range m.SampleSizes {
			v, err := stsz.ReadU32BE(12 + 4*i)
			if err != nil {
				return fmt.Errorf("stsz entry %d: %w", i, err)
			}

			m.SampleSizes[i] = v
		}

		return nil
	}

	// stz2: same shape, but a field_size byte controls whether entries are
	// 4, 8, or 16 bits packed two-per-byte for the 4-bit case.
	if stz2 := stbl.FindFirst(fcStz2); stz2 != nil {
		return m.readStz2(stz2)
	}

	return fmt.Errorf("stsz/stz2: %w", ErrMissingHeader)
}

func (m *Model) readStz2(stz2 *box.Box) error {
	fieldSize, err := stz2.ReadU32BE(4)
	if err != nil {
		return fmt.Errorf("stz2 field size: %w", err)
	}

	bits := fieldSize & 0xff

	count, err := stz2.ReadU32BE(8)
	if err != nil {
		return fmt.Errorf("stz2 count: %w", err)
	}

	m.SampleSizes = make([]uint32, count)

	switch bits {
	case 16:
		data, err := stz2.ReadChars(12, int(count)*2)
		if err != nil {
			return fmt.Errorf("stz2 entries: %w", err)
		}

		for i := range m.SampleSizes {
			m.SampleSizes[i] = uint32(data[2*i])<<8 | uint32(data[2*i+1])
		}
	case 8:
		data, err := stz2.ReadChars(12, int(count))
		if err != nil {
			return fmt.Errorf("stz2 entries: %w", err)
		}

		for i := range m.SampleSizes {
			m.SampleSizes[i] = uint32(data[i])
		}
	case 4:
		data, err := stz2.ReadChars(12, (int(count)+1)/2)
		if err != nil {
			return fmt.Errorf("stz2 entries: %w", err)
		}

		for i := range m.SampleSizes {
			b := data[i/2]
			if i%2 == 0 {
				m.SampleSizes[i] = uint32(b >> 4)
			} else {
				m.SampleSizes[i] = uint32(b & 0x0f)
			}
		}
	default:
		return fmt.Errorf("stz2 field size %d: %w", bits, ErrBadSampleTable)
	}

	return nil
}

func (m *Model) readChunkOffsets(stbl *box.Box) error {
	if co64 := stbl.FindFirst(fcCo64); co64 != nil {
		m.stcoBox = co64
		m.Use64BitOffsets = true

		count, err := co64.ReadU32BE(4)
		if err != nil {
			return fmt.Errorf("co64 count: %w", err)
		}

		m.ChunkOffsets = make([]uint64, count)

		for i := range m.ChunkOffsets {
			v, err := co64.ReadU64BE(8 + 8*i)
			if err != nil {
				return fmt.Errorf("co64 entry %d: %w", i, err)
			}

			m.ChunkOffsets[i] = v
		}

		return nil
	}

	stco, err := need(stbl, fcStco)
	if err != nil {
		return err
	}

	m.stcoBox = stco

	count, err := stco.ReadU32BE(4)
	if err != nil {
		return fmt.Errorf("stco count: %w", err)
	}

	m.ChunkOffsets = make([]uint64, count)

	for i := range m.ChunkOffsets {
		v, err := stco.ReadU32BE(8 + 4*i)
		if err != nil {
			return fmt.Errorf("stco entry %d: %w", i, err)
		}

		m.ChunkOffsets[i] = uint64(v)
	}

	return nil
}

// readSampleToChunk expands stsc's compact (first_chunk, samples_per_chunk,
// sample_description_index) run table into one samples-per-chunk entry per
// actual chunk.
func (m *Model) readSampleToChunk(stbl *box.Box) error {
	stsc, err := need(stbl, fcStsc)
	if err != nil {
		return err
	}

	m.stscBox = stsc

	count, err := stsc.ReadU32BE(4)
	if err != nil {
		return fmt.Errorf("stsc count: %w", err)
	}

	type run struct {
		firstChunk, samplesPerChunk uint32
	}

	runs := make([]run, count)

	for i := range runs {
		fc, err := stsc.ReadU32BE(8 + 12*i)
		if err != nil {
			return fmt.Errorf("stsc entry %d: %w", i, err)
		}

		spc, err := stsc.ReadU32BE(8 + 12*i + 4)
		if err != nil {
			return fmt.Errorf("stsc entry %d: %w", i, err)
		}

		runs[i] = run{firstChunk: fc, samplesPerChunk: spc}
	}

	m.SamplesPerChunk = make([]uint32, len(m.ChunkOffsets))

	for i := range runs {
		start := runs[i].firstChunk
		end := uint32(len(m.ChunkOffsets)) + 1

		if i+1 < len(runs) {
			end = runs[i+1].firstChunk
		}

		for chunk := start; chunk < end && int(chunk-1) < len(m.SamplesPerChunk); chunk++ {
			m.SamplesPerChunk[chunk-1] = runs[i].samplesPerChunk
		}
	}

	return nil
}

func (m *Model) computeSampleOffsets() {
	m.SampleOffsets = make([]uint64, 0, len(m.SampleSizes))

	sampleIdx := 0

	for chunk, off := range m.ChunkOffsets {
		cursor := off
		n := int(m.SamplesPerChunk[chunk])

		for i := 0; i < n && sampleIdx < len(m.SampleSizes); i++ {
			m.SampleOffsets = append(m.SampleOffsets, cursor)
			cursor += uint64(m.SampleSizes[sampleIdx])
			sampleIdx++
		}
	}
}

func (m *Model) readSampleTimes(stbl *box.Box) error {
	stts, err := need(stbl, fcStts)
	if err != nil {
		return err
	}

	m.sttsBox = stts

	count, err := stts.ReadU32BE(4)
	if err != nil {
		return fmt.Errorf("stts count: %w", err)
	}

	for i := 0; i < int(count); i++ {
		sampleCount, err := stts.ReadU32BE(8 + 8*i)
		if err != nil {
			return fmt.Errorf("stts entry %d: %w", i, err)
		}

		delta, err := stts.ReadU32BE(8 + 8*i + 4)
		if err != nil {
			return fmt.Errorf("stts entry %d: %w", i, err)
		}

		for j := uint32(0); j < sampleCount; j++ {
			m.SampleTimes = append(m.SampleTimes, uint64(delta))
		}
	}

	return nil
}

func (m *Model) readSyncSamples(stbl *box.Box) error {
	stss := stbl.FindFirst(fcStss)
	if stss == nil {
		// No stss: every sample is a sync sample (spec default).
		m.Keyframes = nil

		return nil
	}

	m.stssBox = stss

	count, err := stss.ReadU32BE(4)
	if err != nil {
		return fmt.Errorf("stss count: %w", err)
	}

	m.Keyframes = make(map[int]bool, count)

	for i := 0; i < int(count); i++ {
		sampleNumber, err := stss.ReadU32BE(8 + 4*i)
		if err != nil {
			return fmt.Errorf("stss entry %d: %w", i, err)
		}

		m.Keyframes[int(sampleNumber)-1] = true
	}

	return nil
}

// readHintReference restores the original project's hint-track modeling:
// a hint track's tref/hint box names the track id it provides timing
// hints for.
func (m *Model) readHintReference(trak *box.Box) {
	if m.Handler != fourCC("hint") {
		return
	}

	tref := trak.FindFirst(fcTref)
	if tref == nil {
		return
	}

	hint := tref.FindFirst(fcHint)
	if hint == nil || len(hint.Data) < 4 {
		return
	}

	m.HintedTrackID = uint32(hint.Data[0])<<24 | uint32(hint.Data[1])<<16 | uint32(hint.Data[2])<<8 | uint32(hint.Data[3])
}

// IsKeyframe reports whether sample index i (0-based) is a sync sample.
func (m *Model) IsKeyframe(i int) bool {
	if m.Keyframes == nil {
		return true
	}

	return m.Keyframes[i]
}

// NumSamples reports the sample count, as determined by the stsz/stz2 box.
func (m *Model) NumSamples() int {
	return len(m.SampleSizes)
}

// TimesSizeMismatch reports whether Build observed a times/sizes length
// mismatch (restored original_source/track.cpp behavior: non-fatal,
// left to the caller to report).
func (m *Model) TimesSizeMismatch() bool {
	return m.timesSizeMismatch
}

// StsdPayload returns the raw bytes of this track's stsd box, for callers
// that need to dig a codec-specific child box (avcC, an ALAC magic
// cookie) out of the sample description without re-parsing the trak.
func (m *Model) StsdPayload() []byte {
	if m.stsdBox == nil {
		return nil
	}

	return m.stsdBox.Data
}

// PatchDuration rewrites this track's tkhd.duration field (version 0
// payload, duration at offset 20) from the model's current Duration (in
// its own media timescale) converted into the movie's timescale, and
// returns the value written so the caller can fold every track's result
// into the overall mvhd.duration.
func (m *Model) PatchDuration(movieTimescale uint32) uint64 {
	tkhd := m.trak.FindFirst(fcTkhd)
	if tkhd == nil || m.Timescale == 0 || movieTimescale == 0 {
		return 0
	}

	tkhdDuration := m.Duration * uint64(movieTimescale) / uint64(m.Timescale)

	if len(tkhd.Data) < 24 {
		return tkhdDuration
	}

	tkhd.Data[20] = byte(tkhdDuration >> 24)
	tkhd.Data[21] = byte(tkhdDuration >> 16)
	tkhd.Data[22] = byte(tkhdDuration >> 8)
	tkhd.Data[23] = byte(tkhdDuration)
	tkhd.Dirty = true

	return tkhdDuration
}
