package track

import (
	"encoding/binary"
)

// WriteBack rewrites this model's stsz/stco(or co64)/stsc/stts/stss boxes
// in place to match the model's current Sample* slices, after the
// repairer has trimmed them to the recovered sample count. Chunk offsets
// are always written as co64 (spec §4.4), even if the source file used
// stco and every offset fits in 32 bits.
func (m *Model) WriteBack() {
	m.writeStsz()
	m.writeChunkTables()
	m.writeStts()
	m.writeStss()
}

func (m *Model) writeStsz() {
	if m.stszBox == nil {
		return
	}

	buf := make([]byte, 12+4*len(m.SampleSizes))
	binary.BigEndian.PutUint32(buf[8:], uint32(len(m.SampleSizes))) //nolint:gosec // sample counts never approach uint32 overflow

	for i, sz := range m.SampleSizes {
		binary.BigEndian.PutUint32(buf[12+4*i:], sz)
	}

	m.stszBox.SetData(buf)
	m.stszBox.Header.Type = fcStsz
}

// writeChunkTables rebuilds co64 one-chunk-per-sample (the simplest and
// always-correct layout once sample offsets are known individually) and
// the matching single-run stsc entry. This sacrifices the original
// file's chunk grouping in exchange for never needing to reconstruct
// which samples the damaged/rebuilt file actually grouped into a chunk
// together -- the original project makes the same trade in its rewritten
// stbl (track.cpp's Track::writeToAtom, "one sample per chunk"). Output
// always migrates stco to co64 (spec §4.4, §6), future-proofing large
// offsets regardless of whether this particular file needs them.
func (m *Model) writeChunkTables() {
	m.writeCo64()
	m.writeStscSingleRun()
}

func (m *Model) writeCo64() {
	buf := make([]byte, 8+8*len(m.SampleOffsets))
	binary.BigEndian.PutUint32(buf[4:], uint32(len(m.SampleOffsets))) //nolint:gosec // sample counts never approach uint32 overflow

	for i, off := range m.SampleOffsets {
		binary.BigEndian.PutUint64(buf[8+8*i:], off)
	}

	target := m.stcoBox
	if target == nil {
		return
	}

	// Migrating stco -> co64 changes the box's four-character type; the
	// parent stbl's child slice keeps the same *Box pointer and position,
	// so no tree surgery is needed beyond updating Header.Type.
	target.SetData(buf)
	target.Header.Type = fcCo64
	m.Use64BitOffsets = true
}

// writeStscSingleRun writes the one-sample-per-chunk shape: a single
// (first_chunk=1, samples_per_chunk=1, sample_description_index=1) entry,
// matching the one-sample-per-chunk layout writeChunkTables just built.
func (m *Model) writeStscSingleRun() {
	if m.stscBox == nil {
		return
	}

	buf := make([]byte, 8+12)
	binary.BigEndian.PutUint32(buf[4:], 1)
	binary.BigEndian.PutUint32(buf[8:], 1)
	binary.BigEndian.PutUint32(buf[12:], 1)
	binary.BigEndian.PutUint32(buf[16:], 1)

	m.stscBox.SetData(buf)
	m.stscBox.Header.Type = fcStsc
}

func (m *Model) writeStts() {
	if m.sttsBox == nil {
		return
	}

	type run struct {
		delta uint64
		count uint32
	}

	var runs []run

	for _, t := range m.SampleTimes {
		if len(runs) > 0 && runs[len(runs)-1].delta == t {
			runs[len(runs)-1].count++

			continue
		}

		runs = append(runs, run{delta: t, count: 1})
	}

	buf := make([]byte, 8+8*len(runs))
	binary.BigEndian.PutUint32(buf[4:], uint32(len(runs))) //nolint:gosec // run counts never approach uint32 overflow

	for i, r := range runs {
		binary.BigEndian.PutUint32(buf[8+8*i:], r.count)
		binary.BigEndian.PutUint32(buf[8+8*i+4:], uint32(r.delta)) //nolint:gosec // sample deltas fit 32 bits per ISO BMFF
	}

	m.sttsBox.SetData(buf)
}

func (m *Model) writeStss() {
	if m.stssBox == nil || m.Keyframes == nil {
		return
	}

	var entries []uint32

	for i := 0; i < len(m.SampleSizes); i++ {
		if m.Keyframes[i] {
			entries = append(entries, uint32(i+1)) //nolint:gosec // sample indices never approach uint32 overflow
		}
	}

	buf := make([]byte, 8+4*len(entries))
	binary.BigEndian.PutUint32(buf[4:], uint32(len(entries))) //nolint:gosec // entry counts never approach uint32 overflow

	for i, n := range entries {
		binary.BigEndian.PutUint32(buf[8+4*i:], n)
	}

	m.stssBox.SetData(buf)
}

// Truncate discards every sample at or beyond n, keeping the model
// internally consistent (sizes, offsets, times, keyframes) ahead of a
// WriteBack call.
func (m *Model) Truncate(n int) {
	if n >= len(m.SampleSizes) {
		return
	}

	m.SampleSizes = m.SampleSizes[:n]
	m.SampleOffsets = m.SampleOffsets[:n]

	if len(m.SampleTimes) > n {
		m.SampleTimes = m.SampleTimes[:n]
	}

	if m.Keyframes != nil {
		for i := range m.Keyframes {
			if i >= n {
				delete(m.Keyframes, i)
			}
		}
	}
}
