// Package stats builds an empirical per-track fingerprint (CodecStats,
// spec §4.6) from a known-good reference track: a weighted histogram of
// each chunk's leading 4 and 8 bytes, plus a fixed-size hint. The codec
// package consults this as a prior when structural checks alone can't
// disambiguate a sample boundary.
package stats

import (
	"encoding/binary"

	"github.com/mycophonic/untrunc/track"
)

// Stats is the per-track empirical prior built from a reference file.
type Stats struct {
	// FixedSize is nonzero when every chunk but the last had the same
	// size in the reference track (PCM-style tracks commonly do).
	FixedSize uint32

	// Beginnings32/64 map a chunk-starting byte sequence, read as a
	// big-endian integer, to an accumulated weight. Weights sum to
	// roughly 1e20 regardless of sample count, so tracks with very
	// different chunk counts remain comparable.
	Beginnings32 map[uint32]float64
	Beginnings64 map[uint64]float64
}

// Build scans m's reference sample table and produces the fingerprint
// described in spec §4.6. m must have been built (and not yet truncated)
// from the reference file's trak.
func Build(m *track.Model, readAt func(offset int64, n int) ([]byte, error)) (*Stats, error) {
	s := &Stats{
		Beginnings32: make(map[uint32]float64),
		Beginnings64: make(map[uint64]float64),
	}

	chunks := chunkSpans(m)
	if len(chunks) == 0 {
		return s, nil
	}

	step := 1e20 / float64(len(chunks))

	var fixedSize uint32

	fixedSizeSet := false
	lastChunk := chunks[len(chunks)-1]

	for _, c := range chunks {
		if c.start >= len(m.SampleOffsets) {
			continue
		}

		// original_source/codecstats.cpp keys fixed_size on the whole
		// chunk's size, not its first sample's: multi-sample-per-chunk
		// tracks (PCM/audio) would otherwise report one frame's length
		// instead of the chunk codec/fixedsize.go actually needs.
		size := chunkSampleSize(m, c)
		offset := m.SampleOffsets[c.start]

		// The last chunk is excluded from the fixed-size check: PCM-style
		// tracks commonly have a short trailing chunk.
		if c != lastChunk {
			if !fixedSizeSet {
				fixedSize = size
				fixedSizeSet = true
			} else if fixedSize != size {
				fixedSize = 0
			}
		}

		buf, err := readAt(int64(offset), 8)
		if err != nil {
			buf, err = readAt(int64(offset), 4)
			if err != nil {
				continue
			}
		}

		if len(buf) >= 4 {
			s.Beginnings32[binary.BigEndian.Uint32(buf[:4])] += step
		}

		if len(buf) >= 8 {
			s.Beginnings64[binary.BigEndian.Uint64(buf)] += step
		}
	}

	s.FixedSize = fixedSize

	return s, nil
}

// chunkSpan is one chunk's sample range: samples [start, start+count) of
// m.SampleSizes/SampleOffsets belong to it.
type chunkSpan struct {
	start, count int
}

// chunkSpans derives each chunk's sample range from SamplesPerChunk.
func chunkSpans(m *track.Model) []chunkSpan {
	var out []chunkSpan

	sampleIdx := 0

	for _, n := range m.SamplesPerChunk {
		out = append(out, chunkSpan{start: sampleIdx, count: int(n)})
		sampleIdx += int(n)
	}

	return out
}

// chunkSampleSize sums the sizes of every sample in c, i.e. the chunk's
// total size as original_source/codecstats.cpp computes it.
func chunkSampleSize(m *track.Model, c chunkSpan) uint32 {
	var total uint32

	for i := c.start; i < c.start+c.count && i < len(m.SampleSizes); i++ {
		total += m.SampleSizes[i]
	}

	return total
}
