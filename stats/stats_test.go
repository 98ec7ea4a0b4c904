package stats_test

import (
	"testing"

	"github.com/mycophonic/untrunc/stats"
	"github.com/mycophonic/untrunc/track"
)

func TestBuildFixedSizeExcludesLastChunk(t *testing.T) {
	m := &track.Model{
		SampleSizes:     []uint32{100, 100, 100, 40},
		SampleOffsets:   []uint64{0, 100, 200, 300},
		SamplesPerChunk: []uint32{1, 1, 1, 1},
	}

	data := make([]byte, 340)

	s, err := stats.Build(m, func(offset int64, n int) ([]byte, error) {
		return data[offset : offset+int64(n)], nil
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if s.FixedSize != 100 {
		t.Fatalf("FixedSize = %d, want 100 (last short chunk excluded)", s.FixedSize)
	}
}

func TestBuildDetectsVariableSize(t *testing.T) {
	m := &track.Model{
		SampleSizes:     []uint32{100, 50, 100},
		SampleOffsets:   []uint64{0, 100, 150},
		SamplesPerChunk: []uint32{1, 1, 1},
	}

	data := make([]byte, 250)

	s, err := stats.Build(m, func(offset int64, n int) ([]byte, error) {
		return data[offset : offset+int64(n)], nil
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if s.FixedSize != 0 {
		t.Fatalf("FixedSize = %d, want 0 (variable excluding last chunk)", s.FixedSize)
	}
}

func TestBuildFixedSizeUsesChunkTotalNotFirstSample(t *testing.T) {
	// Two samples per chunk, 50 bytes each -> every non-last chunk totals
	// 100 bytes even though no single sample is 100 bytes.
	m := &track.Model{
		SampleSizes:     []uint32{50, 50, 50, 50, 20},
		SampleOffsets:   []uint64{0, 50, 100, 150, 200},
		SamplesPerChunk: []uint32{2, 2, 1},
	}

	data := make([]byte, 220)

	s, err := stats.Build(m, func(offset int64, n int) ([]byte, error) {
		return data[offset : offset+int64(n)], nil
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if s.FixedSize != 100 {
		t.Fatalf("FixedSize = %d, want 100 (chunk total, not first sample's 50)", s.FixedSize)
	}
}

func TestBuildWeightsSumNear1e20(t *testing.T) {
	m := &track.Model{
		SampleSizes:     []uint32{8, 8, 8, 8, 8},
		SampleOffsets:   []uint64{0, 8, 16, 24, 32},
		SamplesPerChunk: []uint32{1, 1, 1, 1, 1},
	}

	data := make([]byte, 40)

	s, err := stats.Build(m, func(offset int64, n int) ([]byte, error) {
		return data[offset : offset+int64(n)], nil
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var total float64
	for _, w := range s.Beginnings64 {
		total += w
	}

	if total < 0.99e20 || total > 1.01e20 {
		t.Fatalf("total weight = %v, want ~1e20", total)
	}
}
