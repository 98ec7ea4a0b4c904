package main

import (
	"fmt"
	"os"

	gomp4 "github.com/abema/go-mp4"
)

// printInfo walks path's box tree with the ecosystem's own ISO BMFF
// reader, independent of this module's hand-rolled box package, so a
// user can sanity-check our own parse against a second implementation.
func printInfo(path string) error {
	f, err := os.Open(path) //nolint:gosec // CLI tool opens a user-specified file
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var trackCount int
	depth := 0

	_, err = gomp4.ReadBoxStructure(f, func(h *gomp4.ReadHandle) (interface{}, error) {
		fmt.Printf("%*s%s  size=%d  offset=%d\n", depth*2, "", h.BoxInfo.Type, h.BoxInfo.Size, h.BoxInfo.Offset)

		switch h.BoxInfo.Type {
		case gomp4.BoxTypeMoov(), gomp4.BoxTypeTrak(), gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl():
			depth++
			v, err := h.Expand()
			depth--

			return v, err
		case gomp4.BoxTypeMvhd():
			return printMvhd(h)
		case gomp4.BoxTypeTkhd():
			trackCount++

			return printTkhd(h)
		default:
			return nil, nil
		}
	})
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	fmt.Printf("\n%d track(s)\n", trackCount)

	return nil
}

func printMvhd(h *gomp4.ReadHandle) (interface{}, error) {
	payload, _, err := h.ReadPayload()
	if err != nil {
		return nil, fmt.Errorf("reading mvhd: %w", err)
	}

	mvhd, ok := payload.(*gomp4.Mvhd)
	if !ok {
		return nil, nil //nolint:nilnil // go-mp4 callback: nil,nil means continue
	}

	duration := mvhd.DurationV0
	if mvhd.Version == 1 {
		duration = mvhd.DurationV1
	}

	fmt.Printf("  movie timescale=%d duration=%d (%.2fs)\n",
		mvhd.Timescale, duration, float64(duration)/float64(mvhd.Timescale))

	return nil, nil
}

func printTkhd(h *gomp4.ReadHandle) (interface{}, error) {
	payload, _, err := h.ReadPayload()
	if err != nil {
		return nil, fmt.Errorf("reading tkhd: %w", err)
	}

	tkhd, ok := payload.(*gomp4.Tkhd)
	if !ok {
		return nil, nil //nolint:nilnil // go-mp4 callback: nil,nil means continue
	}

	duration := tkhd.DurationV0
	if tkhd.Version == 1 {
		duration = tkhd.DurationV1
	}

	fmt.Printf("  track_id=%d duration=%d\n", tkhd.TrackID, duration)

	return nil, nil
}
