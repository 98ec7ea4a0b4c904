// Package repair implements the three-stage reconstruction spec §4.7
// describes: locate mdat in a damaged file, walk it offset by offset
// recognizing samples against a known-good reference file's codecs, and
// write a new file whose moov matches what was actually recovered.
package repair

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/bytestream"
	"github.com/mycophonic/untrunc/codec"
	"github.com/mycophonic/untrunc/oracle"
	"github.com/mycophonic/untrunc/stats"
	"github.com/mycophonic/untrunc/track"
)

var (
	fcFtyp = fourCC("ftyp")
	fcMoov = fourCC("moov")
	fcMdat = fourCC("mdat")
	fcMvhd = fourCC("mvhd")
	fcTrak = fourCC("trak")
	fcStbl = fourCC("stbl")
	fcCtts = fourCC("ctts")
	fcCslg = fourCC("cslg")
	fcStps = fourCC("stps")
)

func fourCC(s string) [4]byte {
	var t [4]byte
	copy(t[:], s)

	return t
}

// Repairer reconstructs a damaged file against a known-good reference,
// per the knobs Options exposes.
type Repairer struct {
	Options Options
}

// New builds a Repairer with the given options.
func New(opts Options) *Repairer {
	return &Repairer{Options: opts}
}

// trackState accumulates one track's recovered samples across stage 2,
// in offsets relative to the start of the damaged file's mdat payload --
// they aren't turned into absolute file offsets until stage 3, once the
// output file's own ftyp+moov+mdat-header size is known.
type trackState struct {
	model  *track.Model
	stats  *stats.Stats
	oracle oracle.Oracle
	codec  [4]byte

	relOffsets []int64
	sizes      []uint32
	times      []uint64
	keyframes  map[int]bool
	hadStss    bool

	timesIncomplete bool
}

// Run performs the full repair: reference describes the known-good
// structure (moov, sample tables, codec configuration), damaged supplies
// the sample data to recover, and output receives the reconstructed file.
func (r *Repairer) Run(reference, damaged, output string) error {
	runID := uuid.New().String()
	log := r.Options.logger().With().Str("repair_id", runID).Logger()

	log.Info().Str("reference", reference).Str("damaged", damaged).Msg("starting repair")

	refStream, err := bytestream.Open(reference)
	if err != nil {
		return err
	}
	defer refStream.Close()

	refTree, err := box.Parse(refStream, refStream.Size())
	if err != nil {
		return fmt.Errorf("parsing reference: %w", err)
	}

	ftyp := refTree.FindFirst(fcFtyp)

	moov := refTree.FindFirst(fcMoov)
	if moov == nil {
		return ErrNoMoov
	}

	mvhd := moov.FindFirst(fcMvhd)
	if mvhd == nil {
		return ErrNoMvhd
	}

	movieTimescale, err := mvhd.ReadU32BE(12)
	if err != nil {
		return fmt.Errorf("mvhd timescale: %w", err)
	}

	traks := moov.FindAll(fcTrak)
	if len(traks) == 0 {
		return ErrNoMoov
	}

	states, err := r.buildTrackStates(reference, traks, log)
	if err != nil {
		return err
	}

	damagedStream, err := bytestream.Open(damaged)
	if err != nil {
		return err
	}
	defer damagedStream.Close()

	mdatBox, err := locateDamagedMdat(damagedStream)
	if err != nil {
		return fmt.Errorf("locating damaged mdat: %w", err)
	}

	log.Debug().Int64("mdat_size", mdatBox.Large.Size()).Int("tracks", len(states)).Msg("located damaged mdat")

	finalSize := r.reconstructSamples(mdatBox, states)

	log.Info().Int64("recovered_bytes", finalSize).Msg("stage 2 reconstruction stopped")

	if err := mdatBox.Large.Resize(finalSize); err != nil {
		return fmt.Errorf("resizing recovered mdat: %w", err)
	}

	if err := commit(ftyp, moov, mdatBox, movieTimescale, traks, states); err != nil {
		return err
	}

	outStream, err := bytestream.Create(output)
	if err != nil {
		return err
	}
	defer outStream.Close()

	out := &box.Tree{Top: nonNil(ftyp, moov, mdatBox)}

	if err := out.Write(outStream); err != nil {
		return err
	}

	log.Info().Str("output", output).Msg("repair complete")

	return nil
}

// buildTrackStates builds every track's state concurrently: each track's
// reference-derived stats and oracle setup only reads the reference
// file and shares no mutable state with any other track, so it gets its
// own *bytestream.Stream and runs in its own goroutine.
func (r *Repairer) buildTrackStates(reference string, traks []*box.Box, log zerolog.Logger) ([]*trackState, error) {
	states := make([]*trackState, len(traks))

	var g errgroup.Group

	for i, trak := range traks {
		g.Go(func() error {
			trakStream, err := bytestream.Open(reference)
			if err != nil {
				return err
			}
			defer trakStream.Close()

			ts, err := r.buildTrackState(trakStream, trak)
			if err != nil {
				return fmt.Errorf("track %d: %w", i, err)
			}

			log.Debug().Int("track", i).Str("codec", string(ts.codec[:])).Int("samples", ts.model.NumSamples()).
				Msg("built reference track state")

			if string(ts.model.Handler[:]) == "hint" {
				log.Warn().Int("track", i).Msg("hint track: recovery is best-effort")
			}

			states[i] = ts

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return states, nil
}

func nonNil(ftyp, moov, mdat *box.Box) []*box.Box {
	out := make([]*box.Box, 0, 3)

	if ftyp != nil {
		out = append(out, ftyp)
	}

	out = append(out, moov, mdat)

	return out
}

// buildTrackState builds the per-track model, reference-derived codec
// fingerprint, and the decoder oracle (when the codec needs one) ahead
// of stage 2.
func (r *Repairer) buildTrackState(refStream *bytestream.Stream, trak *box.Box) (*trackState, error) {
	model, err := track.Build(trak)
	if err != nil {
		return nil, fmt.Errorf("building track model: %w", err)
	}

	readAt := func(offset int64, n int) ([]byte, error) {
		buf := make([]byte, n)
		if err := refStream.ReadAt(buf, offset); err != nil {
			return nil, err
		}

		return buf, nil
	}

	st, err := stats.Build(model, readAt)
	if err != nil {
		return nil, fmt.Errorf("building stats: %w", err)
	}

	o, err := buildOracle(model.Codec, model.StsdPayload())
	if err != nil {
		return nil, fmt.Errorf("building oracle: %w", err)
	}

	hadStss := model.Keyframes != nil

	var keyframes map[int]bool
	if hadStss {
		keyframes = make(map[int]bool)
	}

	return &trackState{
		model:     model,
		stats:     st,
		oracle:    o,
		codec:     model.Codec,
		hadStss:   hadStss,
		keyframes: keyframes,
	}, nil
}

// buildOracle constructs the decoder oracle a codec needs from the
// track's stsd payload, per spec §6. Codecs whose boundary recognition
// is purely structural (HEVC's length-prefixed NALs, the fixed-size PCM
// family, timed-text, metadata tracks) need no oracle at all; nil is a
// valid Oracle for Recognize to hand them.
func buildOracle(codecTag [4]byte, stsd []byte) (oracle.Oracle, error) {
	switch string(codecTag[:]) {
	case "avc1":
		avcC, ok := avcCFromStsd(stsd)
		if !ok {
			return nil, errMissingCodecConfig
		}

		return oracle.NewAVC1SPS(avcC), nil
	case "mp4v":
		return oracle.NewMP4V(), nil
	case "mp4a":
		return oracle.NewMP4A(), nil
	case "alac":
		cookie, ok := alacCookieFromStsd(stsd)
		if !ok {
			return nil, errMissingCodecConfig
		}

		return oracle.NewALAC(cookie)
	default:
		return nil, nil //nolint:nilnil // a nil Oracle is valid for structural-only codecs
	}
}

// reconstructSamples is stage 2: walk the damaged mdat payload from byte
// 0, recognizing one sample at a time against every track's codec and
// taking the best match, until nothing recognizes the bytes at the
// current offset. It returns the offset reconstruction stopped at, which
// becomes the recovered mdat's new size.
func (r *Repairer) reconstructSamples(mdatBox *box.Box, states []*trackState) int64 {
	order := priorityOrder(states)

	mdatSize := mdatBox.Large.Size()
	zeroSkip := r.Options.zeroSkip()
	maxFrame := r.Options.maxFrame()

	offset := int64(0)

	for offset < mdatSize {
		remaining := mdatSize - offset

		if remaining >= 4 {
			head, err := readMdat(mdatBox, offset, 4)
			if err == nil && allZero(head) {
				offset += zeroSkip

				continue
			}
		}

		if remaining >= 8 {
			head, err := readMdat(mdatBox, offset, 8)
			if err == nil && string(head[4:8]) == "moov" {
				length := int64(binary.BigEndian.Uint32(head[0:4]))
				if length < 8 {
					length = 8
				}

				offset += length

				continue
			}
		}

		window := remaining
		if window > maxFrame {
			window = maxFrame
		}

		buf, err := readMdat(mdatBox, offset, window)
		if err != nil {
			break
		}

		idx, match := bestMatch(states, order, buf, window, r.Options.AVC1)
		if idx < 0 {
			if r.Options.ExhaustiveScan {
				next, ok := r.scanForward(mdatBox, states, order, offset, mdatSize)
				if ok {
					offset = next

					continue
				}
			}

			break
		}

		recordMatch(states[idx], offset, match)

		offset += int64(match.Length)
	}

	return offset
}

// scanForward implements ExhaustiveScan: advance one byte at a time
// (instead of the usual per-sample stride) looking for an offset any
// track recognizes, up to the configured budget. It does not itself
// record a match -- the caller re-enters the ordinary loop at the
// offset returned so the match gets recorded and accounted for exactly
// like any other.
func (r *Repairer) scanForward(mdatBox *box.Box, states []*trackState, order []int, start, mdatSize int64) (int64, bool) {
	maxFrame := r.Options.maxFrame()
	budget := r.Options.exhaustiveScanBudget()

	for step := int64(1); step <= budget; step++ {
		offset := start + step
		if offset >= mdatSize {
			return 0, false
		}

		window := mdatSize - offset
		if window > maxFrame {
			window = maxFrame
		}

		buf, err := readMdat(mdatBox, offset, window)
		if err != nil {
			return 0, false
		}

		if idx, _ := bestMatch(states, order, buf, window, r.Options.AVC1); idx >= 0 {
			return offset, true
		}
	}

	return 0, false
}

// priorityOrder restores the original project's track-probe ordering:
// audio codecs are comparatively cheap and unambiguous to reject, so an
// MP4A track gets probed before a video track sharing the same mdat,
// cutting down how often a video matcher's looser heuristics get a
// chance to misfire on audio data.
func priorityOrder(states []*trackState) []int {
	order := make([]int, len(states))
	for i := range order {
		order[i] = i
	}

	if len(states) >= 2 && string(states[order[0]].codec[:]) != "mp4a" && string(states[order[1]].codec[:]) == "mp4a" {
		order[0], order[1] = order[1], order[0]
	}

	return order
}

func bestMatch(states []*trackState, order []int, buf []byte, window int64, avc1Opts codec.AVC1Options) (int, codec.Match) {
	for _, idx := range order {
		ts := states[idx]

		m := codec.Recognize(ts.codec, ts.stats, buf, int(window), ts.oracle, avc1Opts)
		if m.Chances <= 0 || m.Length <= 0 || int64(m.Length) > window {
			continue
		}

		return idx, m
	}

	return -1, codec.Reject
}

func recordMatch(ts *trackState, offset int64, m codec.Match) {
	ts.relOffsets = append(ts.relOffsets, offset)
	ts.sizes = append(ts.sizes, uint32(m.Length)) //nolint:gosec // sample lengths are bounded by MaxFrame

	if m.HasDuration {
		ts.times = append(ts.times, m.DurationUnits)
	} else {
		ts.timesIncomplete = true
	}

	if ts.hadStss && m.Keyframe {
		ts.keyframes[len(ts.sizes)-1] = true
	}
}

func readMdat(mdatBox *box.Box, offset, n int64) ([]byte, error) {
	buf := make([]byte, n)
	if err := mdatBox.Large.ReadAt(buf, offset); err != nil {
		return nil, err
	}

	return buf, nil
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}

	return true
}

// commit is stage 3: fold each track's recovered samples back into its
// model, rewrite the sample tables, drop the edit-list/partial-sync
// boxes the recovered structure can no longer vouch for, and recompute
// durations. Two WriteBack passes are required -- co64 entries are fixed
// 8 bytes wide regardless of value, so every box's on-disk size (and
// hence the output's ftyp+moov+mdat-header total, which the sample
// offsets themselves depend on) is already determined by sample count
// alone, before the real offsets are known.
func commit(ftyp, moov, mdatBox *box.Box, movieTimescale uint32, traks []*box.Box, states []*trackState) error {
	for i, ts := range states {
		n := len(ts.sizes)

		ts.model.SampleSizes = ts.sizes

		if !ts.timesIncomplete && len(ts.times) == n && n > 0 {
			ts.model.SampleTimes = ts.times
			ts.model.Duration = sampleTimesSum(ts.times)
		} else {
			ts.model.FixTimes(n)
		}

		if ts.hadStss {
			ts.model.Keyframes = ts.keyframes
		}

		ts.model.SampleOffsets = make([]uint64, n) // placeholder: sizes, not values, drive box layout

		ts.model.WriteBack()

		pruneDroppedTables(traks[i])
	}

	var ftypSize int64
	if ftyp != nil {
		ftypSize = ftyp.Size()
	}

	outputMdatPayloadStart := ftypSize + moov.Size() + mdatBox.Large.HeaderSize()

	var maxTkhdDuration uint64

	for _, ts := range states {
		abs := make([]uint64, len(ts.relOffsets))
		for i, rel := range ts.relOffsets {
			abs[i] = uint64(outputMdatPayloadStart + rel) //nolint:gosec // file offsets fit uint64
		}

		ts.model.SampleOffsets = abs

		ts.model.WriteBack()

		if d := ts.model.PatchDuration(movieTimescale); d > maxTkhdDuration {
			maxTkhdDuration = d
		}
	}

	patchMvhdDuration(moov.FindFirst(fcMvhd), maxTkhdDuration)

	return nil
}

// pruneDroppedTables removes the sample-table boxes the reconstruction
// can't keep honest: ctts/cslg describe composition-time offsets and
// stps partial-sync samples, none of which stage 2's recovery tracks.
func pruneDroppedTables(trak *box.Box) {
	stbl := trak.FindFirst(fcStbl)
	if stbl == nil {
		return
	}

	stbl.Prune(fcCtts)
	stbl.Prune(fcCslg)
	stbl.Prune(fcStps)
}

func sampleTimesSum(times []uint64) uint64 {
	var total uint64
	for _, t := range times {
		total += t
	}

	return total
}

func patchMvhdDuration(mvhd *box.Box, duration uint64) {
	if mvhd == nil || len(mvhd.Data) < 20 {
		return
	}

	binary.BigEndian.PutUint32(mvhd.Data[16:20], uint32(duration)) //nolint:gosec // durations fit 32 bits in practice
	mvhd.Dirty = true
}
