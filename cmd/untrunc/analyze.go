package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/oto/v2"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/mycophonic/untrunc/alac"
	"github.com/mycophonic/untrunc/box"
	"github.com/mycophonic/untrunc/bytestream"
	"github.com/mycophonic/untrunc/codec"
	"github.com/mycophonic/untrunc/mp3"
	"github.com/mycophonic/untrunc/pcm"
	"github.com/mycophonic/untrunc/track"
	"github.com/mycophonic/untrunc/wav"
)

// analyzerRow is one line of the flattened box tree the analyzer browses.
type analyzerRow struct {
	b     *box.Box
	depth int
}

// runAnalyzer opens an interactive box-tree browser over path: arrow
// keys (or j/k) move the cursor, enter/space toggles a subtree, p plays
// the current selection back through oto if it's an ALAC or MP3-in-MP4
// track, e exports it to a standalone WAV file, t shows chapter text if
// the selection is a text track, q quits.
func runAnalyzer(_ context.Context, path string, log zerolog.Logger) error {
	stream, err := bytestream.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer stream.Close()

	tree, err := box.Parse(stream, stream.Size())
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return fmt.Errorf("analyzer requires an interactive terminal")
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("entering raw terminal mode: %w", err)
	}
	defer term.Restore(fd, oldState) //nolint:errcheck // best-effort restore on exit

	expanded := expandAllSet(tree.Top)
	rows := flattenRows(tree.Top, 0, expanded)
	cursor := 0

	reader := bufio.NewReader(os.Stdin)

	for {
		renderRows(fd, rows, cursor)

		key, err := readKey(reader)
		if err != nil {
			return err
		}

		switch key {
		case "q", "Q", "ctrl+c":
			return nil
		case "up", "k":
			if cursor > 0 {
				cursor--
			}
		case "down", "j":
			if cursor < len(rows)-1 {
				cursor++
			}
		case "enter", " ":
			toggleExpanded(expanded, rows[cursor].b)
			rows = flattenRows(tree.Top, 0, expanded)
			if cursor >= len(rows) {
				cursor = len(rows) - 1
			}
		case "p":
			if err := playSelection(path, rows[cursor].b, log); err != nil {
				log.Warn().Err(err).Msg("playback failed")
			}
		case "e":
			if err := exportSelection(path, rows[cursor].b, log); err != nil {
				log.Warn().Err(err).Msg("export failed")
			}
		case "t":
			if err := showChapterText(path, tree.Top, rows[cursor].b, log); err != nil {
				log.Warn().Err(err).Msg("reading chapter text failed")
			}
		}
	}
}

func expandAllSet(top []*box.Box) map[*box.Box]bool {
	set := make(map[*box.Box]bool)

	var mark func(b *box.Box)
	mark = func(b *box.Box) {
		set[b] = true
		for _, c := range b.Children {
			mark(c)
		}
	}

	for _, b := range top {
		mark(b)
	}

	return set
}

func toggleExpanded(expanded map[*box.Box]bool, b *box.Box) {
	if len(b.Children) == 0 {
		return
	}

	expanded[b] = !expanded[b]
}

func flattenRows(top []*box.Box, depth int, expanded map[*box.Box]bool) []analyzerRow {
	var rows []analyzerRow

	var walk func(b *box.Box, depth int)
	walk = func(b *box.Box, depth int) {
		rows = append(rows, analyzerRow{b: b, depth: depth})

		if len(b.Children) > 0 && expanded[b] {
			for _, c := range b.Children {
				walk(c, depth+1)
			}
		}
	}

	for _, b := range top {
		walk(b, depth)
	}

	return rows
}

func renderRows(fd int, rows []analyzerRow, cursor int) {
	width, height, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		width = 80
	}

	if height <= 0 {
		height = 24
	}

	fmt.Print("\x1b[2J\x1b[H")

	top := 0
	if cursor >= height-2 {
		top = cursor - (height - 3)
	}

	for i := top; i < len(rows) && i < top+height-1; i++ {
		r := rows[i]
		marker := " "

		if i == cursor {
			marker = ">"
		}

		line := fmt.Sprintf("%s %*s%s  len=%d", marker, r.depth*2, "", string(r.b.Header.Type[:]), r.b.Header.Length)
		if len(line) > width {
			line = line[:width]
		}

		fmt.Print(line + "\r\n")
	}

	fmt.Print("\r\nj/k move  enter toggle  p play  e export wav  t chapter text  q quit\r\n")
}

// readKey decodes a single keypress, resolving the handful of escape
// sequences a raw terminal sends for arrow keys.
func readKey(r *bufio.Reader) (string, error) {
	b, err := r.ReadByte()
	if err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}

	switch b {
	case 3:
		return "ctrl+c", nil
	case 13, 10:
		return "enter", nil
	case 27:
		seq := make([]byte, 2)
		if _, err := r.Read(seq); err != nil {
			return "", nil //nolint:nilerr // a bare escape with no follow-up is treated as a no-op
		}

		if seq[0] == '[' {
			switch seq[1] {
			case 'A':
				return "up", nil
			case 'B':
				return "down", nil
			}
		}

		return "", nil
	default:
		return string(b), nil
	}
}

// playSelection decodes and plays back audio for the sample entry found
// at or below the selected box, if that entry is ALAC or an MP3-framed MP4A
// payload -- the only two codecs this module carries a full bitstream
// decoder for, as opposed to the repair engine's boundary-recognition-only
// oracle.
func playSelection(path string, selected *box.Box, log zerolog.Logger) error {
	codecTag, samples, format, err := decodeSelection(path, selected)
	if err != nil {
		return err
	}

	log.Info().Str("codec", codecTag).Int("sample_rate", format.SampleRate).
		Int("channels", int(format.Channels)).Msg("playing track")

	return playPCM(samples, format)
}

// exportSelection decodes the same ALAC/MP4A-MP3 track playSelection does
// and writes it out as a standalone WAV file next to the source, the
// original project's own saprobe CLI export path (cmd/saprobe/decode.go)
// adapted to this module's track selection instead of a fixed CLI flag.
func exportSelection(path string, selected *box.Box, log zerolog.Logger) error {
	codecTag, samples, format, err := decodeSelection(path, selected)
	if err != nil {
		return err
	}

	outPath := path + "." + codecTag + ".wav"

	out, err := os.Create(outPath) //nolint:gosec // CLI tool writes next to a user-specified file
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer out.Close()

	if err := wav.Encode(out, samples, format); err != nil {
		return fmt.Errorf("encoding WAV: %w", err)
	}

	log.Info().Str("codec", codecTag).Str("output", outPath).Msg("exported track")

	return nil
}

// decodeSelection locates the nearest decodable sample entry to selected
// and runs it through the matching bitstream decoder.
func decodeSelection(path string, selected *box.Box) (string, []byte, pcm.PCMFormat, error) {
	codecTag := sampleEntryTag(selected)
	if codecTag == "" {
		return "", nil, pcm.PCMFormat{}, fmt.Errorf("selection has no decodable sample entry nearby")
	}

	f, err := os.Open(path) //nolint:gosec // CLI tool opens a user-specified file
	if err != nil {
		return "", nil, pcm.PCMFormat{}, err
	}
	defer f.Close()

	var (
		samples []byte
		format  pcm.PCMFormat
	)

	switch codecTag {
	case "alac":
		samples, format, err = alac.Decode(f)
	case "mp4a":
		samples, format, err = mp3.Decode(f)
	default:
		return "", nil, pcm.PCMFormat{}, fmt.Errorf("no decoder for codec %q", codecTag)
	}

	if err != nil {
		return "", nil, pcm.PCMFormat{}, fmt.Errorf("decoding track: %w", err)
	}

	return codecTag, samples, format, nil
}

func playPCM(samples []byte, format pcm.PCMFormat) error {
	otoCtx, ready, err := oto.NewContext(format.SampleRate, int(format.Channels), format.BitDepth.BytesPerSample())
	if err != nil {
		return fmt.Errorf("creating audio context: %w", err)
	}

	<-ready

	player := otoCtx.NewPlayer(bytes.NewReader(samples))
	defer player.Close()

	player.Play()

	for player.IsPlaying() {
		time.Sleep(100 * time.Millisecond)
	}

	return nil
}

// sampleEntryTag returns the sample entry type of the first stsd found at
// or below selected, searching depth-first; selected's ancestors are not
// searched.
func sampleEntryTag(selected *box.Box) string {
	tag := firstStsdEntryTag(selected)
	if tag != "" {
		return tag
	}

	for _, c := range selected.Children {
		if tag := sampleEntryTag(c); tag != "" {
			return tag
		}
	}

	return ""
}

func firstStsdEntryTag(b *box.Box) string {
	if string(b.Header.Type[:]) != "stsd" || len(b.Data) < 16 {
		return ""
	}

	return string(b.Data[12:16])
}

// showChapterText finds the trak that owns selected, builds its sample
// table, and logs the first sample decoded as QuickTime chapter text.
func showChapterText(path string, top []*box.Box, selected *box.Box, log zerolog.Logger) error {
	trak := trakContaining(top, selected)
	if trak == nil {
		return fmt.Errorf("selection is not inside a track")
	}

	m, err := track.Build(trak)
	if err != nil {
		return fmt.Errorf("building track: %w", err)
	}

	if m.NumSamples() == 0 {
		return fmt.Errorf("track has no samples")
	}

	f, err := os.Open(path) //nolint:gosec // CLI tool opens a user-specified file
	if err != nil {
		return err
	}
	defer f.Close()

	sample := make([]byte, m.SampleSizes[0])
	if _, err := f.ReadAt(sample, int64(m.SampleOffsets[0])); err != nil { //nolint:gosec // offsets come from the parsed sample table
		return fmt.Errorf("reading first sample: %w", err)
	}

	text, err := codec.DecodeChapterText(sample)
	if err != nil {
		return fmt.Errorf("decoding chapter text: %w", err)
	}

	log.Info().Str("text", text).Msg("chapter text")

	return nil
}

// trakContaining walks the tree looking for the nearest trak ancestor
// of target, which box.Box doesn't track directly (no parent pointers).
func trakContaining(top []*box.Box, target *box.Box) *box.Box {
	var found *box.Box

	var walk func(b *box.Box, currentTrak *box.Box)
	walk = func(b *box.Box, currentTrak *box.Box) {
		if found != nil {
			return
		}

		if string(b.Header.Type[:]) == "trak" {
			currentTrak = b
		}

		if b == target {
			found = currentTrak

			return
		}

		for _, c := range b.Children {
			walk(c, currentTrak)
		}
	}

	for _, b := range top {
		walk(b, nil)
	}

	return found
}
