package oracle

import (
	"bytes"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// mp4aOracle answers "how many bytes does one MPEG audio frame starting
// here consume" by handing the candidate window to go-mp3 and counting
// how many source bytes its decoder actually reads before producing one
// chunk of PCM, per spec §4.5.3 step 3 ("feed up to max_len bytes to the
// decoder oracle; consumed = oracle.decode()").
type mp4aOracle struct{}

// NewMP4A returns the MP4A/MP3 probe oracle, grounded in the teacher's
// mp3/decode.go use of hajimehoshi/go-mp3.
func NewMP4A() Oracle {
	return mp4aOracle{}
}

func (mp4aOracle) Probe(codecID string, start []byte, maxBytes int) (ProbeResult, error) {
	if maxBytes > len(start) {
		maxBytes = len(start)
	}

	cr := &countingReader{r: bytes.NewReader(start[:maxBytes])}

	dec, err := gomp3.NewDecoder(cr)
	if err != nil {
		return ProbeResult{}, err
	}

	chunk := make([]byte, 4096)

	if _, err := dec.Read(chunk); err != nil && err != io.EOF {
		return ProbeResult{}, err
	}

	return ProbeResult{Consumed: cr.n}, nil
}

// countingReader tracks the cumulative bytes go-mp3 has pulled from the
// candidate window, which approximates the source bytes the one decoded
// frame actually consumed.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n

	return n, err
}
