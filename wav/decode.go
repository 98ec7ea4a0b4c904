// Package wav writes raw PCM as a WAV file, for the interactive
// analyzer's "export this reconstructed track" action: there's no
// standalone WAV decode path in this domain (no component ever reads a
// .wav as input), only the encode side the teacher's saprobe CLI also
// exercised.
package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/mycophonic/untrunc/pcm"
)

// wavFormatPCM and wavFormatExtensible are the WAVEFORMATEX audio format
// tags this package writes.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// wavGUIDPCM is the SubFormat GUID for PCM in WAVEFORMATEXTENSIBLE.
var wavGUIDPCM = [16]byte{
	0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x10, 0x00,
	0x80, 0x00, 0x00, 0xaa, 0x00, 0x38, 0x9b, 0x71,
}

// ErrInvalidBitDepth is returned when Encode is asked to write a bit
// depth no WAVEFORMATEX variant here supports.
var ErrInvalidBitDepth = errors.New("invalid bit depth")

// Encode writes PCM samples as a WAV file, using WAVEFORMATEXTENSIBLE
// for more than two channels or more than 16 bits, plain WAVEFORMATEX
// otherwise.
func Encode(w io.Writer, data []byte, format pcm.PCMFormat) error {
	switch format.BitDepth {
	case pcm.Depth16, pcm.Depth24, pcm.Depth32:
	default:
		return fmt.Errorf("%w: %d (must be 16, 24, or 32)", ErrInvalidBitDepth, format.BitDepth)
	}

	channels := uint16(format.Channels)     //nolint:gosec // channel counts never approach uint16 overflow
	sampleRate := uint32(format.SampleRate) //nolint:gosec // sample rates never approach uint32 overflow
	bitsPerSample := uint16(format.BitDepth)
	byteRate := sampleRate * uint32(channels) * uint32(bitsPerSample) / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := uint32(len(data)) //nolint:gosec // PCM exports never approach uint32 overflow

	if channels > 2 || bitsPerSample > 16 {
		return writeExtensible(w, data, channels, sampleRate, bitsPerSample, byteRate, blockAlign, dataSize)
	}

	return writeSimple(w, data, channels, sampleRate, bitsPerSample, byteRate, blockAlign, dataSize)
}

func writeSimple(
	w io.Writer,
	data []byte,
	channels uint16,
	sampleRate uint32,
	bitsPerSample uint16,
	byteRate uint32,
	blockAlign uint16,
	dataSize uint32,
) error {
	var header [44]byte

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], dataSize+36)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing WAV header: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing PCM data: %w", err)
	}

	return nil
}

func writeExtensible(
	w io.Writer,
	data []byte,
	channels uint16,
	sampleRate uint32,
	bitsPerSample uint16,
	byteRate uint32,
	blockAlign uint16,
	dataSize uint32,
) error {
	const fmtChunkSize = 40

	headerSize := uint32(12 + 8 + fmtChunkSize + 8)
	fileSize := headerSize + dataSize - 8

	var header [68]byte

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], fileSize)
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], fmtChunkSize)

	binary.LittleEndian.PutUint16(header[20:22], wavFormatExtensible)
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], byteRate)
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)
	binary.LittleEndian.PutUint16(header[36:38], 22)

	binary.LittleEndian.PutUint16(header[38:40], bitsPerSample)
	binary.LittleEndian.PutUint32(header[40:44], channelMask(channels))
	copy(header[44:60], wavGUIDPCM[:])

	copy(header[60:64], "data")
	binary.LittleEndian.PutUint32(header[64:68], dataSize)

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing WAV header: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing PCM data: %w", err)
	}

	return nil
}

// channelMask returns the standard WAVEFORMATEXTENSIBLE channel mask for
// common speaker configurations.
func channelMask(channels uint16) uint32 {
	switch channels {
	case 1:
		return 0x4
	case 2:
		return 0x3
	case 4:
		return 0x33
	case 6:
		return 0x3F
	case 8:
		return 0x63F
	default:
		return 0
	}
}
