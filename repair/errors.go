package repair

import "errors"

var (
	// ErrNoMoov is returned when the reference file has no moov box.
	ErrNoMoov = errors.New("repair: reference file has no moov box")

	// ErrNoMvhd is returned when the reference moov has no mvhd box.
	ErrNoMvhd = errors.New("repair: reference moov has no mvhd box")

	// errBadHeaderType is returned by the lenient damaged-file header scan
	// when a four-character type isn't printable ASCII.
	errBadHeaderType = errors.New("repair: box type not ASCII")

	// errMissingCodecConfig is returned when a track's stsd entry is
	// missing the codec-specific configuration box (avcC, an ALAC magic
	// cookie) its oracle needs to be constructed.
	errMissingCodecConfig = errors.New("repair: missing codec configuration in stsd")
)
