package oracle

import "errors"

// errShortWindow is returned when a probe is handed fewer bytes than it
// needs to make any determination at all.
var errShortWindow = errors.New("oracle: candidate window too short to probe")

// errNoOracleForCodec is returned by Multi when no sub-oracle was
// registered for the requested codec.
var errNoOracleForCodec = errors.New("oracle: no oracle registered for codec")
