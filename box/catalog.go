package box

// classification is the compile-time table described in spec §4.2: a
// four-byte box type maps to whether it is a container, a leaf, or decided
// by content ("dual"), and whether its payload starts with a full-box
// version/flags word.
type classification struct {
	container bool
	dual      bool
	versioned bool
}

// catalog mirrors the original project's isParent/isDual/isVersioned tables
// (original_source/atom.cpp), restricted to the types the repair engine
// actually touches (spec §4.2's non-exhaustive list, widened with the
// common containers every ISO BMFF file carries).
var catalog = map[[4]byte]classification{
	fourCC("moov"): {container: true},
	fourCC("trak"): {container: true},
	fourCC("mdia"): {container: true},
	fourCC("minf"): {container: true},
	fourCC("stbl"): {container: true},
	fourCC("dinf"): {container: true},
	fourCC("edts"): {container: true},
	fourCC("mvex"): {container: true},
	fourCC("moof"): {container: true},
	fourCC("traf"): {container: true},
	fourCC("mfra"): {container: true},
	fourCC("meta"): {dual: true, versioned: true},

	// udta is always a leaf: some encoders write non-standard contents
	// under it, so parsing it as a container forest is unsafe (spec §3).
	fourCC("udta"): {},

	fourCC("ftyp"): {},
	fourCC("mdat"): {},
	fourCC("free"): {},
	fourCC("skip"): {},
	fourCC("wide"): {},

	fourCC("mvhd"): {versioned: true},
	fourCC("tkhd"): {versioned: true},
	fourCC("mdhd"): {versioned: true},
	fourCC("hdlr"): {versioned: true},
	fourCC("vmhd"): {versioned: true},
	fourCC("smhd"): {versioned: true},
	fourCC("hmhd"): {versioned: true},
	fourCC("nmhd"): {versioned: true},
	fourCC("dref"): {versioned: true},
	fourCC("stsd"): {versioned: true},
	fourCC("stts"): {versioned: true},
	fourCC("ctts"): {versioned: true},
	fourCC("cslg"): {versioned: true},
	fourCC("stss"): {versioned: true},
	fourCC("stps"): {versioned: true},
	fourCC("stsz"): {versioned: true},
	fourCC("stz2"): {versioned: true},
	fourCC("stsc"): {versioned: true},
	fourCC("stco"): {versioned: true},
	fourCC("co64"): {versioned: true},
	fourCC("elst"): {versioned: true},
}

func fourCC(s string) [4]byte {
	var t [4]byte
	copy(t[:], s)

	return t
}

// IsContainer reports whether typ's payload is a sequence of child boxes.
// udta is special-cased to false regardless of the table, per spec §3.
func IsContainer(typ [4]byte) bool {
	if typ == fourCC("udta") {
		return false
	}

	c, ok := catalog[typ]

	return ok && c.container
}

// IsDual reports whether typ's container-ness must be decided by content
// rather than by type alone.
func IsDual(typ [4]byte) bool {
	return catalog[typ].dual
}

// IsVersioned reports whether typ's payload begins with a full-box
// version(1)+flags(3) word.
func IsVersioned(typ [4]byte) bool {
	return catalog[typ].versioned
}
