package codec

import "strconv"

// BitStringFromHex parses a hex string (as sent by the ASCII-ish MT05
// status field) and renders it as a zero-padded binary string with 4 bits
// per input hex digit, mirroring how the source reference treats a status
// word as a flat bit vector regardless of byte boundaries.
func BitStringFromHex(hexStr string) string {
	if hexStr == "" {
		return ""
	}
	v, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return ""
	}
	s := strconv.FormatUint(v, 2)
	want := 4 * len(hexStr)
	for len(s) < want {
		s = "0" + s
	}
	return s
}
