// Package normalize turns decoded protocol packets into the three
// canonical outbound record shapes (event, location, status) the
// publisher hands to the bus.
package normalize

// AlarmFromTrigram maps the 3-bit alarm trigram found in a terminal-info
// byte to the event key set on Status.Events and the canonical event
// status string. The trigram bit positions differ per protocol (ET300/
// WeTrack use bits 2:5, GT06 uses bits 3:6) but the mapping itself is
// shared across all three binary protocols.
func AlarmFromTrigram(trigram string) (eventKey, eventStatus string, ok bool) {
	switch trigram {
	case "100":
		return "sos", "SOS", true
	case "011":
		return "low_battery", "LOW_BATTERY", true
	case "010":
		return "power_cut", "TEMPERED", true
	case "001":
		return "shock", "SHOCK", true
	default:
		return "", "", false
	}
}

// AlarmFromCode maps the one-byte alarm code (ET300/WeTrack status byte 3)
// to an event key. Unlike AlarmFromTrigram this only flags the event; it
// does not override EventStatus (the source never does either).
func AlarmFromCode(code byte) (eventKey string, ok bool) {
	switch code {
	case 0x01:
		return "sos", true
	case 0x02:
		return "power_cut", true
	case 0x03:
		return "shock", true
	case 0x04:
		return "fence_in", true
	case 0x05:
		return "fence_out", true
	default:
		return "", false
	}
}

// Language maps the one-byte language code to its display name.
func Language(code byte) (name string, ok bool) {
	switch code {
	case 0x01:
		return "Chinese", true
	case 0x02:
		return "English", true
	default:
		return "", false
	}
}
