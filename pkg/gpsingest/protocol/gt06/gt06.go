// Package gt06 decodes the GT06 tracker's binary frame protocol, including
// its extended (2-byte length) long-frame variant.
package gt06

import (
	"encoding/hex"
	"regexp"
	"time"

	"github.com/quikmile/gpsingest/internal/codec"
	"github.com/quikmile/gpsingest/internal/normalize"
	"github.com/quikmile/gpsingest/pkg/gpsingest/crc"
	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

const (
	// Port is the fixed TCP port GT06 devices connect to.
	Port = 5005

	opLogin    = 0x01
	opLocation = 0x12
	opStatus   = 0x13
	opAlarm    = 0x16
	opAnalog   = 0x94

	shortStartHigh = 0x78
	shortStartLow  = 0x78
	longStartHigh  = 0x79
	longStartLow   = 0x79
	stopHigh       = 0x0D
	stopLow        = 0x0A

	minShortFrame = 10

	alarmStatusOffset = 26

	// statusAckDelay is how long after a status frame the device expects
	// its acknowledgement; observed firmware behavior, not computed.
	statusAckDelay = 10 * time.Second
)

// canned is the fixed acknowledgement byte sequence GT06 expects for both
// login and (delayed) status frames; it is a constant, not a per-frame CRC
// echo, per the device's observed behavior.
var canned = []byte{0x78, 0x78, 0x05, 0x01, 0x00, 0x05, 0x9F, 0xF8, 0x0D, 0x0A}

var imeiPattern = regexp.MustCompile(`^[0-9]+$`)

// Codec implements protocol.Codec for the GT06 device family.
type Codec struct{}

// New returns a GT06 codec.
func New() *Codec { return &Codec{} }

// Name implements protocol.Codec.
func (c *Codec) Name() string { return "gt06" }

// Port implements protocol.Codec.
func (c *Codec) Port() int { return Port }

// Decode implements protocol.Codec.
func (c *Codec) Decode(data []byte, hint protocol.Hint) (*packet.Packet, error) {
	if len(data) < minShortFrame {
		return nil, packet.NewDecodeError(c.Name(), 0, "frame shorter than minimum size", packet.ErrInsufficientData)
	}
	if data[len(data)-2] != stopHigh || data[len(data)-1] != stopLow {
		return nil, packet.NewDecodeError(c.Name(), len(data)-2, "bad stop marker", packet.ErrInvalidStopMarker)
	}

	var opcode byte
	var content []byte
	var serialBytes []byte

	switch {
	case data[0] == shortStartHigh && data[1] == shortStartLow:
		length := data[2]
		if int(length) != len(data)-4 {
			return nil, packet.NewDecodeError(c.Name(), 2, "length field does not match frame size", packet.ErrMalformedFrame)
		}
		opcode = data[3]
		content = data[4 : len(data)-6]
		serialBytes = data[len(data)-6 : len(data)-4]
	case data[0] == longStartHigh && data[1] == longStartLow:
		if len(data) < 12 {
			return nil, packet.NewDecodeError(c.Name(), 0, "long frame shorter than minimum size", packet.ErrInsufficientData)
		}
		length := codec.ReadUint16BE(data[2:4])
		if int(length) != len(data)-4 {
			return nil, packet.NewDecodeError(c.Name(), 2, "length field does not match frame size", packet.ErrMalformedFrame)
		}
		opcode = data[5]
		content = data[6 : len(data)-6]
		serialBytes = data[len(data)-6 : len(data)-4]
	default:
		return nil, packet.NewDecodeError(c.Name(), 0, "bad start marker", packet.ErrInvalidStartMarker)
	}

	crcBytes := data[len(data)-4 : len(data)-2]
	crcInput := data[2 : len(data)-4]
	wantCRC := codec.ReadUint16BE(crcBytes)
	gotCRC := crc.Checksum(crcInput)
	if gotCRC != wantCRC {
		return nil, packet.NewDecodeError(c.Name(), len(data)-4, "CRC mismatch",
			&packet.CRCError{Expected: wantCRC, Received: gotCRC, PacketSize: len(data)})
	}

	serialNo := codec.ReadUint16BE(serialBytes)

	pkt := &packet.Packet{
		Protocol:    c.Name(),
		Opcode:      hex.EncodeToString([]byte{opcode}),
		SerialNo:    uint32(serialNo),
		HasSerialNo: true,
		Raw:         data,
	}

	switch opcode {
	case opLogin:
		pkt.Kind = packet.KindLogin
		imei, err := decodeLoginIMEI(content)
		if err != nil {
			return nil, packet.NewDecodeError(c.Name(), 4, "invalid login payload", err)
		}
		pkt.IMEI = imei
		pkt.AckBytes = canned

	case opStatus:
		pkt.Kind = packet.KindStatus
		pkt.Status = decodeStatus(content)
		pkt.AckBytes = canned
		pkt.AckDelay = statusAckDelay

	case opLocation:
		pkt.Kind = packet.KindLocation
		pkt.Location = decodeLocation(content, hint)

	case opAlarm:
		pkt.Kind = packet.KindAlarm
		pkt.Location = decodeLocation(content, hint)
		if len(content) > alarmStatusOffset {
			pkt.Status = decodeStatus(content[alarmStatusOffset:])
		}

	case opAnalog:
		pkt.Kind = packet.KindAnalog
		pkt.Status = decodeAnalog(content)

	default:
		pkt.Kind = packet.KindUnknown
	}

	return pkt, nil
}

func decodeLoginIMEI(content []byte) (string, error) {
	h := hex.EncodeToString(content)
	if len(h) < 1 {
		return "", packet.ErrMalformedFrame
	}
	imei := h[1:]
	if !imeiPattern.MatchString(imei) {
		return "", packet.ErrMalformedFrame
	}
	return imei, nil
}

func decodeLocation(content []byte, hint protocol.Hint) *packet.Location {
	if len(content) < 18 {
		return nil
	}

	t, _ := codec.DecodeDateTime(content[0:6])
	satellites := int(content[6] & 0x0F)
	latRaw := codec.ReadUint32BE(content[7:11])
	lngRaw := codec.ReadUint32BE(content[11:15])
	speed := float64(content[15])
	courseBits := codec.BitStringWide(content[16:18])

	loc := &packet.Location{
		DeviceTime: t,
		Lat:        calculateLatLng(latRaw),
		Lng:        calculateLatLng(lngRaw),
		Speed:      speed,
		Satellites: satellites,
		// GT06 location frames carry the fix flag from the most recently
		// seen status frame rather than from their own course bits.
		GPSTracking: hint.LastGPSTracking,
		GPSAccuracy: "real-time",
	}
	if courseBits[2] == '1' {
		loc.GPSAccuracy = "differential positioning"
	}
	if courseBits[4] == '1' {
		loc.Lat = -loc.Lat
	}
	if courseBits[5] == '0' {
		loc.Lng = -loc.Lng
	}
	loc.Course = float64(parseBinary(courseBits[6:]))

	return loc
}

func decodeStatus(content []byte) *packet.Status {
	if len(content) < 5 {
		return nil
	}
	bits := codec.BitString(content[0])

	st := &packet.Status{Events: make(map[string]bool)}
	if bits[1] == '1' {
		st.Ignition = true
	}
	if bits[2] == '1' {
		st.Charge = true
	}
	if key, status, ok := normalize.AlarmFromTrigram(bits[3:6]); ok {
		st.Events[key] = true
		st.EventStatus = status
	}
	if bits[6] == '1' {
		st.GPSTracking = true
	}
	if bits[7] == '1' {
		st.Events["immobilizer"] = true
		st.EventStatus = "ENGINE_CUT"
	}
	st.VoltageLevel = int(content[1])
	st.GSMSignalStrength = int(content[2])
	if len(content) > 4 {
		if lang, ok := normalize.Language(content[4]); ok {
			st.Language = lang
		}
	}
	return st
}

func decodeAnalog(content []byte) *packet.Status {
	st := &packet.Status{Events: make(map[string]bool)}
	if len(content) < 3 {
		return st
	}
	subProtocol := content[0]
	if subProtocol == 0x00 {
		st.Events["analog"] = true
		voltage := float64(codec.ReadUint16BE(content[1:3])) / 100
		st.ExternalVoltage = &voltage
	}
	return st
}

func calculateLatLng(raw uint32) float64 {
	return (float64(raw) / 30000) / 60
}

func parseBinary(bits string) int {
	v := 0
	for _, c := range bits {
		v <<= 1
		if c == '1' {
			v |= 1
		}
	}
	return v
}
