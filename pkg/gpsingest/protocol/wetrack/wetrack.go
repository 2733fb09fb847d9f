// Package wetrack decodes the WeTrack tracker's binary frame protocol.
// Framing matches ET300, but WeTrack computes a fresh CRC-signed
// acknowledgement for every login and status frame instead of echoing.
package wetrack

import (
	"encoding/hex"
	"regexp"

	"github.com/quikmile/gpsingest/internal/codec"
	"github.com/quikmile/gpsingest/internal/normalize"
	"github.com/quikmile/gpsingest/pkg/gpsingest/crc"
	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

const (
	// Port is the fixed TCP port WeTrack devices connect to.
	Port = 5004

	opLogin    = 0x01
	opLocation = 0x12
	opStatus   = 0x13
	opAlarm    = 0x16

	startHigh = 0x78
	startLow  = 0x78
	stopHigh  = 0x0D
	stopLow   = 0x0A

	minFrameSize = 10

	alarmStatusOffset = 27
)

var imeiPattern = regexp.MustCompile(`^[0-9]+$`)

// Codec implements protocol.Codec for the WeTrack device family.
type Codec struct{}

// New returns a WeTrack codec.
func New() *Codec { return &Codec{} }

// Name implements protocol.Codec.
func (c *Codec) Name() string { return "wetrack" }

// Port implements protocol.Codec.
func (c *Codec) Port() int { return Port }

// Decode implements protocol.Codec.
func (c *Codec) Decode(data []byte, _ protocol.Hint) (*packet.Packet, error) {
	if len(data) < minFrameSize {
		return nil, packet.NewDecodeError(c.Name(), 0, "frame shorter than minimum size", packet.ErrInsufficientData)
	}
	if data[0] != startHigh || data[1] != startLow {
		return nil, packet.NewDecodeError(c.Name(), 0, "bad start marker", packet.ErrInvalidStartMarker)
	}
	if data[len(data)-2] != stopHigh || data[len(data)-1] != stopLow {
		return nil, packet.NewDecodeError(c.Name(), len(data)-2, "bad stop marker", packet.ErrInvalidStopMarker)
	}

	length := data[2]
	if int(length) != len(data)-4 {
		return nil, packet.NewDecodeError(c.Name(), 2, "length field does not match frame size", packet.ErrMalformedFrame)
	}

	opcode := data[3]
	content := data[4 : len(data)-6]
	serialBytes := data[len(data)-6 : len(data)-4]
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
		pkt.AckBytes = computeResponse(opcode, serialBytes)

	case opStatus:
		pkt.Kind = packet.KindStatus
		pkt.Status = decodeStatus(content)
		pkt.AckBytes = computeResponse(opcode, serialBytes)

	case opLocation:
		pkt.Kind = packet.KindLocation
		pkt.Location = decodeLocation(content)

	case opAlarm:
		pkt.Kind = packet.KindAlarm
		pkt.Location = decodeLocation(content)
		if len(content) > alarmStatusOffset {
			pkt.Status = decodeStatus(content[alarmStatusOffset:])
		}

	default:
		pkt.Kind = packet.KindUnknown
	}

	return pkt, nil
}

// computeResponse builds the '7878 05 OP SERIAL CRC 0D0A' acknowledgement,
// recomputing the CRC over the response's own header rather than echoing
// the inbound frame's checksum.
func computeResponse(opcode byte, serialBytes []byte) []byte {
	header := []byte{0x05, opcode, serialBytes[0], serialBytes[1]}
	sum := crc.Checksum(header)
	ack := make([]byte, 0, 10)
	ack = append(ack, 0x78, 0x78)
	ack = append(ack, header...)
	ack = append(ack, codec.WriteUint16BE(sum)...)
	ack = append(ack, 0x0D, 0x0A)
	return ack
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

func decodeLocation(content []byte) *packet.Location {
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
		DeviceTime:  t,
		Lat:         calculateLatLng(latRaw),
		Lng:         calculateLatLng(lngRaw),
		Speed:       speed,
		Satellites:  satellites,
		GPSAccuracy: "real-time",
	}
	if courseBits[2] == '1' {
		loc.GPSAccuracy = "differential positioning"
	}
	if courseBits[3] == '1' {
		loc.GPSTracking = true
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

	st := &packet.Status{Events: make(map[string]bool), Engine: true}
	if bits[0] == '1' {
		st.Engine = false
	}
	if bits[1] == '1' {
		st.GPSTracking = true
	}
	if key, status, ok := normalize.AlarmFromTrigram(bits[2:5]); ok {
		st.Events[key] = true
		st.EventStatus = status
	}
	if bits[5] == '1' {
		st.Charge = true
	} else {
		// Two distinct causes (explicit power-cut and charge-false) collapse
		// into the same TEMPERED event code; preserved as observed, not reconciled.
		st.EventStatus = "TEMPERED"
	}
	if bits[6] == '1' {
		st.Ignition = true
	}
	if bits[7] == '1' {
		st.Activated = true
	}
	st.VoltageLevel = int(content[1])
	st.GSMSignalStrength = int(content[2])
	if key, ok := normalize.AlarmFromCode(content[3]); ok {
		st.Events[key] = true
	}
	if lang, ok := normalize.Language(content[4]); ok {
		st.Language = lang
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
