// Package tk103 decodes the TK103 tracker's ASCII, parenthesis-framed
// protocol. Framing matches GT02, but TK103 acknowledges login on the wire
// and expects two more session-scoped acks keyed to frame position rather
// than opcode, which the owning session supplies via FrameIndexAck.
package tk103

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

const (
	// Port is the fixed TCP port TK103 devices connect to.
	Port = 5001

	start = '('
	end   = ')'

	opLogin    = "BP05"
	opLocation = "BR00"

	minFrameSize = 18

	fixedVoltageLevel = 6
)

var imeiPattern = regexp.MustCompile(`^[0-9]+$`)

// Codec implements protocol.Codec for the TK103 device family.
type Codec struct{}

// New returns a TK103 codec.
func New() *Codec { return &Codec{} }

// Name implements protocol.Codec.
func (c *Codec) Name() string { return "tk103" }

// Port implements protocol.Codec.
func (c *Codec) Port() int { return Port }

// Decode implements protocol.Codec.
func (c *Codec) Decode(data []byte, _ protocol.Hint) (*packet.Packet, error) {
	if len(data) < minFrameSize {
		return nil, packet.NewDecodeError(c.Name(), 0, "frame shorter than minimum size", packet.ErrInsufficientData)
	}
	if data[0] != start {
		return nil, packet.NewDecodeError(c.Name(), 0, "bad start marker", packet.ErrInvalidStartMarker)
	}
	if data[len(data)-1] != end {
		return nil, packet.NewDecodeError(c.Name(), len(data)-1, "bad stop marker", packet.ErrInvalidStopMarker)
	}

	s := string(data)
	imei := s[1:13]
	opcode := s[13:17]
	content := s[17 : len(s)-1]

	if !imeiPattern.MatchString(imei) {
		return nil, packet.NewDecodeError(c.Name(), 1, "non-numeric IMEI field", packet.ErrMalformedFrame)
	}

	pkt := &packet.Packet{
		Protocol: c.Name(),
		Opcode:   opcode,
		IMEI:     imei,
		Raw:      data,
	}

	switch opcode {
	case opLogin:
		pkt.Kind = packet.KindLogin
		pkt.AckBytes = []byte("(" + imei + "AP05)")

	case opLocation:
		pkt.Kind = packet.KindLocation
		loc, st, err := decodeLocation(content)
		if err != nil {
			return nil, packet.NewDecodeError(c.Name(), 17, "malformed location body", err)
		}
		pkt.Location = loc
		pkt.Status = st

	default:
		pkt.Kind = packet.KindUnknown
	}

	return pkt, nil
}

// FrameIndexAck implements protocol.FrameIndexAcker.
func (c *Codec) FrameIndexAck(imei string, frameIndex int) []byte {
	return frameIndexAck(imei, frameIndex)
}

// frameIndexAck returns the extra acknowledgement TK103 expects on the
// 2nd and 3rd inbound frames of a connection, keyed purely by ordinal
// frame position rather than opcode; nil on every other frame index.
// frameIndex is zero-based, matching the owning session's frame counter.
func frameIndexAck(imei string, frameIndex int) []byte {
	switch frameIndex {
	case 1:
		return []byte("(" + imei + "AR05000A)")
	case 2:
		return []byte("(" + imei + "AR06003C)")
	default:
		return nil
	}
}

func decodeLocation(body string) (*packet.Location, *packet.Status, error) {
	if len(body) < 62 {
		return nil, nil, packet.ErrInsufficientData
	}

	loc := &packet.Location{GPSAccuracy: "real-time"}

	lat, err := calculateLatLng(body[7:9], body[9:16])
	if err != nil {
		return nil, nil, err
	}
	loc.Lat = lat
	if body[16] == 'S' {
		loc.Lat = -loc.Lat
	}

	lng, err := calculateLatLng(body[17:20], body[20:27])
	if err != nil {
		return nil, nil, err
	}
	loc.Lng = lng
	if body[27] == 'W' {
		loc.Lng = -loc.Lng
	}

	loc.Speed = parseFloat(body[28:33])
	loc.Course = parseFloat(body[39:45])
	loc.GPSTracking = body[6] == 'A'

	t, err := time.Parse("2006-01-02 15:04:05",
		fmt.Sprintf("20%s-%s-%s %s:%s:%s", body[0:2], body[2:4], body[4:6], body[33:35], body[35:37], body[37:39]))
	if err == nil {
		loc.DeviceTime = t
	}

	ioState := body[45:53]
	loc.Temperature = ioState[2:5]
	loc.VoltageInputRaw = ioState[5:]
	loc.TotalDistance = parseHexDistance(body[54:62])

	st := &packet.Status{Events: make(map[string]bool), VoltageLevel: fixedVoltageLevel}
	st.Ignition = ioState[1] == '1'
	if ioState[0] == '0' {
		st.Charge = true
	} else if ioState[0] == '1' {
		st.EventStatus = "TEMPERED"
	}

	return loc, st, nil
}

func calculateLatLng(degree, minutes string) (float64, error) {
	d, err := strconv.Atoi(degree)
	if err != nil {
		return 0, packet.ErrMalformedFrame
	}
	m := parseFloat(minutes)
	return float64(d) + m/60, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseHexDistance(hexVal string) float64 {
	v, err := strconv.ParseUint(hexVal, 16, 64)
	if err != nil {
		return 0
	}
	return float64(v) / 1000
}
