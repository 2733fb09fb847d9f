// Package gt02 decodes the GT02 tracker's ASCII, parenthesis-framed
// protocol: "(" + imei(12) + protocol(4) + content + ")".
package gt02

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

const (
	// Port is the fixed TCP port GT02 devices connect to.
	Port = 5003

	start = '('
	end   = ')'

	opLogin    = "BP05"
	opLocation = "BR00"

	minFrameSize = 18 // start(1) + imei(12) + protocol(4) + end(1)

	// fixedVoltageLevel is what the source reports for every GT02 frame;
	// the device never sends a real battery-level reading.
	fixedVoltageLevel = 6
)

var imeiPattern = regexp.MustCompile(`^[0-9]+$`)

// Codec implements protocol.Codec for the GT02 device family.
type Codec struct{}

// New returns a GT02 codec.
func New() *Codec { return &Codec{} }

// Name implements protocol.Codec.
func (c *Codec) Name() string { return "gt02" }

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
		// GT02 never acknowledges a login on the wire.

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
	loc.VoltageInput = calculateVoltage(ioState[5:])
	loc.TotalDistance = parseHexDistance(body[54:62])

	st := &packet.Status{Events: make(map[string]bool), VoltageLevel: fixedVoltageLevel}
	st.Charge = ioState[0] == '0'
	st.Ignition = ioState[1] == '1'

	return loc, st, nil
}

func parseHexDistance(hexVal string) float64 {
	v, err := strconv.ParseUint(hexVal, 16, 64)
	if err != nil {
		return 0
	}
	return float64(v) / 1000
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

func calculateVoltage(bits string) float64 {
	if len(bits) < 3 {
		return 0
	}
	hi, _ := strconv.ParseUint(bits[0:1], 16, 8)
	mid, _ := strconv.ParseUint(bits[1:2], 16, 8)
	lo, _ := strconv.ParseUint(bits[2:3], 16, 8)
	return float64(hi*256+mid*16+lo) / 100
}
