// Package mt05 decodes the MT05 tracker's protocol: a binary frame header
// wrapping an ASCII, pipe-and-comma-delimited location body.
package mt05

import (
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"github.com/quikmile/gpsingest/internal/codec"
	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

const (
	// Port is the fixed TCP port MT05 devices connect to.
	Port = 5002

	opLogin    = "5000"
	opLocation = "9955"

	minFrameSize = 13 + 4 // header through opcode, plus trailing end bytes
)

var imeiPattern = regexp.MustCompile(`^[0-9]+$`)

// Codec implements protocol.Codec for the MT05 device family.
type Codec struct{}

// New returns an MT05 codec.
func New() *Codec { return &Codec{} }

// Name implements protocol.Codec.
func (c *Codec) Name() string { return "mt05" }

// Port implements protocol.Codec.
func (c *Codec) Port() int { return Port }

// Decode implements protocol.Codec.
func (c *Codec) Decode(data []byte, _ protocol.Hint) (*packet.Packet, error) {
	if len(data) < minFrameSize {
		return nil, packet.NewDecodeError(c.Name(), 0, "frame shorter than minimum size", packet.ErrInsufficientData)
	}

	imeiBytes := data[4:11]
	imei := hex.EncodeToString(imeiBytes)
	if !imeiPattern.MatchString(imei) {
		return nil, packet.NewDecodeError(c.Name(), 4, "non-numeric IMEI field", packet.ErrMalformedFrame)
	}

	opcode := hex.EncodeToString(data[11:13])
	content := data[13 : len(data)-4]
	endBytes := data[len(data)-4:]

	pkt := &packet.Packet{
		Protocol: c.Name(),
		Opcode:   opcode,
		IMEI:     imei,
		Raw:      data,
	}

	switch opcode {
	case opLogin:
		pkt.Kind = packet.KindLogin
		ack := make([]byte, 0, 17)
		ack = append(ack, 0x40, 0x40, 0x00, 0x12)
		ack = append(ack, imeiBytes...)
		ack = append(ack, 0x40, 0x00)
		ack = append(ack, endBytes...)
		pkt.AckBytes = ack

	case opLocation:
		pkt.Kind = packet.KindLocation
		pkt.Location, pkt.Status = decodeLocation(string(content))

	default:
		pkt.Kind = packet.KindUnknown
	}

	return pkt, nil
}

func decodeLocation(body string) (*packet.Location, *packet.Status) {
	sections := strings.Split(body, "|")
	if len(sections) == 0 {
		return nil, nil
	}
	gprmc := strings.Split(sections[0], ",")
	if len(gprmc) < 9 || gprmc[1] != "A" {
		return &packet.Location{GPSTracking: false}, nil
	}

	loc := &packet.Location{GPSTracking: true}
	var st *packet.Status

	if len(sections) > 1 {
		if f := splitFields(sections[1]); len(f) > 0 {
			loc.HDOP = parseFloat(f[0])
		}
	}
	if len(sections) > 2 {
		if f := splitFields(sections[2]); len(f) > 0 {
			loc.Altitude = parseFloat(f[0])
		}
	}
	if len(sections) > 3 {
		if f := splitFields(sections[3]); len(f) > 0 {
			st = statusFromBits(f[0])
		}
	}
	if len(sections) > 5 {
		if f := splitFields(sections[5]); len(f) > 0 {
			loc.Odometer = parseFloat(f[0])
		}
	}
	if len(sections) > 4 {
		f := splitFields(sections[4])
		if len(f) > 1 {
			loc.VoltageInput = calculateVoltage(f[1]) / 4
		}
		if len(f) > 0 {
			loc.GPSBatteryLevel = calculateVoltage(f[0])
		}
	}

	loc.Lat = calculateLatLng(gprmc[2][:2], gprmc[2][2:])
	if gprmc[3] == "S" {
		loc.Lat = -loc.Lat
	}
	loc.Lng = calculateLatLng(gprmc[4][:3], gprmc[4][3:])
	if gprmc[5] == "W" {
		loc.Lng = -loc.Lng
	}
	loc.Speed = parseFloat(gprmc[6]) * 1.852
	loc.Course = parseFloat(gprmc[7])

	return loc, st
}

// statusFromBits extracts MT05's ENGINE_CUT/SOS/TEMPERED/ignition flags
// from the status-bits hex field.
func statusFromBits(hexWord string) *packet.Status {
	bits := codec.BitStringFromHex(hexWord)
	st := &packet.Status{Events: make(map[string]bool), Charge: true}
	get := func(i int) byte {
		if i < len(bits) {
			return bits[i]
		}
		return '0'
	}
	if get(0) == '1' {
		st.Events["immobilizer"] = true
		st.EventStatus = "ENGINE_CUT"
	}
	if get(1) == '1' {
		st.Events["alarm"] = true
	}
	if get(8) == '1' {
		st.Events["sos"] = true
		st.EventStatus = "SOS"
	}
	if get(9) == '1' {
		st.Events["power_cut"] = true
		st.Charge = false
		st.EventStatus = "TEMPERED"
	}
	if get(12) == '1' {
		st.Ignition = true
	}
	return st
}

func splitFields(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func calculateLatLng(degree, minutes string) float64 {
	d := parseFloat(degree)
	m := parseFloat(minutes)
	return d + m/60
}

func calculateVoltage(hexVal string) float64 {
	v, err := strconv.ParseUint(hexVal, 16, 64)
	if err != nil {
		return 0
	}
	return float64(v*6) / 1024
}
