package gt06

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quikmile/gpsingest/pkg/gpsingest/crc"
	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

// buildShort assembles a short (0x7878) GT06 frame from an opcode, content
// payload and serial number, computing the length byte and CRC the same way
// the device firmware does.
func buildShort(opcode byte, content []byte, serial uint16) []byte {
	frame := []byte{shortStartHigh, shortStartLow, byte(len(content) + 6), opcode}
	frame = append(frame, content...)
	serialBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(serialBytes, serial)
	frame = append(frame, serialBytes...)

	crcInput := frame[2:]
	crcBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(crcBytes, crc.Checksum(crcInput))
	frame = append(frame, crcBytes...)
	frame = append(frame, stopHigh, stopLow)
	return frame
}

func loginContent(imei string) []byte {
	h := "0" + imei
	content := make([]byte, len(h)/2)
	for i := 0; i < len(content); i++ {
		hi := hexNibble(h[i*2])
		lo := hexNibble(h[i*2+1])
		content[i] = hi<<4 | lo
	}
	return content
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func locationContent(latRaw, lngRaw uint32, satellites int, speed byte, differential, south, east bool, course int) []byte {
	content := make([]byte, 18)
	copy(content[0:6], []byte{0x1a, 0x07, 0x1f, 0x0c, 0x00, 0x00}) // 2026-07-31 12:00:00
	content[6] = byte(satellites) & 0x0F
	binary.BigEndian.PutUint32(content[7:11], latRaw)
	binary.BigEndian.PutUint32(content[11:15], lngRaw)
	content[15] = speed

	bits := uint16(0)
	if differential {
		bits |= 1 << 13 // bit index 2 from MSB
	}
	if south {
		bits |= 1 << 11 // bit index 4 from MSB
	}
	if east {
		bits |= 1 << 10 // bit index 5 from MSB
	}
	bits |= uint16(course) & 0x03FF // low 10 bits, bit indices 6..15
	binary.BigEndian.PutUint16(content[16:18], bits)
	return content
}

func statusContent(ignition, charge, gpsTracking bool, voltageLevel, gsmSignal byte, language byte) []byte {
	var b byte
	if ignition {
		b |= 1 << 6 // bit index 1 from MSB
	}
	if charge {
		b |= 1 << 5 // bit index 2 from MSB
	}
	if gpsTracking {
		b |= 1 << 1 // bit index 6 from MSB
	}
	return []byte{b, voltageLevel, gsmSignal, 0x00, language}
}

func TestCodec_Decode_Login(t *testing.T) {
	c := New()
	data := buildShort(opLogin, loginContent("123456789012345"), 7)

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	assert.Equal(t, packet.KindLogin, pkt.Kind)
	assert.Equal(t, "123456789012345", pkt.IMEI)
	assert.Equal(t, uint32(7), pkt.SerialNo)
	assert.Equal(t, canned, pkt.AckBytes)
}

func TestCodec_Decode_Location(t *testing.T) {
	c := New()
	content := locationContent(40500000, 205200000, 8, 0, false, false, true, 180)
	data := buildShort(opLocation, content, 2)

	pkt, err := c.Decode(data, protocol.Hint{LastGPSTracking: true})
	require.NoError(t, err)
	require.NotNil(t, pkt.Location)
	assert.InDelta(t, 22.5, pkt.Location.Lat, 0.001)
	assert.InDelta(t, 114.0, pkt.Location.Lng, 0.001)
	assert.Equal(t, 8, pkt.Location.Satellites)
	assert.InDelta(t, 180, pkt.Location.Course, 0.5)
	// Location frames inherit gps_tracking from the hint, not their own bits.
	assert.True(t, pkt.Location.GPSTracking)
}

func TestCodec_Decode_Location_SouthWestNegated(t *testing.T) {
	c := New()
	content := locationContent(40500000, 205200000, 8, 0, false, true, false, 0)
	data := buildShort(opLocation, content, 3)

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	require.NotNil(t, pkt.Location)
	assert.Less(t, pkt.Location.Lat, 0.0)
	assert.Less(t, pkt.Location.Lng, 0.0)
}

func TestCodec_Decode_Status(t *testing.T) {
	c := New()
	content := statusContent(true, true, true, 4, 3, 0x02)
	data := buildShort(opStatus, content, 9)

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	assert.Equal(t, packet.KindStatus, pkt.Kind)
	require.NotNil(t, pkt.Status)
	assert.True(t, pkt.Status.Ignition)
	assert.True(t, pkt.Status.Charge)
	assert.True(t, pkt.Status.GPSTracking)
	assert.Equal(t, 4, pkt.Status.VoltageLevel)
	assert.Equal(t, 3, pkt.Status.GSMSignalStrength)
	assert.Equal(t, "English", pkt.Status.Language)
	assert.Equal(t, canned, pkt.AckBytes)
	assert.Equal(t, statusAckDelay, pkt.AckDelay)
}

func TestCodec_Decode_Alarm(t *testing.T) {
	c := New()
	loc := locationContent(40500000, 205200000, 8, 0, false, false, true, 180)
	content := make([]byte, alarmStatusOffset+5)
	copy(content, loc)
	copy(content[alarmStatusOffset:], statusContent(false, true, true, 4, 3, 0x02))
	data := buildShort(opAlarm, content, 11)

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	assert.Equal(t, packet.KindAlarm, pkt.Kind)
	require.NotNil(t, pkt.Location)
	require.NotNil(t, pkt.Status)
	assert.True(t, pkt.Status.Charge)
}

func TestCodec_Decode_Analog(t *testing.T) {
	c := New()
	content := []byte{0x00, 0x09, 0x60} // subProtocol 0, voltage raw 0x0960 = 2400 -> 24.00V
	data := buildShort(opAnalog, content, 5)

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	assert.Equal(t, packet.KindAnalog, pkt.Kind)
	require.NotNil(t, pkt.Status)
	require.NotNil(t, pkt.Status.ExternalVoltage)
	assert.InDelta(t, 24.0, *pkt.Status.ExternalVoltage, 0.001)
	assert.True(t, pkt.Status.Events["analog"])
}

func TestCodec_Decode_LongFrame(t *testing.T) {
	c := New()
	content := statusContent(true, false, false, 2, 1, 0x01)
	// Long frames carry a 2-byte length plus a reserved byte before the
	// opcode, so the opcode lands at index 5 rather than index 3.
	lengthBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(lengthBytes, uint16(len(content)+8))
	frame := []byte{longStartHigh, longStartLow}
	frame = append(frame, lengthBytes...)
	frame = append(frame, 0x00, opStatus)
	frame = append(frame, content...)
	serialBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(serialBytes, 1)
	frame = append(frame, serialBytes...)

	crcInput := frame[2:]
	crcBytes := make([]byte, 2)
	binary.BigEndian.PutUint16(crcBytes, crc.Checksum(crcInput))
	frame = append(frame, crcBytes...)
	frame = append(frame, stopHigh, stopLow)

	pkt, err := c.Decode(frame, protocol.Hint{})
	require.NoError(t, err)
	assert.Equal(t, packet.KindStatus, pkt.Kind)
}

func TestCodec_Decode_RejectsBadStopMarker(t *testing.T) {
	c := New()
	data := buildShort(opLogin, loginContent("123456789012345"), 1)
	data[len(data)-1] = 0x00

	_, err := c.Decode(data, protocol.Hint{})
	require.Error(t, err)
}

func TestCodec_Decode_RejectsBadCRC(t *testing.T) {
	c := New()
	data := buildShort(opLogin, loginContent("123456789012345"), 1)
	data[len(data)-3] ^= 0xFF

	_, err := c.Decode(data, protocol.Hint{})
	require.Error(t, err)
	assert.True(t, packet.IsInvalidCRC(err))
}

func TestCodec_Decode_RejectsLengthMismatch(t *testing.T) {
	c := New()
	data := buildShort(opLogin, loginContent("123456789012345"), 1)
	data[2]++

	_, err := c.Decode(data, protocol.Hint{})
	require.Error(t, err)
}

func TestCodec_Decode_RejectsShortFrame(t *testing.T) {
	c := New()
	_, err := c.Decode([]byte{0x78, 0x78, 0x00}, protocol.Hint{})
	require.Error(t, err)
}

func TestCodec_NameAndPort(t *testing.T) {
	c := New()
	assert.Equal(t, "gt06", c.Name())
	assert.Equal(t, 5005, c.Port())
}
