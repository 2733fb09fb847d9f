package gt02

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

const testIMEI = "123456789012"

// locationBody builds a fixed-offset GT02 location body string. Every field
// width matches the codec's byte-offset slicing exactly.
func locationBody(ns, ew, ioState string) string {
	return "260731" + // date YYMMDD
		"A" + // gps fix flag
		"22" + "30.0000" + ns + // lat degree(2) + minutes(7) + N/S
		"114" + "00.0000" + ew + // lng degree(3) + minutes(7) + E/W
		"040.0" + // speed
		"120000" + // time HHMMSS
		"180.00" + // course
		ioState + // 8 chars: charge,ignition,temp(3),voltage hex(3)
		"0" + // unused separator byte
		"00002710" // total distance hex
}

func frame(opcode, body string) []byte {
	return []byte("(" + testIMEI + opcode + body + ")")
}

func TestCodec_Decode_Login(t *testing.T) {
	c := New()
	data := frame(opLogin, "")

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	assert.Equal(t, packet.KindLogin, pkt.Kind)
	assert.Equal(t, testIMEI, pkt.IMEI)
	// GT02 never acknowledges a login on the wire.
	assert.Empty(t, pkt.AckBytes)
}

func TestCodec_Decode_Location(t *testing.T) {
	c := New()
	data := frame(opLocation, locationBody("N", "E", "010251F4"))

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	require.NotNil(t, pkt.Location)
	assert.True(t, pkt.Location.GPSTracking)
	assert.InDelta(t, 22.5, pkt.Location.Lat, 0.001)
	assert.InDelta(t, 114.0, pkt.Location.Lng, 0.001)
	assert.InDelta(t, 40.0, pkt.Location.Speed, 0.01)
	assert.InDelta(t, 180.0, pkt.Location.Course, 0.01)
	assert.Equal(t, "025", pkt.Location.Temperature)
	assert.InDelta(t, 5.0, pkt.Location.VoltageInput, 0.001)
	assert.InDelta(t, 10.0, pkt.Location.TotalDistance, 0.001)

	require.NotNil(t, pkt.Status)
	assert.True(t, pkt.Status.Charge)
	assert.True(t, pkt.Status.Ignition)
	// Every GT02 frame reports the same fixed voltage level; the device
	// never sends a real battery reading.
	assert.Equal(t, fixedVoltageLevel, pkt.Status.VoltageLevel)
}

func TestCodec_Decode_Location_SouthWestNegated(t *testing.T) {
	c := New()
	data := frame(opLocation, locationBody("S", "W", "010251F4"))

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	require.NotNil(t, pkt.Location)
	assert.Less(t, pkt.Location.Lat, 0.0)
	assert.Less(t, pkt.Location.Lng, 0.0)
}

func TestCodec_Decode_Location_ChargeOffWhenIOBitSet(t *testing.T) {
	c := New()
	data := frame(opLocation, locationBody("N", "E", "110251F4"))

	pkt, err := c.Decode(data, protocol.Hint{})
	require.NoError(t, err)
	require.NotNil(t, pkt.Status)
	assert.False(t, pkt.Status.Charge)
}

func TestCodec_Decode_RejectsShortBody(t *testing.T) {
	c := New()
	data := frame(opLocation, "2607")

	_, err := c.Decode(data, protocol.Hint{})
	require.Error(t, err)
}

func TestCodec_Decode_RejectsBadStartMarker(t *testing.T) {
	c := New()
	data := frame(opLogin, "")
	data[0] = 'X'

	_, err := c.Decode(data, protocol.Hint{})
	require.Error(t, err)
}

func TestCodec_Decode_RejectsNonNumericIMEI(t *testing.T) {
	c := New()
	data := []byte("(abcdefghijklBP05)")

	_, err := c.Decode(data, protocol.Hint{})
	require.Error(t, err)
}

func TestCodec_NameAndPort(t *testing.T) {
	c := New()
	assert.Equal(t, "gt02", c.Name())
	assert.Equal(t, 5003, c.Port())
}
