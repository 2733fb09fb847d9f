package et300

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quikmile/gpsingest/pkg/gpsingest/packet"
	"github.com/quikmile/gpsingest/pkg/gpsingest/protocol"
)

func hexFrame(t *testing.T, s string) []byte {
	t.Helper()
	data, err := hex.DecodeString(s)
	require.NoError(t, err)
	return data
}

func TestCodec_Decode(t *testing.T) {
	c := New()

	t.Run("login extracts IMEI and builds echo ack", func(t *testing.T) {
		data := hexFrame(t, "78780e01012345678901234500076e050d0a")
		pkt, err := c.Decode(data, protocol.Hint{})
		require.NoError(t, err)
		assert.Equal(t, packet.KindLogin, pkt.Kind)
		assert.Equal(t, "123456789012345", pkt.IMEI)
		assert.Equal(t, uint32(7), pkt.SerialNo)
		assert.NotEmpty(t, pkt.AckBytes)
		assert.Equal(t, data[0:4], pkt.AckBytes[0:4])
	})

	t.Run("location decodes coordinates and course bits", func(t *testing.T) {
		data := hexFrame(t, "7878181218060f0a1e00080269fb200c3b1a802814b40008b1e80d0a")
		pkt, err := c.Decode(data, protocol.Hint{})
		require.NoError(t, err)
		require.NotNil(t, pkt.Location)
		assert.InDelta(t, 22.5, pkt.Location.Lat, 0.001)
		assert.InDelta(t, 114.0, pkt.Location.Lng, 0.001)
		assert.True(t, pkt.Location.GPSTracking)
		assert.InDelta(t, 180, pkt.Location.Course, 0.5)
		assert.Equal(t, 8, pkt.Location.Satellites)
	})

	t.Run("status decodes terminal bits", func(t *testing.T) {
		data := hexFrame(t, "78780b1346041400020009f7cc0d0a")
		pkt, err := c.Decode(data, protocol.Hint{})
		require.NoError(t, err)
		require.NotNil(t, pkt.Status)
		assert.True(t, pkt.Status.GPSTracking)
		assert.True(t, pkt.Status.Charge)
		assert.True(t, pkt.Status.Ignition)
		assert.Equal(t, "English", pkt.Status.Language)
	})

	t.Run("bad CRC is rejected", func(t *testing.T) {
		data := hexFrame(t, "78780e01012345678901234500076efa0d0a")
		_, err := c.Decode(data, protocol.Hint{})
		require.Error(t, err)
		assert.True(t, packet.IsInvalidCRC(err))
	})

	t.Run("short frame is rejected", func(t *testing.T) {
		_, err := c.Decode([]byte{0x78, 0x78}, protocol.Hint{})
		require.Error(t, err)
	})

	t.Run("bad start marker is rejected", func(t *testing.T) {
		data := hexFrame(t, "78780e01012345678901234500076e050d0a")
		data[0] = 0x00
		_, err := c.Decode(data, protocol.Hint{})
		require.Error(t, err)
	})
}

func TestCodec_NameAndPort(t *testing.T) {
	c := New()
	assert.Equal(t, "et300", c.Name())
	assert.Equal(t, 5000, c.Port())
}
