package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadWriteUint16BE(t *testing.T) {
	buf := WriteUint16BE(0x1234)
	assert.Equal(t, uint16(0x1234), ReadUint16BE(buf))
	assert.Equal(t, uint16(0), ReadUint16BE([]byte{0x01}))
}

func TestReadUint32BE(t *testing.T) {
	assert.Equal(t, uint32(0x01020304), ReadUint32BE([]byte{0x01, 0x02, 0x03, 0x04}))
	assert.Equal(t, uint32(0), ReadUint32BE([]byte{0x01, 0x02}))
}
