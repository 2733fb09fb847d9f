package codec

import "encoding/binary"

// Binary encoding/decoding helpers shared by the device protocol decoders.

// ReadUint16BE reads a big-endian uint16 from 2 bytes
func ReadUint16BE(data []byte) uint16 {
	if len(data) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(data)
}

// ReadUint32BE reads a big-endian uint32 from 4 bytes
func ReadUint32BE(data []byte) uint32 {
	if len(data) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(data)
}

// WriteUint16BE writes a uint16 as big-endian to 2 bytes
func WriteUint16BE(value uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, value)
	return buf
}
