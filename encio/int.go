package encio

import "math"

// LengthSize is the encoded size of a sequence length prefix.
const LengthSize = 4

// MaxLength is the largest sequence length that can be encoded.
const MaxLength = math.MaxUint32

// EncodeUint32 writes a uint32 to buff.
func EncodeUint32(buff []byte, n uint32) {
	_ = buff[3]
	buff[0] = uint8(n)
	buff[1] = uint8(n >> 8)
	buff[2] = uint8(n >> 16)
	buff[3] = uint8(n >> 24)
}

// DecodeUint32 reads a uint32 from buff.
func DecodeUint32(buff []byte) uint32 {
	_ = buff[3]
	n := uint32(buff[0])
	n |= uint32(buff[1]) << 8
	n |= uint32(buff[2]) << 16
	n |= uint32(buff[3]) << 24
	return n
}

// AppendUint32 appends a uint32 to out.
func AppendUint32(out []byte, n uint32) []byte {
	return append(out, uint8(n), uint8(n>>8), uint8(n>>16), uint8(n>>24))
}
