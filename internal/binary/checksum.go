// Package binary holds checksum helpers shared by the chunk codecs.
package binary

import "encoding/binary"

// Fletcher32 computes the Fletcher-32 checksum used by the fletcher32 chunk
// filter. The input is read as big-endian 16-bit words; an odd trailing byte
// is treated as the high byte of a final word.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32

	length := len(data)
	i := 0
	for ; i+1 < length; i += 2 {
		word := uint32(data[i])<<8 | uint32(data[i+1])
		sum1 = (sum1 + word) % 65535
		sum2 = (sum2 + sum1) % 65535
	}

	if i < length {
		word := uint32(data[i]) << 8
		sum1 = (sum1 + word) % 65535
		sum2 = (sum2 + sum1) % 65535
	}

	return (sum2 << 16) | sum1
}

// VerifyFletcher32 verifies data against an expected Fletcher-32 checksum.
func VerifyFletcher32(data []byte, expected uint32) bool {
	return Fletcher32(data) == expected
}

// AppendFletcher32 appends the little-endian checksum of data to data.
func AppendFletcher32(data []byte) []byte {
	return binary.LittleEndian.AppendUint32(data, Fletcher32(data))
}
