// Package sevenzio implements the low-level byte-level primitives of the 7z
// container format: the variable-length number encoding used throughout the
// end header, and a streaming CRC-32 helper shared by the container writer
// and reader.
package sevenzio

import (
	"io"

	"sevenz-forensic/internal/errz"
)

// EncodeNumber encodes v using the 7z variable-length scheme: the first
// byte's leading 1-bits (before the first 0-bit) count the number of
// following little-endian bytes; the remaining low bits of the first byte
// hold the high bits of the value. The encoding is always the minimal-length
// one for v.
func EncodeNumber(v uint64) []byte {
	var firstByte byte
	var mask byte = 0x80
	i := 0
	for ; i < 8; i++ {
		if v < (uint64(1) << uint(7*(i+1))) {
			firstByte |= byte(v >> uint(8*i))
			break
		}
		firstByte |= mask
		mask >>= 1
	}

	out := make([]byte, 1+i)
	out[0] = firstByte
	for j := 0; j < i; j++ {
		out[1+j] = byte(v >> uint(8*j))
	}
	return out
}

// DecodeNumber reads one 7z variable-length number from r.
func DecodeNumber(r io.Reader) (uint64, error) {
	var firstByteBuf [1]byte
	if _, err := io.ReadFull(r, firstByteBuf[:]); err != nil {
		return 0, errz.NewArchiveError("number: read first byte", err)
	}
	first := firstByteBuf[0]

	var mask byte = 0x80
	k := 0
	for ; k < 8; k++ {
		if first&mask == 0 {
			break
		}
		mask >>= 1
	}

	extra := make([]byte, k)
	if k > 0 {
		if _, err := io.ReadFull(r, extra); err != nil {
			return 0, errz.Wrap(errz.ErrMalformedNumber, "number: short read of extra bytes")
		}
	}

	var value uint64
	for i := 0; i < k; i++ {
		value |= uint64(extra[i]) << uint(8*i)
	}

	if k < 8 {
		highBitsMask := byte(0xFF) >> uint(k+1)
		high := uint64(first & highBitsMask)
		value |= high << uint(8*k)
	}

	return value, nil
}
