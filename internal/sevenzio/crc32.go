package sevenzio

import "hash/crc32"

// CRC accumulates a streaming CRC-32 (IEEE polynomial 0xEDB88320, reflected,
// initial 0xFFFFFFFF, final XOR 0xFFFFFFFF) over one or more Write calls.
// hash/crc32's IEEE table implements this exact variant, so no third-party
// checksum library is needed here; this is the one place in the module
// where the standard library is the idiomatic choice, not a compromise.
type CRC struct {
	h uint32
}

// NewCRC returns a CRC ready to accumulate bytes.
func NewCRC() *CRC {
	return &CRC{}
}

// Write feeds p into the running checksum. Always returns len(p), nil.
func (c *CRC) Write(p []byte) (int, error) {
	c.h = crc32.Update(c.h, crc32.IEEETable, p)
	return len(p), nil
}

// Sum32 returns the checksum of all bytes written so far.
func (c *CRC) Sum32() uint32 {
	return c.h
}

// Reset clears the running checksum back to its initial state.
func (c *CRC) Reset() {
	c.h = 0
}

// Checksum computes the CRC-32 of a single byte slice in one call.
func Checksum(p []byte) uint32 {
	return crc32.ChecksumIEEE(p)
}
