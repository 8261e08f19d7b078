package nut

// Pack reads four bytes as a big-endian two's complement int32.
func Pack(b [4]byte) int32 {
	return int32(uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]))
}

// Unpack is the inverse of Pack.
func Unpack(v int32) [4]byte {
	u := uint32(v)
	return [4]byte{byte(u >> 24), byte(u >> 16), byte(u >> 8), byte(u)}
}
