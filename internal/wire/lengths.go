package wire

// Container length framing: a fixed-width unsigned integer of 1, 2, 4, 8 or
// 16 bytes in the session byte order. The 16-byte form carries a 64-bit
// value in its low half; the high half is always zero.

// FitsLen reports whether n can be represented in width bytes.
func FitsLen(width int, n uint64) bool {
	switch width {
	case 1:
		return n <= 0xFF
	case 2:
		return n <= 0xFFFF
	case 4:
		return n <= 0xFFFFFFFF
	case 8, 16:
		return true
	default:
		return false
	}
}

// AppendLen encodes n using width bytes. The caller checks FitsLen first.
func AppendLen(dst []byte, o Order, width int, n uint64) []byte {
	switch width {
	case 1:
		return append(dst, byte(n))
	case 2:
		return AppendU16(dst, o, uint16(n))
	case 4:
		return AppendU32(dst, o, uint32(n))
	case 8:
		return AppendU64(dst, o, n)
	default:
		return AppendU128(dst, o, 0, n)
	}
}

// DecodeLen decodes a length of width bytes from src, which must hold at
// least width bytes. ok is false when a 16-byte length has a non-zero high
// half.
func DecodeLen(src []byte, o Order, width int) (n uint64, ok bool) {
	switch width {
	case 1:
		return uint64(src[0]), true
	case 2:
		return uint64(o.Uint16(src)), true
	case 4:
		return uint64(o.Uint32(src)), true
	case 8:
		return o.Uint64(src), true
	default:
		hi, lo := U128(src, o)
		return lo, hi == 0
	}
}
