// Package wire holds the byte-order aware fixed-width helpers shared by the
// encoder and the decoder.
package wire

import (
	"encoding/binary"
	"math"
)

// Order is a byte order that can both append and read.
type Order interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// OrderOf returns binary.BigEndian when big is set and binary.LittleEndian
// otherwise.
func OrderOf(big bool) Order {
	if big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func AppendU16(dst []byte, o Order, v uint16) []byte { return o.AppendUint16(dst, v) }
func AppendU32(dst []byte, o Order, v uint32) []byte { return o.AppendUint32(dst, v) }
func AppendU64(dst []byte, o Order, v uint64) []byte { return o.AppendUint64(dst, v) }

func AppendF32(dst []byte, o Order, v float32) []byte {
	return o.AppendUint32(dst, math.Float32bits(v))
}

func AppendF64(dst []byte, o Order, v float64) []byte {
	return o.AppendUint64(dst, math.Float64bits(v))
}

// AppendU128 writes the 16-byte value hi:lo. Little-endian puts the low
// half first.
func AppendU128(dst []byte, o Order, hi, lo uint64) []byte {
	if o == binary.BigEndian {
		dst = o.AppendUint64(dst, hi)
		return o.AppendUint64(dst, lo)
	}
	dst = o.AppendUint64(dst, lo)
	return o.AppendUint64(dst, hi)
}

// U128 reads a 16-byte value from b, which must hold at least 16 bytes.
func U128(b []byte, o Order) (hi, lo uint64) {
	if o == binary.BigEndian {
		return o.Uint64(b[:8]), o.Uint64(b[8:16])
	}
	return o.Uint64(b[8:16]), o.Uint64(b[:8])
}

func F32(b []byte, o Order) float32 { return math.Float32frombits(o.Uint32(b)) }
func F64(b []byte, o Order) float64 { return math.Float64frombits(o.Uint64(b)) }
