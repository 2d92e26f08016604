package packwire

import (
	"math/big"
	"math/bits"
	"strconv"
)

// Char is a Unicode scalar value. It is distinct from int32 so the
// reflection driver can tell characters (UTF-8, no prefix) from 32-bit
// integers.
type Char rune

// U128 is an unsigned 128-bit integer.
type U128 struct {
	Hi, Lo uint64
}

// I128 is a signed 128-bit integer in two's complement.
type I128 struct {
	Hi, Lo uint64
}

// Union marks a struct as a tagged union. Place it as a blank field:
//
//	type Shape struct {
//		_      packwire.Union `pack:"repr=u8"`
//		Circle *Circle
//		Square *Square `pack:"tag=10"`
//	}
//
// Every other field must be a pointer; exactly one is set on encode.
type Union struct{}

func U128From64(v uint64) U128 { return U128{Lo: v} }

func I128From64(v int64) I128 {
	if v < 0 {
		return I128{Hi: ^uint64(0), Lo: uint64(v)}
	}
	return I128{Lo: uint64(v)}
}

// Mask128 returns 2^n - 1 for n in [0, 128].
func Mask128(n int) U128 {
	switch {
	case n <= 0:
		return U128{}
	case n >= 128:
		return U128{Hi: ^uint64(0), Lo: ^uint64(0)}
	case n >= 64:
		return U128{Hi: 1<<uint(n-64) - 1, Lo: ^uint64(0)}
	default:
		return U128{Lo: 1<<uint(n) - 1}
	}
}

func (u U128) IsZero() bool { return u.Hi == 0 && u.Lo == 0 }

func (u U128) And(v U128) U128 { return U128{Hi: u.Hi & v.Hi, Lo: u.Lo & v.Lo} }
func (u U128) Or(v U128) U128  { return U128{Hi: u.Hi | v.Hi, Lo: u.Lo | v.Lo} }

func (u U128) Lsh(n uint) U128 {
	switch {
	case n >= 128:
		return U128{}
	case n >= 64:
		return U128{Hi: u.Lo << (n - 64)}
	default:
		return U128{Hi: u.Hi<<n | u.Lo>>(64-n), Lo: u.Lo << n}
	}
}

func (u U128) Rsh(n uint) U128 {
	switch {
	case n >= 128:
		return U128{}
	case n >= 64:
		return U128{Lo: u.Hi >> (n - 64)}
	default:
		return U128{Hi: u.Hi >> n, Lo: u.Lo>>n | u.Hi<<(64-n)}
	}
}

// BitLen returns the number of bits needed to represent u.
func (u U128) BitLen() int {
	if u.Hi != 0 {
		return 64 + bits.Len64(u.Hi)
	}
	return bits.Len64(u.Lo)
}

// Hex formats u as 0x-prefixed lowercase hex.
func (u U128) Hex() string {
	if u.Hi == 0 {
		return "0x" + strconv.FormatUint(u.Lo, 16)
	}
	lo := strconv.FormatUint(u.Lo, 16)
	for len(lo) < 16 {
		lo = "0" + lo
	}
	return "0x" + strconv.FormatUint(u.Hi, 16) + lo
}

func (u U128) Big() *big.Int {
	b := new(big.Int).SetUint64(u.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(u.Lo))
}

func (u U128) String() string { return u.Big().String() }

func (i I128) IsNegative() bool { return int64(i.Hi) < 0 }

// Big returns i as a signed big integer.
func (i I128) Big() *big.Int {
	b := U128(i).Big()
	if i.IsNegative() {
		b.Sub(b, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return b
}

func (i I128) String() string { return i.Big().String() }

// U128FromBig converts b, which must fit in 128 bits and be non-negative.
func U128FromBig(b *big.Int) (U128, bool) {
	if b.Sign() < 0 || b.BitLen() > 128 {
		return U128{}, false
	}
	lo := new(big.Int).And(b, new(big.Int).SetUint64(^uint64(0)))
	hi := new(big.Int).Rsh(b, 64)
	return U128{Hi: hi.Uint64(), Lo: lo.Uint64()}, true
}

// I128FromBig converts b, which must fit in a signed 128-bit integer.
func I128FromBig(b *big.Int) (I128, bool) {
	min := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	if b.Cmp(min) < 0 || b.Cmp(max) > 0 {
		return I128{}, false
	}
	v := new(big.Int).Set(b)
	if v.Sign() < 0 {
		v.Add(v, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	u, _ := U128FromBig(v)
	return I128(u), true
}
