package packwire

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/dadrian/packwire/internal/wire"
)

// Decoder reads values from a borrowed byte slice under a Config. Every
// read is bounds-checked before any byte is consumed. A Decoder must not
// be shared between goroutines; independent decoders over the same
// read-only buffer may run concurrently.
type Decoder struct {
	data  []byte
	rest  []byte
	cfg   Config
	order wire.Order
}

// NewDecoder creates a decoder over data. The decoder never writes to data,
// and string views and byte slices it returns alias it.
func NewDecoder(data []byte, cfg Config) *Decoder {
	return &Decoder{
		data:  data,
		rest:  data,
		cfg:   cfg,
		order: wire.OrderOf(cfg.order == BigEndian),
	}
}

func (d *Decoder) Config() Config { return d.cfg }

// Consumed returns the number of bytes read so far.
func (d *Decoder) Consumed() int { return len(d.data) - len(d.rest) }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.rest) }

// offset is the position reported in errors.
func (d *Decoder) offset() int64 { return int64(d.Consumed()) }

func (d *Decoder) fail(err *Error) *Error {
	err.Offset = d.offset()
	return err
}

// take consumes n bytes.
func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || len(d.rest) < n {
		return nil, d.fail(errNoEnoughData(n, len(d.rest)))
	}
	b := d.rest[:n:n]
	d.rest = d.rest[n:]
	return b, nil
}

// ReadBool accepts only 0x00 and 0x01.
func (d *Decoder) ReadBool() (bool, error) {
	if len(d.rest) < 1 {
		return false, d.fail(errNoEnoughData(1, 0))
	}
	b := d.rest[0]
	if b > 1 {
		return false, d.fail(errInvalidBool(b))
	}
	d.rest = d.rest[1:]
	return b == 1, nil
}

func (d *Decoder) ReadU8() (uint8, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Decoder) ReadI8() (int8, error) {
	v, err := d.ReadU8()
	return int8(v), err
}

func (d *Decoder) ReadU16() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

func (d *Decoder) ReadI16() (int16, error) {
	v, err := d.ReadU16()
	return int16(v), err
}

func (d *Decoder) ReadU32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

func (d *Decoder) ReadI32() (int32, error) {
	v, err := d.ReadU32()
	return int32(v), err
}

func (d *Decoder) ReadU64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

func (d *Decoder) ReadI64() (int64, error) {
	v, err := d.ReadU64()
	return int64(v), err
}

func (d *Decoder) ReadU128() (U128, error) {
	b, err := d.take(16)
	if err != nil {
		return U128{}, err
	}
	hi, lo := wire.U128(b, d.order)
	return U128{Hi: hi, Lo: lo}, nil
}

func (d *Decoder) ReadI128() (I128, error) {
	v, err := d.ReadU128()
	return I128(v), err
}

func (d *Decoder) ReadF32() (float32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return wire.F32(b, d.order), nil
}

func (d *Decoder) ReadF64() (float64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return wire.F64(b, d.order), nil
}

// ReadChar decodes one UTF-8 scalar value from at most the next 4 bytes and
// advances by exactly its encoded length.
func (d *Decoder) ReadChar() (Char, error) {
	if len(d.rest) == 0 {
		return 0, d.fail(errNoEnoughData(1, 0))
	}
	window := d.rest[:min(len(d.rest), utf8.UTFMax)]
	r, size := utf8.DecodeRune(window)
	if r == utf8.RuneError && size <= 1 {
		return 0, d.fail(errInvalidUTF8(window))
	}
	d.rest = d.rest[size:]
	return Char(r), nil
}

// ReadLength reads a container length prefix.
func (d *Decoder) ReadLength() (int, error) {
	return d.ReadLengthWidth(d.cfg.LengthWidth())
}

// ReadLengthWidth reads a length prefix of an explicit width.
func (d *Decoder) ReadLengthWidth(width int) (int, error) {
	if !ValidLengthWidth(width) {
		return 0, d.fail(InvalidLength("length width of 1, 2, 4, 8 or 16", strconv.Itoa(width)))
	}
	b, err := d.take(width)
	if err != nil {
		return 0, err
	}
	n, ok := wire.DecodeLen(b, d.order, width)
	if !ok || n > math.MaxInt {
		return 0, d.fail(InvalidLength("length that fits in int", "oversized "+strconv.Itoa(width)+"-byte length"))
	}
	return int(n), nil
}

// ReadStringView reads a length-prefixed UTF-8 string and returns the
// validated bytes without copying them.
func (d *Decoder) ReadStringView() ([]byte, error) {
	n, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	b, err := d.take(n)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(b) {
		return nil, d.fail(errInvalidUTF8(b))
	}
	return b, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (d *Decoder) ReadString() (string, error) {
	b, err := d.ReadStringView()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBytes reads a length-prefixed byte blob. The result aliases the
// decoder input.
func (d *Decoder) ReadBytes() ([]byte, error) {
	n, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	return d.take(n)
}

// ReadRaw consumes exactly n bytes. The result aliases the decoder input.
func (d *Decoder) ReadRaw(n int) ([]byte, error) {
	return d.take(n)
}
