package packwire

import (
	"strconv"
	"unicode/utf8"

	"github.com/dadrian/packwire/internal/wire"
)

// Encoder appends encoded values to an in-memory buffer under a Config.
// An Encoder serves one top-level encode and is not safe for concurrent use.
type Encoder struct {
	buf   []byte
	cfg   Config
	order wire.Order
}

// NewEncoder creates an encoder with an empty buffer.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{cfg: cfg, order: wire.OrderOf(cfg.order == BigEndian)}
}

// newEncoderBuffer creates an encoder that appends to buf.
func newEncoderBuffer(cfg Config, buf []byte) *Encoder {
	e := NewEncoder(cfg)
	e.buf = buf
	return e
}

// Bytes returns the encoded bytes. The slice aliases the encoder's buffer
// until the next write.
func (e *Encoder) Bytes() []byte { return e.buf }

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

func (e *Encoder) Config() Config { return e.cfg }

// Reset empties the buffer, keeping its capacity, for a new session.
func (e *Encoder) Reset() { e.buf = e.buf[:0] }

func (e *Encoder) checkLimit() error {
	if e.cfg.hasLimit && len(e.buf) > e.cfg.limit {
		return errLimitExceeded(e.cfg.limit, len(e.buf))
	}
	return nil
}

// WriteBool writes 0x01 for true and 0x00 for false.
func (e *Encoder) WriteBool(v bool) error {
	b := byte(0)
	if v {
		b = 1
	}
	e.buf = append(e.buf, b)
	return e.checkLimit()
}

func (e *Encoder) WriteU8(v uint8) error {
	e.buf = append(e.buf, v)
	return e.checkLimit()
}

func (e *Encoder) WriteI8(v int8) error { return e.WriteU8(uint8(v)) }

func (e *Encoder) WriteU16(v uint16) error {
	e.buf = wire.AppendU16(e.buf, e.order, v)
	return e.checkLimit()
}

func (e *Encoder) WriteI16(v int16) error { return e.WriteU16(uint16(v)) }

func (e *Encoder) WriteU32(v uint32) error {
	e.buf = wire.AppendU32(e.buf, e.order, v)
	return e.checkLimit()
}

func (e *Encoder) WriteI32(v int32) error { return e.WriteU32(uint32(v)) }

func (e *Encoder) WriteU64(v uint64) error {
	e.buf = wire.AppendU64(e.buf, e.order, v)
	return e.checkLimit()
}

func (e *Encoder) WriteI64(v int64) error { return e.WriteU64(uint64(v)) }

func (e *Encoder) WriteU128(v U128) error {
	e.buf = wire.AppendU128(e.buf, e.order, v.Hi, v.Lo)
	return e.checkLimit()
}

func (e *Encoder) WriteI128(v I128) error { return e.WriteU128(U128(v)) }

func (e *Encoder) WriteF32(v float32) error {
	e.buf = wire.AppendF32(e.buf, e.order, v)
	return e.checkLimit()
}

func (e *Encoder) WriteF64(v float64) error {
	e.buf = wire.AppendF64(e.buf, e.order, v)
	return e.checkLimit()
}

// WriteChar writes the UTF-8 encoding of c with no length prefix.
func (e *Encoder) WriteChar(c Char) error {
	if !utf8.ValidRune(rune(c)) {
		return InvalidValue("unicode scalar value", "0x"+strconv.FormatInt(int64(c), 16))
	}
	e.buf = utf8.AppendRune(e.buf, rune(c))
	return e.checkLimit()
}

// WriteLength writes a container length prefix in the configured width
// and byte order.
func (e *Encoder) WriteLength(n int) error {
	return e.WriteLengthWidth(e.cfg.LengthWidth(), n)
}

// WriteLengthWidth writes a length prefix of an explicit width, overriding
// the session width for one container.
func (e *Encoder) WriteLengthWidth(width, n int) error {
	if !ValidLengthWidth(width) {
		return InvalidLength("length width of 1, 2, 4, 8 or 16", strconv.Itoa(width))
	}
	if n < 0 || !wire.FitsLen(width, uint64(n)) {
		return InvalidLength(strconv.Itoa(width)+"-byte length", strconv.Itoa(n))
	}
	e.buf = wire.AppendLen(e.buf, e.order, width, uint64(n))
	return e.checkLimit()
}

// WriteString writes a length prefix followed by the string bytes.
func (e *Encoder) WriteString(s string) error {
	if err := e.WriteLength(len(s)); err != nil {
		return err
	}
	e.buf = append(e.buf, s...)
	return e.checkLimit()
}

// WriteBytes writes a length prefix followed by b.
func (e *Encoder) WriteBytes(b []byte) error {
	if err := e.WriteLength(len(b)); err != nil {
		return err
	}
	return e.WriteRaw(b)
}

// WriteRaw appends b verbatim.
func (e *Encoder) WriteRaw(b []byte) error {
	e.buf = append(e.buf, b...)
	return e.checkLimit()
}
