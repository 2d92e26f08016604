package packwire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func asError(t *testing.T, err error) *Error {
	t.Helper()
	var perr *Error
	require.ErrorAs(t, err, &perr)
	return perr
}

func TestScalarThenTaggedSome(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	require.NoError(t, e.WriteU32(42))
	seven := uint32(7)
	require.NoError(t, EncodeOptional(e, &seven, U32.Encode))
	require.Equal(t, []byte{0x2A, 0x00, 0x00, 0x00, 0x01, 0x07, 0x00, 0x00, 0x00}, e.Bytes())

	d := NewDecoder(e.Bytes(), DefaultConfig())
	v, err := d.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(42), v)
	opt, err := DecodeOptional(d, U32.Decode)
	require.NoError(t, err)
	require.NotNil(t, opt)
	require.Equal(t, uint32(7), *opt)
	require.Equal(t, 9, d.Consumed())
	require.Zero(t, d.Remaining())
}

func TestFixedWidthLayout(t *testing.T) {
	tests := []struct {
		name  string
		write func(e *Encoder) error
		le    []byte
	}{
		{"bool", func(e *Encoder) error { return e.WriteBool(true) }, []byte{0x01}},
		{"u8", func(e *Encoder) error { return e.WriteU8(0xAB) }, []byte{0xAB}},
		{"i8", func(e *Encoder) error { return e.WriteI8(-1) }, []byte{0xFF}},
		{"u16", func(e *Encoder) error { return e.WriteU16(0x0102) }, []byte{0x02, 0x01}},
		{"i16", func(e *Encoder) error { return e.WriteI16(-2) }, []byte{0xFE, 0xFF}},
		{"u32", func(e *Encoder) error { return e.WriteU32(0x01020304) }, []byte{0x04, 0x03, 0x02, 0x01}},
		{"i32", func(e *Encoder) error { return e.WriteI32(-1) }, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{"u64", func(e *Encoder) error { return e.WriteU64(0x0102030405060708) }, []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}},
		{"f32", func(e *Encoder) error { return e.WriteF32(1.5) }, []byte{0x00, 0x00, 0xC0, 0x3F}},
		{"f64", func(e *Encoder) error { return e.WriteF64(1.5) }, []byte{0, 0, 0, 0, 0, 0, 0xF8, 0x3F}},
		{"u128", func(e *Encoder) error { return e.WriteU128(U128{Hi: 1, Lo: 2}) }, []byte{
			0x02, 0, 0, 0, 0, 0, 0, 0,
			0x01, 0, 0, 0, 0, 0, 0, 0,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			le := NewEncoder(DefaultConfig())
			require.NoError(t, tt.write(le))
			require.Equal(t, tt.le, le.Bytes())

			be := NewEncoder(NewConfig(WithBigEndian()))
			require.NoError(t, tt.write(be))
			require.Equal(t, reversed(tt.le), be.Bytes())
		})
	}
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}

func TestByteOrderRoundTrip(t *testing.T) {
	for _, cfg := range []Config{NewConfig(WithLittleEndian()), NewConfig(WithBigEndian())} {
		e := NewEncoder(cfg)
		require.NoError(t, e.WriteI64(math.MinInt64+5))
		require.NoError(t, e.WriteF64(-0.25))
		require.NoError(t, e.WriteI128(I128From64(-3)))

		d := NewDecoder(e.Bytes(), cfg)
		i, err := d.ReadI64()
		require.NoError(t, err)
		require.Equal(t, int64(math.MinInt64+5), i)
		f, err := d.ReadF64()
		require.NoError(t, err)
		require.Equal(t, -0.25, f)
		big, err := d.ReadI128()
		require.NoError(t, err)
		require.Equal(t, "-3", big.String())
	}
}

func TestChar(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	require.NoError(t, e.WriteChar('é'))
	require.NoError(t, e.WriteChar('😀'))
	require.NoError(t, e.WriteChar('A'))
	require.Equal(t, []byte{0xC3, 0xA9, 0xF0, 0x9F, 0x98, 0x80, 'A'}, e.Bytes())

	d := NewDecoder(e.Bytes(), DefaultConfig())
	for _, want := range []Char{'é', '😀', 'A'} {
		c, err := d.ReadChar()
		require.NoError(t, err)
		require.Equal(t, want, c)
	}
	require.Zero(t, d.Remaining())

	_, err := NewDecoder([]byte{0xFF, 0x41}, DefaultConfig()).ReadChar()
	require.ErrorIs(t, err, ErrInvalidUTF8)

	_, err = NewDecoder(nil, DefaultConfig()).ReadChar()
	require.ErrorIs(t, err, ErrNoEnoughData)

	err = NewEncoder(DefaultConfig()).WriteChar(0xD800)
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestInvalidBool(t *testing.T) {
	d := NewDecoder([]byte{0x02}, DefaultConfig())
	_, err := d.ReadBool()
	perr := asError(t, err)
	require.Equal(t, KindInvalidBoolValue, perr.Kind)
	require.Equal(t, []byte{0x02}, perr.Bytes)
	require.Equal(t, 1, d.Remaining())
}

func TestNotEnoughData(t *testing.T) {
	d := NewDecoder([]byte{1, 2, 3}, DefaultConfig())
	_, err := d.ReadU16()
	require.NoError(t, err)
	_, err = d.ReadU32()
	perr := asError(t, err)
	require.Equal(t, KindNoEnoughData, perr.Kind)
	require.Equal(t, 4, perr.Want)
	require.Equal(t, 1, perr.Have)
	require.Equal(t, int64(2), perr.Offset)
	require.Equal(t, 1, d.Remaining())
}

func TestStringFraming(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []byte
	}{
		{"default", DefaultConfig(), []byte{0x02, 0, 0, 0, 'a', 'b'}},
		{"width 1", NewConfig(WithLengthWidth(1)), []byte{0x02, 'a', 'b'}},
		{"width 2 big", NewConfig(WithLengthWidth(2), WithBigEndian()), []byte{0, 0x02, 'a', 'b'}},
		{"width 8", NewConfig(WithLengthWidth(8)), []byte{0x02, 0, 0, 0, 0, 0, 0, 0, 'a', 'b'}},
		{"width 16", NewConfig(WithLengthWidth(16)), []byte{0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 'a', 'b'}},
		{"width 16 big", NewConfig(WithLengthWidth(16), WithBigEndian()), []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x02, 'a', 'b'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder(tt.cfg)
			require.NoError(t, e.WriteString("ab"))
			require.Equal(t, tt.want, e.Bytes())

			s, err := NewDecoder(tt.want, tt.cfg).ReadString()
			require.NoError(t, err)
			require.Equal(t, "ab", s)
		})
	}
}

func TestLengthOutOfRange(t *testing.T) {
	e := NewEncoder(NewConfig(WithLengthWidth(1)))
	err := e.WriteLength(256)
	require.ErrorIs(t, err, ErrInvalidLength)
	require.Zero(t, e.Len())

	require.ErrorIs(t, NewEncoder(DefaultConfig()).WriteLength(-1), ErrInvalidLength)

	wide := make([]byte, 16)
	wide[8] = 1 // high half of a little-endian 16-byte length
	_, err = NewDecoder(wide, NewConfig(WithLengthWidth(16))).ReadLength()
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestStringViewAliasesInput(t *testing.T) {
	data := []byte{0x03, 0, 0, 0, 'a', 'b', 'c', 0xEE}
	d := NewDecoder(data, DefaultConfig())
	view, err := d.ReadStringView()
	require.NoError(t, err)
	require.Equal(t, "abc", string(view))
	require.Same(t, &data[4], &view[0])
	require.Equal(t, 7, d.Consumed())
}

func TestInvalidUTF8String(t *testing.T) {
	_, err := NewDecoder([]byte{0x02, 0, 0, 0, 0xFF, 0xFE}, DefaultConfig()).ReadString()
	perr := asError(t, err)
	require.Equal(t, KindInvalidUTF8, perr.Kind)
	require.Equal(t, []byte{0xFF, 0xFE}, perr.Bytes)
}

func TestStringShortPayload(t *testing.T) {
	_, err := NewDecoder([]byte{0x05, 0, 0, 0, 'a'}, DefaultConfig()).ReadString()
	perr := asError(t, err)
	require.Equal(t, KindNoEnoughData, perr.Kind)
	require.Equal(t, 5, perr.Want)
	require.Equal(t, 1, perr.Have)
}

func TestBytesAndRaw(t *testing.T) {
	e := NewEncoder(NewConfig(WithLengthWidth(2)))
	require.NoError(t, e.WriteBytes([]byte{0xDE, 0xAD}))
	require.NoError(t, e.WriteRaw([]byte{0xBE, 0xEF}))
	require.Equal(t, []byte{0x02, 0x00, 0xDE, 0xAD, 0xBE, 0xEF}, e.Bytes())

	d := NewDecoder(e.Bytes(), e.Config())
	b, err := d.ReadBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{0xDE, 0xAD}, b)
	raw, err := d.ReadRaw(2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xBE, 0xEF}, raw)
	_, err = d.ReadRaw(1)
	require.ErrorIs(t, err, ErrNoEnoughData)
}

func TestLimitIsCheckedAfterWrite(t *testing.T) {
	e := NewEncoder(NewConfig(WithLimit(4)))
	require.NoError(t, e.WriteU32(1))
	err := e.WriteU8(2)
	perr := asError(t, err)
	require.Equal(t, KindLimitExceeded, perr.Kind)
	require.Equal(t, 4, perr.Want)
	require.Equal(t, 5, perr.Have)
	// the offending write already landed
	require.Equal(t, 5, e.Len())
}

func TestLimitCoversLengthPrefix(t *testing.T) {
	e := NewEncoder(NewConfig(WithLimit(3)))
	require.ErrorIs(t, e.WriteString(""), ErrLimitExceeded)
}

func TestEncoderReset(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	require.NoError(t, e.WriteU64(1))
	e.Reset()
	require.Zero(t, e.Len())
	require.NoError(t, e.WriteU8(9))
	require.Equal(t, []byte{9}, e.Bytes())
}
