package packwire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitPackingLayout(t *testing.T) {
	type field struct {
		v    uint64
		bits int
	}
	tests := []struct {
		name   string
		fields []field
		want   []byte
	}{
		{"one byte", []field{{5, 3}, {0x13, 5}}, []byte{0x9D}},
		{"aligned tail", []field{{0xF, 4}, {0xABC, 12}}, []byte{0xCF, 0xAB}},
		{"padded tail", []field{{7, 3}, {0x2AA, 10}}, []byte{0x57, 0x15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder(DefaultConfig())
			w := NewBitWriter(e)
			for _, f := range tt.fields {
				require.NoError(t, w.WriteBits(U128From64(f.v), NewBitField(f.bits, Reject)))
			}
			require.NoError(t, w.Flush())
			require.Equal(t, tt.want, e.Bytes())

			r := NewBitReader(NewDecoder(e.Bytes(), DefaultConfig()))
			for _, f := range tt.fields {
				got, err := r.ReadBits(NewBitField(f.bits, Reject))
				require.NoError(t, err)
				require.Equal(t, U128From64(f.v), got)
			}
			r.Finish()
		})
	}
}

func TestMixedWidthRun(t *testing.T) {
	widths := []int{1, 2, 3, 5, 8, 10, 12, 5, 8, 6}
	values := []uint16{1, 3, 5, 17, 0xAB, 0x3FF, 0xABC, 31, 0x5A, 42}

	e := NewEncoder(DefaultConfig())
	w := NewBitWriter(e)
	sum := 0
	for i, bits := range widths {
		require.NoError(t, WriteBitsOf(w, values[i], NewBitField(bits, Reject)))
		sum += bits
	}
	require.Equal(t, sum, w.Offset())
	require.NoError(t, w.Flush())
	require.Len(t, e.Bytes(), (sum+7)/8)
	require.Equal(t, []byte{0x6F, 0x5C, 0xFD, 0x9F, 0x57, 0xBF, 0x96, 0x0A}, e.Bytes())

	d := NewDecoder(e.Bytes(), DefaultConfig())
	r := NewBitReader(d)
	for i, bits := range widths {
		got, err := ReadBitsAs[uint16](r, NewBitField(bits, Reject))
		require.NoError(t, err)
		require.Equal(t, values[i], got, "field %d", i)
	}
	r.Finish()
	require.Zero(t, d.Remaining())
}

func TestWideBitFields(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	w := NewBitWriter(e)
	wide := Mask128(65)
	require.NoError(t, w.WriteBits(wide, NewBitField(65, Reject)))
	require.NoError(t, w.WriteBits(U128From64(0x55), NewBitField(7, Reject)))
	require.NoError(t, w.Flush())
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xAB}, e.Bytes())

	r := NewBitReader(NewDecoder(e.Bytes(), DefaultConfig()))
	got, err := r.ReadBits(NewBitField(65, Reject))
	require.NoError(t, err)
	require.Equal(t, wide, got)

	full := U128{Hi: 0x8000000000000001, Lo: 0xFEDCBA9876543210}
	e = NewEncoder(NewConfig(WithBigEndian()))
	w = NewBitWriter(e)
	require.NoError(t, w.WriteBits(full, NewBitField(128, Reject)))
	require.NoError(t, w.Flush())
	require.Len(t, e.Bytes(), 16)
	got, err = NewBitReader(NewDecoder(e.Bytes(), e.Config())).ReadBits(NewBitField(128, Reject))
	require.NoError(t, err)
	require.Equal(t, full, got)
}

func TestOverflowPolicy(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	err := NewBitWriter(e).WriteBits(U128From64(8), NewBitField(3, Reject))
	perr := asError(t, err)
	require.Equal(t, KindOverflow, perr.Kind)
	require.Equal(t, "0x8", perr.Found)
	require.Equal(t, "0x7", perr.Expected)
	require.Empty(t, e.Bytes())

	w := NewBitWriter(e)
	require.NoError(t, w.WriteBits(U128From64(0xF), NewBitField(3, Truncate)))
	require.NoError(t, w.Flush())
	require.Equal(t, []byte{0x07}, e.Bytes())

	got, err := NewBitReader(NewDecoder(e.Bytes(), DefaultConfig())).ReadBits(NewBitField(3, Truncate))
	require.NoError(t, err)
	require.Equal(t, U128From64(7), got)
}

func TestSignedBitFields(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	w := NewBitWriter(e)
	require.NoError(t, WriteBitsOf(w, int8(-1), NewBitField(4, Truncate)))
	require.ErrorIs(t, WriteBitsOf(w, int8(-1), NewBitField(4, Reject)), ErrOverflow)
	require.NoError(t, w.Flush())
	require.Equal(t, []byte{0x0F}, e.Bytes())

	// zero-extended on the way back
	got, err := ReadBitsAs[int8](NewBitReader(NewDecoder(e.Bytes(), DefaultConfig())), NewBitField(4, Truncate))
	require.NoError(t, err)
	require.Equal(t, int8(15), got)
}

func TestBoolBitFields(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	w := NewBitWriter(e)
	f := NewBitField(1, Reject)
	for _, b := range []bool{true, false, true, true} {
		require.NoError(t, WriteBitsBool(w, b, f))
	}
	require.NoError(t, w.Flush())
	require.Equal(t, []byte{0x0D}, e.Bytes())

	r := NewBitReader(NewDecoder([]byte{0x06}, DefaultConfig()))
	v, err := ReadBitsBool(r, NewBitField(3, Truncate))
	require.NoError(t, err)
	require.True(t, v)
}

func TestBitReaderShortInput(t *testing.T) {
	r := NewBitReader(NewDecoder([]byte{0xFF}, DefaultConfig()))
	_, err := r.ReadBits(NewBitField(12, Truncate))
	require.ErrorIs(t, err, ErrNoEnoughData)
}

func TestFlushWithoutBits(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	w := NewBitWriter(e)
	require.NoError(t, w.Flush())
	require.NoError(t, w.WriteBits(U128From64(1), NewBitField(8, Reject)))
	require.NoError(t, w.Flush())
	require.Equal(t, []byte{0x01}, e.Bytes())
	require.Zero(t, w.Offset())
}

func TestBitWidthBounds(t *testing.T) {
	require.Panics(t, func() { NewBitField(0, Truncate) })
	require.Panics(t, func() { NewBitField(129, Truncate) })
	require.NotPanics(t, func() { NewBitField(128, Reject) })
}

func TestFieldMetaValidate(t *testing.T) {
	tests := []struct {
		meta FieldMeta
		ok   bool
	}{
		{FieldMeta{}, true},
		{FieldMeta{Bits: 5}, true},
		{FieldMeta{Bits: 128, Overflow: Reject}, true},
		{FieldMeta{Skip: true}, true},
		{FieldMeta{Skip: true, Bits: 3}, false},
		{FieldMeta{Bits: 129}, false},
		{FieldMeta{Bits: -1}, false},
		{FieldMeta{Overflow: Reject}, false},
	}
	for _, tt := range tests {
		err := tt.meta.Validate()
		if tt.ok {
			require.NoError(t, err, "%+v", tt.meta)
		} else {
			require.Error(t, err, "%+v", tt.meta)
		}
	}
}

type headerNamed struct {
	Version  uint8  `pack:"bits=1"`
	Kind     uint8  `pack:"bits=2"`
	Priority uint8  `pack:"bits=3"`
	Channel  uint8  `pack:"bits=5,no_overflow"`
	Sequence uint8  `pack:"bits=8"`
	Length   uint16 `pack:"bits=10"`
	Window   uint16 `pack:"bits=12"`
	Hops     uint8  `pack:"bits=5"`
	Plain    uint8
	Trailer  uint8 `pack:"bits=6,no_overflow"`
}

// headerPositional has the same field types as headerNamed and is written
// through the codec contract by position.
type headerPositional struct {
	F0, F1, F2, F3, F4 uint8
	F5, F6             uint16
	F7, F8, F9         uint8
}

var headerWidths = []int{1, 2, 3, 5, 8, 10, 12, 5}

func (h *headerPositional) EncodeValue(e *Encoder) error {
	w := NewBitWriter(e)
	vals := []uint16{uint16(h.F0), uint16(h.F1), uint16(h.F2), uint16(h.F3), uint16(h.F4), h.F5, h.F6, uint16(h.F7)}
	for i, v := range vals {
		policy := Truncate
		if i == 3 {
			policy = Reject
		}
		if err := WriteBitsOf(w, v, NewBitField(headerWidths[i], policy)); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := e.WriteU8(h.F8); err != nil {
		return err
	}
	if err := WriteBitsOf(w, h.F9, NewBitField(6, Reject)); err != nil {
		return err
	}
	return w.Flush()
}

func (h *headerPositional) DecodeValue(d *Decoder) error {
	r := NewBitReader(d)
	var vals [8]uint16
	for i := range vals {
		v, err := ReadBitsAs[uint16](r, NewBitField(headerWidths[i], Truncate))
		if err != nil {
			return err
		}
		vals[i] = v
	}
	r.Finish()
	h.F0, h.F1, h.F2, h.F3, h.F4 = uint8(vals[0]), uint8(vals[1]), uint8(vals[2]), uint8(vals[3]), uint8(vals[4])
	h.F5, h.F6, h.F7 = vals[5], vals[6], uint8(vals[7])
	var err error
	if h.F8, err = d.ReadU8(); err != nil {
		return err
	}
	if h.F9, err = ReadBitsAs[uint8](r, NewBitField(6, Truncate)); err != nil {
		return err
	}
	r.Finish()
	return nil
}

func TestNamedAndPositionalRecordsMatch(t *testing.T) {
	named := headerNamed{
		Version: 1, Kind: 2, Priority: 5, Channel: 17, Sequence: 0xAB,
		Length: 0x2F1, Window: 0xABC, Hops: 19, Plain: 0x7E, Trailer: 42,
	}
	positional := headerPositional{
		F0: 1, F1: 2, F2: 5, F3: 17, F4: 0xAB,
		F5: 0x2F1, F6: 0xABC, F7: 19, F8: 0x7E, F9: 42,
	}
	want := []byte{0x6D, 0x5C, 0x8D, 0x97, 0x57, 0x27, 0x7E, 0x2A}

	assertRoundtrip(t, named, want)
	assertRoundtrip(t, positional, want)

	viaCodec, err := Encode(positional, Value[headerPositional](), DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, want, viaCodec)
}

func TestRecordBitOverflow(t *testing.T) {
	_, err := Marshal(headerNamed{Channel: 32})
	require.ErrorIs(t, err, ErrOverflow)

	// Kind has no no_overflow, so 7 is cut to 3
	out, err := Marshal(headerNamed{Kind: 7})
	require.NoError(t, err)
	var back headerNamed
	_, err = Unmarshal(out, &back)
	require.NoError(t, err)
	require.Equal(t, uint8(3), back.Kind)
}

func TestSkippedFieldInsideRun(t *testing.T) {
	type Flags struct {
		Low   uint8  `pack:"bits=3"`
		Note  string `pack:"-"`
		High  uint8  `pack:"bits=5"`
		Ready bool   `pack:"bits=1"`
	}
	assertRoundtrip(t, Flags{Low: 5, High: 0x13, Ready: true}, []byte{0x9D, 0x01})
}

func TestWideRecordFields(t *testing.T) {
	type Wide struct {
		Mask U128   `pack:"bits=100"`
		Tail uint64 `pack:"bits=28"`
	}
	v := Wide{Mask: Mask128(100), Tail: 0xABCDEF1}
	out, err := Marshal(v)
	require.NoError(t, err)
	require.Len(t, out, 16)
	assertRoundtrip(t, v, out)
}

func TestBadBitFieldDeclarations(t *testing.T) {
	type TooWide struct {
		V uint8 `pack:"bits=9"`
	}
	type SkipAndBits struct {
		V uint8 `pack:"skip,bits=3"`
	}
	type OverflowWithoutBits struct {
		V uint8 `pack:"no_overflow"`
	}
	type NotAnInteger struct {
		V string `pack:"bits=3"`
	}
	type Huge struct {
		V U128 `pack:"bits=129"`
	}
	for _, v := range []any{TooWide{}, SkipAndBits{}, OverflowWithoutBits{}, NotAnInteger{}, Huge{}} {
		_, err := Marshal(v)
		require.Error(t, err, "%T", v)
	}
}
