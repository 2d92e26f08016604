package packwire

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type framedRecord struct {
	Normal   []uint8
	OneByte  []uint8 `pack:"len=1"`
	Sizeless []uint8 `pack:"len=0"`
}

func TestPerFieldLengthWidth(t *testing.T) {
	v := framedRecord{
		Normal:   []uint8{1, 2, 3},
		OneByte:  []uint8{4, 5, 6},
		Sizeless: []uint8{4, 5, 6},
	}
	want := []byte{
		0x03, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03,
		0x03, 0x04, 0x05, 0x06,
		0x04, 0x05, 0x06,
	}
	out, err := Marshal(v)
	require.NoError(t, err)
	require.Equal(t, want, out)

	var got framedRecord
	n, err := Unmarshal(out, &got)
	require.NoError(t, err)
	require.Equal(t, len(out), n)
	require.Equal(t, v, got)
}

func TestLengthWidthOnEveryContainerKind(t *testing.T) {
	type record struct {
		Words []uint16         `pack:"len=2"`
		Name  string           `pack:"len=8"`
		Index map[string]uint8 `pack:"len=1"`
		Big   []bool           `pack:"len=16"`
		Rest  []string         `pack:"len=0"`
	}
	v := record{
		Words: []uint16{1, 2},
		Name:  "ab",
		Index: map[string]uint8{"k": 9},
		Big:   []bool{true},
		Rest:  []string{"x", "yz"},
	}
	var want []byte
	want = append(want, 0x02, 0x00, 0x01, 0x00, 0x02, 0x00)
	want = append(want, 0x02, 0, 0, 0, 0, 0, 0, 0, 'a', 'b')
	want = append(want, 0x01, 0x01, 0, 0, 0, 'k', 0x09)
	want = append(want, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x01)
	want = append(want, 0x01, 0, 0, 0, 'x', 0x02, 0, 0, 0, 'y', 'z')

	out, err := Marshal(v)
	require.NoError(t, err)
	require.Equal(t, want, out)

	var got record
	n, err := Unmarshal(out, &got)
	require.NoError(t, err)
	require.Equal(t, len(out), n)
	require.Equal(t, v, got)
}

func TestSizelessFieldReadsToEnd(t *testing.T) {
	type tail struct {
		ID   uint8
		Text string `pack:"len=0"`
	}
	var got tail
	n, err := Unmarshal([]byte{0x07, 'h', 'e', 'y'}, &got)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, tail{ID: 7, Text: "hey"}, got)

	n, err = Unmarshal([]byte{0x07}, &got)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, tail{ID: 7}, got)

	type words struct {
		W []uint16 `pack:"len=0"`
	}
	_, err = Unmarshal([]byte{0x01, 0x00, 0x02}, &words{})
	require.ErrorIs(t, err, ErrNoEnoughData)
}

func TestFieldLengthWidthOverflow(t *testing.T) {
	type short struct {
		B []uint8 `pack:"len=1"`
	}
	_, err := Marshal(short{B: make([]uint8, 256)})
	require.ErrorIs(t, err, ErrInvalidLength)

	out, err := Marshal(short{B: make([]uint8, 255)})
	require.NoError(t, err)
	require.Len(t, out, 256)
}

func TestBadLengthWidthDeclarations(t *testing.T) {
	type badWidth struct {
		B []uint8 `pack:"len=3"`
	}
	type noPrefix struct {
		N uint32 `pack:"len=1"`
	}
	type withBits struct {
		N uint8 `pack:"len=1,bits=3"`
	}
	type emptyTail struct {
		E []struct{} `pack:"len=0"`
	}
	type selfEncoded struct {
		P point `pack:"len=1"`
	}
	type onVariant struct {
		_ Union
		A *[]uint8 `pack:"len=1"`
	}
	for _, v := range []any{badWidth{}, noPrefix{}, withBits{}, emptyTail{}, selfEncoded{}, onVariant{}} {
		_, err := Marshal(v)
		require.Error(t, err, "%T", v)
	}
}

func TestSliceOfWidth(t *testing.T) {
	c := SliceOfWidth(1, U16)
	out, err := Encode([]uint16{1, 2}, c, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, []byte{0x02, 0x01, 0x00, 0x02, 0x00}, out)
	got, n, err := Decode(out, c, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, len(out), n)
	require.Equal(t, []uint16{1, 2}, got)

	_, err = Encode(make([]uint8, 256), SliceOfWidth(1, U8), DefaultConfig())
	require.ErrorIs(t, err, ErrInvalidLength)

	require.Panics(t, func() { SliceOfWidth(3, U8) })
	require.Panics(t, func() { SliceOfWidth(-1, U8) })
}

func TestSizelessSliceOf(t *testing.T) {
	c := SizelessSliceOf(U16)
	out, err := Encode([]uint16{1, 2}, c, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x00, 0x02, 0x00}, out)

	got, n, err := Decode(out, c, DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, []uint16{1, 2}, got)

	got, n, err = Decode(nil, c, DefaultConfig())
	require.NoError(t, err)
	require.Zero(t, n)
	require.Nil(t, got)

	_, _, err = Decode([]byte{0x01, 0x00, 0x02}, c, DefaultConfig())
	require.ErrorIs(t, err, ErrNoEnoughData)

	_, _, err = Decode([]byte{0x00}, SizelessSliceOf(emptyCodec), DefaultConfig())
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestSliceWidthFunctionsRejectBadWidth(t *testing.T) {
	e := NewEncoder(DefaultConfig())
	require.ErrorIs(t, EncodeSliceWidth(e, []uint8{1}, 3, U8.Encode), ErrInvalidLength)
	_, err := DecodeSliceWidth(NewDecoder([]byte{0x01}, DefaultConfig()), 5, U8.Decode)
	require.ErrorIs(t, err, ErrInvalidLength)
	require.ErrorIs(t, e.WriteLengthWidth(0, 1), ErrInvalidLength)
	_, err = NewDecoder([]byte{0x01}, DefaultConfig()).ReadLengthWidth(3)
	require.ErrorIs(t, err, ErrInvalidLength)
}

func TestExplicitLengthWidthIgnoresSession(t *testing.T) {
	cfg := NewConfig(WithBigEndian(), WithLengthWidth(8))
	e := NewEncoder(cfg)
	require.NoError(t, e.WriteLengthWidth(2, 0x0102))
	require.Equal(t, []byte{0x01, 0x02}, e.Bytes())

	d := NewDecoder(e.Bytes(), cfg)
	n, err := d.ReadLengthWidth(2)
	require.NoError(t, err)
	require.Equal(t, 0x0102, n)
}

var emptyCodec = Codec[struct{}]{
	Encode: func(*Encoder, struct{}) error { return nil },
	Decode: func(*Decoder) (struct{}, error) { return struct{}{}, nil },
}

func TestZeroSizeElementsDecodeInConstantTime(t *testing.T) {
	data := []byte{0xFF, 0xFF, 0xFF, 0x7F}

	var s []struct{}
	n, err := Unmarshal(data, &s)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Len(t, s, 0x7FFFFFFF)

	got, n, err := Decode(data, SliceOf(emptyCodec), DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Len(t, got, 0x7FFFFFFF)

	var m map[struct{}]struct{}
	_, err = Unmarshal(data, &m)
	require.NoError(t, err)
	require.Len(t, m, 1)

	gm, _, err := Decode(data, Codec[map[struct{}]struct{}]{
		Decode: func(d *Decoder) (map[struct{}]struct{}, error) { return DecodeMap(d, emptyCodec.Decode, emptyCodec.Decode) },
	}, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, gm, 1)

	gs, _, err := Decode(data, Codec[map[struct{}]struct{}]{
		Decode: func(d *Decoder) (map[struct{}]struct{}, error) { return DecodeSet(d, emptyCodec.Decode) },
	}, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, gs, 1)

	n, err = Unmarshal([]byte{0x02, 0, 0, 0}, &s)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Len(t, s, 2)
}

func f64LE(v float64) []byte {
	return binary.LittleEndian.AppendUint64(nil, math.Float64bits(v))
}

func requireNaNFirst(t *testing.T, out []byte) {
	t.Helper()
	require.Len(t, out, 4+2*9)
	require.Equal(t, []byte{0x02, 0, 0, 0}, out[:4])
	require.True(t, math.IsNaN(math.Float64frombits(binary.LittleEndian.Uint64(out[4:12]))))
	require.Equal(t, byte(1), out[12])
	require.Equal(t, f64LE(2), out[13:21])
	require.Equal(t, byte(3), out[21])
}

func TestNaNMapKey(t *testing.T) {
	m := map[float64]uint8{math.NaN(): 1, 2: 3}

	out, err := Marshal(m)
	require.NoError(t, err)
	requireNaNFirst(t, out)

	gen, err := Encode(m, MapOf(F64, U8), DefaultConfig())
	require.NoError(t, err)
	require.Equal(t, out, gen)

	var got map[float64]uint8
	_, err = Unmarshal(out, &got)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint8(3), got[2])
	for k, v := range got {
		if math.IsNaN(k) {
			require.Equal(t, uint8(1), v)
		}
	}
}

func TestNaNSetMember(t *testing.T) {
	s := map[float64]struct{}{1: {}, math.NaN(): {}}
	out, err := Encode(s, SetOf(F64), DefaultConfig())
	require.NoError(t, err)
	require.Len(t, out, 4+2*8)
	require.True(t, math.IsNaN(math.Float64frombits(binary.LittleEndian.Uint64(out[4:12]))))
	require.Equal(t, f64LE(1), out[12:20])
}

func TestSetLoggerWhileEncoding(t *testing.T) {
	defer SetLogger(nil)
	type logged struct {
		A uint8
		B []string
	}
	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				SetLogger(zap.NewNop())
			}
			return nil
		})
		g.Go(func() error {
			for j := 0; j < 100; j++ {
				if _, err := Marshal(logged{A: uint8(j)}); err != nil {
					return err
				}
				Logger().Debug("tick")
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	SetLogger(nil)
	require.NotNil(t, Logger())
}
