package packwire

import (
	"cmp"
	"reflect"
	"strconv"

	"golang.org/x/exp/constraints"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// EncodeOptional writes v as an optional value. In tagged mode a presence
// byte precedes the payload; in untagged mode a nil v writes nothing.
func EncodeOptional[T any](e *Encoder, v *T, enc EncodeFunc[T]) error {
	if e.cfg.optional == Tagged {
		if err := e.WriteBool(v != nil); err != nil {
			return err
		}
	}
	if v == nil {
		return nil
	}
	return enc(e, *v)
}

// DecodeOptional reads an optional value. In untagged mode the payload is
// always decoded, so a value written as nil never comes back as nil.
func DecodeOptional[T any](d *Decoder, dec DecodeFunc[T]) (*T, error) {
	if d.cfg.optional == Tagged {
		present, err := d.ReadBool()
		if err != nil || !present {
			return nil, err
		}
	}
	v, err := dec(d)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Sizeless is the length width of a container written without a count.
// Decoding one reads elements until the input runs out, so it only makes
// sense as the last thing in a message.
const Sizeless = 0

// sessionWidth frames a container with the session length width.
const sessionWidth = -1

func validFraming(width int) bool { return width == Sizeless || ValidLengthWidth(width) }

func writeCount(e *Encoder, width, n int) error {
	switch width {
	case sessionWidth:
		return e.WriteLength(n)
	case Sizeless:
		return nil
	default:
		return e.WriteLengthWidth(width, n)
	}
}

func readCount(d *Decoder, width int) (int, error) {
	if width == sessionWidth {
		return d.ReadLength()
	}
	return d.ReadLengthWidth(width)
}

// readUntilEnd calls read until the input is exhausted. Each call must
// consume at least one byte.
func readUntilEnd(d *Decoder, read func() error) error {
	for d.Remaining() > 0 {
		before := d.Consumed()
		if err := read(); err != nil {
			return err
		}
		if d.Consumed() == before {
			return d.fail(InvalidValue("element of at least one byte", "empty element in sizeless container"))
		}
	}
	return nil
}

func zeroSize[T any]() bool {
	return reflect.TypeOf((*T)(nil)).Elem().Size() == 0
}

// EncodeSlice writes a length prefix followed by each element.
func EncodeSlice[T any](e *Encoder, s []T, enc EncodeFunc[T]) error {
	return encodeSeq(e, s, sessionWidth, enc)
}

// EncodeSliceWidth is EncodeSlice with a length prefix of the given width
// instead of the session one. Sizeless writes no prefix at all.
func EncodeSliceWidth[T any](e *Encoder, s []T, width int, enc EncodeFunc[T]) error {
	if !validFraming(width) {
		return InvalidLength("length width of 0, 1, 2, 4, 8 or 16", strconv.Itoa(width))
	}
	return encodeSeq(e, s, width, enc)
}

func encodeSeq[T any](e *Encoder, s []T, width int, enc EncodeFunc[T]) error {
	if err := writeCount(e, width, len(s)); err != nil {
		return err
	}
	for _, v := range s {
		if err := enc(e, v); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSlice reads a length-prefixed sequence. An empty sequence decodes
// as a nil slice.
func DecodeSlice[T any](d *Decoder, dec DecodeFunc[T]) ([]T, error) {
	return decodeSeq(d, sessionWidth, dec)
}

// DecodeSliceWidth reads a sequence framed as EncodeSliceWidth writes it.
func DecodeSliceWidth[T any](d *Decoder, width int, dec DecodeFunc[T]) ([]T, error) {
	if !validFraming(width) {
		return nil, InvalidLength("length width of 0, 1, 2, 4, 8 or 16", strconv.Itoa(width))
	}
	return decodeSeq(d, width, dec)
}

func decodeSeq[T any](d *Decoder, width int, dec DecodeFunc[T]) ([]T, error) {
	if width == Sizeless {
		var out []T
		err := readUntilEnd(d, func() error {
			v, err := dec(d)
			if err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	n, err := readCount(d, width)
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]T, 0, preallocHint(d, n))
	for i := 0; i < n; i++ {
		before := d.Consumed()
		v, err := dec(d)
		if err != nil {
			return nil, err
		}
		if i == 0 && d.Consumed() == before && zeroSize[T]() {
			// a zero-size type has one value and no bytes
			return make([]T, n), nil
		}
		out = append(out, v)
	}
	return out, nil
}

// EncodeArray writes exactly n elements with no prefix.
func EncodeArray[T any](e *Encoder, s []T, n int, enc EncodeFunc[T]) error {
	if len(s) != n {
		return InvalidLength("array of "+strconv.Itoa(n), strconv.Itoa(len(s))+" elements")
	}
	for _, v := range s {
		if err := enc(e, v); err != nil {
			return err
		}
	}
	return nil
}

// DecodeArray reads exactly n elements.
func DecodeArray[T any](d *Decoder, n int, dec DecodeFunc[T]) ([]T, error) {
	out := make([]T, n)
	for i := range out {
		v, err := dec(d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EncodeMap writes a length prefix followed by key/value pairs in ascending
// key order, so equal maps always encode to equal bytes. NaN keys sort
// first.
func EncodeMap[K constraints.Ordered, V any](e *Encoder, m map[K]V, encK EncodeFunc[K], encV EncodeFunc[V]) error {
	if err := e.WriteLength(len(m)); err != nil {
		return err
	}
	// NaN keys can't be looked up, so pairs are collected while ranging.
	entries := make([]Tuple2[K, V], 0, len(m))
	for k, v := range m {
		entries = append(entries, Tuple2[K, V]{First: k, Second: v})
	}
	slices.SortFunc(entries, func(a, b Tuple2[K, V]) int { return cmp.Compare(a.First, b.First) })
	for _, kv := range entries {
		if err := encK(e, kv.First); err != nil {
			return err
		}
		if err := encV(e, kv.Second); err != nil {
			return err
		}
	}
	return nil
}

// DecodeMap reads a length-prefixed map. A repeated key keeps the last value.
func DecodeMap[K comparable, V any](d *Decoder, decK DecodeFunc[K], decV DecodeFunc[V]) (map[K]V, error) {
	n, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	m := make(map[K]V, preallocHint(d, n))
	for i := 0; i < n; i++ {
		before := d.Consumed()
		k, err := decK(d)
		if err != nil {
			return nil, err
		}
		v, err := decV(d)
		if err != nil {
			return nil, err
		}
		m[k] = v
		if d.Consumed() == before && zeroSize[K]() && zeroSize[V]() {
			break
		}
	}
	return m, nil
}

// EncodeSet writes a length prefix followed by the members in ascending order.
func EncodeSet[K constraints.Ordered](e *Encoder, s map[K]struct{}, enc EncodeFunc[K]) error {
	if err := e.WriteLength(len(s)); err != nil {
		return err
	}
	keys := maps.Keys(s)
	slices.SortFunc(keys, cmp.Compare[K])
	for _, k := range keys {
		if err := enc(e, k); err != nil {
			return err
		}
	}
	return nil
}

func DecodeSet[K comparable](d *Decoder, dec DecodeFunc[K]) (map[K]struct{}, error) {
	n, err := d.ReadLength()
	if err != nil {
		return nil, err
	}
	s := make(map[K]struct{}, preallocHint(d, n))
	for i := 0; i < n; i++ {
		before := d.Consumed()
		k, err := dec(d)
		if err != nil {
			return nil, err
		}
		s[k] = struct{}{}
		if d.Consumed() == before && zeroSize[K]() {
			break
		}
	}
	return s, nil
}

// preallocHint bounds an untrusted element count by the bytes left. Element
// loops stop early on zero-size types, so every element they keep takes at
// least one byte.
func preallocHint(d *Decoder, n int) int {
	return min(n, d.Remaining())
}

// Tuple2 and Tuple3 are positional records. They encode as their members
// in order with no prefix.
type Tuple2[A, B any] struct {
	First  A
	Second B
}

type Tuple3[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

func OptionOf[T any](c Codec[T]) Codec[*T] {
	return Codec[*T]{
		Encode: func(e *Encoder, v *T) error { return EncodeOptional(e, v, c.Encode) },
		Decode: func(d *Decoder) (*T, error) { return DecodeOptional(d, c.Decode) },
	}
}

func SliceOf[T any](c Codec[T]) Codec[[]T] {
	return Codec[[]T]{
		Encode: func(e *Encoder, s []T) error { return EncodeSlice(e, s, c.Encode) },
		Decode: func(d *Decoder) ([]T, error) { return DecodeSlice(d, c.Decode) },
	}
}

// SliceOfWidth is SliceOf with its own length width, overriding the session
// width for this one container. It panics unless width is Sizeless, 1, 2,
// 4, 8 or 16.
func SliceOfWidth[T any](width int, c Codec[T]) Codec[[]T] {
	if !validFraming(width) {
		panic("packwire: unsupported container length width " + strconv.Itoa(width))
	}
	return Codec[[]T]{
		Encode: func(e *Encoder, s []T) error { return encodeSeq(e, s, width, c.Encode) },
		Decode: func(d *Decoder) ([]T, error) { return decodeSeq(d, width, c.Decode) },
	}
}

// SizelessSliceOf writes elements with no count and reads them back until
// the input runs out.
func SizelessSliceOf[T any](c Codec[T]) Codec[[]T] { return SliceOfWidth(Sizeless, c) }

// ArrayOf returns a codec for fixed-length sequences of n elements. It
// panics if n is negative.
func ArrayOf[T any](n int, c Codec[T]) Codec[[]T] {
	if n < 0 {
		panic("packwire: negative array length " + strconv.Itoa(n))
	}
	return Codec[[]T]{
		Encode: func(e *Encoder, s []T) error { return EncodeArray(e, s, n, c.Encode) },
		Decode: func(d *Decoder) ([]T, error) { return DecodeArray(d, n, c.Decode) },
	}
}

func MapOf[K constraints.Ordered, V any](k Codec[K], v Codec[V]) Codec[map[K]V] {
	return Codec[map[K]V]{
		Encode: func(e *Encoder, m map[K]V) error { return EncodeMap(e, m, k.Encode, v.Encode) },
		Decode: func(d *Decoder) (map[K]V, error) { return DecodeMap(d, k.Decode, v.Decode) },
	}
}

func SetOf[K constraints.Ordered](k Codec[K]) Codec[map[K]struct{}] {
	return Codec[map[K]struct{}]{
		Encode: func(e *Encoder, s map[K]struct{}) error { return EncodeSet(e, s, k.Encode) },
		Decode: func(d *Decoder) (map[K]struct{}, error) { return DecodeSet(d, k.Decode) },
	}
}

func Tuple2Of[A, B any](a Codec[A], b Codec[B]) Codec[Tuple2[A, B]] {
	return Codec[Tuple2[A, B]]{
		Encode: func(e *Encoder, t Tuple2[A, B]) error {
			if err := a.Encode(e, t.First); err != nil {
				return err
			}
			return b.Encode(e, t.Second)
		},
		Decode: func(d *Decoder) (t Tuple2[A, B], err error) {
			if t.First, err = a.Decode(d); err != nil {
				return t, err
			}
			t.Second, err = b.Decode(d)
			return t, err
		},
	}
}

func Tuple3Of[A, B, C any](a Codec[A], b Codec[B], c Codec[C]) Codec[Tuple3[A, B, C]] {
	return Codec[Tuple3[A, B, C]]{
		Encode: func(e *Encoder, t Tuple3[A, B, C]) error {
			if err := a.Encode(e, t.First); err != nil {
				return err
			}
			if err := b.Encode(e, t.Second); err != nil {
				return err
			}
			return c.Encode(e, t.Third)
		},
		Decode: func(d *Decoder) (t Tuple3[A, B, C], err error) {
			if t.First, err = a.Decode(d); err != nil {
				return t, err
			}
			if t.Second, err = b.Decode(d); err != nil {
				return t, err
			}
			t.Third, err = c.Decode(d)
			return t, err
		},
	}
}
