package packwire

// ValueEncoder is implemented by types that write themselves to an Encoder.
type ValueEncoder interface {
	EncodeValue(e *Encoder) error
}

// ValueDecoder is implemented by pointer types that fill their receiver
// from a Decoder.
type ValueDecoder interface {
	DecodeValue(d *Decoder) error
}

type (
	EncodeFunc[T any] func(e *Encoder, v T) error
	DecodeFunc[T any] func(d *Decoder) (T, error)
)

// Codec pairs the two halves of the value contract for T. Codecs compose:
// the container constructors in this package take element codecs and
// return codecs for the container.
type Codec[T any] struct {
	Encode EncodeFunc[T]
	Decode DecodeFunc[T]
}

// Built-in codecs for the scalar kinds.
var (
	Bool = Codec[bool]{(*Encoder).WriteBool, (*Decoder).ReadBool}
	U8   = Codec[uint8]{(*Encoder).WriteU8, (*Decoder).ReadU8}
	I8   = Codec[int8]{(*Encoder).WriteI8, (*Decoder).ReadI8}
	U16  = Codec[uint16]{(*Encoder).WriteU16, (*Decoder).ReadU16}
	I16  = Codec[int16]{(*Encoder).WriteI16, (*Decoder).ReadI16}
	U32  = Codec[uint32]{(*Encoder).WriteU32, (*Decoder).ReadU32}
	I32  = Codec[int32]{(*Encoder).WriteI32, (*Decoder).ReadI32}
	U64  = Codec[uint64]{(*Encoder).WriteU64, (*Decoder).ReadU64}
	I64  = Codec[int64]{(*Encoder).WriteI64, (*Decoder).ReadI64}
	F32  = Codec[float32]{(*Encoder).WriteF32, (*Decoder).ReadF32}
	F64  = Codec[float64]{(*Encoder).WriteF64, (*Decoder).ReadF64}

	U128Codec = Codec[U128]{(*Encoder).WriteU128, (*Decoder).ReadU128}
	I128Codec = Codec[I128]{(*Encoder).WriteI128, (*Decoder).ReadI128}
	CharCodec = Codec[Char]{(*Encoder).WriteChar, (*Decoder).ReadChar}

	String = Codec[string]{(*Encoder).WriteString, (*Decoder).ReadString}

	// Bytes decodes to a slice that aliases the input.
	Bytes = Codec[[]byte]{(*Encoder).WriteBytes, (*Decoder).ReadBytes}
)

// Value returns the codec for a type whose pointer implements both
// ValueEncoder and ValueDecoder.
func Value[T any, PT interface {
	*T
	ValueEncoder
	ValueDecoder
}]() Codec[T] {
	return Codec[T]{
		Encode: func(e *Encoder, v T) error {
			return PT(&v).EncodeValue(e)
		},
		Decode: func(d *Decoder) (T, error) {
			var v T
			err := PT(&v).DecodeValue(d)
			return v, err
		},
	}
}

// Encode encodes v with c under cfg and returns the bytes.
func Encode[T any](v T, c Codec[T], cfg Config) ([]byte, error) {
	e := NewEncoder(cfg)
	if err := c.Encode(e, v); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}

// Decode decodes one T from the front of data and reports how many bytes
// it consumed. Trailing bytes are left for the caller.
func Decode[T any](data []byte, c Codec[T], cfg Config) (T, int, error) {
	d := NewDecoder(data, cfg)
	v, err := c.Decode(d)
	if err != nil {
		var zero T
		return zero, 0, err
	}
	return v, d.Consumed(), nil
}
