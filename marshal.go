package packwire

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/dadrian/packwire/internal/wire"
)

// Marshal encodes v under a Config built from opts. If v is a pointer the
// value it points to is encoded.
func Marshal(v any, opts ...Option) ([]byte, error) {
	return MarshalConfig(v, NewConfig(opts...))
}

// MarshalConfig encodes v under cfg.
func MarshalConfig(v any, cfg Config) ([]byte, error) {
	buf := wire.GetBuffer()
	defer wire.PutBuffer(buf)
	e := newEncoderBuffer(cfg, *buf)
	err := e.Encode(v)
	*buf = e.buf
	if err != nil {
		return nil, err
	}
	return bytes.Clone(e.buf), nil
}

// Unmarshal decodes one value from the front of data into v, which must be
// a non-nil pointer, and reports how many bytes were consumed.
func Unmarshal(data []byte, v any, opts ...Option) (int, error) {
	return UnmarshalConfig(data, v, NewConfig(opts...))
}

func UnmarshalConfig(data []byte, v any, cfg Config) (int, error) {
	d := NewDecoder(data, cfg)
	if err := d.Decode(v); err != nil {
		return 0, err
	}
	return d.Consumed(), nil
}

// Encode writes v using its reflected layout. Types whose pointer
// implements ValueEncoder and ValueDecoder encode themselves.
func (e *Encoder) Encode(v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return InvalidValue("value", "nil")
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return InvalidValue("non-nil pointer", rv.Type().String())
		}
		rv = rv.Elem()
	}
	p, err := planFor(rv.Type())
	if err != nil {
		return err
	}
	return p.encode(e, rv)
}

// Decode reads one value into v, which must be a non-nil pointer.
func (d *Decoder) Decode(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return InvalidType("non-nil pointer", fmt.Sprintf("%T", v))
	}
	p, err := planFor(rv.Type().Elem())
	if err != nil {
		return err
	}
	return p.decode(d, rv.Elem())
}
