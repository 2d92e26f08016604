package packwire

import (
	"strconv"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// OverflowPolicy decides what happens when a value is wider than its
// bit field.
type OverflowPolicy int

const (
	// Truncate keeps the low bits and drops the rest.
	Truncate OverflowPolicy = iota
	// Reject fails the encode with KindOverflow.
	Reject
)

func (p OverflowPolicy) String() string {
	if p == Reject {
		return "reject"
	}
	return "truncate"
}

// MaxBitWidth is the widest bit field supported.
const MaxBitWidth = 128

// BitField describes one member of a packed run.
type BitField struct {
	Bits     int
	Overflow OverflowPolicy
}

// NewBitField panics unless bits is in [1, MaxBitWidth].
func NewBitField(bits int, policy OverflowPolicy) BitField {
	checkBitWidth(bits)
	return BitField{Bits: bits, Overflow: policy}
}

func checkBitWidth(bits int) {
	if bits < 1 || bits > MaxBitWidth {
		panic("packwire: bit width " + strconv.Itoa(bits) + " out of range [1, 128]")
	}
}

// FieldMeta is the per-field metadata a record's codec is built from.
// Bits is zero for fields that are not bit-packed.
type FieldMeta struct {
	Bits     int
	Overflow OverflowPolicy
	Skip     bool
}

// Validate checks the metadata once, when a type's codec is built.
func (m FieldMeta) Validate() error {
	switch {
	case m.Skip && m.Bits != 0:
		return errors.New("skip and bits are mutually exclusive")
	case m.Bits < 0 || m.Bits > MaxBitWidth:
		return errors.Newf("bit width %d out of range [1, %d]", m.Bits, MaxBitWidth)
	case m.Overflow == Reject && m.Bits == 0:
		return errors.New("no_overflow requires a bit width")
	}
	return nil
}

// IsBitField reports whether the field takes part in a packed run.
func (m FieldMeta) IsBitField() bool { return m.Bits > 0 && !m.Skip }

// BitField returns the packing parameters. It panics if m is not a bit field.
func (m FieldMeta) BitField() BitField { return NewBitField(m.Bits, m.Overflow) }

// BitWriter packs consecutive bit fields into bytes, least significant bit
// first. Bytes are emitted as soon as they fill; Flush emits the trailing
// partial byte with zero padding and starts a new run.
type BitWriter struct {
	e      *Encoder
	acc    byte
	offset int
}

func NewBitWriter(e *Encoder) *BitWriter { return &BitWriter{e: e} }

// Offset returns the number of bits written since the run started.
func (w *BitWriter) Offset() int { return w.offset }

// WriteBits places the low f.Bits bits of v into the run.
func (w *BitWriter) WriteBits(v U128, f BitField) error {
	checkBitWidth(f.Bits)
	if f.Overflow == Reject && !v.Rsh(uint(f.Bits)).IsZero() {
		return errOverflow(v, Mask128(f.Bits))
	}
	shift := 0
	for remaining := f.Bits; remaining > 0; {
		pos := w.offset % 8
		take := min(remaining, 8-pos)
		chunk := byte(v.Rsh(uint(shift)).Lo & (1<<uint(take) - 1))
		w.acc |= chunk << uint(pos)
		w.offset += take
		shift += take
		remaining -= take
		if w.offset%8 == 0 {
			if err := w.e.WriteU8(w.acc); err != nil {
				return err
			}
			w.acc = 0
		}
	}
	return nil
}

// Flush ends the run.
func (w *BitWriter) Flush() error {
	pending := w.offset%8 != 0
	acc := w.acc
	w.acc, w.offset = 0, 0
	if pending {
		return w.e.WriteU8(acc)
	}
	return nil
}

// BitReader is the decoding mirror of BitWriter. It reads a byte from the
// stream only when the run needs the next one.
type BitReader struct {
	d      *Decoder
	cur    byte
	offset int
}

func NewBitReader(d *Decoder) *BitReader { return &BitReader{d: d} }

func (r *BitReader) Offset() int { return r.offset }

// ReadBits extracts the next f.Bits bits of the run.
func (r *BitReader) ReadBits(f BitField) (U128, error) {
	checkBitWidth(f.Bits)
	var out U128
	shift := 0
	for remaining := f.Bits; remaining > 0; {
		pos := r.offset % 8
		if pos == 0 {
			b, err := r.d.ReadU8()
			if err != nil {
				return U128{}, err
			}
			r.cur = b
		}
		take := min(remaining, 8-pos)
		chunk := uint64(r.cur>>uint(pos)) & (1<<uint(take) - 1)
		out = out.Or(U128From64(chunk).Lsh(uint(shift)))
		r.offset += take
		shift += take
		remaining -= take
	}
	return out, nil
}

// Finish ends the run. Unread padding bits in the current byte are
// discarded without being checked.
func (r *BitReader) Finish() {
	r.cur, r.offset = 0, 0
}

// WriteBitsOf writes an integer into the run. Negative values are
// sign-extended to 128 bits first, so under Reject they always overflow.
func WriteBitsOf[T constraints.Integer](w *BitWriter, v T, f BitField) error {
	if v < 0 {
		return w.WriteBits(U128(I128From64(int64(v))), f)
	}
	return w.WriteBits(U128From64(uint64(v)), f)
}

// ReadBitsAs reads a field into an integer type. The value is
// zero-extended; bits beyond the width of T are dropped.
func ReadBitsAs[T constraints.Integer](r *BitReader, f BitField) (T, error) {
	v, err := r.ReadBits(f)
	if err != nil {
		return 0, err
	}
	return T(v.Lo), nil
}

func WriteBitsBool(w *BitWriter, v bool, f BitField) error {
	var u U128
	if v {
		u.Lo = 1
	}
	return w.WriteBits(u, f)
}

// ReadBitsBool treats any non-zero field value as true.
func ReadBitsBool(r *BitReader, f BitField) (bool, error) {
	v, err := r.ReadBits(f)
	if err != nil {
		return false, err
	}
	return !v.IsZero(), nil
}
