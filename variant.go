package packwire

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Repr is the integer type a union's discriminant is written as. The zero
// value is ReprU32.
type Repr int

const (
	ReprU32 Repr = iota
	ReprU8
	ReprU16
	ReprU64
	ReprI8
	ReprI16
	ReprI32
	ReprI64
)

var reprNames = [...]string{
	ReprU32: "u32",
	ReprU8:  "u8",
	ReprU16: "u16",
	ReprU64: "u64",
	ReprI8:  "i8",
	ReprI16: "i16",
	ReprI32: "i32",
	ReprI64: "i64",
}

// ParseRepr parses a repr name such as "u8" or "i32".
func ParseRepr(s string) (Repr, error) {
	for r, name := range reprNames {
		if name == s {
			return Repr(r), nil
		}
	}
	return 0, errors.Newf("unknown discriminant repr %q", s)
}

func (r Repr) String() string {
	if r < 0 || int(r) >= len(reprNames) {
		return "repr(" + strconv.Itoa(int(r)) + ")"
	}
	return reprNames[r]
}

// Size returns the encoded width in bytes.
func (r Repr) Size() int {
	switch r {
	case ReprU8, ReprI8:
		return 1
	case ReprU16, ReprI16:
		return 2
	case ReprU64, ReprI64:
		return 8
	default:
		return 4
	}
}

func (r Repr) Signed() bool { return r >= ReprI8 }

// Fits reports whether tag is representable in r.
func (r Repr) Fits(tag int64) bool {
	switch r {
	case ReprU8:
		return tag >= 0 && tag <= math.MaxUint8
	case ReprU16:
		return tag >= 0 && tag <= math.MaxUint16
	case ReprU32:
		return tag >= 0 && tag <= math.MaxUint32
	case ReprU64:
		return tag >= 0
	case ReprI8:
		return tag >= math.MinInt8 && tag <= math.MaxInt8
	case ReprI16:
		return tag >= math.MinInt16 && tag <= math.MaxInt16
	case ReprI32:
		return tag >= math.MinInt32 && tag <= math.MaxInt32
	default:
		return true
	}
}

// VariantSpec declares one variant. A nil Tag means "previous tag + 1",
// or 0 for the first variant.
type VariantSpec struct {
	Name string
	Tag  *int64
}

// Tag returns a pointer to v for use in VariantSpec literals.
func Tag(v int64) *int64 { return &v }

// Discriminants is the resolved tag table of a union type. It is immutable
// and safe to share.
type Discriminants struct {
	repr     Repr
	untagged bool
	names    []string
	tags     []int64
	index    map[int64]int
	expected string
}

// NewDiscriminants resolves the tags of specs in declaration order. It
// fails if the table is empty, a tag repeats, or a tag does not fit repr.
func NewDiscriminants(repr Repr, specs ...VariantSpec) (*Discriminants, error) {
	if repr < 0 || int(repr) >= len(reprNames) {
		return nil, errors.Newf("unknown discriminant repr %d", int(repr))
	}
	if len(specs) == 0 {
		return nil, errors.New("union has no variants")
	}
	t := &Discriminants{
		repr:  repr,
		names: make([]string, len(specs)),
		tags:  make([]int64, len(specs)),
		index: make(map[int64]int, len(specs)),
	}
	var next int64
	for i, s := range specs {
		tag := next
		if s.Tag != nil {
			tag = *s.Tag
		} else if i > 0 && t.tags[i-1] == math.MaxInt64 {
			return nil, errors.Newf("variant %s: implicit tag after %d overflows", s.Name, t.tags[i-1])
		}
		if !repr.Fits(tag) {
			return nil, errors.Newf("variant %s: tag %d does not fit %s", s.Name, tag, repr)
		}
		if j, dup := t.index[tag]; dup {
			return nil, errors.Newf("variant %s: tag %d already used by %s", s.Name, tag, t.names[j])
		}
		t.names[i] = s.Name
		t.tags[i] = tag
		t.index[tag] = i
		next = tag + 1
	}
	t.expected = joinTags(t.tags)
	return t, nil
}

// NewUntaggedDiscriminants builds a table for a union that writes no tag.
// Decoding always yields the first variant, which is only sound when every
// variant shares its wire shape.
func NewUntaggedDiscriminants(specs ...VariantSpec) (*Discriminants, error) {
	t, err := NewDiscriminants(ReprU32, specs...)
	if err != nil {
		return nil, err
	}
	t.untagged = true
	return t, nil
}

func joinTags(tags []int64) string {
	parts := make([]string, len(tags))
	for i, tag := range tags {
		parts[i] = strconv.FormatInt(tag, 10)
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " or " + parts[len(parts)-1]
}

func (t *Discriminants) Repr() Repr        { return t.repr }
func (t *Discriminants) Untagged() bool    { return t.untagged }
func (t *Discriminants) Len() int          { return len(t.tags) }
func (t *Discriminants) Name(i int) string { return t.names[i] }

// Tags returns the resolved tags in declaration order.
func (t *Discriminants) Tags() []int64 { return append([]int64(nil), t.tags...) }

func (t *Discriminants) TagOf(i int) int64 { return t.tags[i] }

// Index returns the variant carrying tag.
func (t *Discriminants) Index(tag int64) (int, bool) {
	i, ok := t.index[tag]
	return i, ok
}

// Expected lists every tag, as in "-1, 10, 11 or 20".
func (t *Discriminants) Expected() string { return t.expected }

// WriteTag writes the tag of variant i. Untagged unions write nothing.
func (t *Discriminants) WriteTag(e *Encoder, i int) error {
	if t.untagged {
		return nil
	}
	tag := t.tags[i]
	switch t.repr {
	case ReprU8:
		return e.WriteU8(uint8(tag))
	case ReprI8:
		return e.WriteI8(int8(tag))
	case ReprU16:
		return e.WriteU16(uint16(tag))
	case ReprI16:
		return e.WriteI16(int16(tag))
	case ReprI32:
		return e.WriteI32(int32(tag))
	case ReprU64:
		return e.WriteU64(uint64(tag))
	case ReprI64:
		return e.WriteI64(tag)
	default:
		return e.WriteU32(uint32(tag))
	}
}

// ReadTag reads a tag and returns the index of its variant. Untagged
// unions read nothing and return 0.
func (t *Discriminants) ReadTag(d *Decoder) (int, error) {
	if t.untagged {
		return 0, nil
	}
	var tag int64
	switch t.repr {
	case ReprU8:
		v, err := d.ReadU8()
		if err != nil {
			return 0, err
		}
		tag = int64(v)
	case ReprI8:
		v, err := d.ReadI8()
		if err != nil {
			return 0, err
		}
		tag = int64(v)
	case ReprU16:
		v, err := d.ReadU16()
		if err != nil {
			return 0, err
		}
		tag = int64(v)
	case ReprI16:
		v, err := d.ReadI16()
		if err != nil {
			return 0, err
		}
		tag = int64(v)
	case ReprI32:
		v, err := d.ReadI32()
		if err != nil {
			return 0, err
		}
		tag = int64(v)
	case ReprU64:
		v, err := d.ReadU64()
		if err != nil {
			return 0, err
		}
		if v > math.MaxInt64 {
			return 0, d.fail(errInvalidVariant(t.expected, strconv.FormatUint(v, 10)))
		}
		tag = int64(v)
	case ReprI64:
		v, err := d.ReadI64()
		if err != nil {
			return 0, err
		}
		tag = v
	default:
		v, err := d.ReadU32()
		if err != nil {
			return 0, err
		}
		tag = int64(v)
	}
	i, ok := t.index[tag]
	if !ok {
		return 0, d.fail(errInvalidVariant(t.expected, strconv.FormatInt(tag, 10)))
	}
	return i, nil
}
