// Package tags parses the `pack:"..."` struct tag.
package tags

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Key is the struct tag key.
const Key = "pack"

// Field is a parsed tag. The zero value means "no options".
//
//	`pack:"-"`                  skip the field
//	`pack:"skip"`               same as "-"
//	`pack:"bits=5,no_overflow"` bit-packed field, 5 bits, reject overflow
//	`pack:"len=1"`              1-byte length prefix for this container
//	`pack:"len=0"`              no length prefix; decode reads to the end
//	`pack:"tag=10"`             union variant discriminant
//	`pack:"repr=u8,untagged"`   union marker options
type Field struct {
	Skip       bool
	Bits       int
	NoOverflow bool
	Len        *int
	Tag        *int64
	Repr       string
	Untagged   bool
}

// Parse parses the tag of f.
func Parse(f reflect.StructField) (Field, error) {
	out, err := ParseString(f.Tag.Get(Key))
	if err != nil {
		return Field{}, errors.Wrapf(err, "field %s", f.Name)
	}
	return out, nil
}

// ParseString parses a raw tag value.
func ParseString(tag string) (Field, error) {
	var out Field
	if tag == "" {
		return out, nil
	}
	if tag == "-" {
		out.Skip = true
		return out, nil
	}
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		key, val, hasVal := strings.Cut(part, "=")
		switch key {
		case "":
		case "skip":
			out.Skip = true
		case "no_overflow":
			out.NoOverflow = true
		case "untagged":
			out.Untagged = true
		case "bits":
			n, err := strconv.Atoi(val)
			if !hasVal || err != nil || n <= 0 {
				return Field{}, errors.Newf("bad bit width %q", val)
			}
			out.Bits = n
		case "len":
			n, err := strconv.Atoi(val)
			if !hasVal || err != nil || n < 0 {
				return Field{}, errors.Newf("bad length width %q", val)
			}
			out.Len = &n
		case "tag":
			n, err := strconv.ParseInt(val, 0, 64)
			if !hasVal || err != nil {
				return Field{}, errors.Newf("bad variant tag %q", val)
			}
			out.Tag = &n
		case "repr":
			if !hasVal || val == "" {
				return Field{}, errors.New("repr needs a value")
			}
			out.Repr = val
		default:
			return Field{}, errors.Newf("unknown tag option %q", key)
		}
	}
	return out, nil
}
