package textrep

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dadrian/packwire"
)

// DecodeBytes decodes data as the comma separated types in schema and
// renders the values in the notation EncodeBytes accepts. Every byte of
// data must be consumed.
func DecodeBytes(schema string, data []byte, cfg packwire.Config) (string, error) {
	types, err := parseSchema(schema)
	if err != nil {
		return "", errors.Wrap(err, "schema")
	}
	d := packwire.NewDecoder(data, cfg)
	var sb strings.Builder
	for i, t := range types {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := render(&sb, d, t, false); err != nil {
			return "", errors.Wrapf(err, "value %d (%s)", i, t)
		}
	}
	if n := d.Remaining(); n > 0 {
		return "", errors.Newf("%d trailing bytes after offset %d", n, d.Consumed())
	}
	return sb.String(), nil
}

// render reads one value of type t and appends its notation. typed reports
// whether an enclosing annotation already fixes scalar types, in which case
// numbers are written without a suffix.
func render(sb *strings.Builder, d *packwire.Decoder, t *typ, typed bool) error {
	switch {
	case t.kind.isInteger():
		return renderInt(sb, d, t.kind, typed)
	case t.kind.isFloat():
		return renderFloat(sb, d, t.kind, typed)
	}
	switch t.kind {
	case kBool:
		v, err := d.ReadBool()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatBool(v))
	case kChar:
		c, err := d.ReadChar()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.QuoteRune(rune(c)))
	case kString:
		s, err := d.ReadString()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.Quote(s))
	case kBytes:
		b, err := d.ReadBytes()
		if err != nil {
			return err
		}
		sb.WriteString(`x"` + hex.EncodeToString(b) + `"`)
	case kOption:
		present := true
		if d.Config().OptionalMode() == packwire.Tagged {
			var err error
			if present, err = d.ReadBool(); err != nil {
				return err
			}
		}
		if !present {
			sb.WriteString("none")
			return nil
		}
		sb.WriteString("some(")
		if err := render(sb, d, t.elem, typed); err != nil {
			return err
		}
		sb.WriteByte(')')
	case kList, kSet:
		n, err := d.ReadLength()
		if err != nil {
			return err
		}
		open, closing := "[", "]"
		if t.kind == kSet {
			open, closing = "{", "}"
		}
		sb.WriteString(t.kindName() + "<" + t.elem.String() + ">" + open)
		if err := renderRun(sb, d, n, t.elem); err != nil {
			return err
		}
		sb.WriteString(closing)
	case kArray:
		sb.WriteString("array<" + t.elem.String() + ">[")
		if err := renderRun(sb, d, t.n, t.elem); err != nil {
			return err
		}
		sb.WriteByte(']')
	case kTuple:
		sb.WriteString("tuple(")
		if err := renderItems(sb, d, t.items, typed); err != nil {
			return err
		}
		sb.WriteByte(')')
	case kMap:
		return renderMap(sb, d, t)
	case kBits:
		return renderBits(sb, d, t)
	case kVariant:
		return renderVariant(sb, d, t, typed)
	default:
		return errors.Newf("unsupported type %s", t)
	}
	return nil
}

func renderInt(sb *strings.Builder, d *packwire.Decoder, k kind, typed bool) error {
	var s string
	switch k {
	case kU8:
		v, err := d.ReadU8()
		if err != nil {
			return err
		}
		s = strconv.FormatUint(uint64(v), 10)
	case kU16:
		v, err := d.ReadU16()
		if err != nil {
			return err
		}
		s = strconv.FormatUint(uint64(v), 10)
	case kU32:
		v, err := d.ReadU32()
		if err != nil {
			return err
		}
		s = strconv.FormatUint(uint64(v), 10)
	case kU64:
		v, err := d.ReadU64()
		if err != nil {
			return err
		}
		s = strconv.FormatUint(v, 10)
	case kU128:
		v, err := d.ReadU128()
		if err != nil {
			return err
		}
		s = v.String()
	case kI8:
		v, err := d.ReadI8()
		if err != nil {
			return err
		}
		s = strconv.FormatInt(int64(v), 10)
	case kI16:
		v, err := d.ReadI16()
		if err != nil {
			return err
		}
		s = strconv.FormatInt(int64(v), 10)
	case kI32:
		v, err := d.ReadI32()
		if err != nil {
			return err
		}
		s = strconv.FormatInt(int64(v), 10)
	case kI64:
		v, err := d.ReadI64()
		if err != nil {
			return err
		}
		s = strconv.FormatInt(v, 10)
	default:
		v, err := d.ReadI128()
		if err != nil {
			return err
		}
		s = v.String()
	}
	sb.WriteString(s)
	if !typed {
		sb.WriteString(k.String())
	}
	return nil
}

func renderFloat(sb *strings.Builder, d *packwire.Decoder, k kind, typed bool) error {
	if k == kF32 {
		v, err := d.ReadF32()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatFloat(float64(v), 'g', -1, 32))
	} else {
		v, err := d.ReadF64()
		if err != nil {
			return err
		}
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	if !typed {
		sb.WriteString(k.String())
	}
	return nil
}

// renderRun renders n elements of elem, which an annotation has typed.
func renderRun(sb *strings.Builder, d *packwire.Decoder, n int, elem *typ) error {
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := render(sb, d, elem, true); err != nil {
			return err
		}
	}
	return nil
}

func renderItems(sb *strings.Builder, d *packwire.Decoder, items []*typ, typed bool) error {
	for i, it := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := render(sb, d, it, typed); err != nil {
			return err
		}
	}
	return nil
}

func renderMap(sb *strings.Builder, d *packwire.Decoder, t *typ) error {
	n, err := d.ReadLength()
	if err != nil {
		return err
	}
	sb.WriteString("map<" + t.key.String() + ", " + t.val.String() + ">{")
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		if err := render(sb, d, t.key, true); err != nil {
			return err
		}
		sb.WriteString(": ")
		if err := render(sb, d, t.val, true); err != nil {
			return err
		}
	}
	sb.WriteByte('}')
	return nil
}

func renderBits(sb *strings.Builder, d *packwire.Decoder, t *typ) error {
	r := packwire.NewBitReader(d)
	sb.WriteString("bits{")
	for i, w := range t.widths {
		v, err := r.ReadBits(packwire.NewBitField(w, packwire.Truncate))
		if err != nil {
			return err
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.Itoa(w) + ": " + v.String())
	}
	r.Finish()
	sb.WriteByte('}')
	return nil
}

func renderVariant(sb *strings.Builder, d *packwire.Decoder, t *typ, typed bool) error {
	i, err := t.disc.ReadTag(d)
	if err != nil {
		return err
	}
	sb.WriteString("variant<" + reprName(t.disc) + ">")
	if !t.disc.Untagged() {
		sb.WriteString("(" + strconv.FormatInt(t.disc.TagOf(i), 10) + ")")
	}
	sb.WriteByte('(')
	payload := t.items[i]
	if payload.kind == kTuple {
		err = renderItems(sb, d, payload.items, typed)
	} else {
		err = render(sb, d, payload, typed)
	}
	if err != nil {
		return err
	}
	sb.WriteByte(')')
	return nil
}
