package textrep

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/dadrian/packwire"
)

type kind int

const (
	kBool kind = iota
	kU8
	kU16
	kU32
	kU64
	kU128
	kI8
	kI16
	kI32
	kI64
	kI128
	kF32
	kF64
	kChar
	kString
	kBytes
	kOption
	kList
	kSet
	kArray
	kMap
	kTuple
	kBits
	kVariant
)

var scalarNames = map[string]kind{
	"bool":   kBool,
	"u8":     kU8,
	"u16":    kU16,
	"u32":    kU32,
	"u64":    kU64,
	"u128":   kU128,
	"i8":     kI8,
	"i16":    kI16,
	"i32":    kI32,
	"i64":    kI64,
	"i128":   kI128,
	"f32":    kF32,
	"f64":    kF64,
	"char":   kChar,
	"string": kString,
	"bytes":  kBytes,
}

var kindNames = func() map[kind]string {
	m := make(map[kind]string, len(scalarNames))
	for name, k := range scalarNames {
		m[k] = name
	}
	return m
}()

func (k kind) String() string { return kindNames[k] }

func (k kind) isInteger() bool { return k >= kU8 && k <= kI128 }
func (k kind) isFloat() bool   { return k == kF32 || k == kF64 }
func (k kind) isSigned() bool  { return k >= kI8 && k <= kI128 }

// intBits returns the width of an integer kind.
func (k kind) intBits() int {
	switch k {
	case kU8, kI8:
		return 8
	case kU16, kI16:
		return 16
	case kU32, kI32:
		return 32
	case kU64, kI64:
		return 64
	default:
		return 128
	}
}

// typ is one node of a parsed schema.
type typ struct {
	kind   kind
	elem   *typ   // option, list, set, array
	key    *typ   // map
	val    *typ   // map
	items  []*typ // tuple items, variant payloads
	n      int    // array length
	widths []int  // bit run
	disc   *packwire.Discriminants
}

func (t *typ) String() string {
	switch t.kind {
	case kOption:
		return "option<" + t.elem.String() + ">"
	case kList:
		return "list<" + t.elem.String() + ">"
	case kSet:
		return "set<" + t.elem.String() + ">"
	case kArray:
		return "array<" + t.elem.String() + ", " + strconv.Itoa(t.n) + ">"
	case kMap:
		return "map<" + t.key.String() + ", " + t.val.String() + ">"
	case kTuple:
		parts := make([]string, len(t.items))
		for i, it := range t.items {
			parts[i] = it.String()
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case kBits:
		parts := make([]string, len(t.widths))
		for i, w := range t.widths {
			parts[i] = strconv.Itoa(w)
		}
		return "bits<" + strings.Join(parts, ", ") + ">"
	case kVariant:
		parts := make([]string, len(t.items))
		for i, it := range t.items {
			if t.disc.Untagged() {
				parts[i] = it.String()
			} else {
				parts[i] = strconv.FormatInt(t.disc.TagOf(i), 10) + " = " + it.String()
			}
		}
		return "variant<" + reprName(t.disc) + ">{" + strings.Join(parts, ", ") + "}"
	default:
		return t.kind.String()
	}
}

func reprName(d *packwire.Discriminants) string {
	if d.Untagged() {
		return "untagged"
	}
	return d.Repr().String()
}

// parseSchema parses a comma separated list of types.
func parseSchema(src string) ([]*typ, error) {
	p := &parser{lx: newLexer([]byte(src))}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var out []*typ
	for p.lx.cur.kind != tokEOF {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		if p.lx.cur.kind != tokEOF {
			if err := p.expect(tokComma); err != nil {
				return nil, err
			}
		}
	}
	if p.lx.err != nil {
		return nil, p.lx.err
	}
	if len(out) == 0 {
		return nil, errors.New("empty schema")
	}
	return out, nil
}

func (p *parser) parseType() (*typ, error) {
	if p.lx.cur.kind != tokIdent {
		return nil, p.unexpected("type")
	}
	name := p.lx.cur.lit
	if k, ok := scalarNames[name]; ok {
		return &typ{kind: k}, p.advance()
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch name {
	case "option", "list", "set":
		elem, err := p.parseAngle1()
		if err != nil {
			return nil, err
		}
		k := map[string]kind{"option": kOption, "list": kList, "set": kSet}[name]
		return &typ{kind: k, elem: elem}, nil
	case "array":
		if err := p.expect(tokLt); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokComma); err != nil {
			return nil, err
		}
		n, err := p.parseSize()
		if err != nil {
			return nil, err
		}
		return &typ{kind: kArray, elem: elem, n: n}, p.expect(tokGt)
	case "map":
		k, v, err := p.parseAngle2()
		if err != nil {
			return nil, err
		}
		return &typ{kind: kMap, key: k, val: v}, nil
	case "tuple":
		if err := p.expect(tokLt); err != nil {
			return nil, err
		}
		t := &typ{kind: kTuple}
		err := p.parseList(tokGt, func() error {
			it, err := p.parseType()
			t.items = append(t.items, it)
			return err
		})
		return t, err
	case "bits":
		if err := p.expect(tokLt); err != nil {
			return nil, err
		}
		t := &typ{kind: kBits}
		err := p.parseList(tokGt, func() error {
			w, err := p.parseWidth()
			t.widths = append(t.widths, w)
			return err
		})
		if err == nil && len(t.widths) == 0 {
			err = p.errorf("bits<> needs at least one width")
		}
		return t, err
	case "variant":
		return p.parseVariantType()
	default:
		return nil, p.errorf("unknown type %q", name)
	}
}

// parseVariantType parses variant<REPR>{[TAG =] T, ...} after the keyword.
func (p *parser) parseVariantType() (*typ, error) {
	repr, untagged, err := p.parseRepr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(tokLBrace); err != nil {
		return nil, err
	}
	t := &typ{kind: kVariant}
	var specs []packwire.VariantSpec
	err = p.parseList(tokRBrace, func() error {
		var spec packwire.VariantSpec
		if p.lx.cur.kind == tokNumber {
			tag, err := p.parseTag()
			if err != nil {
				return err
			}
			spec.Tag = &tag
			if err := p.expect(tokEq); err != nil {
				return err
			}
		}
		it, err := p.parseType()
		if err != nil {
			return err
		}
		spec.Name = it.String()
		specs = append(specs, spec)
		t.items = append(t.items, it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if untagged {
		t.disc, err = packwire.NewUntaggedDiscriminants(specs...)
	} else {
		t.disc, err = packwire.NewDiscriminants(repr, specs...)
	}
	if err != nil {
		return nil, errors.Wrap(err, "variant")
	}
	return t, nil
}

// parseRepr parses <REPR> where REPR is an integer type name or "untagged".
func (p *parser) parseRepr() (packwire.Repr, bool, error) {
	if err := p.expect(tokLt); err != nil {
		return 0, false, err
	}
	if p.lx.cur.kind != tokIdent {
		return 0, false, p.unexpected("discriminant repr")
	}
	name := p.lx.cur.lit
	var repr packwire.Repr
	untagged := name == "untagged"
	if !untagged {
		var err error
		if repr, err = packwire.ParseRepr(name); err != nil {
			return 0, false, p.wrap(err)
		}
	}
	if err := p.advance(); err != nil {
		return 0, false, err
	}
	return repr, untagged, p.expect(tokGt)
}

func (p *parser) parseAngle1() (*typ, error) {
	if err := p.expect(tokLt); err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return t, p.expect(tokGt)
}

func (p *parser) parseAngle2() (*typ, *typ, error) {
	if err := p.expect(tokLt); err != nil {
		return nil, nil, err
	}
	k, err := p.parseType()
	if err != nil {
		return nil, nil, err
	}
	if err := p.expect(tokComma); err != nil {
		return nil, nil, err
	}
	v, err := p.parseType()
	if err != nil {
		return nil, nil, err
	}
	return k, v, p.expect(tokGt)
}

// parseSize parses a plain non-negative decimal number.
func (p *parser) parseSize() (int, error) {
	if p.lx.cur.kind != tokNumber {
		return 0, p.unexpected("number")
	}
	n, err := strconv.Atoi(p.lx.cur.lit)
	if err != nil || n < 0 {
		return 0, p.errorf("invalid size %q", p.lx.cur.lit)
	}
	return n, p.advance()
}

func (p *parser) parseWidth() (int, error) {
	w, err := p.parseSize()
	if err != nil {
		return 0, err
	}
	if w < 1 || w > packwire.MaxBitWidth {
		return 0, p.errorf("bit width %d outside 1..%d", w, packwire.MaxBitWidth)
	}
	return w, nil
}

// parseTag parses a signed discriminant without a type suffix.
func (p *parser) parseTag() (int64, error) {
	if p.lx.cur.kind != tokNumber {
		return 0, p.unexpected("tag")
	}
	tag, err := strconv.ParseInt(p.lx.cur.lit, 0, 64)
	if err != nil {
		return 0, p.errorf("invalid tag %q", p.lx.cur.lit)
	}
	return tag, p.advance()
}
