// Package textrep implements a human-writable notation for packwire values.
// Encoding turns a sequence of literal values into wire bytes; decoding
// renders wire bytes back into the notation under a type schema.
//
//	42u32, "hi", some(7u8), list<u16>[1, 2], map<string, bool>{"a": true}
//	bits{3: 5, 5!: 19}, variant<i32>(20)("x"), x"deadbeef"
//
// Integer and float literals carry a type suffix unless the surrounding
// container annotation fixes their type. A '!' after a bit width rejects
// values that do not fit instead of truncating them.
package textrep

import (
	"encoding/hex"
	"io"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/dadrian/packwire"
)

// Encode reads a document from r and writes its wire bytes to w.
func Encode(r io.Reader, w io.Writer, cfg packwire.Config) error {
	src, err := io.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "read")
	}
	out, err := EncodeBytes(src, cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return errors.Wrap(err, "write")
}

// EncodeBytes parses a document of comma or whitespace separated values and
// returns their concatenated encoding under cfg.
func EncodeBytes(src []byte, cfg packwire.Config) ([]byte, error) {
	p := &parser{lx: newLexer(src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	e := packwire.NewEncoder(cfg)
	for p.lx.cur.kind != tokEOF {
		if err := p.encodeValue(e, nil); err != nil {
			return nil, err
		}
		if p.lx.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if p.lx.err != nil {
		return nil, p.lx.err
	}
	return e.Bytes(), nil
}

// encodeValue parses one value and writes it to e. expect is the type
// fixed by an enclosing annotation, or nil.
func (p *parser) encodeValue(e *packwire.Encoder, expect *typ) error {
	tok := p.lx.cur
	switch tok.kind {
	case tokNumber:
		if err := p.encodeNumber(e, tok.lit, expect); err != nil {
			return err
		}
		return p.advance()
	case tokString:
		if err := p.check(expect, kString); err != nil {
			return err
		}
		if err := e.WriteString(tok.lit); err != nil {
			return err
		}
		return p.advance()
	case tokChar:
		if err := p.check(expect, kChar); err != nil {
			return err
		}
		r, size := utf8.DecodeRuneInString(tok.lit)
		if size != len(tok.lit) {
			return p.errorf("char literal holds more than one rune")
		}
		if err := e.WriteChar(packwire.Char(r)); err != nil {
			return err
		}
		return p.advance()
	case tokIdent:
		return p.encodeKeyword(e, expect)
	default:
		return p.unexpected("value")
	}
}

func (p *parser) encodeKeyword(e *packwire.Encoder, expect *typ) error {
	word := p.lx.cur.lit
	switch word {
	case "true", "false":
		if err := p.check(expect, kBool); err != nil {
			return err
		}
		if err := e.WriteBool(word == "true"); err != nil {
			return err
		}
		return p.advance()
	case "x":
		if err := p.check(expect, kBytes); err != nil {
			return err
		}
		if err := p.advance(); err != nil {
			return err
		}
		if p.lx.cur.kind != tokString {
			return p.unexpected("hex string")
		}
		b, err := hex.DecodeString(p.lx.cur.lit)
		if err != nil {
			return p.wrap(err)
		}
		if err := e.WriteBytes(b); err != nil {
			return err
		}
		return p.advance()
	case "none":
		if err := p.check(expect, kOption); err != nil {
			return err
		}
		if e.Config().OptionalMode() == packwire.Tagged {
			if err := e.WriteBool(false); err != nil {
				return err
			}
		}
		return p.advance()
	case "some":
		return p.encodeSome(e, expect)
	case "list", "set":
		return p.encodeList(e, expect, word)
	case "array":
		return p.encodeArray(e, expect)
	case "tuple":
		return p.encodeTuple(e, expect)
	case "map":
		return p.encodeMap(e, expect)
	case "bits":
		return p.encodeBits(e, expect)
	case "variant":
		return p.encodeVariant(e, expect)
	default:
		return p.errorf("unknown value %q", word)
	}
}

// check fails when an enclosing annotation expects something other than k.
func (p *parser) check(expect *typ, k kind) error {
	if expect == nil || expect.kind == k {
		return nil
	}
	return p.errorf("expected %s, found %s", expect, (&typ{kind: k}).kindName())
}

func (t *typ) kindName() string {
	switch t.kind {
	case kOption:
		return "option"
	case kList:
		return "list"
	case kSet:
		return "set"
	case kArray:
		return "array"
	case kMap:
		return "map"
	case kTuple:
		return "tuple"
	case kBits:
		return "bits"
	case kVariant:
		return "variant"
	default:
		return t.kind.String()
	}
}

func (p *parser) encodeSome(e *packwire.Encoder, expect *typ) error {
	if err := p.check(expect, kOption); err != nil {
		return err
	}
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expect(tokLParen); err != nil {
		return err
	}
	if e.Config().OptionalMode() == packwire.Tagged {
		if err := e.WriteBool(true); err != nil {
			return err
		}
	}
	var elem *typ
	if expect != nil {
		elem = expect.elem
	}
	if err := p.encodeValue(e, elem); err != nil {
		return err
	}
	return p.expect(tokRParen)
}

// annotation parses an optional <T> after a container keyword and
// reconciles it with the enclosing expectation.
func (p *parser) annotation(expect *typ, k kind) (*typ, error) {
	if err := p.check(expect, k); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var fromExpect *typ
	if expect != nil {
		fromExpect = expect.elem
	}
	if p.lx.cur.kind != tokLt {
		return fromExpect, nil
	}
	elem, err := p.parseAngle1()
	if err != nil {
		return nil, err
	}
	if fromExpect != nil && fromExpect.String() != elem.String() {
		return nil, p.errorf("annotation %s conflicts with %s", elem, fromExpect)
	}
	return elem, nil
}

// encodeCounted runs body against a scratch encoder and writes the element
// count it reports as a length prefix followed by the scratch bytes.
func encodeCounted(e *packwire.Encoder, body func(*packwire.Encoder) (int, error)) error {
	scratch := packwire.NewEncoder(e.Config())
	n, err := body(scratch)
	if err != nil {
		return err
	}
	if err := e.WriteLength(n); err != nil {
		return err
	}
	return e.WriteRaw(scratch.Bytes())
}

func (p *parser) encodeList(e *packwire.Encoder, expect *typ, word string) error {
	k, open, closing := kList, tokLBrack, tokRBrack
	if word == "set" {
		k, open, closing = kSet, tokLBrace, tokRBrace
	}
	elem, err := p.annotation(expect, k)
	if err != nil {
		return err
	}
	if err := p.expect(open); err != nil {
		return err
	}
	return encodeCounted(e, func(s *packwire.Encoder) (int, error) {
		n := 0
		err := p.parseList(closing, func() error {
			n++
			return p.encodeValue(s, elem)
		})
		return n, err
	})
}

func (p *parser) encodeArray(e *packwire.Encoder, expect *typ) error {
	elem, err := p.annotation(expect, kArray)
	if err != nil {
		return err
	}
	if err := p.expect(tokLBrack); err != nil {
		return err
	}
	n := 0
	err = p.parseList(tokRBrack, func() error {
		n++
		return p.encodeValue(e, elem)
	})
	if err != nil {
		return err
	}
	if expect != nil && n != expect.n {
		return p.errorf("array of %d elements, expected %d", n, expect.n)
	}
	return nil
}

func (p *parser) encodeTuple(e *packwire.Encoder, expect *typ) error {
	if err := p.check(expect, kTuple); err != nil {
		return err
	}
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expect(tokLParen); err != nil {
		return err
	}
	return p.encodeFields(e, expect)
}

// encodeFields parses values up to ')' and writes them in order. When
// shape is a tuple type, the values must match its items.
func (p *parser) encodeFields(e *packwire.Encoder, shape *typ) error {
	i := 0
	err := p.parseList(tokRParen, func() error {
		var item *typ
		if shape != nil {
			if i >= len(shape.items) {
				return p.errorf("too many values for %s", shape)
			}
			item = shape.items[i]
		}
		i++
		return p.encodeValue(e, item)
	})
	if err != nil {
		return err
	}
	if shape != nil && i != len(shape.items) {
		return p.errorf("%d values for %s", i, shape)
	}
	return nil
}

func (p *parser) encodeMap(e *packwire.Encoder, expect *typ) error {
	if err := p.check(expect, kMap); err != nil {
		return err
	}
	if err := p.advance(); err != nil {
		return err
	}
	var key, val *typ
	if expect != nil {
		key, val = expect.key, expect.val
	}
	if p.lx.cur.kind == tokLt {
		k, v, err := p.parseAngle2()
		if err != nil {
			return err
		}
		if expect != nil && (k.String() != key.String() || v.String() != val.String()) {
			return p.errorf("annotation map<%s, %s> conflicts with %s", k, v, expect)
		}
		key, val = k, v
	}
	if err := p.expect(tokLBrace); err != nil {
		return err
	}
	// entries are written in the order given
	return encodeCounted(e, func(s *packwire.Encoder) (int, error) {
		n := 0
		err := p.parseList(tokRBrace, func() error {
			n++
			if err := p.encodeValue(s, key); err != nil {
				return err
			}
			if err := p.expect(tokColon); err != nil {
				return err
			}
			return p.encodeValue(s, val)
		})
		return n, err
	})
}

func (p *parser) encodeBits(e *packwire.Encoder, expect *typ) error {
	if err := p.check(expect, kBits); err != nil {
		return err
	}
	if err := p.advance(); err != nil {
		return err
	}
	if err := p.expect(tokLBrace); err != nil {
		return err
	}
	w := packwire.NewBitWriter(e)
	i := 0
	err := p.parseList(tokRBrace, func() error {
		width, err := p.parseWidth()
		if err != nil {
			return err
		}
		if expect != nil && (i >= len(expect.widths) || expect.widths[i] != width) {
			return p.errorf("bit width %d does not match %s", width, expect)
		}
		i++
		policy := packwire.Truncate
		if p.lx.cur.kind == tokBang {
			policy = packwire.Reject
			if err := p.advance(); err != nil {
				return err
			}
		}
		if err := p.expect(tokColon); err != nil {
			return err
		}
		v, err := p.parseUnsigned()
		if err != nil {
			return err
		}
		if err := w.WriteBits(v, packwire.NewBitField(width, policy)); err != nil {
			return p.wrap(err)
		}
		return p.advance()
	})
	if err != nil {
		return err
	}
	if expect != nil && i != len(expect.widths) {
		return p.errorf("%d bit fields for %s", i, expect)
	}
	return w.Flush()
}

func (p *parser) parseUnsigned() (packwire.U128, error) {
	if p.lx.cur.kind != tokNumber {
		return packwire.U128{}, p.unexpected("number")
	}
	b, ok := new(big.Int).SetString(p.lx.cur.lit, 0)
	if !ok {
		return packwire.U128{}, p.errorf("invalid number %q", p.lx.cur.lit)
	}
	v, ok := packwire.U128FromBig(b)
	if !ok {
		return packwire.U128{}, p.errorf("%s is not an unsigned 128-bit value", p.lx.cur.lit)
	}
	return v, nil
}

// encodeVariant parses variant<REPR>(TAG)(fields...), or
// variant<untagged>(fields...).
func (p *parser) encodeVariant(e *packwire.Encoder, expect *typ) error {
	if err := p.check(expect, kVariant); err != nil {
		return err
	}
	if err := p.advance(); err != nil {
		return err
	}
	repr, untagged, err := p.parseRepr()
	if err != nil {
		return err
	}
	var tag int64
	if !untagged {
		if err := p.expect(tokLParen); err != nil {
			return err
		}
		if tag, err = p.parseTag(); err != nil {
			return err
		}
		if err := p.expect(tokRParen); err != nil {
			return err
		}
	}

	var (
		disc    *packwire.Discriminants
		payload *typ
		idx     int
	)
	if expect != nil {
		disc = expect.disc
		if disc.Untagged() != untagged || (!untagged && disc.Repr() != repr) {
			return p.errorf("variant<%s> conflicts with %s", reprOf(repr, untagged), expect)
		}
		if !untagged {
			var ok bool
			if idx, ok = disc.Index(tag); !ok {
				return p.wrap(&packwire.Error{
					Kind:     packwire.KindInvalidVariant,
					Expected: disc.Expected(),
					Found:    strconv.FormatInt(tag, 10),
				})
			}
		}
		payload = expect.items[idx]
	} else {
		spec := packwire.VariantSpec{Name: "value", Tag: &tag}
		if untagged {
			disc, err = packwire.NewUntaggedDiscriminants(spec)
		} else {
			disc, err = packwire.NewDiscriminants(repr, spec)
		}
		if err != nil {
			return p.wrap(err)
		}
	}
	if err := disc.WriteTag(e, idx); err != nil {
		return err
	}
	if err := p.expect(tokLParen); err != nil {
		return err
	}
	if payload != nil && payload.kind != kTuple {
		if err := p.encodeValue(e, payload); err != nil {
			return err
		}
		return p.expect(tokRParen)
	}
	return p.encodeFields(e, payload)
}

func reprOf(repr packwire.Repr, untagged bool) string {
	if untagged {
		return "untagged"
	}
	return repr.String()
}

var suffixes = []string{"u128", "i128", "u16", "u32", "u64", "i16", "i32", "i64", "f32", "f64", "u8", "i8"}

// splitSuffix separates a number literal from its type suffix. Hex
// literals never take a float suffix.
func splitSuffix(lit string) (string, kind, bool) {
	hexLit := strings.HasPrefix(strings.TrimPrefix(lit, "-"), "0x") || strings.HasPrefix(strings.TrimPrefix(lit, "-"), "0X")
	for _, s := range suffixes {
		if !strings.HasSuffix(lit, s) || len(lit) == len(s) {
			continue
		}
		if hexLit && s[0] == 'f' {
			continue
		}
		return lit[:len(lit)-len(s)], scalarNames[s], true
	}
	return lit, 0, false
}

func (p *parser) encodeNumber(e *packwire.Encoder, lit string, expect *typ) error {
	num, k, ok := splitSuffix(lit)
	switch {
	case ok && expect != nil && expect.kind != k:
		return p.errorf("expected %s, found %s", expect, lit)
	case !ok && expect == nil:
		return p.errorf("number %s needs a type suffix", lit)
	case !ok:
		k = expect.kind
		if !k.isInteger() && !k.isFloat() {
			return p.errorf("expected %s, found number %s", expect, lit)
		}
	}
	if k.isFloat() {
		bits := 64
		if k == kF32 {
			bits = 32
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(num, "_", ""), bits)
		if err != nil {
			return p.wrap(err)
		}
		if k == kF32 {
			return e.WriteF32(float32(f))
		}
		return e.WriteF64(f)
	}
	b, valid := new(big.Int).SetString(num, 0)
	if !valid {
		return p.errorf("invalid integer %q", num)
	}
	if !fitsInt(b, k) {
		return p.errorf("%s out of range for %s", num, k)
	}
	return writeInt(e, b, k)
}

func fitsInt(b *big.Int, k kind) bool {
	n := k.intBits()
	if !k.isSigned() {
		return b.Sign() >= 0 && b.BitLen() <= n
	}
	limit := new(big.Int).Lsh(big.NewInt(1), uint(n-1))
	if b.Sign() >= 0 {
		return b.Cmp(limit) < 0
	}
	return new(big.Int).Neg(b).Cmp(limit) <= 0
}

// writeInt writes b, which fitsInt has checked, as kind k.
func writeInt(e *packwire.Encoder, b *big.Int, k kind) error {
	switch k {
	case kU8:
		return e.WriteU8(uint8(b.Uint64()))
	case kU16:
		return e.WriteU16(uint16(b.Uint64()))
	case kU32:
		return e.WriteU32(uint32(b.Uint64()))
	case kU64:
		return e.WriteU64(b.Uint64())
	case kU128:
		v, _ := packwire.U128FromBig(b)
		return e.WriteU128(v)
	case kI8:
		return e.WriteI8(int8(b.Int64()))
	case kI16:
		return e.WriteI16(int16(b.Int64()))
	case kI32:
		return e.WriteI32(int32(b.Int64()))
	case kI64:
		return e.WriteI64(b.Int64())
	default:
		v, _ := packwire.I128FromBig(b)
		return e.WriteI128(v)
	}
}
