package textrep

import (
	"strconv"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber // digits with an optional type suffix, e.g. 42u32 or -1.5f64
	tokString
	tokChar
	// symbols
	tokEq     // =
	tokColon  // :
	tokComma  // ,
	tokBang   // !
	tokLBrace // {
	tokRBrace // }
	tokLBrack // [
	tokRBrack // ]
	tokLParen // (
	tokRParen // )
	tokLt     // <
	tokGt     // >
)

var tokNames = [...]string{
	tokEOF:    "end of input",
	tokIdent:  "identifier",
	tokNumber: "number",
	tokString: "string",
	tokChar:   "char",
	tokEq:     "'='",
	tokColon:  "':'",
	tokComma:  "','",
	tokBang:   "'!'",
	tokLBrace: "'{'",
	tokRBrace: "'}'",
	tokLBrack: "'['",
	tokRBrack: "']'",
	tokLParen: "'('",
	tokRParen: "')'",
	tokLt:     "'<'",
	tokGt:     "'>'",
}

func (k tokKind) String() string { return tokNames[k] }

type token struct {
	kind tokKind
	lit  string // unquoted for strings and chars
	off  int
}

type lexer struct {
	src []byte
	off int
	cur token
	err error
}

func newLexer(src []byte) *lexer { return &lexer{src: src} }

var symbols = map[byte]tokKind{
	'=': tokEq,
	':': tokColon,
	',': tokComma,
	'!': tokBang,
	'{': tokLBrace,
	'}': tokRBrace,
	'[': tokLBrack,
	']': tokRBrack,
	'(': tokLParen,
	')': tokRParen,
	'<': tokLt,
	'>': tokGt,
}

// next advances to the following token. After a lexical error cur is EOF
// and err is set.
func (lx *lexer) next() {
	lx.skipSpaceAndComments()
	start := lx.off
	if lx.off >= len(lx.src) {
		lx.cur = token{kind: tokEOF, off: start}
		return
	}
	b := lx.src[lx.off]
	switch {
	case isIdentStart(b):
		lx.off++
		for lx.off < len(lx.src) && isIdentPart(lx.src[lx.off]) {
			lx.off++
		}
		lx.cur = token{kind: tokIdent, lit: string(lx.src[start:lx.off]), off: start}
	case isDigit(b) || (b == '-' && lx.peekIsDigit()):
		lx.off++
		hex := lx.off < len(lx.src) && (lx.src[lx.off] == 'x' || lx.src[lx.off] == 'X')
		for lx.off < len(lx.src) && lx.isNumberPart(hex) {
			lx.off++
		}
		lx.cur = token{kind: tokNumber, lit: string(lx.src[start:lx.off]), off: start}
	case b == '"' || b == '\'':
		s, n, err := scanQuoted(lx.src[lx.off:], b)
		if err != nil {
			lx.fail(start, err)
			return
		}
		kind := tokString
		if b == '\'' {
			kind = tokChar
		}
		lx.off += n
		lx.cur = token{kind: kind, lit: s, off: start}
	default:
		kind, ok := symbols[b]
		if !ok {
			lx.fail(start, errors.Newf("unexpected char %q", b))
			return
		}
		lx.off++
		lx.cur = token{kind: kind, lit: string(b), off: start}
	}
}

func (lx *lexer) fail(off int, err error) {
	lx.err = errors.Wrapf(err, "offset %d", off)
	lx.off = len(lx.src)
	lx.cur = token{kind: tokEOF, off: off}
}

// isNumberPart accepts digits, letters (hex digits and suffixes), '_' and
// '.', plus a sign directly after a decimal exponent marker.
func (lx *lexer) isNumberPart(hex bool) bool {
	b := lx.src[lx.off]
	if isIdentPart(b) || b == '.' {
		return true
	}
	if (b == '+' || b == '-') && !hex {
		prev := lx.src[lx.off-1]
		return prev == 'e' || prev == 'E'
	}
	return false
}

func (lx *lexer) skipSpaceAndComments() {
	for lx.off < len(lx.src) {
		b := lx.src[lx.off]
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			lx.off++
			continue
		}
		// line comments: # or //
		if b == '#' || (b == '/' && lx.off+1 < len(lx.src) && lx.src[lx.off+1] == '/') {
			for lx.off < len(lx.src) && lx.src[lx.off] != '\n' {
				lx.off++
			}
			continue
		}
		break
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

func isIdentPart(b byte) bool { return isIdentStart(b) || isDigit(b) }
func isDigit(b byte) bool     { return '0' <= b && b <= '9' }

func (lx *lexer) peekIsDigit() bool {
	if lx.off+1 >= len(lx.src) {
		return false
	}
	return isDigit(lx.src[lx.off+1])
}

// scanQuoted scans a Go-style quoted literal starting at src[0] == quote and
// returns its unquoted value and encoded length.
func scanQuoted(src []byte, quote byte) (string, int, error) {
	i := 1
	for i < len(src) {
		c := src[i]
		switch {
		case c == quote:
			i++
			s, err := strconv.Unquote(string(src[:i]))
			if err != nil {
				return "", 0, errors.Wrapf(err, "literal %s", src[:i])
			}
			return s, i, nil
		case c == '\\':
			i += 2
		case c == '\n':
			return "", 0, errors.New("newline in literal")
		case c < utf8.RuneSelf:
			i++
		default:
			_, size := utf8.DecodeRune(src[i:])
			i += size
		}
	}
	return "", 0, errors.New("unterminated literal")
}
