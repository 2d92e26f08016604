package textrep

import (
	"github.com/cockroachdb/errors"
)

// parser holds the shared token plumbing of the value and schema grammars.
type parser struct {
	lx *lexer
}

func (p *parser) advance() error {
	p.lx.next()
	return p.lx.err
}

func (p *parser) expect(k tokKind) error {
	if p.lx.cur.kind != k {
		return p.unexpected(k.String())
	}
	return p.advance()
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.Wrapf(errors.Newf(format, args...), "offset %d", p.lx.cur.off)
}

func (p *parser) wrap(err error) error {
	return errors.Wrapf(err, "offset %d", p.lx.cur.off)
}

func (p *parser) unexpected(want string) error {
	if p.lx.err != nil {
		return p.lx.err
	}
	found := p.lx.cur.kind.String()
	if p.lx.cur.kind == tokIdent || p.lx.cur.kind == tokNumber {
		found += " " + p.lx.cur.lit
	}
	return p.errorf("expected %s, found %s", want, found)
}

// parseList calls item for each comma separated element up to and
// including the closing token. A trailing comma is allowed.
func (p *parser) parseList(closing tokKind, item func() error) error {
	for p.lx.cur.kind != closing {
		if err := item(); err != nil {
			return err
		}
		if p.lx.cur.kind == tokComma {
			if err := p.advance(); err != nil {
				return err
			}
			continue
		}
		if p.lx.cur.kind != closing {
			return p.unexpected(closing.String())
		}
	}
	return p.advance()
}
