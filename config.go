package packwire

import (
	"fmt"
	"strconv"
)

// ByteOrder selects how multi-byte integers and floats are laid out.
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (o ByteOrder) String() string {
	if o == BigEndian {
		return "big"
	}
	return "little"
}

// OptionalMode selects how optional values are framed.
type OptionalMode int

const (
	// Tagged prefixes every optional value with a presence byte (0 or 1).
	Tagged OptionalMode = iota
	// Untagged writes the payload only when present and nothing otherwise.
	// Decoding always attempts the payload, so an absent value cannot be
	// recovered from the wire without outside knowledge.
	Untagged
)

func (m OptionalMode) String() string {
	if m == Untagged {
		return "untagged"
	}
	return "tagged"
}

// Config is the set of wire strategies shared by one encode or decode
// session. The producer and the consumer must agree on it out of band;
// nothing about it is recorded on the wire.
type Config struct {
	order       ByteOrder
	optional    OptionalMode
	lengthWidth int
	limit       int
	hasLimit    bool
}

// Option configures a Config. Options validate their arguments eagerly and
// panic on misuse, so an invalid Config can never reach an encoder.
type Option = func(*Config)

// DefaultConfig returns little-endian, tagged optionals, 4-byte container
// lengths and no size limit.
func DefaultConfig() Config {
	return Config{
		order:       LittleEndian,
		optional:    Tagged,
		lengthWidth: 4,
	}
}

// NewConfig applies opts on top of DefaultConfig.
func NewConfig(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// With returns a copy of c with opts applied.
func (c Config) With(opts ...Option) Config {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func WithByteOrder(order ByteOrder) Option {
	if order != LittleEndian && order != BigEndian {
		panic("packwire: unknown byte order " + strconv.Itoa(int(order)))
	}
	return func(c *Config) {
		c.order = order
	}
}

func WithBigEndian() Option    { return WithByteOrder(BigEndian) }
func WithLittleEndian() Option { return WithByteOrder(LittleEndian) }

func WithOptionalMode(mode OptionalMode) Option {
	if mode != Tagged && mode != Untagged {
		panic("packwire: unknown optional mode " + strconv.Itoa(int(mode)))
	}
	return func(c *Config) {
		c.optional = mode
	}
}

func WithTaggedOptional() Option   { return WithOptionalMode(Tagged) }
func WithUntaggedOptional() Option { return WithOptionalMode(Untagged) }

// WithLengthWidth sets the byte width of container length prefixes.
// Only 1, 2, 4, 8 and 16 are accepted.
func WithLengthWidth(width int) Option {
	if !ValidLengthWidth(width) {
		panic("packwire: unsupported container length width " + strconv.Itoa(width))
	}
	return func(c *Config) {
		c.lengthWidth = width
	}
}

// WithLimit caps the encoded size in bytes. The check runs after each
// write, so a single write may carry the buffer past the limit before the
// error is reported.
func WithLimit(limit int) Option {
	if limit < 0 {
		panic("packwire: limit can't be < 0")
	}
	return func(c *Config) {
		c.limit = limit
		c.hasLimit = true
	}
}

func WithNoLimit() Option {
	return func(c *Config) {
		c.limit = 0
		c.hasLimit = false
	}
}

// ValidLengthWidth reports whether width is an accepted container length width.
func ValidLengthWidth(width int) bool {
	switch width {
	case 1, 2, 4, 8, 16:
		return true
	default:
		return false
	}
}

func (c Config) ByteOrder() ByteOrder       { return c.order }
func (c Config) OptionalMode() OptionalMode { return c.optional }

// LengthWidth returns the container length width in bytes.
func (c Config) LengthWidth() int {
	if c.lengthWidth == 0 {
		// zero Config behaves like DefaultConfig
		return 4
	}
	return c.lengthWidth
}

// Limit returns the size limit and whether one is set.
func (c Config) Limit() (int, bool) { return c.limit, c.hasLimit }

func (c Config) String() string {
	limit := "none"
	if c.hasLimit {
		limit = strconv.Itoa(c.limit)
	}
	return fmt.Sprintf("order=%s optional=%s length=%d limit=%s", c.order, c.optional, c.LengthWidth(), limit)
}
