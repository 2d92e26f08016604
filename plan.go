package packwire

import (
	"bytes"
	"cmp"
	"reflect"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dadrian/packwire/internal/tags"
	"github.com/dadrian/packwire/internal/wire"
)

type (
	encodeFn func(e *Encoder, v reflect.Value) error
	// decodeFn fills v, which is always addressable.
	decodeFn func(d *Decoder, v reflect.Value) error
)

// typePlan is the compiled codec for one Go type.
type typePlan struct {
	typ reflect.Type
	enc encodeFn
	dec decodeFn
}

// encode and decode go through the plan pointer so that a recursive type
// can refer to its own plan before compilation finishes.
func (p *typePlan) encode(e *Encoder, v reflect.Value) error { return p.enc(e, v) }
func (p *typePlan) decode(d *Decoder, v reflect.Value) error { return p.dec(d, v) }

var plans sync.Map // reflect.Type -> *typePlan

var (
	valueEncoderType = reflect.TypeOf((*ValueEncoder)(nil)).Elem()
	valueDecoderType = reflect.TypeOf((*ValueDecoder)(nil)).Elem()
	u128Type         = reflect.TypeOf(U128{})
	i128Type         = reflect.TypeOf(I128{})
	charType         = reflect.TypeOf(Char(0))
	unionType        = reflect.TypeOf(Union{})
)

// planFor returns the cached plan for t, compiling it on first use. Tag
// and type errors surface here, before any byte is read or written.
func planFor(t reflect.Type) (*typePlan, error) {
	if p, ok := plans.Load(t); ok {
		return p.(*typePlan), nil
	}
	c := &planCompiler{seen: make(map[reflect.Type]*typePlan)}
	p, err := c.compile(t)
	if err != nil {
		return nil, err
	}
	for typ, sub := range c.seen {
		plans.LoadOrStore(typ, sub)
	}
	Logger().Debug("compiled type plan",
		zap.Stringer("type", t),
		zap.Int("types", len(c.seen)))
	return p, nil
}

type planCompiler struct {
	seen map[reflect.Type]*typePlan
}

func (c *planCompiler) compile(t reflect.Type) (*typePlan, error) {
	if p, ok := plans.Load(t); ok {
		return p.(*typePlan), nil
	}
	if p, ok := c.seen[t]; ok {
		return p, nil
	}
	p := &typePlan{typ: t}
	c.seen[t] = p
	var err error
	if p.enc, p.dec, err = c.build(t); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *planCompiler) build(t reflect.Type) (encodeFn, decodeFn, error) {
	switch t {
	case u128Type, i128Type:
		return encodeU128, decodeU128, nil
	case charType:
		return encodeChar, decodeChar, nil
	}
	if t.Kind() != reflect.Pointer {
		pt := reflect.PointerTo(t)
		if pt.Implements(valueEncoderType) && pt.Implements(valueDecoderType) {
			enc, dec := customPlan(t)
			return enc, dec, nil
		}
	}

	switch t.Kind() {
	case reflect.Bool:
		return encodeBool, decodeBool, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		enc, dec := intPlan(int(t.Size()))
		return enc, dec, nil
	case reflect.Int:
		enc, dec := intPlan(8)
		return enc, dec, nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		enc, dec := uintPlan(int(t.Size()))
		return enc, dec, nil
	case reflect.Uint:
		enc, dec := uintPlan(8)
		return enc, dec, nil
	case reflect.Float32:
		return encodeF32, decodeF32, nil
	case reflect.Float64:
		return encodeF64, decodeF64, nil
	case reflect.String:
		return encodeString, decodeString, nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return encodeByteSlice, decodeByteSlice, nil
		}
		return c.buildSlice(t, sessionWidth)
	case reflect.Array:
		return c.buildArray(t)
	case reflect.Map:
		return c.buildMap(t, sessionWidth)
	case reflect.Pointer:
		return c.buildOptional(t)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.Type == unionType {
				return c.buildUnion(t, f)
			}
		}
		return c.buildRecord(t)
	default:
		return nil, nil, InvalidType("encodable type", t.String())
	}
}

func customPlan(t reflect.Type) (encodeFn, decodeFn) {
	enc := func(e *Encoder, v reflect.Value) error {
		if !v.CanAddr() {
			tmp := reflect.New(t).Elem()
			tmp.Set(v)
			v = tmp
		}
		return v.Addr().Interface().(ValueEncoder).EncodeValue(e)
	}
	dec := func(d *Decoder, v reflect.Value) error {
		return v.Addr().Interface().(ValueDecoder).DecodeValue(d)
	}
	return enc, dec
}

func encodeBool(e *Encoder, v reflect.Value) error { return e.WriteBool(v.Bool()) }

func decodeBool(d *Decoder, v reflect.Value) error {
	b, err := d.ReadBool()
	if err != nil {
		return err
	}
	v.SetBool(b)
	return nil
}

// intPlan handles signed integers of size bytes.
func intPlan(size int) (encodeFn, decodeFn) {
	var read func(d *Decoder) (int64, error)
	var write func(e *Encoder, x int64) error
	switch size {
	case 1:
		write = func(e *Encoder, x int64) error { return e.WriteI8(int8(x)) }
		read = func(d *Decoder) (int64, error) {
			x, err := d.ReadI8()
			return int64(x), err
		}
	case 2:
		write = func(e *Encoder, x int64) error { return e.WriteI16(int16(x)) }
		read = func(d *Decoder) (int64, error) {
			x, err := d.ReadI16()
			return int64(x), err
		}
	case 4:
		write = func(e *Encoder, x int64) error { return e.WriteI32(int32(x)) }
		read = func(d *Decoder) (int64, error) {
			x, err := d.ReadI32()
			return int64(x), err
		}
	default:
		write = (*Encoder).WriteI64
		read = (*Decoder).ReadI64
	}
	enc := func(e *Encoder, v reflect.Value) error { return write(e, v.Int()) }
	dec := func(d *Decoder, v reflect.Value) error {
		x, err := read(d)
		if err != nil {
			return err
		}
		if v.OverflowInt(x) {
			return d.fail(InvalidValue(v.Type().String(), strconv.FormatInt(x, 10)))
		}
		v.SetInt(x)
		return nil
	}
	return enc, dec
}

func uintPlan(size int) (encodeFn, decodeFn) {
	var read func(d *Decoder) (uint64, error)
	var write func(e *Encoder, x uint64) error
	switch size {
	case 1:
		write = func(e *Encoder, x uint64) error { return e.WriteU8(uint8(x)) }
		read = func(d *Decoder) (uint64, error) {
			x, err := d.ReadU8()
			return uint64(x), err
		}
	case 2:
		write = func(e *Encoder, x uint64) error { return e.WriteU16(uint16(x)) }
		read = func(d *Decoder) (uint64, error) {
			x, err := d.ReadU16()
			return uint64(x), err
		}
	case 4:
		write = func(e *Encoder, x uint64) error { return e.WriteU32(uint32(x)) }
		read = func(d *Decoder) (uint64, error) {
			x, err := d.ReadU32()
			return uint64(x), err
		}
	default:
		write = (*Encoder).WriteU64
		read = (*Decoder).ReadU64
	}
	enc := func(e *Encoder, v reflect.Value) error { return write(e, v.Uint()) }
	dec := func(d *Decoder, v reflect.Value) error {
		x, err := read(d)
		if err != nil {
			return err
		}
		if v.OverflowUint(x) {
			return d.fail(InvalidValue(v.Type().String(), strconv.FormatUint(x, 10)))
		}
		v.SetUint(x)
		return nil
	}
	return enc, dec
}

func encodeF32(e *Encoder, v reflect.Value) error { return e.WriteF32(float32(v.Float())) }
func encodeF64(e *Encoder, v reflect.Value) error { return e.WriteF64(v.Float()) }

func decodeF32(d *Decoder, v reflect.Value) error {
	x, err := d.ReadF32()
	if err != nil {
		return err
	}
	v.SetFloat(float64(x))
	return nil
}

func decodeF64(d *Decoder, v reflect.Value) error {
	x, err := d.ReadF64()
	if err != nil {
		return err
	}
	v.SetFloat(x)
	return nil
}

func encodeChar(e *Encoder, v reflect.Value) error { return e.WriteChar(Char(v.Int())) }

func decodeChar(d *Decoder, v reflect.Value) error {
	c, err := d.ReadChar()
	if err != nil {
		return err
	}
	v.SetInt(int64(c))
	return nil
}

// U128 and I128 share a layout, so one pair serves both.
func encodeU128(e *Encoder, v reflect.Value) error {
	return e.WriteU128(U128{Hi: v.Field(0).Uint(), Lo: v.Field(1).Uint()})
}

func decodeU128(d *Decoder, v reflect.Value) error {
	x, err := d.ReadU128()
	if err != nil {
		return err
	}
	v.Field(0).SetUint(x.Hi)
	v.Field(1).SetUint(x.Lo)
	return nil
}

func encodeString(e *Encoder, v reflect.Value) error { return e.WriteString(v.String()) }

func decodeString(d *Decoder, v reflect.Value) error {
	s, err := d.ReadString()
	if err != nil {
		return err
	}
	v.SetString(s)
	return nil
}

func encodeByteSlice(e *Encoder, v reflect.Value) error { return e.WriteBytes(v.Bytes()) }

// decodeByteSlice copies, so decoded values never alias the input.
func decodeByteSlice(d *Decoder, v reflect.Value) error {
	b, err := d.ReadBytes()
	if err != nil {
		return err
	}
	if len(b) == 0 {
		v.SetZero()
		return nil
	}
	v.SetBytes(bytes.Clone(b))
	return nil
}

// buildFramed compiles a field whose length prefix overrides the session
// width. Only strings, byte blobs, slices and maps carry a prefix.
func (c *planCompiler) buildFramed(t reflect.Type, width int) (*typePlan, error) {
	if pt := reflect.PointerTo(t); pt.Implements(valueEncoderType) || pt.Implements(valueDecoderType) {
		return nil, errors.Newf("len option on %s, which encodes itself", t)
	}
	p := &typePlan{typ: t}
	var err error
	switch t.Kind() {
	case reflect.String:
		p.enc, p.dec = framedString(width)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			p.enc, p.dec = framedByteSlice(width)
		} else {
			p.enc, p.dec, err = c.buildSlice(t, width)
		}
	case reflect.Map:
		p.enc, p.dec, err = c.buildMap(t, width)
	default:
		return nil, errors.Newf("len option on %s, which has no length prefix", t)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// readFramedRaw reads a byte run framed with width. A sizeless run is the
// rest of the input.
func readFramedRaw(d *Decoder, width int) ([]byte, error) {
	if width == Sizeless {
		return d.take(d.Remaining())
	}
	n, err := readCount(d, width)
	if err != nil {
		return nil, err
	}
	return d.take(n)
}

func framedString(width int) (encodeFn, decodeFn) {
	enc := func(e *Encoder, v reflect.Value) error {
		s := v.String()
		if err := writeCount(e, width, len(s)); err != nil {
			return err
		}
		e.buf = append(e.buf, s...)
		return e.checkLimit()
	}
	dec := func(d *Decoder, v reflect.Value) error {
		b, err := readFramedRaw(d, width)
		if err != nil {
			return err
		}
		if !utf8.Valid(b) {
			return d.fail(errInvalidUTF8(b))
		}
		v.SetString(string(b))
		return nil
	}
	return enc, dec
}

func framedByteSlice(width int) (encodeFn, decodeFn) {
	enc := func(e *Encoder, v reflect.Value) error {
		if err := writeCount(e, width, v.Len()); err != nil {
			return err
		}
		return e.WriteRaw(v.Bytes())
	}
	dec := func(d *Decoder, v reflect.Value) error {
		b, err := readFramedRaw(d, width)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			v.SetZero()
			return nil
		}
		v.SetBytes(bytes.Clone(b))
		return nil
	}
	return enc, dec
}

func (c *planCompiler) buildSlice(t reflect.Type, width int) (encodeFn, decodeFn, error) {
	elem, err := c.compile(t.Elem())
	if err != nil {
		return nil, nil, err
	}
	zero := t.Elem().Size() == 0
	if width == Sizeless && zero {
		return nil, nil, errors.Newf("%s: sizeless container of zero-size elements", t)
	}
	enc := func(e *Encoder, v reflect.Value) error {
		n := v.Len()
		if err := writeCount(e, width, n); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := elem.encode(e, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	dec := func(d *Decoder, v reflect.Value) error {
		if width == Sizeless {
			s := reflect.MakeSlice(t, 0, 0)
			err := readUntilEnd(d, func() error {
				x := reflect.New(t.Elem()).Elem()
				if err := elem.decode(d, x); err != nil {
					return err
				}
				s = reflect.Append(s, x)
				return nil
			})
			if err != nil {
				return err
			}
			if s.Len() == 0 {
				v.SetZero()
				return nil
			}
			v.Set(s)
			return nil
		}
		n, err := readCount(d, width)
		if err != nil {
			return err
		}
		if n == 0 {
			v.SetZero()
			return nil
		}
		s := reflect.MakeSlice(t, 0, preallocHint(d, n))
		for i := 0; i < n; i++ {
			before := d.Consumed()
			x := reflect.New(t.Elem()).Elem()
			if err := elem.decode(d, x); err != nil {
				return err
			}
			if i == 0 && zero && d.Consumed() == before {
				// a zero-size type has one value and no bytes
				v.Set(reflect.MakeSlice(t, n, n))
				return nil
			}
			s = reflect.Append(s, x)
		}
		v.Set(s)
		return nil
	}
	return enc, dec, nil
}

func (c *planCompiler) buildArray(t reflect.Type) (encodeFn, decodeFn, error) {
	elem, err := c.compile(t.Elem())
	if err != nil {
		return nil, nil, err
	}
	n := t.Len()
	enc := func(e *Encoder, v reflect.Value) error {
		for i := 0; i < n; i++ {
			if err := elem.encode(e, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	dec := func(d *Decoder, v reflect.Value) error {
		for i := 0; i < n; i++ {
			if err := elem.decode(d, v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	return enc, dec, nil
}

// buildMap also covers sets: a map[K]struct{} writes its keys followed by
// empty values, which is exactly the set layout.
func (c *planCompiler) buildMap(t reflect.Type, width int) (encodeFn, decodeFn, error) {
	key, err := c.compile(t.Key())
	if err != nil {
		return nil, nil, err
	}
	val, err := c.compile(t.Elem())
	if err != nil {
		return nil, nil, err
	}
	zero := t.Key().Size() == 0 && t.Elem().Size() == 0
	if width == Sizeless && zero {
		return nil, nil, errors.Newf("%s: sizeless container of zero-size elements", t)
	}
	enc := func(e *Encoder, v reflect.Value) error {
		if err := writeCount(e, width, v.Len()); err != nil {
			return err
		}
		// MapIndex can't find a NaN key, so pairs come from MapRange.
		entries := make([]mapEntry, 0, v.Len())
		for it := v.MapRange(); it.Next(); {
			entries = append(entries, mapEntry{key: it.Key(), val: it.Value()})
		}
		if err := sortMapEntries(e.cfg, entries, key); err != nil {
			return err
		}
		for _, en := range entries {
			if err := key.encode(e, en.key); err != nil {
				return err
			}
			if err := val.encode(e, en.val); err != nil {
				return err
			}
		}
		return nil
	}
	dec := func(d *Decoder, v reflect.Value) error {
		var m reflect.Value
		readEntry := func() error {
			k := reflect.New(t.Key()).Elem()
			if err := key.decode(d, k); err != nil {
				return err
			}
			x := reflect.New(t.Elem()).Elem()
			if err := val.decode(d, x); err != nil {
				return err
			}
			m.SetMapIndex(k, x)
			return nil
		}
		if width == Sizeless {
			m = reflect.MakeMap(t)
			if err := readUntilEnd(d, readEntry); err != nil {
				return err
			}
			v.Set(m)
			return nil
		}
		n, err := readCount(d, width)
		if err != nil {
			return err
		}
		m = reflect.MakeMapWithSize(t, preallocHint(d, n))
		for i := 0; i < n; i++ {
			before := d.Consumed()
			if err := readEntry(); err != nil {
				return err
			}
			if zero && d.Consumed() == before {
				break
			}
		}
		v.Set(m)
		return nil
	}
	return enc, dec, nil
}

type mapEntry struct {
	key, val reflect.Value
}

// sortMapEntries orders entries by key so equal maps encode identically.
// Ordered kinds sort by value, with NaN first; anything else sorts by its
// encoded bytes.
func sortMapEntries(cfg Config, entries []mapEntry, key *typePlan) error {
	if len(entries) < 2 {
		return nil
	}
	switch key.typ.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		slices.SortFunc(entries, func(a, b mapEntry) int { return cmp.Compare(a.key.Int(), b.key.Int()) })
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		slices.SortFunc(entries, func(a, b mapEntry) int { return cmp.Compare(a.key.Uint(), b.key.Uint()) })
		return nil
	case reflect.Float32, reflect.Float64:
		slices.SortFunc(entries, func(a, b mapEntry) int { return cmp.Compare(a.key.Float(), b.key.Float()) })
		return nil
	case reflect.String:
		slices.SortFunc(entries, func(a, b mapEntry) int { return cmp.Compare(a.key.String(), b.key.String()) })
		return nil
	}

	buf := wire.GetBuffer()
	defer wire.PutBuffer(buf)
	scratch := newEncoderBuffer(cfg.With(WithNoLimit()), *buf)
	type encodedKey struct {
		entry      mapEntry
		start, end int
	}
	encoded := make([]encodedKey, len(entries))
	for i, en := range entries {
		start := scratch.Len()
		if err := key.encode(scratch, en.key); err != nil {
			*buf = scratch.buf
			return err
		}
		encoded[i] = encodedKey{entry: en, start: start, end: scratch.Len()}
	}
	*buf = scratch.buf
	raw := scratch.buf
	slices.SortFunc(encoded, func(a, b encodedKey) int {
		return bytes.Compare(raw[a.start:a.end], raw[b.start:b.end])
	})
	for i := range encoded {
		entries[i] = encoded[i].entry
	}
	return nil
}

// buildOptional maps a pointer to an optional value.
func (c *planCompiler) buildOptional(t reflect.Type) (encodeFn, decodeFn, error) {
	elem, err := c.compile(t.Elem())
	if err != nil {
		return nil, nil, err
	}
	enc := func(e *Encoder, v reflect.Value) error {
		if e.cfg.optional == Tagged {
			if err := e.WriteBool(!v.IsNil()); err != nil {
				return err
			}
		}
		if v.IsNil() {
			return nil
		}
		return elem.encode(e, v.Elem())
	}
	dec := func(d *Decoder, v reflect.Value) error {
		if d.cfg.optional == Tagged {
			present, err := d.ReadBool()
			if err != nil {
				return err
			}
			if !present {
				v.SetZero()
				return nil
			}
		}
		p := reflect.New(t.Elem())
		if err := elem.decode(d, p.Elem()); err != nil {
			return err
		}
		v.Set(p)
		return nil
	}
	return enc, dec, nil
}

type fieldPlan struct {
	index int
	name  string
	skip  bool
	bits  BitField // Bits is 0 for plain fields
	plan  *typePlan
}

// buildRecord encodes exported fields in declaration order. Consecutive
// bit fields share bytes; a plain field or the end of the struct closes
// the run. Skipped fields neither close a run nor appear on the wire.
func (c *planCompiler) buildRecord(t reflect.Type) (encodeFn, decodeFn, error) {
	var fields []fieldPlan
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tg, err := tags.Parse(f)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s", t)
		}
		if tg.Tag != nil || tg.Repr != "" || tg.Untagged {
			return nil, nil, errors.Newf("%s.%s: variant options outside a union", t, f.Name)
		}
		meta := FieldMeta{Bits: tg.Bits, Skip: tg.Skip}
		if tg.NoOverflow {
			meta.Overflow = Reject
		}
		if err := meta.Validate(); err != nil {
			return nil, nil, errors.Wrapf(err, "%s.%s", t, f.Name)
		}
		fp := fieldPlan{index: i, name: f.Name, skip: meta.Skip}
		if meta.Skip {
			fields = append(fields, fp)
			continue
		}
		if tg.Len != nil {
			if meta.IsBitField() {
				return nil, nil, errors.Newf("%s.%s: len and bits are exclusive", t, f.Name)
			}
			if !validFraming(*tg.Len) {
				return nil, nil, errors.Newf("%s.%s: len=%d, want 0, 1, 2, 4, 8 or 16", t, f.Name, *tg.Len)
			}
			if fp.plan, err = c.buildFramed(f.Type, *tg.Len); err != nil {
				return nil, nil, errors.Wrapf(err, "%s.%s", t, f.Name)
			}
			fields = append(fields, fp)
			continue
		}
		if meta.IsBitField() {
			capacity, ok := bitCapacity(f.Type)
			if !ok {
				return nil, nil, errors.Newf("%s.%s: type %s can't be bit-packed", t, f.Name, f.Type)
			}
			if meta.Bits > capacity {
				return nil, nil, errors.Newf("%s.%s: %d bits don't fit in %s", t, f.Name, meta.Bits, f.Type)
			}
			fp.bits = meta.BitField()
		} else if fp.plan, err = c.compile(f.Type); err != nil {
			return nil, nil, err
		}
		fields = append(fields, fp)
	}

	enc := func(e *Encoder, v reflect.Value) error {
		bw := BitWriter{e: e}
		for i := range fields {
			f := &fields[i]
			switch {
			case f.skip:
			case f.bits.Bits > 0:
				if err := bw.WriteBits(bitsOf(v.Field(f.index)), f.bits); err != nil {
					return fieldError(err, t, f.name)
				}
			default:
				if err := bw.Flush(); err != nil {
					return err
				}
				if err := f.plan.encode(e, v.Field(f.index)); err != nil {
					return fieldError(err, t, f.name)
				}
			}
		}
		return bw.Flush()
	}
	dec := func(d *Decoder, v reflect.Value) error {
		br := BitReader{d: d}
		for i := range fields {
			f := &fields[i]
			switch {
			case f.skip:
				v.Field(f.index).SetZero()
			case f.bits.Bits > 0:
				x, err := br.ReadBits(f.bits)
				if err != nil {
					return fieldError(err, t, f.name)
				}
				setBits(v.Field(f.index), x)
			default:
				br.Finish()
				if err := f.plan.decode(d, v.Field(f.index)); err != nil {
					return fieldError(err, t, f.name)
				}
			}
		}
		br.Finish()
		return nil
	}
	return enc, dec, nil
}

func fieldError(err error, t reflect.Type, field string) error {
	return errors.Wrapf(err, "%s.%s", t.Name(), field)
}

// bitCapacity returns the widest bit field a value of t can hold.
func bitCapacity(t reflect.Type) (int, bool) {
	if t == u128Type || t == i128Type {
		return MaxBitWidth, true
	}
	switch t.Kind() {
	case reflect.Bool:
		return MaxBitWidth, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(t.Size()) * 8, true
	default:
		return 0, false
	}
}

func bitsOf(v reflect.Value) U128 {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return U128From64(1)
		}
		return U128{}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return U128(I128From64(v.Int()))
	case reflect.Struct:
		return U128{Hi: v.Field(0).Uint(), Lo: v.Field(1).Uint()}
	default:
		return U128From64(v.Uint())
	}
}

// setBits stores a decoded field. Signed targets are zero-extended.
func setBits(v reflect.Value, x U128) {
	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(!x.IsZero())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(int64(x.Lo))
	case reflect.Struct:
		v.Field(0).SetUint(x.Hi)
		v.Field(1).SetUint(x.Lo)
	default:
		v.SetUint(x.Lo)
	}
}

type variantPlan struct {
	index int
	plan  *typePlan
}

// buildUnion compiles a struct carrying a Union marker. Each exported
// field is a pointer to one variant's payload.
func (c *planCompiler) buildUnion(t reflect.Type, marker reflect.StructField) (encodeFn, decodeFn, error) {
	mt, err := tags.Parse(marker)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s", t)
	}
	repr := ReprU32
	if mt.Repr != "" {
		if repr, err = ParseRepr(mt.Repr); err != nil {
			return nil, nil, errors.Wrapf(err, "%s", t)
		}
	}
	var (
		specs    []VariantSpec
		variants []variantPlan
	)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Type == unionType {
			if f.Index[0] != marker.Index[0] {
				return nil, nil, errors.Newf("%s: more than one union marker", t)
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if f.Type.Kind() != reflect.Pointer {
			return nil, nil, errors.Newf("%s.%s: union variants must be pointers", t, f.Name)
		}
		tg, err := tags.Parse(f)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "%s", t)
		}
		if tg.Skip || tg.Bits != 0 || tg.NoOverflow || tg.Len != nil {
			return nil, nil, errors.Newf("%s.%s: field options not allowed on a variant", t, f.Name)
		}
		plan, err := c.compile(f.Type.Elem())
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, VariantSpec{Name: f.Name, Tag: tg.Tag})
		variants = append(variants, variantPlan{index: i, plan: plan})
	}
	var disc *Discriminants
	if mt.Untagged {
		disc, err = NewUntaggedDiscriminants(specs...)
	} else {
		disc, err = NewDiscriminants(repr, specs...)
	}
	if err != nil {
		return nil, nil, errors.Wrapf(err, "%s", t)
	}

	enc := func(e *Encoder, v reflect.Value) error {
		chosen := -1
		for i, vp := range variants {
			if v.Field(vp.index).IsNil() {
				continue
			}
			if chosen >= 0 {
				return InvalidValue("one variant of "+t.Name(), "several set")
			}
			chosen = i
		}
		if chosen < 0 {
			return InvalidValue("one variant of "+t.Name(), "none set")
		}
		if err := disc.WriteTag(e, chosen); err != nil {
			return err
		}
		vp := variants[chosen]
		if err := vp.plan.encode(e, v.Field(vp.index).Elem()); err != nil {
			return fieldError(err, t, disc.Name(chosen))
		}
		return nil
	}
	dec := func(d *Decoder, v reflect.Value) error {
		chosen, err := disc.ReadTag(d)
		if err != nil {
			return err
		}
		for _, vp := range variants {
			v.Field(vp.index).SetZero()
		}
		vp := variants[chosen]
		p := reflect.New(vp.plan.typ)
		if err := vp.plan.decode(d, p.Elem()); err != nil {
			return fieldError(err, t, disc.Name(chosen))
		}
		v.Field(vp.index).Set(p)
		return nil
	}
	return enc, dec, nil
}
