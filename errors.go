package packwire

import (
	"fmt"
	"strings"
)

// ErrorKind classifies encoding/decoding errors.
type ErrorKind int

const (
	KindMessage ErrorKind = iota + 1
	KindInvalidType
	KindInvalidValue
	KindInvalidLength
	KindInvalidVariant
	KindUnknownField
	KindMissingField
	KindDuplicateField
	KindLimitExceeded
	KindNoEnoughData
	KindInvalidBoolValue
	KindInvalidUTF8
	KindOverflow
)

var kindNames = map[ErrorKind]string{
	KindMessage:          "message",
	KindInvalidType:      "invalid type",
	KindInvalidValue:     "invalid value",
	KindInvalidLength:    "invalid length",
	KindInvalidVariant:   "invalid variant",
	KindUnknownField:     "unknown field",
	KindMissingField:     "missing field",
	KindDuplicateField:   "duplicate field",
	KindLimitExceeded:    "limit exceeded",
	KindNoEnoughData:     "not enough data",
	KindInvalidBoolValue: "invalid bool value",
	KindInvalidUTF8:      "invalid utf-8",
	KindOverflow:         "overflow",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error type returned by the engine. Which fields are
// populated depends on Kind:
//
//	InvalidType/Value/Length/Variant  Expected, Found
//	UnknownField                      Field, Expected
//	MissingField, DuplicateField      Field
//	LimitExceeded                     Want (limit), Have (size)
//	NoEnoughData                      Want (expected), Have (available)
//	InvalidBoolValue, InvalidUTF8     Bytes
//	Overflow                          Found (value), Expected (max)
//	Message                           Detail
type Error struct {
	Kind     ErrorKind
	Offset   int64
	Expected string
	Found    string
	Field    string
	Want     int
	Have     int
	Bytes    []byte
	Detail   string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var msg string
	switch e.Kind {
	case KindMessage:
		msg = e.Detail
	case KindInvalidType, KindInvalidValue, KindInvalidLength, KindInvalidVariant:
		msg = fmt.Sprintf("%v: expected %s, found %s", e.Kind, e.Expected, e.Found)
	case KindUnknownField:
		msg = fmt.Sprintf("%v: %s, expected one of %s", e.Kind, e.Field, e.Expected)
	case KindMissingField, KindDuplicateField:
		msg = fmt.Sprintf("%v: %s", e.Kind, e.Field)
	case KindLimitExceeded:
		msg = fmt.Sprintf("%v: limit %d, size %d", e.Kind, e.Want, e.Have)
	case KindNoEnoughData:
		msg = fmt.Sprintf("%v: expected %d, available %d", e.Kind, e.Want, e.Have)
	case KindInvalidBoolValue:
		msg = fmt.Sprintf("%v: %d", e.Kind, e.byteAt(0))
	case KindInvalidUTF8:
		msg = fmt.Sprintf("%v: % x", e.Kind, e.Bytes)
	case KindOverflow:
		msg = fmt.Sprintf("%v: value %s, max %s", e.Kind, e.Found, e.Expected)
	default:
		msg = e.Kind.String()
	}
	if e.Offset > 0 {
		return fmt.Sprintf("packwire: %s (at offset %d)", msg, e.Offset)
	}
	return "packwire: " + msg
}

// Is matches any *Error of the same kind, so the Err* sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind
}

func (e *Error) byteAt(i int) byte {
	if i < len(e.Bytes) {
		return e.Bytes[i]
	}
	return 0
}

// Sentinels for errors.Is. They carry only a kind.
var (
	ErrMessage          = &Error{Kind: KindMessage}
	ErrInvalidType      = &Error{Kind: KindInvalidType}
	ErrInvalidValue     = &Error{Kind: KindInvalidValue}
	ErrInvalidLength    = &Error{Kind: KindInvalidLength}
	ErrInvalidVariant   = &Error{Kind: KindInvalidVariant}
	ErrUnknownField     = &Error{Kind: KindUnknownField}
	ErrMissingField     = &Error{Kind: KindMissingField}
	ErrDuplicateField   = &Error{Kind: KindDuplicateField}
	ErrLimitExceeded    = &Error{Kind: KindLimitExceeded}
	ErrNoEnoughData     = &Error{Kind: KindNoEnoughData}
	ErrInvalidBoolValue = &Error{Kind: KindInvalidBoolValue}
	ErrInvalidUTF8      = &Error{Kind: KindInvalidUTF8}
	ErrOverflow         = &Error{Kind: KindOverflow}
)

// Messagef builds a KindMessage error. Adapter layers use it for failures
// that fit no other kind.
func Messagef(format string, args ...any) *Error {
	return &Error{Kind: KindMessage, Detail: fmt.Sprintf(format, args...)}
}

func InvalidType(expected, found string) *Error {
	return &Error{Kind: KindInvalidType, Expected: expected, Found: found}
}

func InvalidValue(expected, found string) *Error {
	return &Error{Kind: KindInvalidValue, Expected: expected, Found: found}
}

func InvalidLength(expected, found string) *Error {
	return &Error{Kind: KindInvalidLength, Expected: expected, Found: found}
}

func UnknownField(field string, expected []string) *Error {
	return &Error{Kind: KindUnknownField, Field: field, Expected: strings.Join(expected, ", ")}
}

func MissingField(field string) *Error {
	return &Error{Kind: KindMissingField, Field: field}
}

func DuplicateField(field string) *Error {
	return &Error{Kind: KindDuplicateField, Field: field}
}

func errInvalidVariant(expected, found string) *Error {
	return &Error{Kind: KindInvalidVariant, Expected: expected, Found: found}
}

func errLimitExceeded(limit, size int) *Error {
	return &Error{Kind: KindLimitExceeded, Want: limit, Have: size}
}

func errNoEnoughData(expected, available int) *Error {
	return &Error{Kind: KindNoEnoughData, Want: expected, Have: available}
}

func errInvalidBool(b byte) *Error {
	return &Error{Kind: KindInvalidBoolValue, Bytes: []byte{b}}
}

func errInvalidUTF8(b []byte) *Error {
	return &Error{Kind: KindInvalidUTF8, Bytes: append([]byte(nil), b...)}
}

func errOverflow(value, max U128) *Error {
	return &Error{Kind: KindOverflow, Found: value.Hex(), Expected: max.Hex()}
}
