// Package value implements the typed storage cells of the interpreter and the
// conversion and formatting rules between them.
package value

import (
	"github.com/antibyte/retrobasic/pkg/basicerr"
)

// DataType tags the content of a Value.
type DataType uint8

const (
	INT32 DataType = iota
	INT64
	FLOAT
	DOUBLE
	STRING
)

var dataTypeNames = [...]string{
	INT32:  "INT32",
	INT64:  "INT64",
	FLOAT:  "FLOAT",
	DOUBLE: "DOUBLE",
	STRING: "STRING",
}

func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return "UNKNOWN"
}

// IsNumeric reports whether t is one of the four numeric kinds.
func (t DataType) IsNumeric() bool { return t != STRING }

// IsInteger reports whether t is INT32 or INT64.
func (t DataType) IsInteger() bool { return t == INT32 || t == INT64 }

// Suffix returns the type-declaration character for t.
func (t DataType) Suffix() byte {
	switch t {
	case INT32:
		return '%'
	case INT64:
		return '&'
	case FLOAT:
		return '!'
	case DOUBLE:
		return '#'
	default:
		return '$'
	}
}

// FromSuffix maps a type-declaration character to its DataType.
func FromSuffix(c byte) (DataType, bool) {
	switch c {
	case '%':
		return INT32, true
	case '&':
		return INT64, true
	case '!':
		return FLOAT, true
	case '#':
		return DOUBLE, true
	case '$':
		return STRING, true
	}
	return 0, false
}

// rank orders the numeric types for upcasting: DOUBLE > INT64 > FLOAT > INT32.
func rank(t DataType) int {
	switch t {
	case INT32:
		return 0
	case FLOAT:
		return 1
	case INT64:
		return 2
	case DOUBLE:
		return 3
	}
	return -1
}

// Upcast returns the result type of an arithmetic operation on a and b: the
// operand type with the highest rank. Strings never take part.
func Upcast(a, b DataType) (DataType, error) {
	if !a.IsNumeric() || !b.IsNumeric() {
		return 0, basicerr.Runtime(basicerr.TypeMismatch, "%s and %s", a, b)
	}
	if rank(a) >= rank(b) {
		return a, nil
	}
	return b, nil
}

// DivisionType is the result type of "/": never an integer type.
func DivisionType(a, b DataType) (DataType, error) {
	t, err := Upcast(a, b)
	if err != nil {
		return 0, err
	}
	switch t {
	case INT32:
		return FLOAT, nil
	case INT64:
		return DOUBLE, nil
	}
	return t, nil
}

// PowerType is the result type of "^".
func PowerType(a, b DataType) (DataType, error) {
	t, err := Upcast(a, b)
	if err != nil {
		return 0, err
	}
	if t == DOUBLE || t == INT64 {
		return DOUBLE, nil
	}
	return FLOAT, nil
}

// IntegerOpType is the result type of "\", MOD and the bitwise logical operators.
func IntegerOpType(a, b DataType) (DataType, error) {
	t, err := Upcast(a, b)
	if err != nil {
		return 0, err
	}
	if t == INT64 || t == DOUBLE {
		return INT64, nil
	}
	return INT32, nil
}
