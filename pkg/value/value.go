package value

import (
	"math"
	"strings"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

// Value is a mutable storage cell. Integer kinds live in i, floating kinds
// in f (FLOAT cells are kept rounded to float32) and strings in s.
type Value struct {
	typ      DataType
	i        int64
	f        float64
	s        string
	fieldLen int
}

// New returns a zero cell of type t.
func New(t DataType) *Value { return &Value{typ: t} }

// NewInt32 returns an INT32 cell holding n.
func NewInt32(n int32) *Value { return &Value{typ: INT32, i: int64(n)} }

// NewInt64 returns an INT64 cell holding n.
func NewInt64(n int64) *Value { return &Value{typ: INT64, i: n} }

// NewFloat returns a FLOAT cell holding f rounded to float32.
func NewFloat(f float32) *Value { return &Value{typ: FLOAT, f: float64(f)} }

// NewDouble returns a DOUBLE cell holding f.
func NewDouble(f float64) *Value { return &Value{typ: DOUBLE, f: f} }

// NewString returns a STRING cell holding s.
func NewString(s string) *Value { return &Value{typ: STRING, s: s} }

// Type returns the cell's data type.
func (v *Value) Type() DataType { return v.typ }

// IsNumeric reports whether the cell holds a number.
func (v *Value) IsNumeric() bool { return v.typ.IsNumeric() }

// Clone returns an independent copy of the cell, field length included.
func (v *Value) Clone() *Value {
	c := *v
	return &c
}

// Reset sets the cell back to zero or the empty string.
func (v *Value) Reset() {
	v.i, v.f, v.s = 0, 0, ""
}

func mismatch(want string, t DataType) error {
	return basicerr.Runtime(basicerr.TypeMismatch, "%s expected, got %s", want, t)
}

// Int64 reads the cell as an integer, rounding floating values half away from zero.
func (v *Value) Int64() (int64, error) {
	switch v.typ {
	case INT32, INT64:
		return v.i, nil
	case FLOAT, DOUBLE:
		return floatToInt64(v.f)
	}
	return 0, mismatch("number", v.typ)
}

// Int32 reads the cell as an INT32, failing with OVERFLOW when out of range.
func (v *Value) Int32() (int32, error) {
	n, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, basicerr.Runtime(basicerr.Overflow, "%d does not fit INT32", n)
	}
	return int32(n), nil
}

// Float64 reads the cell as a float64.
func (v *Value) Float64() (float64, error) {
	switch v.typ {
	case INT32, INT64:
		return float64(v.i), nil
	case FLOAT, DOUBLE:
		return v.f, nil
	}
	return 0, mismatch("number", v.typ)
}

// Str reads a STRING cell.
func (v *Value) Str() (string, error) {
	if v.typ != STRING {
		return "", mismatch("string", v.typ)
	}
	return v.s, nil
}

// Truthy reports whether a numeric cell is non-zero.
func (v *Value) Truthy() (bool, error) {
	switch v.typ {
	case INT32, INT64:
		return v.i != 0, nil
	case FLOAT, DOUBLE:
		return v.f != 0, nil
	}
	return false, mismatch("number", v.typ)
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, basicerr.Runtime(basicerr.Overflow, "%v", f)
	}
	r := math.Round(f)
	if r < -9.223372036854775808e18 || r >= 9.223372036854775808e18 {
		return 0, basicerr.Runtime(basicerr.Overflow, "%g does not fit INT64", f)
	}
	return int64(r), nil
}

// SetInt64 stores n, converting to the cell's type.
func (v *Value) SetInt64(n int64) error {
	switch v.typ {
	case INT32:
		if n < math.MinInt32 || n > math.MaxInt32 {
			return basicerr.Runtime(basicerr.Overflow, "%d does not fit INT32", n)
		}
		v.i = n
	case INT64:
		v.i = n
	case FLOAT:
		v.f = float64(float32(n))
	case DOUBLE:
		v.f = float64(n)
	default:
		return mismatch("string", INT64)
	}
	return nil
}

// SetFloat64 stores f, rounding for integer cells and narrowing for FLOAT cells.
func (v *Value) SetFloat64(f float64) error {
	switch v.typ {
	case INT32:
		n, err := floatToInt64(f)
		if err != nil {
			return err
		}
		return v.SetInt64(n)
	case INT64:
		n, err := floatToInt64(f)
		if err != nil {
			return err
		}
		v.i = n
	case FLOAT:
		narrowed := float32(f)
		if math.IsInf(float64(narrowed), 0) && !math.IsInf(f, 0) {
			return basicerr.Runtime(basicerr.Overflow, "%g does not fit FLOAT", f)
		}
		v.f = float64(narrowed)
	case DOUBLE:
		v.f = f
	default:
		return mismatch("string", DOUBLE)
	}
	return nil
}

// SetString stores s in a STRING cell. Cells bound to a record field keep
// their field length: the text is cut or blank-padded on the right.
func (v *Value) SetString(s string) error {
	if v.typ != STRING {
		return mismatch("number", STRING)
	}
	if v.fieldLen > 0 {
		s = padRight(s, v.fieldLen)
	}
	v.s = s
	return nil
}

// Assign copies src into v with numeric conversion. Strings only go into
// strings and numbers only into numbers.
func (v *Value) Assign(src *Value) error {
	switch src.typ {
	case STRING:
		return v.SetString(src.s)
	case INT32, INT64:
		if v.typ == STRING {
			return mismatch("string", src.typ)
		}
		return v.SetInt64(src.i)
	default:
		if v.typ == STRING {
			return mismatch("string", src.typ)
		}
		return v.SetFloat64(src.f)
	}
}

// FieldLen returns the fixed record width of the cell, 0 when unbound.
func (v *Value) FieldLen() int { return v.fieldLen }

// BindField fixes the cell to width bytes, as done by FIELD.
func (v *Value) BindField(width int) error {
	if v.typ != STRING {
		return mismatch("string", v.typ)
	}
	v.fieldLen = width
	v.s = padRight(v.s, width)
	return nil
}

// SetRaw stores bytes read from a record without re-padding.
func (v *Value) SetRaw(s string) { v.s = s }

// Lset left-justifies s in the cell: blank-padded or cut to the current width.
func (v *Value) Lset(s string) error {
	if v.typ != STRING {
		return mismatch("string", v.typ)
	}
	v.s = padRight(s, v.width())
	return nil
}

// Rset right-justifies s in the cell.
func (v *Value) Rset(s string) error {
	if v.typ != STRING {
		return mismatch("string", v.typ)
	}
	w := v.width()
	if len(s) >= w {
		v.s = s[:w]
		return nil
	}
	v.s = strings.Repeat(" ", w-len(s)) + s
	return nil
}

func (v *Value) width() int {
	if v.fieldLen > 0 {
		return v.fieldLen
	}
	return len(v.s)
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s[:w]
	}
	return s + strings.Repeat(" ", w-len(s))
}
