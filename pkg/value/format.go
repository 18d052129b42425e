package value

import (
	"math"
	"strconv"
	"strings"

	"github.com/antibyte/retrobasic/pkg/basicerr"
)

// decimal exponent range, in digits, printed without exponent notation
const (
	floatDigits  = 7
	doubleDigits = 16
)

// FormatNumber renders a number without sign padding: "12", "-.5", "1.5E+07".
func FormatNumber(v *Value) string {
	switch v.typ {
	case INT32, INT64:
		return strconv.FormatInt(v.i, 10)
	case FLOAT:
		return formatFloat(v.f, 32, floatDigits, 'E')
	case DOUBLE:
		return formatFloat(v.f, 64, doubleDigits, 'D')
	}
	return v.s
}

func formatFloat(f float64, bits, maxDigits int, expChar byte) string {
	if f == 0 {
		return "0"
	}
	if math.IsInf(f, 1) {
		return "+INF"
	}
	if math.IsInf(f, -1) {
		return "-INF"
	}
	if math.IsNaN(f) {
		return "NAN"
	}

	// shortest digits that round-trip at the cell's precision
	e := strconv.FormatFloat(f, 'e', -1, bits)
	neg := false
	if e[0] == '-' {
		neg = true
		e = e[1:]
	}
	ePos := strings.IndexByte(e, 'e')
	mantissa := strings.Replace(e[:ePos], ".", "", 1)
	exp, _ := strconv.Atoi(e[ePos+1:])
	nd := len(mantissa)

	var out string
	switch {
	case exp >= 0 && exp < maxDigits:
		if nd <= exp+1 {
			out = mantissa + strings.Repeat("0", exp+1-nd)
		} else {
			out = mantissa[:exp+1] + "." + mantissa[exp+1:]
		}
	case exp < 0 && exp > -maxDigits-1:
		out = "." + strings.Repeat("0", -exp-1) + mantissa
	default:
		out = mantissa[:1]
		if nd > 1 {
			out += "." + mantissa[1:]
		}
		sign := byte('+')
		if exp < 0 {
			sign = '-'
			exp = -exp
		}
		expText := strconv.Itoa(exp)
		if len(expText) < 2 {
			expText = "0" + expText
		}
		out += string([]byte{expChar, sign}) + expText
	}
	if neg {
		return "-" + out
	}
	return out
}

// PrintText is the PRINT form: numbers carry a sign position and a trailing blank.
func PrintText(v *Value) string {
	if v.typ == STRING {
		return v.s
	}
	return StrText(v) + " "
}

// StrText is the STR$ form: a leading blank for non-negative numbers.
func StrText(v *Value) string {
	if v.typ == STRING {
		return v.s
	}
	s := FormatNumber(v)
	if !strings.HasPrefix(s, "-") {
		s = " " + s
	}
	return s
}

// WriteText is the WRITE form: bare numbers, quoted strings.
func WriteText(v *Value) string {
	if v.typ == STRING {
		return `"` + v.s + `"`
	}
	return FormatNumber(v)
}

// ParseLiteral converts numeric literal text into a typed cell. A trailing type
// suffix decides the type; otherwise integers become INT32 (INT64 or DOUBLE if
// too large) and decimals FLOAT, or DOUBLE for a D exponent or more than seven
// significant digits. &H and &O prefixes denote hex and octal integers.
func ParseLiteral(text string) (*Value, error) {
	t := strings.ToUpper(strings.TrimSpace(text))
	if t == "" {
		return nil, badNumber(text)
	}

	if strings.HasPrefix(t, "&") {
		return parseRadix(text, t)
	}

	suffix, hasSuffix := FromSuffix(t[len(t)-1])
	if hasSuffix {
		if suffix == STRING {
			return nil, badNumber(text)
		}
		t = t[:len(t)-1]
	}
	if t == "" {
		return nil, badNumber(text)
	}

	isDecimal := strings.ContainsAny(t, ".ED")
	forceDouble := strings.Contains(t, "D")
	normalized := strings.Replace(t, "D", "E", 1)

	if !hasSuffix && !isDecimal {
		if n, err := strconv.ParseInt(normalized, 10, 64); err == nil {
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return NewInt32(int32(n)), nil
			}
			return NewInt64(n), nil
		}
	}

	f, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		if numErr, ok := err.(*strconv.NumError); !ok || numErr.Err != strconv.ErrRange {
			return nil, badNumber(text)
		}
		return nil, basicerr.Runtime(basicerr.Overflow, "%s", text)
	}

	target := FLOAT
	switch {
	case hasSuffix:
		target = suffix
	case forceDouble || significantDigits(t) > floatDigits:
		target = DOUBLE
	case !isDecimal:
		// integer text too large for INT64
		target = DOUBLE
	}

	if target.IsInteger() && hasSuffix && !isDecimal {
		n, err := strconv.ParseInt(normalized, 10, 64)
		if err != nil {
			return nil, basicerr.Runtime(basicerr.Overflow, "%s", text)
		}
		v := New(target)
		return v, v.SetInt64(n)
	}
	v := New(target)
	return v, v.SetFloat64(f)
}

func parseRadix(orig, t string) (*Value, error) {
	base := 8
	digits := t[1:]
	switch {
	case strings.HasPrefix(digits, "H"):
		base = 16
		digits = digits[1:]
	case strings.HasPrefix(digits, "O"):
		digits = digits[1:]
	}
	digits = strings.TrimRight(digits, "%&")
	if digits == "" {
		return nil, badNumber(orig)
	}
	n, err := strconv.ParseUint(digits, base, 64)
	if err != nil {
		return nil, badNumber(orig)
	}
	if n <= math.MaxUint32 && !strings.HasSuffix(t, "&") {
		// 32-bit patterns wrap like the original 16-bit &HFFFF did
		return NewInt32(int32(uint32(n))), nil
	}
	return NewInt64(int64(n)), nil
}

func significantDigits(t string) int {
	mant := t
	if i := strings.IndexAny(mant, "ED"); i >= 0 {
		mant = mant[:i]
	}
	mant = strings.TrimLeft(strings.Replace(mant, ".", "", 1), "+-0")
	mant = strings.TrimRight(mant, "0")
	return len(mant)
}

func badNumber(text string) error {
	return basicerr.Runtime(basicerr.BadNumber, "%q", text)
}

// Val implements VAL: the longest numeric prefix of s, ignoring blanks, as a DOUBLE.
func Val(s string) *Value {
	t := strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	t = strings.ReplaceAll(t, "\t", "")
	if strings.HasPrefix(t, "&") {
		end := 2
		for end < len(t) && strings.IndexByte("0123456789ABCDEF", t[end]) >= 0 {
			end++
		}
		if v, err := parseRadix(t[:end], t[:end]); err == nil {
			f, _ := v.Float64()
			return NewDouble(f)
		}
		return NewDouble(0)
	}

	end := 0
	if end < len(t) && (t[end] == '+' || t[end] == '-') {
		end++
	}
	for end < len(t) && (isDigit(t[end]) || t[end] == '.') {
		end++
	}
	if end < len(t) && (t[end] == 'E' || t[end] == 'D') {
		expEnd := end + 1
		if expEnd < len(t) && (t[expEnd] == '+' || t[expEnd] == '-') {
			expEnd++
		}
		if expEnd < len(t) && isDigit(t[expEnd]) {
			for expEnd < len(t) && isDigit(t[expEnd]) {
				expEnd++
			}
			end = expEnd
		}
	}
	text := strings.Replace(t[:end], "D", "E", 1)
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return NewDouble(0)
	}
	return NewDouble(f)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
