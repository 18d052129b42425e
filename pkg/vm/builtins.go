package vm

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/symtab"
	"github.com/antibyte/retrobasic/pkg/value"
)

func illegal(format string, args ...interface{}) error {
	return basicerr.Runtime(basicerr.IllegalFunctionCall, format, args...)
}

func (vm *VM) result(in *ir.Instruction) (*value.Value, error) {
	return vm.cell(in.Result)
}

func (vm *VM) setNumber(in *ir.Instruction, f float64) error {
	r, err := vm.result(in)
	if err != nil {
		return err
	}
	if math.IsInf(f, 0) {
		return basicerr.Runtime(basicerr.Overflow, "%s", in.Op)
	}
	return r.SetFloat64(f)
}

func (vm *VM) setInt(in *ir.Instruction, n int64) error {
	r, err := vm.result(in)
	if err != nil {
		return err
	}
	return r.SetInt64(n)
}

func (vm *VM) setString(in *ir.Instruction, s string) error {
	r, err := vm.result(in)
	if err != nil {
		return err
	}
	return r.SetString(s)
}

func (vm *VM) handleAbs(in *ir.Instruction) error {
	a, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	if a.Type().IsInteger() {
		n, _ := a.Int64()
		if n == math.MinInt64 {
			return basicerr.Runtime(basicerr.Overflow, "ABS(%d)", n)
		}
		if n < 0 {
			n = -n
		}
		return vm.setInt(in, n)
	}
	f, err := a.Float64()
	if err != nil {
		return err
	}
	return vm.setNumber(in, math.Abs(f))
}

// handleMath covers the transcendental functions.
func (vm *VM) handleMath(in *ir.Instruction) error {
	x, err := vm.number(in.Op1)
	if err != nil {
		return err
	}
	var f float64
	switch in.Op {
	case ir.OP_ATN:
		f = math.Atan(x)
	case ir.OP_COS:
		f = math.Cos(x)
	case ir.OP_SIN:
		f = math.Sin(x)
	case ir.OP_TAN:
		f = math.Tan(x)
	case ir.OP_EXP:
		f = math.Exp(x)
	case ir.OP_LOG:
		if x <= 0 {
			return illegal("LOG(%g)", x)
		}
		f = math.Log(x)
	case ir.OP_SQR:
		if x < 0 {
			return illegal("SQR(%g)", x)
		}
		f = math.Sqrt(x)
	}
	return vm.setNumber(in, f)
}

// handleConvert implements CINT, CLNG, CSNG and CDBL; the result cell's
// type does the conversion and its range check.
func (vm *VM) handleConvert(in *ir.Instruction) error {
	a, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	r, err := vm.result(in)
	if err != nil {
		return err
	}
	return r.Assign(a)
}

// handleFix implements FIX (truncation) and INT (floor).
func (vm *VM) handleFix(in *ir.Instruction) error {
	a, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	if a.Type().IsInteger() {
		n, _ := a.Int64()
		return vm.setInt(in, n)
	}
	f, err := a.Float64()
	if err != nil {
		return err
	}
	if in.Op == ir.OP_INT {
		return vm.setNumber(in, math.Floor(f))
	}
	return vm.setNumber(in, math.Trunc(f))
}

func (vm *VM) handleSgn(in *ir.Instruction) error {
	x, err := vm.number(in.Op1)
	if err != nil {
		return err
	}
	var n int64
	switch {
	case x > 0:
		n = 1
	case x < 0:
		n = -1
	}
	return vm.setInt(in, n)
}

func (vm *VM) handleAsc(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	if s == "" {
		return illegal("ASC of an empty string")
	}
	return vm.setInt(in, int64(s[0]))
}

func (vm *VM) handleChr(in *ir.Instruction) error {
	n, err := vm.integer(in.Op1)
	if err != nil {
		return err
	}
	if n < 0 || n > 255 {
		return illegal("CHR$(%d)", n)
	}
	return vm.setString(in, string([]byte{byte(n)}))
}

func (vm *VM) handleLen(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	return vm.setInt(in, int64(len(s)))
}

// handleRadix implements HEX$ and OCT$. Negative numbers show their 32-bit
// two's complement.
func (vm *VM) handleRadix(in *ir.Instruction) error {
	n, err := vm.integer(in.Op1)
	if err != nil {
		return err
	}
	if n < math.MinInt32 || n > math.MaxUint32 {
		return basicerr.Runtime(basicerr.Overflow, "%s(%d)", in.Op, n)
	}
	u := uint64(uint32(n))
	if n > 0 {
		u = uint64(n)
	}
	base := 16
	if in.Op == ir.OP_OCT {
		base = 8
	}
	return vm.setString(in, strings.ToUpper(strconv.FormatUint(u, base)))
}

func (vm *VM) handleStr(in *ir.Instruction) error {
	a, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	if !a.IsNumeric() {
		return basicerr.Runtime(basicerr.TypeMismatch, "STR$ of a string")
	}
	return vm.setString(in, value.StrText(a))
}

func (vm *VM) handleVal(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	r, err := vm.result(in)
	if err != nil {
		return err
	}
	return r.Assign(value.Val(s))
}

func (vm *VM) handleLeftRight(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	n, err := vm.smallInt(in.Op2)
	if err != nil {
		return err
	}
	if n < 0 {
		return illegal("%s length %d", in.Op, n)
	}
	if n > len(s) {
		n = len(s)
	}
	if in.Op == ir.OP_LEFT {
		return vm.setString(in, s[:n])
	}
	return vm.setString(in, s[len(s)-n:])
}

// handleMid implements MID$(s, start[, length]); the length is staged.
func (vm *VM) handleMid(in *ir.Instruction) error {
	staged, err := vm.takeArgs(1)
	if err != nil {
		return err
	}
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	start, err := vm.smallInt(in.Op2)
	if err != nil {
		return err
	}
	if start < 1 {
		return illegal("MID$ start %d", start)
	}
	length, _, err := vm.optionalInt(staged[0], len(s))
	if err != nil {
		return err
	}
	if length < 0 {
		return illegal("MID$ length %d", length)
	}
	if start > len(s) {
		return vm.setString(in, "")
	}
	end := start - 1 + length
	if end > len(s) {
		end = len(s)
	}
	return vm.setString(in, s[start-1:end])
}

// handleInstr implements INSTR([start,] s, t); the start is staged.
func (vm *VM) handleInstr(in *ir.Instruction) error {
	staged, err := vm.takeArgs(1)
	if err != nil {
		return err
	}
	start, _, err := vm.optionalInt(staged[0], 1)
	if err != nil {
		return err
	}
	if start < 1 || start > 255 {
		return illegal("INSTR start %d", start)
	}
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	t, err := vm.text(in.Op2)
	if err != nil {
		return err
	}
	if start > len(s) {
		return vm.setInt(in, 0)
	}
	if t == "" {
		return vm.setInt(in, int64(start))
	}
	i := strings.Index(s[start-1:], t)
	if i < 0 {
		return vm.setInt(in, 0)
	}
	return vm.setInt(in, int64(start+i))
}

func (vm *VM) handleSpace(in *ir.Instruction) error {
	n, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	if n < 0 || n > 255 {
		return illegal("SPACE$(%d)", n)
	}
	return vm.setString(in, strings.Repeat(" ", n))
}

// handleStringFn implements STRING$(n, code) and STRING$(n, s).
func (vm *VM) handleStringFn(in *ir.Instruction) error {
	n, err := vm.smallInt(in.Op1)
	if err != nil {
		return err
	}
	if n < 0 || n > 255 {
		return illegal("STRING$ count %d", n)
	}
	c, err := vm.cell(in.Op2)
	if err != nil {
		return err
	}
	var ch byte
	if c.Type() == value.STRING {
		s, _ := c.Str()
		if s == "" {
			return illegal("STRING$ of an empty string")
		}
		ch = s[0]
	} else {
		code, err := c.Int64()
		if err != nil {
			return err
		}
		if code < 0 || code > 255 {
			return illegal("STRING$ code %d", code)
		}
		ch = byte(code)
	}
	return vm.setString(in, strings.Repeat(string([]byte{ch}), n))
}

// handleEncode implements MKI$, MKL$, MKS$ and MKD$.
func (vm *VM) handleEncode(in *ir.Instruction) error {
	a, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	t := map[ir.OpCode]value.DataType{
		ir.OP_MKI: value.INT32, ir.OP_MKL: value.INT64,
		ir.OP_MKS: value.FLOAT, ir.OP_MKD: value.DOUBLE,
	}[in.Op]
	s, err := value.EncodeBinary(a, t)
	if err != nil {
		return err
	}
	return vm.setString(in, s)
}

// handleDecode implements CVI, CVL, CVS and CVD.
func (vm *VM) handleDecode(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	t := map[ir.OpCode]value.DataType{
		ir.OP_CVI: value.INT32, ir.OP_CVL: value.INT64,
		ir.OP_CVS: value.FLOAT, ir.OP_CVD: value.DOUBLE,
	}[in.Op]
	v, err := value.DecodeBinary(s, t)
	if err != nil {
		return err
	}
	r, err := vm.result(in)
	if err != nil {
		return err
	}
	return r.Assign(v)
}

// handleRnd: a negative argument reseeds with it, 0 repeats the last number
// and anything else (or no argument) draws the next one.
func (vm *VM) handleRnd(in *ir.Instruction) error {
	x := 1.0
	if in.Op1 != symtab.NullID {
		var err error
		if x, err = vm.number(in.Op1); err != nil {
			return err
		}
	}
	switch {
	case x < 0:
		vm.reseed(x)
		vm.lastRnd = vm.rng.Float64()
	case x > 0:
		vm.lastRnd = vm.rng.Float64()
	}
	return vm.setNumber(in, vm.lastRnd)
}

func (vm *VM) handleRandomize(in *ir.Instruction) error {
	n, err := vm.number(in.Op1)
	if err != nil {
		return err
	}
	vm.reseed(n)
	return nil
}

// reseed starts a repeatable sequence for a RANDOMIZE or RND argument.
func (vm *VM) reseed(n float64) {
	vm.rng = rand.New(rand.NewSource(int64(math.Float64bits(n))))
}

func (vm *VM) handleRandomizeTimer(in *ir.Instruction) error {
	vm.seed(vm.svc.Clock().UnixNano())
	return nil
}

func (vm *VM) handleDate(in *ir.Instruction) error {
	return vm.setString(in, vm.svc.Clock().Format("01-02-2006"))
}

func (vm *VM) handleTime(in *ir.Instruction) error {
	return vm.setString(in, vm.svc.Clock().Format("15:04:05"))
}

// handleTimer returns the seconds since local midnight.
func (vm *VM) handleTimer(in *ir.Instruction) error {
	now := vm.svc.Clock()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return vm.setNumber(in, now.Sub(midnight).Seconds())
}

func (vm *VM) handleEnvironFn(in *ir.Instruction) error {
	a, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	var entry string
	if a.Type() == value.STRING {
		name, _ := a.Str()
		entry, err = vm.svc.Env.Getenv(strings.ToUpper(name))
	} else {
		n, nerr := a.Int64()
		if nerr != nil {
			return nerr
		}
		if n < 1 || n > 255 {
			return illegal("ENVIRON$(%d)", n)
		}
		entry, err = vm.svc.Env.EnvEntry(int(n))
	}
	if err != nil {
		return ioErr(err)
	}
	return vm.setString(in, entry)
}

// handleEnviron sets a variable from a "NAME=VALUE" string.
func (vm *VM) handleEnviron(in *ir.Instruction) error {
	s, err := vm.text(in.Op1)
	if err != nil {
		return err
	}
	name, val, ok := strings.Cut(s, "=")
	name = strings.ToUpper(strings.TrimSpace(name))
	if !ok || name == "" {
		return illegal("ENVIRON %q", s)
	}
	return ioErr(vm.svc.Env.Setenv(name, val))
}
