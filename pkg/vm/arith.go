package vm

import (
	"math"
	"strings"

	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/value"
)

// operands returns op1, op2 and the result cell of in.
func (vm *VM) operands(in *ir.Instruction) (a, b, r *value.Value, err error) {
	if a, err = vm.cell(in.Op1); err != nil {
		return
	}
	if b, err = vm.cell(in.Op2); err != nil {
		return
	}
	r, err = vm.cell(in.Result)
	return
}

func overflow(op ir.OpCode, a, b int64) error {
	return basicerr.Runtime(basicerr.Overflow, "%d %s %d", a, op, b)
}

// handleArithmetic evaluates the binary numeric operators. The result cell
// already has the promoted type; integer results are computed exactly.
func (vm *VM) handleArithmetic(in *ir.Instruction) error {
	a, b, r, err := vm.operands(in)
	if err != nil {
		return err
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return basicerr.Runtime(basicerr.TypeMismatch, "%s on %s and %s", in.Op, a.Type(), b.Type())
	}

	switch in.Op {
	case ir.OP_IDIV, ir.OP_MOD:
		x, err := a.Int64()
		if err != nil {
			return err
		}
		y, err := b.Int64()
		if err != nil {
			return err
		}
		if y == 0 {
			return basicerr.Runtime(basicerr.DivisionByZero, "")
		}
		if x == math.MinInt64 && y == -1 {
			return overflow(in.Op, x, y)
		}
		if in.Op == ir.OP_IDIV {
			return r.SetInt64(x / y)
		}
		return r.SetInt64(x % y)
	}

	if r.Type().IsInteger() {
		x, err := a.Int64()
		if err != nil {
			return err
		}
		y, err := b.Int64()
		if err != nil {
			return err
		}
		var n int64
		switch in.Op {
		case ir.OP_ADD:
			n = x + y
			if (y > 0 && n < x) || (y < 0 && n > x) {
				return overflow(in.Op, x, y)
			}
		case ir.OP_SUB:
			n = x - y
			if (y < 0 && n < x) || (y > 0 && n > x) {
				return overflow(in.Op, x, y)
			}
		case ir.OP_MUL:
			n = x * y
			if x != 0 && (n/x != y || (x == -1 && y == math.MinInt64)) {
				return overflow(in.Op, x, y)
			}
		default:
			return vm.floatArithmetic(in.Op, a, b, r)
		}
		return r.SetInt64(n)
	}
	return vm.floatArithmetic(in.Op, a, b, r)
}

func (vm *VM) floatArithmetic(op ir.OpCode, a, b, r *value.Value) error {
	x, _ := a.Float64()
	y, _ := b.Float64()
	var f float64
	switch op {
	case ir.OP_ADD:
		f = x + y
	case ir.OP_SUB:
		f = x - y
	case ir.OP_MUL:
		f = x * y
	case ir.OP_DIV:
		if y == 0 {
			return basicerr.Runtime(basicerr.DivisionByZero, "")
		}
		f = x / y
	case ir.OP_POW:
		if x == 0 && y < 0 {
			return basicerr.Runtime(basicerr.DivisionByZero, "0 ^ %g", y)
		}
		f = math.Pow(x, y)
		if math.IsNaN(f) {
			return basicerr.Runtime(basicerr.IllegalFunctionCall, "%g ^ %g", x, y)
		}
	default:
		return basicerr.Internal("%s is not arithmetic", op)
	}
	if math.IsInf(f, 0) {
		return basicerr.Runtime(basicerr.Overflow, "%g %s %g", x, op, y)
	}
	return r.SetFloat64(f)
}

func (vm *VM) handleNeg(in *ir.Instruction) error {
	a, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	r, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	switch a.Type() {
	case value.INT32, value.INT64:
		n, _ := a.Int64()
		if n == math.MinInt64 {
			return basicerr.Runtime(basicerr.Overflow, "-(%d)", n)
		}
		return r.SetInt64(-n)
	case value.FLOAT, value.DOUBLE:
		f, _ := a.Float64()
		return r.SetFloat64(-f)
	}
	return basicerr.Runtime(basicerr.TypeMismatch, "negation of a string")
}

func (vm *VM) handleConcat(in *ir.Instruction) error {
	a, b, r, err := vm.operands(in)
	if err != nil {
		return err
	}
	x, err := a.Str()
	if err != nil {
		return err
	}
	y, err := b.Str()
	if err != nil {
		return err
	}
	return r.SetString(x + y)
}

// compare returns -1, 0 or 1. Strings compare bytewise; numbers compare
// exactly when both are integers.
func compare(a, b *value.Value) (int, error) {
	if a.Type() == value.STRING || b.Type() == value.STRING {
		x, err := a.Str()
		if err != nil {
			return 0, err
		}
		y, err := b.Str()
		if err != nil {
			return 0, err
		}
		return strings.Compare(x, y), nil
	}
	if a.Type().IsInteger() && b.Type().IsInteger() {
		x, _ := a.Int64()
		y, _ := b.Int64()
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	}
	x, _ := a.Float64()
	y, _ := b.Float64()
	switch {
	case x < y:
		return -1, nil
	case x > y:
		return 1, nil
	}
	return 0, nil
}

// boolean is the BASIC truth value: -1 for true, 0 for false.
func boolean(ok bool) int64 {
	if ok {
		return -1
	}
	return 0
}

func (vm *VM) handleCompare(in *ir.Instruction) error {
	a, b, r, err := vm.operands(in)
	if err != nil {
		return err
	}
	c, err := compare(a, b)
	if err != nil {
		return err
	}
	var ok bool
	switch in.Op {
	case ir.OP_EQ:
		ok = c == 0
	case ir.OP_NE:
		ok = c != 0
	case ir.OP_LT:
		ok = c < 0
	case ir.OP_LE:
		ok = c <= 0
	case ir.OP_GT:
		ok = c > 0
	case ir.OP_GE:
		ok = c >= 0
	}
	return r.SetInt64(boolean(ok))
}

func (vm *VM) handleNot(in *ir.Instruction) error {
	a, err := vm.integer(in.Op1)
	if err != nil {
		return err
	}
	r, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	return r.SetInt64(^a)
}

// handleLogical applies the bitwise operators to the integer values of the
// operands.
func (vm *VM) handleLogical(in *ir.Instruction) error {
	a, err := vm.integer(in.Op1)
	if err != nil {
		return err
	}
	b, err := vm.integer(in.Op2)
	if err != nil {
		return err
	}
	r, err := vm.cell(in.Result)
	if err != nil {
		return err
	}
	var n int64
	switch in.Op {
	case ir.OP_AND:
		n = a & b
	case ir.OP_OR:
		n = a | b
	case ir.OP_XOR:
		n = a ^ b
	case ir.OP_EQV:
		n = ^(a ^ b)
	case ir.OP_IMP:
		n = ^a | b
	}
	return r.SetInt64(n)
}

func (vm *VM) handleSwap(in *ir.Instruction) error {
	a, err := vm.cell(in.Op1)
	if err != nil {
		return err
	}
	b, err := vm.cell(in.Op2)
	if err != nil {
		return err
	}
	if a.Type() != b.Type() {
		return basicerr.Runtime(basicerr.TypeMismatch, "SWAP of %s and %s", a.Type(), b.Type())
	}
	tmp := a.Clone()
	if err := a.Assign(b); err != nil {
		return err
	}
	return b.Assign(tmp)
}
