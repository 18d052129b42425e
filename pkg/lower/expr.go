package lower

import (
	"strings"

	"github.com/antibyte/retrobasic/pkg/ast"
	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/symtab"
	"github.com/antibyte/retrobasic/pkg/value"
)

func (l *Lowerer) typeOf(id symtab.ID) value.DataType {
	dt, err := l.st.TypeOf(id)
	if err != nil {
		return value.INT32
	}
	return dt
}

// lowerExpr emits the instructions computing x and returns the cell holding
// its value.
func (l *Lowerer) lowerExpr(x ast.Expr) (symtab.ID, error) {
	switch e := x.(type) {
	case *ast.NumberLit:
		v, err := value.ParseLiteral(e.Text)
		if err != nil {
			code := basicerr.CodeOf(err)
			if code == "" {
				code = basicerr.BadNumber
			}
			return symtab.NullID, l.semantic(e, code, "%s", e.Text)
		}
		return l.literal(v), nil
	case *ast.StringLit:
		return l.literal(value.NewString(e.Value)), nil
	case *ast.VarRef:
		return l.lowerVarRef(e, false)
	case *ast.FnCall:
		return l.lowerFnCall(e)
	case *ast.BuiltinCall:
		return l.lowerBuiltin(e)
	case *ast.Unary:
		return l.lowerUnary(e)
	case *ast.Binary:
		return l.lowerBinary(e)
	}
	return symtab.NullID, basicerr.Internal("no lowering for expression %T", x)
}

func (l *Lowerer) literal(v *value.Value) symtab.ID {
	id := l.st.AddTemp(v.Type(), v)
	l.emit(ir.OP_VALUE, symtab.NullID, symtab.NullID, id)
	return id
}

func (l *Lowerer) lowerNumeric(x ast.Expr) (symtab.ID, error) {
	id, err := l.lowerExpr(x)
	if err != nil {
		return symtab.NullID, err
	}
	if !l.typeOf(id).IsNumeric() {
		return symtab.NullID, l.semantic(x, basicerr.TypeMismatch, "numeric expression expected")
	}
	return id, nil
}

func (l *Lowerer) lowerString(x ast.Expr) (symtab.ID, error) {
	id, err := l.lowerExpr(x)
	if err != nil {
		return symtab.NullID, err
	}
	if l.typeOf(id) != value.STRING {
		return symtab.NullID, l.semantic(x, basicerr.TypeMismatch, "string expression expected")
	}
	return id, nil
}

// lowerOptional lowers x when present and returns NullID otherwise.
func (l *Lowerer) lowerOptional(x ast.Expr) (symtab.ID, error) {
	if x == nil {
		return symtab.NullID, nil
	}
	return l.lowerNumeric(x)
}

func variableKey(name string, dt value.DataType) string {
	return symtab.Variable{Name: name, Type: dt}.Key()
}

func isFnName(name string) bool {
	return strings.HasPrefix(name, symtab.UDFPrefix) && len(name) > len(symtab.UDFPrefix)
}

// lowerVarRef resolves a variable use. Scalars and arrays share one name
// space per type, so A and A() cannot both exist.
func (l *Lowerer) lowerVarRef(v *ast.VarRef, target bool) (symtab.ID, error) {
	dt := l.st.GetDataTypeFor(v.Name, v.Suffix)
	if isFnName(v.Name) {
		if v.Array {
			return symtab.NullID, l.semantic(v, basicerr.ReservedPrefix, "%s", v.Name)
		}
		if target {
			return symtab.NullID, l.semantic(v, basicerr.AssignmentToFunction, "%s", v.Name)
		}
	}

	if v.Indices == nil {
		id, ok := l.st.Lookup(variableKey(v.Name, dt))
		if ok {
			e, err := l.st.Get(id)
			if err != nil {
				return symtab.NullID, err
			}
			if e.IsArray() {
				return symtab.NullID, l.semantic(v, basicerr.ArrayWithoutIndex, "%s", e.Var)
			}
		} else {
			id = l.st.AddVariableOrUDF(symtab.Variable{Name: v.Name, Type: dt, Kind: symtab.Scalar}, nil)
		}
		l.emit(ir.OP_VARIABLE, symtab.NullID, symtab.NullID, id)
		return id, nil
	}

	arr, err := l.arrayVariable(v, dt)
	if err != nil {
		return symtab.NullID, err
	}
	indices := make([]symtab.ID, len(v.Indices))
	for i, x := range v.Indices {
		if indices[i], err = l.lowerNumeric(x); err != nil {
			return symtab.NullID, err
		}
	}
	ref, err := l.st.AddArrayReference(arr, len(indices))
	if err != nil {
		return symtab.NullID, err
	}
	l.emit(ir.OP_ARRAY_RESET, ref, symtab.NullID, symtab.NullID)
	for _, idx := range indices {
		l.emit(ir.OP_ARRAY_DIM, ref, idx, symtab.NullID)
	}
	return ref, nil
}

// arrayVariable returns the array variable named by v, creating it when the
// name is unused.
func (l *Lowerer) arrayVariable(v *ast.VarRef, dt value.DataType) (symtab.ID, error) {
	if isFnName(v.Name) {
		return symtab.NullID, l.semantic(v, basicerr.ReservedPrefix, "%s", v.Name)
	}
	id, ok := l.st.Lookup(variableKey(v.Name, dt))
	if !ok {
		return l.st.AddVariableOrUDF(symtab.Variable{Name: v.Name, Type: dt, Kind: symtab.Array}, nil), nil
	}
	e, err := l.st.Get(id)
	if err != nil {
		return symtab.NullID, err
	}
	if !e.IsArray() {
		return symtab.NullID, l.semantic(v, basicerr.IndexingScalar, "%s", e.Var)
	}
	return id, nil
}

// lowerTarget resolves an assignable variable or array element.
func (l *Lowerer) lowerTarget(v *ast.VarRef) (symtab.ID, error) {
	return l.lowerVarRef(v, true)
}

func (l *Lowerer) lowerUnary(e *ast.Unary) (symtab.ID, error) {
	x, err := l.lowerNumeric(e.X)
	if err != nil {
		return symtab.NullID, err
	}
	xt := l.typeOf(x)
	if e.Op == "NOT" {
		rt, _ := value.IntegerOpType(xt, xt)
		result := l.st.AddTemp(rt, nil)
		l.emit(ir.OP_NOT, x, symtab.NullID, result)
		return result, nil
	}
	result := l.st.AddTemp(xt, nil)
	l.emit(ir.OP_NEG, x, symtab.NullID, result)
	return result, nil
}

var arithmeticOps = map[string]ir.OpCode{
	"+":   ir.OP_ADD,
	"-":   ir.OP_SUB,
	"*":   ir.OP_MUL,
	"/":   ir.OP_DIV,
	"\\":  ir.OP_IDIV,
	"MOD": ir.OP_MOD,
	"^":   ir.OP_POW,
}

var relationalOps = map[string]ir.OpCode{
	"=":  ir.OP_EQ,
	"<>": ir.OP_NE,
	"<":  ir.OP_LT,
	"<=": ir.OP_LE,
	">":  ir.OP_GT,
	">=": ir.OP_GE,
}

var logicalOps = map[string]ir.OpCode{
	"AND": ir.OP_AND,
	"OR":  ir.OP_OR,
	"XOR": ir.OP_XOR,
	"EQV": ir.OP_EQV,
	"IMP": ir.OP_IMP,
}

func (l *Lowerer) lowerBinary(e *ast.Binary) (symtab.ID, error) {
	left, err := l.lowerExpr(e.L)
	if err != nil {
		return symtab.NullID, err
	}
	right, err := l.lowerExpr(e.R)
	if err != nil {
		return symtab.NullID, err
	}
	lt, rt := l.typeOf(left), l.typeOf(right)
	mismatch := func() error {
		return l.semantic(e, basicerr.TypeMismatch, "%s %s %s", lt, e.Op, rt)
	}

	if op, ok := relationalOps[e.Op]; ok {
		if lt.IsNumeric() != rt.IsNumeric() {
			return symtab.NullID, mismatch()
		}
		result := l.st.AddTemp(value.INT32, nil)
		l.emit(op, left, right, result)
		return result, nil
	}

	if e.Op == "+" && lt == value.STRING && rt == value.STRING {
		result := l.st.AddTemp(value.STRING, nil)
		l.emit(ir.OP_CONCAT, left, right, result)
		return result, nil
	}
	if !lt.IsNumeric() || !rt.IsNumeric() {
		return symtab.NullID, mismatch()
	}

	var (
		op       ir.OpCode
		resultDT value.DataType
	)
	if lop, ok := logicalOps[e.Op]; ok {
		op = lop
		resultDT, err = value.IntegerOpType(lt, rt)
	} else {
		op, ok = arithmeticOps[e.Op]
		if !ok {
			return symtab.NullID, basicerr.Internal("unknown operator %q", e.Op)
		}
		switch e.Op {
		case "/":
			resultDT, err = value.DivisionType(lt, rt)
		case "^":
			resultDT, err = value.PowerType(lt, rt)
		case "\\", "MOD":
			resultDT, err = value.IntegerOpType(lt, rt)
		default:
			resultDT, err = value.Upcast(lt, rt)
		}
	}
	if err != nil {
		return symtab.NullID, mismatch()
	}
	result := l.st.AddTemp(resultDT, nil)
	l.emit(op, left, right, result)
	return result, nil
}

// isCondition reports whether x already yields a relational truth value.
func isCondition(x ast.Expr) bool {
	switch e := x.(type) {
	case *ast.Binary:
		if _, ok := relationalOps[e.Op]; ok {
			return true
		}
		_, ok := logicalOps[e.Op]
		return ok
	case *ast.Unary:
		return e.Op == "NOT"
	}
	return false
}

// argKind describes what a built-in accepts in one argument position.
type argKind uint8

const (
	argNumber argKind = iota
	argString
	argAny
)

// resultRule computes the result type of a built-in from its first argument.
type resultRule func(args []value.DataType) value.DataType

func fixed(t value.DataType) resultRule {
	return func([]value.DataType) value.DataType { return t }
}

// sameAsArg keeps the argument's type (ABS, INT, FIX).
func sameAsArg(args []value.DataType) value.DataType { return args[0] }

// mathResult is DOUBLE for wide arguments and FLOAT otherwise.
func mathResult(args []value.DataType) value.DataType {
	if args[0] == value.DOUBLE || args[0] == value.INT64 {
		return value.DOUBLE
	}
	return value.FLOAT
}

type builtin struct {
	op     ir.OpCode
	args   []argKind
	result resultRule
	staged int // index of the first argument passed through OP_ARG, -1 if none
}

const (
	num    = argNumber
	str    = argString
	either = argAny
)

var builtinTable = map[string]builtin{
	"ABS":      {ir.OP_ABS, []argKind{num}, sameAsArg, -1},
	"ASC":      {ir.OP_ASC, []argKind{str}, fixed(value.INT32), -1},
	"ATN":      {ir.OP_ATN, []argKind{num}, mathResult, -1},
	"CDBL":     {ir.OP_CDBL, []argKind{num}, fixed(value.DOUBLE), -1},
	"CHR$":     {ir.OP_CHR, []argKind{num}, fixed(value.STRING), -1},
	"CINT":     {ir.OP_CINT, []argKind{num}, fixed(value.INT32), -1},
	"CLNG":     {ir.OP_CLNG, []argKind{num}, fixed(value.INT64), -1},
	"COS":      {ir.OP_COS, []argKind{num}, mathResult, -1},
	"CSNG":     {ir.OP_CSNG, []argKind{num}, fixed(value.FLOAT), -1},
	"CVI":      {ir.OP_CVI, []argKind{str}, fixed(value.INT32), -1},
	"CVL":      {ir.OP_CVL, []argKind{str}, fixed(value.INT64), -1},
	"CVS":      {ir.OP_CVS, []argKind{str}, fixed(value.FLOAT), -1},
	"CVD":      {ir.OP_CVD, []argKind{str}, fixed(value.DOUBLE), -1},
	"DATE$":    {ir.OP_DATE, nil, fixed(value.STRING), -1},
	"ENVIRON$": {ir.OP_ENVIRON_FN, []argKind{either}, fixed(value.STRING), -1},
	"EOF":      {ir.OP_EOF, []argKind{num}, fixed(value.INT32), -1},
	"EXP":      {ir.OP_EXP, []argKind{num}, mathResult, -1},
	"FIX":      {ir.OP_FIX, []argKind{num}, sameAsArg, -1},
	"HEX$":     {ir.OP_HEX, []argKind{num}, fixed(value.STRING), -1},
	"INKEY$":   {ir.OP_INKEY, nil, fixed(value.STRING), -1},
	"INPUT$":   {ir.OP_INPUT_FN, []argKind{num, num}, fixed(value.STRING), -1},
	"INSTR":    {ir.OP_INSTR, []argKind{num, str, str}, fixed(value.INT32), 0},
	"INT":      {ir.OP_INT, []argKind{num}, sameAsArg, -1},
	"LEFT$":    {ir.OP_LEFT, []argKind{str, num}, fixed(value.STRING), -1},
	"LEN":      {ir.OP_LEN, []argKind{str}, fixed(value.INT32), -1},
	"LOC":      {ir.OP_LOC, []argKind{num}, fixed(value.INT32), -1},
	"LOF":      {ir.OP_LOF, []argKind{num}, fixed(value.INT64), -1},
	"LOG":      {ir.OP_LOG, []argKind{num}, mathResult, -1},
	"MID$":     {ir.OP_MID, []argKind{str, num, num}, fixed(value.STRING), 2},
	"MKI$":     {ir.OP_MKI, []argKind{num}, fixed(value.STRING), -1},
	"MKL$":     {ir.OP_MKL, []argKind{num}, fixed(value.STRING), -1},
	"MKS$":     {ir.OP_MKS, []argKind{num}, fixed(value.STRING), -1},
	"MKD$":     {ir.OP_MKD, []argKind{num}, fixed(value.STRING), -1},
	"OCT$":     {ir.OP_OCT, []argKind{num}, fixed(value.STRING), -1},
	"RIGHT$":   {ir.OP_RIGHT, []argKind{str, num}, fixed(value.STRING), -1},
	"RND":      {ir.OP_RND, []argKind{num}, fixed(value.FLOAT), -1},
	"SGN":      {ir.OP_SGN, []argKind{num}, fixed(value.INT32), -1},
	"SIN":      {ir.OP_SIN, []argKind{num}, mathResult, -1},
	"SPACE$":   {ir.OP_SPACE, []argKind{num}, fixed(value.STRING), -1},
	"SQR":      {ir.OP_SQR, []argKind{num}, mathResult, -1},
	"STR$":     {ir.OP_STR, []argKind{num}, fixed(value.STRING), -1},
	"STRING$":  {ir.OP_STRING_FN, []argKind{num, either}, fixed(value.STRING), -1},
	"TAN":      {ir.OP_TAN, []argKind{num}, mathResult, -1},
	"TIME$":    {ir.OP_TIME, nil, fixed(value.STRING), -1},
	"TIMER":    {ir.OP_TIMER, nil, fixed(value.FLOAT), -1},
	"VAL":      {ir.OP_VAL, []argKind{str}, fixed(value.DOUBLE), -1},
}

// lowerBuiltin emits a built-in call. Operands go to op1 and op2; a third,
// optional argument is staged first with OP_ARG (NullID when absent).
// INSTR(s, t) is normalised to INSTR(NULL, s, t).
func (l *Lowerer) lowerBuiltin(e *ast.BuiltinCall) (symtab.ID, error) {
	b, ok := builtinTable[e.Name]
	if !ok {
		return symtab.NullID, basicerr.Internal("no lowering for built-in %s", e.Name)
	}
	args := e.Args
	if e.Name == "INSTR" && len(args) == 2 {
		args = append([]ast.Expr{nil}, args...)
	}

	ids := make([]symtab.ID, len(b.args))
	types := make([]value.DataType, len(b.args))
	for i := range ids {
		ids[i] = symtab.NullID
		if i >= len(args) || args[i] == nil {
			continue
		}
		id, err := l.lowerExpr(args[i])
		if err != nil {
			return symtab.NullID, err
		}
		dt := l.typeOf(id)
		if (b.args[i] == argNumber && !dt.IsNumeric()) || (b.args[i] == argString && dt != value.STRING) {
			return symtab.NullID, l.semantic(args[i], basicerr.TypeMismatch, "argument %d of %s", i+1, e.Name)
		}
		ids[i], types[i] = id, dt
	}

	var operands []symtab.ID
	if b.staged >= 0 {
		l.emit(ir.OP_ARG, ids[b.staged], symtab.NullID, symtab.NullID)
		operands = append(append(operands, ids[:b.staged]...), ids[b.staged+1:]...)
	} else {
		operands = ids
	}
	op1, op2 := symtab.NullID, symtab.NullID
	if len(operands) > 0 {
		op1 = operands[0]
	}
	if len(operands) > 1 {
		op2 = operands[1]
	}

	result := l.st.AddTemp(b.result(types), nil)
	l.emit(b.op, op1, op2, result)
	return result, nil
}
