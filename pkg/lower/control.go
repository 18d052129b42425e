package lower

import (
	"github.com/antibyte/retrobasic/pkg/ast"
	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/symtab"
	"github.com/antibyte/retrobasic/pkg/value"
)

func compatible(a, b value.DataType) bool {
	return a.IsNumeric() == b.IsNumeric()
}

func (l *Lowerer) lowerLet(s *ast.Let) error {
	val, err := l.lowerExpr(s.Value)
	if err != nil {
		return err
	}
	target, err := l.lowerTarget(s.Target)
	if err != nil {
		return err
	}
	if !compatible(l.typeOf(target), l.typeOf(val)) {
		return l.semantic(s, basicerr.TypeMismatch, "cannot assign %s to %s", l.typeOf(val), l.typeOf(target))
	}
	l.emit(ir.OP_COPY, val, symtab.NullID, target)
	return nil
}

// lowerIf emits
//
//	cond; GOTO_LABEL_IF then; GOTO_LABEL else
//	then: THEN statements; GOTO_LABEL end
//	else: ELSE statements
//	end:
//
// An IF without ELSE jumps from the end of THEN straight to the else label.
func (l *Lowerer) lowerIf(s *ast.If) error {
	cond, err := l.lowerNumeric(s.Cond)
	if err != nil {
		return err
	}
	toThen := l.forwardJump(ir.OP_GOTO_LABEL_IF, cond)
	toElse := l.forwardJump(ir.OP_GOTO_LABEL, symtab.NullID)
	l.patchHere(toThen)
	if err := l.lowerStatements(s.Then); err != nil {
		return err
	}
	toEnd := l.forwardJump(ir.OP_GOTO_LABEL, symtab.NullID)
	if s.Else == nil {
		l.patchHere(toElse, toEnd)
		return nil
	}
	l.patchHere(toElse)
	if err := l.lowerStatements(s.Else); err != nil {
		return err
	}
	l.patchHere(toEnd)
	return nil
}

func (l *Lowerer) lowerGosub(s *ast.Gosub) error {
	ret := l.st.AddLabel()
	l.emit(ir.OP_PUSH_RETLABEL, ret, symtab.NullID, symtab.NullID)
	l.emit(ir.OP_GOTO_LINENUM, l.lineNumber(s.Line), symtab.NullID, symtab.NullID)
	l.emit(ir.OP_LABEL, ret, symtab.NullID, symtab.NullID)
	return nil
}

// lowerOnGoto compares the rounded selector against 1..n; 0 or a selector past
// n falls through to the next statement.
func (l *Lowerer) lowerOnGoto(s *ast.OnGoto) error {
	x, err := l.lowerNumeric(s.X)
	if err != nil {
		return err
	}
	sel := l.st.AddTemp(value.INT32, nil)
	l.emit(ir.OP_ON_SELECT, x, symtab.NullID, sel)

	branches := make([]int, len(s.Lines))
	for i := range s.Lines {
		k := l.literal(value.NewInt32(int32(i + 1)))
		eq := l.st.AddTemp(value.INT32, nil)
		l.emit(ir.OP_EQ, sel, k, eq)
		branches[i] = l.forwardJump(ir.OP_GOTO_LABEL_IF, eq)
	}
	toAfter := l.forwardJump(ir.OP_GOTO_LABEL, symtab.NullID)

	after := l.st.AddLabel()
	for i, line := range s.Lines {
		l.patchHere(branches[i])
		if s.Gosub {
			l.emit(ir.OP_PUSH_RETLABEL, after, symtab.NullID, symtab.NullID)
		}
		l.emit(ir.OP_GOTO_LINENUM, l.lineNumber(line), symtab.NullID, symtab.NullID)
	}
	l.emit(ir.OP_LABEL, after, symtab.NullID, symtab.NullID)
	l.b.PatchOp1(toAfter, after)
	return nil
}

// lowerFor emits the loop head. The exit test is
//
//	(step >= 0 AND var > end) OR (step < 0 AND var < end)
//
// and is evaluated before the first pass, so FOR I=1 TO 0 skips the body.
func (l *Lowerer) lowerFor(s *ast.For) error {
	if s.Var.Indices != nil {
		return l.semantic(s.Var, basicerr.InvalidForVariable, "%s", s.Var.Name)
	}
	variable, err := l.lowerTarget(s.Var)
	if err != nil {
		return err
	}
	if !l.typeOf(variable).IsNumeric() {
		return l.semantic(s.Var, basicerr.InvalidForVariable, "%s", s.Var.Name)
	}

	// init, end and step are evaluated once, before the variable changes
	from, err := l.lowerNumeric(s.From)
	if err != nil {
		return err
	}
	start := l.st.AddTemp(l.typeOf(from), nil)
	l.emit(ir.OP_COPY, from, symtab.NullID, start)

	to, err := l.lowerNumeric(s.To)
	if err != nil {
		return err
	}
	end := l.st.AddTemp(l.typeOf(to), nil)
	l.emit(ir.OP_COPY, to, symtab.NullID, end)

	var stepValue symtab.ID
	if s.Step == nil {
		stepValue = l.literal(value.NewInt32(1))
	} else if stepValue, err = l.lowerNumeric(s.Step); err != nil {
		return err
	}
	step := l.st.AddTemp(l.typeOf(stepValue), nil)
	l.emit(ir.OP_COPY, stepValue, symtab.NullID, step)
	l.emit(ir.OP_COPY, start, symtab.NullID, variable)

	toCheck := l.forwardJump(ir.OP_GOTO_LABEL, symtab.NullID)
	applyStep := l.placeLabel()
	l.emit(ir.OP_ADD, variable, step, variable)
	l.patchHere(toCheck)

	zero := l.literal(value.NewInt32(0))
	cmp := func(op ir.OpCode, a, b symtab.ID) symtab.ID {
		r := l.st.AddTemp(value.INT32, nil)
		l.emit(op, a, b, r)
		return r
	}
	up := cmp(ir.OP_AND, cmp(ir.OP_GE, step, zero), cmp(ir.OP_GT, variable, end))
	down := cmp(ir.OP_AND, cmp(ir.OP_LT, step, zero), cmp(ir.OP_LT, variable, end))
	done := cmp(ir.OP_OR, up, down)
	exit := l.forwardJump(ir.OP_GOTO_LABEL_IF, done)

	l.fors = append(l.fors, forFrame{
		variable:  variable,
		name:      s.Var.Name,
		applyStep: applyStep,
		exitJump:  exit,
		loc:       l.loc,
	})
	lowerDebugLog("FOR %s at line %d, exit jump %d", s.Var.Name, l.line.Number, exit)
	return nil
}

func (l *Lowerer) lowerNext(s *ast.Next) error {
	if len(s.Vars) == 0 {
		return l.closeFor(s, symtab.NullID)
	}
	for _, v := range s.Vars {
		if v.Indices != nil {
			return l.semantic(v, basicerr.InvalidForVariable, "%s", v.Name)
		}
		id, ok := l.st.Lookup(variableKey(v.Name, l.st.GetDataTypeFor(v.Name, v.Suffix)))
		if !ok {
			return l.semantic(v, basicerr.NextWithoutFor, "%s", v.Name)
		}
		if err := l.closeFor(v, id); err != nil {
			return err
		}
	}
	return nil
}

// closeFor pops the innermost FOR. When variable is not NullID it must be
// the loop variable of that FOR.
func (l *Lowerer) closeFor(n ast.Node, variable symtab.ID) error {
	if len(l.fors) == 0 {
		return l.semantic(n, basicerr.NextWithoutFor, "")
	}
	f := l.fors[len(l.fors)-1]
	if variable != symtab.NullID && variable != f.variable {
		return l.semantic(n, basicerr.NextWithoutFor, "innermost FOR uses %s", f.name)
	}
	l.fors = l.fors[:len(l.fors)-1]
	l.emit(ir.OP_GOTO_LABEL, f.applyStep, symtab.NullID, symtab.NullID)
	l.patchHere(f.exitJump)
	return nil
}

func (l *Lowerer) lowerWhile(s *ast.While) error {
	before := l.placeLabel()
	cond, err := l.lowerNumeric(s.Cond)
	if err != nil {
		return err
	}
	if !isCondition(s.Cond) {
		ne := l.st.AddTemp(value.INT32, nil)
		l.emit(ir.OP_NE, cond, l.literal(value.NewInt32(0)), ne)
		cond = ne
	}
	dt, _ := value.IntegerOpType(l.typeOf(cond), l.typeOf(cond))
	negated := l.st.AddTemp(dt, nil)
	l.emit(ir.OP_NOT, cond, symtab.NullID, negated)
	exit := l.forwardJump(ir.OP_GOTO_LABEL_IF, negated)
	l.whiles = append(l.whiles, whileFrame{before: before, exitJump: exit, loc: l.loc})
	return nil
}

func (l *Lowerer) lowerWend(s *ast.Wend) error {
	if len(l.whiles) == 0 {
		return l.semantic(s, basicerr.WendWithoutWhile, "")
	}
	w := l.whiles[len(l.whiles)-1]
	l.whiles = l.whiles[:len(l.whiles)-1]
	l.emit(ir.OP_GOTO_LABEL, w.before, symtab.NullID, symtab.NullID)
	l.patchHere(w.exitJump)
	return nil
}

// lowerDefFn emits the function body behind a jump that skips it:
//
//	GOTO_LABEL after
//	start: body; COPY body -> FNx; GOTO_CALLER
//	after:
//
// Parameters and temps of the body live in the function's declaration scope.
func (l *Lowerer) lowerDefFn(s *ast.DefFn) error {
	dt := l.st.GetDataTypeFor(s.Name, s.Suffix)
	fn := l.st.AddVariableOrUDF(symtab.Variable{Name: s.Name, Type: dt, Kind: symtab.UserDefinedFunction}, nil)
	if _, dup := l.udfs[fn]; dup {
		return l.semantic(s, basicerr.DuplicateDefinition, "%s", s.Name)
	}

	skip := l.forwardJump(ir.OP_GOTO_LABEL, symtab.NullID)
	def := &udf{start: l.placeLabel()}

	l.st.PushDeclarationScope(fn)
	for _, p := range s.Params {
		pt := l.st.GetDataTypeFor(p.Name, p.Suffix)
		def.params = append(def.params, l.st.AddParameter(symtab.Variable{Name: p.Name, Type: pt, Kind: symtab.Scalar}))
		def.types = append(def.types, pt)
	}
	if e, err := l.st.Get(fn); err == nil {
		e.Params = def.params
	}
	l.udfs[fn] = def

	body, err := l.lowerExpr(s.Body)
	if err == nil && !compatible(l.typeOf(body), dt) {
		err = l.semantic(s.Body, basicerr.TypeMismatch, "%s returns %s", s.Name, dt)
	}
	if err != nil {
		l.st.PopScope()
		return err
	}
	l.emit(ir.OP_COPY, body, symtab.NullID, fn)
	l.emit(ir.OP_GOTO_CALLER, symtab.NullID, symtab.NullID, symtab.NullID)
	if err := l.st.PopScope(); err != nil {
		return err
	}

	l.patchHere(skip)
	lowerDebugLog("DEF %s with %d parameters", s.Name, len(def.params))
	return nil
}

// lowerFnCall emits
//
//	args; PUSH_RUNTIME_SCOPE fn, ret; COPY arg -> param...; GOTO_LABEL start
//	ret: COPY FNx -> result
//
// Arguments are evaluated in the caller's scope before the new scope exists.
func (l *Lowerer) lowerFnCall(c *ast.FnCall) (symtab.ID, error) {
	dt := l.st.GetDataTypeFor(c.Name, c.Suffix)
	fn, ok := l.st.Lookup(variableKey(c.Name, dt))
	def := l.udfs[fn]
	if !ok || def == nil {
		return symtab.NullID, l.semantic(c, basicerr.UndefinedFunction, "%s", c.Name)
	}
	if len(c.Args) != len(def.params) {
		return symtab.NullID, l.semantic(c, basicerr.InsufficientUDFArgs,
			"%s takes %d arguments, got %d", c.Name, len(def.params), len(c.Args))
	}

	args := make([]symtab.ID, len(c.Args))
	for i, x := range c.Args {
		id, err := l.lowerExpr(x)
		if err != nil {
			return symtab.NullID, err
		}
		if !compatible(l.typeOf(id), def.types[i]) {
			return symtab.NullID, l.semantic(x, basicerr.TypeMismatch, "argument %d of %s", i+1, c.Name)
		}
		args[i] = id
	}

	ret := l.st.AddLabel()
	l.emit(ir.OP_PUSH_RUNTIME_SCOPE, fn, ret, symtab.NullID)
	for i, p := range def.params {
		l.emit(ir.OP_COPY, args[i], symtab.NullID, p)
	}
	l.emit(ir.OP_GOTO_LABEL, def.start, symtab.NullID, symtab.NullID)
	l.emit(ir.OP_LABEL, ret, symtab.NullID, symtab.NullID)

	result := l.st.AddTemp(dt, nil)
	l.emit(ir.OP_COPY, fn, symtab.NullID, result)
	return result, nil
}

func (l *Lowerer) lowerDim(s *ast.Dim) error {
	for _, v := range s.Arrays {
		arr, err := l.arrayVariable(v, l.st.GetDataTypeFor(v.Name, v.Suffix))
		if err != nil {
			return err
		}
		extents := make([]symtab.ID, len(v.Indices))
		for i, x := range v.Indices {
			if extents[i], err = l.lowerNumeric(x); err != nil {
				return err
			}
		}
		l.emit(ir.OP_DIM_BEGIN, arr, symtab.NullID, symtab.NullID)
		for _, e := range extents {
			l.emit(ir.OP_DIM, arr, e, symtab.NullID)
		}
		l.emit(ir.OP_DIM_END, arr, symtab.NullID, symtab.NullID)
	}
	return nil
}

func (l *Lowerer) lowerErase(s *ast.Erase) error {
	for _, v := range s.Arrays {
		arr, err := l.arrayVariable(v, l.st.GetDataTypeFor(v.Name, v.Suffix))
		if err != nil {
			return err
		}
		l.emit(ir.OP_ERASE, arr, symtab.NullID, symtab.NullID)
	}
	return nil
}

func (l *Lowerer) lowerSwap(s *ast.Swap) error {
	a, err := l.lowerTarget(s.A)
	if err != nil {
		return err
	}
	b, err := l.lowerTarget(s.B)
	if err != nil {
		return err
	}
	if l.typeOf(a) != l.typeOf(b) {
		return l.semantic(s, basicerr.TypeMismatch, "SWAP %s with %s", l.typeOf(a), l.typeOf(b))
	}
	l.emit(ir.OP_SWAP, a, b, symtab.NullID)
	return nil
}
