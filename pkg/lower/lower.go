// Package lower walks the syntax tree and emits the three-address instruction
// stream, allocating every storage cell in the symbol table and checking
// operand types on the way.
package lower

import (
	"github.com/antibyte/retrobasic/pkg/ast"
	"github.com/antibyte/retrobasic/pkg/basicerr"
	"github.com/antibyte/retrobasic/pkg/ir"
	"github.com/antibyte/retrobasic/pkg/logger"
	"github.com/antibyte/retrobasic/pkg/symtab"
	"github.com/antibyte/retrobasic/pkg/value"
)

// forFrame is the pending state of a FOR until its NEXT is seen.
type forFrame struct {
	variable  symtab.ID
	name      string
	applyStep symtab.ID // label NEXT jumps back to
	exitJump  int       // GOTO_LABEL_IF patched to the label after NEXT
	loc       ir.Location
}

type whileFrame struct {
	before   symtab.ID
	exitJump int
	loc      ir.Location
}

// udf describes a lowered DEF FN.
type udf struct {
	start  symtab.ID
	params []symtab.ID
	types  []value.DataType
}

// Lowerer carries the state of one lowering pass.
type Lowerer struct {
	st   *symtab.Table
	b    *ir.Builder
	line *ast.Line
	loc  ir.Location

	fors    []forFrame
	whiles  []whileFrame
	udfs    map[symtab.ID]*udf
	lineIDs map[int]symtab.ID
}

func lowerDebugLog(format string, args ...interface{}) {
	logger.Debug(logger.AreaLowering, "[LOWER] "+format, args...)
}

// Lower converts a parsed program into a frozen instruction stream.
func Lower(prog *ast.Program) (*ir.Program, error) {
	l := &Lowerer{
		st:      symtab.New(),
		b:       ir.NewBuilder(),
		udfs:    make(map[symtab.ID]*udf),
		lineIDs: make(map[int]symtab.ID),
	}
	for _, line := range prog.Lines {
		if err := l.lowerLine(line); err != nil {
			return nil, err
		}
	}
	if len(l.fors) > 0 {
		f := l.fors[len(l.fors)-1]
		return nil, basicerr.Semantic(basicerr.ForWithoutNext, f.loc.Line, f.loc.Text, "")
	}
	if len(l.whiles) > 0 {
		w := l.whiles[len(l.whiles)-1]
		return nil, basicerr.Semantic(basicerr.WhileWithoutWend, w.loc.Line, w.loc.Text, "")
	}

	p, err := l.b.Build(l.st)
	if err != nil {
		return nil, err
	}
	lowerDebugLog("lowered %d lines into %d instructions, %d symbols", len(prog.Lines), p.Len(), l.st.Size())
	return p, nil
}

func (l *Lowerer) lowerLine(line *ast.Line) error {
	l.line = line
	l.loc = ir.Location{Line: line.Number, Text: line.Text}
	// every line starts with an instruction so GOTO can reach lines that
	// only hold REM or DATA
	l.emit(ir.OP_NOP, symtab.NullID, symtab.NullID, symtab.NullID)
	return l.lowerStatements(line.Stmts)
}

func (l *Lowerer) lowerStatements(stmts []ast.Stmt) error {
	for _, st := range stmts {
		saved := l.loc
		l.loc = ir.Location{Line: l.line.Number, Text: l.line.SourceOf(st)}
		if err := l.lowerStatement(st); err != nil {
			return err
		}
		l.loc = saved
	}
	return nil
}

func (l *Lowerer) emit(op ir.OpCode, op1, op2, result symtab.ID) int {
	return l.b.Emit(l.loc, op, op1, op2, result)
}

// placeLabel allocates a label and emits its LABEL instruction here.
func (l *Lowerer) placeLabel() symtab.ID {
	label := l.st.AddLabel()
	l.emit(ir.OP_LABEL, label, symtab.NullID, symtab.NullID)
	return label
}

// forwardJump emits a jump whose target is not known yet. The returned index
// is patched with patchHere once the target point is reached.
func (l *Lowerer) forwardJump(op ir.OpCode, cond symtab.ID) int {
	return l.emit(op, l.st.AddGotoTarget(), cond, symtab.NullID)
}

func (l *Lowerer) patchHere(jumps ...int) symtab.ID {
	label := l.placeLabel()
	for _, j := range jumps {
		l.b.PatchOp1(j, label)
	}
	return label
}

func (l *Lowerer) semantic(n ast.Node, code basicerr.Code, format string, args ...interface{}) error {
	text := l.loc.Text
	if n != nil {
		text = l.line.SourceOf(n)
	}
	return basicerr.Semantic(code, l.line.Number, text, format, args...)
}

// lineNumber returns the INT32 temp holding a line number operand.
func (l *Lowerer) lineNumber(n int) symtab.ID {
	if id, ok := l.lineIDs[n]; ok {
		return id
	}
	id := l.st.AddTemp(value.INT32, value.NewInt32(int32(n)))
	l.lineIDs[n] = id
	return id
}

func (l *Lowerer) lowerStatement(st ast.Stmt) error {
	switch s := st.(type) {
	case *ast.Let:
		return l.lowerLet(s)
	case *ast.Print:
		return l.lowerPrint(s)
	case *ast.Write:
		return l.lowerWrite(s)
	case *ast.Input:
		return l.lowerInput(s)
	case *ast.LineInput:
		return l.lowerLineInput(s)
	case *ast.If:
		return l.lowerIf(s)
	case *ast.Goto:
		l.emit(ir.OP_GOTO_LINENUM, l.lineNumber(s.Line), symtab.NullID, symtab.NullID)
		return nil
	case *ast.Gosub:
		return l.lowerGosub(s)
	case *ast.Return:
		target := symtab.NullID
		if s.Line > 0 {
			target = l.lineNumber(s.Line)
		}
		l.emit(ir.OP_RETURN, target, symtab.NullID, symtab.NullID)
		return nil
	case *ast.OnGoto:
		return l.lowerOnGoto(s)
	case *ast.For:
		return l.lowerFor(s)
	case *ast.Next:
		return l.lowerNext(s)
	case *ast.While:
		return l.lowerWhile(s)
	case *ast.Wend:
		return l.lowerWend(s)
	case *ast.End:
		l.emit(ir.OP_END, symtab.NullID, symtab.NullID, symtab.NullID)
		return nil
	case *ast.Dim:
		return l.lowerDim(s)
	case *ast.Erase:
		return l.lowerErase(s)
	case *ast.DefFn:
		return l.lowerDefFn(s)
	case *ast.DefType:
		for _, r := range s.Ranges {
			for c := r.From; c <= r.To && c >= 'A' && c <= 'Z'; c++ {
				l.st.SetDefaultDataType(c, s.Type)
			}
		}
		return nil
	case *ast.Data:
		for _, item := range s.Items {
			l.b.AddData(ir.DataItem{Line: l.line.Number, Text: item.Text, Quoted: item.Quoted})
		}
		return nil
	case *ast.Read:
		for _, v := range s.Vars {
			target, err := l.lowerTarget(v)
			if err != nil {
				return err
			}
			l.emit(ir.OP_READ, symtab.NullID, symtab.NullID, target)
		}
		return nil
	case *ast.Restore:
		target := symtab.NullID
		if s.Line > 0 {
			target = l.lineNumber(s.Line)
		}
		l.emit(ir.OP_RESTORE, target, symtab.NullID, symtab.NullID)
		return nil
	case *ast.Randomize:
		if s.Timer {
			l.emit(ir.OP_RANDOMIZE_TIMER, symtab.NullID, symtab.NullID, symtab.NullID)
			return nil
		}
		seed, err := l.lowerNumeric(s.Seed)
		if err != nil {
			return err
		}
		l.emit(ir.OP_RANDOMIZE, seed, symtab.NullID, symtab.NullID)
		return nil
	case *ast.Swap:
		return l.lowerSwap(s)
	case *ast.Open:
		return l.lowerOpen(s)
	case *ast.Close:
		return l.lowerClose(s)
	case *ast.Field:
		return l.lowerField(s)
	case *ast.GetRecord:
		return l.lowerRecord(ir.OP_GET_RECORD, s.File, s.Record)
	case *ast.PutRecord:
		return l.lowerRecord(ir.OP_PUT_RECORD, s.File, s.Record)
	case *ast.Lset:
		return l.lowerJustify(ir.OP_LSET, s.Target, s.Value)
	case *ast.Rset:
		return l.lowerJustify(ir.OP_RSET, s.Target, s.Value)
	case *ast.Environ:
		x, err := l.lowerString(s.X)
		if err != nil {
			return err
		}
		l.emit(ir.OP_ENVIRON, x, symtab.NullID, symtab.NullID)
		return nil
	case *ast.Cls:
		l.emit(ir.OP_CLS, symtab.NullID, symtab.NullID, symtab.NullID)
		return nil
	case *ast.Screen:
		return l.lowerUnaryStatement(ir.OP_SCREEN, s.Mode, false)
	case *ast.Color:
		return l.lowerColor(s)
	case *ast.Pset:
		return l.lowerPset(s)
	case *ast.LineDraw:
		return l.lowerLineDraw(s)
	case *ast.Circle:
		return l.lowerCircle(s)
	case *ast.Paint:
		return l.lowerPaint(s)
	case *ast.Draw:
		return l.lowerUnaryStatement(ir.OP_DRAW, s.Commands, true)
	case *ast.GetImage:
		return l.lowerGetImage(s)
	case *ast.PutImage:
		return l.lowerPutImage(s)
	case *ast.Font:
		return l.lowerUnaryStatement(ir.OP_FONT, s.N, false)
	case *ast.Beep:
		l.emit(ir.OP_BEEP, symtab.NullID, symtab.NullID, symtab.NullID)
		return nil
	case *ast.LoadWav:
		return l.lowerLoadWav(s)
	case *ast.WavControl:
		return l.lowerWavControl(s)
	}
	return basicerr.Internal("no lowering for %T", st)
}
